package currency

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const DefaultAPIURL = "https://api.frankfurter.app/"

// LatestResponse is the body of GET /latest.
type LatestResponse struct {
	Amount float64            `json:"amount"`
	Base   string             `json:"base"`
	Date   string             `json:"date"`
	Rates  map[string]float64 `json:"rates"`
}

// RateProvider fetches the latest rates quoted against base.
type RateProvider interface {
	Latest(ctx context.Context, base string) (LatestResponse, error)
}

// FrankfurterClient talks to the Frankfurter exchange-rate API.
type FrankfurterClient struct {
	baseURL *url.URL
	http    *http.Client
}

var _ RateProvider = (*FrankfurterClient)(nil)

func NewFrankfurterClient(baseURL string, timeout time.Duration) (*FrankfurterClient, error) {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultAPIURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse rate api url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("rate api url must be http or https, got %q", u.Scheme)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &FrankfurterClient{
		baseURL: u,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}, nil
}

// Host returns host:port of the API, for reachability probes.
func (c *FrankfurterClient) Host() string {
	if c.baseURL.Port() != "" {
		return c.baseURL.Host
	}
	port := "443"
	if c.baseURL.Scheme == "http" {
		port = "80"
	}
	return c.baseURL.Hostname() + ":" + port
}

func (c *FrankfurterClient) Latest(ctx context.Context, base string) (LatestResponse, error) {
	endpoint := c.baseURL.ResolveReference(&url.URL{Path: "latest"})
	q := endpoint.Query()
	q.Set("from", Normalize(base))
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return LatestResponse{}, fmt.Errorf("build rates request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return LatestResponse{}, fmt.Errorf("fetch rates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return LatestResponse{}, fmt.Errorf("fetch rates: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var body LatestResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return LatestResponse{}, fmt.Errorf("decode rates: %w", err)
	}
	if len(body.Rates) == 0 {
		return LatestResponse{}, fmt.Errorf("decode rates: empty rate table")
	}
	return body, nil
}
