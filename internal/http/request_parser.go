// This file implements utilities for parsing and validating request data.

package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"moneymate/internal/services"
)

// MonthParams holds parsed year/month values from request parameters.
type MonthParams struct {
	Year  int
	Month int
}

// ParseMonthParams reads year and month from the query. Missing values
// default to the current month; present but invalid values are an error.
func ParseMonthParams(query url.Values, now time.Time) (MonthParams, error) {
	params := MonthParams{Year: now.Year(), Month: int(now.Month())}

	if v := strings.TrimSpace(query.Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1 || y > 9999 {
			return MonthParams{}, fmt.Errorf("%w: invalid year %q", ErrMalformedRequest, v)
		}
		params.Year = y
	}
	if v := strings.TrimSpace(query.Get("month")); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil || m < 1 || m > 12 {
			return MonthParams{}, fmt.Errorf("%w: invalid month %q", ErrMalformedRequest, v)
		}
		params.Month = m
	}
	return params, nil
}

// ParseListFilter is like ParseMonthParams but returns a zero month when
// neither year nor month is given, meaning no filter.
func ParseListFilter(query url.Values, now time.Time) (MonthParams, error) {
	if strings.TrimSpace(query.Get("year")) == "" && strings.TrimSpace(query.Get("month")) == "" {
		return MonthParams{}, nil
	}
	return ParseMonthParams(query, now)
}

// ParseID reads the {id} route parameter.
func ParseID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid id %q", ErrMalformedRequest, raw)
	}
	return id, nil
}

// RequestBodyParser reads a JSON or form-encoded body once and exposes its
// fields as strings.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser reads the body of r, up to limit bytes.
func NewRequestBodyParser(r *http.Request, limit int64) *RequestBodyParser {
	p := &RequestBodyParser{contentType: r.Header.Get("Content-Type")}
	if r.Body == nil {
		return p
	}
	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, limit+1))
	if p.err == nil && int64(len(p.body)) > limit {
		p.err = fmt.Errorf("%w: body exceeds %d bytes", ErrMalformedRequest, limit)
	}
	return p
}

// Parse decodes the body as JSON when it looks like an object, and as form
// data otherwise.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true
	if p.err != nil {
		return p.err
	}

	trimmed := strings.TrimSpace(string(p.body))
	if trimmed == "" {
		p.formData = url.Values{}
		return nil
	}
	if strings.HasPrefix(trimmed, "{") || strings.Contains(p.contentType, "json") {
		p.jsonData = make(map[string]any)
		if err := json.Unmarshal([]byte(trimmed), &p.jsonData); err != nil {
			p.jsonData = nil
			p.err = fmt.Errorf("%w: %v", ErrMalformedRequest, err)
		}
		return p.err
	}

	p.formData, p.err = url.ParseQuery(trimmed)
	if p.err != nil {
		p.err = fmt.Errorf("%w: %v", ErrMalformedRequest, p.err)
	}
	return p.err
}

// Get returns the sanitized value of key, or "" when absent.
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// TransactionInput collects the transaction fields from the body.
func (p *RequestBodyParser) TransactionInput() services.TransactionInput {
	return services.TransactionInput{
		Amount:      p.Get("amount"),
		Currency:    p.Get("currency"),
		Description: p.Get("description"),
		Type:        p.Get("type"),
		Category:    p.Get("category"),
		Date:        p.Get("date"),
	}
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// sanitizeInput drops control characters other than tab and newlines and
// trims whitespace.
func sanitizeInput(s string) string {
	s = strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}
