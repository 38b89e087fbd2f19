package currency

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrankfurterClient_Latest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/latest", r.URL.Path)
		assert.Equal(t, "EUR", r.URL.Query().Get("from"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"amount":1.0,"base":"EUR","date":"2024-03-01","rates":{"USD":1.0842,"IDR":17012.5}}`))
	}))
	defer srv.Close()

	c, err := NewFrankfurterClient(srv.URL, time.Second)
	require.NoError(t, err)

	resp, err := c.Latest(context.Background(), "eur")
	require.NoError(t, err)
	assert.Equal(t, "EUR", resp.Base)
	assert.Equal(t, "2024-03-01", resp.Date)
	assert.InDelta(t, 1.0842, resp.Rates["USD"], 1e-9)
}

func TestFrankfurterClient_Errors(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"server error", http.StatusBadGateway, "upstream down", "unexpected status 502"},
		{"bad json", http.StatusOK, "{", "decode rates"},
		{"empty table", http.StatusOK, `{"base":"EUR","rates":{}}`, "empty rate table"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			c, err := NewFrankfurterClient(srv.URL+"/", time.Second)
			require.NoError(t, err)
			_, err = c.Latest(context.Background(), "EUR")
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tc.wantErr), err.Error())
		})
	}
}

func TestNewFrankfurterClient(t *testing.T) {
	c, err := NewFrankfurterClient("", 0)
	require.NoError(t, err)
	assert.Equal(t, "api.frankfurter.app:443", c.Host())

	c, err = NewFrankfurterClient("http://localhost:8080/v1", 0)
	require.NoError(t, err)
	assert.Equal(t, "localhost:8080", c.Host())

	_, err = NewFrankfurterClient("ftp://example.com", 0)
	assert.Error(t, err)
}

func TestDialProber(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()

	assert.True(t, DialProber{Address: addr, Timeout: time.Second}.Online(context.Background()))

	require.NoError(t, ln.Close())
	assert.False(t, DialProber{Address: addr, Timeout: time.Second}.Online(context.Background()))

	assert.True(t, StaticProber(true).Online(context.Background()))
	assert.False(t, StaticProber(false).Online(context.Background()))
}
