package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"moneymate/internal/currency"
)

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady pings the store; 503 while it is unreachable.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), s.cfg.ReadyTimeout)
		defer cancel()
		if err := s.health.Ping(ctx); err != nil {
			s.logger.WarnContext(ctx, "Readiness check failed", "error", err)
			ErrorResponse(http.StatusServiceUnavailable, "storage unavailable").Write(w)
			return
		}
	}
	NewJSONResponse().Body(map[string]string{"status": "ready"}).Write(w)
}

// handleMetrics writes counters in the Prometheus text exposition format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	var b strings.Builder
	metric := func(name, kind, help string, value any) {
		fmt.Fprintf(&b, "# HELP %s %s\n# TYPE %s %s\n%s %v\n", name, help, name, kind, name, value)
	}

	req := s.tracer.GetMetrics()
	metric("moneymate_http_requests_total", "counter", "HTTP requests served.", req.TotalRequests)
	metric("moneymate_http_client_errors_total", "counter", "Responses with a 4xx status.", req.ClientErrors)
	metric("moneymate_http_server_errors_total", "counter", "Responses with a 5xx status.", req.ServerErrors)
	metric("moneymate_http_avg_response_microseconds", "gauge", "Mean response time.", req.AverageResponseTime)

	rl := s.limiter.GetMetrics()
	metric("moneymate_ratelimit_rejected_total", "counter", "Requests rejected by the rate limiter.", rl.Rejected)
	metric("moneymate_ratelimit_clients", "gauge", "Clients tracked by the rate limiter.", rl.ClientCount)
	metric("moneymate_suspicious_requests_total", "counter", "Requests flagged as probes.", s.detector.SuspiciousRequests())

	if s.caches != nil {
		b.WriteString("# HELP moneymate_cache_entries Entries held per cache.\n# TYPE moneymate_cache_entries gauge\n")
		stats := s.caches.Stats()
		for _, st := range stats {
			fmt.Fprintf(&b, "moneymate_cache_entries{cache=%q} %d\n", st.Name, st.Size)
		}
		b.WriteString("# HELP moneymate_cache_hits_total Cache hits.\n# TYPE moneymate_cache_hits_total counter\n")
		for _, st := range stats {
			fmt.Fprintf(&b, "moneymate_cache_hits_total{cache=%q} %d\n", st.Name, st.Hits)
		}
		b.WriteString("# HELP moneymate_cache_misses_total Cache misses.\n# TYPE moneymate_cache_misses_total counter\n")
		for _, st := range stats {
			fmt.Fprintf(&b, "moneymate_cache_misses_total{cache=%q} %d\n", st.Name, st.Misses)
		}
	}

	if s.rates != nil {
		b.WriteString("# HELP moneymate_rates_source Current exchange rate source.\n# TYPE moneymate_rates_source gauge\n")
		current := s.rates.Source()
		for _, src := range []currency.Source{currency.SourceLive, currency.SourceCache, currency.SourceFallback} {
			v := 0
			if s.rates.HasRates() && src == current {
				v = 1
			}
			fmt.Fprintf(&b, "moneymate_rates_source{source=%q} %d\n", src, v)
		}
		var updated int64
		if at := s.rates.LastUpdate(); !at.IsZero() {
			updated = at.Unix()
		}
		metric("moneymate_rates_last_update_seconds", "gauge", "Unix time of the last live rate fetch.", updated)
	}

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	_, _ = w.Write([]byte(b.String()))
}
