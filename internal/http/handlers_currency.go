package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"moneymate/internal/currency"
	"moneymate/internal/log"
)

const refreshTimeout = 15 * time.Second

const (
	defaultConvertFrom = "IDR"
	defaultConvertTo   = "USD"
)

func (s *Server) handleCurrencies(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(struct {
		Base       string              `json:"base"`
		Display    string              `json:"display"`
		Currencies []currency.Currency `json:"currencies"`
	}{
		Base:       s.txs.BaseCurrency(),
		Display:    s.cfg.DisplayCurrency,
		Currencies: currency.SupportedCurrencies(),
	}).Write(w)
}

// handleRates returns the current table, loading it first when it is empty
// or stale.
func (s *Server) handleRates(w http.ResponseWriter, r *http.Request) {
	snap := s.rates.EnsureRates(r.Context())
	NewJSONResponse().Body(toRatesDTO(snap)).Write(w)
}

func (s *Server) handleRefreshRates(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), refreshTimeout)
	defer cancel()

	snap := s.rates.Refresh(ctx)
	if snap.Err != nil {
		log.FromContext(ctx).WarnContext(ctx, "Manual rate refresh degraded",
			log.FieldOperation, log.OpRefresh,
			log.FieldRateSource, string(snap.Source),
			log.FieldError, snap.Err.Error())
	}
	NewJSONResponse().Body(toRatesDTO(snap)).Write(w)
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	amount, err := currency.ParseAmount(strings.ReplaceAll(q.Get("amount"), ",", "."))
	if err != nil {
		ErrorFrom(r.Context(), err).Write(w)
		return
	}
	from := currency.Normalize(q.Get("from"))
	if from == "" {
		from = defaultConvertFrom
	}
	to := currency.Normalize(q.Get("to"))
	if to == "" {
		to = defaultConvertTo
	}

	snap := s.rates.EnsureRates(r.Context())
	rate, err := s.rates.Convert(decimal.NewFromInt(1), from, to)
	if err != nil {
		ErrorFrom(r.Context(), err).Write(w)
		return
	}
	result, err := s.rates.Convert(amount, from, to)
	if err != nil {
		ErrorFrom(r.Context(), err).Write(w)
		return
	}
	NewJSONResponse().Body(newConversionDTO(amount, rate, result, from, to, snap.Source)).Write(w)
}
