package http

import (
	"net/http"

	"moneymate/internal/core"
)

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	report, err := s.txs.Balance(r.Context(), s.displayCurrency(r))
	if err != nil {
		ErrorFrom(r.Context(), err).Write(w)
		return
	}
	NewJSONResponse().Body(toBalanceDTO(report)).Write(w)
}

func (s *Server) handleMonthlyReport(w http.ResponseWriter, r *http.Request) {
	month, err := ParseMonthParams(r.URL.Query(), s.now())
	if err != nil {
		ErrorFrom(r.Context(), err).Write(w)
		return
	}
	report, err := s.txs.MonthlyReport(r.Context(), month.Year, month.Month, s.displayCurrency(r))
	if err != nil {
		ErrorFrom(r.Context(), err).Write(w)
		return
	}
	NewJSONResponse().Body(toMonthlyReportDTO(report)).Write(w)
}

func handleCategories(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string][]string{
		string(core.Income):  core.DefaultCategories(core.Income),
		string(core.Expense): core.DefaultCategories(core.Expense),
	}).Write(w)
}
