package http

import (
	"net/http"
	"strconv"

	"moneymate/internal/log"
)

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	filter, err := ParseListFilter(r.URL.Query(), s.now())
	if err != nil {
		ErrorFrom(r.Context(), err).Write(w)
		return
	}
	items, err := s.txs.List(r.Context(), filter.Year, filter.Month)
	if err != nil {
		ErrorFrom(r.Context(), err).Write(w)
		return
	}

	base := s.txs.BaseCurrency()
	out := transactionListDTO{
		Count:        len(items),
		Year:         filter.Year,
		Month:        filter.Month,
		Transactions: make([]transactionDTO, 0, len(items)),
	}
	for _, tx := range items {
		out.Transactions = append(out.Transactions, toTransactionDTO(tx, base))
	}
	NewJSONResponse().Body(out).Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r, s.cfg.MaxBodyBytes)
	if err := p.Parse(); err != nil {
		ErrorFrom(r.Context(), err).Write(w)
		return
	}

	tx, err := s.txs.Create(r.Context(), p.TransactionInput())
	if err != nil {
		ErrorFrom(r.Context(), err).Write(w)
		return
	}
	s.events.LogTransaction(r.Context(), log.OpCreate, tx.ID, tx.Type.String(), tx.Category, tx.Amount.Cents)

	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/transactions/"+strconv.FormatInt(tx.ID, 10)).
		Body(toTransactionDTO(tx, s.txs.BaseCurrency())).
		Write(w)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := ParseID(r)
	if err != nil {
		ErrorFrom(r.Context(), err).Write(w)
		return
	}
	tx, err := s.txs.Get(r.Context(), id)
	if err != nil {
		ErrorFrom(r.Context(), err).Write(w)
		return
	}
	NewJSONResponse().Body(toTransactionDTO(tx, s.txs.BaseCurrency())).Write(w)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := ParseID(r)
	if err != nil {
		ErrorFrom(r.Context(), err).Write(w)
		return
	}
	p := NewRequestBodyParser(r, s.cfg.MaxBodyBytes)
	if err := p.Parse(); err != nil {
		ErrorFrom(r.Context(), err).Write(w)
		return
	}

	tx, err := s.txs.Update(r.Context(), id, p.TransactionInput())
	if err != nil {
		ErrorFrom(r.Context(), err).Write(w)
		return
	}
	s.events.LogTransaction(r.Context(), log.OpUpdate, tx.ID, tx.Type.String(), tx.Category, tx.Amount.Cents)
	NewJSONResponse().Body(toTransactionDTO(tx, s.txs.BaseCurrency())).Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := ParseID(r)
	if err != nil {
		ErrorFrom(r.Context(), err).Write(w)
		return
	}
	if err := s.txs.Delete(r.Context(), id); err != nil {
		ErrorFrom(r.Context(), err).Write(w)
		return
	}
	s.events.LogTransaction(r.Context(), log.OpDelete, id, "", "", 0)
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}
