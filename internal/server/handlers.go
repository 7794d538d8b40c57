package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/finvault/papertrader/internal/domain"
)

// tradeRequest is the JSON body of buy and sell calls
type tradeRequest struct {
	Symbol string `json:"symbol"`
	Shares int64  `json:"shares"`
}

// errorResponse is the uniform error envelope
type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleQuote handles GET /api/quote/{symbol}. No stale fallback: the
// quote page shows what a trade would actually price at.
func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	quote, err := s.quotes.Lookup(r.Context(), symbol, false)
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, quote)
}

// handleBuy handles POST /api/buy
func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	accountID, ok := s.accountID(w, r)
	if !ok {
		return
	}

	var req tradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	record, err := s.ledger.Buy(r.Context(), accountID, req.Symbol, req.Shares)
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, record)
}

// handleSell handles POST /api/sell
func (s *Server) handleSell(w http.ResponseWriter, r *http.Request) {
	accountID, ok := s.accountID(w, r)
	if !ok {
		return
	}

	var req tradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	record, err := s.ledger.Sell(r.Context(), accountID, req.Symbol, req.Shares)
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, record)
}

// handlePortfolio handles GET /api/portfolio
func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	accountID, ok := s.accountID(w, r)
	if !ok {
		return
	}

	snapshot, err := s.portfolio.Snapshot(r.Context(), accountID)
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, snapshot)
}

// handleHistory handles GET /api/history?limit=N
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	accountID, ok := s.accountID(w, r)
	if !ok {
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			s.respondJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	history, err := s.ledger.History(accountID, limit)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if history == nil {
		history = []domain.Transaction{}
	}

	s.respondJSON(w, http.StatusOK, history)
}

// accountID resolves the already-authenticated account from the
// X-Account-ID header. The auth layer in front of this service sets it.
func (s *Server) accountID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.Header.Get("X-Account-ID")
	if raw == "" {
		s.respondJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing account"})
		return 0, false
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		s.respondJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid account"})
		return 0, false
	}

	return id, true
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode response")
	}
}

// respondError maps the domain taxonomy onto HTTP statuses
func (s *Server) respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, domain.ErrInvalidShares), errors.Is(err, domain.ErrInvalidSymbol):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrSymbolNotFound), errors.Is(err, domain.ErrAccountNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrRateLimited):
		status = http.StatusTooManyRequests
	case errors.Is(err, domain.ErrQuoteUnavailable):
		status = http.StatusBadGateway
	case errors.Is(err, domain.ErrInsufficientFunds), errors.Is(err, domain.ErrInsufficientShares):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrTransactionConflict):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		s.log.Error().Err(err).Msg("Request failed")
		s.respondJSON(w, status, errorResponse{Error: "internal error"})
		return
	}

	s.respondJSON(w, status, errorResponse{Error: err.Error()})
}
