package leaderboard

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/meditrade/trading-engine/internal/httpx"
	"github.com/meditrade/trading-engine/internal/store"
)

const (
	maxPageSize = 100
	topN        = 3
)

// Service serves the leaderboard endpoints.
type Service struct {
	store           store.Store
	quote           QuoteFunc
	startingBalance decimal.Decimal
}

// NewService creates a leaderboard service.
func NewService(st store.Store, quote QuoteFunc, startingBalance decimal.Decimal) *Service {
	return &Service{store: st, quote: quote, startingBalance: startingBalance}
}

// Page loads every account and ranks it.
func (s *Service) Page(ctx context.Context, page, pageSize int) (Page, error) {
	accounts, err := s.store.ListAccounts(ctx)
	if err != nil {
		return Page{}, err
	}
	return Rank(accounts, s.quote, s.startingBalance, page, pageSize), nil
}

// GetLeaderboard handles GET /api/v1/leaderboard?page&limit
func (s *Service) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	page, limit, err := httpx.Page(r, DefaultPageSize, maxPageSize)
	if err != nil {
		httpx.WriteDomainError(w, r, err)
		return
	}
	p, err := s.Page(r.Context(), page, limit)
	if err != nil {
		httpx.WriteDomainError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, p)
}

// GetTop handles GET /api/v1/leaderboard/top
func (s *Service) GetTop(w http.ResponseWriter, r *http.Request) {
	p, err := s.Page(r.Context(), 1, topN)
	if err != nil {
		httpx.WriteDomainError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, p.Entries)
}
