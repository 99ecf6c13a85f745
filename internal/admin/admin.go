// Package admin serves read-only platform views to admin-role accounts.
package admin

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meditrade/trading-engine/internal/httpx"
	"github.com/meditrade/trading-engine/internal/model"
	"github.com/meditrade/trading-engine/internal/store"
)

const (
	newUserWindow  = 7 * 24 * time.Hour
	activityLimit  = 10
	defaultListMax = 100
	maxListLimit   = 1000
)

// Service answers the admin endpoints.
type Service struct {
	store store.Store
	now   func() time.Time
}

// NewService creates an admin service.
func NewService(st store.Store) *Service {
	return &Service{store: st, now: time.Now}
}

// Stats summarize the whole platform.
type Stats struct {
	TotalUsers        int             `json:"total_users"`
	TotalTrades       int             `json:"total_trades"`
	TotalTransactions int             `json:"total_transactions"`
	TotalVolume       decimal.Decimal `json:"total_volume"`
	NewUsers          int             `json:"new_users"` // created in the last 7 days
}

// Activity is the latest journal entries across all users.
type Activity struct {
	RecentTrades       []model.Trade       `json:"recent_trades"`
	RecentTransactions []model.Transaction `json:"recent_transactions"`
}

// ListResponse wraps list bodies.
type ListResponse struct {
	Count int `json:"count"`
	Data  any `json:"data"`
}

// Stats computes platform totals.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	accounts, err := s.store.ListAccounts(ctx)
	if err != nil {
		return Stats{}, err
	}
	trades, err := s.store.ListTrades(ctx, 0)
	if err != nil {
		return Stats{}, err
	}
	txs, err := s.store.ListTransactions(ctx, 0)
	if err != nil {
		return Stats{}, err
	}

	st := Stats{
		TotalUsers:        len(accounts),
		TotalTrades:       len(trades),
		TotalTransactions: len(txs),
		TotalVolume:       decimal.Zero,
	}
	for _, t := range trades {
		st.TotalVolume = st.TotalVolume.Add(t.Total)
	}
	since := s.now().Add(-newUserWindow)
	for _, a := range accounts {
		if !a.CreatedAt.Before(since) {
			st.NewUsers++
		}
	}
	return st, nil
}

// Activity returns the ten newest trades and transactions.
func (s *Service) Activity(ctx context.Context) (Activity, error) {
	trades, err := s.store.ListTrades(ctx, activityLimit)
	if err != nil {
		return Activity{}, err
	}
	txs, err := s.store.ListTransactions(ctx, activityLimit)
	if err != nil {
		return Activity{}, err
	}
	if trades == nil {
		trades = []model.Trade{}
	}
	if txs == nil {
		txs = []model.Transaction{}
	}
	return Activity{RecentTrades: trades, RecentTransactions: txs}, nil
}

// RequireAdmin rejects callers whose account is not admin-role. It runs
// after httpx.RequireUser.
func (s *Service) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid := httpx.UserID(r.Context())
		acct, err := s.store.GetAccount(r.Context(), uid)
		if err != nil {
			httpx.WriteDomainError(w, r, err)
			return
		}
		if acct.Role != model.RoleAdmin {
			httpx.WriteDomainError(w, r, fmt.Errorf("%w: admin role required", model.ErrForbidden))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// --- HTTP handlers ---

// GetStats handles GET /api/v1/admin/stats
func (s *Service) GetStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.Stats(r.Context())
	if err != nil {
		httpx.WriteDomainError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, st)
}

// GetActivity handles GET /api/v1/admin/activity
func (s *Service) GetActivity(w http.ResponseWriter, r *http.Request) {
	a, err := s.Activity(r.Context())
	if err != nil {
		httpx.WriteDomainError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, a)
}

// GetUsers handles GET /api/v1/admin/users
func (s *Service) GetUsers(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.store.ListAccounts(r.Context())
	if err != nil {
		httpx.WriteDomainError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, ListResponse{Count: len(accounts), Data: accounts})
}

// GetTrades handles GET /api/v1/admin/trades?limit
func (s *Service) GetTrades(w http.ResponseWriter, r *http.Request) {
	_, limit, err := httpx.Page(r, defaultListMax, maxListLimit)
	if err != nil {
		httpx.WriteDomainError(w, r, err)
		return
	}
	trades, err := s.store.ListTrades(r.Context(), limit)
	if err != nil {
		httpx.WriteDomainError(w, r, err)
		return
	}
	if trades == nil {
		trades = []model.Trade{}
	}
	httpx.WriteJSON(w, http.StatusOK, ListResponse{Count: len(trades), Data: trades})
}

// GetTransactions handles GET /api/v1/admin/transactions?limit
func (s *Service) GetTransactions(w http.ResponseWriter, r *http.Request) {
	_, limit, err := httpx.Page(r, defaultListMax, maxListLimit)
	if err != nil {
		httpx.WriteDomainError(w, r, err)
		return
	}
	txs, err := s.store.ListTransactions(r.Context(), limit)
	if err != nil {
		httpx.WriteDomainError(w, r, err)
		return
	}
	if txs == nil {
		txs = []model.Transaction{}
	}
	httpx.WriteJSON(w, http.StatusOK, ListResponse{Count: len(txs), Data: txs})
}
