package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/meditrade/trading-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache of accounts and watchlists. Writes go to the primary store and
// invalidate the cache; reads check Redis first then fall back to the primary.
//
// Commits invalidate even when they fail: a lost compare-and-swap means the
// cached copy is already stale.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) CreateAccount(ctx context.Context, acct *model.Account) error {
	if err := s.primary.CreateAccount(ctx, acct); err != nil {
		return err
	}
	s.cache(ctx, accountKey(acct.UserID), acct)
	return nil
}

func (s *CachedStore) CommitTrade(ctx context.Context, acct *model.Account, trade *model.Trade) error {
	err := s.primary.CommitTrade(ctx, acct, trade)
	s.rdb.Del(ctx, accountKey(acct.UserID))
	return err
}

func (s *CachedStore) CommitTransaction(ctx context.Context, acct *model.Account, tx *model.Transaction) error {
	err := s.primary.CommitTransaction(ctx, acct, tx)
	s.rdb.Del(ctx, accountKey(acct.UserID))
	return err
}

func (s *CachedStore) SaveWatchlist(ctx context.Context, wl *model.Watchlist) error {
	if err := s.primary.SaveWatchlist(ctx, wl); err != nil {
		return err
	}
	s.rdb.Del(ctx, watchlistKey(wl.UserID))
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetAccount(ctx context.Context, userID string) (*model.Account, error) {
	data, err := s.rdb.Get(ctx, accountKey(userID)).Bytes()
	if err == nil {
		var a model.Account
		if json.Unmarshal(data, &a) == nil {
			return &a, nil
		}
	}

	a, err := s.primary.GetAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.cache(ctx, accountKey(userID), a)
	return a, nil
}

func (s *CachedStore) GetWatchlist(ctx context.Context, userID string) (*model.Watchlist, error) {
	data, err := s.rdb.Get(ctx, watchlistKey(userID)).Bytes()
	if err == nil {
		var wl model.Watchlist
		if json.Unmarshal(data, &wl) == nil {
			return &wl, nil
		}
	}

	wl, err := s.primary.GetWatchlist(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.cache(ctx, watchlistKey(userID), wl)
	return wl, nil
}

// --- Passthrough (not cached) ---

// ListAccounts is never cached: leaderboard ranking recomputes from the
// source of truth on every call.
func (s *CachedStore) ListAccounts(ctx context.Context) ([]model.Account, error) {
	return s.primary.ListAccounts(ctx)
}

func (s *CachedStore) ListTradesByUser(ctx context.Context, userID string, limit int) ([]model.Trade, error) {
	return s.primary.ListTradesByUser(ctx, userID, limit)
}

func (s *CachedStore) ListTransactionsByUser(ctx context.Context, userID string, limit int) ([]model.Transaction, error) {
	return s.primary.ListTransactionsByUser(ctx, userID, limit)
}

func (s *CachedStore) ListTrades(ctx context.Context, limit int) ([]model.Trade, error) {
	return s.primary.ListTrades(ctx, limit)
}

func (s *CachedStore) ListTransactions(ctx context.Context, limit int) ([]model.Transaction, error) {
	return s.primary.ListTransactions(ctx, limit)
}

func (s *CachedStore) InsertAchievementUnlock(ctx context.Context, u *model.AchievementUnlock) error {
	return s.primary.InsertAchievementUnlock(ctx, u)
}

func (s *CachedStore) ListAchievementUnlocks(ctx context.Context, userID string) ([]model.AchievementUnlock, error) {
	return s.primary.ListAchievementUnlocks(ctx, userID)
}

func (s *CachedStore) CountUnlocksByUser(ctx context.Context) (map[string]int, error) {
	return s.primary.CountUnlocksByUser(ctx)
}

func (s *CachedStore) CreateAlert(ctx context.Context, a *model.PriceAlert) error {
	return s.primary.CreateAlert(ctx, a)
}

func (s *CachedStore) GetAlert(ctx context.Context, id string) (*model.PriceAlert, error) {
	return s.primary.GetAlert(ctx, id)
}

func (s *CachedStore) ListAlertsByUser(ctx context.Context, userID string) ([]model.PriceAlert, error) {
	return s.primary.ListAlertsByUser(ctx, userID)
}

func (s *CachedStore) DeleteAlert(ctx context.Context, id string) error {
	return s.primary.DeleteAlert(ctx, id)
}

func (s *CachedStore) ListActiveAlerts(ctx context.Context) ([]model.PriceAlert, error) {
	return s.primary.ListActiveAlerts(ctx)
}

func (s *CachedStore) MarkAlertTriggered(ctx context.Context, id string, at time.Time) (bool, error) {
	return s.primary.MarkAlertTriggered(ctx, id, at)
}

// --- Cache helpers ---

func (s *CachedStore) cache(ctx context.Context, key string, v any) {
	if data, err := json.Marshal(v); err == nil {
		s.rdb.Set(ctx, key, data, s.ttl)
	}
}

func accountKey(uid string) string   { return fmt.Sprintf("account:%s", uid) }
func watchlistKey(uid string) string { return fmt.Sprintf("watchlist:%s", uid) }
