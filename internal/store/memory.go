package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/meditrade/trading-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu           sync.RWMutex
	accounts     map[string]*model.Account
	order        []string // account ids in creation order
	trades       []model.Trade
	transactions []model.Transaction
	unlocks      []model.AchievementUnlock
	alerts       map[string]*model.PriceAlert
	watchlists   map[string]*model.Watchlist
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:   make(map[string]*model.Account),
		alerts:     make(map[string]*model.PriceAlert),
		watchlists: make(map[string]*model.Watchlist),
	}
}

// --- Accounts ---

func (s *MemoryStore) CreateAccount(_ context.Context, acct *model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[acct.UserID]; ok {
		return fmt.Errorf("%w: account %s", model.ErrAlreadyExists, acct.UserID)
	}
	for _, existing := range s.accounts {
		if acct.Email != "" && strings.EqualFold(existing.Email, acct.Email) {
			return fmt.Errorf("%w: email %s is registered", model.ErrAlreadyExists, acct.Email)
		}
	}

	// Store a copy to avoid external mutation.
	c := acct.Clone()
	s.accounts[acct.UserID] = &c
	s.order = append(s.order, acct.UserID)
	return nil
}

func (s *MemoryStore) GetAccount(_ context.Context, userID string) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[userID]
	if !ok {
		return nil, fmt.Errorf("%w: account %s", model.ErrNotFound, userID)
	}
	c := a.Clone()
	return &c, nil
}

func (s *MemoryStore) ListAccounts(_ context.Context) ([]model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	accounts := make([]model.Account, 0, len(s.order))
	for _, id := range s.order {
		accounts = append(accounts, s.accounts[id].Clone())
	}
	return accounts, nil
}

// --- Atomic commits ---

func (s *MemoryStore) CommitTrade(_ context.Context, acct *model.Account, trade *model.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.swapAccount(acct); err != nil {
		return err
	}
	s.trades = append(s.trades, *trade)
	return nil
}

func (s *MemoryStore) CommitTransaction(_ context.Context, acct *model.Account, tx *model.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.swapAccount(acct); err != nil {
		return err
	}
	s.transactions = append(s.transactions, *tx)
	return nil
}

// swapAccount replaces the stored account if its version still matches.
// Caller holds the write lock.
func (s *MemoryStore) swapAccount(acct *model.Account) error {
	cur, ok := s.accounts[acct.UserID]
	if !ok {
		return fmt.Errorf("%w: account %s", model.ErrNotFound, acct.UserID)
	}
	if cur.Version != acct.Version {
		return fmt.Errorf("%w: account %s is at version %d, commit expected %d",
			model.ErrConflict, acct.UserID, cur.Version, acct.Version)
	}
	acct.Version++
	c := acct.Clone()
	s.accounts[acct.UserID] = &c
	return nil
}

// --- Immutable journals ---

func (s *MemoryStore) ListTradesByUser(_ context.Context, userID string, limit int) ([]model.Trade, error) {
	return s.listTrades(userID, limit), nil
}

func (s *MemoryStore) ListTrades(_ context.Context, limit int) ([]model.Trade, error) {
	return s.listTrades("", limit), nil
}

// listTrades filters by userID unless it is empty.
func (s *MemoryStore) listTrades(userID string, limit int) []model.Trade {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Trade
	// Journal slices are append-only, so walking backwards yields newest first.
	for i := len(s.trades) - 1; i >= 0; i-- {
		if userID != "" && s.trades[i].UserID != userID {
			continue
		}
		result = append(result, s.trades[i])
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result
}

func (s *MemoryStore) ListTransactionsByUser(_ context.Context, userID string, limit int) ([]model.Transaction, error) {
	return s.listTransactions(userID, limit), nil
}

func (s *MemoryStore) ListTransactions(_ context.Context, limit int) ([]model.Transaction, error) {
	return s.listTransactions("", limit), nil
}

func (s *MemoryStore) listTransactions(userID string, limit int) []model.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Transaction
	for i := len(s.transactions) - 1; i >= 0; i-- {
		if userID != "" && s.transactions[i].UserID != userID {
			continue
		}
		result = append(result, s.transactions[i])
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result
}

// --- Achievements ---

func (s *MemoryStore) InsertAchievementUnlock(_ context.Context, u *model.AchievementUnlock) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.unlocks {
		if e.UserID == u.UserID && e.AchievementID == u.AchievementID {
			return fmt.Errorf("%w: %s for %s", model.ErrAlreadyUnlocked, u.AchievementID, u.UserID)
		}
	}
	s.unlocks = append(s.unlocks, *u)
	return nil
}

func (s *MemoryStore) ListAchievementUnlocks(_ context.Context, userID string) ([]model.AchievementUnlock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.AchievementUnlock
	for i := len(s.unlocks) - 1; i >= 0; i-- {
		if s.unlocks[i].UserID == userID {
			result = append(result, s.unlocks[i])
		}
	}
	return result, nil
}

func (s *MemoryStore) CountUnlocksByUser(_ context.Context) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int)
	for _, u := range s.unlocks {
		counts[u.UserID]++
	}
	return counts, nil
}

// --- Price alerts ---

func (s *MemoryStore) CreateAlert(_ context.Context, a *model.PriceAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.alerts[a.ID]; ok {
		return fmt.Errorf("%w: alert %s", model.ErrAlreadyExists, a.ID)
	}
	c := *a
	s.alerts[a.ID] = &c
	return nil
}

func (s *MemoryStore) GetAlert(_ context.Context, id string) (*model.PriceAlert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.alerts[id]
	if !ok {
		return nil, fmt.Errorf("%w: alert %s", model.ErrNotFound, id)
	}
	c := *a
	return &c, nil
}

func (s *MemoryStore) ListAlertsByUser(_ context.Context, userID string) ([]model.PriceAlert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.PriceAlert
	for _, a := range s.alerts {
		if a.UserID == userID {
			result = append(result, *a)
		}
	}
	sortAlertsNewestFirst(result)
	return result, nil
}

func (s *MemoryStore) DeleteAlert(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.alerts[id]; !ok {
		return fmt.Errorf("%w: alert %s", model.ErrNotFound, id)
	}
	delete(s.alerts, id)
	return nil
}

func (s *MemoryStore) ListActiveAlerts(_ context.Context) ([]model.PriceAlert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.PriceAlert
	for _, a := range s.alerts {
		if !a.Triggered {
			result = append(result, *a)
		}
	}
	sortAlertsNewestFirst(result)
	return result, nil
}

func (s *MemoryStore) MarkAlertTriggered(_ context.Context, id string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.alerts[id]
	if !ok || a.Triggered {
		return false, nil
	}
	at = at.UTC()
	a.Triggered = true
	a.TriggeredAt = &at
	return true, nil
}

// --- Watchlists ---

func (s *MemoryStore) GetWatchlist(_ context.Context, userID string) (*model.Watchlist, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wl, ok := s.watchlists[userID]
	if !ok {
		return &model.Watchlist{UserID: userID, Symbols: []string{}}, nil
	}
	c := *wl
	c.Symbols = append([]string{}, wl.Symbols...)
	return &c, nil
}

func (s *MemoryStore) SaveWatchlist(_ context.Context, wl *model.Watchlist) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *wl
	c.Symbols = append([]string{}, wl.Symbols...)
	s.watchlists[wl.UserID] = &c
	return nil
}

func sortAlertsNewestFirst(alerts []model.PriceAlert) {
	sort.Slice(alerts, func(i, j int) bool {
		if !alerts[i].CreatedAt.Equal(alerts[j].CreatedAt) {
			return alerts[i].CreatedAt.After(alerts[j].CreatedAt)
		}
		return alerts[i].ID < alerts[j].ID
	})
}
