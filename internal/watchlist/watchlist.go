// Package watchlist maintains each user's ordered list of followed symbols.
package watchlist

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/meditrade/trading-engine/internal/asset"
	"github.com/meditrade/trading-engine/internal/model"
	"github.com/meditrade/trading-engine/internal/store"
)

// Add appends symbol to symbols. It rejects duplicates and lists already
// holding max entries.
func Add(symbols []string, symbol string, max int) ([]string, error) {
	if indexOf(symbols, symbol) >= 0 {
		return nil, fmt.Errorf("%w: %s", model.ErrAlreadyWatched, symbol)
	}
	if len(symbols) >= max {
		return nil, fmt.Errorf("%w: %d items, remove some to add more", model.ErrWatchlistLimit, max)
	}
	out := make([]string, 0, len(symbols)+1)
	out = append(out, symbols...)
	return append(out, symbol), nil
}

// Remove drops symbol from symbols, keeping the order of the rest.
func Remove(symbols []string, symbol string) ([]string, error) {
	i := indexOf(symbols, symbol)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", model.ErrNotWatched, symbol)
	}
	out := make([]string, 0, len(symbols)-1)
	out = append(out, symbols[:i]...)
	return append(out, symbols[i+1:]...), nil
}

// Toggle removes symbol if present and adds it otherwise. added reports
// which one happened.
func Toggle(symbols []string, symbol string, max int) (out []string, added bool, err error) {
	if indexOf(symbols, symbol) >= 0 {
		out, err = Remove(symbols, symbol)
		return out, false, err
	}
	out, err = Add(symbols, symbol, max)
	return out, err == nil, err
}

// Reorder returns order after checking it is a permutation of current.
func Reorder(current, order []string) ([]string, error) {
	if len(order) != len(current) {
		return nil, &model.ValidationError{Field: "symbols", Message: "must list every watched symbol exactly once"}
	}
	want := make(map[string]int, len(current))
	for _, s := range current {
		want[s]++
	}
	for _, s := range order {
		if want[s] == 0 {
			return nil, &model.ValidationError{Field: "symbols", Message: fmt.Sprintf("%s is not in the watchlist or is repeated", s)}
		}
		want[s]--
	}
	return append([]string{}, order...), nil
}

func indexOf(symbols []string, symbol string) int {
	for i, s := range symbols {
		if s == symbol {
			return i
		}
	}
	return -1
}

// Service applies watchlist edits and persists them. Edits for one user
// are serialized so concurrent requests cannot lose an update.
type Service struct {
	store   store.Store
	maxSize int
	locks   sync.Map // user id -> *sync.Mutex
	now     func() time.Time
}

// NewService creates a watchlist service allowing maxSize symbols per user.
func NewService(st store.Store, maxSize int) *Service {
	return &Service{store: st, maxSize: maxSize, now: time.Now}
}

func (s *Service) lockFor(userID string) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(userID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Get returns userID's watchlist.
func (s *Service) Get(ctx context.Context, userID string) (*model.Watchlist, error) {
	return s.store.GetWatchlist(ctx, userID)
}

// AddSymbol adds symbol to userID's watchlist.
func (s *Service) AddSymbol(ctx context.Context, userID, symbol string) (*model.Watchlist, error) {
	return s.edit(ctx, userID, symbol, func(cur []string, sym string) ([]string, error) {
		return Add(cur, sym, s.maxSize)
	})
}

// RemoveSymbol removes symbol from userID's watchlist.
func (s *Service) RemoveSymbol(ctx context.Context, userID, symbol string) (*model.Watchlist, error) {
	return s.edit(ctx, userID, symbol, Remove)
}

// ToggleSymbol adds or removes symbol and reports which.
func (s *Service) ToggleSymbol(ctx context.Context, userID, symbol string) (*model.Watchlist, bool, error) {
	var added bool
	wl, err := s.edit(ctx, userID, symbol, func(cur []string, sym string) ([]string, error) {
		out, a, err := Toggle(cur, sym, s.maxSize)
		added = a
		return out, err
	})
	return wl, added, err
}

// ReorderSymbols replaces the order of userID's watchlist.
func (s *Service) ReorderSymbols(ctx context.Context, userID string, order []string) (*model.Watchlist, error) {
	normalized := make([]string, 0, len(order))
	for _, raw := range order {
		sym, err := asset.NormalizeSymbol(raw)
		if err != nil {
			return nil, err
		}
		normalized = append(normalized, sym)
	}
	return s.update(ctx, userID, func(cur []string) ([]string, error) {
		return Reorder(cur, normalized)
	})
}

func (s *Service) edit(ctx context.Context, userID, raw string, apply func([]string, string) ([]string, error)) (*model.Watchlist, error) {
	sym, err := asset.NormalizeSymbol(raw)
	if err != nil {
		return nil, err
	}
	return s.update(ctx, userID, func(cur []string) ([]string, error) {
		return apply(cur, sym)
	})
}

// update runs one read-modify-write of userID's watchlist under the user's
// lock. Only account holders have a watchlist to edit.
func (s *Service) update(ctx context.Context, userID string, apply func([]string) ([]string, error)) (*model.Watchlist, error) {
	mu := s.lockFor(userID)
	mu.Lock()
	defer mu.Unlock()

	if _, err := s.store.GetAccount(ctx, userID); err != nil {
		return nil, err
	}
	wl, err := s.store.GetWatchlist(ctx, userID)
	if err != nil {
		return nil, err
	}
	next, err := apply(wl.Symbols)
	if err != nil {
		return nil, err
	}
	return s.save(ctx, wl, next)
}

func (s *Service) save(ctx context.Context, wl *model.Watchlist, symbols []string) (*model.Watchlist, error) {
	wl.Symbols = symbols
	wl.UpdatedAt = s.now().UTC()
	if err := s.store.SaveWatchlist(ctx, wl); err != nil {
		return nil, err
	}
	slog.Debug("watchlist saved", "user", wl.UserID, "size", len(symbols))
	return wl, nil
}
