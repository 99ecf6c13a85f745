// Package store defines the persistence interface for the trading engine.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing and development).
package store

import (
	"context"
	"time"

	"github.com/meditrade/trading-engine/internal/model"
)

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer.
//
// Lookups of a missing record return an error wrapping model.ErrNotFound.
// Any other storage failure is returned as a *model.PersistenceError.
type Store interface {
	// --- Accounts ---

	// CreateAccount persists a new account with its holdings. A second
	// account with the same email returns model.ErrAlreadyExists.
	CreateAccount(ctx context.Context, acct *model.Account) error

	// GetAccount returns the account with its holdings.
	GetAccount(ctx context.Context, userID string) (*model.Account, error)

	// ListAccounts returns every account with its holdings.
	ListAccounts(ctx context.Context) ([]model.Account, error)

	// --- Atomic commits ---

	// CommitTrade writes acct's balance and holdings and appends trade, all
	// or nothing. acct.Version must equal the stored version (the one the
	// caller read); otherwise nothing is written and model.ErrConflict is
	// returned. On success acct.Version is advanced.
	CommitTrade(ctx context.Context, acct *model.Account, trade *model.Trade) error

	// CommitTransaction is CommitTrade for wallet deposits and withdrawals.
	CommitTransaction(ctx context.Context, acct *model.Account, tx *model.Transaction) error

	// --- Immutable journals ---

	// ListTradesByUser returns a user's trades, newest first. limit <= 0
	// returns all of them.
	ListTradesByUser(ctx context.Context, userID string, limit int) ([]model.Trade, error)

	// ListTransactionsByUser returns a user's wallet transactions, newest
	// first. limit <= 0 returns all of them.
	ListTransactionsByUser(ctx context.Context, userID string, limit int) ([]model.Transaction, error)

	// ListTrades and ListTransactions are the platform-wide journals,
	// newest first. limit <= 0 returns everything.
	ListTrades(ctx context.Context, limit int) ([]model.Trade, error)
	ListTransactions(ctx context.Context, limit int) ([]model.Transaction, error)

	// --- Achievements ---

	// InsertAchievementUnlock records an unlock. A duplicate
	// (user, achievement) pair returns model.ErrAlreadyUnlocked.
	InsertAchievementUnlock(ctx context.Context, u *model.AchievementUnlock) error

	// ListAchievementUnlocks returns a user's unlocks, newest first.
	ListAchievementUnlocks(ctx context.Context, userID string) ([]model.AchievementUnlock, error)

	// CountUnlocksByUser returns the number of unlocks per user id.
	CountUnlocksByUser(ctx context.Context) (map[string]int, error)

	// --- Price alerts ---

	CreateAlert(ctx context.Context, a *model.PriceAlert) error
	GetAlert(ctx context.Context, id string) (*model.PriceAlert, error)

	// ListAlertsByUser returns a user's alerts, newest first.
	ListAlertsByUser(ctx context.Context, userID string) ([]model.PriceAlert, error)

	DeleteAlert(ctx context.Context, id string) error

	// ListActiveAlerts returns every untriggered alert.
	ListActiveAlerts(ctx context.Context) ([]model.PriceAlert, error)

	// MarkAlertTriggered flags an untriggered alert as triggered at the given
	// time. It reports false if the alert was already triggered or is gone,
	// so each alert fires at most once.
	MarkAlertTriggered(ctx context.Context, id string, at time.Time) (bool, error)

	// --- Watchlists ---

	// GetWatchlist returns the user's watchlist, or an empty one if the user
	// never saved one.
	GetWatchlist(ctx context.Context, userID string) (*model.Watchlist, error)

	// SaveWatchlist replaces the user's watchlist.
	SaveWatchlist(ctx context.Context, wl *model.Watchlist) error
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*PostgresStore)(nil)
	_ Store = (*CachedStore)(nil)
)
