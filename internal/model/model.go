// Package model defines the core domain types shared across the trading engine.
// All monetary values and quantities use shopspring/decimal; never float64 for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of a trade.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Valid reports whether s is buy or sell.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// Account roles. Only RoleUser accounts are ranked.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Account is one user's ledger: cash balance plus asset holdings.
// Balance is never negative and holdings never carry a zero quantity.
type Account struct {
	UserID    string          `json:"user_id" db:"user_id"`
	Name      string          `json:"name" db:"name"`
	Email     string          `json:"email" db:"email"`
	Role      string          `json:"role" db:"role"`
	Balance   decimal.Decimal `json:"balance" db:"balance"`
	Holdings  []Holding       `json:"holdings"`
	Version   int64           `json:"version" db:"version"` // bumped on every committed mutation
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// Holding is a quantity of one symbol plus its weighted average acquisition cost.
type Holding struct {
	Symbol      string          `json:"symbol" db:"symbol"`
	Quantity    decimal.Decimal `json:"quantity" db:"quantity"`
	AverageCost decimal.Decimal `json:"average_cost" db:"average_cost"`
}

// Holding returns the holding for symbol, if any.
func (a Account) Holding(symbol string) (Holding, bool) {
	for _, h := range a.Holdings {
		if h.Symbol == symbol {
			return h, true
		}
	}
	return Holding{}, false
}

// Clone returns a deep copy so callers can mutate without aliasing the
// holdings slice of the original.
func (a Account) Clone() Account {
	c := a
	c.Holdings = make([]Holding, len(a.Holdings))
	copy(c.Holdings, a.Holdings)
	return c
}

// Trade is an immutable record of one executed buy or sell.
// Once created, these are never modified or deleted.
type Trade struct {
	ID        string          `json:"id" db:"id"`
	UserID    string          `json:"user_id" db:"user_id"`
	Symbol    string          `json:"symbol" db:"symbol"`
	Side      Side            `json:"side" db:"side"`
	Quantity  decimal.Decimal `json:"quantity" db:"quantity"`
	Price     decimal.Decimal `json:"price" db:"price"`
	Total     decimal.Decimal `json:"total" db:"total"` // quantity * price
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// Transaction types.
const (
	TransactionDeposit  = "deposit"
	TransactionWithdraw = "withdraw"
)

// Transaction is an immutable wallet deposit or withdrawal.
type Transaction struct {
	ID          string          `json:"id" db:"id"`
	UserID      string          `json:"user_id" db:"user_id"`
	Type        string          `json:"type" db:"type"`
	Amount      decimal.Decimal `json:"amount" db:"amount"`
	Status      string          `json:"status" db:"status"` // always "completed" today
	Description string          `json:"description" db:"description"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// AchievementUnlock is the one-time grant of a badge. Unique per
// (UserID, AchievementID).
type AchievementUnlock struct {
	UserID        string    `json:"user_id" db:"user_id"`
	AchievementID string    `json:"achievement_id" db:"achievement_id"`
	UnlockedAt    time.Time `json:"unlocked_at" db:"unlocked_at"`
}

// Alert conditions.
const (
	ConditionAbove = "above"
	ConditionBelow = "below"
)

// PriceAlert fires once when a symbol's quote crosses TargetPrice in the
// direction given by Condition.
type PriceAlert struct {
	ID              string          `json:"id" db:"id"`
	UserID          string          `json:"user_id" db:"user_id"`
	Symbol          string          `json:"symbol" db:"symbol"`
	TargetPrice     decimal.Decimal `json:"target_price" db:"target_price"`
	Condition       string          `json:"condition" db:"condition"`
	PriceAtCreation decimal.Decimal `json:"price_at_creation" db:"price_at_creation"`
	Triggered       bool            `json:"triggered" db:"triggered"`
	TriggeredAt     *time.Time      `json:"triggered_at,omitempty" db:"triggered_at"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
}

// Watchlist is the ordered list of symbols a user follows.
type Watchlist struct {
	UserID    string    `json:"user_id" db:"user_id"`
	Symbols   []string  `json:"symbols" db:"symbols"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Quote is a price for a symbol at a point in time.
type Quote struct {
	Symbol    string          `json:"symbol"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Change24h decimal.Decimal `json:"change_24h"` // percent
	UpdatedAt time.Time       `json:"updated_at"`
}
