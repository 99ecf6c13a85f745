package model

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain-level error handling.
// The httpx package maps these to HTTP status codes via KindOf.
var (
	ErrInvalidQuantity      = errors.New("quantity must be greater than zero")
	ErrInvalidPrice         = errors.New("price must be greater than zero")
	ErrInvalidSide          = errors.New("side must be buy or sell")
	ErrInvalidAmount        = errors.New("amount must be greater than zero")
	ErrInvalidSymbol        = errors.New("invalid symbol")
	ErrInsufficientFunds    = errors.New("insufficient balance")
	ErrInsufficientHoldings = errors.New("insufficient holdings")
	ErrNotFound             = errors.New("not found")
	ErrConflict             = errors.New("concurrent modification, reload and retry")
	ErrAlreadyExists        = errors.New("already exists")
	ErrAlreadyUnlocked      = errors.New("achievement already unlocked")
	ErrAlertExists          = errors.New("an active alert with this condition already exists")
	ErrAlertLimit           = errors.New("active alert limit reached")
	ErrWatchlistLimit       = errors.New("watchlist limit reached")
	ErrAlreadyWatched       = errors.New("symbol already in watchlist")
	ErrNotWatched           = errors.New("symbol not in watchlist")
	ErrForbidden            = errors.New("forbidden")
)

// ValidationError represents a request validation failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// PersistenceError wraps a storage failure. Callers must not retry the
// operation blindly: the write may have been partially applied upstream.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Persistence wraps err as a *PersistenceError unless it is nil or already
// a domain error the caller can act on.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrAlreadyUnlocked) || errors.Is(err, ErrAlreadyExists) {
		return err
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

// Kind is a stable, machine-readable error category.
type Kind string

const (
	KindValidation           Kind = "validation_error"
	KindInsufficientFunds    Kind = "insufficient_funds"
	KindInsufficientHoldings Kind = "insufficient_holdings"
	KindNotFound             Kind = "not_found"
	KindConflict             Kind = "conflict"
	KindForbidden            Kind = "forbidden"
	KindPersistence          Kind = "persistence_error"
	KindInternal             Kind = "internal_error"
)

// KindOf classifies err.
func KindOf(err error) Kind {
	var ve *ValidationError
	var pe *PersistenceError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ve),
		errors.Is(err, ErrInvalidQuantity),
		errors.Is(err, ErrInvalidPrice),
		errors.Is(err, ErrInvalidSide),
		errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrInvalidSymbol),
		errors.Is(err, ErrAlertExists),
		errors.Is(err, ErrAlertLimit),
		errors.Is(err, ErrWatchlistLimit),
		errors.Is(err, ErrAlreadyWatched),
		errors.Is(err, ErrNotWatched):
		return KindValidation
	case errors.Is(err, ErrInsufficientFunds):
		return KindInsufficientFunds
	case errors.Is(err, ErrInsufficientHoldings):
		return KindInsufficientHoldings
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrConflict), errors.Is(err, ErrAlreadyExists), errors.Is(err, ErrAlreadyUnlocked):
		return KindConflict
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.As(err, &pe):
		return KindPersistence
	default:
		return KindInternal
	}
}
