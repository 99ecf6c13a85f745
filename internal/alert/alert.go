// Package alert manages per-user price alerts and fires them against
// incoming quotes. An alert fires at most once.
package alert

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meditrade/trading-engine/internal/asset"
	"github.com/meditrade/trading-engine/internal/metrics"
	"github.com/meditrade/trading-engine/internal/model"
	"github.com/meditrade/trading-engine/internal/store"
)

// Notifier is told about every alert that fires.
type Notifier interface {
	AlertTriggered(a model.PriceAlert, price decimal.Decimal)
}

// Triggered is an alert that just fired, with the price that fired it.
type Triggered struct {
	model.PriceAlert
	CurrentPrice decimal.Decimal `json:"current_price"`
}

// ShouldTrigger reports whether price satisfies the alert's condition:
// above fires at or over the target, below at or under it.
func ShouldTrigger(a model.PriceAlert, price decimal.Decimal) bool {
	switch a.Condition {
	case model.ConditionAbove:
		return price.GreaterThanOrEqual(a.TargetPrice)
	case model.ConditionBelow:
		return price.LessThanOrEqual(a.TargetPrice)
	}
	return false
}

// Service creates, lists and fires price alerts.
type Service struct {
	store     store.Store
	quote     func(symbol string) (decimal.Decimal, bool)
	maxActive int
	notifier  Notifier
	locks     sync.Map // user id -> *sync.Mutex guarding the limit checks
	now       func() time.Time
}

// NewService creates an alert service. quote supplies the creation price
// when the caller omits one; notifier may be nil.
func NewService(st store.Store, quote func(string) (decimal.Decimal, bool), maxActive int, notifier Notifier) *Service {
	return &Service{store: st, quote: quote, maxActive: maxActive, notifier: notifier, now: time.Now}
}

func (s *Service) lockFor(userID string) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(userID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// CreateInput is a new alert request.
type CreateInput struct {
	Symbol       string           `json:"symbol"`
	TargetPrice  decimal.Decimal  `json:"target_price"`
	Condition    string           `json:"condition"`
	CurrentPrice *decimal.Decimal `json:"current_price,omitempty"`
}

// Create validates and stores a new alert for userID, who must have an
// account. A user may hold one active alert per symbol and condition, and
// at most maxActive active alerts in total. Creates for one user are
// serialized so concurrent requests cannot exceed either rule.
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (*model.PriceAlert, error) {
	sym, err := asset.NormalizeSymbol(in.Symbol)
	if err != nil {
		return nil, err
	}
	cond := strings.ToLower(strings.TrimSpace(in.Condition))
	if cond != model.ConditionAbove && cond != model.ConditionBelow {
		return nil, &model.ValidationError{Field: "condition", Message: "must be above or below"}
	}
	if !in.TargetPrice.IsPositive() {
		return nil, &model.ValidationError{Field: "target_price", Message: "must be greater than zero"}
	}

	priceAtCreation := decimal.Zero
	switch {
	case in.CurrentPrice != nil:
		if !in.CurrentPrice.IsPositive() {
			return nil, &model.ValidationError{Field: "current_price", Message: "must be greater than zero"}
		}
		priceAtCreation = *in.CurrentPrice
	case s.quote != nil:
		if p, ok := s.quote(sym); ok {
			priceAtCreation = p
		}
	}

	mu := s.lockFor(userID)
	mu.Lock()
	defer mu.Unlock()

	if _, err := s.store.GetAccount(ctx, userID); err != nil {
		return nil, err
	}
	existing, err := s.store.ListAlertsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	active := 0
	for _, a := range existing {
		if a.Triggered {
			continue
		}
		if a.Symbol == sym && a.Condition == cond {
			return nil, fmt.Errorf("%w: %s %s", model.ErrAlertExists, cond, sym)
		}
		active++
	}
	if active >= s.maxActive {
		return nil, fmt.Errorf("%w: maximum %d active alerts, delete some to add more", model.ErrAlertLimit, s.maxActive)
	}

	a := &model.PriceAlert{
		ID:              uuid.New().String(),
		UserID:          userID,
		Symbol:          sym,
		TargetPrice:     in.TargetPrice,
		Condition:       cond,
		PriceAtCreation: priceAtCreation,
		CreatedAt:       s.now().UTC(),
	}
	if err := s.store.CreateAlert(ctx, a); err != nil {
		return nil, err
	}
	slog.Info("alert created", "alert_id", a.ID, "user", userID, "symbol", sym, "condition", cond, "target", a.TargetPrice.String())
	return a, nil
}

// Delete removes one of userID's alerts. Deleting another user's alert is
// forbidden.
func (s *Service) Delete(ctx context.Context, userID, alertID string) error {
	a, err := s.store.GetAlert(ctx, alertID)
	if err != nil {
		return err
	}
	if a.UserID != userID {
		return fmt.Errorf("%w: alert belongs to another user", model.ErrForbidden)
	}
	return s.store.DeleteAlert(ctx, alertID)
}

// TriggeredFor returns userID's fired alerts, most recently fired first.
func (s *Service) TriggeredFor(ctx context.Context, userID string) ([]model.PriceAlert, error) {
	all, err := s.store.ListAlertsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := []model.PriceAlert{}
	for _, a := range all {
		if a.Triggered {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TriggeredAt.After(*out[j].TriggeredAt)
	})
	return out, nil
}

// CheckQuotes fires every active alert whose condition holds at the quoted
// price. Symbols without a quote are skipped. An alert that another check
// fired first is not reported again.
func (s *Service) CheckQuotes(ctx context.Context, quotes []model.Quote) ([]Triggered, error) {
	prices := make(map[string]decimal.Decimal, len(quotes))
	for _, q := range quotes {
		prices[strings.ToUpper(q.Symbol)] = q.Price
	}

	active, err := s.store.ListActiveAlerts(ctx)
	if err != nil {
		return nil, err
	}

	out := []Triggered{}
	for _, a := range active {
		price, ok := prices[a.Symbol]
		if !ok || !ShouldTrigger(a, price) {
			continue
		}
		at := s.now().UTC()
		fired, err := s.store.MarkAlertTriggered(ctx, a.ID, at)
		if err != nil {
			return out, fmt.Errorf("trigger alert %s: %w", a.ID, err)
		}
		if !fired {
			continue
		}
		a.Triggered = true
		a.TriggeredAt = &at

		metrics.AlertsTriggered.WithLabelValues(a.Condition).Inc()
		slog.Info("alert triggered",
			"alert_id", a.ID,
			"user", a.UserID,
			"symbol", a.Symbol,
			"condition", a.Condition,
			"target", a.TargetPrice.String(),
			"price", price.String(),
		)
		if s.notifier != nil {
			s.notifier.AlertTriggered(a, price)
		}
		out = append(out, Triggered{PriceAlert: a, CurrentPrice: price})
	}
	return out, nil
}
