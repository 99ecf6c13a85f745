// Package quote provides the mock price feed: an in-process board of quotes
// that moves by a bounded random step on every tick.
package quote

import (
	"context"
	"log/slog"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meditrade/trading-engine/internal/asset"
	"github.com/meditrade/trading-engine/internal/model"
)

const (
	// MaxStepPercent bounds a single tick's move in either direction.
	MaxStepPercent = 2.5
	priceScale     = 8
)

var (
	minPrice = decimal.New(1, -priceScale)
	hundred  = decimal.NewFromInt(100)
)

type entry struct {
	name    string
	open    decimal.Decimal
	price   decimal.Decimal
	updated time.Time
}

// Board holds the current price of every listed asset. It is safe for
// concurrent use.
type Board struct {
	mu     sync.RWMutex
	quotes map[string]*entry
	order  []string // symbols, sorted; fixes the draw order of a tick
	rng    *rand.Rand
	now    func() time.Time
}

// Option configures a Board.
type Option func(*Board)

// WithRand sets the random source. A seeded source makes the sequence of
// ticks reproducible.
func WithRand(r *rand.Rand) Option {
	return func(b *Board) { b.rng = r }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(b *Board) { b.now = now }
}

// NewBoard seeds a board at each asset's base price.
func NewBoard(reg *asset.Registry, opts ...Option) *Board {
	b := &Board{
		quotes: make(map[string]*entry, reg.Len()),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		now:    time.Now,
	}
	for _, o := range opts {
		o(b)
	}
	at := b.now().UTC()
	for _, a := range reg.All() {
		b.quotes[a.Symbol] = &entry{name: a.Name, open: a.BasePrice, price: a.BasePrice, updated: at}
		b.order = append(b.order, a.Symbol)
	}
	sort.Strings(b.order)
	return b
}

// Price returns the current price of symbol.
func (b *Board) Price(symbol string) (decimal.Decimal, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	e, ok := b.quotes[symbol]
	if !ok {
		return decimal.Zero, false
	}
	return e.price, true
}

// Quote returns the full quote for symbol.
func (b *Board) Quote(symbol string) (model.Quote, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	e, ok := b.quotes[symbol]
	if !ok {
		return model.Quote{}, false
	}
	return toQuote(symbol, e), true
}

// Snapshot returns every quote, sorted by symbol.
func (b *Board) Snapshot() []model.Quote {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.snapshotLocked()
}

// Tick moves every price by a random step within ±MaxStepPercent and returns
// the new quotes.
func (b *Board) Tick() []model.Quote {
	b.mu.Lock()
	defer b.mu.Unlock()

	at := b.now().UTC()
	for _, sym := range b.order {
		e := b.quotes[sym]
		step := (b.rng.Float64()*2 - 1) * MaxStepPercent
		factor := decimal.NewFromInt(1).Add(decimal.NewFromFloat(step).Div(hundred))
		next := e.price.Mul(factor).Round(priceScale)
		if next.LessThan(minPrice) {
			next = minPrice
		}
		e.price = next
		e.updated = at
	}
	return b.snapshotLocked()
}

// Run ticks the board every interval until ctx is cancelled, handing each
// snapshot to onTick.
func (b *Board) Run(ctx context.Context, every time.Duration, logger *slog.Logger, onTick func(context.Context, []model.Quote)) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	logger.Info("price feed started", "tick_every", every.String(), "symbols", len(b.quotes))
	for {
		select {
		case <-ctx.Done():
			logger.Info("price feed stopped")
			return
		case <-ticker.C:
			quotes := b.Tick()
			logger.Debug("price tick", "symbols", len(quotes))
			if onTick != nil {
				onTick(ctx, quotes)
			}
		}
	}
}

func (b *Board) snapshotLocked() []model.Quote {
	out := make([]model.Quote, 0, len(b.order))
	for _, sym := range b.order {
		out = append(out, toQuote(sym, b.quotes[sym]))
	}
	return out
}

func toQuote(symbol string, e *entry) model.Quote {
	return model.Quote{
		Symbol:    symbol,
		Name:      e.name,
		Price:     e.price,
		Change24h: e.price.Sub(e.open).Div(e.open).Mul(hundred).Round(2),
		UpdatedAt: e.updated,
	}
}
