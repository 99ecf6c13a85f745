// Package asset holds the registry of tradable assets and symbol
// normalization/validation.
package asset

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/meditrade/trading-engine/internal/model"
)

// symbolRegex matches 1-10 upper-case letters or digits, e.g. BTC, MATIC.
var symbolRegex = regexp.MustCompile(`^[A-Z0-9]{1,10}$`)

// ErrUnknownAsset is returned by Registry.Lookup for unlisted symbols.
var ErrUnknownAsset = errors.New("asset: unknown symbol")

// Asset is a tradable instrument with the base price the quote board
// starts from.
type Asset struct {
	Symbol    string          `json:"symbol"`
	Name      string          `json:"name"`
	BasePrice decimal.Decimal `json:"base_price"`
}

// NormalizeSymbol trims and upper-cases s and validates the result.
func NormalizeSymbol(s string) (string, error) {
	sym := strings.ToUpper(strings.TrimSpace(s))
	if !symbolRegex.MatchString(sym) {
		return "", fmt.Errorf("%w: %q (expected 1-10 letters or digits)", model.ErrInvalidSymbol, s)
	}
	return sym, nil
}

// Registry is an immutable set of assets keyed by symbol.
type Registry struct {
	bySymbol map[string]Asset
	ordered  []Asset
}

// NewRegistry builds a registry. Symbols are normalized; duplicates and
// non-positive base prices are rejected.
func NewRegistry(assets []Asset) (*Registry, error) {
	r := &Registry{bySymbol: make(map[string]Asset, len(assets))}
	for _, a := range assets {
		sym, err := NormalizeSymbol(a.Symbol)
		if err != nil {
			return nil, err
		}
		if !a.BasePrice.IsPositive() {
			return nil, fmt.Errorf("asset %s: base price must be positive", sym)
		}
		if _, dup := r.bySymbol[sym]; dup {
			return nil, fmt.Errorf("asset %s: duplicate symbol", sym)
		}
		a.Symbol = sym
		r.bySymbol[sym] = a
		r.ordered = append(r.ordered, a)
	}
	return r, nil
}

// Lookup returns the asset for a (normalized) symbol.
func (r *Registry) Lookup(symbol string) (Asset, error) {
	a, ok := r.bySymbol[symbol]
	if !ok {
		return Asset{}, fmt.Errorf("%w: %s", ErrUnknownAsset, symbol)
	}
	return a, nil
}

// Name returns the display name for symbol, or the symbol itself if unknown.
func (r *Registry) Name(symbol string) string {
	if a, ok := r.bySymbol[symbol]; ok {
		return a.Name
	}
	return symbol
}

// Len returns the number of listed assets.
func (r *Registry) Len() int { return len(r.ordered) }

// All returns the assets in registration order.
func (r *Registry) All() []Asset {
	out := make([]Asset, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Symbols returns the listed symbols sorted alphabetically.
func (r *Registry) Symbols() []string {
	out := make([]string, 0, len(r.ordered))
	for _, a := range r.ordered {
		out = append(out, a.Symbol)
	}
	sort.Strings(out)
	return out
}

// Defaults are the listed crypto assets and their seed prices.
func Defaults() []Asset {
	return []Asset{
		{Symbol: "BTC", Name: "Bitcoin", BasePrice: decimal.RequireFromString("43250.75")},
		{Symbol: "ETH", Name: "Ethereum", BasePrice: decimal.RequireFromString("2280.50")},
		{Symbol: "BNB", Name: "Binance Coin", BasePrice: decimal.RequireFromString("315.20")},
		{Symbol: "SOL", Name: "Solana", BasePrice: decimal.RequireFromString("98.45")},
		{Symbol: "XRP", Name: "Ripple", BasePrice: decimal.RequireFromString("0.62")},
		{Symbol: "ADA", Name: "Cardano", BasePrice: decimal.RequireFromString("0.58")},
		{Symbol: "DOGE", Name: "Dogecoin", BasePrice: decimal.RequireFromString("0.085")},
		{Symbol: "MATIC", Name: "Polygon", BasePrice: decimal.RequireFromString("0.92")},
		{Symbol: "DOT", Name: "Polkadot", BasePrice: decimal.RequireFromString("7.35")},
		{Symbol: "AVAX", Name: "Avalanche", BasePrice: decimal.RequireFromString("36.80")},
	}
}

// DefaultRegistry returns a registry over Defaults.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(Defaults())
	if err != nil {
		panic(err) // static data
	}
	return r
}
