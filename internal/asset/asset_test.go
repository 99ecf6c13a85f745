package asset

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/meditrade/trading-engine/internal/model"
)

func TestNormalizeSymbol_Valid(t *testing.T) {
	tests := map[string]string{
		"btc":   "BTC",
		" Eth ": "ETH",
		"MATIC": "MATIC",
		"1inch": "1INCH",
	}
	for in, want := range tests {
		got, err := NormalizeSymbol(in)
		if err != nil {
			t.Fatalf("NormalizeSymbol(%q): unexpected error: %v", in, err)
		}
		if got != want {
			t.Errorf("NormalizeSymbol(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeSymbol_Invalid(t *testing.T) {
	for _, in := range []string{"", "   ", "BTC-USD", "ABCDEFGHIJK", "bt c"} {
		_, err := NormalizeSymbol(in)
		if !errors.Is(err, model.ErrInvalidSymbol) {
			t.Errorf("NormalizeSymbol(%q): expected ErrInvalidSymbol, got %v", in, err)
		}
	}
}

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()
	if r.Len() != 10 {
		t.Fatalf("expected 10 assets, got %d", r.Len())
	}
	btc, err := r.Lookup("BTC")
	if err != nil {
		t.Fatalf("lookup BTC: %v", err)
	}
	if btc.Name != "Bitcoin" || !btc.BasePrice.Equal(decimal.RequireFromString("43250.75")) {
		t.Errorf("unexpected BTC asset: %+v", btc)
	}
	if _, err := r.Lookup("LINK"); !errors.Is(err, ErrUnknownAsset) {
		t.Errorf("expected ErrUnknownAsset, got %v", err)
	}
	if r.Name("LINK") != "LINK" {
		t.Errorf("unknown symbol should name itself")
	}
	syms := r.Symbols()
	if syms[0] != "ADA" || syms[len(syms)-1] != "XRP" {
		t.Errorf("symbols not sorted: %v", syms)
	}
}

func TestNewRegistry_Rejects(t *testing.T) {
	one := decimal.NewFromInt(1)
	if _, err := NewRegistry([]Asset{{Symbol: "BTC", BasePrice: one}, {Symbol: "btc", BasePrice: one}}); err == nil {
		t.Error("expected duplicate error")
	}
	if _, err := NewRegistry([]Asset{{Symbol: "BTC", BasePrice: decimal.Zero}}); err == nil {
		t.Error("expected base price error")
	}
	if _, err := NewRegistry([]Asset{{Symbol: "B-1", BasePrice: one}}); err == nil {
		t.Error("expected symbol error")
	}
}
