// Package analytics summarizes a user's trade history.
package analytics

import (
	"fmt"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/shopspring/decimal"

	"github.com/meditrade/trading-engine/internal/model"
)

// Summary describes a trade history. Size statistics are computed over
// trade totals and rounded to cents; they are descriptive only and never
// feed back into balances.
type Summary struct {
	TotalTrades      int             `json:"total_trades"`
	BuyTrades        int             `json:"buy_trades"`
	SellTrades       int             `json:"sell_trades"`
	TotalVolume      decimal.Decimal `json:"total_volume"`
	BuyVolume        decimal.Decimal `json:"buy_volume"`
	SellVolume       decimal.Decimal `json:"sell_volume"`
	LargestTrade     decimal.Decimal `json:"largest_trade"`
	MeanTradeSize    decimal.Decimal `json:"mean_trade_size"`
	MedianTradeSize  decimal.Decimal `json:"median_trade_size"`
	StdDevTradeSize  decimal.Decimal `json:"stddev_trade_size"`
	SymbolsTraded    int             `json:"symbols_traded"`
	MostTradedSymbol string          `json:"most_traded_symbol,omitempty"`
	FirstTradeAt     *time.Time      `json:"first_trade_at,omitempty"`
	LastTradeAt      *time.Time      `json:"last_trade_at,omitempty"`
}

// Summarize computes a Summary. An empty history yields zero values.
func Summarize(trades []model.Trade) (Summary, error) {
	s := Summary{
		TotalVolume:     decimal.Zero,
		BuyVolume:       decimal.Zero,
		SellVolume:      decimal.Zero,
		LargestTrade:    decimal.Zero,
		MeanTradeSize:   decimal.Zero,
		MedianTradeSize: decimal.Zero,
		StdDevTradeSize: decimal.Zero,
	}
	if len(trades) == 0 {
		return s, nil
	}

	sizes := make(stats.Float64Data, 0, len(trades))
	counts := make(map[string]int)
	for i := range trades {
		t := trades[i]
		s.TotalTrades++
		s.TotalVolume = s.TotalVolume.Add(t.Total)
		if t.Side == model.SideBuy {
			s.BuyTrades++
			s.BuyVolume = s.BuyVolume.Add(t.Total)
		} else {
			s.SellTrades++
			s.SellVolume = s.SellVolume.Add(t.Total)
		}
		if t.Total.GreaterThan(s.LargestTrade) {
			s.LargestTrade = t.Total
		}
		sizes = append(sizes, t.Total.InexactFloat64())
		counts[t.Symbol]++

		at := t.CreatedAt
		if s.FirstTradeAt == nil || at.Before(*s.FirstTradeAt) {
			s.FirstTradeAt = &at
		}
		if s.LastTradeAt == nil || at.After(*s.LastTradeAt) {
			s.LastTradeAt = &at
		}
	}

	s.SymbolsTraded = len(counts)
	best := 0
	for sym, n := range counts {
		if n > best || (n == best && sym < s.MostTradedSymbol) {
			best, s.MostTradedSymbol = n, sym
		}
	}

	mean, err := sizes.Mean()
	if err != nil {
		return s, fmt.Errorf("mean trade size: %w", err)
	}
	median, err := sizes.Median()
	if err != nil {
		return s, fmt.Errorf("median trade size: %w", err)
	}
	sd, err := stats.StandardDeviationPopulation(sizes)
	if err != nil {
		return s, fmt.Errorf("trade size deviation: %w", err)
	}
	s.MeanTradeSize = decimal.NewFromFloat(mean).Round(2)
	s.MedianTradeSize = decimal.NewFromFloat(median).Round(2)
	s.StdDevTradeSize = decimal.NewFromFloat(sd).Round(2)
	return s, nil
}
