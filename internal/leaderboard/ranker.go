// Package leaderboard ranks traders by net worth marked to live quotes.
// Rankings are recomputed from account snapshots on every call; nothing
// here is persisted or cached.
package leaderboard

import (
	"github.com/google/btree"
	"github.com/shopspring/decimal"

	"github.com/meditrade/trading-engine/internal/ledger"
	"github.com/meditrade/trading-engine/internal/model"
)

const (
	DefaultPageSize = 10
	treeDegree      = 16
)

var hundred = decimal.NewFromInt(100)

// QuoteFunc returns the current price of symbol, or false if it has none.
type QuoteFunc func(symbol string) (decimal.Decimal, bool)

// Entry is one ranked trader.
type Entry struct {
	Rank              int             `json:"rank"`
	UserID            string          `json:"user_id"`
	Name              string          `json:"name"`
	Balance           decimal.Decimal `json:"balance"`
	HoldingsValue     decimal.Decimal `json:"holdings_value"`
	TotalValue        decimal.Decimal `json:"total_value"`
	ProfitLoss        decimal.Decimal `json:"profit_loss"`
	ProfitLossPercent decimal.Decimal `json:"profit_loss_percent"`
	HoldingsCount     int             `json:"holdings_count"`
}

// Stats aggregate over every ranked trader, not just the requested page.
type Stats struct {
	TotalTraders      int             `json:"total_traders"`
	TotalVolume       decimal.Decimal `json:"total_volume"` // sum of total values
	AvgProfit         decimal.Decimal `json:"avg_profit"`   // mean profit/loss percent
	ProfitableTraders int             `json:"profitable_traders"`
}

// Pagination describes the returned slice.
type Pagination struct {
	Page         int `json:"page"`
	Limit        int `json:"limit"`
	TotalPages   int `json:"total_pages"`
	TotalTraders int `json:"total_traders"`
}

// Page is one page of the ranking.
type Page struct {
	Entries    []Entry    `json:"entries"`
	Stats      Stats      `json:"stats"`
	Pagination Pagination `json:"pagination"`
}

// byValue orders entries by total value descending, then user id ascending
// so exact ties have a stable order.
func byValue(a, b Entry) bool {
	if c := a.TotalValue.Cmp(b.TotalValue); c != 0 {
		return c > 0
	}
	return a.UserID < b.UserID
}

// RankAll values every user-role account and returns all entries in rank
// order, with Rank set 1..N. Holdings whose symbol has no quote count as
// zero.
func RankAll(accounts []model.Account, quote QuoteFunc, startingBalance decimal.Decimal) []Entry {
	tree := btree.NewG[Entry](treeDegree, byValue)
	for _, a := range accounts {
		if a.Role != model.RoleUser {
			continue
		}
		tree.ReplaceOrInsert(value(a, quote, startingBalance))
	}

	entries := make([]Entry, 0, tree.Len())
	tree.Ascend(func(e Entry) bool {
		e.Rank = len(entries) + 1
		entries = append(entries, e)
		return true
	})
	return entries
}

// Rank returns the requested 1-based page of the ranking plus aggregate
// stats. page < 1 is treated as 1 and pageSize < 1 as DefaultPageSize.
// A page past the end has no entries.
func Rank(accounts []model.Account, quote QuoteFunc, startingBalance decimal.Decimal, page, pageSize int) Page {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}

	all := RankAll(accounts, quote, startingBalance)
	n := len(all)

	stats := Stats{TotalTraders: n, TotalVolume: decimal.Zero, AvgProfit: decimal.Zero}
	pctSum := decimal.Zero
	for _, e := range all {
		stats.TotalVolume = stats.TotalVolume.Add(e.TotalValue)
		pctSum = pctSum.Add(e.ProfitLossPercent)
		if e.ProfitLoss.IsPositive() {
			stats.ProfitableTraders++
		}
	}
	if n > 0 {
		stats.AvgProfit = pctSum.Div(decimal.NewFromInt(int64(n))).Round(2)
	}

	// Bound page before multiplying so huge page numbers cannot overflow.
	start := n
	if page-1 <= n/pageSize {
		start = min((page-1)*pageSize, n)
	}
	end := n
	if pageSize < n-start {
		end = start + pageSize
	}
	totalPages := n / pageSize
	if n%pageSize != 0 {
		totalPages++
	}

	return Page{
		Entries: append([]Entry{}, all[start:end]...),
		Stats:   stats,
		Pagination: Pagination{
			Page:         page,
			Limit:        pageSize,
			TotalPages:   totalPages,
			TotalTraders: n,
		},
	}
}

func value(a model.Account, quote QuoteFunc, startingBalance decimal.Decimal) Entry {
	holdingsValue := ledger.MarkToMarket(a.Holdings, quote)
	total := a.Balance.Add(holdingsValue)
	pl := total.Sub(startingBalance)
	pct := decimal.Zero
	if startingBalance.IsPositive() {
		pct = pl.Div(startingBalance).Mul(hundred).Round(2)
	}
	return Entry{
		UserID:            a.UserID,
		Name:              a.Name,
		Balance:           a.Balance,
		HoldingsValue:     holdingsValue,
		TotalValue:        total,
		ProfitLoss:        pl,
		ProfitLossPercent: pct,
		HoldingsCount:     len(a.Holdings),
	}
}
