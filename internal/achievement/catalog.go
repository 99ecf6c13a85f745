// Package achievement evaluates trading milestones against a user's trade
// history and account snapshot and records one-time badge unlocks.
package achievement

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// Category groups achievements for display.
type Category string

const (
	CategoryTrading   Category = "trading"
	CategoryProfit    Category = "profit"
	CategoryPortfolio Category = "portfolio"
	CategoryDiversity Category = "diversity"
	CategorySpecial   Category = "special"
)

// Categories lists every category in display and evaluation order.
var Categories = []Category{CategoryTrading, CategoryProfit, CategoryPortfolio, CategoryDiversity, CategorySpecial}

func categoryRank(c Category) int {
	for i, cat := range Categories {
		if cat == c {
			return i
		}
	}
	return len(Categories)
}

// Metric is the statistic an achievement's threshold is compared with.
type Metric string

const (
	MetricTotalTrades    Metric = "total_trades"
	MetricSellTrades     Metric = "sell_trades"
	MetricProfitEstimate Metric = "profit_estimate"
	MetricPortfolioValue Metric = "portfolio_value"
	MetricHoldingsCount  Metric = "holdings_count"
	MetricAlways         Metric = "always" // unlocks on the first check
	MetricManual         Metric = "manual" // listed, never unlocked by evaluation
)

// Definition is one catalog entry.
type Definition struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Icon        string          `json:"icon"`
	Category    Category        `json:"category"`
	Rarity      string          `json:"rarity"`
	Metric      Metric          `json:"metric"`
	Threshold   decimal.Decimal `json:"threshold"`
}

// Catalog is an immutable, validated list of definitions ordered by
// category, then ascending threshold.
type Catalog struct {
	defs []Definition
	byID map[string]Definition
}

// NewCatalog validates defs and fixes their evaluation order. Duplicate ids
// and unknown metrics are rejected.
func NewCatalog(defs []Definition) (*Catalog, error) {
	c := &Catalog{
		defs: make([]Definition, len(defs)),
		byID: make(map[string]Definition, len(defs)),
	}
	copy(c.defs, defs)
	for _, d := range c.defs {
		if d.ID == "" {
			return nil, fmt.Errorf("achievement %q: id is required", d.Name)
		}
		if _, dup := c.byID[d.ID]; dup {
			return nil, fmt.Errorf("achievement %s: duplicate id", d.ID)
		}
		switch d.Metric {
		case MetricTotalTrades, MetricSellTrades, MetricProfitEstimate,
			MetricPortfolioValue, MetricHoldingsCount, MetricAlways, MetricManual:
		default:
			return nil, fmt.Errorf("achievement %s: unknown metric %q", d.ID, d.Metric)
		}
		c.byID[d.ID] = d
	}
	sort.SliceStable(c.defs, func(i, j int) bool {
		ri, rj := categoryRank(c.defs[i].Category), categoryRank(c.defs[j].Category)
		if ri != rj {
			return ri < rj
		}
		return c.defs[i].Threshold.LessThan(c.defs[j].Threshold)
	})
	return c, nil
}

// All returns the definitions in evaluation order.
func (c *Catalog) All() []Definition {
	out := make([]Definition, len(c.defs))
	copy(out, c.defs)
	return out
}

// Lookup returns the definition for id.
func (c *Catalog) Lookup(id string) (Definition, bool) {
	d, ok := c.byID[id]
	return d, ok
}

// Len returns the number of definitions.
func (c *Catalog) Len() int { return len(c.defs) }

func def(id, name, desc, icon string, cat Category, rarity string, m Metric, threshold int64) Definition {
	return Definition{
		ID:          id,
		Name:        name,
		Description: desc,
		Icon:        icon,
		Category:    cat,
		Rarity:      rarity,
		Metric:      m,
		Threshold:   decimal.NewFromInt(threshold),
	}
}

// DefaultDefinitions is the platform's badge set.
func DefaultDefinitions() []Definition {
	return []Definition{
		def("first_trade", "First Steps", "Complete your first trade", "🎯", CategoryTrading, "common", MetricTotalTrades, 1),
		def("trader_10", "Getting Started", "Complete 10 trades", "📈", CategoryTrading, "common", MetricTotalTrades, 10),
		def("trader_50", "Active Trader", "Complete 50 trades", "🔥", CategoryTrading, "uncommon", MetricTotalTrades, 50),
		def("trader_100", "Trading Pro", "Complete 100 trades", "⚡", CategoryTrading, "rare", MetricTotalTrades, 100),
		def("trader_500", "Trading Legend", "Complete 500 trades", "👑", CategoryTrading, "legendary", MetricTotalTrades, 500),

		def("first_profit", "In The Green", "Make your first profitable trade", "💚", CategoryProfit, "common", MetricSellTrades, 1),
		def("profit_1k", "Thousand Dollar Club", "Earn $1,000 in total profits", "💰", CategoryProfit, "uncommon", MetricProfitEstimate, 1_000),
		def("profit_10k", "Big Earner", "Earn $10,000 in total profits", "💎", CategoryProfit, "rare", MetricProfitEstimate, 10_000),
		def("profit_100k", "Whale Status", "Earn $100,000 in total profits", "🐋", CategoryProfit, "legendary", MetricProfitEstimate, 100_000),

		def("portfolio_10k", "Building Wealth", "Reach $10,000 portfolio value", "📊", CategoryPortfolio, "common", MetricPortfolioValue, 10_000),
		def("portfolio_50k", "Serious Investor", "Reach $50,000 portfolio value", "🏆", CategoryPortfolio, "uncommon", MetricPortfolioValue, 50_000),
		def("portfolio_100k", "Six Figure Club", "Reach $100,000 portfolio value", "🌟", CategoryPortfolio, "rare", MetricPortfolioValue, 100_000),
		def("portfolio_1m", "Millionaire", "Reach $1,000,000 portfolio value", "🎖️", CategoryPortfolio, "legendary", MetricPortfolioValue, 1_000_000),

		def("diversified_3", "Diversifying", "Hold 3 different cryptocurrencies", "🎨", CategoryDiversity, "common", MetricHoldingsCount, 3),
		def("diversified_5", "Well Balanced", "Hold 5 different cryptocurrencies", "⚖️", CategoryDiversity, "uncommon", MetricHoldingsCount, 5),
		def("diversified_all", "Collector", "Hold all available cryptocurrencies", "🏅", CategoryDiversity, "rare", MetricHoldingsCount, 10),

		def("early_bird", "Early Bird", "Join MediTrade platform", "🐣", CategorySpecial, "common", MetricAlways, 0),
		def("diamond_hands", "Diamond Hands", "Hold a position for 7 days without selling", "💎", CategorySpecial, "uncommon", MetricManual, 0),
		def("top_10", "Top Performer", "Reach top 10 on the leaderboard", "🥇", CategorySpecial, "rare", MetricManual, 0),
		def("top_3", "Elite Trader", "Reach top 3 on the leaderboard", "👑", CategorySpecial, "legendary", MetricManual, 0),
	}
}

// DefaultCatalog returns a catalog over DefaultDefinitions.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(DefaultDefinitions())
	if err != nil {
		panic(err) // static data
	}
	return c
}
