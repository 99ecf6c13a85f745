package achievement

import (
	"github.com/shopspring/decimal"

	"github.com/meditrade/trading-engine/internal/ledger"
	"github.com/meditrade/trading-engine/internal/model"
)

// profitEstimateRate approximates realized profit as a fixed share of sell
// proceeds. It ignores cost basis and is not an accounting figure.
var profitEstimateRate = decimal.NewFromFloat(0.1)

// Stats are the aggregates thresholds are compared against.
type Stats struct {
	TotalTrades    int             `json:"total_trades"`
	SellTrades     int             `json:"sell_trades"`
	ProfitEstimate decimal.Decimal `json:"profit_estimate"`
	HoldingsCount  int             `json:"holdings_count"`
	PortfolioValue decimal.Decimal `json:"portfolio_value"` // balance + holdings at cost
}

// ComputeStats derives Stats from a full trade history and the current
// account. Portfolio value uses average cost, not live quotes.
func ComputeStats(acct model.Account, trades []model.Trade) Stats {
	st := Stats{TotalTrades: len(trades)}
	sellTotal := decimal.Zero
	for _, t := range trades {
		if t.Side == model.SideSell {
			st.SellTrades++
			sellTotal = sellTotal.Add(t.Total)
		}
	}
	st.ProfitEstimate = sellTotal.Mul(profitEstimateRate)

	for _, h := range acct.Holdings {
		if h.Quantity.IsPositive() {
			st.HoldingsCount++
		}
	}
	st.PortfolioValue = acct.Balance.Add(ledger.CostValue(acct.Holdings))
	return st
}

// Evaluator decides which catalog entries a user qualifies for.
type Evaluator struct {
	catalog *Catalog
}

// NewEvaluator creates an evaluator over catalog.
func NewEvaluator(catalog *Catalog) *Evaluator {
	return &Evaluator{catalog: catalog}
}

// Catalog returns the evaluator's catalog.
func (e *Evaluator) Catalog() *Catalog { return e.catalog }

// Evaluate returns, in catalog order, every definition st qualifies for that
// is not in unlocked. Each check is independent, so several thresholds of
// one category can qualify in the same pass.
func (e *Evaluator) Evaluate(st Stats, unlocked map[string]bool) []Definition {
	var out []Definition
	for _, d := range e.catalog.defs {
		if unlocked[d.ID] {
			continue
		}
		if qualifies(d, st) {
			out = append(out, d)
		}
	}
	return out
}

func qualifies(d Definition, st Stats) bool {
	switch d.Metric {
	case MetricAlways:
		return true
	case MetricTotalTrades:
		return decimal.NewFromInt(int64(st.TotalTrades)).GreaterThanOrEqual(d.Threshold)
	case MetricSellTrades:
		return decimal.NewFromInt(int64(st.SellTrades)).GreaterThanOrEqual(d.Threshold)
	case MetricProfitEstimate:
		return st.ProfitEstimate.GreaterThanOrEqual(d.Threshold)
	case MetricPortfolioValue:
		return st.PortfolioValue.GreaterThanOrEqual(d.Threshold)
	case MetricHoldingsCount:
		return decimal.NewFromInt(int64(st.HoldingsCount)).GreaterThanOrEqual(d.Threshold)
	default:
		return false
	}
}
