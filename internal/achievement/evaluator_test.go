package achievement

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/meditrade/trading-engine/internal/model"
)

// d is a test helper for creating decimals from float64.
func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func ids(defs []Definition) map[string]bool {
	out := make(map[string]bool, len(defs))
	for _, def := range defs {
		out[def.ID] = true
	}
	return out
}

func trades(n, sells int, sellTotal float64) []model.Trade {
	out := make([]model.Trade, 0, n)
	for i := 0; i < n; i++ {
		t := model.Trade{Side: model.SideBuy, Total: d(1)}
		if i < sells {
			t.Side = model.SideSell
			t.Total = d(sellTotal)
		}
		out = append(out, t)
	}
	return out
}

func TestComputeStats(t *testing.T) {
	acct := model.Account{
		Balance: d(1000),
		Holdings: []model.Holding{
			{Symbol: "BTC", Quantity: d(0.5), AverageCost: d(40000)},
			{Symbol: "ETH", Quantity: d(2), AverageCost: d(2000)},
		},
	}
	st := ComputeStats(acct, trades(4, 2, 5000))

	if st.TotalTrades != 4 || st.SellTrades != 2 {
		t.Errorf("unexpected trade counts: %+v", st)
	}
	if !st.ProfitEstimate.Equal(d(1000)) {
		t.Errorf("expected profit estimate 1000 (10%% of 10000 sold), got %s", st.ProfitEstimate)
	}
	if st.HoldingsCount != 2 {
		t.Errorf("expected 2 holdings, got %d", st.HoldingsCount)
	}
	if !st.PortfolioValue.Equal(d(25000)) {
		t.Errorf("expected portfolio value 25000 at cost, got %s", st.PortfolioValue)
	}
}

func TestEvaluate_NewAccountGetsStarterBadges(t *testing.T) {
	e := NewEvaluator(DefaultCatalog())
	got := ids(e.Evaluate(ComputeStats(model.Account{Balance: d(100000)}, nil), nil))

	for _, want := range []string{"early_bird", "portfolio_10k", "portfolio_50k", "portfolio_100k"} {
		if !got[want] {
			t.Errorf("expected %s to unlock", want)
		}
	}
	for _, never := range []string{"first_trade", "portfolio_1m", "diamond_hands", "top_10", "top_3"} {
		if got[never] {
			t.Errorf("%s should not unlock", never)
		}
	}
}

func TestEvaluate_LowerThresholdsUnlockInSamePass(t *testing.T) {
	e := NewEvaluator(DefaultCatalog())
	got := e.Evaluate(Stats{TotalTrades: 60, PortfolioValue: d(0), ProfitEstimate: d(0)}, nil)

	var trading []string
	for _, def := range got {
		if def.Category == CategoryTrading {
			trading = append(trading, def.ID)
		}
	}
	want := []string{"first_trade", "trader_10", "trader_50"}
	if len(trading) != len(want) {
		t.Fatalf("expected %v, got %v", want, trading)
	}
	for i := range want {
		if trading[i] != want[i] {
			t.Fatalf("expected ascending order %v, got %v", want, trading)
		}
	}
}

func TestEvaluate_SkipsAlreadyUnlocked(t *testing.T) {
	e := NewEvaluator(DefaultCatalog())
	st := Stats{TotalTrades: 1, SellTrades: 1, HoldingsCount: 10, PortfolioValue: d(0), ProfitEstimate: d(0)}

	first := e.Evaluate(st, nil)
	if len(first) == 0 {
		t.Fatal("expected unlocks on first pass")
	}
	if again := e.Evaluate(st, ids(first)); len(again) != 0 {
		t.Fatalf("second pass with same inputs unlocked %d more", len(again))
	}
}

func TestEvaluate_ProfitHeuristic(t *testing.T) {
	e := NewEvaluator(DefaultCatalog())
	// 10% of 10,000 sold is exactly the 1k threshold.
	st := ComputeStats(model.Account{}, trades(1, 1, 10000))
	got := ids(e.Evaluate(st, nil))
	if !got["first_profit"] || !got["profit_1k"] || got["profit_10k"] {
		t.Errorf("unexpected profit unlocks: %v", got)
	}
}

func TestNewCatalog_Validation(t *testing.T) {
	if _, err := NewCatalog([]Definition{{ID: "a", Metric: MetricAlways}, {ID: "a", Metric: MetricAlways}}); err == nil {
		t.Error("expected duplicate id error")
	}
	if _, err := NewCatalog([]Definition{{ID: "a", Metric: "karma"}}); err == nil {
		t.Error("expected unknown metric error")
	}

	c, err := NewCatalog([]Definition{
		{ID: "s", Category: CategorySpecial, Metric: MetricAlways},
		{ID: "t2", Category: CategoryTrading, Metric: MetricTotalTrades, Threshold: d(10)},
		{ID: "t1", Category: CategoryTrading, Metric: MetricTotalTrades, Threshold: d(1)},
	})
	if err != nil {
		t.Fatal(err)
	}
	all := c.All()
	if all[0].ID != "t1" || all[1].ID != "t2" || all[2].ID != "s" {
		t.Errorf("unexpected order: %s %s %s", all[0].ID, all[1].ID, all[2].ID)
	}
	if DefaultCatalog().Len() != 20 {
		t.Errorf("expected 20 default achievements, got %d", DefaultCatalog().Len())
	}
}
