package trade

import (
	"bytes"
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"

	"github.com/meditrade/trading-engine/internal/analytics"
	"github.com/meditrade/trading-engine/internal/httpx"
	"github.com/meditrade/trading-engine/internal/ledger"
	"github.com/meditrade/trading-engine/internal/model"
)

var hundred = decimal.NewFromInt(100)

// PositionView is one holding marked to the current quote.
type PositionView struct {
	Symbol         string          `json:"symbol"`
	Name           string          `json:"name"`
	Quantity       decimal.Decimal `json:"quantity"`
	AverageCost    decimal.Decimal `json:"average_cost"`
	CurrentPrice   decimal.Decimal `json:"current_price"`
	Value          decimal.Decimal `json:"value"`
	Cost           decimal.Decimal `json:"cost"`
	UnrealizedPnL  decimal.Decimal `json:"unrealized_pnl"`
	UnrealizedPct  decimal.Decimal `json:"unrealized_pnl_percent"`
	PriceAvailable bool            `json:"price_available"`
}

// PortfolioResponse is the body of GET /portfolio.
type PortfolioResponse struct {
	UserID        string          `json:"user_id"`
	Balance       decimal.Decimal `json:"balance"`
	Positions     []PositionView  `json:"positions"`
	HoldingsValue decimal.Decimal `json:"holdings_value"`
	TotalCost     decimal.Decimal `json:"total_cost"`
	TotalValue    decimal.Decimal `json:"total_value"` // balance + holdings value
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
	ProfitLoss    decimal.Decimal `json:"profit_loss"` // total value - starting balance
	ProfitLossPct decimal.Decimal `json:"profit_loss_percent"`
}

// Portfolio marks userID's holdings to the board. Holdings without a quote
// are valued at zero.
func (s *Service) Portfolio(ctx context.Context, userID string) (*PortfolioResponse, error) {
	acct, err := s.store.GetAccount(ctx, userID)
	if err != nil {
		return nil, err
	}

	positions := make([]PositionView, 0, len(acct.Holdings))
	for _, h := range acct.Holdings {
		p := PositionView{
			Symbol:       h.Symbol,
			Name:         h.Symbol,
			Quantity:     h.Quantity,
			AverageCost:  h.AverageCost,
			CurrentPrice: decimal.Zero,
			Cost:         h.Quantity.Mul(h.AverageCost),
		}
		if q, ok := s.quotes.Quote(h.Symbol); ok {
			p.Name = q.Name
			p.CurrentPrice = q.Price
			p.PriceAvailable = true
		}
		p.Value = h.Quantity.Mul(p.CurrentPrice)
		p.UnrealizedPnL = p.Value.Sub(p.Cost)
		p.UnrealizedPct = percent(p.UnrealizedPnL, p.Cost)
		positions = append(positions, p)
	}

	holdingsValue := ledger.MarkToMarket(acct.Holdings, s.quotes.Price)
	totalCost := ledger.CostValue(acct.Holdings)
	total := acct.Balance.Add(holdingsValue)
	pl := total.Sub(s.startingBalance)

	return &PortfolioResponse{
		UserID:        userID,
		Balance:       acct.Balance,
		Positions:     positions,
		HoldingsValue: holdingsValue,
		TotalCost:     totalCost,
		TotalValue:    total,
		UnrealizedPnL: holdingsValue.Sub(totalCost),
		ProfitLoss:    pl,
		ProfitLossPct: percent(pl, s.startingBalance),
	}, nil
}

// percent returns part/whole*100 rounded to 2 places, or zero when whole
// is not positive.
func percent(part, whole decimal.Decimal) decimal.Decimal {
	if !whole.IsPositive() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(hundred).Round(2)
}

// GetPortfolio handles GET /api/v1/portfolio
func (s *Service) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	p, err := s.Portfolio(r.Context(), httpx.UserID(r.Context()))
	if err != nil {
		httpx.WriteDomainError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, p)
}

// GetPrices handles GET /api/v1/prices
func (s *Service) GetPrices(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, s.quotes.Snapshot())
}

// --- History ---

// tradeRow is the CSV shape of a trade.
type tradeRow struct {
	ID        string `csv:"id"`
	CreatedAt string `csv:"created_at"`
	Symbol    string `csv:"symbol"`
	Side      string `csv:"side"`
	Quantity  string `csv:"quantity"`
	Price     string `csv:"price"`
	Total     string `csv:"total"`
}

func toRows(trades []model.Trade) []*tradeRow {
	rows := make([]*tradeRow, 0, len(trades))
	for _, t := range trades {
		rows = append(rows, &tradeRow{
			ID:        t.ID,
			CreatedAt: t.CreatedAt.UTC().Format(time.RFC3339),
			Symbol:    t.Symbol,
			Side:      string(t.Side),
			Quantity:  t.Quantity.String(),
			Price:     t.Price.String(),
			Total:     t.Total.String(),
		})
	}
	return rows
}

// GetHistory handles GET /api/v1/trades/history?limit&format=json|csv
// Trades are returned newest first.
func (s *Service) GetHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := httpx.UserID(ctx)

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			httpx.WriteDomainError(w, r, &model.ValidationError{Field: "limit", Message: "must be a non-negative integer"})
			return
		}
		limit = n
	}

	trades, err := s.store.ListTradesByUser(ctx, userID, limit)
	if err != nil {
		httpx.WriteDomainError(w, r, err)
		return
	}
	if trades == nil {
		trades = []model.Trade{}
	}

	switch r.URL.Query().Get("format") {
	case "", "json":
		httpx.WriteJSON(w, http.StatusOK, trades)
	case "csv":
		rows := toRows(trades)
		var buf bytes.Buffer
		if err := gocsv.Marshal(&rows, &buf); err != nil {
			httpx.WriteDomainError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="trades.csv"`)
		_, _ = w.Write(buf.Bytes())
	default:
		httpx.WriteDomainError(w, r, &model.ValidationError{Field: "format", Message: "must be json or csv"})
	}
}

// GetAnalytics handles GET /api/v1/analytics
func (s *Service) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	trades, err := s.store.ListTradesByUser(r.Context(), httpx.UserID(r.Context()), 0)
	if err != nil {
		httpx.WriteDomainError(w, r, err)
		return
	}
	summary, err := analytics.Summarize(trades)
	if err != nil {
		httpx.WriteDomainError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, summary)
}
