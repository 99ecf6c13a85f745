package trade_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/meditrade/trading-engine/internal/analytics"
	"github.com/meditrade/trading-engine/internal/httpx"
	"github.com/meditrade/trading-engine/internal/model"
	"github.com/meditrade/trading-engine/internal/store"
	"github.com/meditrade/trading-engine/internal/trade"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// fixedQuotes is a quote source with constant prices.
type fixedQuotes map[string]decimal.Decimal

func (q fixedQuotes) Price(sym string) (decimal.Decimal, bool) {
	p, ok := q[sym]
	return p, ok
}

func (q fixedQuotes) Quote(sym string) (model.Quote, bool) {
	p, ok := q[sym]
	if !ok {
		return model.Quote{}, false
	}
	return model.Quote{Symbol: sym, Name: sym + " coin", Price: p}, true
}

func (q fixedQuotes) Snapshot() []model.Quote {
	out := make([]model.Quote, 0, len(q))
	for sym := range q {
		qt, _ := q.Quote(sym)
		out = append(out, qt)
	}
	return out
}

// newTestEnv creates a test Service with in-memory store and chi router.
func newTestEnv(t *testing.T) (*trade.Service, *store.MemoryStore, chi.Router) {
	t.Helper()
	ms := store.NewMemoryStore()
	quotes := fixedQuotes{"BTC": d(40000), "ETH": d(2000)}
	svc := trade.NewService(ms, quotes, d(100000), nil)

	r := chi.NewRouter()
	r.Post("/api/v1/accounts", svc.HandleCreateAccount)
	r.Get("/api/v1/prices", svc.GetPrices)
	r.Group(func(r chi.Router) {
		r.Use(httpx.RequireUser)
		r.Get("/api/v1/accounts/me", svc.GetMe)
		r.Post("/api/v1/trades/buy", svc.Buy)
		r.Post("/api/v1/trades/sell", svc.Sell)
		r.Get("/api/v1/trades/history", svc.GetHistory)
		r.Get("/api/v1/portfolio", svc.GetPortfolio)
		r.Get("/api/v1/analytics", svc.GetAnalytics)
		r.Get("/api/v1/wallet", svc.GetWallet)
		r.Post("/api/v1/wallet/deposit", svc.Deposit)
		r.Post("/api/v1/wallet/withdraw", svc.Withdraw)
	})
	return svc, ms, r
}

// seedAccount creates a user account directly in the store.
func seedAccount(t *testing.T, ms *store.MemoryStore, userID string, balance float64) {
	t.Helper()
	err := ms.CreateAccount(context.Background(), &model.Account{
		UserID:    userID,
		Name:      "Trader " + userID,
		Email:     userID + "@example.com",
		Role:      model.RoleUser,
		Balance:   d(balance),
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("failed to seed account: %v", err)
	}
}

func do(t *testing.T, router http.Handler, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set(httpx.UserHeader, userID)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func price(f float64) *decimal.Decimal {
	p := d(f)
	return &p
}

func errorKind(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var e httpx.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &e); err != nil {
		t.Fatalf("error body is not JSON: %s", w.Body.String())
	}
	return e.Error
}

func account(t *testing.T, ms *store.MemoryStore, userID string) *model.Account {
	t.Helper()
	acct, err := ms.GetAccount(context.Background(), userID)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	return acct
}

// --- Accounts ---

func TestCreateAccount(t *testing.T) {
	_, ms, router := newTestEnv(t)

	w := do(t, router, "POST", "/api/v1/accounts", "", trade.CreateAccountRequest{Name: "Ada", Email: "Ada@Example.com"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var acct model.Account
	json.Unmarshal(w.Body.Bytes(), &acct)

	if acct.UserID == "" || acct.Role != model.RoleUser {
		t.Errorf("unexpected account: %+v", acct)
	}
	if acct.Email != "ada@example.com" {
		t.Errorf("expected lower-cased email, got %s", acct.Email)
	}
	if !acct.Balance.Equal(d(100000)) {
		t.Errorf("expected starting balance 100000, got %s", acct.Balance)
	}
	if stored := account(t, ms, acct.UserID); stored.Name != "Ada" {
		t.Errorf("account not persisted: %+v", stored)
	}

	w = do(t, router, "GET", "/api/v1/accounts/me", acct.UserID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for /me, got %d", w.Code)
	}
}

func TestCreateAccount_Rejections(t *testing.T) {
	_, _, router := newTestEnv(t)
	do(t, router, "POST", "/api/v1/accounts", "", trade.CreateAccountRequest{Name: "Ada", Email: "ada@example.com"})

	tests := []struct {
		name string
		req  trade.CreateAccountRequest
		code int
	}{
		{"duplicate email", trade.CreateAccountRequest{Name: "Other", Email: "ADA@example.com"}, http.StatusConflict},
		{"missing name", trade.CreateAccountRequest{Email: "x@example.com"}, http.StatusBadRequest},
		{"bad email", trade.CreateAccountRequest{Name: "X", Email: "not-an-email"}, http.StatusBadRequest},
		{"bad role", trade.CreateAccountRequest{Name: "X", Email: "y@example.com", Role: "root"}, http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := do(t, router, "POST", "/api/v1/accounts", "", tc.req)
			if w.Code != tc.code {
				t.Errorf("expected %d, got %d: %s", tc.code, w.Code, w.Body.String())
			}
		})
	}
}

// --- Trade execution ---

func TestBuy_CreatesHoldingAndTrade(t *testing.T) {
	_, ms, router := newTestEnv(t)
	seedAccount(t, ms, "user1", 100000)

	w := do(t, router, "POST", "/api/v1/trades/buy", "user1", trade.TradeRequest{Symbol: "btc", Amount: d(0.5), Price: price(42000)})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var resp trade.TradeResponse
	json.Unmarshal(w.Body.Bytes(), &resp)

	if resp.Trade.ID == "" || resp.Trade.Symbol != "BTC" || resp.Trade.Side != model.SideBuy {
		t.Errorf("unexpected trade: %+v", resp.Trade)
	}
	if !resp.Trade.Total.Equal(d(21000)) {
		t.Errorf("expected total 21000, got %s", resp.Trade.Total)
	}
	if !resp.Balance.Equal(d(79000)) {
		t.Errorf("expected balance 79000, got %s", resp.Balance)
	}

	acct := account(t, ms, "user1")
	h, ok := acct.Holding("BTC")
	if !ok || !h.Quantity.Equal(d(0.5)) || !h.AverageCost.Equal(d(42000)) {
		t.Errorf("unexpected holding: %+v", acct.Holdings)
	}
	trades, _ := ms.ListTradesByUser(context.Background(), "user1", 0)
	if len(trades) != 1 {
		t.Fatalf("expected 1 trade record, got %d", len(trades))
	}
}

func TestBuy_FallsBackToBoardPrice(t *testing.T) {
	_, ms, router := newTestEnv(t)
	seedAccount(t, ms, "user1", 100000)

	w := do(t, router, "POST", "/api/v1/trades/buy", "user1", trade.TradeRequest{Symbol: "ETH", Amount: d(2)})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var resp trade.TradeResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if !resp.Trade.Price.Equal(d(2000)) {
		t.Errorf("expected board price 2000, got %s", resp.Trade.Price)
	}
}

func TestBuy_UnquotedSymbolNeedsPrice(t *testing.T) {
	_, ms, router := newTestEnv(t)
	seedAccount(t, ms, "user1", 100000)

	w := do(t, router, "POST", "/api/v1/trades/buy", "user1", trade.TradeRequest{Symbol: "PEPE", Amount: d(1)})
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d: %s", w.Code, w.Body.String())
	}

	w = do(t, router, "POST", "/api/v1/trades/buy", "user1", trade.TradeRequest{Symbol: "PEPE", Amount: d(1), Price: price(3)})
	if w.Code != http.StatusCreated {
		t.Errorf("expected 201 with explicit price, got %d: %s", w.Code, w.Body.String())
	}
}

func TestBuy_InsufficientFunds(t *testing.T) {
	_, ms, router := newTestEnv(t)
	seedAccount(t, ms, "user1", 1000)

	w := do(t, router, "POST", "/api/v1/trades/buy", "user1", trade.TradeRequest{Symbol: "BTC", Amount: d(1), Price: price(1000.01)})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
	if kind := errorKind(t, w); kind != string(model.KindInsufficientFunds) {
		t.Errorf("expected insufficient_funds, got %s", kind)
	}

	acct := account(t, ms, "user1")
	if !acct.Balance.Equal(d(1000)) || len(acct.Holdings) != 0 {
		t.Errorf("rejected trade mutated the account: %+v", acct)
	}

	// Exactly the balance succeeds and leaves zero.
	w = do(t, router, "POST", "/api/v1/trades/buy", "user1", trade.TradeRequest{Symbol: "BTC", Amount: d(1), Price: price(1000)})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if acct := account(t, ms, "user1"); !acct.Balance.IsZero() {
		t.Errorf("expected zero balance, got %s", acct.Balance)
	}
}

func TestTrade_Validation(t *testing.T) {
	_, ms, router := newTestEnv(t)
	seedAccount(t, ms, "user1", 1000)

	tests := []struct {
		name string
		body any
	}{
		{"zero amount", trade.TradeRequest{Symbol: "BTC", Amount: decimal.Zero, Price: price(1)}},
		{"negative price", trade.TradeRequest{Symbol: "BTC", Amount: d(1), Price: price(-1)}},
		{"bad symbol", trade.TradeRequest{Symbol: "B/TC", Amount: d(1), Price: price(1)}},
		{"unknown field", map[string]any{"symbol": "BTC", "amount": 1, "leverage": 10}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := do(t, router, "POST", "/api/v1/trades/buy", "user1", tc.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d: %s", w.Code, w.Body.String())
			}
		})
	}

	w := do(t, router, "POST", "/api/v1/trades/buy", "", trade.TradeRequest{Symbol: "BTC", Amount: d(1)})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without identity, got %d", w.Code)
	}
	w = do(t, router, "POST", "/api/v1/trades/buy", "ghost", trade.TradeRequest{Symbol: "BTC", Amount: d(1)})
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown account, got %d", w.Code)
	}
}

func TestSell_FullPositionRemovesHolding(t *testing.T) {
	_, ms, router := newTestEnv(t)
	seedAccount(t, ms, "user1", 10000)

	do(t, router, "POST", "/api/v1/trades/buy", "user1", trade.TradeRequest{Symbol: "ETH", Amount: d(2), Price: price(2000)})

	w := do(t, router, "POST", "/api/v1/trades/sell", "user1", trade.TradeRequest{Symbol: "ETH", Amount: d(3), Price: price(2500)})
	if w.Code != http.StatusBadRequest || errorKind(t, w) != string(model.KindInsufficientHoldings) {
		t.Fatalf("expected insufficient_holdings, got %d: %s", w.Code, w.Body.String())
	}

	w = do(t, router, "POST", "/api/v1/trades/sell", "user1", trade.TradeRequest{Symbol: "ETH", Amount: d(2), Price: price(2500)})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	acct := account(t, ms, "user1")
	if !acct.Balance.Equal(d(11000)) {
		t.Errorf("expected balance 11000, got %s", acct.Balance)
	}
	if len(acct.Holdings) != 0 {
		t.Errorf("expected holding removed, got %+v", acct.Holdings)
	}
}

func TestExecute_ConcurrentBuysNeverOverspend(t *testing.T) {
	svc, ms, _ := newTestEnv(t)
	seedAccount(t, ms, "user1", 10000)

	var wg sync.WaitGroup
	var mu sync.Mutex
	ok, rejected := 0, 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Execute(context.Background(), "user1", model.SideBuy, trade.TradeRequest{Symbol: "BTC", Amount: d(1), Price: price(1000)})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, model.ErrInsufficientFunds):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if ok != 10 || rejected != 10 {
		t.Errorf("expected 10 fills and 10 rejections, got %d and %d", ok, rejected)
	}
	acct := account(t, ms, "user1")
	if !acct.Balance.IsZero() {
		t.Errorf("expected zero balance, got %s", acct.Balance)
	}
	h, _ := acct.Holding("BTC")
	if !h.Quantity.Equal(d(10)) {
		t.Errorf("expected 10 BTC, got %s", h.Quantity)
	}
	trades, _ := ms.ListTradesByUser(context.Background(), "user1", 0)
	if len(trades) != 10 {
		t.Errorf("expected 10 trade records, got %d", len(trades))
	}
}

// --- Wallet ---

func TestWallet_DepositAndWithdraw(t *testing.T) {
	_, ms, router := newTestEnv(t)
	seedAccount(t, ms, "user1", 100)

	w := do(t, router, "POST", "/api/v1/wallet/deposit", "user1", trade.TransferRequest{Amount: d(50)})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var resp trade.TransferResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if !resp.Balance.Equal(d(150)) || resp.Transaction.Type != model.TransactionDeposit || resp.Transaction.Status != "completed" {
		t.Errorf("unexpected deposit response: %+v", resp)
	}

	w = do(t, router, "POST", "/api/v1/wallet/withdraw", "user1", trade.TransferRequest{Amount: d(151)})
	if w.Code != http.StatusBadRequest || errorKind(t, w) != string(model.KindInsufficientFunds) {
		t.Errorf("expected insufficient_funds, got %d: %s", w.Code, w.Body.String())
	}
	w = do(t, router, "POST", "/api/v1/wallet/withdraw", "user1", trade.TransferRequest{Amount: decimal.Zero})
	if w.Code != http.StatusBadRequest || errorKind(t, w) != string(model.KindValidation) {
		t.Errorf("expected validation_error, got %d: %s", w.Code, w.Body.String())
	}
	w = do(t, router, "POST", "/api/v1/wallet/withdraw", "user1", trade.TransferRequest{Amount: d(150)})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	w = do(t, router, "GET", "/api/v1/wallet", "user1", nil)
	var wallet trade.WalletResponse
	json.Unmarshal(w.Body.Bytes(), &wallet)
	if !wallet.Balance.IsZero() {
		t.Errorf("expected zero balance, got %s", wallet.Balance)
	}
	if len(wallet.RecentTransactions) != 2 || wallet.RecentTransactions[0].Type != model.TransactionWithdraw {
		t.Errorf("expected 2 transactions newest first, got %+v", wallet.RecentTransactions)
	}
}

// --- Portfolio, history, analytics ---

func TestGetPortfolio_MarksToQuotes(t *testing.T) {
	_, ms, router := newTestEnv(t)
	seedAccount(t, ms, "user1", 100000)

	do(t, router, "POST", "/api/v1/trades/buy", "user1", trade.TradeRequest{Symbol: "BTC", Amount: d(1), Price: price(30000)})
	do(t, router, "POST", "/api/v1/trades/buy", "user1", trade.TradeRequest{Symbol: "DELISTED", Amount: d(10), Price: price(100)})

	w := do(t, router, "GET", "/api/v1/portfolio", "user1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var p trade.PortfolioResponse
	json.Unmarshal(w.Body.Bytes(), &p)

	if len(p.Positions) != 2 {
		t.Fatalf("expected 2 positions, got %d", len(p.Positions))
	}
	// BTC quoted at 40000, DELISTED has no quote.
	if !p.HoldingsValue.Equal(d(40000)) {
		t.Errorf("expected holdings value 40000, got %s", p.HoldingsValue)
	}
	if !p.TotalValue.Equal(d(109000)) {
		t.Errorf("expected total 109000, got %s", p.TotalValue)
	}
	if !p.ProfitLoss.Equal(d(9000)) || !p.ProfitLossPct.Equal(d(9)) {
		t.Errorf("unexpected P/L %s (%s%%)", p.ProfitLoss, p.ProfitLossPct)
	}
	for _, pos := range p.Positions {
		if pos.Symbol == "BTC" && (!pos.UnrealizedPnL.Equal(d(10000)) || !pos.PriceAvailable) {
			t.Errorf("unexpected BTC position: %+v", pos)
		}
		if pos.Symbol == "DELISTED" && pos.PriceAvailable {
			t.Errorf("DELISTED should have no price: %+v", pos)
		}
	}
}

func TestGetHistory_JSONAndCSV(t *testing.T) {
	_, ms, router := newTestEnv(t)
	seedAccount(t, ms, "user1", 100000)
	do(t, router, "POST", "/api/v1/trades/buy", "user1", trade.TradeRequest{Symbol: "BTC", Amount: d(1), Price: price(100)})
	do(t, router, "POST", "/api/v1/trades/sell", "user1", trade.TradeRequest{Symbol: "BTC", Amount: d(1), Price: price(120)})

	w := do(t, router, "GET", "/api/v1/trades/history?limit=1", "user1", nil)
	var trades []model.Trade
	json.Unmarshal(w.Body.Bytes(), &trades)
	if len(trades) != 1 || trades[0].Side != model.SideSell {
		t.Fatalf("expected the newest trade only, got %+v", trades)
	}

	w = do(t, router, "GET", "/api/v1/trades/history?format=csv", "user1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("expected text/csv, got %s", ct)
	}
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d lines", len(lines))
	}
	if lines[0] != "id,created_at,symbol,side,quantity,price,total" {
		t.Errorf("unexpected header: %s", lines[0])
	}
	if !strings.Contains(lines[1], ",BTC,sell,1,120,120") {
		t.Errorf("unexpected first row: %s", lines[1])
	}

	w = do(t, router, "GET", "/api/v1/trades/history?format=xml", "user1", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown format, got %d", w.Code)
	}
}

func TestGetAnalytics(t *testing.T) {
	_, ms, router := newTestEnv(t)
	seedAccount(t, ms, "user1", 100000)
	do(t, router, "POST", "/api/v1/trades/buy", "user1", trade.TradeRequest{Symbol: "BTC", Amount: d(1), Price: price(100)})
	do(t, router, "POST", "/api/v1/trades/buy", "user1", trade.TradeRequest{Symbol: "ETH", Amount: d(1), Price: price(300)})

	w := do(t, router, "GET", "/api/v1/analytics", "user1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var s analytics.Summary
	json.Unmarshal(w.Body.Bytes(), &s)
	if s.TotalTrades != 2 || !s.TotalVolume.Equal(d(400)) || !s.MeanTradeSize.Equal(d(200)) {
		t.Errorf("unexpected summary: %+v", s)
	}
}

func TestGetPrices(t *testing.T) {
	_, _, router := newTestEnv(t)
	w := do(t, router, "GET", "/api/v1/prices", "", nil)
	var quotes []model.Quote
	json.Unmarshal(w.Body.Bytes(), &quotes)
	if len(quotes) != 2 {
		t.Errorf("expected 2 quotes, got %d", len(quotes))
	}
}
