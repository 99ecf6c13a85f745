// Package trade provides the HTTP handlers and business logic for
// accounts, trade execution, wallet transfers and portfolio queries.
//
// All monetary values use shopspring/decimal; never float64 for money.
package trade

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meditrade/trading-engine/internal/asset"
	"github.com/meditrade/trading-engine/internal/httpx"
	"github.com/meditrade/trading-engine/internal/ledger"
	"github.com/meditrade/trading-engine/internal/metrics"
	"github.com/meditrade/trading-engine/internal/model"
	"github.com/meditrade/trading-engine/internal/store"
)

// Quotes is the live price source trades fall back to and portfolios are
// marked against.
type Quotes interface {
	Price(symbol string) (decimal.Decimal, bool)
	Quote(symbol string) (model.Quote, bool)
	Snapshot() []model.Quote
}

// Service handles account, trade and wallet operations. Mutations of one
// account are serialized in-process and committed with a version check,
// so a second instance writing the same account gets model.ErrConflict
// instead of a lost update.
type Service struct {
	store           store.Store
	quotes          Quotes
	startingBalance decimal.Decimal
	wsHub           *WSHub // optional WebSocket hub for real-time broadcasts
	locks           sync.Map
	now             func() time.Time
}

// NewService creates a new trade service.
// Pass nil for hub if WebSocket broadcasting is not needed.
func NewService(st store.Store, quotes Quotes, startingBalance decimal.Decimal, hub *WSHub) *Service {
	return &Service{
		store:           st,
		quotes:          quotes,
		startingBalance: startingBalance,
		wsHub:           hub,
		now:             time.Now,
	}
}

// lockFor returns the mutex serializing mutations of userID's account.
func (s *Service) lockFor(userID string) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(userID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// --- Request/Response types ---

// CreateAccountRequest is the JSON body for account registration.
type CreateAccountRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role,omitempty"` // "user" (default) or "admin"
}

// TradeRequest is the JSON body for POST /trades/buy and /trades/sell.
type TradeRequest struct {
	Symbol string           `json:"symbol"`
	Amount decimal.Decimal  `json:"amount"`          // quantity of the asset
	Price  *decimal.Decimal `json:"price,omitempty"` // omitted: current board quote
}

// TradeResponse is the JSON body returned from a trade.
type TradeResponse struct {
	Trade   model.Trade     `json:"trade"`
	Balance decimal.Decimal `json:"balance"`
}

// --- Accounts ---

// CreateAccount registers a new account funded with the starting balance.
func (s *Service) CreateAccount(ctx context.Context, req CreateAccountRequest) (*model.Account, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, &model.ValidationError{Field: "name", Message: "is required"}
	}
	addr, err := mail.ParseAddress(strings.TrimSpace(req.Email))
	if err != nil {
		return nil, &model.ValidationError{Field: "email", Message: "must be a valid email address"}
	}
	role := strings.ToLower(strings.TrimSpace(req.Role))
	switch role {
	case "":
		role = model.RoleUser
	case model.RoleUser, model.RoleAdmin:
	default:
		return nil, &model.ValidationError{Field: "role", Message: "must be user or admin"}
	}

	acct := &model.Account{
		UserID:    uuid.New().String(),
		Name:      name,
		Email:     strings.ToLower(addr.Address),
		Role:      role,
		Balance:   s.startingBalance,
		Holdings:  []model.Holding{},
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.CreateAccount(ctx, acct); err != nil {
		return nil, err
	}
	slog.Info("account created", "user", acct.UserID, "role", role, "balance", acct.Balance.String())
	return acct, nil
}

// HandleCreateAccount handles POST /api/v1/accounts
func (s *Service) HandleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteDomainError(w, r, err)
		return
	}
	acct, err := s.CreateAccount(r.Context(), req)
	if err != nil {
		httpx.WriteDomainError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, acct)
}

// GetMe handles GET /api/v1/accounts/me
func (s *Service) GetMe(w http.ResponseWriter, r *http.Request) {
	acct, err := s.store.GetAccount(r.Context(), httpx.UserID(r.Context()))
	if err != nil {
		httpx.WriteDomainError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, acct)
}

// --- Trade execution ---

// Execute runs one buy or sell for userID. When req.Price is nil the
// current board quote is used; a symbol with no quote is not found. The
// account update and the trade record are committed together or not at
// all.
func (s *Service) Execute(ctx context.Context, userID string, side model.Side, req TradeRequest) (resp *TradeResponse, err error) {
	start := time.Now()
	defer func() {
		if err != nil {
			metrics.TradeRejections.WithLabelValues(string(model.KindOf(err))).Inc()
			slog.Warn("trade rejected", "user", userID, "side", side, "symbol", req.Symbol, "err", err)
			return
		}
		metrics.TradesTotal.WithLabelValues(string(side)).Inc()
		metrics.TradeLatency.WithLabelValues(string(side)).Observe(time.Since(start).Seconds())
		metrics.TradeVolume.WithLabelValues(resp.Trade.Symbol, string(side)).Add(resp.Trade.Total.InexactFloat64())
	}()

	sym, err := asset.NormalizeSymbol(req.Symbol)
	if err != nil {
		return nil, err
	}
	var price decimal.Decimal
	if req.Price != nil {
		price = *req.Price
	} else {
		p, ok := s.quotes.Price(sym)
		if !ok {
			return nil, fmt.Errorf("%w: no quote for %s, provide a price", model.ErrNotFound, sym)
		}
		price = p
	}

	mu := s.lockFor(userID)
	mu.Lock()
	defer mu.Unlock()

	acct, err := s.store.GetAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	res, err := ledger.Execute(*acct, ledger.Order{Symbol: sym, Side: side, Quantity: req.Amount, Price: price}, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.store.CommitTrade(ctx, &res.Account, &res.Trade); err != nil {
		return nil, err
	}

	slog.Info("trade executed",
		"trade_id", res.Trade.ID,
		"user", userID,
		"symbol", sym,
		"side", side,
		"qty", res.Trade.Quantity.String(),
		"price", res.Trade.Price.String(),
		"total", res.Trade.Total.String(),
		"balance", res.Account.Balance.String(),
	)

	if s.wsHub != nil {
		s.wsHub.TradeExecuted(res.Trade)
	}
	return &TradeResponse{Trade: res.Trade, Balance: res.Account.Balance}, nil
}

// Buy handles POST /api/v1/trades/buy
func (s *Service) Buy(w http.ResponseWriter, r *http.Request) {
	s.handleTrade(w, r, model.SideBuy)
}

// Sell handles POST /api/v1/trades/sell
func (s *Service) Sell(w http.ResponseWriter, r *http.Request) {
	s.handleTrade(w, r, model.SideSell)
}

func (s *Service) handleTrade(w http.ResponseWriter, r *http.Request, side model.Side) {
	var req TradeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteDomainError(w, r, err)
		return
	}
	resp, err := s.Execute(r.Context(), httpx.UserID(r.Context()), side, req)
	if err != nil {
		httpx.WriteDomainError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, resp)
}
