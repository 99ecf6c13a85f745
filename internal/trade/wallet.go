package trade

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meditrade/trading-engine/internal/httpx"
	"github.com/meditrade/trading-engine/internal/ledger"
	"github.com/meditrade/trading-engine/internal/metrics"
	"github.com/meditrade/trading-engine/internal/model"
)

const recentTransactions = 10

// TransferRequest is the JSON body for deposits and withdrawals.
type TransferRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// TransferResponse is returned from a deposit or withdrawal.
type TransferResponse struct {
	Transaction model.Transaction `json:"transaction"`
	Balance     decimal.Decimal   `json:"balance"`
}

// WalletResponse is the body of GET /wallet.
type WalletResponse struct {
	Balance            decimal.Decimal     `json:"balance"`
	Holdings           []model.Holding     `json:"holdings"`
	RecentTransactions []model.Transaction `json:"recent_transactions"`
}

type transferFunc func(model.Account, decimal.Decimal, time.Time) (model.Account, model.Transaction, error)

// Transfer applies a deposit or withdrawal to userID's wallet and records
// the transaction in the same commit.
func (s *Service) Transfer(ctx context.Context, userID, kind string, amount decimal.Decimal) (*TransferResponse, error) {
	apply := transferFunc(ledger.Deposit)
	if kind == model.TransactionWithdraw {
		apply = ledger.Withdraw
	}

	mu := s.lockFor(userID)
	mu.Lock()
	defer mu.Unlock()

	acct, err := s.store.GetAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	next, tx, err := apply(*acct, amount, s.now())
	if err != nil {
		metrics.TradeRejections.WithLabelValues(string(model.KindOf(err))).Inc()
		return nil, err
	}
	if err := s.store.CommitTransaction(ctx, &next, &tx); err != nil {
		metrics.TradeRejections.WithLabelValues(string(model.KindOf(err))).Inc()
		return nil, err
	}

	metrics.WalletTransfers.WithLabelValues(kind).Inc()
	slog.Info("wallet transfer",
		"transaction_id", tx.ID,
		"user", userID,
		"type", kind,
		"amount", amount.String(),
		"balance", next.Balance.String(),
	)
	return &TransferResponse{Transaction: tx, Balance: next.Balance}, nil
}

// GetWallet handles GET /api/v1/wallet
func (s *Service) GetWallet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := httpx.UserID(ctx)

	acct, err := s.store.GetAccount(ctx, userID)
	if err != nil {
		httpx.WriteDomainError(w, r, err)
		return
	}
	txs, err := s.store.ListTransactionsByUser(ctx, userID, recentTransactions)
	if err != nil {
		httpx.WriteDomainError(w, r, err)
		return
	}
	if txs == nil {
		txs = []model.Transaction{}
	}
	holdings := acct.Holdings
	if holdings == nil {
		holdings = []model.Holding{}
	}
	httpx.WriteJSON(w, http.StatusOK, WalletResponse{Balance: acct.Balance, Holdings: holdings, RecentTransactions: txs})
}

// Deposit handles POST /api/v1/wallet/deposit
func (s *Service) Deposit(w http.ResponseWriter, r *http.Request) {
	s.handleTransfer(w, r, model.TransactionDeposit)
}

// Withdraw handles POST /api/v1/wallet/withdraw
func (s *Service) Withdraw(w http.ResponseWriter, r *http.Request) {
	s.handleTransfer(w, r, model.TransactionWithdraw)
}

func (s *Service) handleTransfer(w http.ResponseWriter, r *http.Request, kind string) {
	var req TransferRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteDomainError(w, r, err)
		return
	}
	resp, err := s.Transfer(r.Context(), httpx.UserID(r.Context()), kind, req.Amount)
	if err != nil {
		httpx.WriteDomainError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, resp)
}
