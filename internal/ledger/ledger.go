// Package ledger implements trade execution and wallet transfers against an
// account snapshot.
//
// Every function here is pure: it receives an account by value, validates the
// request, and returns the next account state together with the immutable
// journal record describing the change. Nothing is mutated on failure, so a
// rejected trade leaves the caller's snapshot untouched. Persisting the result
// atomically is the store's job.
//
// All monetary values use shopspring/decimal; never float64 for money.
package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meditrade/trading-engine/internal/model"
)

// CostScale is the number of decimal places kept for average cost.
const CostScale int32 = 12

// Order is a request to buy or sell Quantity units of Symbol at Price.
type Order struct {
	Symbol   string
	Side     model.Side
	Quantity decimal.Decimal
	Price    decimal.Decimal
}

// Result is the outcome of a successful Execute.
type Result struct {
	Account model.Account
	Trade   model.Trade
}

// Execute validates o against acct and applies it. The returned account has
// exactly one balance change and at most one holding change; the returned
// trade records the fill. acct itself is never modified.
func Execute(acct model.Account, o Order, at time.Time) (Result, error) {
	if err := validate(o); err != nil {
		return Result{}, err
	}
	switch o.Side {
	case model.SideBuy:
		return buy(acct, o, at)
	default:
		return sell(acct, o, at)
	}
}

func validate(o Order) error {
	if o.Symbol == "" {
		return &model.ValidationError{Field: "symbol", Message: "symbol is required"}
	}
	if !o.Quantity.IsPositive() {
		return model.ErrInvalidQuantity
	}
	if !o.Price.IsPositive() {
		return model.ErrInvalidPrice
	}
	if !o.Side.Valid() {
		return model.ErrInvalidSide
	}
	return nil
}

func buy(acct model.Account, o Order, at time.Time) (Result, error) {
	total := o.Quantity.Mul(o.Price)
	if acct.Balance.LessThan(total) {
		return Result{}, fmt.Errorf("%w: need %s, have %s", model.ErrInsufficientFunds, total, acct.Balance)
	}

	next := acct.Clone()
	next.Balance = next.Balance.Sub(total)

	idx := holdingIndex(next.Holdings, o.Symbol)
	if idx < 0 {
		next.Holdings = append(next.Holdings, model.Holding{
			Symbol:      o.Symbol,
			Quantity:    o.Quantity,
			AverageCost: o.Price,
		})
	} else {
		h := next.Holdings[idx]
		newQty := h.Quantity.Add(o.Quantity)
		// Cost-basis blend: prior cost plus this fill's total, over the new quantity.
		costBasis := h.Quantity.Mul(h.AverageCost).Add(total)
		h.AverageCost = costBasis.DivRound(newQty, CostScale)
		h.Quantity = newQty
		next.Holdings[idx] = h
	}

	return Result{Account: next, Trade: newTrade(acct.UserID, o, total, at)}, nil
}

func sell(acct model.Account, o Order, at time.Time) (Result, error) {
	idx := holdingIndex(acct.Holdings, o.Symbol)
	if idx < 0 {
		return Result{}, fmt.Errorf("%w: no %s position", model.ErrInsufficientHoldings, o.Symbol)
	}
	held := acct.Holdings[idx].Quantity
	if held.LessThan(o.Quantity) {
		return Result{}, fmt.Errorf("%w: selling %s %s, holding %s", model.ErrInsufficientHoldings, o.Quantity, o.Symbol, held)
	}

	total := o.Quantity.Mul(o.Price)
	next := acct.Clone()
	next.Balance = next.Balance.Add(total)

	remaining := held.Sub(o.Quantity)
	if remaining.IsZero() {
		// Closed positions are dropped with their cost basis; a later buy starts fresh.
		next.Holdings = append(next.Holdings[:idx], next.Holdings[idx+1:]...)
	} else {
		next.Holdings[idx].Quantity = remaining
	}

	return Result{Account: next, Trade: newTrade(acct.UserID, o, total, at)}, nil
}

// Deposit credits amount to the balance.
func Deposit(acct model.Account, amount decimal.Decimal, at time.Time) (model.Account, model.Transaction, error) {
	if !amount.IsPositive() {
		return model.Account{}, model.Transaction{}, model.ErrInvalidAmount
	}
	next := acct.Clone()
	next.Balance = next.Balance.Add(amount)
	return next, newTransaction(acct.UserID, model.TransactionDeposit, amount, "Virtual wallet deposit", at), nil
}

// Withdraw debits amount from the balance; the balance may reach zero but
// never go below it.
func Withdraw(acct model.Account, amount decimal.Decimal, at time.Time) (model.Account, model.Transaction, error) {
	if !amount.IsPositive() {
		return model.Account{}, model.Transaction{}, model.ErrInvalidAmount
	}
	if acct.Balance.LessThan(amount) {
		return model.Account{}, model.Transaction{}, fmt.Errorf("%w: need %s, have %s", model.ErrInsufficientFunds, amount, acct.Balance)
	}
	next := acct.Clone()
	next.Balance = next.Balance.Sub(amount)
	return next, newTransaction(acct.UserID, model.TransactionWithdraw, amount, "Virtual wallet withdrawal", at), nil
}

// MarkToMarket values holdings at the given quotes. Symbols without a quote
// contribute nothing.
func MarkToMarket(holdings []model.Holding, quote func(symbol string) (decimal.Decimal, bool)) decimal.Decimal {
	total := decimal.Zero
	for _, h := range holdings {
		if p, ok := quote(h.Symbol); ok {
			total = total.Add(h.Quantity.Mul(p))
		}
	}
	return total
}

// CostValue values holdings at their average cost.
func CostValue(holdings []model.Holding) decimal.Decimal {
	total := decimal.Zero
	for _, h := range holdings {
		total = total.Add(h.Quantity.Mul(h.AverageCost))
	}
	return total
}

func holdingIndex(holdings []model.Holding, symbol string) int {
	for i, h := range holdings {
		if h.Symbol == symbol {
			return i
		}
	}
	return -1
}

func newTrade(userID string, o Order, total decimal.Decimal, at time.Time) model.Trade {
	return model.Trade{
		ID:        uuid.New().String(),
		UserID:    userID,
		Symbol:    o.Symbol,
		Side:      o.Side,
		Quantity:  o.Quantity,
		Price:     o.Price,
		Total:     total,
		CreatedAt: at.UTC(),
	}
}

func newTransaction(userID, kind string, amount decimal.Decimal, desc string, at time.Time) model.Transaction {
	return model.Transaction{
		ID:          uuid.New().String(),
		UserID:      userID,
		Type:        kind,
		Amount:      amount,
		Status:      "completed",
		Description: desc,
		CreatedAt:   at.UTC(),
	}
}
