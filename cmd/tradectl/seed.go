package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meditrade/trading-engine/internal/model"
	"github.com/meditrade/trading-engine/internal/store"
)

type seedAccount struct {
	Name    string
	Email   string
	Role    string
	Balance int64
}

var seedAccounts = []seedAccount{
	{"Admin User", "admin@mediatrade.com", model.RoleAdmin, 500000},
	{"John Smith", "john@example.com", model.RoleUser, 150000},
	{"Sarah Johnson", "sarah@example.com", model.RoleUser, 250000},
	{"Michael Brown", "michael@example.com", model.RoleUser, 180000},
	{"Emily Davis", "emily@example.com", model.RoleUser, 320000},
	{"David Wilson", "david@example.com", model.RoleUser, 95000},
	{"Lisa Anderson", "lisa@example.com", model.RoleUser, 210000},
	{"James Martinez", "james@example.com", model.RoleUser, 165000},
	{"Jennifer Taylor", "jennifer@example.com", model.RoleUser, 280000},
	{"Robert Thomas", "robert@example.com", model.RoleUser, 135000},
}

// seedUserID derives a stable id from the email so reruns address the same
// account.
func seedUserID(email string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("mailto:"+email)).String()
}

// seed creates every demo account that does not exist yet and reports how
// many it created.
func seed(ctx context.Context, st store.Store, now time.Time) (int, error) {
	created := 0
	for _, s := range seedAccounts {
		acct := &model.Account{
			UserID:    seedUserID(s.Email),
			Name:      s.Name,
			Email:     s.Email,
			Role:      s.Role,
			Balance:   decimal.NewFromInt(s.Balance),
			CreatedAt: now,
		}
		err := st.CreateAccount(ctx, acct)
		if errors.Is(err, model.ErrAlreadyExists) {
			slog.Debug("seed account exists", "email", s.Email)
			continue
		}
		if err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}
