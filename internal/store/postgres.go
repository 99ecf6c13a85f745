package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meditrade/trading-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision and
// read back through ::TEXT so no float conversion ever happens.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// --- Accounts ---

func (s *PostgresStore) CreateAccount(ctx context.Context, a *model.Account) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return model.Persistence("create account", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx,
		`INSERT INTO accounts (user_id, name, email, role, balance, version, created_at)
		 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6, $7)`,
		a.UserID, a.Name, a.Email, a.Role, a.Balance.String(), a.Version, a.CreatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: account %s or email %s", model.ErrAlreadyExists, a.UserID, a.Email)
	}
	if err != nil {
		return model.Persistence("create account", err)
	}
	if err := insertHoldings(ctx, tx, a.UserID, a.Holdings); err != nil {
		return model.Persistence("create account", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Persistence("create account", err)
	}
	return nil
}

func (s *PostgresStore) GetAccount(ctx context.Context, userID string) (*model.Account, error) {
	var a model.Account
	var balance string

	err := s.pool.QueryRow(ctx,
		`SELECT user_id, name, email, role, balance::TEXT, version, created_at
		 FROM accounts WHERE user_id = $1`, userID).
		Scan(&a.UserID, &a.Name, &a.Email, &a.Role, &balance, &a.Version, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: account %s", model.ErrNotFound, userID)
	}
	if err != nil {
		return nil, model.Persistence("get account", err)
	}
	a.Balance, _ = decimal.NewFromString(balance)

	rows, err := s.pool.Query(ctx,
		`SELECT user_id, symbol, quantity::TEXT, average_cost::TEXT
		 FROM holdings WHERE user_id = $1 ORDER BY position, symbol`, userID)
	if err != nil {
		return nil, model.Persistence("get holdings", err)
	}
	defer rows.Close()

	byUser, err := scanHoldings(rows)
	if err != nil {
		return nil, model.Persistence("get holdings", err)
	}
	a.Holdings = byUser[userID]
	return &a, nil
}

func (s *PostgresStore) ListAccounts(ctx context.Context) ([]model.Account, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT user_id, name, email, role, balance::TEXT, version, created_at
		 FROM accounts ORDER BY created_at, user_id`)
	if err != nil {
		return nil, model.Persistence("list accounts", err)
	}
	defer rows.Close()

	var accounts []model.Account
	for rows.Next() {
		var a model.Account
		var balance string
		if err := rows.Scan(&a.UserID, &a.Name, &a.Email, &a.Role, &balance, &a.Version, &a.CreatedAt); err != nil {
			return nil, model.Persistence("list accounts", err)
		}
		a.Balance, _ = decimal.NewFromString(balance)
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, model.Persistence("list accounts", err)
	}

	hrows, err := s.pool.Query(ctx,
		`SELECT user_id, symbol, quantity::TEXT, average_cost::TEXT
		 FROM holdings ORDER BY user_id, position, symbol`)
	if err != nil {
		return nil, model.Persistence("list holdings", err)
	}
	defer hrows.Close()

	byUser, err := scanHoldings(hrows)
	if err != nil {
		return nil, model.Persistence("list holdings", err)
	}
	for i := range accounts {
		accounts[i].Holdings = byUser[accounts[i].UserID]
	}
	return accounts, nil
}

// --- Atomic commits ---

func (s *PostgresStore) CommitTrade(ctx context.Context, acct *model.Account, t *model.Trade) error {
	return s.commit(ctx, "commit trade", acct, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO trades (id, user_id, symbol, side, quantity, price, total, created_at)
			 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6::NUMERIC, $7::NUMERIC, $8)`,
			t.ID, t.UserID, t.Symbol, string(t.Side),
			t.Quantity.String(), t.Price.String(), t.Total.String(),
			t.CreatedAt,
		)
		return err
	})
}

func (s *PostgresStore) CommitTransaction(ctx context.Context, acct *model.Account, t *model.Transaction) error {
	return s.commit(ctx, "commit transaction", acct, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO transactions (id, user_id, type, amount, status, description, created_at)
			 VALUES ($1, $2, $3, $4::NUMERIC, $5, $6, $7)`,
			t.ID, t.UserID, t.Type, t.Amount.String(), t.Status, t.Description, t.CreatedAt,
		)
		return err
	})
}

// commit runs the version-checked account update, the holdings rewrite and
// the journal insert in one transaction.
func (s *PostgresStore) commit(ctx context.Context, op string, acct *model.Account, journal func(pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return model.Persistence(op, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tag, err := tx.Exec(ctx,
		`UPDATE accounts SET balance = $2::NUMERIC, version = version + 1
		 WHERE user_id = $1 AND version = $3`,
		acct.UserID, acct.Balance.String(), acct.Version,
	)
	if err != nil {
		return model.Persistence(op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: account %s changed since version %d", model.ErrConflict, acct.UserID, acct.Version)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM holdings WHERE user_id = $1`, acct.UserID); err != nil {
		return model.Persistence(op, err)
	}
	if err := insertHoldings(ctx, tx, acct.UserID, acct.Holdings); err != nil {
		return model.Persistence(op, err)
	}
	if err := journal(tx); err != nil {
		return model.Persistence(op, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Persistence(op, err)
	}
	acct.Version++
	return nil
}

// --- Immutable journals ---

func (s *PostgresStore) ListTradesByUser(ctx context.Context, userID string, limit int) ([]model.Trade, error) {
	return s.listTrades(ctx, userID, limit)
}

func (s *PostgresStore) ListTrades(ctx context.Context, limit int) ([]model.Trade, error) {
	return s.listTrades(ctx, "", limit)
}

// listTrades filters by userID unless it is empty.
func (s *PostgresStore) listTrades(ctx context.Context, userID string, limit int) ([]model.Trade, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id::TEXT, user_id, symbol, side,
		        quantity::TEXT, price::TEXT, total::TEXT, created_at
		 FROM trades WHERE ($1 = '' OR user_id = $1)
		 ORDER BY created_at DESC, id DESC
		 LIMIT NULLIF($2, 0)`, userID, clampLimit(limit))
	if err != nil {
		return nil, model.Persistence("list trades", err)
	}
	defer rows.Close()

	var trades []model.Trade
	for rows.Next() {
		var t model.Trade
		var side, qty, price, total string
		if err := rows.Scan(&t.ID, &t.UserID, &t.Symbol, &side, &qty, &price, &total, &t.CreatedAt); err != nil {
			return nil, model.Persistence("list trades", err)
		}
		t.Side = model.Side(side)
		t.Quantity, _ = decimal.NewFromString(qty)
		t.Price, _ = decimal.NewFromString(price)
		t.Total, _ = decimal.NewFromString(total)
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, model.Persistence("list trades", err)
	}
	return trades, nil
}

func (s *PostgresStore) ListTransactionsByUser(ctx context.Context, userID string, limit int) ([]model.Transaction, error) {
	return s.listTransactions(ctx, userID, limit)
}

func (s *PostgresStore) ListTransactions(ctx context.Context, limit int) ([]model.Transaction, error) {
	return s.listTransactions(ctx, "", limit)
}

func (s *PostgresStore) listTransactions(ctx context.Context, userID string, limit int) ([]model.Transaction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id::TEXT, user_id, type, amount::TEXT, status, description, created_at
		 FROM transactions WHERE ($1 = '' OR user_id = $1)
		 ORDER BY created_at DESC, id DESC
		 LIMIT NULLIF($2, 0)`, userID, clampLimit(limit))
	if err != nil {
		return nil, model.Persistence("list transactions", err)
	}
	defer rows.Close()

	var txs []model.Transaction
	for rows.Next() {
		var t model.Transaction
		var amount string
		if err := rows.Scan(&t.ID, &t.UserID, &t.Type, &amount, &t.Status, &t.Description, &t.CreatedAt); err != nil {
			return nil, model.Persistence("list transactions", err)
		}
		t.Amount, _ = decimal.NewFromString(amount)
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, model.Persistence("list transactions", err)
	}
	return txs, nil
}

// --- Achievements ---

func (s *PostgresStore) InsertAchievementUnlock(ctx context.Context, u *model.AchievementUnlock) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO achievement_unlocks (user_id, achievement_id, unlocked_at)
		 VALUES ($1, $2, $3)`,
		u.UserID, u.AchievementID, u.UnlockedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s for %s", model.ErrAlreadyUnlocked, u.AchievementID, u.UserID)
	}
	if isMissingAccount(err) {
		return fmt.Errorf("%w: account %s", model.ErrNotFound, u.UserID)
	}
	return model.Persistence("insert achievement unlock", err)
}

func (s *PostgresStore) ListAchievementUnlocks(ctx context.Context, userID string) ([]model.AchievementUnlock, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT user_id, achievement_id, unlocked_at
		 FROM achievement_unlocks WHERE user_id = $1
		 ORDER BY unlocked_at DESC, achievement_id`, userID)
	if err != nil {
		return nil, model.Persistence("list unlocks", err)
	}
	defer rows.Close()

	var unlocks []model.AchievementUnlock
	for rows.Next() {
		var u model.AchievementUnlock
		if err := rows.Scan(&u.UserID, &u.AchievementID, &u.UnlockedAt); err != nil {
			return nil, model.Persistence("list unlocks", err)
		}
		unlocks = append(unlocks, u)
	}
	if err := rows.Err(); err != nil {
		return nil, model.Persistence("list unlocks", err)
	}
	return unlocks, nil
}

func (s *PostgresStore) CountUnlocksByUser(ctx context.Context) (map[string]int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT user_id, COUNT(*) FROM achievement_unlocks GROUP BY user_id`)
	if err != nil {
		return nil, model.Persistence("count unlocks", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var userID string
		var n int
		if err := rows.Scan(&userID, &n); err != nil {
			return nil, model.Persistence("count unlocks", err)
		}
		counts[userID] = n
	}
	if err := rows.Err(); err != nil {
		return nil, model.Persistence("count unlocks", err)
	}
	return counts, nil
}

// --- Price alerts ---

const alertColumns = `id::TEXT, user_id, symbol, target_price::TEXT, condition,
		price_at_creation::TEXT, triggered, triggered_at, created_at`

func (s *PostgresStore) CreateAlert(ctx context.Context, a *model.PriceAlert) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO price_alerts (id, user_id, symbol, target_price, condition, price_at_creation, triggered, triggered_at, created_at)
		 VALUES ($1, $2, $3, $4::NUMERIC, $5, $6::NUMERIC, $7, $8, $9)`,
		a.ID, a.UserID, a.Symbol, a.TargetPrice.String(), a.Condition,
		a.PriceAtCreation.String(), a.Triggered, a.TriggeredAt, a.CreatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: alert %s", model.ErrAlreadyExists, a.ID)
	}
	if isMissingAccount(err) {
		return fmt.Errorf("%w: account %s", model.ErrNotFound, a.UserID)
	}
	return model.Persistence("create alert", err)
}

func (s *PostgresStore) GetAlert(ctx context.Context, id string) (*model.PriceAlert, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+alertColumns+` FROM price_alerts WHERE id::TEXT = $1`, id)
	if err != nil {
		return nil, model.Persistence("get alert", err)
	}
	defer rows.Close()

	alerts, err := scanAlerts(rows)
	if err != nil {
		return nil, model.Persistence("get alert", err)
	}
	if len(alerts) == 0 {
		return nil, fmt.Errorf("%w: alert %s", model.ErrNotFound, id)
	}
	return &alerts[0], nil
}

func (s *PostgresStore) ListAlertsByUser(ctx context.Context, userID string) ([]model.PriceAlert, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+alertColumns+` FROM price_alerts WHERE user_id = $1 ORDER BY created_at DESC, id`, userID)
	if err != nil {
		return nil, model.Persistence("list alerts", err)
	}
	defer rows.Close()

	alerts, err := scanAlerts(rows)
	if err != nil {
		return nil, model.Persistence("list alerts", err)
	}
	return alerts, nil
}

func (s *PostgresStore) DeleteAlert(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM price_alerts WHERE id::TEXT = $1`, id)
	if err != nil {
		return model.Persistence("delete alert", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: alert %s", model.ErrNotFound, id)
	}
	return nil
}

func (s *PostgresStore) ListActiveAlerts(ctx context.Context) ([]model.PriceAlert, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+alertColumns+` FROM price_alerts WHERE NOT triggered ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, model.Persistence("list active alerts", err)
	}
	defer rows.Close()

	alerts, err := scanAlerts(rows)
	if err != nil {
		return nil, model.Persistence("list active alerts", err)
	}
	return alerts, nil
}

func (s *PostgresStore) MarkAlertTriggered(ctx context.Context, id string, at time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE price_alerts SET triggered = true, triggered_at = $2
		 WHERE id::TEXT = $1 AND NOT triggered`, id, at.UTC())
	if err != nil {
		return false, model.Persistence("mark alert triggered", err)
	}
	return tag.RowsAffected() == 1, nil
}

// --- Watchlists ---

func (s *PostgresStore) GetWatchlist(ctx context.Context, userID string) (*model.Watchlist, error) {
	wl := model.Watchlist{UserID: userID}
	err := s.pool.QueryRow(ctx,
		`SELECT symbols, updated_at FROM watchlists WHERE user_id = $1`, userID).
		Scan(&wl.Symbols, &wl.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return &model.Watchlist{UserID: userID, Symbols: []string{}}, nil
	}
	if err != nil {
		return nil, model.Persistence("get watchlist", err)
	}
	if wl.Symbols == nil {
		wl.Symbols = []string{}
	}
	return &wl, nil
}

func (s *PostgresStore) SaveWatchlist(ctx context.Context, wl *model.Watchlist) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO watchlists (user_id, symbols, updated_at) VALUES ($1, $2, $3)
		 ON CONFLICT (user_id) DO UPDATE SET symbols = EXCLUDED.symbols, updated_at = EXCLUDED.updated_at`,
		wl.UserID, wl.Symbols, wl.UpdatedAt,
	)
	if isMissingAccount(err) {
		return fmt.Errorf("%w: account %s", model.ErrNotFound, wl.UserID)
	}
	return model.Persistence("save watchlist", err)
}

// --- Helpers ---

func insertHoldings(ctx context.Context, tx pgx.Tx, userID string, holdings []model.Holding) error {
	for i, h := range holdings {
		_, err := tx.Exec(ctx,
			`INSERT INTO holdings (user_id, symbol, quantity, average_cost, position)
			 VALUES ($1, $2, $3::NUMERIC, $4::NUMERIC, $5)`,
			userID, h.Symbol, h.Quantity.String(), h.AverageCost.String(), i,
		)
		if err != nil {
			return fmt.Errorf("insert holding %s: %w", h.Symbol, err)
		}
	}
	return nil
}

// pgxRows is the subset of pgx.Rows the scan helpers need.
type pgxRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

func scanHoldings(rows pgxRows) (map[string][]model.Holding, error) {
	byUser := make(map[string][]model.Holding)
	for rows.Next() {
		var userID, qty, cost string
		var h model.Holding
		if err := rows.Scan(&userID, &h.Symbol, &qty, &cost); err != nil {
			return nil, err
		}
		h.Quantity, _ = decimal.NewFromString(qty)
		h.AverageCost, _ = decimal.NewFromString(cost)
		byUser[userID] = append(byUser[userID], h)
	}
	return byUser, rows.Err()
}

func scanAlerts(rows pgxRows) ([]model.PriceAlert, error) {
	var alerts []model.PriceAlert
	for rows.Next() {
		var a model.PriceAlert
		var target, atCreation string
		if err := rows.Scan(&a.ID, &a.UserID, &a.Symbol, &target, &a.Condition,
			&atCreation, &a.Triggered, &a.TriggeredAt, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.TargetPrice, _ = decimal.NewFromString(target)
		a.PriceAtCreation, _ = decimal.NewFromString(atCreation)
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// isUniqueViolation reports whether err is a PostgreSQL unique_violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// isMissingAccount reports a foreign key violation: the row names a user
// with no account.
func isMissingAccount(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

// clampLimit maps "no limit" to 0, which the queries turn into LIMIT NULL.
func clampLimit(limit int) int {
	if limit < 0 {
		return 0
	}
	return limit
}
