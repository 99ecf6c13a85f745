package achievement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meditrade/trading-engine/internal/httpx"
	"github.com/meditrade/trading-engine/internal/metrics"
	"github.com/meditrade/trading-engine/internal/model"
	"github.com/meditrade/trading-engine/internal/store"
)

const (
	recentLimit      = 5
	leaderboardLimit = 10
)

// Service records unlocks and serves the achievement endpoints.
type Service struct {
	store store.Store
	eval  *Evaluator
	now   func() time.Time
}

// NewService creates an achievement service.
func NewService(st store.Store, eval *Evaluator) *Service {
	return &Service{store: st, eval: eval, now: time.Now}
}

// Unlocked is a definition together with the time it was unlocked.
type Unlocked struct {
	Definition
	UnlockedAt time.Time `json:"unlocked_at"`
}

// Check evaluates the user's current stats and records every newly
// qualifying achievement. Calling it again with unchanged data unlocks
// nothing. An unlock that races with a concurrent check is skipped, not
// reported as an error.
func (s *Service) Check(ctx context.Context, userID string) ([]Unlocked, error) {
	acct, err := s.store.GetAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	trades, err := s.store.ListTradesByUser(ctx, userID, 0)
	if err != nil {
		return nil, err
	}
	existing, err := s.store.ListAchievementUnlocks(ctx, userID)
	if err != nil {
		return nil, err
	}
	have := make(map[string]bool, len(existing))
	for _, u := range existing {
		have[u.AchievementID] = true
	}

	stats := ComputeStats(*acct, trades)
	var out []Unlocked
	for _, d := range s.eval.Evaluate(stats, have) {
		u := &model.AchievementUnlock{UserID: userID, AchievementID: d.ID, UnlockedAt: s.now().UTC()}
		err := s.store.InsertAchievementUnlock(ctx, u)
		if errors.Is(err, model.ErrAlreadyUnlocked) {
			continue
		}
		if err != nil {
			return out, fmt.Errorf("unlock %s: %w", d.ID, err)
		}
		metrics.AchievementsUnlocked.WithLabelValues(d.ID).Inc()
		slog.Info("achievement unlocked",
			"user", userID,
			"achievement", d.ID,
			"total_trades", stats.TotalTrades,
			"portfolio_value", stats.PortfolioValue.String(),
		)
		out = append(out, Unlocked{Definition: d, UnlockedAt: u.UnlockedAt})
	}
	return out, nil
}

// --- Request/Response types ---

// Status is a catalog entry annotated for one user.
type Status struct {
	Definition
	Unlocked   bool       `json:"unlocked"`
	UnlockedAt *time.Time `json:"unlocked_at,omitempty"`
}

// Summary counts a user's unlocks.
type Summary struct {
	Total      int `json:"total"`
	Unlocked   int `json:"unlocked"`
	Percentage int `json:"percentage"`
}

// ListResponse is the body of GET /achievements.
type ListResponse struct {
	Stats        Summary               `json:"stats"`
	Progress     Stats                 `json:"progress"`
	Achievements map[Category][]Status `json:"achievements"`
}

// CheckResponse is the body of POST /achievements/check.
type CheckResponse struct {
	NewAchievements []Unlocked `json:"new_achievements"`
	Message         string     `json:"message"`
}

// LeaderboardEntry ranks users by number of unlocks.
type LeaderboardEntry struct {
	UserID     string          `json:"user_id"`
	Name       string          `json:"name"`
	Count      int             `json:"count"`
	Percentage decimal.Decimal `json:"percentage"`
}

// --- HTTP Handlers ---

// ListAchievements handles GET /api/v1/achievements
func (s *Service) ListAchievements(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := httpx.UserID(ctx)

	acct, err := s.store.GetAccount(ctx, userID)
	if err != nil {
		httpx.WriteDomainError(w, r, err)
		return
	}
	trades, err := s.store.ListTradesByUser(ctx, userID, 0)
	if err != nil {
		httpx.WriteDomainError(w, r, err)
		return
	}
	unlocks, err := s.store.ListAchievementUnlocks(ctx, userID)
	if err != nil {
		httpx.WriteDomainError(w, r, err)
		return
	}
	at := make(map[string]time.Time, len(unlocks))
	for _, u := range unlocks {
		at[u.AchievementID] = u.UnlockedAt
	}

	grouped := make(map[Category][]Status, len(Categories))
	for _, c := range Categories {
		grouped[c] = []Status{}
	}
	for _, d := range s.eval.Catalog().All() {
		st := Status{Definition: d}
		if t, ok := at[d.ID]; ok {
			st.Unlocked = true
			st.UnlockedAt = &t
		}
		grouped[d.Category] = append(grouped[d.Category], st)
	}

	total := s.eval.Catalog().Len()
	resp := ListResponse{
		Stats:        Summary{Total: total, Unlocked: len(unlocks), Percentage: percentOf(len(unlocks), total)},
		Progress:     ComputeStats(*acct, trades),
		Achievements: grouped,
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// CheckAchievements handles POST /api/v1/achievements/check
func (s *Service) CheckAchievements(w http.ResponseWriter, r *http.Request) {
	unlocked, err := s.Check(r.Context(), httpx.UserID(r.Context()))
	if err != nil {
		httpx.WriteDomainError(w, r, err)
		return
	}
	if unlocked == nil {
		unlocked = []Unlocked{}
	}
	msg := "No new achievements unlocked"
	if len(unlocked) > 0 {
		msg = fmt.Sprintf("Unlocked %d new achievement(s)!", len(unlocked))
	}
	httpx.WriteJSON(w, http.StatusOK, CheckResponse{NewAchievements: unlocked, Message: msg})
}

// RecentAchievements handles GET /api/v1/achievements/recent
func (s *Service) RecentAchievements(w http.ResponseWriter, r *http.Request) {
	unlocks, err := s.store.ListAchievementUnlocks(r.Context(), httpx.UserID(r.Context()))
	if err != nil {
		httpx.WriteDomainError(w, r, err)
		return
	}
	out := []Unlocked{}
	for _, u := range unlocks {
		d, ok := s.eval.Catalog().Lookup(u.AchievementID)
		if !ok {
			continue // retired from the catalog
		}
		out = append(out, Unlocked{Definition: d, UnlockedAt: u.UnlockedAt})
		if len(out) == recentLimit {
			break
		}
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// AchievementLeaderboard handles GET /api/v1/achievements/leaderboard
func (s *Service) AchievementLeaderboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	counts, err := s.store.CountUnlocksByUser(ctx)
	if err != nil {
		httpx.WriteDomainError(w, r, err)
		return
	}

	ids := make([]string, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if counts[ids[i]] != counts[ids[j]] {
			return counts[ids[i]] > counts[ids[j]]
		}
		return ids[i] < ids[j]
	})

	total := decimal.NewFromInt(int64(s.eval.Catalog().Len()))
	out := []LeaderboardEntry{}
	for _, id := range ids {
		if len(out) == leaderboardLimit {
			break
		}
		acct, err := s.store.GetAccount(ctx, id)
		if errors.Is(err, model.ErrNotFound) {
			continue
		}
		if err != nil {
			httpx.WriteDomainError(w, r, err)
			return
		}
		n := counts[id]
		out = append(out, LeaderboardEntry{
			UserID:     id,
			Name:       acct.Name,
			Count:      n,
			Percentage: decimal.NewFromInt(int64(n)).Div(total).Mul(decimal.NewFromInt(100)).Round(2),
		})
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// percentOf returns part/total as a whole percentage, rounded half up.
func percentOf(part, total int) int {
	if total == 0 {
		return 0
	}
	return (part*100 + total/2) / total
}
