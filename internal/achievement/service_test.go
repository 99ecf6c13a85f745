package achievement_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meditrade/trading-engine/internal/achievement"
	"github.com/meditrade/trading-engine/internal/httpx"
	"github.com/meditrade/trading-engine/internal/model"
	"github.com/meditrade/trading-engine/internal/store"
)

func setup(t *testing.T) (*store.MemoryStore, *achievement.Service, http.Handler) {
	t.Helper()
	st := store.NewMemoryStore()
	svc := achievement.NewService(st, achievement.NewEvaluator(achievement.DefaultCatalog()))

	r := chi.NewRouter()
	r.Get("/api/v1/achievements/leaderboard", svc.AchievementLeaderboard)
	r.Group(func(r chi.Router) {
		r.Use(httpx.RequireUser)
		r.Get("/api/v1/achievements", svc.ListAchievements)
		r.Post("/api/v1/achievements/check", svc.CheckAchievements)
		r.Get("/api/v1/achievements/recent", svc.RecentAchievements)
	})
	return st, svc, r
}

func createUser(t *testing.T, st store.Store, id string, balance int64) {
	t.Helper()
	require.NoError(t, st.CreateAccount(context.Background(), &model.Account{
		UserID:    id,
		Name:      "User " + id,
		Email:     id + "@example.com",
		Role:      model.RoleUser,
		Balance:   decimal.NewFromInt(balance),
		CreatedAt: time.Now().UTC(),
	}))
}

func do(t *testing.T, h http.Handler, method, path, user string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if user != "" {
		req.Header.Set(httpx.UserHeader, user)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestCheck_IsIdempotent(t *testing.T) {
	st, svc, _ := setup(t)
	createUser(t, st, "u1", 100000)
	ctx := context.Background()

	first, err := svc.Check(ctx, "u1")
	require.NoError(t, err)
	require.NotEmpty(t, first)

	second, err := svc.Check(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, second)

	unlocks, err := st.ListAchievementUnlocks(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, unlocks, len(first), "no duplicate unlock records")
}

func TestCheck_UnknownUser(t *testing.T) {
	_, svc, _ := setup(t)
	_, err := svc.Check(context.Background(), "ghost")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestCheckHandler(t *testing.T) {
	st, _, h := setup(t)
	createUser(t, st, "u1", 5000)

	w := do(t, h, http.MethodPost, "/api/v1/achievements/check", "u1")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp achievement.CheckResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Len(t, resp.NewAchievements, 1, "only early_bird qualifies below 10k")
	assert.Equal(t, "early_bird", resp.NewAchievements[0].ID)
	assert.Equal(t, "Unlocked 1 new achievement(s)!", resp.Message)

	w = do(t, h, http.MethodPost, "/api/v1/achievements/check", "u1")
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Empty(t, resp.NewAchievements)
	assert.Equal(t, "No new achievements unlocked", resp.Message)

	w = do(t, h, http.MethodPost, "/api/v1/achievements/check", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestListHandler_GroupsAndCounts(t *testing.T) {
	st, svc, h := setup(t)
	createUser(t, st, "u1", 5000)
	_, err := svc.Check(context.Background(), "u1")
	require.NoError(t, err)

	w := do(t, h, http.MethodGet, "/api/v1/achievements", "u1")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp achievement.ListResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, 20, resp.Stats.Total)
	assert.Equal(t, 1, resp.Stats.Unlocked)
	assert.Equal(t, 5, resp.Stats.Percentage)
	assert.Len(t, resp.Achievements[achievement.CategoryTrading], 5)
	assert.Len(t, resp.Achievements[achievement.CategorySpecial], 4)

	var earlyBird achievement.Status
	for _, s := range resp.Achievements[achievement.CategorySpecial] {
		if s.ID == "early_bird" {
			earlyBird = s
		}
	}
	assert.True(t, earlyBird.Unlocked)
	assert.NotNil(t, earlyBird.UnlockedAt)
}

func TestRecentAndLeaderboard(t *testing.T) {
	st, svc, h := setup(t)
	createUser(t, st, "rich", 2000000)
	createUser(t, st, "poor", 100)
	ctx := context.Background()
	_, err := svc.Check(ctx, "rich")
	require.NoError(t, err)
	_, err = svc.Check(ctx, "poor")
	require.NoError(t, err)

	w := do(t, h, http.MethodGet, "/api/v1/achievements/recent", "rich")
	require.Equal(t, http.StatusOK, w.Code)
	var recent []achievement.Unlocked
	require.NoError(t, json.NewDecoder(w.Body).Decode(&recent))
	assert.Len(t, recent, 5, "early_bird plus the four portfolio tiers")

	w = do(t, h, http.MethodGet, "/api/v1/achievements/leaderboard", "")
	require.Equal(t, http.StatusOK, w.Code)
	var board []achievement.LeaderboardEntry
	require.NoError(t, json.NewDecoder(w.Body).Decode(&board))
	require.Len(t, board, 2)
	assert.Equal(t, "rich", board[0].UserID)
	assert.Equal(t, "User rich", board[0].Name)
	assert.Equal(t, 5, board[0].Count)
	assert.True(t, board[0].Percentage.Equal(decimal.NewFromInt(25)))
	assert.Equal(t, "poor", board[1].UserID)
}
