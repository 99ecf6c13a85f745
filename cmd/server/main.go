package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/meditrade/trading-engine/internal/achievement"
	"github.com/meditrade/trading-engine/internal/admin"
	"github.com/meditrade/trading-engine/internal/alert"
	"github.com/meditrade/trading-engine/internal/asset"
	"github.com/meditrade/trading-engine/internal/config"
	"github.com/meditrade/trading-engine/internal/httpx"
	"github.com/meditrade/trading-engine/internal/leaderboard"
	"github.com/meditrade/trading-engine/internal/metrics"
	"github.com/meditrade/trading-engine/internal/model"
	"github.com/meditrade/trading-engine/internal/news"
	"github.com/meditrade/trading-engine/internal/quote"
	"github.com/meditrade/trading-engine/internal/store"
	"github.com/meditrade/trading-engine/internal/trade"
	"github.com/meditrade/trading-engine/internal/watchlist"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	var level slog.Level
	_ = level.UnmarshalText([]byte(cfg.LogLevel))
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Initialize store ---
	st, cleanup, err := store.Open(ctx, store.Options{
		DatabaseURL: cfg.DatabaseURL,
		RedisURL:    cfg.RedisURL,
		CacheTTL:    cfg.CacheTTL,
		Migrate:     true,
	})
	if err != nil {
		slog.Error("store init failed", "err", err)
		os.Exit(1)
	}
	defer cleanup()

	// --- Quote board and WebSocket hub ---
	board := quote.NewBoard(asset.DefaultRegistry())
	wsHub := trade.NewWSHub()
	go wsHub.Run(ctx)

	// --- Services ---
	tradeSvc := trade.NewService(st, board, cfg.StartingBalance, wsHub)
	achievementSvc := achievement.NewService(st, achievement.NewEvaluator(achievement.DefaultCatalog()))
	leaderboardSvc := leaderboard.NewService(st, board.Price, cfg.StartingBalance)
	alertSvc := alert.NewService(st, board.Price, cfg.MaxActiveAlerts, wsHub)
	watchlistSvc := watchlist.NewService(st, cfg.MaxWatchlist)
	newsSvc := news.NewService(news.DefaultCatalog(time.Now().UTC()))
	adminSvc := admin.NewService(st)

	go board.Run(ctx, cfg.PriceTickEvery, logger, func(ctx context.Context, quotes []model.Quote) {
		metrics.PriceTicks.Inc()
		wsHub.PriceUpdate(quotes)
		if _, err := alertSvc.CheckQuotes(ctx, quotes); err != nil {
			slog.Error("alert check failed", "err", err)
		}
	})

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	// CORS middleware for frontend cross-origin requests.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+httpx.UserHeader)
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "trading-engine"})
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for real-time prices, trades and alerts.
		// Outside the request timeout: the connection is long-lived.
		r.Get("/ws", wsHub.HandleWS)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))

			// Public.
			r.Post("/accounts", tradeSvc.HandleCreateAccount)
			r.Get("/prices", tradeSvc.GetPrices)
			r.Get("/leaderboard", leaderboardSvc.GetLeaderboard)
			r.Get("/leaderboard/top", leaderboardSvc.GetTop)
			r.Get("/achievements/leaderboard", achievementSvc.AchievementLeaderboard)
			r.Post("/alerts/check", alertSvc.CheckAlerts)

			r.Get("/news", newsSvc.GetNews)
			r.Get("/news/breaking", newsSvc.GetBreaking)
			r.Get("/news/category/{category}", newsSvc.GetByCategory)
			r.Get("/news/{articleID}", newsSvc.GetArticle)

			// Caller identity required.
			r.Group(func(r chi.Router) {
				r.Use(httpx.RequireUser)

				r.Get("/accounts/me", tradeSvc.GetMe)

				r.Post("/trades/buy", tradeSvc.Buy)
				r.Post("/trades/sell", tradeSvc.Sell)
				r.Get("/trades/history", tradeSvc.GetHistory)
				r.Get("/portfolio", tradeSvc.GetPortfolio)
				r.Get("/analytics", tradeSvc.GetAnalytics)

				r.Get("/wallet", tradeSvc.GetWallet)
				r.Post("/wallet/deposit", tradeSvc.Deposit)
				r.Post("/wallet/withdraw", tradeSvc.Withdraw)

				r.Get("/achievements", achievementSvc.ListAchievements)
				r.Post("/achievements/check", achievementSvc.CheckAchievements)
				r.Get("/achievements/recent", achievementSvc.RecentAchievements)

				r.Get("/alerts", alertSvc.ListAlerts)
				r.Post("/alerts", alertSvc.CreateAlert)
				r.Get("/alerts/triggered", alertSvc.TriggeredAlerts)
				r.Delete("/alerts/{alertID}", alertSvc.DeleteAlert)

				r.Get("/watchlist", watchlistSvc.GetWatchlist)
				r.Post("/watchlist/add", watchlistSvc.AddToWatchlist)
				r.Post("/watchlist/remove", watchlistSvc.RemoveFromWatchlist)
				r.Post("/watchlist/toggle", watchlistSvc.ToggleWatchlist)
				r.Put("/watchlist/reorder", watchlistSvc.ReorderWatchlist)

				// Read-only platform views for admin-role accounts.
				r.Route("/admin", func(r chi.Router) {
					r.Use(adminSvc.RequireAdmin)
					r.Get("/stats", adminSvc.GetStats)
					r.Get("/activity", adminSvc.GetActivity)
					r.Get("/users", adminSvc.GetUsers)
					r.Get("/trades", adminSvc.GetTrades)
					r.Get("/transactions", adminSvc.GetTransactions)
				})
			})
		})
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Port),
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("trading-engine listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		slog.Error("server error", "err", err)
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	slog.Info("shutting down trading-engine...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	slog.Info("trading-engine stopped")
}
