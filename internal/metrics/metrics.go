// Package metrics provides Prometheus instrumentation for the trading engine.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TradesTotal counts executed trades, partitioned by side.
	TradesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meditrade_trades_total",
		Help: "Total number of trades executed",
	}, []string{"side"})

	// TradeLatency tracks trade execution latency, lock wait included.
	TradeLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "meditrade_trade_latency_seconds",
		Help:    "Trade execution latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"side"})

	// TradeRejections counts trades and transfers refused, by error kind.
	TradeRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meditrade_trade_rejections_total",
		Help: "Trades and wallet transfers rejected, by error kind",
	}, []string{"kind"})

	// TradeVolume tracks cumulative traded notional per symbol and side.
	TradeVolume = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meditrade_trade_volume_total",
		Help: "Cumulative traded notional",
	}, []string{"symbol", "side"})

	// WalletTransfers counts deposits and withdrawals.
	WalletTransfers = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meditrade_wallet_transfers_total",
		Help: "Wallet deposits and withdrawals",
	}, []string{"type"})

	// AchievementsUnlocked counts unlocks per achievement.
	AchievementsUnlocked = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meditrade_achievements_unlocked_total",
		Help: "Achievements unlocked",
	}, []string{"achievement_id"})

	// AlertsTriggered counts price alerts fired, by condition.
	AlertsTriggered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meditrade_alerts_triggered_total",
		Help: "Price alerts triggered",
	}, []string{"condition"})

	// NewsViews counts article reads, by category.
	NewsViews = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meditrade_news_views_total",
		Help: "News articles read",
	}, []string{"category"})

	// PriceTicks counts quote board updates.
	PriceTicks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "meditrade_price_ticks_total",
		Help: "Quote board ticks",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "meditrade_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, route, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meditrade_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and route.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "meditrade_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		path := routePattern(r)
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// routePattern returns the matched chi pattern (e.g. /api/v1/alerts/{alertID})
// to keep label cardinality bounded. Unmatched requests share one label.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack lets WebSocket upgrades pass through the middleware.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return h.Hijack()
}
