// Package observability holds process metrics and the internal debug server.
package observability

import (
	"net/http"
	"net/http/pprof"
	"os"
	"strconv"
	"strings"
	"time"

	"spike-overlay/internal/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Metrics with bounded cardinality (no per-player or per-peer labels)
var (
	// Overlay pipeline metrics
	snapshotsApplied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "overlay_snapshots_applied_total",
		Help: "Snapshots decoded and applied to the match store",
	})

	decodeErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "overlay_decode_errors_total",
		Help: "Snapshots rejected by the decoder",
	}, []string{"reason"}) // Bounded: "malformed", "missing_field", "length_mismatch", "invalid_number"

	renderDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "overlay_render_duration_seconds",
		Help:    "Time spent in one full redraw",
		Buckets: []float64{0.005, 0.01, 0.02, 0.05, 0.1, 0.25},
	})

	drawErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "overlay_draw_errors_total",
		Help: "Drawing operations that failed inside a render pass",
	}, []string{"pass"})

	deadMarkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "overlay_dead_markers_active",
		Help: "Dead-player markers still fading",
	})

	relayReconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_client_reconnects_total",
		Help: "Relay client reconnect attempts",
	})

	// Relay metrics
	peersActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relay_peers_active",
		Help: "Currently registered relay peers",
	})

	connectionRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_connection_rejected_total",
		Help: "Connections rejected by the relay",
	}, []string{"reason"}) // Bounded: "capacity", "origin", "upgrade"

	messagesBroadcast = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_messages_broadcast_total",
		Help: "Messages fanned out by the relay",
	})

	sendFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_send_failures_total",
		Help: "Per-peer sends that failed",
	})

	messagesThrottled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_messages_throttled_total",
		Help: "Inbound peer messages dropped by the per-peer limiter",
	})

	// HTTP API metrics
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "HTTP requests by route pattern and status",
	}, []string{"method", "route", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency by route pattern",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	httpRateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_rate_limited_total",
		Help: "HTTP requests rejected by the per-client limiter, by budget",
	}, []string{"budget"})
)

// StartDebugServer starts the internal observability server.
// The address is forced to localhost unless ALLOW_DEBUG_EXTERNAL=true.
func StartDebugServer(cfg config.DebugConfig) error {
	if !cfg.Enabled {
		log.Info().Msg("📊 Debug server disabled")
		return nil
	}

	if os.Getenv("ALLOW_DEBUG_EXTERNAL") != "true" && !isLocalAddr(cfg.ListenAddr) {
		log.Warn().Msgf("⚠️ Debug address %s is not local, forcing 127.0.0.1:6060", cfg.ListenAddr)
		cfg.ListenAddr = "127.0.0.1:6060"
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	go func() {
		log.Info().Msgf("📊 Debug server starting on %s", cfg.ListenAddr)
		log.Info().Msgf("   - pprof:   http://%s/debug/pprof/", cfg.ListenAddr)
		log.Info().Msgf("   - metrics: http://%s/metrics", cfg.ListenAddr)

		if err := http.ListenAndServe(cfg.ListenAddr, mux); err != nil {
			log.Error().Err(err).Msg("⚠️ Debug server error")
		}
	}()

	return nil
}

func isLocalAddr(addr string) bool {
	for _, prefix := range []string{"127.0.0.1:", "localhost:", "[::1]:"} {
		if len(addr) >= len(prefix) && addr[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}

// RecordSnapshotApplied counts an applied snapshot
func RecordSnapshotApplied() {
	snapshotsApplied.Inc()
}

// RecordDecodeError counts a rejected snapshot by reason
func RecordDecodeError(reason string) {
	decodeErrors.WithLabelValues(reason).Inc()
}

// RecordRender records redraw timing
func RecordRender(duration time.Duration) {
	renderDuration.Observe(duration.Seconds())
}

// RecordDrawError counts a failed drawing operation for a pass
func RecordDrawError(pass string) {
	drawErrors.WithLabelValues(pass).Inc()
}

// UpdateDeadMarkers sets the active dead-marker gauge
func UpdateDeadMarkers(count int) {
	deadMarkers.Set(float64(count))
}

// RecordReconnect counts a relay client reconnect attempt
func RecordReconnect() {
	relayReconnects.Inc()
}

// UpdatePeers sets the registered peer gauge
func UpdatePeers(count int) {
	peersActive.Set(float64(count))
}

// RecordConnectionRejected increments the rejection counter
// reason must be one of: "capacity", "origin", "upgrade"
func RecordConnectionRejected(reason string) {
	connectionRejected.WithLabelValues(reason).Inc()
}

// RecordBroadcast counts one fanned-out message
func RecordBroadcast() {
	messagesBroadcast.Inc()
}

// RecordSendFailure counts one failed peer send
func RecordSendFailure() {
	sendFailures.Inc()
}

// RecordThrottled counts one dropped inbound peer message
func RecordThrottled() {
	messagesThrottled.Inc()
}

// RecordRequest records one HTTP request. route is the router pattern, never the raw path.
func RecordRequest(method, route string, status int, duration time.Duration) {
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordRateLimited counts one request rejected by the HTTP limiter.
// budget is "read" or "control".
func RecordRateLimited(budget string) {
	httpRateLimited.WithLabelValues(budget).Inc()
}

// InitLogger configures the global zerolog logger for console output at level
// (debug, info, warn, error). Unknown levels fall back to info.
func InitLogger(level string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
}
