// Package episodes provides opt-in, low-overhead telemetry for barrier runs.
// It is designed to be safe to call from hot paths: when disabled, all public
// functions are no-ops.
package episodes

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config controls the behavior of the episodes module.
//
// Notes:
//   - MetricsAddr, when non-empty, starts a dedicated HTTP server that serves
//     /metrics. If you already expose Prometheus elsewhere, leave it empty and
//     register promhttp yourself.
//   - LogInterval is used by the exporter (see exporter.go). If
//     LogInterval == 0, the exporter loop is disabled.
//   - Window is the KPI window the episode rate is computed over; defaults to
//     1m if 0.
type Config struct {
	Enabled     bool
	MetricsAddr string        // e.g., ":9090". Empty to disable standalone metrics endpoint
	LogInterval time.Duration // e.g., 5*time.Second; 0 disables exporter logging
	Window      time.Duration // KPI window to compute the episode rate over
}

var (
	modEnabled atomic.Bool

	// Prometheus metrics — global only, no per-run label cardinality.
	episodesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "barrier_episodes_total",
		Help: "Total barrier episodes completed across all runs",
	})
	actionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "barrier_actions_total",
		Help: "Total barrier actions executed across all runs",
	})
	runsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "barrier_runs_total",
		Help: "Total completed benchmark runs",
	})
	episodeDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "barrier_episode_duration_seconds",
		Help:    "Distribution of single-episode wall time",
		Buckets: prometheus.ExponentialBuckets(100e-9, 4, 12),
	})
	partiesGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "barrier_run_parties",
		Help: "Party count of the most recently finished run",
	})
	// First-class KPI over a rolling window
	episodeRate = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "barrier_episodes_per_second",
		Help: "Episode completion rate over the KPI window",
	})
)

func init() {
	// Register metrics eagerly. If no Prometheus endpoint is exposed, the
	// registration is harmless.
	prometheus.MustRegister(episodesTotal, actionsTotal, runsTotal, episodeDuration, partiesGauge, episodeRate)
}

// Enable configures the module. Safe to call multiple times; subsequent calls
// replace the config.
func Enable(cfg Config) {
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	modEnabled.Store(cfg.Enabled)

	// Start/stop the exporter loop according to config.
	startOrUpdateExporter(cfg)

	// Optionally start a tiny HTTP server just for /metrics.
	if cfg.MetricsAddr != "" {
		startMetricsEndpoint(cfg.MetricsAddr)
	}
}

// Enabled reports whether the episodes module is active.
func Enabled() bool { return modEnabled.Load() }

// ObserveEpisode records one completed episode and, when d > 0, its wall
// time. Call from the barrier action; when the module is disabled this is a
// single atomic load.
func ObserveEpisode(d time.Duration) {
	if !modEnabled.Load() {
		return
	}
	episodesTotal.Inc()
	internalEpisodes.Add(1)
	if d > 0 {
		episodeDuration.Observe(d.Seconds())
	}
}

// ObserveAction records one executed barrier action.
func ObserveAction() {
	if !modEnabled.Load() {
		return
	}
	actionsTotal.Inc()
}

// ObserveRun records a finished run: its party count and overall episode
// rate. Call once per run after the workers have joined.
func ObserveRun(algorithm string, parties, episodes int, episodesPerSec float64) {
	if !modEnabled.Load() {
		return
	}
	runsTotal.Inc()
	partiesGauge.Set(float64(parties))
	exporterRecordRun(algorithm, parties, episodes, episodesPerSec)
}

// startMetricsEndpoint exposes /metrics on the given addr in a background
// goroutine.
func startMetricsEndpoint(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		_ = server.ListenAndServe()
	}()
}
