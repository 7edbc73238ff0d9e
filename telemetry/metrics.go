// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	EventsReceived        prometheus.Counter
	EventsIgnored         prometheus.Counter
	CommandsHandled       *prometheus.CounterVec
	RepliesSent           prometheus.Counter
	RepliesFailed         prometheus.Counter
	TemplateFetches       prometheus.Counter
	TemplateFetchFailures prometheus.Counter
	CacheHits             prometheus.Counter
	Reconnects            prometheus.Counter
	AuthFailures          prometheus.Counter

	// Histograms (seconds)
	CommandDuration prometheus.Observer

	// Gauges
	ConnectionStateGauge    prometheus.Gauge
	SubscribedChannelsGauge prometheus.Gauge
	CatalogSizeGauge        prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		EventsReceived = promauto.NewCounter(prometheus.CounterOpts{Name: "memebot_events_received_total", Help: "Number of gateway message events received"})
		EventsIgnored = promauto.NewCounter(prometheus.CounterOpts{Name: "memebot_events_ignored_total", Help: "Number of gateway message events classified as ignorable"})
		CommandsHandled = promauto.NewCounterVec(prometheus.CounterOpts{Name: "memebot_commands_handled_total", Help: "Number of commands dispatched, by verb"}, []string{"verb"})
		RepliesSent = promauto.NewCounter(prometheus.CounterOpts{Name: "memebot_replies_sent_total", Help: "Number of replies delivered to the directory API"})
		RepliesFailed = promauto.NewCounter(prometheus.CounterOpts{Name: "memebot_replies_failed_total", Help: "Number of reply sends that failed"})
		TemplateFetches = promauto.NewCounter(prometheus.CounterOpts{Name: "memebot_template_fetches_total", Help: "Number of template catalog fetches attempted"})
		TemplateFetchFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "memebot_template_fetch_failures_total", Help: "Number of template catalog fetches that failed"})
		CacheHits = promauto.NewCounter(prometheus.CounterOpts{Name: "memebot_template_cache_hits_total", Help: "Number of catalog reads served from the fresh cache"})
		Reconnects = promauto.NewCounter(prometheus.CounterOpts{Name: "memebot_reconnects_total", Help: "Number of transport losses followed by a reconnect attempt"})
		AuthFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "memebot_auth_failures_total", Help: "Number of rejected authenticate attempts"})
		CommandDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "memebot_command_duration_seconds", Help: "Command handling duration seconds", Buckets: prometheus.DefBuckets})
		ConnectionStateGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "memebot_connection_state", Help: "Session state: 0 disconnected, 1 connecting, 2 authenticating, 3 subscribing, 4 active"})
		SubscribedChannelsGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "memebot_subscribed_channels", Help: "Number of channels subscribed on the current connection"})
		CatalogSizeGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "memebot_template_catalog_size", Help: "Number of templates in the cached catalog"})
	})
}

// Inc bumps a counter if metrics are initialized. Library packages use this so
// tests can run without Init.
func Inc(c prometheus.Counter) {
	if c != nil {
		c.Inc()
	}
}

// IncVerb bumps the per-verb command counter if metrics are initialized.
func IncVerb(verb string) {
	if CommandsHandled != nil {
		CommandsHandled.WithLabelValues(verb).Inc()
	}
}

// SetConnectionState records the numeric session state.
func SetConnectionState(n int) {
	if ConnectionStateGauge != nil {
		ConnectionStateGauge.Set(float64(n))
	}
}

// SetSubscribedChannels records how many channels the current connection covers.
func SetSubscribedChannels(n int) {
	if SubscribedChannelsGauge != nil {
		SubscribedChannelsGauge.Set(float64(n))
	}
}

// SetCatalogSize records the current cached catalog size.
func SetCatalogSize(n int) {
	if CatalogSizeGauge != nil {
		CatalogSizeGauge.Set(float64(n))
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------

type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding correlation id (if absent) and the id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	v := ctx.Value(corrKey)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
