package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "livemap",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "livemap",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "livemap",
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "HTTP response size in bytes",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
	}, []string{"method", "path"})

	// Layer refresh metrics
	RefreshDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "livemap",
		Subsystem: "layer",
		Name:      "refresh_duration_seconds",
		Help:      "Duration of one feature collection refresh cycle",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"layer"})

	RefreshErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "livemap",
		Subsystem: "layer",
		Name:      "refresh_errors_total",
		Help:      "Total failed feature collection fetches",
	}, []string{"layer"})

	FeaturesSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "livemap",
		Subsystem: "layer",
		Name:      "features_skipped_total",
		Help:      "Features dropped during rendering",
	}, []string{"layer", "reason"})

	Markers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "livemap",
		Subsystem: "layer",
		Name:      "markers",
		Help:      "Markers currently displayed per layer",
	}, []string{"layer"})

	MarkerEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "livemap",
		Subsystem: "layer",
		Name:      "marker_events_total",
		Help:      "Marker events produced by refresh cycles",
	}, []string{"layer", "kind"})

	// GTFS-RT poller metrics
	FeedPollDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "livemap",
		Subsystem: "realtime",
		Name:      "feed_poll_duration_seconds",
		Help:      "Duration of GTFS-RT feed polling",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"feed"})

	FeedPollErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "livemap",
		Subsystem: "realtime",
		Name:      "feed_poll_errors_total",
		Help:      "Total GTFS-RT feed poll errors",
	}, []string{"feed"})

	FeedEntities = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "livemap",
		Subsystem: "realtime",
		Name:      "feed_entities",
		Help:      "Entities stored from the last successful poll",
	}, []string{"feed"})

	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "livemap",
		Subsystem: "ws",
		Name:      "active_connections",
		Help:      "Current number of active WebSocket connections",
	})

	DroppedSnapshots = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "livemap",
		Subsystem: "ws",
		Name:      "dropped_snapshots_total",
		Help:      "Snapshots dropped because a client was not keeping up",
	})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "livemap",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total cache hits",
	}, []string{"operation"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "livemap",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total cache misses",
	}, []string{"operation"})

	// Database pool metrics
	DBPoolConnsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "livemap",
		Subsystem: "db",
		Name:      "pool_conns_open",
		Help:      "Total connections open in the database pool",
	})

	DBPoolConnsAcquired = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "livemap",
		Subsystem: "db",
		Name:      "pool_conns_acquired",
		Help:      "Connections currently acquired from the database pool",
	})

	DBPoolConnsIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "livemap",
		Subsystem: "db",
		Name:      "pool_conns_idle",
		Help:      "Idle connections in the database pool",
	})
)

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)
		httpResponseSize.WithLabelValues(method, path).Observe(float64(len(c.Response().Body())))

		return err
	}
}

// Handler returns a Fiber handler serving Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := promhttp.Handler()
	return func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(handler)(c.Context())
		return nil
	}
}

type poolStat interface {
	AcquiredConns() int32
	IdleConns() int32
	TotalConns() int32
}

// UpdateDBPoolMetrics updates database pool gauges from a pgxpool.Stat.
// Taking an interface keeps pgx out of this package.
func UpdateDBPoolMetrics(stat any) {
	if s, ok := stat.(poolStat); ok {
		DBPoolConnsAcquired.Set(float64(s.AcquiredConns()))
		DBPoolConnsIdle.Set(float64(s.IdleConns()))
		DBPoolConnsOpen.Set(float64(s.TotalConns()))
	}
}
