package observability

import (
	"sync"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrors counts Redis errors by command.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "folio_redis_errors_total",
		Help: "Total number of Redis errors by command",
	}, []string{"command"})

	// DatabaseQueryLatency records MongoDB operation latency by operation and collection.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "folio_database_query_latency_seconds",
		Help:    "Database operation latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "collection"})

	// AuthFailures counts rejected authentications by reason.
	AuthFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "folio_auth_failures_total",
		Help: "Total number of rejected authentication attempts",
	}, []string{"reason"})

	// ErrorsByKind counts normalized API errors by failure kind.
	ErrorsByKind = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "folio_errors_total",
		Help: "Total number of API errors by kind",
	}, []string{"kind"})

	// CacheLookups counts cache-aside hits and misses by cache name.
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "folio_cache_lookups_total",
		Help: "Cache lookups by cache and result",
	}, []string{"cache", "result"})

	// AssetOperations counts asset storage calls by operation and result.
	AssetOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "folio_asset_operations_total",
		Help: "Asset storage operations by operation and result",
	}, []string{"operation", "result"})

	// MailDeliveries counts outbound mails by provider and result.
	MailDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "folio_mail_deliveries_total",
		Help: "Outbound mail deliveries by provider and result",
	}, []string{"provider", "result"})
)

var (
	httpMetricsOnce sync.Once
	httpMetrics     *fiberprometheus.FiberPrometheus
)

// HTTPMetrics returns the request metrics middleware. Its collectors live in
// the default registry, so it is created once per process.
func HTTPMetrics() *fiberprometheus.FiberPrometheus {
	httpMetricsOnce.Do(func() {
		httpMetrics = fiberprometheus.New("folio-api")
	})
	return httpMetrics
}

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, collection string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, collection).Observe(time.Since(start).Seconds())
	}
}

// Result maps an error to a metric label.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
