// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts total HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration measures request latency in seconds.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	// VisitsBufferedTotal counts visits accepted into the write buffer.
	VisitsBufferedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "visits_buffered_total",
			Help: "Total number of visits accepted into the write buffer",
		},
	)

	// ReadCacheHitsTotal counts reads served from the in-memory cache.
	ReadCacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "read_cache_hits_total",
			Help: "Total number of reads served from the in-memory cache",
		},
	)

	// ReadCacheMissesTotal counts reads that had to refresh from a shard.
	ReadCacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "read_cache_misses_total",
			Help: "Total number of reads that refreshed from a shard",
		},
	)

	// FlushesTotal counts buffer flushes.
	FlushesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "buffer_flushes_total",
			Help: "Total number of write buffer flushes",
		},
	)

	// FlushDuration measures flush latency in seconds.
	FlushDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "buffer_flush_duration_seconds",
			Help:    "Write buffer flush duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)

	// FailedIncrementsTotal counts shard increments that failed during a
	// flush. These deltas are dropped; the counter makes the gap visible.
	FailedIncrementsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "failed_shard_increments_total",
			Help: "Total number of shard increments that failed during flush",
		},
	)

	// ShardOpDuration measures shard call latency by operation.
	ShardOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shard_op_duration_seconds",
			Help:    "Shard operation duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordRequest records an HTTP request metric.
func RecordRequest(method, path string, status int, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordVisitBuffered records a visit accepted into the buffer.
func RecordVisitBuffered() {
	VisitsBufferedTotal.Inc()
}

// RecordReadCacheHit records a read served from memory.
func RecordReadCacheHit() {
	ReadCacheHitsTotal.Inc()
}

// RecordReadCacheMiss records a read that refreshed from a shard.
func RecordReadCacheMiss() {
	ReadCacheMissesTotal.Inc()
}

// RecordFlush records one buffer flush and its duration.
func RecordFlush(duration time.Duration) {
	FlushesTotal.Inc()
	FlushDuration.Observe(duration.Seconds())
}

// RecordFailedIncrement records a shard increment that failed during flush.
func RecordFailedIncrement() {
	FailedIncrementsTotal.Inc()
}

// RecordShardOp records a shard call duration.
func RecordShardOp(operation string, duration time.Duration) {
	ShardOpDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
