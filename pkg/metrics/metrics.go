// Package metrics provides Prometheus metrics for the ADP connector.
// It tracks the extraction path end to end: pages fetched, records
// extracted, soft skips, token refreshes and request latency.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RecordsExtracted counts records emitted per stream.
	RecordsExtracted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adp_records_extracted_total",
			Help: "Total number of records extracted",
		},
		[]string{"stream"},
	)

	// PagesFetched counts API pages fetched per stream.
	PagesFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adp_pages_fetched_total",
			Help: "Total number of API pages fetched",
		},
		[]string{"stream"},
	)

	// SoftSkips counts pages skipped by a classification rule.
	SoftSkips = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adp_soft_skips_total",
			Help: "Total number of responses skipped by classification rules",
		},
		[]string{"stream", "rule"},
	)

	// DescendantStops counts sibling-stop classifications per stream.
	DescendantStops = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adp_descendant_stops_total",
			Help: "Total number of stop-descendants classifications",
		},
		[]string{"stream"},
	)

	// TokenRefreshes counts OAuth token refreshes by result.
	TokenRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adp_token_refreshes_total",
			Help: "Total number of OAuth token refreshes",
		},
		[]string{"result"},
	)

	// RequestDuration tracks API request latency per stream.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "adp_request_duration_seconds",
			Help:    "API request latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"stream", "status"},
	)

	// RetryAttempts counts retries of retryable failures per stream.
	RetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adp_retry_attempts_total",
			Help: "Total number of request retries",
		},
		[]string{"stream"},
	)
)

// Collector provides a per-component metrics handle. Each stream run gets
// its own collector labeled with the stream name.
type Collector struct {
	stream    string
	startTime time.Time
	mu        sync.RWMutex
	records   int64
	pages     int64
}

// NewCollector creates a collector for the given stream.
func NewCollector(stream string) *Collector {
	return &Collector{
		stream:    stream,
		startTime: time.Now(),
	}
}

// RecordExtracted increments the extracted-record counters.
func (c *Collector) RecordExtracted(n int) {
	RecordsExtracted.WithLabelValues(c.stream).Add(float64(n))
	c.mu.Lock()
	c.records += int64(n)
	c.mu.Unlock()
}

// PageFetched increments the page counters.
func (c *Collector) PageFetched() {
	PagesFetched.WithLabelValues(c.stream).Inc()
	c.mu.Lock()
	c.pages++
	c.mu.Unlock()
}

// SoftSkip records a rule-driven skip.
func (c *Collector) SoftSkip(rule string) {
	SoftSkips.WithLabelValues(c.stream, rule).Inc()
}

// DescendantStop records a sibling-stop classification.
func (c *Collector) DescendantStop() {
	DescendantStops.WithLabelValues(c.stream).Inc()
}

// ObserveRequest records a request latency observation.
func (c *Collector) ObserveRequest(status string, d time.Duration) {
	RequestDuration.WithLabelValues(c.stream, status).Observe(d.Seconds())
}

// Retry records a retry attempt.
func (c *Collector) Retry() {
	RetryAttempts.WithLabelValues(c.stream).Inc()
}

// GetAll returns a snapshot of the collector's counters.
func (c *Collector) GetAll() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return map[string]interface{}{
		"stream":     c.stream,
		"records":    c.records,
		"pages":      c.pages,
		"start_time": c.startTime,
		"uptime":     time.Since(c.startTime).Seconds(),
	}
}

// Timer measures operation durations.
type Timer struct {
	start time.Time
	name  string
}

// NewTimer creates a timer that starts immediately.
func NewTimer(name string) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
	}
}

// Stop returns the elapsed duration since creation.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}
