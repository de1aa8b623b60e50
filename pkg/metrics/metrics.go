// Package metrics provides metrics collection and reporting for reviewd.
// It includes an interface for metric collection and a Prometheus-compatible
// implementation.
package metrics

import (
	"net/http"
	"sync"
	"time"
)

// =============================================================================
// Metrics Interface
// =============================================================================

// Collector is the interface for collecting and reporting metrics.
// Implement this interface to use custom metrics backends.
type Collector interface {
	// Counter operations
	CounterInc(name string, labels ...string)
	CounterAdd(name string, value float64, labels ...string)

	// Gauge operations
	GaugeSet(name string, value float64, labels ...string)
	GaugeInc(name string, labels ...string)
	GaugeDec(name string, labels ...string)

	// Histogram operations
	HistogramObserve(name string, value float64, labels ...string)

	// Handler returns an HTTP handler for the metrics endpoint
	Handler() http.Handler
}

// MetricDefinition defines a metric with its metadata.
type MetricDefinition struct {
	Name    string
	Help    string
	Labels  []string
	Buckets []float64 // histograms only
}

// =============================================================================
// Standard reviewd metrics
// =============================================================================

var (
	// ReviewsTotal counts completed review runs by outcome.
	ReviewsTotal = MetricDefinition{
		Name:   "reviews_total",
		Help:   "Total number of review runs",
		Labels: []string{"status"},
	}

	// ReviewDuration observes end-to-end review run duration.
	ReviewDuration = MetricDefinition{
		Name:    "review_duration_seconds",
		Help:    "Review run duration in seconds",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
	}

	// ChunksTotal counts analysis chunks by outcome.
	ChunksTotal = MetricDefinition{
		Name:   "chunks_total",
		Help:   "Total number of analysis chunks processed",
		Labels: []string{"status"},
	}

	// RedactionsTotal counts masked secrets by category.
	RedactionsTotal = MetricDefinition{
		Name:   "redactions_total",
		Help:   "Total number of sensitive matches masked before analysis",
		Labels: []string{"category"},
	}

	// SkippedFilesTotal counts files excluded from review.
	SkippedFilesTotal = MetricDefinition{
		Name: "skipped_files_total",
		Help: "Total number of files excluded from review by classification",
	}

	// AnalyzerRequestsTotal counts calls to the analysis layer.
	AnalyzerRequestsTotal = MetricDefinition{
		Name:   "analyzer_requests_total",
		Help:   "Total number of analysis API calls",
		Labels: []string{"status"},
	}

	// AnalyzerRequestDuration observes analysis call latency.
	AnalyzerRequestDuration = MetricDefinition{
		Name:    "analyzer_request_duration_seconds",
		Help:    "Analysis API call duration in seconds",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	}

	// HTTPRequestsTotal counts front-end HTTP requests.
	HTTPRequestsTotal = MetricDefinition{
		Name:   "http_requests_total",
		Help:   "Total number of HTTP requests handled",
		Labels: []string{"path", "status"},
	}
)

// =============================================================================
// NopCollector - No-operation implementation
// =============================================================================

// NopCollector discards all metrics. Use this when metrics are not needed.
type NopCollector struct{}

func (c *NopCollector) CounterInc(name string, labels ...string)                      {}
func (c *NopCollector) CounterAdd(name string, value float64, labels ...string)       {}
func (c *NopCollector) GaugeSet(name string, value float64, labels ...string)         {}
func (c *NopCollector) GaugeInc(name string, labels ...string)                        {}
func (c *NopCollector) GaugeDec(name string, labels ...string)                        {}
func (c *NopCollector) HistogramObserve(name string, value float64, labels ...string) {}
func (c *NopCollector) Handler() http.Handler                                         { return http.NotFoundHandler() }

// =============================================================================
// InMemoryCollector - Simple in-memory implementation for testing
// =============================================================================

// InMemoryCollector stores metrics in memory for testing purposes.
type InMemoryCollector struct {
	mu         sync.RWMutex
	counters   map[string]float64
	gauges     map[string]float64
	histograms map[string][]float64
}

// NewInMemoryCollector creates a new in-memory metrics collector.
func NewInMemoryCollector() *InMemoryCollector {
	return &InMemoryCollector{
		counters:   make(map[string]float64),
		gauges:     make(map[string]float64),
		histograms: make(map[string][]float64),
	}
}

func (c *InMemoryCollector) key(name string, labels []string) string {
	key := name
	for i := 0; i+1 < len(labels); i += 2 {
		key += "," + labels[i] + "=" + labels[i+1]
	}
	return key
}

func (c *InMemoryCollector) CounterInc(name string, labels ...string) {
	c.CounterAdd(name, 1, labels...)
}

func (c *InMemoryCollector) CounterAdd(name string, value float64, labels ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters[c.key(name, labels)] += value
}

func (c *InMemoryCollector) GaugeSet(name string, value float64, labels ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gauges[c.key(name, labels)] = value
}

func (c *InMemoryCollector) GaugeInc(name string, labels ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gauges[c.key(name, labels)]++
}

func (c *InMemoryCollector) GaugeDec(name string, labels ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gauges[c.key(name, labels)]--
}

func (c *InMemoryCollector) HistogramObserve(name string, value float64, labels ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := c.key(name, labels)
	c.histograms[key] = append(c.histograms[key], value)
}

func (c *InMemoryCollector) Handler() http.Handler {
	return http.NotFoundHandler()
}

// GetCounter returns the current value of a counter.
func (c *InMemoryCollector) GetCounter(name string, labels ...string) float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.counters[c.key(name, labels)]
}

// GetGauge returns the current value of a gauge.
func (c *InMemoryCollector) GetGauge(name string, labels ...string) float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gauges[c.key(name, labels)]
}

// GetHistogram returns all observations of a histogram.
func (c *InMemoryCollector) GetHistogram(name string, labels ...string) []float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.histograms[c.key(name, labels)]
}

// =============================================================================
// Timer - Helper for timing operations
// =============================================================================

// Timer is a helper for timing operations and recording to histograms.
type Timer struct {
	start     time.Time
	collector Collector
	name      string
	labels    []string
}

// NewTimer creates a new timer that will record to the given histogram.
func NewTimer(collector Collector, name string, labels ...string) *Timer {
	return &Timer{
		start:     time.Now(),
		collector: collector,
		name:      name,
		labels:    labels,
	}
}

// ObserveDuration records the duration since the timer was created.
func (t *Timer) ObserveDuration() time.Duration {
	d := time.Since(t.start)
	t.collector.HistogramObserve(t.name, d.Seconds(), t.labels...)
	return d
}

// =============================================================================
// Interface compliance
// =============================================================================

var (
	_ Collector = (*NopCollector)(nil)
	_ Collector = (*InMemoryCollector)(nil)
)
