package observability

import (
	"time"

	"github.com/peandrade/cifracash/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the engine.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration    *prometheus.HistogramVec
	externalErrors     *prometheus.CounterVec
	cacheHits          *prometheus.CounterVec
	cacheMisses        *prometheus.CounterVec
	requestsTotal      *prometheus.CounterVec
	purchasesTotal     prometheus.Counter
	operationsTotal    *prometheus.CounterVec
	yieldComputations  prometheus.Counter
	syntheticFallbacks prometheus.Counter
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cifracash_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cifracash_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cifracash_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cifracash_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cifracash_requests_total",
				Help: "Total requests processed.",
			},
			[]string{"status"},
		),
		purchasesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "cifracash_purchases_total",
				Help: "Total purchase rows created (installments counted individually).",
			},
		),
		operationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cifracash_operations_total",
				Help: "Total investment operations recorded.",
			},
			[]string{"type"},
		),
		yieldComputations: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "cifracash_yield_computations_total",
				Help: "Total fixed-income yield computations.",
			},
		),
		syntheticFallbacks: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "cifracash_synthetic_rate_fallbacks_total",
				Help: "Total rate fetches served by the synthetic fallback series.",
			},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrRequest increments the request counter with a status label.
func (m *Metrics) IncrRequest(status string) {
	m.requestsTotal.WithLabelValues(status).Inc()
}

// AddPurchases records purchase rows created by an installment plan.
func (m *Metrics) AddPurchases(n int) {
	m.purchasesTotal.Add(float64(n))
}

// IncrOperation records an investment operation by type.
func (m *Metrics) IncrOperation(opType string) {
	m.operationsTotal.WithLabelValues(opType).Inc()
}

// IncrYieldComputation records one yield computation.
func (m *Metrics) IncrYieldComputation() {
	m.yieldComputations.Inc()
}

// IncrSyntheticFallback records a rate fetch served by the synthetic series.
func (m *Metrics) IncrSyntheticFallback() {
	m.syntheticFallbacks.Inc()
}

// EngineSnapshot returns a snapshot of engine metrics for the
// GET /v1/metrics/engine endpoint.
func (m *Metrics) EngineSnapshot() *domain.EngineMetrics {
	// Prometheus counters expose cumulative values.
	totalRequests := getCounterValue(m.requestsTotal, "success") +
		getCounterValue(m.requestsTotal, "error")
	errorCount := getCounterValue(m.requestsTotal, "error")
	cacheHits := getCounterValue(m.cacheHits, "cards")
	cacheMisses := getCounterValue(m.cacheMisses, "cards")

	errorRate := float64(0)
	cacheHitRate := float64(0)
	if totalRequests > 0 {
		errorRate = errorCount / totalRequests
	}
	if cacheHits+cacheMisses > 0 {
		cacheHitRate = cacheHits / (cacheHits + cacheMisses)
	}

	return &domain.EngineMetrics{
		TotalRequests:      int64(totalRequests),
		ErrorRate:          errorRate,
		CacheHitRate:       cacheHitRate,
		PurchasesCreated:   int64(getPlainCounterValue(m.purchasesTotal)),
		OperationsCreated:  int64(sumCounterVec(m.operationsTotal, "buy", "sell", "deposit", "withdraw")),
		YieldComputations:  int64(getPlainCounterValue(m.yieldComputations)),
		SyntheticFallbacks: int64(getPlainCounterValue(m.syntheticFallbacks)),
		Period:             "all_time",
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}

func getPlainCounterValue(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}

func sumCounterVec(cv *prometheus.CounterVec, labels ...string) float64 {
	var total float64
	for _, l := range labels {
		total += getCounterValue(cv, l)
	}
	return total
}
