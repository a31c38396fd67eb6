package rates

import (
	"context"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var tracer = otel.Tracer("rates")

// Fetcher retrieves the benchmark series from the external source.
type Fetcher interface {
	FetchRange(ctx context.Context, start, end time.Time) (Series, error)
}

// History caches the benchmark-rate series fetched from the external source.
// It holds a single coarse cache entry with a TTL: a request for a longer
// window than cached invalidates and refetches; concurrent misses are
// coalesced into one upstream call.
type History struct {
	fetcher       Fetcher
	ttl           time.Duration
	estimatedRate float64 // daily % used by the synthetic fallback
	logger        *zap.Logger
	now           func() time.Time

	group singleflight.Group

	mu         sync.RWMutex
	cached     Series
	cachedDays int
	cachedAt   time.Time
	synthetic  bool
}

// Option configures a History.
type Option func(*History)

// WithClock injects the clock, used by tests to control TTL expiry.
func WithClock(now func() time.Time) Option {
	return func(h *History) { h.now = now }
}

// NewHistory creates a rate history store around the given fetcher.
func NewHistory(fetcher Fetcher, ttl time.Duration, estimatedDailyRate float64, logger *zap.Logger, opts ...Option) *History {
	h := &History{
		fetcher:       fetcher,
		ttl:           ttl,
		estimatedRate: estimatedDailyRate,
		logger:        logger,
		now:           time.Now,
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

type fetchResult struct {
	series    Series
	synthetic bool
}

// Fetch returns the series covering [today-days, today]. The boolean reports
// whether the synthetic fallback was served. Fetch never fails hard: source
// errors degrade to the synthetic series.
func (h *History) Fetch(ctx context.Context, days int) (Series, bool) {
	ctx, span := tracer.Start(ctx, "History.Fetch")
	defer span.End()
	span.SetAttributes(attribute.Int("rates.days", days))

	if s, syn, ok := h.fromCache(days); ok {
		return s, syn
	}

	v, _, _ := h.group.Do(strconv.Itoa(days), func() (any, error) {
		// Another caller may have filled the cache while we waited.
		if s, syn, ok := h.fromCache(days); ok {
			return fetchResult{series: s, synthetic: syn}, nil
		}
		return h.refetch(ctx, days), nil
	})

	res := v.(fetchResult)
	return res.series, res.synthetic
}

// fromCache serves the cached series when it is fresh and its window covers
// the requested one.
func (h *History) fromCache(days int) (Series, bool, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.cached == nil || days > h.cachedDays {
		return nil, false, false
	}
	if h.now().Sub(h.cachedAt) > h.ttl {
		return nil, false, false
	}
	return h.cached, h.synthetic, true
}

func (h *History) refetch(ctx context.Context, days int) fetchResult {
	end := h.now()
	start := end.AddDate(0, 0, -days)

	series, err := h.fetcher.FetchRange(ctx, start, end)
	synthetic := false
	if err != nil || len(series) == 0 {
		series = Synthetic(start, end, h.estimatedRate)
		synthetic = true
		h.logger.Warn("rate source unavailable, serving synthetic series",
			zap.Int("days", days),
			zap.Float64("estimated_daily_rate", h.estimatedRate),
			zap.Error(err),
		)
	}

	h.mu.Lock()
	h.cached = series
	h.cachedDays = days
	h.cachedAt = h.now()
	h.synthetic = synthetic
	h.mu.Unlock()

	return fetchResult{series: series, synthetic: synthetic}
}
