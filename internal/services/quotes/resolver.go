package quotes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"OptionScan/internal/domain/models"
	domrepo "OptionScan/internal/domain/repository"
	"OptionScan/pkg/cache"
	applogger "OptionScan/pkg/logger"
	"OptionScan/pkg/metrics"
	"OptionScan/pkg/util"
)

const cachePrefix = "quote"

// localSource is implemented by sources whose answers are already in memory or
// in the quote cache. Their quotes are not written back to the cache.
type localSource interface {
	Local() bool
}

// Resolver walks an ordered chain of price sources for a ticker.
// The cache is consulted first, then each source with its own timeout.
type Resolver struct {
	sources  []domrepo.QuoteSource
	cache    cache.Service
	cacheTTL time.Duration
	timeout  time.Duration
	metrics  domrepo.Metrics
	l        *applogger.Logger
	rnd      *Rand
}

type Option func(*Resolver)

// WithCache enables the read-through quote cache.
func WithCache(c cache.Service, ttl time.Duration) Option {
	return func(r *Resolver) {
		r.cache = c
		if ttl > 0 {
			r.cacheTTL = ttl
		}
	}
}

// WithTimeout bounds each source lookup.
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.timeout = d
		}
	}
}

func WithMetrics(m domrepo.Metrics) Option {
	return func(r *Resolver) {
		if m != nil {
			r.metrics = m
		}
	}
}

func WithLogger(l *applogger.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.l = l
		}
	}
}

// WithRand sets the random source used for synthetic prices.
func WithRand(rnd *Rand) Option {
	return func(r *Resolver) {
		if rnd != nil {
			r.rnd = rnd
		}
	}
}

func NewResolver(sources []domrepo.QuoteSource, opts ...Option) *Resolver {
	r := &Resolver{
		sources:  sources,
		cacheTTL: time.Minute,
		timeout:  3 * time.Second,
		metrics:  metrics.Nop{},
		l:        applogger.Nop(),
		rnd:      NewRand(nil),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the first quote any source has for ticker.
// It returns models.ErrQuoteNotFound when every source misses.
func (r *Resolver) Resolve(ctx context.Context, ticker string) (models.Quote, error) {
	ticker = util.NormalizeTicker(ticker)
	if ticker == "" {
		return models.Quote{}, fmt.Errorf("%w: ticker is required", models.ErrInvalidArgument)
	}
	start := time.Now()
	defer func() { r.metrics.RecordLatency("quote_resolve", time.Since(start).Seconds()) }()

	key := cache.GenerateKey(cachePrefix, ticker)
	if r.cache != nil {
		var q models.Quote
		err := r.cache.Get(ctx, key, &q)
		switch {
		case err == nil:
			r.metrics.RecordQuoteSource("cache", q.Estimated)
			return q, nil
		case !errors.Is(err, cache.ErrCacheMiss):
			r.l.Warn("quote cache read failed", applogger.String("ticker", ticker), applogger.Error(err))
			r.metrics.RecordQuoteFallback("cache", "error")
		}
	}

	for _, src := range r.sources {
		if err := ctx.Err(); err != nil {
			return models.Quote{}, err
		}
		q, err := r.lookup(ctx, src, ticker)
		if err != nil {
			r.fallback(src.Name(), ticker, err)
			continue
		}
		if q.Source == "" {
			q.Source = src.Name()
		}
		if q.Ticker == "" {
			q.Ticker = ticker
		}
		r.metrics.RecordQuoteSource(q.Source, q.Estimated)
		r.store(ctx, src, key, q)
		return q, nil
	}
	return models.Quote{}, fmt.Errorf("%w: %s", models.ErrQuoteNotFound, ticker)
}

// ResolveOrEstimate never fails: when no source knows the ticker a synthetic
// price in [100, 300) is returned with Estimated set.
func (r *Resolver) ResolveOrEstimate(ctx context.Context, ticker string) models.Quote {
	q, err := r.Resolve(ctx, ticker)
	if err == nil {
		return q
	}
	if !errors.Is(err, models.ErrQuoteNotFound) {
		r.l.Warn("quote resolution aborted", applogger.String("ticker", ticker), applogger.Error(err))
	}
	q = r.rnd.ScanEstimate(util.NormalizeTicker(ticker), time.Now())
	r.metrics.RecordQuoteSource(q.Source, true)
	return q
}

// Estimate returns a random day quote for ticker, marked as estimated.
func (r *Resolver) Estimate(ticker string) models.Quote {
	q := r.rnd.QuoteEstimate(util.NormalizeTicker(ticker), time.Now())
	r.metrics.RecordQuoteSource(q.Source, true)
	return q
}

func (r *Resolver) lookup(ctx context.Context, src domrepo.QuoteSource, ticker string) (models.Quote, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return src.Quote(ctx, ticker)
}

func (r *Resolver) fallback(source, ticker string, err error) {
	if errors.Is(err, models.ErrQuoteNotFound) {
		r.l.Debug("quote source miss", applogger.String("source", source), applogger.String("ticker", ticker))
		r.metrics.RecordQuoteFallback(source, "miss")
		return
	}
	reason := "error"
	if errors.Is(err, context.DeadlineExceeded) {
		reason = "timeout"
	}
	r.l.Warn("quote source failed",
		applogger.String("source", source),
		applogger.String("ticker", ticker),
		applogger.Error(err),
	)
	r.metrics.RecordQuoteFallback(source, reason)
}

func (r *Resolver) store(ctx context.Context, src domrepo.QuoteSource, key string, q models.Quote) {
	if r.cache == nil || q.Estimated {
		return
	}
	if ls, ok := src.(localSource); ok && ls.Local() {
		return
	}
	if err := r.cache.Set(ctx, key, q, r.cacheTTL); err != nil {
		r.l.Warn("quote cache write failed", applogger.String("key", key), applogger.Error(err))
	}
}
