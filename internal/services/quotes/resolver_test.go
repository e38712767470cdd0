package quotes

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync/atomic"
	"testing"
	"time"

	"OptionScan/internal/domain/models"
	domrepo "OptionScan/internal/domain/repository"
	"OptionScan/pkg/cache"
	"OptionScan/pkg/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	name  string
	quote models.Quote
	err   error
	delay time.Duration
	calls atomic.Int32
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Quote(ctx context.Context, ticker string) (models.Quote, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return models.Quote{}, ctx.Err()
		}
	}
	if f.err != nil {
		return models.Quote{}, f.err
	}
	q := f.quote
	q.Ticker = ticker
	return q, nil
}

type fallbackRecorder struct {
	fallbacks []string
	sources   []string
}

func (r *fallbackRecorder) RecordScan(string, int) {}
func (r *fallbackRecorder) RecordQuoteSource(source string, _ bool) {
	r.sources = append(r.sources, source)
}
func (r *fallbackRecorder) RecordQuoteFallback(source, reason string) {
	r.fallbacks = append(r.fallbacks, source+":"+reason)
}
func (r *fallbackRecorder) RecordError(string)              {}
func (r *fallbackRecorder) RecordLastPrice(string, float64) {}
func (r *fallbackRecorder) RecordLatency(string, float64)   {}
func (r *fallbackRecorder) RecordEventPublished(string, bool) {
}

func TestResolverFallsThroughInOrder(t *testing.T) {
	down := &fakeSource{name: "polygon", err: errors.New("boom")}
	miss := &fakeSource{name: "clickhouse", err: models.ErrQuoteNotFound}
	hit := &fakeSource{name: "ticks", quote: models.Quote{Price: 101.5}}
	rec := &fallbackRecorder{}

	r := NewResolver([]domrepo.QuoteSource{miss, down, hit}, WithMetrics(rec))
	q, err := r.Resolve(context.Background(), " msft ")
	require.NoError(t, err)

	assert.Equal(t, "MSFT", q.Ticker)
	assert.Equal(t, 101.5, q.Price)
	assert.Equal(t, "ticks", q.Source)
	assert.False(t, q.Estimated)
	assert.Equal(t, []string{"clickhouse:miss", "polygon:error"}, rec.fallbacks)
	assert.Equal(t, []string{"ticks"}, rec.sources)
}

func TestResolverAllMiss(t *testing.T) {
	r := NewResolver([]domrepo.QuoteSource{&fakeSource{name: "a", err: models.ErrQuoteNotFound}})

	_, err := r.Resolve(context.Background(), "ZZZZ")
	assert.ErrorIs(t, err, models.ErrQuoteNotFound)
}

func TestResolverBlankTicker(t *testing.T) {
	src := &fakeSource{name: "a"}
	r := NewResolver([]domrepo.QuoteSource{src})

	_, err := r.Resolve(context.Background(), "   ")
	assert.ErrorIs(t, err, models.ErrInvalidArgument)
	assert.Zero(t, src.calls.Load())
}

func TestResolverPerSourceTimeout(t *testing.T) {
	slow := &fakeSource{name: "slow", delay: time.Second, quote: models.Quote{Price: 1}}
	fast := &fakeSource{name: "fast", quote: models.Quote{Price: 2}}
	rec := &fallbackRecorder{}

	r := NewResolver([]domrepo.QuoteSource{slow, fast}, WithTimeout(20*time.Millisecond), WithMetrics(rec))
	q, err := r.Resolve(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "fast", q.Source)
	assert.Equal(t, []string{"slow:timeout"}, rec.fallbacks)
}

func TestResolverCachesUpstreamQuotes(t *testing.T) {
	mc := cache.NewMemoryCache()
	defer mc.Close()

	src := &fakeSource{name: "polygon", quote: models.Quote{Price: 99}}
	r := NewResolver([]domrepo.QuoteSource{src}, WithCache(mc, time.Minute))

	first, err := r.Resolve(context.Background(), "IBM")
	require.NoError(t, err)
	second, err := r.Resolve(context.Background(), "IBM")
	require.NoError(t, err)

	assert.Equal(t, int32(1), src.calls.Load())
	assert.Equal(t, first.Price, second.Price)
	assert.Equal(t, "polygon", second.Source)
}

func TestResolverDoesNotCacheLocalSources(t *testing.T) {
	mc := cache.NewMemoryCache()
	defer mc.Close()

	r := NewResolver([]domrepo.QuoteSource{NewDemoSource()}, WithCache(mc, time.Minute))
	q, err := r.Resolve(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 175.50, q.Price)

	ok, err := mc.Exists(context.Background(), cache.GenerateKey(cachePrefix, "AAPL"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResolveOrEstimateSynthesizes(t *testing.T) {
	r := NewResolver(nil, WithRand(NewRand(rand.NewPCG(1, 2))))

	for i := 0; i < 200; i++ {
		q := r.ResolveOrEstimate(context.Background(), "unknownco")
		assert.Equal(t, "UNKNOWNCO", q.Ticker)
		assert.True(t, q.Estimated)
		assert.Equal(t, SourceSynthetic, q.Source)
		assert.GreaterOrEqual(t, q.Price, 100.0)
		assert.Less(t, q.Price, 300.01)
	}
}

func TestResolveOrEstimatePrefersRealSource(t *testing.T) {
	r := NewResolver([]domrepo.QuoteSource{NewDemoSource()})

	q := r.ResolveOrEstimate(context.Background(), "SPY")
	assert.False(t, q.Estimated)
	assert.Equal(t, 425.30, q.Price)
	assert.Equal(t, SourceDemo, q.Source)
}

func TestQuoteEstimateBounds(t *testing.T) {
	rnd := NewRand(rand.NewPCG(7, 9))
	for i := 0; i < 500; i++ {
		q := rnd.QuoteEstimate("X", time.Now())
		assert.GreaterOrEqual(t, q.Price, 50.0)
		assert.LessOrEqual(t, q.Price, 350.0)
		assert.GreaterOrEqual(t, q.Change, -5.0)
		assert.LessOrEqual(t, q.Change, 5.0)
		assert.GreaterOrEqual(t, q.Volume, int64(1_000_000))
		assert.Less(t, q.Volume, int64(51_000_000))
		assert.Equal(t, q.Price, util.RoundCents(q.Price))
		assert.True(t, q.Estimated)
	}
}

func TestDemoSource(t *testing.T) {
	d := NewDemoSource()

	q, err := d.Quote(context.Background(), "TSLA")
	require.NoError(t, err)
	assert.Equal(t, 245.80, q.Price)
	assert.Equal(t, 5.67, q.Change)
	assert.Equal(t, int64(67890123), q.Volume)
	assert.False(t, q.Estimated)

	_, err = d.Quote(context.Background(), "ZZZ")
	assert.ErrorIs(t, err, models.ErrQuoteNotFound)
}
