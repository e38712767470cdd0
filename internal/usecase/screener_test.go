package usecase

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"OptionScan/internal/domain/models"
	domrepo "OptionScan/internal/domain/repository"
	"OptionScan/internal/repository"
	"OptionScan/internal/services/quotes"
	"OptionScan/internal/services/scoring"
	"OptionScan/pkg/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingResolver struct {
	calls int
	quote models.Quote
}

func (r *countingResolver) ResolveOrEstimate(_ context.Context, ticker string) models.Quote {
	r.calls++
	q := r.quote
	q.Ticker = ticker
	return q
}

type brokenCatalog struct{}

func (brokenCatalog) Templates(context.Context) ([]models.Strategy, error) {
	return nil, errors.New("disk on fire")
}

func (brokenCatalog) Get(context.Context, string) (models.Strategy, error) {
	return models.Strategy{}, errors.New("disk on fire")
}

type recordingPublisher struct {
	got []*models.ScanResult
	err error
}

func (p *recordingPublisher) PublishScan(_ context.Context, res *models.ScanResult) error {
	p.got = append(p.got, res)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func newTestScreener(catalog domrepo.StrategyCatalog, opts ...ScreenerOption) (*StrategyScreener, *countingResolver) {
	res := &countingResolver{quote: models.Quote{Price: 175.5, Source: "demo"}}
	return NewStrategyScreener(catalog, res, scoring.IdentityAdjuster{}, metrics.Nop{}, nil, opts...), res
}

func confidences(ss []models.Strategy) []float64 {
	out := make([]float64, len(ss))
	for i, s := range ss {
		out[i] = s.Confidence
	}
	return out
}

func TestScreenConservativeAAPL(t *testing.T) {
	s, _ := newTestScreener(repository.NewDefaultCatalog())

	res, err := s.Screen(context.Background(), ScanParams{Ticker: "AAPL", RiskProfile: models.RiskConservative})
	require.NoError(t, err)
	assert.Equal(t, []float64{73.2, 68.5, 65.1}, confidences(res.Strategies))
	assert.Equal(t, 175.5, res.CurrentPrice)
	assert.Equal(t, "AAPL", res.Ticker)
	assert.NotEmpty(t, res.ScanID)
}

func TestScreenAggressiveTruncates(t *testing.T) {
	s, _ := newTestScreener(repository.NewDefaultCatalog())

	res, err := s.Screen(context.Background(), ScanParams{Ticker: "AAPL", RiskProfile: models.RiskAggressive, MaxStrategies: 2})
	require.NoError(t, err)
	assert.Equal(t, []float64{73.2, 68.5}, confidences(res.Strategies))
}

func TestScreenFloorsAreMonotonic(t *testing.T) {
	s, _ := newTestScreener(repository.NewDefaultCatalog())
	ctx := context.Background()

	var prev map[string]bool
	for _, p := range models.RiskProfiles {
		res, err := s.Screen(ctx, ScanParams{Ticker: "SPY", RiskProfile: p, MaxStrategies: 20})
		require.NoError(t, err)
		ids := map[string]bool{}
		for _, st := range res.Strategies {
			ids[st.ID] = true
		}
		for id := range prev {
			assert.True(t, ids[id], "%s dropped %s kept by a tighter profile", p, id)
		}
		prev = ids
	}
}

func TestScreenDefaults(t *testing.T) {
	s, _ := newTestScreener(repository.NewDefaultCatalog())

	res, err := s.Screen(context.Background(), ScanParams{Ticker: "aapl", RiskProfile: models.RiskAggressive, MaxStrategies: -3})
	require.NoError(t, err)
	assert.Equal(t, "AAPL", res.Ticker)
	assert.Equal(t, DefaultMinDTE, res.MinDTE)
	assert.Equal(t, DefaultMaxDTE, res.MaxDTE)
	assert.Len(t, res.Strategies, 5)
	assert.Equal(t, res.ExpiryFrom.AddDate(0, 0, DefaultMaxDTE-DefaultMinDTE), res.ExpiryTo)
}

func TestScreenAggressiveReturnsDistinctCopies(t *testing.T) {
	catalog := repository.NewDefaultCatalog()
	s, _ := newTestScreener(catalog)
	ctx := context.Background()

	res, err := s.Screen(ctx, ScanParams{Ticker: "AAPL", RiskProfile: models.RiskAggressive, MaxStrategies: 20})
	require.NoError(t, err)
	require.Len(t, res.Strategies, catalog.Len())

	seen := map[string]bool{}
	for _, st := range res.Strategies {
		assert.False(t, seen[st.ID])
		seen[st.ID] = true
	}

	res.Strategies[0].Confidence = 0
	*res.Strategies[0].ProbabilityOfProfit = 0
	tpl, err := catalog.Get(ctx, res.Strategies[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 73.2, tpl.Confidence)
	assert.Equal(t, 0.68, *tpl.ProbabilityOfProfit)
}

func TestScreenBlankTickerSkipsLookup(t *testing.T) {
	s, res := newTestScreener(repository.NewDefaultCatalog())

	_, err := s.Screen(context.Background(), ScanParams{Ticker: "   ", RiskProfile: models.RiskModerate})
	assert.ErrorIs(t, err, models.ErrInvalidArgument)
	assert.Zero(t, res.calls)
}

func TestScreenUnknownProfileIsPermissive(t *testing.T) {
	s, _ := newTestScreener(repository.NewDefaultCatalog())

	res, err := s.Screen(context.Background(), ScanParams{Ticker: "AAPL", RiskProfile: "yolo"})
	require.NoError(t, err)
	assert.Len(t, res.Strategies, 5)
}

func TestScreenCatalogFailure(t *testing.T) {
	s, _ := newTestScreener(brokenCatalog{})

	_, err := s.Screen(context.Background(), ScanParams{Ticker: "AAPL", RiskProfile: models.RiskModerate})
	require.Error(t, err)
	assert.False(t, errors.Is(err, models.ErrInvalidArgument))
}

func TestScreenUnknownTickerGetsEstimatedPrice(t *testing.T) {
	resolver := quotes.NewResolver([]domrepo.QuoteSource{quotes.NewDemoSource()})
	s := NewStrategyScreener(repository.NewDefaultCatalog(), resolver, scoring.IdentityAdjuster{}, metrics.Nop{}, nil)

	res, err := s.Screen(context.Background(), ScanParams{Ticker: "QWERTY", RiskProfile: models.RiskModerate})
	require.NoError(t, err)
	assert.True(t, res.Quote.Estimated)
	assert.GreaterOrEqual(t, res.CurrentPrice, 100.0)
	assert.LessOrEqual(t, res.CurrentPrice, 300.0)
	assert.NotEmpty(t, res.Strategies)
}

func TestScreenJitterKeepsOrderAndBounds(t *testing.T) {
	adj := scoring.NewJitterAdjuster(scoring.WithSource(rand.NewPCG(3, 4)))
	res := &countingResolver{quote: models.Quote{Price: 100}}
	s := NewStrategyScreener(repository.NewDefaultCatalog(), res, adj, metrics.Nop{}, nil)

	templates := repository.DefaultTemplates()
	for i := 0; i < 50; i++ {
		out, err := s.Screen(context.Background(), ScanParams{Ticker: "AAPL", RiskProfile: models.RiskAggressive})
		require.NoError(t, err)
		require.Len(t, out.Strategies, len(templates))
		for j, st := range out.Strategies {
			assert.Equal(t, templates[j].ID, st.ID)
			assert.InDelta(t, templates[j].Confidence, st.Confidence, 2.5)
			assert.GreaterOrEqual(t, st.MaxProfit, scoring.RoundWhole(templates[j].MaxProfit*0.8))
			assert.LessOrEqual(t, st.MaxProfit, scoring.RoundWhole(templates[j].MaxProfit*1.2))
			assert.Equal(t, st.MaxLoss, scoring.RoundWhole(st.MaxLoss))
		}
	}
}

func TestScreenPublishesBestEffort(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	fixed := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)
	s, _ := newTestScreener(repository.NewDefaultCatalog(), WithPublisher(pub, time.Second), WithClock(func() time.Time { return fixed }))

	res, err := s.Screen(context.Background(), ScanParams{Ticker: "TSLA", RiskProfile: models.RiskModerate})
	require.NoError(t, err)
	require.Len(t, pub.got, 1)
	assert.Same(t, res, pub.got[0])
	assert.Equal(t, fixed, res.GeneratedAt)
}

func TestRankDoesNotMutateInput(t *testing.T) {
	in := []models.Strategy{{ID: "a", Confidence: 1}, {ID: "b", Confidence: 3}, {ID: "c", Confidence: 3}}

	out := Rank(in, 0, 10)
	assert.Equal(t, []string{"b", "c", "a"}, []string{out[0].ID, out[1].ID, out[2].ID})
	assert.Equal(t, "a", in[0].ID)
}
