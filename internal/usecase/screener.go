package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"OptionScan/internal/domain/models"
	domrepo "OptionScan/internal/domain/repository"
	domsvc "OptionScan/internal/domain/service"
	applogger "OptionScan/pkg/logger"
	"OptionScan/pkg/util"

	"github.com/google/uuid"
)

const (
	DefaultMinDTE        = 30
	DefaultMaxDTE        = 45
	DefaultMaxStrategies = 10
)

// ScanParams is one screening request. Zero or negative numeric fields take defaults.
type ScanParams struct {
	Ticker        string
	RiskProfile   models.RiskProfile
	MinDTE        int
	MaxDTE        int
	MaxStrategies int
}

// PriceResolver yields a reference price for a ticker and never fails.
type PriceResolver interface {
	ResolveOrEstimate(ctx context.Context, ticker string) models.Quote
}

// StrategyScreener ranks catalog strategies for a ticker and risk profile.
type StrategyScreener struct {
	catalog        domrepo.StrategyCatalog
	prices         PriceResolver
	adjuster       domsvc.ScoreAdjuster
	publisher      domrepo.ScanPublisher
	publishTimeout time.Duration
	metrics        domrepo.Metrics
	l              *applogger.Logger
	now            func() time.Time
	newID          func() string
}

type ScreenerOption func(*StrategyScreener)

// WithPublisher emits every completed scan. Failures are logged and counted only.
func WithPublisher(p domrepo.ScanPublisher, timeout time.Duration) ScreenerOption {
	return func(s *StrategyScreener) {
		s.publisher = p
		if timeout > 0 {
			s.publishTimeout = timeout
		}
	}
}

func WithClock(now func() time.Time) ScreenerOption {
	return func(s *StrategyScreener) {
		if now != nil {
			s.now = now
		}
	}
}

func NewStrategyScreener(
	catalog domrepo.StrategyCatalog,
	prices PriceResolver,
	adjuster domsvc.ScoreAdjuster,
	metrics domrepo.Metrics,
	l *applogger.Logger,
	opts ...ScreenerOption,
) *StrategyScreener {
	if l == nil {
		l = applogger.Nop()
	}
	s := &StrategyScreener{
		catalog:        catalog,
		prices:         prices,
		adjuster:       adjuster,
		publishTimeout: 2 * time.Second,
		metrics:        metrics,
		l:              l,
		now:            time.Now,
		newID:          func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Screen resolves the reference price, filters the catalog by the profile's
// confidence floor, ranks by confidence and returns at most MaxStrategies
// adjusted copies in ranked order.
func (s *StrategyScreener) Screen(ctx context.Context, p ScanParams) (*models.ScanResult, error) {
	start := time.Now()
	ticker := util.NormalizeTicker(p.Ticker)
	if ticker == "" {
		return nil, fmt.Errorf("%w: ticker is required", models.ErrInvalidArgument)
	}
	minDTE := orDefault(p.MinDTE, DefaultMinDTE)
	maxDTE := orDefault(p.MaxDTE, DefaultMaxDTE)
	limit := orDefault(p.MaxStrategies, DefaultMaxStrategies)

	floor, known := p.RiskProfile.ConfidenceFloor()
	if !known {
		s.l.Warn("unrecognized risk profile, not narrowing",
			applogger.String("risk_profile", string(p.RiskProfile)),
			applogger.String("ticker", ticker),
		)
	}

	quote := s.prices.ResolveOrEstimate(ctx, ticker)

	templates, err := s.catalog.Templates(ctx)
	if err != nil {
		s.metrics.RecordError("catalog")
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	ranked := Rank(templates, floor, limit)
	out := make([]models.Strategy, len(ranked))
	for i, t := range ranked {
		out[i] = s.adjuster.Adjust(t.Clone())
	}

	now := s.now().UTC()
	from, to := util.ExpiryWindow(now, minDTE, maxDTE)
	res := &models.ScanResult{
		ScanID:       s.newID(),
		Ticker:       ticker,
		RiskProfile:  p.RiskProfile,
		MinDTE:       minDTE,
		MaxDTE:       maxDTE,
		CurrentPrice: quote.Price,
		Quote:        quote,
		Strategies:   out,
		ExpiryFrom:   from,
		ExpiryTo:     to,
		GeneratedAt:  now,
	}

	s.metrics.RecordScan(string(p.RiskProfile), len(out))
	s.metrics.RecordLatency("scan", time.Since(start).Seconds())
	s.publish(ctx, res)
	return res, nil
}

// Rank keeps templates with confidence >= floor, stable-sorts them by
// descending confidence and truncates to limit. The input is not modified.
func Rank(templates []models.Strategy, floor float64, limit int) []models.Strategy {
	eligible := make([]models.Strategy, 0, len(templates))
	for _, t := range templates {
		if t.Confidence >= floor {
			eligible = append(eligible, t)
		}
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		return eligible[i].Confidence > eligible[j].Confidence
	})
	if limit >= 0 && len(eligible) > limit {
		eligible = eligible[:limit]
	}
	return eligible
}

func (s *StrategyScreener) publish(ctx context.Context, res *models.ScanResult) {
	if s.publisher == nil {
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
	defer cancel()

	const topic = "scans"
	if err := s.publisher.PublishScan(pctx, res); err != nil {
		s.l.Warn("scan event publish failed",
			applogger.String("scan_id", res.ScanID),
			applogger.String("ticker", res.Ticker),
			applogger.Error(err),
		)
		s.metrics.RecordEventPublished(topic, false)
		return
	}
	s.metrics.RecordEventPublished(topic, true)
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
