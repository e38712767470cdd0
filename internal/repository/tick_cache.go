package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"OptionScan/internal/domain/models"
	domrepo "OptionScan/internal/domain/repository"
	"OptionScan/pkg/cache"
)

const (
	tickPrefix = "tick"

	// SourceTicks names quotes derived from the live tick feed.
	SourceTicks = "ticks"
)

// TickCache keeps the last accepted tick per symbol in the quote cache and
// serves it back as a quote while it is fresher than maxAge.
type TickCache struct {
	cache  cache.Service
	maxAge time.Duration
	now    func() time.Time
}

func NewTickCache(c cache.Service, maxAge time.Duration) *TickCache {
	if maxAge <= 0 {
		maxAge = 15 * time.Minute
	}
	return &TickCache{cache: c, maxAge: maxAge, now: time.Now}
}

// Put overwrites the symbol's last tick unless the stored one is newer.
func (s *TickCache) Put(ctx context.Context, t *models.Tick) error {
	if t == nil || t.Symbol == "" {
		return fmt.Errorf("%w: tick without symbol", models.ErrInvalidArgument)
	}
	key := cache.GenerateKey(tickPrefix, t.Symbol)

	var prev models.Tick
	err := s.cache.Get(ctx, key, &prev)
	switch {
	case err == nil && prev.Timestamp > t.Timestamp:
		return nil
	case err != nil && !errors.Is(err, cache.ErrCacheMiss):
		return fmt.Errorf("read last tick: %w", err)
	}
	if err := s.cache.Set(ctx, key, t, s.maxAge); err != nil {
		return fmt.Errorf("store tick: %w", err)
	}
	return nil
}

// Last returns the stored tick for symbol.
func (s *TickCache) Last(ctx context.Context, symbol string) (models.Tick, error) {
	var t models.Tick
	if err := s.cache.Get(ctx, cache.GenerateKey(tickPrefix, symbol), &t); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return t, fmt.Errorf("%w: no tick for %s", models.ErrQuoteNotFound, symbol)
		}
		return t, fmt.Errorf("read tick: %w", err)
	}
	return t, nil
}

func (s *TickCache) Name() string { return SourceTicks }

func (s *TickCache) Local() bool { return true }

func (s *TickCache) Quote(ctx context.Context, ticker string) (models.Quote, error) {
	t, err := s.Last(ctx, ticker)
	if err != nil {
		return models.Quote{}, err
	}
	ts := time.Unix(t.Timestamp, 0).UTC()
	if s.now().Sub(ts) > s.maxAge {
		return models.Quote{}, fmt.Errorf("%w: tick for %s is stale", models.ErrQuoteNotFound, ticker)
	}
	return models.Quote{
		Ticker:    ticker,
		Price:     t.Price,
		Volume:    int64(t.Volume),
		Source:    SourceTicks,
		Timestamp: ts,
	}, nil
}

var (
	_ domrepo.TickStore   = (*TickCache)(nil)
	_ domrepo.QuoteSource = (*TickCache)(nil)
)
