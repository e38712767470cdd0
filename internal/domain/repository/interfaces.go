package repository

import (
	"context"

	"OptionScan/internal/domain/models"
)

// StrategyCatalog is the read-only set of strategy templates the screener filters over.
// Implementations must hand out copies; callers are free to modify what they receive.
type StrategyCatalog interface {
	Templates(ctx context.Context) ([]models.Strategy, error)
	Get(ctx context.Context, id string) (models.Strategy, error)
}

// QuoteSource looks up a current price for a ticker. A source without data
// returns models.ErrQuoteNotFound; a failing upstream wraps models.ErrUpstreamUnavailable.
type QuoteSource interface {
	Name() string
	Quote(ctx context.Context, ticker string) (models.Quote, error)
}

// TickStore keeps the last accepted tick per symbol.
type TickStore interface {
	Put(ctx context.Context, t *models.Tick) error
}

// MarketStream is a live trade feed.
type MarketStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.Tick, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// ScanPublisher emits completed scans to downstream consumers.
type ScanPublisher interface {
	PublishScan(ctx context.Context, res *models.ScanResult) error
	Close() error
}

// HealthChecker reports the reachability of an infrastructure dependency.
type HealthChecker interface {
	Name() string
	Health(ctx context.Context) error
}

type Metrics interface {
	RecordScan(profile string, returned int)
	RecordQuoteSource(source string, estimated bool)
	RecordQuoteFallback(source, reason string)
	RecordError(kind string)
	RecordLastPrice(symbol string, price float64)
	RecordLatency(op string, seconds float64)
	RecordEventPublished(topic string, ok bool)
}
