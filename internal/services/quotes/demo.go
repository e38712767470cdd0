package quotes

import (
	"context"
	"fmt"
	"time"

	"OptionScan/internal/domain/models"
	domrepo "OptionScan/internal/domain/repository"
)

// SourceDemo names quotes served from the built-in table.
const SourceDemo = "demo"

// DemoSource serves fixed prices for a handful of liquid underlyings so the
// service is usable without market data credentials.
type DemoSource struct {
	quotes map[string]models.Quote
	now    func() time.Time
}

func NewDemoSource() *DemoSource {
	return NewDemoSourceWith(DemoQuotes())
}

// NewDemoSourceWith serves the given table, keyed by ticker.
func NewDemoSourceWith(quotes []models.Quote) *DemoSource {
	m := make(map[string]models.Quote, len(quotes))
	for _, q := range quotes {
		m[q.Ticker] = q
	}
	return &DemoSource{quotes: m, now: time.Now}
}

func (d *DemoSource) Name() string { return SourceDemo }

func (d *DemoSource) Local() bool { return true }

func (d *DemoSource) Quote(_ context.Context, ticker string) (models.Quote, error) {
	q, ok := d.quotes[ticker]
	if !ok {
		return models.Quote{}, fmt.Errorf("%w: %s", models.ErrQuoteNotFound, ticker)
	}
	q.Source = SourceDemo
	q.Timestamp = d.now().UTC()
	return q, nil
}

// DemoQuotes is the built-in demo table.
func DemoQuotes() []models.Quote {
	return []models.Quote{
		{Ticker: "AAPL", Price: 175.50, Change: 2.34, ChangePercent: 1.35, Volume: 45678900},
		{Ticker: "SPY", Price: 425.30, Change: -1.25, ChangePercent: -0.29, Volume: 23456780},
		{Ticker: "TSLA", Price: 245.80, Change: 5.67, ChangePercent: 2.36, Volume: 67890123},
		{Ticker: "MSFT", Price: 342.15},
		{Ticker: "NVDA", Price: 456.70},
		{Ticker: "META", Price: 298.45},
		{Ticker: "GOOGL", Price: 138.25},
		{Ticker: "AMZN", Price: 145.60},
	}
}

var _ domrepo.QuoteSource = (*DemoSource)(nil)
