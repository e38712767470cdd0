package polygon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"OptionScan/internal/domain/models"
	drepo "OptionScan/internal/domain/repository"
	pkghttp "OptionScan/pkg/http"
	applogger "OptionScan/pkg/logger"
	"OptionScan/pkg/util"

	"github.com/sony/gobreaker"
)

// SourcePolygon names quotes from Polygon previous-day aggregates.
const SourcePolygon = "polygon"

type BreakerConfig struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
	Breaker BreakerConfig
}

// Client is a QuoteSource over Polygon's previous-close endpoint, guarded by
// a circuit breaker. Only upstream failures trip the breaker.
type Client struct {
	apiKey  string
	baseURL string
	http    *pkghttp.Client
	cb      *gobreaker.CircuitBreaker
	l       *applogger.Logger
}

type aggResult struct {
	Ticker string  `json:"T"`
	Open   float64 `json:"o"`
	High   float64 `json:"h"`
	Low    float64 `json:"l"`
	Close  float64 `json:"c"`
	Volume float64 `json:"v"`
	Time   int64   `json:"t"` // ms
}

type prevCloseResponse struct {
	Status       string      `json:"status"`
	ResultsCount int         `json:"resultsCount"`
	Results      []aggResult `json:"results"`
}

func New(cfg Config, l *applogger.Logger, opts ...pkghttp.ClientOption) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.polygon.io"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Breaker.FailureThreshold == 0 {
		cfg.Breaker.FailureThreshold = 5
	}
	if l == nil {
		l = applogger.Nop()
	}
	l = l.With(applogger.String("component", "polygon"))

	threshold := cfg.Breaker.FailureThreshold
	st := gobreaker.Settings{
		Name:        SourcePolygon,
		MaxRequests: cfg.Breaker.MaxRequests,
		Interval:    cfg.Breaker.Interval,
		Timeout:     cfg.Breaker.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, models.ErrUpstreamUnavailable)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			l.Warn("circuit breaker state change",
				applogger.String("breaker", name),
				applogger.String("from", from.String()),
				applogger.String("to", to.String()),
			)
		},
	}

	opts = append([]pkghttp.ClientOption{pkghttp.WithTimeout(cfg.Timeout)}, opts...)
	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    pkghttp.NewClient(opts...),
		cb:      gobreaker.NewCircuitBreaker(st),
		l:       l,
	}
}

func (c *Client) Name() string { return SourcePolygon }

// State exposes the breaker state for health reporting.
func (c *Client) State() gobreaker.State { return c.cb.State() }

// Quote returns the previous trading day's aggregate for ticker.
func (c *Client) Quote(ctx context.Context, ticker string) (models.Quote, error) {
	v, err := c.cb.Execute(func() (interface{}, error) {
		return c.prevClose(ctx, ticker)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return models.Quote{}, fmt.Errorf("%w: polygon: %v", models.ErrUpstreamUnavailable, err)
		}
		return models.Quote{}, err
	}
	return v.(models.Quote), nil
}

func (c *Client) prevClose(ctx context.Context, ticker string) (models.Quote, error) {
	var resp prevCloseResponse
	err := c.http.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method: http.MethodGet,
		URL:    fmt.Sprintf("%s/v2/aggs/ticker/%s/prev", c.baseURL, url.PathEscape(ticker)),
		QueryParams: map[string][]string{
			"adjusted": {"true"},
			"apiKey":   {c.apiKey},
		},
	}, &resp)
	if err != nil {
		return models.Quote{}, classify(ticker, err)
	}
	if resp.Status != "OK" && resp.Status != "DELAYED" || resp.ResultsCount == 0 || len(resp.Results) == 0 {
		return models.Quote{}, fmt.Errorf("%w: polygon has no aggregate for %s", models.ErrQuoteNotFound, ticker)
	}

	r := resp.Results[0]
	if r.Close <= 0 {
		return models.Quote{}, fmt.Errorf("%w: polygon returned no close for %s", models.ErrQuoteNotFound, ticker)
	}
	q := models.Quote{
		Ticker:    ticker,
		Price:     r.Close,
		Change:    util.RoundCents(r.Close - r.Open),
		Open:      r.Open,
		High:      r.High,
		Low:       r.Low,
		Volume:    int64(r.Volume),
		Source:    SourcePolygon,
		Timestamp: time.UnixMilli(r.Time).UTC(),
	}
	if r.Open > 0 {
		q.ChangePercent = util.RoundCents((r.Close - r.Open) / r.Open * 100)
	}
	return q, nil
}

func classify(ticker string, err error) error {
	var se *pkghttp.StatusError
	if errors.As(err, &se) {
		switch {
		case se.StatusCode == http.StatusNotFound:
			return fmt.Errorf("%w: %s", models.ErrQuoteNotFound, ticker)
		case se.Temporary():
			return fmt.Errorf("%w: polygon: %v", models.ErrUpstreamUnavailable, err)
		default:
			return fmt.Errorf("polygon: %w", err)
		}
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	// transport failures and timeouts
	return fmt.Errorf("%w: polygon: %w", models.ErrUpstreamUnavailable, err)
}

var _ drepo.QuoteSource = (*Client)(nil)
