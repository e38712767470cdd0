package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	"OptionScan/internal/domain/models"
	domrepo "OptionScan/internal/domain/repository"
	pkgch "OptionScan/pkg/clickhouse"
	applogger "OptionScan/pkg/logger"
	"OptionScan/pkg/util"

	"github.com/jmoiron/sqlx"
)

// SourceClickHouse names quotes built from stored candles.
const SourceClickHouse = "clickhouse"

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// The session is the calendar day of the most recent candle within the window.
const sessionQuery = `
        SELECT
            argMin(open, bucket)  AS open,
            max(high)             AS high,
            min(low)              AS low,
            argMax(close, bucket) AS close,
            sum(vol)              AS vol,
            max(bucket)           AS ts
        FROM %[1]s
        WHERE symbol = ?
          AND bucket >= toStartOfDay((SELECT max(bucket) FROM %[1]s WHERE symbol = ? AND bucket >= ?))
    `

type sessionRow struct {
	Open   float64   `db:"open"`
	High   float64   `db:"high"`
	Low    float64   `db:"low"`
	Close  float64   `db:"close"`
	Volume float64   `db:"vol"`
	TS     time.Time `db:"ts"`
}

// CHQuoteSource derives a day quote from the latest session of 1m candles.
type CHQuoteSource struct {
	db       *sqlx.DB
	query    string
	maxStale time.Duration
	l        *applogger.Logger
	now      func() time.Time
}

func NewCHQuoteSource(ch *pkgch.Client, table string, maxStale time.Duration, l *applogger.Logger) (*CHQuoteSource, error) {
	return NewCHQuoteSourceFromDB(sqlx.NewDb(ch.DB(), "clickhouse"), table, maxStale, l)
}

// NewCHQuoteSourceFromDB builds the source on an existing handle.
func NewCHQuoteSourceFromDB(db *sqlx.DB, table string, maxStale time.Duration, l *applogger.Logger) (*CHQuoteSource, error) {
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid candle table %q", table)
	}
	if maxStale <= 0 {
		maxStale = 72 * time.Hour
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &CHQuoteSource{
		db:       db,
		query:    fmt.Sprintf(sessionQuery, table),
		maxStale: maxStale,
		l:        l,
		now:      time.Now,
	}, nil
}

func (s *CHQuoteSource) Name() string { return SourceClickHouse }

func (s *CHQuoteSource) Quote(ctx context.Context, ticker string) (models.Quote, error) {
	start := time.Now()
	since := s.now().Add(-s.maxStale).UTC()

	var row sessionRow
	if err := s.db.GetContext(ctx, &row, s.query, ticker, ticker, since); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Quote{}, fmt.Errorf("%w: no candles for %s", models.ErrQuoteNotFound, ticker)
		}
		s.l.Error("clickhouse session quote query error",
			applogger.String("symbol", ticker),
			applogger.Error(err),
		)
		return models.Quote{}, fmt.Errorf("%w: clickhouse: %v", models.ErrUpstreamUnavailable, err)
	}
	// Aggregates over an empty range come back as a single zero row.
	if row.TS.IsZero() || row.TS.Unix() <= 0 || row.Close <= 0 {
		return models.Quote{}, fmt.Errorf("%w: no candles for %s", models.ErrQuoteNotFound, ticker)
	}

	q := models.Quote{
		Ticker:    ticker,
		Price:     row.Close,
		Open:      row.Open,
		High:      row.High,
		Low:       row.Low,
		Volume:    int64(row.Volume),
		Source:    SourceClickHouse,
		Timestamp: row.TS.UTC(),
	}
	if row.Open > 0 {
		q.Change = util.RoundCents(row.Close - row.Open)
		q.ChangePercent = util.RoundCents((row.Close - row.Open) / row.Open * 100)
	}
	s.l.Debug("clickhouse session quote ok",
		applogger.String("symbol", ticker),
		applogger.Float64("close", row.Close),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return q, nil
}

// Health pings the database.
func (s *CHQuoteSource) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

var (
	_ domrepo.QuoteSource   = (*CHQuoteSource)(nil)
	_ domrepo.HealthChecker = (*CHQuoteSource)(nil)
)
