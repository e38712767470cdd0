package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"OptionScan/internal/domain/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockCHSource(t *testing.T) (*CHQuoteSource, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	src, err := NewCHQuoteSourceFromDB(sqlx.NewDb(db, "clickhouse"), "optionscan.candles_1m", 72*time.Hour, nil)
	require.NoError(t, err)
	return src, mock
}

var sessionColumns = []string{"open", "high", "low", "close", "vol", "ts"}

func TestCHQuoteSourceSession(t *testing.T) {
	src, mock := newMockCHSource(t)
	ts := time.Date(2026, 3, 2, 20, 59, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT\s+argMin\(open, bucket\)`).
		WithArgs("AAPL", "AAPL", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(sessionColumns).AddRow(170.0, 176.2, 169.5, 175.5, 1234567.0, ts))

	q, err := src.Quote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 175.5, q.Price)
	assert.Equal(t, 5.5, q.Change)
	assert.Equal(t, 3.24, q.ChangePercent)
	assert.Equal(t, int64(1234567), q.Volume)
	assert.Equal(t, SourceClickHouse, q.Source)
	assert.Equal(t, ts, q.Timestamp)
	assert.False(t, q.Estimated)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCHQuoteSourceEmptyAggregate(t *testing.T) {
	src, mock := newMockCHSource(t)

	mock.ExpectQuery(`SELECT`).
		WillReturnRows(sqlmock.NewRows(sessionColumns).AddRow(0.0, 0.0, 0.0, 0.0, 0.0, time.Unix(0, 0)))

	_, err := src.Quote(context.Background(), "NOPE")
	assert.ErrorIs(t, err, models.ErrQuoteNotFound)
}

func TestCHQuoteSourceQueryError(t *testing.T) {
	src, mock := newMockCHSource(t)

	mock.ExpectQuery(`SELECT`).WillReturnError(errors.New("connection refused"))

	_, err := src.Quote(context.Background(), "AAPL")
	assert.ErrorIs(t, err, models.ErrUpstreamUnavailable)
}

func TestCHQuoteSourceRejectsTableName(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	_, err = NewCHQuoteSourceFromDB(sqlx.NewDb(db, "clickhouse"), "candles; DROP TABLE x", time.Hour, nil)
	assert.Error(t, err)
}
