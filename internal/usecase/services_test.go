package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"OptionScan/internal/domain/models"
	"OptionScan/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLookup struct {
	quote models.Quote
	err   error
}

func (s stubLookup) Resolve(context.Context, string) (models.Quote, error) { return s.quote, s.err }
func (s stubLookup) Estimate(ticker string) models.Quote {
	return models.Quote{Ticker: ticker, Price: 1, Estimated: true}
}

func TestQuoteServiceSyntheticFallback(t *testing.T) {
	miss := stubLookup{err: models.ErrQuoteNotFound}

	q, err := NewQuoteService(miss, true).Quote(context.Background(), "zzz")
	require.NoError(t, err)
	assert.True(t, q.Estimated)
	assert.Equal(t, "ZZZ", q.Ticker)

	_, err = NewQuoteService(miss, false).Quote(context.Background(), "zzz")
	assert.ErrorIs(t, err, models.ErrQuoteNotFound)
}

func TestQuoteServiceBlankTicker(t *testing.T) {
	_, err := NewQuoteService(stubLookup{}, true).Quote(context.Background(), " ")
	assert.ErrorIs(t, err, models.ErrInvalidArgument)
}

func TestQuoteServicePassesOtherErrors(t *testing.T) {
	boom := errors.New("boom")
	_, err := NewQuoteService(stubLookup{err: boom}, true).Quote(context.Background(), "AAPL")
	assert.ErrorIs(t, err, boom)
}

func TestStrategyServiceGetAndExport(t *testing.T) {
	s := NewStrategyService(repository.NewDefaultCatalog())
	at := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return at }

	st, err := s.Get(context.Background(), " Covered-Call ")
	require.NoError(t, err)
	assert.Equal(t, "Covered Call", st.Name)

	_, err = s.Get(context.Background(), "butterfly")
	assert.ErrorIs(t, err, models.ErrStrategyNotFound)

	exp := s.Export([]models.Strategy{st})
	assert.Equal(t, 1, exp.TotalCount)
	assert.Equal(t, at, exp.GeneratedAt)
	assert.NotNil(t, s.Export(nil).Strategies)
}

func TestHealthServiceDegrades(t *testing.T) {
	ok := CheckFunc{Label: "redis", Fn: func(context.Context) error { return nil }}
	bad := CheckFunc{Label: "clickhouse", Fn: func(context.Context) error { return errors.New("dial tcp: refused") }}

	resp := NewHealthService("1.2.3", ok, bad).Check(context.Background())
	assert.Equal(t, StatusDegraded, resp.Status)
	assert.Equal(t, "1.2.3", resp.Version)
	assert.Equal(t, StatusOK, resp.Checks["redis"])
	assert.Contains(t, resp.Checks["clickhouse"], "refused")

	assert.Equal(t, StatusOK, NewHealthService("v").Check(context.Background()).Status)
}
