package usecase

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"OptionScan/internal/domain/models"
	mid "OptionScan/internal/middleware"
	pkgkafka "OptionScan/pkg/kafka"
	"OptionScan/pkg/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sliceStore struct {
	mu    sync.Mutex
	ticks []models.Tick
}

func (s *sliceStore) Put(_ context.Context, t *models.Tick) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ticks = append(s.ticks, *t)
	return nil
}

func (s *sliceStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ticks)
}

// scriptedStream serves one batch per session and fails the first session.
type scriptedStream struct {
	sessions   [][]*models.Tick
	reads      atomic.Int32
	reconnects atomic.Int32
	connected  atomic.Bool
}

func (s *scriptedStream) Connect(context.Context) error   { s.connected.Store(true); return nil }
func (s *scriptedStream) Subscribe(context.Context) error { return nil }
func (s *scriptedStream) Reconnect(context.Context) error {
	s.reconnects.Add(1)
	return nil
}
func (s *scriptedStream) Close() error      { s.connected.Store(false); return nil }
func (s *scriptedStream) IsConnected() bool { return s.connected.Load() }

func (s *scriptedStream) Read(ctx context.Context) (<-chan *models.Tick, <-chan error) {
	n := int(s.reads.Add(1)) - 1
	ticks := make(chan *models.Tick)
	errs := make(chan error, 1)
	go func() {
		defer close(ticks)
		defer close(errs)
		if n < len(s.sessions) {
			for _, t := range s.sessions[n] {
				ticks <- t
			}
		}
		if n == 0 {
			errs <- assert.AnError
			return
		}
		<-ctx.Done()
	}()
	return ticks, errs
}

func TestTickCollectorReconnects(t *testing.T) {
	store := &sliceStore{}
	pipe := mid.NewTickPipeline(store, metrics.Nop{}, mid.WithThrottle(0))
	stream := &scriptedStream{sessions: [][]*models.Tick{
		{{Symbol: "AAPL", Timestamp: 1, Price: 1}},
		{{Symbol: "SPY", Timestamp: 2, Price: 2}},
	}}
	c := NewTickCollector(stream, pipe, metrics.Nop{}, nil)

	require.NoError(t, c.Start(context.Background()))
	assert.True(t, c.IsConnected())
	assert.Eventually(t, func() bool { return store.len() == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(1), stream.reconnects.Load())

	require.NoError(t, c.Shutdown(context.Background()))
	assert.False(t, c.IsConnected())
}

func TestKafkaTicksHandler(t *testing.T) {
	store := &sliceStore{}
	pipe := mid.NewTickPipeline(store, metrics.Nop{}, mid.WithThrottle(0))
	h := NewKafkaTicksHandler("market.ticks", pipe, metrics.Nop{})
	ctx := context.Background()

	b, _ := json.Marshal(map[string]interface{}{"symbol": "msft", "t": 1700000000123, "c": 342.15, "v": 10})
	require.NoError(t, h.Handle(ctx, b))
	require.Equal(t, 1, store.len())
	assert.Equal(t, models.Tick{Symbol: "MSFT", Timestamp: 1700000000, Price: 342.15, Volume: 10}, store.ticks[0])

	assert.ErrorIs(t, h.Handle(ctx, []byte("{")), pkgkafka.ErrSkipRetry)

	bad, _ := json.Marshal(map[string]interface{}{"symbol": "msft", "t": 1, "c": -1})
	assert.ErrorIs(t, h.Handle(ctx, bad), pkgkafka.ErrSkipRetry)
	assert.Equal(t, "market.ticks", h.Topic())
}
