package middleware

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"OptionScan/internal/domain/models"
	domrepo "OptionScan/internal/domain/repository"
	applogger "OptionScan/pkg/logger"
	"OptionScan/pkg/util"
)

var ErrInvalidTick = errors.New("invalid tick")

// TickPipeline sits between the tick feeds and the tick store.
// It validates, throttles per symbol, and buffers ticks while the store fails.
type TickPipeline struct {
	store    domrepo.TickStore
	metrics  domrepo.Metrics
	l        *applogger.Logger
	interval time.Duration
	bufCh    chan *models.Tick
	stopCh   chan struct{}
	doneCh   chan struct{}
	now      func() time.Time

	mu       sync.Mutex
	started  bool
	lastSeen map[string]time.Time // per-symbol last accepted time
}

type PipelineOption func(*TickPipeline)

// WithThrottle sets the minimum spacing between accepted ticks of one symbol.
// Zero disables throttling.
func WithThrottle(d time.Duration) PipelineOption {
	return func(p *TickPipeline) {
		if d >= 0 {
			p.interval = d
		}
	}
}

// WithBufferSize sets how many ticks are held while the store is failing.
func WithBufferSize(n int) PipelineOption {
	return func(p *TickPipeline) {
		if n > 0 {
			p.bufCh = make(chan *models.Tick, n)
		}
	}
}

func WithPipelineLogger(l *applogger.Logger) PipelineOption {
	return func(p *TickPipeline) {
		if l != nil {
			p.l = l
		}
	}
}

func NewTickPipeline(store domrepo.TickStore, metrics domrepo.Metrics, opts ...PipelineOption) *TickPipeline {
	p := &TickPipeline{
		store:    store,
		metrics:  metrics,
		l:        applogger.Nop(),
		interval: 250 * time.Millisecond,
		bufCh:    make(chan *models.Tick, 1000),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
		now:      time.Now,
		lastSeen: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches background flushing of buffered ticks.
func (p *TickPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go p.flushLoop(ctx)
}

func (p *TickPipeline) flushLoop(ctx context.Context) {
	defer close(p.doneCh)
	backoff := 50 * time.Millisecond
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case t := <-p.bufCh:
			if err := p.store.Put(ctx, t); err != nil {
				if backoff < 2*time.Second {
					backoff *= 2
				}
				p.metrics.RecordError("pipeline_flush")
				select {
				case <-time.After(backoff):
				case <-ctx.Done():
					return
				case <-p.stopCh:
					return
				}
				select {
				case p.bufCh <- t:
				default:
					p.metrics.RecordError("pipeline_buffer_drop")
				}
				continue
			}
			backoff = 50 * time.Millisecond
		}
	}
}

// Stop stops background flushing and waits for the loop to exit.
func (p *TickPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
	<-p.doneCh
}

// Process validates and throttles t, then stores it. Throttled ticks are
// dropped silently; store failures buffer the tick and are returned.
func (p *TickPipeline) Process(ctx context.Context, t *models.Tick) error {
	start := time.Now()
	if err := validateTick(t); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}
	t.Symbol = util.NormalizeTicker(t.Symbol)

	if !p.allow(t.Symbol, p.now()) {
		p.metrics.RecordError("pipeline_throttle")
		return nil
	}

	if err := p.store.Put(ctx, t); err != nil {
		p.metrics.RecordError("pipeline_process")
		select {
		case p.bufCh <- t:
		default:
			p.metrics.RecordError("pipeline_buffer_full")
		}
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	p.metrics.RecordLastPrice(t.Symbol, t.Price)
	p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
	return nil
}

// Buffered returns the number of ticks waiting for a retry.
func (p *TickPipeline) Buffered() int { return len(p.bufCh) }

func validateTick(t *models.Tick) error {
	switch {
	case t == nil:
		return fmt.Errorf("%w: nil", ErrInvalidTick)
	case util.NormalizeTicker(t.Symbol) == "":
		return fmt.Errorf("%w: symbol empty", ErrInvalidTick)
	case t.Timestamp <= 0:
		return fmt.Errorf("%w: timestamp %d", ErrInvalidTick, t.Timestamp)
	case !(t.Price > 0) || math.IsInf(t.Price, 0):
		return fmt.Errorf("%w: price %v", ErrInvalidTick, t.Price)
	case t.Volume < 0:
		return fmt.Errorf("%w: negative volume", ErrInvalidTick)
	}
	return nil
}

func (p *TickPipeline) allow(symbol string, now time.Time) bool {
	if p.interval <= 0 {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	last, ok := p.lastSeen[symbol]
	if ok && now.Sub(last) < p.interval {
		return false
	}
	p.lastSeen[symbol] = now
	return true
}
