package usecase

import (
	"context"
	"sync"

	"OptionScan/internal/domain/models"
	drepo "OptionScan/internal/domain/repository"
	mid "OptionScan/internal/middleware"
	applogger "OptionScan/pkg/logger"
)

// TickCollector pumps ticks from a market stream through the tick pipeline,
// reconnecting when the stream fails.
type TickCollector struct {
	stream  drepo.MarketStream
	pipe    *mid.TickPipeline
	metrics drepo.Metrics
	l       *applogger.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewTickCollector(stream drepo.MarketStream, pipe *mid.TickPipeline, metrics drepo.Metrics, l *applogger.Logger) *TickCollector {
	if l == nil {
		l = applogger.Nop()
	}
	return &TickCollector{stream: stream, pipe: pipe, metrics: metrics, l: l}
}

// IsConnected returns true if the market stream is connected.
func (c *TickCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

func (c *TickCollector) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)
	if err := c.stream.Connect(ctx); err != nil {
		c.cancel()
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		c.cancel()
		return err
	}
	c.pipe.Start(ctx)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.run(ctx)
	}()
	return nil
}

func (c *TickCollector) run(ctx context.Context) {
	for ctx.Err() == nil {
		ticks, errs := c.stream.Read(ctx)
		c.consume(ctx, ticks, errs)
		if ctx.Err() != nil {
			return
		}
		c.metrics.RecordError("stream")
		for ctx.Err() == nil {
			err := c.stream.Reconnect(ctx)
			if err == nil {
				c.l.Info("market stream reconnected")
				break
			}
			c.l.Warn("market stream reconnect failed", applogger.Error(err))
		}
	}
}

// consume drains one stream session and returns when it ends.
func (c *TickCollector) consume(ctx context.Context, ticks <-chan *models.Tick, errs <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errs:
			if ok && err != nil {
				c.l.Warn("market stream error", applogger.Error(err))
				return
			}
			if !ok {
				errs = nil
			}
		case t, ok := <-ticks:
			if !ok {
				return
			}
			if err := c.pipe.Process(ctx, t); err != nil {
				c.l.Debug("tick rejected", applogger.String("symbol", t.Symbol), applogger.Error(err))
			}
		}
	}
}

// Shutdown stops the pipeline and closes the stream.
func (c *TickCollector) Shutdown(_ context.Context) error {
	if c.cancel != nil {
		c.cancel()
	}
	err := c.stream.Close()
	c.wg.Wait()
	c.pipe.Stop()
	return err
}
