package server

import (
	"context"
	"errors"
	"io"

	mid "OptionScan/internal/middleware"
	"OptionScan/internal/usecase"
	"OptionScan/pkg/config"
	xhttp "OptionScan/pkg/http"
	pkgkafka "OptionScan/pkg/kafka"
	applogger "OptionScan/pkg/logger"
)

// Closer is a named resource released at shutdown, in registration order.
type Closer struct {
	Name string
	C    io.Closer
}

// App encapsulates the entire application lifecycle.
// The tick collector, consumer and ticks handler are optional.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	httpServer *xhttp.Server
	pipeline   *mid.TickPipeline
	collector  *usecase.TickCollector
	consumer   *pkgkafka.Consumer
	kh         pkgkafka.MessageHandler
	closers    []Closer
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	httpServer *xhttp.Server,
	pipeline *mid.TickPipeline,
	collector *usecase.TickCollector,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	closers []Closer,
) *App {
	return &App{
		cfg:        cfg,
		log:        log,
		httpServer: httpServer,
		pipeline:   pipeline,
		collector:  collector,
		consumer:   consumer,
		kh:         kh,
		closers:    closers,
	}
}

// Server exposes the HTTP server, mainly for tests.
func (a *App) Server() *xhttp.Server { return a.httpServer }

// Run starts every component and blocks until ctx ends or the HTTP server fails.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.collector != nil {
		if err := a.collector.Start(ctx); err != nil {
			// quotes fall back to other sources; keep serving
			a.log.Error("tick collector start failed", applogger.Error(err))
		} else {
			a.log.Info("tick collector started", applogger.Strings("symbols", a.cfg.Finnhub.Symbols))
		}
	}

	if a.consumer != nil && a.kh != nil {
		if a.pipeline != nil {
			a.pipeline.Start(ctx)
		}
		a.consumer.RegisterHandler(a.kh)
		if err := a.consumer.Start(ctx); err != nil {
			a.log.Error("kafka consumer start failed", applogger.Error(err))
		} else {
			a.log.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
		}
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		cancel()
		return errors.Join(err, a.shutdown(context.Background()))
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.log.Info("shutdown signal received")
	case runErr = <-a.httpServer.Errors():
		a.log.Error("http server stopped", applogger.Error(runErr))
	}
	cancel()
	return errors.Join(runErr, a.shutdown(context.Background()))
}

// shutdown stops intake first, then drains and closes infrastructure.
func (a *App) shutdown(ctx context.Context) error {
	a.log.Info("shutting down...")
	var errs []error

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
		errs = append(errs, err)
	}

	if a.collector != nil {
		if err := a.collector.Shutdown(shutdownCtx); err != nil {
			a.log.Warn("collector stop error", applogger.Error(err))
		}
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(shutdownCtx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}
	if a.pipeline != nil {
		a.pipeline.Stop()
	}

	for _, c := range a.closers {
		if c.C == nil {
			continue
		}
		if err := c.C.Close(); err != nil {
			a.log.Warn("close error", applogger.String("resource", c.Name), applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return errors.Join(errs...)
}
