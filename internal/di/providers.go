package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"OptionScan/internal/domain/repository"
	domsvc "OptionScan/internal/domain/service"
	"OptionScan/internal/handler/api"
	mid "OptionScan/internal/middleware"
	internalrepo "OptionScan/internal/repository"
	"OptionScan/internal/service/finnhub"
	"OptionScan/internal/service/polygon"
	"OptionScan/internal/service/ratelimit"
	"OptionScan/internal/services/quotes"
	"OptionScan/internal/services/scoring"
	"OptionScan/internal/usecase"
	"OptionScan/pkg/cache"
	pkgch "OptionScan/pkg/clickhouse"
	"OptionScan/pkg/config"
	xhttp "OptionScan/pkg/http"
	pkgkafka "OptionScan/pkg/kafka"
	applogger "OptionScan/pkg/logger"
	"OptionScan/pkg/metrics"
	"OptionScan/pkg/server"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker"
)

// LogShipper owns the Kafka log collector attached to the application logger.
type LogShipper struct {
	l *applogger.Logger
}

// Close flushes pending entries and detaches the collector.
func (s *LogShipper) Close() error {
	s.l.RemoveCollector()
	return nil
}

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("service", "optionscan"), applogger.String("env", cfg.Environment)), nil
}

// ProvideRegistry creates the Prometheus registry shared by every collector.
func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// ProvideMetrics creates the domain metrics recorder.
func ProvideMetrics(cfg *config.Config, reg *prometheus.Registry) repository.Metrics {
	if !cfg.Metrics.Enabled {
		return metrics.Nop{}
	}
	return metrics.New(reg)
}

// ProvideRedisCache connects to Redis when enabled; nil otherwise.
func ProvideRedisCache(cfg *config.Config) (*cache.RedisCache, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Redis.Addr),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return rc, nil
}

// ProvideCache layers memory over Redis when Redis is available.
func ProvideCache(cfg *config.Config, rc *cache.RedisCache) cache.Service {
	if rc == nil {
		return cache.NewMemoryCache()
	}
	return cache.NewLayeredCache(rc, cache.WithLayeredMemoryTTL(cfg.Redis.MemoryTTL))
}

func ProvideTickCache(c cache.Service, cfg *config.Config) *internalrepo.TickCache {
	return internalrepo.NewTickCache(c, cfg.Quotes.TickTTL)
}

// ProvideClickHouseClient creates a ClickHouse client when enabled; nil otherwise.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.ReadTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

func ProvideCHQuoteSource(ch *pkgch.Client, cfg *config.Config, l *applogger.Logger) (*internalrepo.CHQuoteSource, error) {
	if ch == nil {
		return nil, nil
	}
	return internalrepo.NewCHQuoteSource(ch, cfg.ClickHouse.Table, cfg.ClickHouse.MaxStaleness, l)
}

// ProvidePolygonClient creates the Polygon quote source when enabled; nil otherwise.
func ProvidePolygonClient(cfg *config.Config, l *applogger.Logger) *polygon.Client {
	if !cfg.Polygon.Enabled {
		return nil
	}
	return polygon.New(polygon.Config{
		APIKey:  cfg.Polygon.APIKey,
		BaseURL: cfg.Polygon.BaseURL,
		Timeout: cfg.Polygon.Timeout,
		Breaker: polygon.BreakerConfig{
			MaxRequests:      cfg.Polygon.Breaker.MaxRequests,
			Interval:         cfg.Polygon.Breaker.Interval,
			Timeout:          cfg.Polygon.Breaker.Timeout,
			FailureThreshold: cfg.Polygon.Breaker.FailureThreshold,
		},
	}, l)
}

// ProvideQuoteSources orders sources freshest first: live ticks, the
// ClickHouse session, Polygon, then the demo table.
func ProvideQuoteSources(
	cfg *config.Config,
	ticks *internalrepo.TickCache,
	chSrc *internalrepo.CHQuoteSource,
	poly *polygon.Client,
) []repository.QuoteSource {
	var sources []repository.QuoteSource
	if cfg.Finnhub.Enabled || cfg.Kafka.Consumer.Enabled {
		sources = append(sources, ticks)
	}
	if chSrc != nil {
		sources = append(sources, chSrc)
	}
	if poly != nil {
		sources = append(sources, poly)
	}
	if cfg.Quotes.DemoPrices {
		sources = append(sources, quotes.NewDemoSource())
	}
	return sources
}

func ProvideQuoteResolver(
	sources []repository.QuoteSource,
	c cache.Service,
	m repository.Metrics,
	l *applogger.Logger,
	cfg *config.Config,
) *quotes.Resolver {
	return quotes.NewResolver(sources,
		quotes.WithCache(c, cfg.Quotes.CacheTTL),
		quotes.WithTimeout(cfg.Quotes.Timeout),
		quotes.WithMetrics(m),
		quotes.WithLogger(l),
	)
}

// ProvideCatalog loads the YAML catalog when configured, else the built-in templates.
func ProvideCatalog(cfg *config.Config) (repository.StrategyCatalog, error) {
	if cfg.Catalog.Path == "" {
		return internalrepo.NewDefaultCatalog(), nil
	}
	c, err := internalrepo.LoadYAMLCatalog(cfg.Catalog.Path)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", cfg.Catalog.Path, err)
	}
	return c, nil
}

func ProvideScoreAdjuster(cfg *config.Config) domsvc.ScoreAdjuster {
	if !cfg.Scoring.Jitter {
		return scoring.IdentityAdjuster{}
	}
	return scoring.NewJitterAdjuster(
		scoring.WithConfidenceSpread(cfg.Scoring.ConfidenceSpread),
		scoring.WithScaleRange(cfg.Scoring.MinScale, cfg.Scoring.MaxScale),
	)
}

// ProvideKafkaProducer creates a producer when scans are published or logs
// are shipped; nil otherwise.
func ProvideKafkaProducer(cfg *config.Config, reg *prometheus.Registry) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Producer.Enabled && cfg.Log.CollectorTopic == "" {
		return nil, nil
	}
	pc := cfg.Kafka.Producer
	p, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(pc.Compression),
		pkgkafka.WithRequiredAcks(pc.RequiredAcks),
		pkgkafka.WithMaxAttempts(pc.MaxAttempts),
		pkgkafka.WithBatching(pc.BatchSize, pc.Linger),
		pkgkafka.WithWriteTimeout(pc.WriteTimeout),
		pkgkafka.WithAsync(pc.Async),
		pkgkafka.WithProducerRegisterer(reg),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return p, nil
}

func ProvideScanPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.ScanPublisher {
	if producer == nil || !cfg.Kafka.Producer.Enabled {
		return internalrepo.NopScanPublisher{}
	}
	return internalrepo.NewKafkaScanPublisher(producer, cfg.Kafka.Producer.ScanTopic)
}

// ProvideLogShipper attaches the Kafka log collector when a topic is configured.
func ProvideLogShipper(l *applogger.Logger, producer *pkgkafka.Producer, cfg *config.Config) *LogShipper {
	if producer == nil || cfg.Log.CollectorTopic == "" {
		return nil
	}
	l.AddCollector(&applogger.CollectionConfig{
		TimeInterval:   cfg.Log.CollectorInterval,
		CountThreshold: cfg.Log.CollectorThreshold,
		Topic:          cfg.Log.CollectorTopic,
		Publisher:      producer,
	})
	return &LogShipper{l: l}
}

func ProvideScreener(
	catalog repository.StrategyCatalog,
	resolver *quotes.Resolver,
	adjuster domsvc.ScoreAdjuster,
	publisher repository.ScanPublisher,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.StrategyScreener {
	return usecase.NewStrategyScreener(catalog, resolver, adjuster, m, l, usecase.WithPublisher(publisher, 2*time.Second))
}

func ProvideQuoteService(resolver *quotes.Resolver, cfg *config.Config) *usecase.QuoteService {
	return usecase.NewQuoteService(resolver, cfg.Quotes.SyntheticFallback)
}

func ProvideStrategyService(catalog repository.StrategyCatalog) *usecase.StrategyService {
	return usecase.NewStrategyService(catalog)
}

var errBreakerOpen = errors.New("circuit breaker open")

// ProvideHealthService probes each enabled backing service.
func ProvideHealthService(
	cfg *config.Config,
	rc *cache.RedisCache,
	chSrc *internalrepo.CHQuoteSource,
	poly *polygon.Client,
) *usecase.HealthService {
	var checks []repository.HealthChecker
	if rc != nil {
		checks = append(checks, usecase.CheckFunc{Label: "redis", Fn: func(ctx context.Context) error {
			return rc.Client().Ping(ctx).Err()
		}})
	}
	if chSrc != nil {
		checks = append(checks, chSrc)
	}
	if poly != nil {
		checks = append(checks, usecase.CheckFunc{Label: polygon.SourcePolygon, Fn: func(context.Context) error {
			if poly.State() == gobreaker.StateOpen {
				return errBreakerOpen
			}
			return nil
		}})
	}
	return usecase.NewHealthService(cfg.Version, checks...)
}

// ProvideRateLimiter limits scans per client IP; nil disables limiting.
func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	if cfg.Server.ScanRPS <= 0 {
		return nil
	}
	return ratelimit.New(cfg.Server.ScanRPS, cfg.Server.ScanBurst)
}

func ProvideHTTPHandler(
	l *applogger.Logger,
	screener *usecase.StrategyScreener,
	qs *usecase.QuoteService,
	ss *usecase.StrategyService,
	hs *usecase.HealthService,
	limiter *ratelimit.Limiter,
) xhttp.Handler {
	var scanMW []echo.MiddlewareFunc
	if limiter != nil {
		scanMW = append(scanMW, ratelimit.Middleware(limiter))
	}
	return api.NewStrategiesEchoHandler(l, screener, qs, ss, hs, scanMW...)
}

func ProvideHTTPServer(h xhttp.Handler, l *applogger.Logger, cfg *config.Config, reg *prometheus.Registry) *xhttp.Server {
	opts := []xhttp.ServerOption{
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(true, cfg.Server.AllowOrigins...),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetrics(cfg.Metrics.Path, reg, reg))
	}
	return xhttp.NewServer(h, l, opts...)
}

func ProvideTickPipeline(ticks *internalrepo.TickCache, m repository.Metrics, cfg *config.Config, l *applogger.Logger) *mid.TickPipeline {
	return mid.NewTickPipeline(ticks, m,
		mid.WithThrottle(cfg.Finnhub.ThrottleInterval),
		mid.WithPipelineLogger(l),
	)
}

// ProvideTickCollector streams Finnhub trades when enabled; nil otherwise.
func ProvideTickCollector(cfg *config.Config, pipe *mid.TickPipeline, m repository.Metrics, l *applogger.Logger) *usecase.TickCollector {
	if !cfg.Finnhub.Enabled {
		return nil
	}
	stream := finnhub.New(finnhub.Config{
		APIKey:         cfg.Finnhub.APIKey,
		WebSocketURL:   cfg.Finnhub.WebSocketURL,
		Symbols:        cfg.Finnhub.Symbols,
		ReconnectDelay: cfg.Finnhub.ReconnectDelay,
		PingInterval:   cfg.Finnhub.PingInterval,
	}, l)
	return usecase.NewTickCollector(stream, pipe, m, l)
}

// ProvideKafkaConsumer creates the tick consumer when enabled; nil otherwise.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger, reg *prometheus.Registry) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Consumer.Enabled {
		return nil, nil
	}
	cc := cfg.Kafka.Consumer
	c, err := pkgkafka.NewConsumer(l,
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cc.GroupID),
		pkgkafka.WithConsumerWorkers(cc.Workers),
		pkgkafka.WithConsumerBufferSize(cc.BufferSize),
		pkgkafka.WithConsumerRetry(cc.RetryMax, cc.BackoffMin, cc.BackoffMax),
		pkgkafka.WithConsumerDLQ(cc.DLQTopic),
		pkgkafka.WithConsumerRegisterer(reg),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	c.SetHook(pkgkafka.NewHookChain(
		pkgkafka.TraceHook(),
		pkgkafka.HookFuncs{After: func(ctx context.Context, topic string, km kafka.Message, _ []byte, err error) {
			if err == nil {
				return
			}
			l.Warn("tick message failed",
				applogger.String("topic", topic),
				applogger.String("trace_id", pkgkafka.TraceID(ctx)),
				applogger.Int("partition", km.Partition),
				applogger.Error(err),
			)
		}},
	))
	return c, nil
}

func ProvideKafkaTicksHandler(cfg *config.Config, pipe *mid.TickPipeline, m repository.Metrics) pkgkafka.MessageHandler {
	if !cfg.Kafka.Consumer.Enabled {
		return nil
	}
	return usecase.NewKafkaTicksHandler(cfg.Kafka.Consumer.Topic, pipe, m)
}

// ProvideClosers orders shutdown: log shipping first, then the producer and stores.
func ProvideClosers(
	shipper *LogShipper,
	publisher repository.ScanPublisher,
	producer *pkgkafka.Producer,
	c cache.Service,
	ch *pkgch.Client,
) []server.Closer {
	var closers []server.Closer
	if shipper != nil {
		closers = append(closers, server.Closer{Name: "log-shipper", C: shipper})
	}
	if _, ok := publisher.(*internalrepo.KafkaScanPublisher); ok {
		closers = append(closers, server.Closer{Name: "scan-publisher", C: publisher})
	} else if producer != nil {
		closers = append(closers, server.Closer{Name: "kafka-producer", C: producer})
	}
	closers = append(closers, server.Closer{Name: "cache", C: c})
	if ch != nil {
		closers = append(closers, server.Closer{Name: "clickhouse", C: ch})
	}
	return closers
}

func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	srv *xhttp.Server,
	pipe *mid.TickPipeline,
	collector *usecase.TickCollector,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	closers []server.Closer,
) *server.App {
	return server.New(cfg, l, srv, pipe, collector, consumer, kh, closers)
}
