package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Version     string `yaml:"version" default:"1.0.0"`

	Server struct {
		Port            int           `yaml:"port" default:"8000"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"15s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		AllowOrigins    []string      `yaml:"allow_origins"`
		ScanRPS         float64       `yaml:"scan_rps" default:"5"`
		ScanBurst       int           `yaml:"scan_burst" default:"10"`
	} `yaml:"server"`

	Log struct {
		Level              string        `yaml:"level" default:"info"`
		Format             string        `yaml:"format" default:"json"`
		Output             string        `yaml:"output" default:"stdout"`
		MaxSizeMB          int           `yaml:"max_size_mb" default:"100"`
		MaxBackups         int           `yaml:"max_backups" default:"5"`
		MaxAgeDays         int           `yaml:"max_age_days" default:"14"`
		CollectorTopic     string        `yaml:"collector_topic"`
		CollectorInterval  time.Duration `yaml:"collector_interval" default:"30s"`
		CollectorThreshold int           `yaml:"collector_threshold" default:"100"`
	} `yaml:"log"`

	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`

	Catalog struct {
		// Path to a YAML catalog; empty uses the built-in templates.
		Path string `yaml:"path"`
	} `yaml:"catalog"`

	Scoring struct {
		Jitter           bool    `yaml:"jitter" default:"true"`
		ConfidenceSpread float64 `yaml:"confidence_spread" default:"5"`
		MinScale         float64 `yaml:"min_scale" default:"0.8"`
		MaxScale         float64 `yaml:"max_scale" default:"1.2"`
	} `yaml:"scoring"`

	Quotes struct {
		Timeout           time.Duration `yaml:"timeout" default:"3s"`
		CacheTTL          time.Duration `yaml:"cache_ttl" default:"60s"`
		TickTTL           time.Duration `yaml:"tick_ttl" default:"15m"`
		DemoPrices        bool          `yaml:"demo_prices" default:"true"`
		SyntheticFallback bool          `yaml:"synthetic_fallback" default:"true"`
	} `yaml:"quotes"`

	Redis struct {
		Enabled   bool          `yaml:"enabled"`
		Addr      string        `yaml:"addr" default:"localhost:6379"`
		Password  string        `yaml:"password"`
		DB        int           `yaml:"db"`
		Prefix    string        `yaml:"prefix" default:"optionscan"`
		MemoryTTL time.Duration `yaml:"memory_ttl" default:"5s"`
	} `yaml:"redis"`

	Polygon struct {
		Enabled bool          `yaml:"enabled"`
		APIKey  string        `yaml:"api_key"`
		BaseURL string        `yaml:"base_url" default:"https://api.polygon.io"`
		Timeout time.Duration `yaml:"timeout" default:"5s"`
		Breaker struct {
			MaxRequests      uint32        `yaml:"max_requests" default:"1"`
			Interval         time.Duration `yaml:"interval" default:"60s"`
			Timeout          time.Duration `yaml:"timeout" default:"30s"`
			FailureThreshold uint32        `yaml:"failure_threshold" default:"5"`
		} `yaml:"breaker"`
	} `yaml:"polygon"`

	Finnhub struct {
		Enabled          bool          `yaml:"enabled"`
		APIKey           string        `yaml:"api_key"`
		WebSocketURL     string        `yaml:"websocket_url" default:"wss://ws.finnhub.io"`
		Symbols          []string      `yaml:"symbols"`
		ReconnectDelay   time.Duration `yaml:"reconnect_delay" default:"5s"`
		PingInterval     time.Duration `yaml:"ping_interval" default:"30s"`
		ThrottleInterval time.Duration `yaml:"throttle_interval" default:"250ms"`
	} `yaml:"finnhub"`

	Kafka struct {
		Brokers  []string `yaml:"brokers"`
		Producer struct {
			Enabled      bool          `yaml:"enabled"`
			ScanTopic    string        `yaml:"scan_topic" default:"optionscan.scans"`
			RequiredAcks int           `yaml:"required_acks" default:"1"`
			Compression  string        `yaml:"compression" default:"snappy"`
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			Linger       time.Duration `yaml:"linger" default:"50ms"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			Enabled    bool          `yaml:"enabled"`
			Topic      string        `yaml:"topic" default:"market.ticks"`
			GroupID    string        `yaml:"group_id" default:"optionscan-ticks"`
			Workers    int           `yaml:"workers" default:"4"`
			BufferSize int           `yaml:"buffer_size" default:"256"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"100ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"2s"`
			DLQTopic   string        `yaml:"dlq_topic"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`

	ClickHouse struct {
		Enabled      bool          `yaml:"enabled"`
		Host         string        `yaml:"host" default:"localhost"`
		Port         int           `yaml:"port" default:"9000"`
		Database     string        `yaml:"database" default:"default"`
		User         string        `yaml:"user" default:"default"`
		Password     string        `yaml:"password"`
		UseHTTP      bool          `yaml:"use_http"`
		Table        string        `yaml:"table" default:"candles_1m"`
		DialTimeout  time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
		MaxStaleness time.Duration `yaml:"max_staleness" default:"72h"`
	} `yaml:"clickhouse"`
}

// Default returns a configuration populated only from struct defaults.
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	return &c, nil
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	c, err := read(path)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads config from YAML (optional) and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := read(path)
	if err != nil {
		return nil, err
	}
	if err := c.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func read(path string) (*Config, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return c, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("POLYGON_API_KEY"); ok && v != "" {
		c.Polygon.APIKey = v
		c.Polygon.Enabled = true
	}
	if v, ok := lookup("FINNHUB_API_KEY"); ok && v != "" {
		c.Finnhub.APIKey = v
	}
	if v, ok := lookup("KAFKA_BROKERS"); ok && v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	if v, ok := lookup("REDIS_ADDR"); ok && v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v, ok := lookup("OPTIONSCAN_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("OPTIONSCAN_PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		c.Log.Level = v
	}
	return nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	if c.Server.ScanRPS < 0 || c.Server.ScanBurst < 0 {
		errs = append(errs, errors.New("server.scan_rps and server.scan_burst must be non-negative"))
	}
	if c.Quotes.Timeout <= 0 {
		errs = append(errs, errors.New("quotes.timeout must be positive"))
	}
	if c.Scoring.MinScale <= 0 || c.Scoring.MinScale > c.Scoring.MaxScale {
		errs = append(errs, fmt.Errorf("scoring scale range invalid: [%g, %g]", c.Scoring.MinScale, c.Scoring.MaxScale))
	}
	if c.Scoring.ConfidenceSpread < 0 {
		errs = append(errs, errors.New("scoring.confidence_spread must be non-negative"))
	}
	if c.Polygon.Enabled && c.Polygon.APIKey == "" {
		errs = append(errs, errors.New("polygon.api_key is required when polygon is enabled"))
	}
	if c.Finnhub.Enabled {
		if c.Finnhub.APIKey == "" {
			errs = append(errs, errors.New("finnhub.api_key is required when finnhub is enabled"))
		}
		if len(c.Finnhub.Symbols) == 0 {
			errs = append(errs, errors.New("finnhub.symbols cannot be empty"))
		}
	}
	if (c.Kafka.Producer.Enabled || c.Kafka.Consumer.Enabled || c.Log.CollectorTopic != "") && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("kafka.brokers is required when kafka is used"))
	}
	if c.ClickHouse.Enabled && c.ClickHouse.Table == "" {
		errs = append(errs, errors.New("clickhouse.table is required when clickhouse is enabled"))
	}

	return errors.Join(errs...)
}
