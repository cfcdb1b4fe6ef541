package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Host            string        `yaml:"host"`
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		SlowThreshold   time.Duration `yaml:"slow_threshold"`
		// CORSOrigins lists allowed origins. Unset allows any origin; an
		// explicit empty list disables CORS.
		CORSOrigins []string `yaml:"cors_origins"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"logging"`
	Backtest struct {
		// BaseURL is not validated; a bad value surfaces as an unreachable
		// service on the first call.
		BaseURL string `yaml:"base_url"`
		Paths   struct {
			Strategy  string `yaml:"strategy"`
			Benchmark string `yaml:"benchmark"`
			Screening string `yaml:"screening"`
			AutoTrade string `yaml:"auto_trade"`
			Heartbeat string `yaml:"heartbeat"`
		} `yaml:"paths"`
		Timeouts struct {
			Screening time.Duration `yaml:"screening"`
			Benchmark time.Duration `yaml:"benchmark"`
			Strategy  time.Duration `yaml:"strategy"`
			AutoTrade time.Duration `yaml:"auto_trade"`
		} `yaml:"timeouts"`
		DefaultMaxStocks int    `yaml:"default_max_stocks"`
		AutoTradeMode    string `yaml:"auto_trade_mode"`
	} `yaml:"backtest"`
	KeepAlive struct {
		Enabled  bool          `yaml:"enabled"`
		Interval time.Duration `yaml:"interval"`
		Timeout  time.Duration `yaml:"timeout"`
	} `yaml:"keepalive"`
	Cache struct {
		Enabled bool          `yaml:"enabled"`
		Backend string        `yaml:"backend"`
		TTL     time.Duration `yaml:"ttl"`
		Redis   struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"cache"`
	Events struct {
		Enabled      bool          `yaml:"enabled"`
		Brokers      []string      `yaml:"brokers"`
		Topic        string        `yaml:"topic"`
		Compression  string        `yaml:"compression"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
	} `yaml:"events"`
	RateLimit struct {
		Capacity      float64       `yaml:"capacity"`
		RefillPerSec  float64       `yaml:"refill_per_sec"`
		PruneInterval time.Duration `yaml:"prune_interval"`
		IdleTTL       time.Duration `yaml:"idle_ttl"`
	} `yaml:"ratelimit"`
}

// Default returns a configuration with every field set to a usable value.
func Default() *Config {
	c := &Config{Environment: "development"}
	c.applyDefaults()
	return c
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	c.ApplyEnv()
	return c, nil
}

// ApplyEnv overrides fields from the environment.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("BACKTEST_BASE_URL"); v != "" {
		c.Backtest.BaseURL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Cache.Redis.Addr = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Events.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Events.Topic = v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.CORSOrigins == nil {
		c.Server.CORSOrigins = []string{"*"}
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 10 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		// auto-trade runs are async, but a synchronous client may still wait on them
		c.Server.WriteTimeout = 200 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}

	p := &c.Backtest.Paths
	if p.Strategy == "" {
		p.Strategy = "/MACD-strategy"
	}
	if p.Benchmark == "" {
		p.Benchmark = "/spy-investment"
	}
	if p.Screening == "" {
		p.Screening = "/optimal-stocks"
	}
	if p.AutoTrade == "" {
		p.AutoTrade = "/auto-trade"
	}
	if p.Heartbeat == "" {
		p.Heartbeat = "/heartbeat"
	}

	t := &c.Backtest.Timeouts
	if t.Screening == 0 {
		t.Screening = 60 * time.Second
	}
	if t.Benchmark == 0 {
		t.Benchmark = 30 * time.Second
	}
	if t.Strategy == 0 {
		t.Strategy = 120 * time.Second
	}
	if t.AutoTrade == 0 {
		t.AutoTrade = 180 * time.Second
	}
	if c.Backtest.DefaultMaxStocks == 0 {
		c.Backtest.DefaultMaxStocks = 10
	}
	if c.Backtest.AutoTradeMode == "" {
		c.Backtest.AutoTradeMode = "pipeline"
	}

	if c.KeepAlive.Interval == 0 {
		c.KeepAlive.Interval = 4 * time.Minute
	}
	if c.KeepAlive.Timeout == 0 {
		c.KeepAlive.Timeout = 10 * time.Second
	}

	if c.Cache.Backend == "" {
		c.Cache.Backend = "memory"
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = 15 * time.Minute
	}
	if c.Events.Topic == "" {
		c.Events.Topic = "stratview.runs"
	}
	if c.Events.Compression == "" {
		c.Events.Compression = "gzip"
	}
	if c.Events.WriteTimeout == 0 {
		c.Events.WriteTimeout = 5 * time.Second
	}
	if c.RateLimit.Capacity == 0 {
		c.RateLimit.Capacity = 5
	}
	if c.RateLimit.RefillPerSec == 0 {
		c.RateLimit.RefillPerSec = 0.5
	}
	if c.RateLimit.PruneInterval == 0 {
		c.RateLimit.PruneInterval = time.Minute
	}
	if c.RateLimit.IdleTTL == 0 {
		c.RateLimit.IdleTTL = 10 * time.Minute
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Backtest.AutoTradeMode != "pipeline" && c.Backtest.AutoTradeMode != "combined" {
		return fmt.Errorf("backtest.auto_trade_mode must be 'pipeline' or 'combined', got '%s'", c.Backtest.AutoTradeMode)
	}
	if c.Backtest.DefaultMaxStocks < 1 {
		return fmt.Errorf("backtest.default_max_stocks must be positive")
	}
	if c.Cache.Enabled && c.Cache.Backend != "memory" && c.Cache.Backend != "redis" {
		return fmt.Errorf("cache.backend must be 'memory' or 'redis', got '%s'", c.Cache.Backend)
	}
	if c.Cache.Enabled && c.Cache.Backend == "redis" && c.Cache.Redis.Addr == "" {
		return fmt.Errorf("cache.redis.addr is required for the redis backend")
	}
	if c.Events.Enabled && len(c.Events.Brokers) == 0 {
		return fmt.Errorf("events.brokers cannot be empty when events are enabled")
	}
	return nil
}
