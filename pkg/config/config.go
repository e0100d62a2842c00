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
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Engine struct {
		MaxBars             int           `yaml:"max_bars"`
		DefaultBackfillBars int           `yaml:"default_backfill_bars"`
		CacheMaxAge         time.Duration `yaml:"cache_max_age"`
		RefreshInterval     time.Duration `yaml:"refresh_interval"`
		FetchTimeout        time.Duration `yaml:"fetch_timeout"`
		PatternBackfillBars int           `yaml:"pattern_backfill_bars"`
		DedupeCapacity      int           `yaml:"dedupe_capacity"`
		PersistDebounce     time.Duration `yaml:"persist_debounce"`
	} `yaml:"engine"`
	Bridge struct {
		BaseURL        string        `yaml:"base_url"`
		WebSocketURL   string        `yaml:"websocket_url"`
		BrokerID       string        `yaml:"broker_id"`
		AccountID      string        `yaml:"account_id"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
		PingInterval   time.Duration `yaml:"ping_interval"`
		MaxTicksPerSec int           `yaml:"max_ticks_per_sec"`
	} `yaml:"bridge"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix"`
	} `yaml:"redis"`
	Kafka struct {
		Enabled      bool          `yaml:"enabled"`
		Brokers      []string      `yaml:"brokers"`
		Topic        string        `yaml:"topic"`
		RequiredAcks int           `yaml:"required_acks"`
		Compression  string        `yaml:"compression"`
		MaxAttempts  int           `yaml:"max_attempts"`
		Linger       time.Duration `yaml:"linger"`
		BatchSize    int           `yaml:"batch_size"`
		BatchBytes   int           `yaml:"batch_bytes"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		Async        bool          `yaml:"async"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Watches []WatchConfig `yaml:"watches"`
}

// WatchConfig declares a (symbol, timeframe) pair monitored from boot.
type WatchConfig struct {
	Symbol       string `yaml:"symbol"`
	Timeframe    string `yaml:"timeframe"`
	BackfillBars int    `yaml:"backfill_bars"`
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

	if v := os.Getenv("BRIDGE_BASE_URL"); v != "" {
		c.Bridge.BaseURL = v
	}
	if v := os.Getenv("BRIDGE_WS_URL"); v != "" {
		c.Bridge.WebSocketURL = v
	}
	if v := os.Getenv("BRIDGE_BROKER_ID"); v != "" {
		c.Bridge.BrokerID = v
	}
	if v := os.Getenv("BRIDGE_ACCOUNT_ID"); v != "" {
		c.Bridge.AccountID = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}

	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Engine.MaxBars <= 0 {
		c.Engine.MaxBars = 2000
	}
	if c.Engine.DefaultBackfillBars <= 0 {
		c.Engine.DefaultBackfillBars = 300
	}
	if c.Engine.CacheMaxAge <= 0 {
		c.Engine.CacheMaxAge = 60 * time.Second
	}
	if c.Engine.RefreshInterval <= 0 {
		c.Engine.RefreshInterval = 15 * time.Second
	}
	if c.Engine.FetchTimeout <= 0 {
		c.Engine.FetchTimeout = 12 * time.Second
	}
	if c.Engine.PatternBackfillBars <= 0 {
		c.Engine.PatternBackfillBars = 6
	}
	if c.Engine.DedupeCapacity <= 0 {
		c.Engine.DedupeCapacity = 20000
	}
	if c.Engine.PersistDebounce <= 0 {
		c.Engine.PersistDebounce = 400 * time.Millisecond
	}
	if c.Bridge.ReconnectDelay <= 0 {
		c.Bridge.ReconnectDelay = 3 * time.Second
	}
	if c.Bridge.PingInterval <= 0 {
		c.Bridge.PingInterval = 20 * time.Second
	}
	if c.Bridge.MaxTicksPerSec <= 0 {
		c.Bridge.MaxTicksPerSec = 20
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = "chartpulse"
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Bridge.BaseURL == "" {
		return fmt.Errorf("bridge.base_url is required")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Kafka.Enabled && c.Kafka.Topic == "" {
		return fmt.Errorf("kafka.topic is required when kafka is enabled")
	}
	if c.ClickHouse.Enabled && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required when clickhouse is enabled")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when redis is enabled")
	}
	return nil
}
