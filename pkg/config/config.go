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
	Backend struct {
		Type string `yaml:"type"` // kafka | clickhouse | both
	} `yaml:"backend"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		ReportsTopic string   `yaml:"reports_topic"`
		SamplesTopic string   `yaml:"samples_topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			Enabled    bool          `yaml:"enabled"`
			GroupID    string        `yaml:"group_id"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
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
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Feed struct {
		Token          string        `yaml:"token"`
		WebSocketURL   string        `yaml:"websocket_url"`
		Indicators     []string      `yaml:"indicators"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
		PingInterval   time.Duration `yaml:"ping_interval"`
	} `yaml:"feed"`
	Sources []Source `yaml:"sources"`
	Retry   struct {
		MaxRetries   int           `yaml:"max_retries"`
		InitialDelay time.Duration `yaml:"initial_delay"`
		MaxDelay     time.Duration `yaml:"max_delay"`
		Multiplier   float64       `yaml:"multiplier"`
	} `yaml:"retry"`
	Queue struct {
		ConcurrentLimit int `yaml:"concurrent_limit"`
		MaxDepth        int `yaml:"max_depth"`
	} `yaml:"queue"`
	Bridge struct {
		CacheTimeout  time.Duration `yaml:"cache_timeout"`
		MaxCacheSize  int           `yaml:"max_cache_size"`
		SweepInterval time.Duration `yaml:"sweep_interval"`
	} `yaml:"bridge"`
	Orchestrator struct {
		MaxConcurrent int `yaml:"max_concurrent"`
	} `yaml:"orchestrator"`
	Hub struct {
		HealthCheckInterval time.Duration `yaml:"health_check_interval"`
	} `yaml:"hub"`
	Runner struct {
		Interval time.Duration `yaml:"interval"`
	} `yaml:"runner"`
	Pipeline struct {
		MaxRPS     int `yaml:"max_rps"`
		BufferSize int `yaml:"buffer_size"`
	} `yaml:"pipeline"`
}

// Source describes one polled HTTP indicator source.
type Source struct {
	Name              string        `yaml:"name"`
	URL               string        `yaml:"url"`
	Indicator         string        `yaml:"indicator"`
	Priority          int           `yaml:"priority"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
	MaxRetries        int           `yaml:"max_retries"`
	CacheTTL          time.Duration `yaml:"cache_ttl"`
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

	// Validate required fields
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

	// Override with environment variables
	if v := os.Getenv("FEED_TOKEN"); v != "" {
		c.Feed.Token = v
	}
	if v := os.Getenv("INDICATORS"); v != "" {
		c.Feed.Indicators = strings.Split(v, ",")
	}
	if v := os.Getenv("BACKEND"); v != "" {
		c.Backend.Type = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_REPORTS_TOPIC"); v != "" {
		c.Kafka.ReportsTopic = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}

	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Backend.Type == "" {
		return fmt.Errorf("backend.type is required")
	}
	switch c.Backend.Type {
	case "kafka", "clickhouse", "both":
	default:
		return fmt.Errorf("backend.type must be 'kafka', 'clickhouse' or 'both', got '%s'", c.Backend.Type)
	}
	if len(c.Feed.Indicators) == 0 && len(c.Sources) == 0 {
		return fmt.Errorf("at least one of feed.indicators or sources is required")
	}
	if len(c.Feed.Indicators) > 0 && c.Feed.Token == "" {
		return fmt.Errorf("feed.token is required when feed.indicators is set")
	}
	for i, s := range c.Sources {
		if s.Name == "" || s.URL == "" || s.Indicator == "" {
			return fmt.Errorf("sources[%d]: name, url and indicator are required", i)
		}
	}
	return nil
}
