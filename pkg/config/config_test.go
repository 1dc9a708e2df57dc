package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const validYAML = `
environment: development
server:
  port: 8080
  read_timeout: 10s
backend:
  type: both
kafka:
  brokers: ["localhost:9092"]
  reports_topic: engine-reports
feed:
  token: t0ken
  websocket_url: wss://feed.example.com
  indicators: ["vix", "move"]
sources:
  - name: treasury
    url: https://api.example.com/rates
    indicator: sofr_iorb_spread
    requests_per_minute: 30
    cache_ttl: 5m
runner:
  interval: 1m
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	c, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if c.Environment != "development" {
		t.Errorf("Environment = %q, want development", c.Environment)
	}
	if c.Backend.Type != "both" {
		t.Errorf("Backend.Type = %q, want both", c.Backend.Type)
	}
	if c.Server.ReadTimeout != 10*time.Second {
		t.Errorf("Server.ReadTimeout = %v, want 10s", c.Server.ReadTimeout)
	}
	if len(c.Feed.Indicators) != 2 {
		t.Errorf("Feed.Indicators = %v, want 2 entries", c.Feed.Indicators)
	}
	if len(c.Sources) != 1 || c.Sources[0].Indicator != "sofr_iorb_spread" {
		t.Errorf("Sources = %+v", c.Sources)
	}
	if c.Sources[0].CacheTTL != 5*time.Minute {
		t.Errorf("Sources[0].CacheTTL = %v, want 5m", c.Sources[0].CacheTTL)
	}
	if c.Runner.Interval != time.Minute {
		t.Errorf("Runner.Interval = %v, want 1m", c.Runner.Interval)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("Load() expected error for missing file")
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("FEED_TOKEN", "env-token")
	t.Setenv("BACKEND", "kafka")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("INDICATORS", "spx_close,ndx_close,vix")
	t.Setenv("REDIS_ADDR", "redis:6379")

	c, err := LoadWithEnv(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("LoadWithEnv() error = %v", err)
	}
	if c.Feed.Token != "env-token" {
		t.Errorf("Feed.Token = %q, want env-token", c.Feed.Token)
	}
	if c.Backend.Type != "kafka" {
		t.Errorf("Backend.Type = %q, want kafka", c.Backend.Type)
	}
	if len(c.Kafka.Brokers) != 2 {
		t.Errorf("Kafka.Brokers = %v, want 2 entries", c.Kafka.Brokers)
	}
	if len(c.Feed.Indicators) != 3 {
		t.Errorf("Feed.Indicators = %v, want 3 entries", c.Feed.Indicators)
	}
	if c.Redis.Addr != "redis:6379" {
		t.Errorf("Redis.Addr = %q, want redis:6379", c.Redis.Addr)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		c := &Config{Environment: "production"}
		c.Backend.Type = "clickhouse"
		c.Feed.Token = "tok"
		c.Feed.Indicators = []string{"vix"}
		return c
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing environment", func(c *Config) { c.Environment = "" }, true},
		{"missing backend", func(c *Config) { c.Backend.Type = "" }, true},
		{"bad backend", func(c *Config) { c.Backend.Type = "postgres" }, true},
		{"no inputs", func(c *Config) { c.Feed.Indicators = nil }, true},
		{"indicators without token", func(c *Config) { c.Feed.Token = "" }, true},
		{"sources only", func(c *Config) {
			c.Feed.Indicators = nil
			c.Feed.Token = ""
			c.Sources = []Source{{Name: "s", URL: "https://x", Indicator: "vix"}}
		}, false},
		{"source missing url", func(c *Config) {
			c.Sources = []Source{{Name: "s", Indicator: "vix"}}
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(c)
			if err := c.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
