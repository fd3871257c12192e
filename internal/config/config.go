// Package config handles configuration loading for CAD-Sentinel.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"cad-sentinel/internal/alerting"
	"cad-sentinel/internal/cache"
	"cad-sentinel/internal/consumer"
	"cad-sentinel/internal/monitor"
	"cad-sentinel/internal/storage"

	"gopkg.in/yaml.v3"
)

// Config holds the complete application configuration.
type Config struct {
	Server    ServerConfig                 `yaml:"server"`
	Logging   LoggingConfig                `yaml:"logging"`
	Storage   storage.ClickHouseConfig     `yaml:"storage"`
	Cache     cache.Config                 `yaml:"cache"`
	Consumer  consumer.Config              `yaml:"consumer"`
	Monitor   monitor.Config               `yaml:"monitor"`
	Roster    RosterConfig                 `yaml:"roster"`
	Alerting  AlertingConfig               `yaml:"alerting"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	HTTPPort     int           `yaml:"http_port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// RosterConfig holds the reference roster and its cache TTL.
type RosterConfig struct {
	Admins       []string      `yaml:"admins"`
	SecurityTeam []string      `yaml:"security_team"`
	CacheTTL     time.Duration `yaml:"cache_ttl"`
}

// AlertingConfig holds delivery settings.
type AlertingConfig struct {
	// WebhookURL, when set, adds a webhook channel alongside the audit
	// channel.
	WebhookURL     string                    `yaml:"webhook_url"`
	WebhookHeaders map[string]string         `yaml:"webhook_headers"`
	RateLimit      alerting.RateLimitConfig  `yaml:"rate_limit"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:     8085,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Storage:  storage.DefaultClickHouseConfig(),
		Cache:    cache.DefaultConfig(),
		Consumer: consumer.DefaultConfig(),
		Monitor:  monitor.DefaultConfig(),
		Roster: RosterConfig{
			Admins:       []string{"security-admin@cadplatform.internal"},
			SecurityTeam: []string{"security-team@cadplatform.internal"},
			CacheTTL:     30 * time.Second,
		},
		Alerting: AlertingConfig{
			RateLimit: alerting.DefaultRateLimitConfig(),
		},
	}
}

// Load reads configuration from the file named by SENTINEL_CONFIG_PATH
// (default configs/config.yaml), falling back to defaults when the file is
// absent, then applies environment overrides.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	configPath := os.Getenv("SENTINEL_CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if port := os.Getenv("SENTINEL_HTTP_PORT"); port != "" {
		fmt.Sscanf(port, "%d", &c.Server.HTTPPort)
	}

	if level := os.Getenv("SENTINEL_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}

	if host := os.Getenv("CLICKHOUSE_HOST"); host != "" {
		c.Storage.Hosts = []string{host}
	}
	if db := os.Getenv("CLICKHOUSE_DATABASE"); db != "" {
		c.Storage.Database = db
	}
	if user := os.Getenv("CLICKHOUSE_USER"); user != "" {
		c.Storage.Username = user
	}
	if pass := os.Getenv("CLICKHOUSE_PASSWORD"); pass != "" {
		c.Storage.Password = pass
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		c.Cache.Enabled = true
		c.Cache.Addr = addr
	}
	if pass := os.Getenv("REDIS_PASSWORD"); pass != "" {
		c.Cache.Password = pass
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		c.Consumer.Enabled = true
		c.Consumer.Brokers = splitCSV(brokers)
	}
	if topic := os.Getenv("KAFKA_TOPIC"); topic != "" {
		c.Consumer.Topic = topic
	}

	if url := os.Getenv("SENTINEL_WEBHOOK_URL"); url != "" {
		c.Alerting.WebhookURL = url
	}
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
