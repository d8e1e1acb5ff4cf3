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
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"logging"`
	Postgres struct {
		Host         string        `yaml:"host"`
		Port         int           `yaml:"port"`
		Database     string        `yaml:"database"`
		User         string        `yaml:"user"`
		Password     string        `yaml:"password"`
		SSLMode      string        `yaml:"ssl_mode"`
		MaxOpenConns int           `yaml:"max_open_conns"`
		MaxIdleConns int           `yaml:"max_idle_conns"`
		DialTimeout  time.Duration `yaml:"dial_timeout"`
	} `yaml:"postgres"`
	Redis struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix"`
	} `yaml:"redis"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
	} `yaml:"kafka"`
	Series struct {
		BaseURL string        `yaml:"base_url"`
		APIKey  string        `yaml:"api_key"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"series"`
	Forecast struct {
		HorizonDays      int           `yaml:"horizon_days"`
		HistoryDays      int           `yaml:"history_days"`
		AlgorithmVersion string        `yaml:"algorithm_version"`
		FreshTTL         time.Duration `yaml:"fresh_ttl"`
		StaleTTL         time.Duration `yaml:"stale_ttl"`
	} `yaml:"forecast"`
	Warmup struct {
		Secret       string        `yaml:"secret"`
		JobTimeout   time.Duration `yaml:"job_timeout"`
		ErrorTTL     time.Duration `yaml:"error_ttl"`
		DebugTTL     time.Duration `yaml:"debug_ttl"`
		ReclaimAfter time.Duration `yaml:"reclaim_after"`
	} `yaml:"warmup"`
	Evaluation struct {
		Secret     string `yaml:"secret"`
		BatchSize  int    `yaml:"batch_size"`
		BufferDays int    `yaml:"buffer_days"`
	} `yaml:"evaluation"`
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
	if v := os.Getenv("POSTGRES_HOST"); v != "" {
		c.Postgres.Host = v
	}
	if v := os.Getenv("POSTGRES_PASSWORD"); v != "" {
		c.Postgres.Password = v
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Redis.Host = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("SERIES_API_KEY"); v != "" {
		c.Series.APIKey = v
	}
	if v := os.Getenv("WARMUP_SECRET"); v != "" {
		c.Warmup.Secret = v
	}
	if v := os.Getenv("EVALUATION_SECRET"); v != "" {
		c.Evaluation.Secret = v
	}

	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Forecast.HorizonDays <= 0 {
		c.Forecast.HorizonDays = 30
	}
	if c.Forecast.HistoryDays <= 0 {
		c.Forecast.HistoryDays = 90
	}
	if c.Forecast.AlgorithmVersion == "" {
		c.Forecast.AlgorithmVersion = "v1"
	}
	if c.Forecast.FreshTTL <= 0 {
		c.Forecast.FreshTTL = 24 * time.Hour
	}
	if c.Forecast.StaleTTL <= 0 {
		c.Forecast.StaleTTL = 7 * 24 * time.Hour
	}
	if c.Warmup.JobTimeout <= 0 {
		c.Warmup.JobTimeout = 3 * time.Minute
	}
	if c.Warmup.ErrorTTL <= 0 {
		c.Warmup.ErrorTTL = time.Hour
	}
	if c.Warmup.DebugTTL <= 0 {
		c.Warmup.DebugTTL = 15 * time.Minute
	}
	if c.Evaluation.BatchSize <= 0 {
		c.Evaluation.BatchSize = 100
	}
	if c.Evaluation.BufferDays <= 0 {
		c.Evaluation.BufferDays = 2
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
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = "trendduel"
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Postgres.Host == "" {
		return fmt.Errorf("postgres.host is required")
	}
	if c.Postgres.Database == "" {
		return fmt.Errorf("postgres.database is required")
	}
	if c.Redis.Host == "" {
		return fmt.Errorf("redis.host is required")
	}
	if c.Series.BaseURL == "" {
		return fmt.Errorf("series.base_url is required")
	}
	if c.Forecast.StaleTTL < c.Forecast.FreshTTL {
		return fmt.Errorf("forecast.stale_ttl must be >= forecast.fresh_ttl")
	}
	// Warmup and evaluation secrets are intentionally optional: endpoints
	// answer 503 while unconfigured instead of running open.
	return nil
}
