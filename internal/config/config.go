// Package config loads scanner configuration from a YAML file and the
// environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/screenshare-scanner/pkg/logging"
	"github.com/Sternrassler/screenshare-scanner/pkg/lookup"
	"github.com/Sternrassler/screenshare-scanner/pkg/scanner"
	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"
)

// Config holds scanner configuration.
type Config struct {
	Lookup   LookupConfig   `yaml:"lookup"`
	Scan     ScanConfig     `yaml:"scan"`
	Cache    CacheConfig    `yaml:"cache"`
	Logging  LoggingConfig  `yaml:"logging"`
	Server   ServerConfig   `yaml:"server"`
	Progress ProgressConfig `yaml:"progress"`
}

type LookupConfig struct {
	Endpoint          string        `yaml:"endpoint"`
	APIKey            string        `yaml:"api_key"`
	UserAgent         string        `yaml:"user_agent"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"` // 0 disables the client-side limiter
	RateLimitMarkers  []string      `yaml:"rate_limit_markers"`
}

type ScanConfig struct {
	BatchSize        int           `yaml:"batch_size"`
	InterBatchDelay  time.Duration `yaml:"inter_batch_delay"`
	ProgressInterval int           `yaml:"progress_interval"`
}

type CacheConfig struct {
	RedisURL      string        `yaml:"redis_url"` // empty disables the cache
	RedisPassword string        `yaml:"redis_password"`
	TTL           time.Duration `yaml:"ttl"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

type ServerConfig struct {
	MetricsAddr string `yaml:"metrics_addr"` // e.g. ":9090", empty disables
}

type ProgressConfig struct {
	WebhookURL     string            `yaml:"webhook_url"`
	WebhookHeaders map[string]string `yaml:"webhook_headers"`
	WebhookTimeout time.Duration     `yaml:"webhook_timeout"`
}

// Load reads configuration from a YAML file, then applies environment
// overrides. A missing file (or empty path) yields the defaults. The result
// is not validated; call Validate.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)

	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	lookupDefaults := lookup.DefaultConfig("")
	scanDefaults := scanner.DefaultConfig()

	return &Config{
		Lookup: LookupConfig{
			Endpoint:  lookupDefaults.Endpoint,
			UserAgent: lookupDefaults.UserAgent,
			Timeout:   lookupDefaults.Timeout,
		},
		Scan: ScanConfig{
			BatchSize:        scanDefaults.BatchSize,
			InterBatchDelay:  scanDefaults.InterBatchDelay,
			ProgressInterval: scanDefaults.ProgressSampleInterval,
		},
		Cache: CacheConfig{
			TTL: lookupDefaults.CacheTTL,
		},
		Logging: LoggingConfig{
			Level: string(logging.LevelInfo),
		},
		Progress: ProgressConfig{
			WebhookTimeout: 5 * time.Second,
		},
	}
}

func applyDefaults(cfg *Config) {
	def := Default()

	if cfg.Lookup.Endpoint == "" {
		cfg.Lookup.Endpoint = def.Lookup.Endpoint
	}
	if cfg.Lookup.UserAgent == "" {
		cfg.Lookup.UserAgent = def.Lookup.UserAgent
	}
	if cfg.Lookup.Timeout == 0 {
		cfg.Lookup.Timeout = def.Lookup.Timeout
	}
	if cfg.Scan.BatchSize == 0 {
		cfg.Scan.BatchSize = def.Scan.BatchSize
	}
	if cfg.Scan.ProgressInterval == 0 {
		cfg.Scan.ProgressInterval = def.Scan.ProgressInterval
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = def.Logging.Level
	}
	if cfg.Progress.WebhookTimeout == 0 {
		cfg.Progress.WebhookTimeout = def.Progress.WebhookTimeout
	}
}

// applyEnv overrides file values with environment variables.
func applyEnv(cfg *Config) error {
	setString(&cfg.Lookup.APIKey, "SCREENSHARE_API_KEY")
	setString(&cfg.Lookup.Endpoint, "SCREENSHARE_API_ENDPOINT")
	setString(&cfg.Cache.RedisURL, "REDIS_URL")
	setString(&cfg.Cache.RedisPassword, "REDIS_PASSWORD")
	setString(&cfg.Logging.Level, "LOG_LEVEL")
	setString(&cfg.Server.MetricsAddr, "METRICS_ADDR")
	setString(&cfg.Progress.WebhookURL, "PROGRESS_WEBHOOK_URL")

	if err := setInt(&cfg.Scan.BatchSize, "SCAN_BATCH_SIZE"); err != nil {
		return err
	}
	if err := setInt(&cfg.Scan.ProgressInterval, "SCAN_PROGRESS_INTERVAL"); err != nil {
		return err
	}
	if err := setDuration(&cfg.Scan.InterBatchDelay, "SCAN_INTER_BATCH_DELAY"); err != nil {
		return err
	}
	if err := setDuration(&cfg.Cache.TTL, "CACHE_TTL"); err != nil {
		return err
	}
	if err := setBool(&cfg.Logging.Pretty, "LOG_PRETTY"); err != nil {
		return err
	}
	return nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%s: invalid integer %q: %w", key, v, err)
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%s: invalid duration %q: %w", key, v, err)
	}
	*dst = d
	return nil
}

func setBool(dst *bool, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%s: invalid boolean %q: %w", key, v, err)
	}
	*dst = b
	return nil
}

// LookupClientConfig returns the lookup client configuration. Redis is left
// nil; the caller attaches a client when the cache is enabled.
func (c *Config) LookupClientConfig() lookup.Config {
	return lookup.Config{
		Endpoint:          c.Lookup.Endpoint,
		APIKey:            c.Lookup.APIKey,
		UserAgent:         c.Lookup.UserAgent,
		Timeout:           c.Lookup.Timeout,
		RequestsPerSecond: c.Lookup.RequestsPerSecond,
		RateLimitMarkers:  c.Lookup.RateLimitMarkers,
		CacheTTL:          c.Cache.TTL,
	}
}

// SchedulerConfig returns the batch scheduler configuration.
func (c *Config) SchedulerConfig() scanner.Config {
	return scanner.Config{
		BatchSize:              c.Scan.BatchSize,
		InterBatchDelay:        c.Scan.InterBatchDelay,
		ProgressSampleInterval: c.Scan.ProgressInterval,
	}
}

// LoggerConfig returns the logging configuration writing to stderr.
func (c *Config) LoggerConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.Level(c.Logging.Level)
	cfg.Pretty = c.Logging.Pretty
	return cfg
}

// CacheEnabled reports whether a redis URL is configured.
func (c *Config) CacheEnabled() bool {
	return c.Cache.RedisURL != ""
}

// RedisOptions builds go-redis options from the cache settings. Both
// redis:// URLs and bare host:port addresses are accepted.
func (c *Config) RedisOptions() (*redis.Options, error) {
	if !c.CacheEnabled() {
		return nil, fmt.Errorf("cache is not configured")
	}

	var opts *redis.Options
	if strings.Contains(c.Cache.RedisURL, "://") {
		parsed, err := redis.ParseURL(c.Cache.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: c.Cache.RedisURL}
	}

	if c.Cache.RedisPassword != "" {
		opts.Password = c.Cache.RedisPassword
	}
	return opts, nil
}
