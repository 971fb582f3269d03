package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/Sternrassler/screenshare-scanner/pkg/logging"
)

// ErrMissingAPIKey is returned when no lookup API key is configured.
var ErrMissingAPIKey = errors.New("lookup.api_key must be set (or SCREENSHARE_API_KEY)")

// Validate checks the loaded config for required fields and safe values.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Lookup.APIKey) == "" {
		return ErrMissingAPIKey
	}

	if err := validateURL("lookup.endpoint", c.Lookup.Endpoint); err != nil {
		return err
	}
	if c.Lookup.Timeout < 0 {
		return errors.New("lookup.timeout must not be negative")
	}
	if c.Lookup.RequestsPerSecond < 0 {
		return errors.New("lookup.requests_per_second must not be negative")
	}

	if c.Scan.BatchSize <= 0 {
		return fmt.Errorf("scan.batch_size must be positive (got %d)", c.Scan.BatchSize)
	}
	if c.Scan.InterBatchDelay < 0 {
		return errors.New("scan.inter_batch_delay must not be negative")
	}
	if c.Scan.ProgressInterval <= 0 {
		return fmt.Errorf("scan.progress_interval must be positive (got %d)", c.Scan.ProgressInterval)
	}

	if c.CacheEnabled() {
		if c.Cache.TTL <= 0 {
			return errors.New("cache.ttl must be positive when the cache is enabled")
		}
		if _, err := c.RedisOptions(); err != nil {
			return err
		}
	}

	if _, err := logging.ParseLevel(logging.Level(c.Logging.Level)); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}

	if c.Progress.WebhookURL != "" {
		if err := validateURL("progress.webhook_url", c.Progress.WebhookURL); err != nil {
			return err
		}
	}

	return nil
}

func validateURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must be an http(s) URL (got %q)", field, raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%s is missing a host", field)
	}
	return nil
}
