package scanner

import (
	"time"
)

// Config holds scheduler configuration.
type Config struct {
	// BatchSize is the maximum number of concurrent lookups per batch
	BatchSize int

	// InterBatchDelay is the fixed pause between consecutive batches
	InterBatchDelay time.Duration

	// ProgressSampleInterval sends a progress update every N checked identifiers
	ProgressSampleInterval int
}

// DefaultConfig returns the pacing that keeps the provider from throttling:
// 5 lookups per batch, one batch per second.
func DefaultConfig() Config {
	return Config{
		BatchSize:              5,
		InterBatchDelay:        time.Second,
		ProgressSampleInterval: 50,
	}
}

// withDefaults replaces non-positive values with defaults.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.BatchSize <= 0 {
		c.BatchSize = def.BatchSize
	}
	if c.InterBatchDelay < 0 {
		c.InterBatchDelay = def.InterBatchDelay
	}
	if c.ProgressSampleInterval <= 0 {
		c.ProgressSampleInterval = def.ProgressSampleInterval
	}
	return c
}

// Batches returns how many batches n identifiers need.
func (c Config) Batches(n int) int {
	c = c.withDefaults()
	if n <= 0 {
		return 0
	}
	return (n + c.BatchSize - 1) / c.BatchSize
}

// EstimateDuration returns the time spent in inter-batch delays for n
// identifiers. Lookup latency is not included.
func (c Config) EstimateDuration(n int) time.Duration {
	batches := c.Batches(n)
	if batches <= 1 {
		return 0
	}
	return time.Duration(batches-1) * c.withDefaults().InterBatchDelay
}
