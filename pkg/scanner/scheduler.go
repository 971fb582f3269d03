package scanner

import (
	"context"
	"sync"
	"time"

	"github.com/Sternrassler/screenshare-scanner/pkg/lookup"
	"github.com/Sternrassler/screenshare-scanner/pkg/progress"
	"github.com/Sternrassler/screenshare-scanner/pkg/results"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Prometheus metrics for scans.
var (
	scanBatchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scan_batches_total",
		Help: "Total batches dispatched",
	})

	scanLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scan_lookups_total",
		Help: "Total lookups recorded by outcome",
	}, []string{"outcome"})

	scanHaltsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scan_halts_total",
		Help: "Scans stopped before draining the input by reason (rate_limit, cancelled)",
	}, []string{"reason"})

	scanDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "scan_duration_seconds",
		Help:    "Wall time of a complete scan",
		Buckets: prometheus.ExponentialBuckets(1, 4, 8),
	})

	scanInflightLookups = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "scan_inflight_lookups",
		Help: "Lookups currently in flight",
	})
)

// Checker checks a single identifier. *lookup.Client implements it.
type Checker interface {
	Check(ctx context.Context, id string) lookup.Outcome
}

// Result is the outcome of a complete scan.
type Result struct {
	ScanID  string
	Results results.ScanResults
	State   State
	Batches int
	Elapsed time.Duration
}

// Scheduler drives one or more scans. Scans on the same Scheduler must not
// overlap.
type Scheduler struct {
	checker Checker
	config  Config
	sleep   func(ctx context.Context, d time.Duration) error
	logger  zerolog.Logger

	mu    sync.Mutex
	state State
}

// NewScheduler creates a scheduler. Non-positive config values fall back to
// DefaultConfig.
func NewScheduler(checker Checker, config Config) *Scheduler {
	return &Scheduler{
		checker: checker,
		config:  config.withDefaults(),
		sleep:   sleepContext,
		logger:  log.With().Str("component", "scanner").Logger(),
		state:   StateIdle,
	}
}

// SetSleep replaces the inter-batch wait (for testing).
func (s *Scheduler) SetSleep(sleep func(ctx context.Context, d time.Duration) error) {
	s.sleep = sleep
}

// Config returns the effective configuration.
func (s *Scheduler) Config() Config {
	return s.config
}

// State returns the current scheduler state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Scheduler) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Scan checks ids and returns the final snapshot. sink may be nil.
func (s *Scheduler) Scan(ctx context.Context, ids []string, sink progress.Sink) results.ScanResults {
	return s.Run(ctx, ids, sink).Results
}

// Run is Scan with the terminal state and batch count.
func (s *Scheduler) Run(ctx context.Context, ids []string, sink progress.Sink) Result {
	start := time.Now()
	total := len(ids)
	scanID := uuid.NewString()
	logger := s.logger.With().Str("scan_id", scanID).Logger()
	agg := results.NewAggregator()
	reporter := progress.NewReporter(sink, s.config.ProgressSampleInterval)
	reporter.SetScanID(scanID)

	s.setState(StateIdle)
	logger.Info().
		Int("total", total).
		Int("batch_size", s.config.BatchSize).
		Dur("delay", s.config.InterBatchDelay).
		Dur("estimated", s.config.EstimateDuration(total)).
		Msg("Starting scan")

	batches := 0
	state := StateDrained

	for offset := 0; offset < total; offset += s.config.BatchSize {
		if ctx.Err() != nil {
			state = StateCancelled
			break
		}

		end := offset + s.config.BatchSize
		if end > total {
			end = total
		}
		batch := ids[offset:end]
		batches++

		s.setState(StateDispatching)
		s.runBatch(ctx, batch, agg)
		scanBatchesTotal.Inc()

		snap := agg.Snapshot()
		logger.Debug().
			Int("batch", batches).
			Int("batch_size", len(batch)).
			Int("checked", snap.Checked).
			Int("total", total).
			Int("detections", len(snap.Detected)).
			Msg("Batch complete")

		// the last batch is reported once, as the final update
		if !snap.RateLimitHit && end < total {
			reporter.Sample(ctx, snap, total)
		}

		if snap.RateLimitHit {
			state = StateHaltedOnRateLimit
			logger.Warn().
				Int("batch", batches).
				Int("checked", snap.Checked).
				Int("total", total).
				Msg("Rate limit hit, stopping scan")
			break
		}

		if end < total {
			s.setState(StateWaiting)
			if err := s.sleep(ctx, s.config.InterBatchDelay); err != nil {
				state = StateCancelled
				break
			}
		}
	}

	switch state {
	case StateHaltedOnRateLimit:
		scanHaltsTotal.WithLabelValues("rate_limit").Inc()
	case StateCancelled:
		scanHaltsTotal.WithLabelValues("cancelled").Inc()
	}
	s.setState(state)

	final := agg.Snapshot()
	reporter.Finish(context.WithoutCancel(ctx), final, total)

	elapsed := time.Since(start)
	scanDuration.Observe(elapsed.Seconds())

	logger.Info().
		Str("state", state.String()).
		Int("batch", batches).
		Int("checked", final.Checked).
		Int("total", total).
		Int("detections", len(final.Detected)).
		Int("errors", len(final.Errors)).
		Dur("duration", elapsed).
		Msg("Scan finished")

	return Result{
		ScanID:  scanID,
		Results: final,
		State:   state,
		Batches: batches,
		Elapsed: elapsed,
	}
}

// runBatch checks every identifier of one batch concurrently and waits for
// all of them. One failure never cancels its siblings.
func (s *Scheduler) runBatch(ctx context.Context, batch []string, agg *results.Aggregator) {
	var g errgroup.Group
	g.SetLimit(s.config.BatchSize)

	for _, id := range batch {
		id := id
		g.Go(func() error {
			scanInflightLookups.Inc()
			defer scanInflightLookups.Dec()

			outcome := s.checker.Check(ctx, id)
			agg.Record(id, outcome)
			scanLookupsTotal.WithLabelValues(outcome.Kind.String()).Inc()
			return nil
		})
	}

	_ = g.Wait()
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
