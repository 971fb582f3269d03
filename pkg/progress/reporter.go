// Package progress surfaces scan state to an external observer on a
// sampling cadence rather than per identifier.
package progress

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/Sternrassler/screenshare-scanner/pkg/results"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultSampleInterval sends an update every 50 checked identifiers.
const DefaultSampleInterval = 50

// DefaultDeliveryTimeout bounds a single sink delivery.
const DefaultDeliveryTimeout = 10 * time.Second

var progressDeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "progress_deliveries_total",
	Help: "Progress updates delivered to the sink by result (ok, error)",
}, []string{"result"})

// Update is one progress notification.
type Update struct {
	ScanID      string `json:"scan_id,omitempty"`
	Checked     int    `json:"checked"`
	Total       int    `json:"total"`
	Detections  int    `json:"detections"`
	RateLimited bool   `json:"rate_limited"`
	Percent     int    `json:"percent"`
	Final       bool   `json:"final"`
}

// NewUpdate builds an update from a snapshot.
func NewUpdate(snap results.ScanResults, total int, final bool) Update {
	return Update{
		Checked:     snap.Checked,
		Total:       total,
		Detections:  len(snap.Detected),
		RateLimited: snap.RateLimitHit,
		Percent:     Percent(snap.Checked, total),
		Final:       final,
	}
}

// Status renders the update's state for humans.
func (u Update) Status() string {
	switch {
	case u.RateLimited:
		return "rate limited"
	case u.Final:
		return "done"
	default:
		return "running"
	}
}

// Percent returns checked/total as a rounded percentage. An empty scan is
// 100% complete.
func Percent(checked, total int) int {
	if total <= 0 {
		return 100
	}
	return int(math.Round(float64(checked) / float64(total) * 100))
}

// Reporter throttles updates to its sink. Delivery failures are logged and
// never returned.
type Reporter struct {
	sink     Sink
	interval int
	timeout  time.Duration
	scanID   string
	logger   zerolog.Logger

	mu       sync.Mutex
	finished bool
}

// NewReporter creates a reporter. A nil sink discards updates and a
// non-positive interval falls back to DefaultSampleInterval.
func NewReporter(sink Sink, interval int) *Reporter {
	if sink == nil {
		sink = Discard
	}
	if interval <= 0 {
		interval = DefaultSampleInterval
	}
	return &Reporter{
		sink:     sink,
		interval: interval,
		timeout:  DefaultDeliveryTimeout,
		logger:   log.With().Str("component", "progress").Logger(),
	}
}

// SetDeliveryTimeout overrides the per-delivery timeout.
func (r *Reporter) SetDeliveryTimeout(d time.Duration) {
	if d > 0 {
		r.timeout = d
	}
}

// SetScanID stamps id on every delivered update.
func (r *Reporter) SetScanID(id string) {
	r.scanID = id
}

// Interval returns the sampling interval.
func (r *Reporter) Interval() int {
	return r.interval
}

// ShouldSample reports whether checked lands on the sampling cadence.
func (r *Reporter) ShouldSample(checked int) bool {
	return checked > 0 && checked%r.interval == 0
}

// Sample delivers an update when snap.Checked is a multiple of the
// interval. It reports whether a delivery was attempted.
func (r *Reporter) Sample(ctx context.Context, snap results.ScanResults, total int) bool {
	if !r.ShouldSample(snap.Checked) {
		return false
	}
	r.deliver(ctx, NewUpdate(snap, total, false))
	return true
}

// Finish delivers the final update. Only the first call delivers; callers
// send the last batch through Finish instead of Sample.
func (r *Reporter) Finish(ctx context.Context, snap results.ScanResults, total int) bool {
	r.mu.Lock()
	already := r.finished
	r.finished = true
	r.mu.Unlock()
	if already {
		return false
	}
	r.deliver(ctx, NewUpdate(snap, total, true))
	return true
}

func (r *Reporter) deliver(ctx context.Context, u Update) {
	u.ScanID = r.scanID

	deliverCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.sink.Deliver(deliverCtx, u); err != nil {
		progressDeliveriesTotal.WithLabelValues("error").Inc()
		r.logger.Error().
			Err(err).
			Int("checked", u.Checked).
			Int("total", u.Total).
			Msg("Error updating progress")
		return
	}

	progressDeliveriesTotal.WithLabelValues("ok").Inc()
	r.logger.Debug().
		Int("checked", u.Checked).
		Int("total", u.Total).
		Int("percent", u.Percent).
		Bool("final", u.Final).
		Msg("Progress delivered")
}
