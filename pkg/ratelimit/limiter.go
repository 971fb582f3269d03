package ratelimit

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"
)

var limiterWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "lookup_limiter_wait_seconds",
	Help:    "Time spent waiting on the client-side request limiter",
	Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
})

// Limiter caps the rate of outbound lookups independently of batch pacing.
// A nil *Limiter never blocks.
type Limiter struct {
	limiter *rate.Limiter
}

// NewLimiter creates a limiter allowing rps requests per second with the
// given burst. It returns nil when rps <= 0, which disables limiting.
func NewLimiter(rps float64, burst int) *Limiter {
	if rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &Limiter{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Wait blocks until a request may proceed or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	start := time.Now()
	err := l.limiter.Wait(ctx)
	limiterWaitSeconds.Observe(time.Since(start).Seconds())
	return err
}
