// Package results aggregates lookup outcomes for one scan.
package results

import (
	"sync"

	"github.com/Sternrassler/screenshare-scanner/pkg/lookup"
)

// Detection is an identifier the provider returned records for.
type Detection struct {
	ID   string         `json:"id"`
	Data lookup.Payload `json:"data"`
}

// ScanError is a lookup that failed in transport.
type ScanError struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// ScanResults is a point-in-time view of a scan.
//
// Clean + len(Detected) + len(Errors) + RateLimited == Checked holds for
// every snapshot.
type ScanResults struct {
	Checked      int         `json:"checked"`
	Detected     []Detection `json:"detected"`
	Errors       []ScanError `json:"errors"`
	RateLimitHit bool        `json:"rate_limit_hit"`

	Clean       int `json:"clean"`
	RateLimited int `json:"rate_limited"`
}

// Aggregator accumulates outcomes. Record is safe for concurrent use.
type Aggregator struct {
	mu      sync.Mutex
	results ScanResults
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		results: ScanResults{
			Detected: []Detection{},
			Errors:   []ScanError{},
		},
	}
}

// Record adds one outcome for id.
func (a *Aggregator) Record(id string, outcome lookup.Outcome) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.results.Checked++

	switch outcome.Kind {
	case lookup.KindDetected:
		var data lookup.Payload
		if outcome.Payload != nil {
			data = *outcome.Payload
		}
		a.results.Detected = append(a.results.Detected, Detection{ID: id, Data: data})
	case lookup.KindTransportError:
		a.results.Errors = append(a.results.Errors, ScanError{ID: id, Error: outcome.ErrorMessage()})
		if outcome.SignalsRateLimit() {
			a.results.RateLimitHit = true
		}
	case lookup.KindRateLimited:
		a.results.RateLimited++
		a.results.RateLimitHit = true
	default:
		a.results.Clean++
	}
}

// RateLimitHit reports whether any recorded outcome signalled a rate limit.
func (a *Aggregator) RateLimitHit() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.results.RateLimitHit
}

// Snapshot returns a copy that later Record calls do not affect.
func (a *Aggregator) Snapshot() ScanResults {
	a.mu.Lock()
	defer a.mu.Unlock()

	snap := a.results
	snap.Detected = append([]Detection(nil), a.results.Detected...)
	snap.Errors = append([]ScanError(nil), a.results.Errors...)
	if snap.Detected == nil {
		snap.Detected = []Detection{}
	}
	if snap.Errors == nil {
		snap.Errors = []ScanError{}
	}
	return snap
}
