// Package ratelimit recognises throttling signals returned by the lookup
// provider and paces outbound lookups on the client side.
package ratelimit

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultMarker is the substring the provider puts into failure messages
// when it is throttling requests.
const DefaultMarker = "rate limit"

// Signal sources.
const (
	SourceResponse  = "response"
	SourceStatus    = "status"
	SourceTransport = "transport"
)

var rateLimitSignalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "lookup_rate_limit_signals_total",
	Help: "Rate limit signals observed from the lookup provider by source",
}, []string{"source"})

var defaultMatcher = NewMatcher(DefaultMarker)

// Matcher performs case-insensitive substring matching against a set of
// rate limit markers.
type Matcher struct {
	markers []string
}

// NewMatcher creates a matcher for the given markers.
// Empty markers are ignored; with no usable markers DefaultMarker is used.
func NewMatcher(markers ...string) *Matcher {
	m := &Matcher{}
	for _, marker := range markers {
		marker = strings.ToLower(strings.TrimSpace(marker))
		if marker != "" {
			m.markers = append(m.markers, marker)
		}
	}
	if len(m.markers) == 0 {
		m.markers = []string{DefaultMarker}
	}
	return m
}

// Matches reports whether msg contains any of the markers.
func (m *Matcher) Matches(msg string) bool {
	if msg == "" {
		return false
	}
	lower := strings.ToLower(msg)
	for _, marker := range m.markers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// Markers returns the normalised markers.
func (m *Matcher) Markers() []string {
	return append([]string(nil), m.markers...)
}

// IsRateLimitMessage matches msg against DefaultMarker.
func IsRateLimitMessage(msg string) bool {
	return defaultMatcher.Matches(msg)
}

// RecordSignal counts a rate limit signal observed from source.
func RecordSignal(source string) {
	rateLimitSignalsTotal.WithLabelValues(source).Inc()
}
