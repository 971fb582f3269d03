package lookup

import (
	"errors"

	"github.com/Sternrassler/screenshare-scanner/pkg/ratelimit"
)

// Kind classifies the outcome of a single lookup.
type Kind int

const (
	// KindClean means the provider returned no records for the identifier.
	KindClean Kind = iota

	// KindDetected means the provider returned user or ticket records.
	KindDetected

	// KindRateLimited means the provider refused the request because it is
	// throttling the caller.
	KindRateLimited

	// KindTransportError means the request failed or the response could not
	// be interpreted.
	KindTransportError
)

// String returns the label used in logs and metrics.
func (k Kind) String() string {
	switch k {
	case KindClean:
		return "clean"
	case KindDetected:
		return "detected"
	case KindRateLimited:
		return "rate_limited"
	case KindTransportError:
		return "transport_error"
	default:
		return "unknown"
	}
}

// Outcome is the result of checking one identifier.
type Outcome struct {
	Kind Kind

	// Payload is set for KindDetected only.
	Payload *Payload

	// Err is set for KindTransportError. For KindRateLimited it carries the
	// provider's failure message.
	Err error
}

// Clean returns a clean outcome.
func Clean() Outcome {
	return Outcome{Kind: KindClean}
}

// Detected returns a detection outcome carrying payload.
func Detected(payload *Payload) Outcome {
	return Outcome{Kind: KindDetected, Payload: payload}
}

// RateLimited returns a rate limit outcome. err may be nil.
func RateLimited(err error) Outcome {
	return Outcome{Kind: KindRateLimited, Err: err}
}

// TransportFailure returns a transport error outcome.
func TransportFailure(err error) Outcome {
	return Outcome{Kind: KindTransportError, Err: err}
}

// SignalsRateLimit reports whether this outcome should trip the scan's
// rate limit flag. Transport errors signal it when their message carries a
// rate limit marker.
func (o Outcome) SignalsRateLimit() bool {
	switch o.Kind {
	case KindRateLimited:
		return true
	case KindTransportError:
		if o.Err == nil {
			return false
		}
		var lookupErr *Error
		if errors.As(o.Err, &lookupErr) {
			return lookupErr.RateLimited
		}
		return ratelimit.IsRateLimitMessage(o.Err.Error())
	default:
		return false
	}
}

// ErrorMessage returns the error text recorded for a transport error.
func (o Outcome) ErrorMessage() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}
