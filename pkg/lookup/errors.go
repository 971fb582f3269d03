package lookup

import (
	"errors"
	"fmt"
)

// ErrorClass represents a classification of lookup failures.
type ErrorClass string

const (
	// ErrorClassNetwork represents dial, timeout and cancellation failures.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassDecode represents responses that are not valid JSON.
	ErrorClassDecode ErrorClass = "decode"

	// ErrorClassRateLimit represents provider throttling.
	ErrorClassRateLimit ErrorClass = "rate_limit"
)

// ErrInvalidConfig is returned by New for unusable configuration.
var ErrInvalidConfig = errors.New("invalid lookup config")

// Error is a lookup failure for a single identifier.
type Error struct {
	Identifier string
	Class      ErrorClass
	StatusCode int
	Message    string
	Err        error

	// RateLimited is set when the failure carries a rate limit marker.
	RateLimited bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("lookup %s error (status %d): %s", e.Class, e.StatusCode, msg)
	}
	return fmt.Sprintf("lookup %s error: %s", e.Class, msg)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}
