package cache

import (
	"encoding/json"
	"time"
)

// Entry is a cached lookup outcome for one identifier.
type Entry struct {
	// Detected is true when the provider returned records.
	Detected bool `json:"detected"`

	// Data is the provider's detection payload (empty for clean entries).
	Data json.RawMessage `json:"data,omitempty"`

	// CachedAt is when the outcome was stored.
	CachedAt time.Time `json:"cached_at"`

	// Expires is when the entry stops being served.
	Expires time.Time `json:"expires"`
}

// NewEntry creates an entry that expires after ttl.
func NewEntry(detected bool, data json.RawMessage, ttl time.Duration) *Entry {
	now := time.Now()
	return &Entry{
		Detected: detected,
		Data:     data,
		CachedAt: now,
		Expires:  now.Add(ttl),
	}
}

// IsExpired returns true if the entry has expired.
func (e *Entry) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the time until expiration.
// Returns 0 if already expired.
func (e *Entry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}
