package cache

import (
	"strings"
)

// Key identifies a cached lookup outcome.
type Key struct {
	// Provider is the lookup service host (e.g., "screenshare.lol")
	Provider string

	// Identifier is the checked subject
	Identifier string
}

// String generates the Redis key.
// Format: lookup:provider:identifier
func (k Key) String() string {
	parts := []string{"lookup"}

	if provider := strings.ToLower(strings.TrimSpace(k.Provider)); provider != "" {
		parts = append(parts, provider)
	}

	parts = append(parts, strings.TrimSpace(k.Identifier))

	return strings.Join(parts, ":")
}
