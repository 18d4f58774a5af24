// Package ratelimit provides per-client rate limiting for the HTTP API.
package ratelimit

import "time"

// Limiter decides whether a request from a given key may proceed.
type Limiter interface {
	// Allow reports whether a request from key is within the limit and
	// accounts for it.
	Allow(key string) bool

	// Reset clears the accounting for key.
	Reset(key string)
}

// Config holds the rate limiting settings.
type Config struct {
	// Enabled controls whether limiting is active. A disabled limiter
	// allows everything.
	Enabled bool

	// Requests is the number of requests allowed per Window.
	Requests int

	// Window is the accounting window.
	Window time.Duration
}

// DefaultConfig returns the default limiter settings.
func DefaultConfig() Config {
	return Config{
		Enabled:  false,
		Requests: 100,
		Window:   time.Minute,
	}
}
