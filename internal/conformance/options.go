package conformance

import "log/slog"

// Options configures checker behavior.
type Options struct {
	ValidateRequest  bool
	ValidateResponse bool
	// Strict fails the exchange instead of only recording violations.
	Strict bool
	Logger *slog.Logger
}

// DefaultOptions checks both directions and only records violations.
func DefaultOptions() *Options {
	return &Options{
		ValidateRequest:  true,
		ValidateResponse: true,
	}
}
