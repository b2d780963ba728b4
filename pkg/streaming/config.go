package streaming

import (
	"fmt"
	"log/slog"
)

// Pacing selects how the send loop waits between chunks.
type Pacing string

const (
	// PacingSleep sleeps one chunk duration after every send. Processing time
	// and scheduling jitter accumulate as drift.
	PacingSleep Pacing = "sleep"

	// PacingDeadline schedules chunk n at start + n*chunkDuration, so time
	// spent reading and sending is absorbed instead of accumulated.
	PacingDeadline Pacing = "deadline"
)

// ParsePacing converts a flag value into a Pacing.
func ParsePacing(s string) (Pacing, error) {
	switch Pacing(s) {
	case PacingSleep, PacingDeadline:
		return Pacing(s), nil
	case "":
		return PacingSleep, nil
	default:
		return "", fmt.Errorf("unknown pacing %q (want %q or %q)", s, PacingSleep, PacingDeadline)
	}
}

// Config holds session options. Use functional options (WithXxx) to set them.
type Config struct {
	Pacing Pacing

	// OnMessage, if set, is called from the receive goroutine for every
	// inbound message after it has been logged.
	OnMessage func(Message)

	Logger *slog.Logger
}

// Option is a functional option for configuring a Session.
type Option func(*Config)

// WithPacing sets the pacing strategy.
func WithPacing(p Pacing) Option {
	return func(c *Config) {
		c.Pacing = p
	}
}

// WithMessageHandler registers a callback for inbound messages.
func WithMessageHandler(fn func(Message)) Option {
	return func(c *Config) {
		c.OnMessage = fn
	}
}

// WithLogger sets the structured logger for the session.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// DefaultConfig returns the default session configuration.
func DefaultConfig() *Config {
	return &Config{
		Pacing: PacingSleep,
		Logger: slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}
