package ingest

import "log/slog"

// Config holds hub options. Use functional options (WithXxx) to set them.
type Config struct {
	// SampleRate is reported in hello and used for ack durations. Frames
	// carry no rate of their own.
	// Default: 16000
	SampleRate int

	// PlainAcks replies with the bare text "ack" instead of JSON.
	PlainAcks bool

	Logger *slog.Logger
}

// Option is a functional option for configuring a Hub.
type Option func(*Config)

// WithSampleRate sets the sample rate used for ack durations.
func WithSampleRate(hz int) Option {
	return func(c *Config) {
		c.SampleRate = hz
	}
}

// WithPlainAcks switches replies to plain text.
func WithPlainAcks(plain bool) Option {
	return func(c *Config) {
		c.PlainAcks = plain
	}
}

// WithLogger sets the structured logger for the hub.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// DefaultConfig returns the default hub configuration.
func DefaultConfig() *Config {
	return &Config{
		SampleRate: 16000,
		Logger:     slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}
