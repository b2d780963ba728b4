// Package config loads command defaults from the environment. An optional
// .env file is read first; variables already set in the process win.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// LoadEnv loads variables from the given files (default ".env"). Missing
// files are skipped.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Client holds the streaming client defaults. Command-line flags override them.
type Client struct {
	// ChunkDuration is in seconds, as on the command line.
	ChunkDuration float64       `env:"AUDIOSTREAM_CHUNK_DURATION, default=0.5"`
	SampleRate    int           `env:"AUDIOSTREAM_SAMPLE_RATE, default=16000"`
	Debug         bool          `env:"AUDIOSTREAM_DEBUG, default=false"`
	AuthToken     string        `env:"AUDIOSTREAM_AUTH_TOKEN"`
	DialTimeout   time.Duration `env:"AUDIOSTREAM_DIAL_TIMEOUT, default=10s"`
	Pacing        string        `env:"AUDIOSTREAM_PACING, default=sleep"`
}

// ChunkDurationValue converts ChunkDuration to a time.Duration.
func (c *Client) ChunkDurationValue() time.Duration {
	return SecondsToDuration(c.ChunkDuration)
}

// SecondsToDuration converts fractional seconds to a time.Duration.
func SecondsToDuration(sec float64) time.Duration {
	return time.Duration(math.Round(sec * float64(time.Second)))
}

func NewClientConfigFromEnv(ctx context.Context) (*Client, error) {
	return newClientConfig(ctx, envconfig.OsLookuper())
}

func newClientConfig(ctx context.Context, l envconfig.Lookuper) (*Client, error) {
	var cfg Client
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, err
	}
	if cfg.DialTimeout <= 0 {
		return nil, fmt.Errorf("AUDIOSTREAM_DIAL_TIMEOUT must be positive, got %v", cfg.DialTimeout)
	}
	return &cfg, nil
}

// Ingest holds the reference endpoint settings.
type Ingest struct {
	Addr       string `env:"INGEST_ADDR, default=:8765"`
	SampleRate int    `env:"INGEST_SAMPLE_RATE, default=16000"`
	PlainAcks  bool   `env:"INGEST_PLAIN_ACKS, default=false"`
	Debug      bool   `env:"INGEST_DEBUG, default=false"`
}

func NewIngestConfigFromEnv(ctx context.Context) (*Ingest, error) {
	return newIngestConfig(ctx, envconfig.OsLookuper())
}

func newIngestConfig(ctx context.Context, l envconfig.Lookuper) (*Ingest, error) {
	var cfg Ingest
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, err
	}
	if cfg.Addr == "" {
		return nil, fmt.Errorf("INGEST_ADDR is required")
	}
	return &cfg, nil
}
