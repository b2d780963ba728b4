// audiostream: streams a mono 16-bit PCM WAV file to a WebSocket endpoint
// in real-time chunks and logs whatever the endpoint sends back.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/teslashibe/go-audiostream/internal/config"
	"github.com/teslashibe/go-audiostream/internal/log"
	"github.com/teslashibe/go-audiostream/pkg/audiosource"
	"github.com/teslashibe/go-audiostream/pkg/streaming"
	"github.com/teslashibe/go-audiostream/pkg/transport"
)

var version = "1.0.0"

func main() {
	if err := config.LoadEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load .env file: %v\n", err)
		os.Exit(1)
	}
	defaults, err := config.NewClientConfigFromEnv(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid environment: %v\n", err)
		os.Exit(1)
	}

	// SIGINT/SIGTERM stop the stream gracefully; the process still exits 0.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp(defaults).RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp(defaults *config.Client) *cli.App {
	return &cli.App{
		Name:      "audiostream",
		Usage:     "Stream a WAV file to an audio ingestion endpoint",
		UsageText: "audiostream [options] <source.wav> <ws://host:port/path>",
		Version:   version,
		Flags: []cli.Flag{
			&cli.Float64Flag{
				Name:  "chunk-duration",
				Usage: "chunk length in seconds",
				Value: defaults.ChunkDuration,
			},
			&cli.IntFlag{
				Name:  "sample-rate",
				Usage: "sample rate the file must have, in Hz",
				Value: defaults.SampleRate,
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "enable debug logging",
				Value: defaults.Debug,
			},
			&cli.StringFlag{
				Name:  "token",
				Usage: "bearer token sent on the WebSocket handshake",
				Value: defaults.AuthToken,
			},
			&cli.DurationFlag{
				Name:  "dial-timeout",
				Usage: "WebSocket handshake timeout",
				Value: defaults.DialTimeout,
			},
			&cli.StringFlag{
				Name:  "pacing",
				Usage: `send cadence: "sleep" (fixed delay) or "deadline" (drift-corrected)`,
				Value: defaults.Pacing,
			},
		},
		Action: run,
	}
}

func run(c *cli.Context) error {
	if c.NArg() != 2 {
		return cli.Exit("Usage: "+c.App.UsageText, 1)
	}
	path, url := c.Args().Get(0), c.Args().Get(1)

	log.Init(log.LevelFor(c.Bool("debug")))
	logger := log.L()

	pacing, err := streaming.ParsePacing(c.String("pacing"))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	src, err := audiosource.Open(audiosource.Config{
		Path:          path,
		ChunkDuration: config.SecondsToDuration(c.Float64("chunk-duration")),
		SampleRate:    c.Int("sample-rate"),
	})
	if err != nil {
		logger.Error("configuration error", "error", err)
		return cli.Exit("Configuration error: "+err.Error(), 1)
	}

	logger.Info("streaming audio",
		"source", path,
		"server", url,
		"chunk_frames", src.ChunkFrames(),
		"total_chunks", src.TotalChunks(),
		"pacing", string(pacing))

	topts := []transport.Option{
		transport.WithHandshakeTimeout(c.Duration("dial-timeout")),
		transport.WithLogger(logger),
	}
	if tok := c.String("token"); tok != "" {
		topts = append(topts, transport.WithBearerToken(tok))
	}

	session := streaming.NewSession(src, transport.NewWebSocket(topts...), url,
		streaming.WithLogger(logger),
		streaming.WithPacing(pacing))

	if err := session.Run(c.Context); err != nil {
		if c.Context.Err() != nil {
			logger.Info("interrupted before connecting")
			return nil
		}
		return cli.Exit("Connection error: "+err.Error(), 1)
	}

	st := session.Stats()
	logger.Info("stream finished",
		"session_id", st.SessionID,
		"chunks_sent", st.ChunksSent,
		"messages_received", st.MessagesReceived)
	return nil
}
