// ingest-server: reference audio ingestion endpoint for audiostream.
// Accepts WebSocket streams, decodes each chunk and acknowledges it.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/urfave/cli/v2"

	"github.com/teslashibe/go-audiostream/internal/config"
	"github.com/teslashibe/go-audiostream/internal/log"
	"github.com/teslashibe/go-audiostream/pkg/ingest"
)

var version = "1.0.0"

func main() {
	if err := config.LoadEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load .env file: %v\n", err)
		os.Exit(1)
	}
	defaults, err := config.NewIngestConfigFromEnv(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid environment: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.App{
		Name:    "ingest-server",
		Usage:   "Run the reference audio ingestion endpoint",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "listen address",
				Value: defaults.Addr,
			},
			&cli.IntFlag{
				Name:  "sample-rate",
				Usage: "sample rate used for ack durations, in Hz",
				Value: defaults.SampleRate,
			},
			&cli.BoolFlag{
				Name:  "plain-acks",
				Usage: `reply with the text "ack" instead of JSON`,
				Value: defaults.PlainAcks,
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "enable debug logging",
				Value: defaults.Debug,
			},
		},
		Action: serve,
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func serve(c *cli.Context) error {
	debug := c.Bool("debug")
	log.Init(log.LevelFor(debug))
	lg := log.L()

	hub := ingest.NewHub(
		ingest.WithSampleRate(c.Int("sample-rate")),
		ingest.WithPlainAcks(c.Bool("plain-acks")),
		ingest.WithLogger(lg))

	middleware := []fiber.Handler{recover.New()}
	if debug {
		middleware = append(middleware, logger.New())
	}
	app := hub.App(middleware...)

	addr := c.String("addr")
	errCh := make(chan error, 1)
	go func() {
		lg.Info("starting server",
			"addr", addr,
			"websocket", "/ws/ingest",
			"api", "/api/streams",
			"metrics", "/metrics")
		errCh <- app.Listen(addr)
	}()

	select {
	case err := <-errCh:
		return cli.Exit("Server error: "+err.Error(), 1)
	case <-c.Context.Done():
	}

	lg.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(ctx); err != nil {
		lg.Warn("shutdown error", "error", err)
	}
	return nil
}
