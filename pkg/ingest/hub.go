// Package ingest is a reference audio ingestion endpoint. Clients stream
// base64 float32 chunks over a WebSocket and receive one reply per frame.
package ingest

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/teslashibe/go-audiostream/pkg/chunkcodec"
	"github.com/teslashibe/go-audiostream/pkg/protocol"
)

// PlainAck is the reply text used when plain acks are enabled.
const PlainAck = "ack"

// ErrBinaryFrame is reported for frames that are not text.
var ErrBinaryFrame = errors.New("binary frames are not supported")

// Stream represents a connected client stream
type Stream struct {
	ID        string
	Conn      *websocket.Conn
	Connected time.Time

	mu       sync.Mutex
	lastSeen time.Time
	chunks   int64
	samples  int64
}

// Send sends a message to the client
func (s *Stream) Send(msg *protocol.Message) error {
	data, err := msg.Bytes()
	if err != nil {
		return err
	}
	return s.SendText(string(data))
}

// SendText sends a raw text frame to the client
func (s *Stream) SendText(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Conn.WriteMessage(websocket.TextMessage, []byte(text))
}

func (s *Stream) record(samples int) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = time.Now()
	s.chunks++
	s.samples += int64(samples)
	return s.chunks
}

// Hub accepts audio streams and acknowledges their chunks
type Hub struct {
	mu      sync.RWMutex
	streams map[string]*Stream
	cfg     *Config
	log     *slog.Logger

	registry *prometheus.Registry
	metrics  *Metrics

	// Callbacks
	onChunk func(streamID string, seq int64, samples []float32)

	// Stats
	chunksReceived  atomic.Uint64
	samplesReceived atomic.Uint64
	decodeErrors    atomic.Uint64
	streamsServed   atomic.Uint64
}

// NewHub creates a new ingest hub
func NewHub(opts ...Option) *Hub {
	cfg := DefaultConfig()
	cfg.Apply(opts...)
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	reg := prometheus.NewRegistry()
	return &Hub{
		streams:  make(map[string]*Stream),
		cfg:      cfg,
		log:      cfg.Logger.With("component", "ingest.hub"),
		registry: reg,
		metrics:  NewMetrics(reg),
	}
}

// OnChunk sets the callback for decoded chunks. It runs on the stream's
// read goroutine.
func (h *Hub) OnChunk(callback func(streamID string, seq int64, samples []float32)) {
	h.mu.Lock()
	h.onChunk = callback
	h.mu.Unlock()
}

// Registry returns the Prometheus registry holding the hub metrics
func (h *Hub) Registry() *prometheus.Registry {
	return h.registry
}

// App builds a Fiber app serving the WebSocket endpoint, the API, health
// and metrics routes. Middleware runs ahead of every route.
func (h *Hub) App(middleware ...fiber.Handler) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "ingest-server",
		DisableStartupMessage: true,
	})
	for _, m := range middleware {
		app.Use(m)
	}

	h.RegisterRoutes(app)
	h.RegisterAPIRoutes(app.Group("/api"))

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "streams": h.StreamCount()})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{})))

	return app
}

// RegisterRoutes registers WebSocket routes on a Fiber app
func (h *Hub) RegisterRoutes(app *fiber.App) {
	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/ingest", websocket.New(h.handleStream))
	app.Get("/ws/ingest/:id", websocket.New(h.handleStream))
}

// handleStream handles one client WebSocket connection
func (h *Hub) handleStream(c *websocket.Conn) {
	streamID := c.Params("id")
	if streamID == "" {
		streamID = uuid.NewString()
	}

	now := time.Now()
	stream := &Stream{
		ID:        streamID,
		Conn:      c,
		Connected: now,
		lastSeen:  now,
	}

	h.mu.Lock()
	h.streams[streamID] = stream
	count := len(h.streams)
	h.mu.Unlock()

	h.metrics.ActiveStreams.Inc()
	h.metrics.StreamsOpened.Inc()
	log := h.log.With("stream_id", streamID)
	log.Info("stream connected", "streams", count)

	defer func() {
		h.mu.Lock()
		delete(h.streams, streamID)
		count := len(h.streams)
		h.mu.Unlock()

		h.streamsServed.Add(1)
		h.metrics.ActiveStreams.Dec()
		h.metrics.StreamsClosed.Inc()
		h.metrics.StreamDuration.Observe(time.Since(now).Seconds())

		stream.mu.Lock()
		chunks, samples := stream.chunks, stream.samples
		stream.mu.Unlock()
		log.Info("stream disconnected", "streams", count, "chunks", chunks, "samples", samples)
	}()

	if !h.cfg.PlainAcks {
		if msg, err := protocol.NewHelloMessage(streamID, h.cfg.SampleRate); err == nil {
			if err := stream.Send(msg); err != nil {
				log.Warn("hello failed", "error", err)
				return
			}
		}
	}

	for {
		mt, data, err := c.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug("stream closed by client")
			} else {
				log.Warn("stream read error", "error", err)
			}
			return
		}

		if err := h.handleFrame(stream, mt, data); err != nil {
			log.Warn("reply failed", "error", err)
			return
		}
	}
}

// handleFrame decodes one frame and replies to it
func (h *Hub) handleFrame(stream *Stream, mt int, data []byte) error {
	var samples []float32
	var err error
	if mt == websocket.TextMessage {
		samples, err = chunkcodec.Decode(string(data))
	} else {
		err = ErrBinaryFrame
	}

	if err != nil {
		h.decodeErrors.Add(1)
		h.metrics.DecodeErrors.Inc()

		stream.mu.Lock()
		seq := stream.chunks + 1
		stream.mu.Unlock()
		h.log.Debug("undecodable frame", "stream_id", stream.ID, "seq", seq, "error", err)

		msg, merr := protocol.NewErrorMessage(stream.ID, seq, err)
		if merr != nil {
			return merr
		}
		return stream.Send(msg)
	}

	seq := stream.record(len(samples))
	peak := chunkcodec.Peak(samples)

	h.chunksReceived.Add(1)
	h.samplesReceived.Add(uint64(len(samples)))
	h.metrics.ChunksReceived.Inc()
	h.metrics.SamplesReceived.Add(float64(len(samples)))
	h.metrics.ChunkSamples.Observe(float64(len(samples)))
	h.metrics.ChunkPeak.Observe(float64(peak))

	h.mu.RLock()
	chunkCb := h.onChunk
	h.mu.RUnlock()
	if chunkCb != nil {
		chunkCb(stream.ID, seq, samples)
	}

	if h.cfg.PlainAcks {
		return stream.SendText(PlainAck)
	}

	msg, err := protocol.NewAckMessage(stream.ID, seq, len(samples), h.cfg.SampleRate, peak)
	if err != nil {
		return fmt.Errorf("build ack: %w", err)
	}
	return stream.Send(msg)
}

// GetStream returns a stream by ID
func (h *Hub) GetStream(streamID string) *Stream {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.streams[streamID]
}

// StreamCount returns the number of connected streams
func (h *Hub) StreamCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.streams)
}

// Stats contains hub statistics
type Stats struct {
	StreamCount     int    `json:"stream_count"`
	StreamsServed   uint64 `json:"streams_served"`
	ChunksReceived  uint64 `json:"chunks_received"`
	SamplesReceived uint64 `json:"samples_received"`
	DecodeErrors    uint64 `json:"decode_errors"`
}

// GetStats returns hub statistics
func (h *Hub) GetStats() Stats {
	return Stats{
		StreamCount:     h.StreamCount(),
		StreamsServed:   h.streamsServed.Load(),
		ChunksReceived:  h.chunksReceived.Load(),
		SamplesReceived: h.samplesReceived.Load(),
		DecodeErrors:    h.decodeErrors.Load(),
	}
}

// StreamInfo contains info about a connected stream
type StreamInfo struct {
	ID        string    `json:"id"`
	Connected time.Time `json:"connected"`
	LastSeen  time.Time `json:"last_seen"`
	Chunks    int64     `json:"chunks"`
	Samples   int64     `json:"samples"`
}

// GetStreamInfos returns info about all connected streams
func (h *Hub) GetStreamInfos() []StreamInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()

	infos := make([]StreamInfo, 0, len(h.streams))
	for _, s := range h.streams {
		s.mu.Lock()
		infos = append(infos, StreamInfo{
			ID:        s.ID,
			Connected: s.Connected,
			LastSeen:  s.lastSeen,
			Chunks:    s.chunks,
			Samples:   s.samples,
		})
		s.mu.Unlock()
	}
	return infos
}

// RegisterAPIRoutes registers API routes for stream inspection
func (h *Hub) RegisterAPIRoutes(api fiber.Router) {
	// List connected streams
	api.Get("/streams", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"streams": h.GetStreamInfos(),
			"count":   h.StreamCount(),
		})
	})

	// Get hub stats
	api.Get("/stats", func(c *fiber.Ctx) error {
		return c.JSON(h.GetStats())
	})
}
