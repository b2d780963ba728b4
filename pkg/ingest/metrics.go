package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains the Prometheus metrics for one ingest hub
type Metrics struct {
	// Stream metrics
	ActiveStreams  prometheus.Gauge
	StreamsOpened  prometheus.Counter
	StreamsClosed  prometheus.Counter
	StreamDuration prometheus.Histogram

	// Chunk metrics
	ChunksReceived  prometheus.Counter
	DecodeErrors    prometheus.Counter
	SamplesReceived prometheus.Counter
	ChunkSamples    prometheus.Histogram
	ChunkPeak       prometheus.Histogram
}

// NewMetrics creates the hub metrics and registers them with reg. Each hub
// owns its registry so several hubs can live in one process.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ActiveStreams: f.NewGauge(prometheus.GaugeOpts{
			Name: "ingest_active_streams",
			Help: "Current number of connected audio streams",
		}),
		StreamsOpened: f.NewCounter(prometheus.CounterOpts{
			Name: "ingest_streams_opened_total",
			Help: "Total number of streams accepted",
		}),
		StreamsClosed: f.NewCounter(prometheus.CounterOpts{
			Name: "ingest_streams_closed_total",
			Help: "Total number of streams that disconnected",
		}),
		StreamDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "ingest_stream_duration_seconds",
			Help:    "Wall-clock lifetime of a stream connection",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		ChunksReceived: f.NewCounter(prometheus.CounterOpts{
			Name: "ingest_chunks_received_total",
			Help: "Total number of chunks decoded",
		}),
		DecodeErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "ingest_decode_errors_total",
			Help: "Total number of frames that could not be decoded",
		}),
		SamplesReceived: f.NewCounter(prometheus.CounterOpts{
			Name: "ingest_samples_received_total",
			Help: "Total number of audio samples decoded",
		}),
		ChunkSamples: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "ingest_chunk_samples",
			Help:    "Samples per decoded chunk",
			Buckets: prometheus.ExponentialBuckets(160, 2, 10),
		}),
		ChunkPeak: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "ingest_chunk_peak",
			Help:    "Peak absolute amplitude per chunk",
			Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
		}),
	}
}
