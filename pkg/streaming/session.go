// Package streaming drives one audio stream over one transport connection.
//
// A Session runs two goroutines against the connection: the send duty reads
// chunks from a Source, encodes them and sends them on a real-time cadence,
// while the receive duty logs whatever the endpoint sends back. Either duty
// finishing (or the caller's context ending) requests shutdown, which closes
// the transport and unblocks the other duty.
package streaming

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-audiostream/pkg/chunkcodec"
	"github.com/teslashibe/go-audiostream/pkg/transport"
)

// Source is a chunked audio source. *audiosource.Source implements it.
type Source interface {
	Chunks() iter.Seq2[[]int16, error]
	TotalChunks() int
	ChunkDuration() time.Duration
}

// State is the lifecycle phase of a Session.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateRunning
	StateDraining
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Stats is a snapshot of session counters.
type Stats struct {
	SessionID        string `json:"session_id"`
	State            string `json:"state"`
	ChunksSent       int64  `json:"chunks_sent"`
	MessagesReceived int64  `json:"messages_received"`
}

// Session streams one Source to one endpoint. A Session runs once.
type Session struct {
	id  string
	src Source
	tr  transport.Transport
	url string
	cfg *Config
	log *slog.Logger

	state atomic.Int32
	ran   atomic.Bool

	// shutdown is the only state shared by the two duties.
	shutdown atomic.Bool
	done     chan struct{}
	stopOnce sync.Once

	sent     atomic.Int64
	received atomic.Int64
}

// NewSession creates a session that will stream src to url over tr.
func NewSession(src Source, tr transport.Transport, url string, opts ...Option) *Session {
	cfg := DefaultConfig()
	cfg.Apply(opts...)
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	id := uuid.NewString()
	return &Session{
		id:   id,
		src:  src,
		tr:   tr,
		url:  url,
		cfg:  cfg,
		log:  cfg.Logger.With("component", "streaming.session", "session_id", id),
		done: make(chan struct{}),
	}
}

// ID returns the session identifier attached to every log record.
func (s *Session) ID() string {
	return s.id
}

// State returns the current lifecycle phase.
func (s *Session) State() State {
	return State(s.state.Load())
}

// ShutdownRequested reports whether shutdown has been requested.
func (s *Session) ShutdownRequested() bool {
	return s.shutdown.Load()
}

// Stats returns a snapshot of the session counters.
func (s *Session) Stats() Stats {
	return Stats{
		SessionID:        s.id,
		State:            s.State().String(),
		ChunksSent:       s.sent.Load(),
		MessagesReceived: s.received.Load(),
	}
}

// Run connects, streams every chunk, and returns once both duties have
// exited. Cancelling ctx is a graceful stop and is not an error. Run returns
// a non-nil error only when the connection cannot be established; failures
// after that are logged.
func (s *Session) Run(ctx context.Context) error {
	if s.ran.Swap(true) {
		return ErrAlreadyRun
	}
	defer func() {
		s.Shutdown()
		s.state.Store(int32(StateClosed))
		s.log.Debug("session closed", "chunks_sent", s.sent.Load(), "messages_received", s.received.Load())
	}()

	s.state.CompareAndSwap(int32(StateIdle), int32(StateConnecting))
	if err := s.tr.Connect(ctx, s.url); err != nil {
		s.log.Error("connection failed", "url", s.url, "error", err)
		return err
	}
	s.log.Info("connected", "url", s.url)
	s.state.CompareAndSwap(int32(StateConnecting), int32(StateRunning))

	stop := context.AfterFunc(ctx, func() {
		s.log.Info("stop requested", "cause", context.Cause(ctx))
		s.Shutdown()
	})
	defer stop()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.sendLoop()
	}()
	go func() {
		defer wg.Done()
		s.receiveLoop()
	}()
	wg.Wait()

	return nil
}

// Shutdown sets the shutdown flag and closes the transport. It is safe to
// call from any goroutine, any number of times; only the first call has an
// effect.
func (s *Session) Shutdown() {
	s.stopOnce.Do(func() {
		s.log.Info("shutting down")
		s.shutdown.Store(true)
		close(s.done)

		for {
			cur := s.state.Load()
			if State(cur) == StateClosed || s.state.CompareAndSwap(cur, int32(StateDraining)) {
				break
			}
		}

		if err := s.tr.Close(); err != nil {
			s.log.Debug("close transport", "error", err)
		}
	})
}

// drain is called by a duty on exit.
func (s *Session) drain(reason string) {
	if !s.shutdown.Load() {
		s.log.Debug("draining", "reason", reason)
	}
	s.Shutdown()
}

func (s *Session) sendLoop() {
	defer s.drain("send duty exited")

	prog := newProgress(s.src.TotalChunks())
	interval := s.src.ChunkDuration()
	start := time.Now()

	for chunk, err := range s.src.Chunks() {
		if err != nil {
			s.log.Error("error processing audio", "error", err)
			return
		}
		if s.shutdown.Load() {
			return
		}

		if err := s.tr.Send(chunkcodec.Encode(chunk)); err != nil {
			if s.shutdown.Load() {
				s.log.Debug("send aborted by shutdown", "error", err)
			} else {
				s.log.Error("error sending chunk", "chunk", s.sent.Load()+1, "error", err)
			}
			return
		}
		n := s.sent.Add(1)

		if pct, ok := prog.advance(); ok {
			s.log.Info("processing progress",
				"percent", fmt.Sprintf("%.1f", pct),
				"processed", prog.processed,
				"total", prog.total)
		}

		if !s.pause(start, n, interval) {
			return
		}
	}

	s.log.Info("reached end of audio file", "chunks_sent", s.sent.Load())
}

// pause waits before the next send. It returns false if shutdown was
// requested while waiting.
func (s *Session) pause(start time.Time, sent int64, interval time.Duration) bool {
	wait := interval
	if s.cfg.Pacing == PacingDeadline {
		wait = time.Until(start.Add(time.Duration(sent) * interval))
	}
	if wait <= 0 {
		return !s.shutdown.Load()
	}

	t := time.NewTimer(wait)
	defer t.Stop()

	select {
	case <-t.C:
		return true
	case <-s.done:
		return false
	}
}

func (s *Session) receiveLoop() {
	defer s.drain("receive duty exited")

	for !s.shutdown.Load() {
		raw, err := s.tr.Recv()
		if err != nil {
			switch {
			case s.shutdown.Load():
				// Transport is being torn down.
			case transport.IsPeerClosed(err):
				s.log.Info("server closed connection", "error", err)
			default:
				s.log.Error("error receiving message", "error", err)
			}
			return
		}
		s.received.Add(1)

		msg := Classify(raw)
		if msg.Structured {
			s.log.Info("server response", "response", msg.Value)
		} else {
			s.log.Info("server message", "message", msg.Raw)
		}

		if s.cfg.OnMessage != nil {
			s.cfg.OnMessage(msg)
		}
	}
}
