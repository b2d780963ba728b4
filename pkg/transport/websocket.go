package transport

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/oauth2"

	"github.com/teslashibe/go-audiostream/internal/httpc"
)

const closeFrameTimeout = time.Second

// Option configures a WebSocket transport.
type Option func(*WebSocket)

// WithHandshakeTimeout bounds the opening handshake.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(w *WebSocket) {
		w.dialer.HandshakeTimeout = d
	}
}

// WithWriteTimeout sets a per-message write deadline. Zero disables it.
func WithWriteTimeout(d time.Duration) Option {
	return func(w *WebSocket) {
		w.writeTimeout = d
	}
}

// WithBearerToken authenticates the handshake with a static bearer token.
// An empty token leaves the handshake unauthenticated.
func WithBearerToken(token string) Option {
	return func(w *WebSocket) {
		if token == "" {
			w.tokens = nil
			return
		}
		w.tokens = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
	}
}

// WithTokenSource authenticates the handshake with tokens from ts.
func WithTokenSource(ts oauth2.TokenSource) Option {
	return func(w *WebSocket) {
		w.tokens = ts
	}
}

// WithHeader adds a header to the opening handshake.
func WithHeader(key, value string) Option {
	return func(w *WebSocket) {
		w.header.Add(key, value)
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *WebSocket) {
		w.logger = logger
	}
}

// WebSocket is a Transport over a gorilla/websocket client connection.
// Messages are sent as text frames.
type WebSocket struct {
	dialer       *websocket.Dialer
	header       http.Header
	tokens       oauth2.TokenSource
	writeTimeout time.Duration
	logger       *slog.Logger

	connMu sync.Mutex
	conn   *websocket.Conn

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    atomic.Bool
}

var _ Transport = (*WebSocket)(nil)

// NewWebSocket creates an unconnected WebSocket transport.
func NewWebSocket(opts ...Option) *WebSocket {
	w := &WebSocket{
		dialer: &websocket.Dialer{
			Proxy:            httpc.Proxy,
			NetDialContext:   httpc.NetDialer().DialContext,
			HandshakeTimeout: httpc.DefaultHandshakeTimeout,
		},
		header: http.Header{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	w.logger = w.logger.With("component", "transport.websocket")
	return w
}

// Connect performs the WebSocket handshake against url.
func (w *WebSocket) Connect(ctx context.Context, url string) error {
	if w.closed.Load() {
		return &ConnectionError{URL: url, Err: ErrClosed}
	}

	header := w.header.Clone()
	if w.tokens != nil {
		tok, err := w.tokens.Token()
		if err != nil {
			return &ConnectionError{URL: url, Err: err}
		}
		header.Set("Authorization", tok.Type()+" "+tok.AccessToken)
	}

	conn, resp, err := w.dialer.DialContext(ctx, url, header)
	if err != nil {
		cerr := &ConnectionError{URL: url, Err: err}
		if resp != nil {
			cerr.StatusCode = resp.StatusCode
		}
		return cerr
	}

	w.connMu.Lock()
	if w.closed.Load() {
		w.connMu.Unlock()
		conn.Close()
		return &ConnectionError{URL: url, Err: ErrClosed}
	}
	w.conn = conn
	w.connMu.Unlock()

	w.logger.Debug("websocket connected", "url", url)
	return nil
}

func (w *WebSocket) current() *websocket.Conn {
	w.connMu.Lock()
	defer w.connMu.Unlock()
	return w.conn
}

// Send writes text as a single text frame.
func (w *WebSocket) Send(text string) error {
	if w.closed.Load() {
		return &SendError{Err: ErrClosed}
	}
	conn := w.current()
	if conn == nil {
		return &SendError{Err: ErrNotConnected}
	}

	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	if w.writeTimeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(w.writeTimeout))
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
		return &SendError{Err: err}
	}
	return nil
}

// Recv blocks until a data frame arrives. Binary frames are returned as-is.
func (w *WebSocket) Recv() (string, error) {
	conn := w.current()
	if conn == nil {
		if w.closed.Load() {
			return "", &RecvError{Err: ErrClosed}
		}
		return "", &RecvError{Err: ErrNotConnected}
	}

	_, data, err := conn.ReadMessage()
	if err != nil {
		if w.closed.Load() {
			return "", &RecvError{Err: errors.Join(ErrClosed, err)}
		}
		return "", &RecvError{Err: err}
	}
	return string(data), nil
}

// Close sends a normal-closure frame on a best-effort basis and closes the
// socket, which unblocks a pending Recv. Only the first call has any effect.
func (w *WebSocket) Close() error {
	w.closeOnce.Do(func() {
		w.connMu.Lock()
		w.closed.Store(true)
		conn := w.conn
		w.connMu.Unlock()

		if conn == nil {
			return
		}

		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeFrameTimeout)); err != nil {
			w.logger.Debug("close frame not sent", "error", err)
		}
		if err := conn.Close(); err != nil {
			w.logger.Debug("close socket", "error", err)
		}
	})
	return nil
}

// IsPeerClosed reports whether err means the endpoint closed the connection
// cleanly (normal closure or going away).
func IsPeerClosed(err error) bool {
	var ce *websocket.CloseError
	if !errors.As(err, &ce) {
		return false
	}
	return ce.Code == websocket.CloseNormalClosure || ce.Code == websocket.CloseGoingAway
}

// IsLocalClose reports whether err was caused by Close on this side.
func IsLocalClose(err error) bool {
	return errors.Is(err, ErrClosed) || errors.Is(err, net.ErrClosed)
}
