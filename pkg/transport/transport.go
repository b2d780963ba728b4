// Package transport defines the full-duplex text message connection used to
// stream audio chunks and receive endpoint responses, along with its
// WebSocket implementation.
package transport

import "context"

// Transport is a message-oriented, full-duplex connection.
//
// Send and Recv may be called concurrently from different goroutines, but
// each must only be called from one goroutine at a time. Close may be called
// from any goroutine, any number of times; it must cause a blocked Recv to
// return an error promptly.
type Transport interface {
	// Connect dials url. Failures are returned as *ConnectionError.
	Connect(ctx context.Context, url string) error

	// Send writes one text message. Failures are returned as *SendError.
	Send(text string) error

	// Recv blocks for the next message. Failures are returned as *RecvError.
	Recv() (string, error)

	// Close tears down the connection. It is idempotent and never fails.
	Close() error
}
