package transport

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is returned by Send and Recv before Connect succeeds.
	ErrNotConnected = errors.New("transport: not connected")

	// ErrClosed is returned once Close has been called.
	ErrClosed = errors.New("transport: closed")
)

// ConnectionError reports a failure to establish the connection.
type ConnectionError struct {
	// URL is the endpoint that was dialed.
	URL string

	// StatusCode is the HTTP status of a rejected handshake, or 0.
	StatusCode int

	Err error
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transport: connect %s (status %d): %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("transport: connect %s: %v", e.URL, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// SendError reports a failed send on an established connection.
type SendError struct {
	Err error
}

// Error implements the error interface.
func (e *SendError) Error() string {
	return fmt.Sprintf("transport: send: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *SendError) Unwrap() error {
	return e.Err
}

// RecvError reports a failed receive, including one caused by a concurrent Close.
type RecvError struct {
	Err error
}

// Error implements the error interface.
func (e *RecvError) Error() string {
	return fmt.Sprintf("transport: recv: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *RecvError) Unwrap() error {
	return e.Err
}
