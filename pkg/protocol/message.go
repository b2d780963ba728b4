// Package protocol defines the JSON messages the ingest endpoint sends back
// to streaming clients. Clients are not required to understand them; any
// text reply is acceptable on the wire.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType identifies the type of WebSocket message
type MessageType string

const (
	// Endpoint → Client messages
	TypeHello MessageType = "hello" // Stream accepted
	TypeAck   MessageType = "ack"   // Chunk received and decoded
	TypeError MessageType = "error" // Chunk rejected
)

// Message is the base wrapper for all WebSocket messages
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, data any) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into the provided struct
func (m *Message) ParseData(v any) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("failed to parse message: missing type")
	}
	return &msg, nil
}

// HelloData is sent once when a stream is accepted
type HelloData struct {
	StreamID   string `json:"stream_id"`
	Encoding   string `json:"encoding"`    // "f32le-base64"
	SampleRate int    `json:"sample_rate"` // Informational; frames carry no rate
}

// AckData acknowledges one decoded chunk
type AckData struct {
	StreamID   string  `json:"stream_id"`
	Seq        int64   `json:"seq"`         // 1-based chunk number
	Samples    int     `json:"samples"`     // Samples in this chunk
	DurationMs float64 `json:"duration_ms"` // Samples / sample rate
	Peak       float32 `json:"peak"`        // Max |sample|, 0.0 to 1.0
}

// ErrorData reports a frame the endpoint could not decode
type ErrorData struct {
	StreamID string `json:"stream_id"`
	Seq      int64  `json:"seq"`
	Error    string `json:"error"`
}
