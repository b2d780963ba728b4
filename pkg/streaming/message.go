package streaming

import "encoding/json"

// Message is one inbound message from the endpoint.
type Message struct {
	// Raw is the text exactly as received.
	Raw string

	// Value holds the decoded JSON when Structured is true.
	Value any

	// Structured reports whether Raw parsed as JSON.
	Structured bool
}

// Classify parses raw as JSON when possible. Anything else is plain text;
// no schema is enforced.
func Classify(raw string) Message {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return Message{Raw: raw}
	}
	return Message{Raw: raw, Value: v, Structured: true}
}
