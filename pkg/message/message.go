// Package message defines the wire-agnostic envelope Testurio components and
// adapters exchange. It is the only shape the engine knows about; everything
// protocol-specific lives behind the transport.Driver boundary.
package message

import "github.com/google/uuid"

// Address identifies a network endpoint a transport driver listens on or
// connects to.
type Address struct {
	Host string
	Port int
	Path string
}

// Message is the uniform envelope every component and hook operates on,
// regardless of the underlying transport.
type Message struct {
	Type     string
	Payload  any
	TraceID  string
	Metadata map[string]any
}

// NewTraceID generates a new opaque trace identifier used to correlate a
// sync request with its response, and to thread mock replies through proxies.
func NewTraceID() string {
	return uuid.New().String()
}

// WithTraceID returns a copy of m with TraceID set, generating one if empty.
func (m Message) WithTraceID(traceID string) Message {
	if traceID == "" {
		traceID = NewTraceID()
	}
	m.TraceID = traceID
	return m
}

// Meta returns m.Metadata[key], or nil if the message carries no metadata map
// or the key is absent.
func (m Message) Meta(key string) any {
	if m.Metadata == nil {
		return nil
	}
	return m.Metadata[key]
}
