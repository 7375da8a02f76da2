// Package jsoncodec is Testurio's default codec: plain encoding/json, text
// wire format. Application code in this stack never reaches for a
// third-party JSON library (sonic/goccy only ever show up as gin's
// internal indirect dependencies), so the default codec follows suit.
package jsoncodec

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/udamir/testurio/pkg/codec"
)

const Name = "json"

// Codec is the default JSON codec. It is stateless and safe for concurrent use.
type Codec struct{}

// New returns the default JSON codec.
func New() *Codec { return &Codec{} }

func (c *Codec) Name() string { return Name }

func (c *Codec) WireFormat() codec.WireFormat { return codec.Text }

func (c *Codec) Encode(_ context.Context, data any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(data); err != nil {
		return nil, codec.NewEncodeError(Name, err, data)
	}
	// json.Encoder.Encode appends a trailing newline; trim it so Decode(Encode(x))
	// round-trips byte-for-byte for callers that compare wire bytes directly.
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func (c *Codec) Decode(_ context.Context, wire []byte) (any, error) {
	var v any
	dec := json.NewDecoder(bytes.NewReader(wire))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil, codec.NewDecodeError(Name, err)
	}
	return v, nil
}
