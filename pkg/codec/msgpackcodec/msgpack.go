// Package msgpackcodec is a binary Codec built on github.com/tinylib/msgp's
// runtime helpers, demonstrating the codec.Binary wire format branch.
package msgpackcodec

import (
	"context"

	"github.com/tinylib/msgp/msgp"

	"github.com/udamir/testurio/pkg/codec"
)

const Name = "msgpack"

// Codec encodes/decodes generic values as MessagePack bytes. Unlike a
// msgp.Marshaler-based codec generated for a concrete type, this one round-
// trips the dynamically-typed values Testurio's Message.Payload holds by
// delegating to msgp's raw object reader/writer, matching how a scenario
// author would bridge an MQ adapter that already speaks MessagePack on the
// wire without generating per-type marshalers.
type Codec struct{}

func New() *Codec { return &Codec{} }

func (c *Codec) Name() string { return Name }

func (c *Codec) WireFormat() codec.WireFormat { return codec.Binary }

func (c *Codec) Encode(_ context.Context, data any) ([]byte, error) {
	var buf []byte
	buf, err := msgp.AppendIntf(buf, data)
	if err != nil {
		return nil, codec.NewEncodeError(Name, err, data)
	}
	return buf, nil
}

func (c *Codec) Decode(_ context.Context, wire []byte) (any, error) {
	v, _, err := msgp.ReadIntfBytes(wire)
	if err != nil {
		return nil, codec.NewDecodeError(Name, err)
	}
	return v, nil
}
