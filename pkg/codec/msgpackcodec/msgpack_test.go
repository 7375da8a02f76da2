package msgpackcodec_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udamir/testurio/pkg/codec"
	"github.com/udamir/testurio/pkg/codec/msgpackcodec"
)

func TestCodec_NameAndWireFormat(t *testing.T) {
	c := msgpackcodec.New()
	assert.Equal(t, "msgpack", c.Name())
	assert.Equal(t, codec.Binary, c.WireFormat())
}

func TestCodec_RoundTrip(t *testing.T) {
	c := msgpackcodec.New()
	v := map[string]any{
		"id":   int64(1),
		"name": "Alice",
		"tags": []any{"a", "b"},
	}

	wire, err := c.Encode(context.Background(), v)
	require.NoError(t, err)
	require.NotEmpty(t, wire)

	got, err := c.Decode(context.Background(), wire)
	require.NoError(t, err)
	assert.Equal(t, v, got)
}

func TestCodec_DecodeInvalidWireReturnsCodecError(t *testing.T) {
	c := msgpackcodec.New()
	_, err := c.Decode(context.Background(), []byte{0xc1}) // reserved/never-used msgpack byte
	require.Error(t, err)

	var codecErr *codec.Error
	require.ErrorAs(t, err, &codecErr)
	assert.Equal(t, codec.OpDecode, codecErr.Op)
}
