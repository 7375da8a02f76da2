package adapter_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udamir/testurio/pkg/adapter"
)

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := adapter.NewRegistry()
	builder := func() string { return "http-driver" }

	require.NoError(t, r.Register("http", builder))

	got, ok := r.Get("http")
	require.True(t, ok)
	fn, ok := got.(func() string)
	require.True(t, ok)
	assert.Equal(t, "http-driver", fn())
}

func TestRegistry_DuplicateNameFails(t *testing.T) {
	r := adapter.NewRegistry()
	require.NoError(t, r.Register("kafka", func() {}))

	err := r.Register("kafka", func() {})
	require.Error(t, err)
}

func TestRegistry_GetUnknownNameReturnsFalse(t *testing.T) {
	r := adapter.NewRegistry()
	_, ok := r.Get("unknown")
	assert.False(t, ok)
}

func TestRegistry_NamesListsEveryRegistered(t *testing.T) {
	r := adapter.NewRegistry()
	require.NoError(t, r.Register("http", func() {}))
	require.NoError(t, r.Register("websocket", func() {}))

	assert.ElementsMatch(t, []string{"http", "websocket"}, r.Names())
}

func TestDefaultRegistry_GetUnknownNameReturnsFalse(t *testing.T) {
	// pkg/adapter itself imports no concrete adapters, so Default may be
	// empty when only this package is under test in isolation; this just
	// asserts Get on an unregistered name behaves consistently against the
	// shared singleton too.
	_, ok := adapter.Default.Get("does-not-exist")
	assert.False(t, ok)
}
