package stepbuilder

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udamir/testurio/pkg/component"
	"github.com/udamir/testurio/pkg/hook"
	"github.com/udamir/testurio/pkg/message"
)

// fakeSink is a minimal Sink that records registered steps, for unit testing
// step builders without a full TestCaseBuilder.
type fakeSink struct {
	phase hook.Phase
	steps []Step
}

func (s *fakeSink) RegisterStep(step Step)   { s.steps = append(s.steps, step) }
func (s *fakeSink) CurrentPhase() hook.Phase { return s.phase }

func newTestAsyncClient(t *testing.T) *component.AsyncClient {
	t.Helper()
	base := component.NewBase("client", component.ScopeTestCase)
	return &component.AsyncClient{Base: base}
}

func TestWaitEvent_EarlyArrivalIsNotLost(t *testing.T) {
	client := newTestAsyncClient(t)
	sink := &fakeSink{phase: hook.PhaseTest}
	b := ForAsyncClient(sink, client)

	wait := b.WaitEvent("pong", 50*time.Millisecond)
	wait.Assert("has seq 42", func(msg message.Message) bool {
		n, _ := msg.Payload.(int)
		return n == 42
	})
	require.Len(t, sink.steps, 1)

	// Simulate the message arriving before the step body executes: the
	// pre-registered hook must already be in client's registry.
	h := client.Hooks.FindFirstMatch(message.Message{Type: "pong", Payload: 42})
	require.NotNil(t, h, "WaitEvent must register its hook at build time")
	hook.RunChain(context.Background(), h, message.Message{Type: "pong", Payload: 42})

	result, err := sink.steps[0].Run(context.Background())
	require.NoError(t, err, "an early-arrived message must still satisfy the wait step")
	msg := result.(message.Message)
	assert.Equal(t, 42, msg.Payload)
}

func TestWaitEvent_TimesOutWithoutArrival(t *testing.T) {
	client := newTestAsyncClient(t)
	sink := &fakeSink{phase: hook.PhaseTest}
	b := ForAsyncClient(sink, client)

	b.WaitEvent("pong", 10*time.Millisecond).Assert("anything", func(message.Message) bool { return true })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := sink.steps[0].Run(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
}
