package component

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udamir/testurio/pkg/hook"
	"github.com/udamir/testurio/pkg/message"
)

func newTestProxy() (*Proxy, *fakeAsyncDriver, *fakeAsyncDriver) {
	server := &fakeAsyncDriver{}
	client := &fakeAsyncDriver{}
	p := NewProxy("proxy", server, client, message.Address{Port: 3101}, message.Address{Port: 3102})
	return p, server, client
}

func TestProxy_NoMatchingHookForwardsTransparently(t *testing.T) {
	p, _, client := newTestProxy()

	in := message.Message{Type: "getUser", Payload: map[string]any{"id": 1}}
	p.handleDownstream(context.Background(), in)

	require.Len(t, client.sent, 1, "an unmatched downstream message must forward to the target")
	assert.Equal(t, in.Type, client.sent[0].Type)
}

func TestProxy_MatchedHookTransformsBeforeForwarding(t *testing.T) {
	p, _, client := newTestProxy()

	p.RegisterHook(&hook.Hook{
		Matcher: hook.Matcher{Literal: "getUser"},
		Handlers: []hook.Handler{
			hook.Transform("", func(ctx context.Context, v any) (any, error) {
				return message.Message{Type: "getUser", Payload: map[string]any{"code": 200, "transformedBy": "proxy"}}, nil
			}),
		},
	})

	p.handleDownstream(context.Background(), message.Message{Type: "getUser"})

	require.Len(t, client.sent, 1)
	payload, ok := client.sent[0].Payload.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "proxy", payload["transformedBy"])
}

func TestProxy_MockReplyShortCircuitsWithoutCallingTarget(t *testing.T) {
	p, server, client := newTestProxy()

	p.RegisterHook(&hook.Hook{
		Matcher: hook.Matcher{Literal: "getUser"},
		Handlers: []hook.Handler{
			hook.MockReply(func(ctx context.Context, request any) (any, error) {
				return message.Message{Type: "getUser", Payload: map[string]any{"code": 200, "transformedBy": "proxy", "value": 100}}, nil
			}),
		},
	})

	p.handleDownstream(context.Background(), message.Message{Type: "getUser"})

	assert.Empty(t, client.sent, "a mockReply hook must short-circuit: the target is never called")
	require.Len(t, server.sent, 1, "the mocked reply must be answered directly to the downstream client")
	payload, ok := server.sent[0].Payload.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 100, payload["value"])
}

func TestProxy_DroppedHookNeverForwards(t *testing.T) {
	p, _, client := newTestProxy()

	p.RegisterHook(&hook.Hook{
		Matcher:  hook.Matcher{Literal: "getUser"},
		Handlers: []hook.Handler{hook.Drop()},
	})

	p.handleDownstream(context.Background(), message.Message{Type: "getUser"})

	assert.Empty(t, client.sent, "a matched hook that drops the message must never be forwarded")
}

func TestProxy_DownstreamAndUpstreamHooksAreIndependent(t *testing.T) {
	var downstreamHits, upstreamHits int
	p, _, _ := newTestProxy()

	p.RegisterHook(&hook.Hook{
		Direction: "downstream",
		Matcher:   hook.Matcher{Literal: "ping"},
		Handlers: []hook.Handler{
			hook.Transform("", func(ctx context.Context, v any) (any, error) { downstreamHits++; return v, nil }),
		},
	})
	p.RegisterHook(&hook.Hook{
		Direction: "upstream",
		Matcher:   hook.Matcher{Literal: "ping"},
		Handlers: []hook.Handler{
			hook.Transform("", func(ctx context.Context, v any) (any, error) { upstreamHits++; return v, nil }),
		},
	})

	p.handleDownstream(context.Background(), message.Message{Type: "ping"})
	assert.Equal(t, 1, downstreamHits)
	assert.Equal(t, 0, upstreamHits, "a downstream message must never fire an upstream-tagged hook")

	p.HandleUpstream(context.Background(), message.Message{Type: "ping"})
	assert.Equal(t, 1, upstreamHits)
	assert.Equal(t, 1, downstreamHits, "an upstream message must never fire a downstream-tagged hook")
}

func TestProxy_ForwardErrorIsRecordedAsUnhandled(t *testing.T) {
	p, _, client := newTestProxy()
	client.sendErr = errors.New("upstream connection refused")

	p.handleDownstream(context.Background(), message.Message{Type: "getUser"})

	errs := p.UnhandledErrors()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "upstream connection refused")
}

func TestProxy_ClearTestCaseHooksClearsBothDirectionsButKeepsPersistent(t *testing.T) {
	p, _, _ := newTestProxy()
	p.RegisterHook(&hook.Hook{Direction: "downstream", Matcher: hook.Matcher{Literal: "a"}})
	p.RegisterHook(&hook.Hook{Direction: "downstream", Matcher: hook.Matcher{Literal: "b"}, Persistent: true})
	p.RegisterHook(&hook.Hook{Direction: "upstream", Matcher: hook.Matcher{Literal: "c"}})

	p.ClearTestCaseHooks()

	assert.Equal(t, 1, p.Downstream.Len())
	assert.Equal(t, 0, p.Upstream.Len())
}

func TestProxy_StartWiresServerAndDialsTarget(t *testing.T) {
	p, server, client := newTestProxy()

	require.NoError(t, p.Start(context.Background()))
	assert.True(t, server.serverStarted, "Start must bind serverDriver to the listen address")
	assert.True(t, client.clientCreated, "Start must dial clientDriver to the target address")
}

func TestProxy_UpstreamMessageFromTargetForwardsToClientDriver(t *testing.T) {
	p, server, client := newTestProxy()

	require.NoError(t, p.Start(context.Background()))
	require.NotNil(t, client.onMessage, "CreateClient must be given HandleUpstream as its onMessage callback")

	client.onMessage(context.Background(), message.Message{Type: "notify", Payload: map[string]any{"seq": 1}})

	require.Len(t, server.sent, 1, "an upstream message with no matching hook must forward to the downstream client")
	assert.Equal(t, "notify", server.sent[0].Type)
}

func TestProxy_StopClosesClientThenServer(t *testing.T) {
	p, server, client := newTestProxy()

	require.NoError(t, p.Start(context.Background()))
	require.NoError(t, p.Stop(context.Background()))
	assert.True(t, client.clientClosed)
	assert.True(t, server.serverStopped)
}
