package stepbuilder

import (
	"context"

	"github.com/udamir/testurio/pkg/component"
	"github.com/udamir/testurio/pkg/hook"
)

// ProxyBuilder is the fluent surface bound to one Proxy component, tagging
// every registered hook with a direction so the proxy's two registries are
// never merged.
type ProxyBuilder struct {
	sink Sink
	comp *component.Proxy
}

// ForProxy implements component.createStepBuilder for Proxy.
func ForProxy(sink Sink, comp *component.Proxy) *ProxyBuilder {
	return &ProxyBuilder{sink: sink, comp: comp}
}

// OnRequest registers a downstream-direction mock reply, identical in shape
// to SyncServerBuilder.OnRequest but routed through the proxy's Downstream
// registry.
func (b *ProxyBuilder) OnRequest(operation string) *proxyExpectation {
	return &proxyExpectation{sink: b.sink, comp: b.comp, matcher: hook.Matcher{Literal: operation}, direction: "downstream"}
}

// OnUpstreamMessage registers an upstream-direction (target -> client) hook.
func (b *ProxyBuilder) OnUpstreamMessage(msgType string) *proxyExpectation {
	return &proxyExpectation{sink: b.sink, comp: b.comp, matcher: hook.Matcher{Literal: msgType}, direction: "upstream"}
}

type proxyExpectation struct {
	sink      Sink
	comp      *component.Proxy
	matcher   hook.Matcher
	direction string
}

// MockResponse registers the hook at build time, matching
// MockExpectation.MockResponse's contract but direction-tagged.
func (e *proxyExpectation) MockResponse(factory func(ctx context.Context, request any) (any, error)) {
	h := &hook.Hook{
		ComponentName: e.comp.Name(),
		Phase:         e.sink.CurrentPhase(),
		Matcher:       e.matcher,
		Direction:     e.direction,
		Handlers:      []hook.Handler{hook.MockReply(factory)},
	}
	e.comp.RegisterHook(h)
	register(e.sink, Step{
		ComponentName: e.comp.Name(),
		Description:   "proxy[" + e.direction + "].onRequest.mockResponse " + describeMatcher(e.matcher),
		Run:           func(ctx context.Context) (any, error) { return nil, nil },
	})
}

// Transform registers a hook that rewrites a matched message before it is
// forwarded, rather than short-circuiting with a mock reply.
func (e *proxyExpectation) Transform(fn func(ctx context.Context, value any) (any, error)) {
	h := &hook.Hook{
		ComponentName: e.comp.Name(),
		Phase:         e.sink.CurrentPhase(),
		Matcher:       e.matcher,
		Direction:     e.direction,
		Handlers:      []hook.Handler{hook.Transform("proxy transform", fn)},
	}
	e.comp.RegisterHook(h)
	register(e.sink, Step{
		ComponentName: e.comp.Name(),
		Description:   "proxy[" + e.direction + "].transform " + describeMatcher(e.matcher),
		Run:           func(ctx context.Context) (any, error) { return nil, nil },
	})
}

// Drop registers a hook dropping any matched message instead of forwarding
// it.
func (e *proxyExpectation) Drop() {
	h := &hook.Hook{
		ComponentName: e.comp.Name(),
		Phase:         e.sink.CurrentPhase(),
		Matcher:       e.matcher,
		Direction:     e.direction,
		Handlers:      []hook.Handler{hook.Drop()},
	}
	e.comp.RegisterHook(h)
	register(e.sink, Step{
		ComponentName: e.comp.Name(),
		Description:   "proxy[" + e.direction + "].drop " + describeMatcher(e.matcher),
		Run:           func(ctx context.Context) (any, error) { return nil, nil },
	})
}
