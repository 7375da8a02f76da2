package stepbuilder

import (
	"context"
	"time"

	"github.com/udamir/testurio/pkg/component"
	"github.com/udamir/testurio/pkg/hook"
	"github.com/udamir/testurio/pkg/message"
)

// SyncServerBuilder is the fluent surface bound to one SyncServer component
// and one TestCaseBuilder.
type SyncServerBuilder struct {
	sink Sink
	comp *component.SyncServer
}

// ForSyncServer implements component.createStepBuilder for SyncServer.
func ForSyncServer(sink Sink, comp *component.SyncServer) *SyncServerBuilder {
	return &SyncServerBuilder{sink: sink, comp: comp}
}

// MockExpectation is the chainable builder returned by OnRequest, exposing
// .Delay(ms).MockResponse(fn).
type MockExpectation struct {
	sink           Sink
	comp           *component.SyncServer
	matcher        hook.Matcher
	payloadMatcher *hook.PayloadMatcher
	delay          time.Duration
}

// OnRequest matches inbound requests. matcherData, when given, is the whole
// match: every key must equal the message's transport-specific routing
// field (httpadapter checks "method"/"path" in msg.Metadata), and operation
// is not compared. With no matcherData, operation is matched as the literal
// message type, which fits transports (gRPC, TCP) whose msg.Type already
// names the operation directly.
func (b *SyncServerBuilder) OnRequest(operation string, matcherData map[string]any) *MockExpectation {
	if len(matcherData) == 0 {
		return &MockExpectation{sink: b.sink, comp: b.comp, matcher: hook.Matcher{Literal: operation}}
	}
	predicate := func(msgType string, payload any) bool {
		return true
	}
	return &MockExpectation{
		sink: b.sink, comp: b.comp,
		matcher: hook.Matcher{Predicate: predicate},
		payloadMatcher: &hook.PayloadMatcher{Kind: hook.PayloadMatchFunc, Fn: func(msg message.Message) bool {
			for k, v := range matcherData {
				if msg.Meta(k) != v {
					return false
				}
			}
			return true
		}},
	}
}

// OnRequestMatching matches inbound requests with a predicate over type and
// payload instead of a literal operation name.
func (b *SyncServerBuilder) OnRequestMatching(predicate func(msgType string, payload any) bool) *MockExpectation {
	return &MockExpectation{sink: b.sink, comp: b.comp, matcher: hook.Matcher{Predicate: predicate}}
}

// Delay adds a fixed delay before the mock response factory runs, useful for
// exercising a client's own timeout handling.
func (m *MockExpectation) Delay(d time.Duration) *MockExpectation {
	m.delay = d
	return m
}

// MockResponse registers the hook at build time so replies are available the instant the
// server starts, and enqueues a no-op registration step so the expectation
// shows up in the step list like any other.
func (m *MockExpectation) MockResponse(factory func(ctx context.Context, request any) (any, error)) {
	h := &hook.Hook{
		ComponentName:  m.comp.Name(),
		Phase:          m.sink.CurrentPhase(),
		Matcher:        m.matcher,
		PayloadMatcher: m.payloadMatcher,
		Handlers: []hook.Handler{hook.MockReply(func(ctx context.Context, request any) (any, error) {
			if m.delay > 0 {
				select {
				case <-time.After(m.delay):
				case <-ctx.Done():
					return nil, ctx.Err()
				}
			}
			return factory(ctx, request)
		})},
	}
	m.comp.RegisterHook(h)
	register(m.sink, Step{
		ComponentName: m.comp.Name(),
		Description:   "onRequest.mockResponse " + describeMatcher(m.matcher),
		Run:           func(ctx context.Context) (any, error) { return nil, nil },
	})
}

func describeMatcher(m hook.Matcher) string {
	if m.Literal != "" {
		return m.Literal
	}
	return "<predicate>"
}
