package stepbuilder

import (
	"context"
	"fmt"
	"time"

	"github.com/udamir/testurio/pkg/component"
	"github.com/udamir/testurio/pkg/engineerr"
	"github.com/udamir/testurio/pkg/hook"
	"github.com/udamir/testurio/pkg/message"
)

// AsyncServerBuilder is the fluent surface bound to one AsyncServer
// component — the mirror of AsyncClientBuilder on the listening side.
type AsyncServerBuilder struct {
	sink Sink
	comp *component.AsyncServer
}

// ForAsyncServer implements component.createStepBuilder for AsyncServer.
func ForAsyncServer(sink Sink, comp *component.AsyncServer) *AsyncServerBuilder {
	return &AsyncServerBuilder{sink: sink, comp: comp}
}

// OnMessage registers a persistent, non-blocking hook.
func (b *AsyncServerBuilder) OnMessage(msgType string, onFired func(ctx context.Context, msg message.Message)) {
	b.comp.RegisterHook(&hook.Hook{
		ComponentName: b.comp.Name(),
		Phase:         b.sink.CurrentPhase(),
		Matcher:       hook.Matcher{Literal: msgType},
		Persistent:    true,
		OnFired: func(result hook.HandlerChainResult) {
			if result.Err == nil && !result.Dropped && onFired != nil {
				onFired(context.Background(), result.Message)
			}
		},
	})
}

// MockEvent registers a hook producing a reactive reply whenever msgType is
// received: the factory's output is pushed back on the stream as a reply.
func (b *AsyncServerBuilder) MockEvent(msgType, replyType string, factory func(ctx context.Context, trigger any) (any, error)) {
	h := &hook.Hook{
		ComponentName: b.comp.Name(),
		Phase:         b.sink.CurrentPhase(),
		Matcher:       hook.Matcher{Literal: msgType},
		Persistent:    true,
		Handlers: []hook.Handler{hook.MockEvent(msgType, func(ctx context.Context, trigger any) (any, error) {
			payload, err := factory(ctx, trigger)
			if err != nil {
				return nil, err
			}
			return message.Message{Type: replyType, Payload: payload}, nil
		})},
	}
	b.comp.RegisterHook(h)
	register(b.sink, Step{
		ComponentName: b.comp.Name(),
		Description:   "onMessage(" + msgType + ").mockEvent " + replyType,
		Run:           func(ctx context.Context) (any, error) { return nil, nil },
	})
}

// WaitMessageBuilder is the chainable result of WaitMessage.
type WaitMessageBuilder struct {
	sink    Sink
	comp    *component.AsyncServer
	msgType string
	timeout time.Duration
	signal  *oneShotSignal
}

// WaitMessage pre-registers a persistent-until-fired hook at build time.
func (b *AsyncServerBuilder) WaitMessage(msgType string, timeout time.Duration) *WaitMessageBuilder {
	signal := newOneShotSignal()
	b.comp.RegisterHook(&hook.Hook{
		ComponentName: b.comp.Name(),
		Phase:         b.sink.CurrentPhase(),
		Matcher:       hook.Matcher{Literal: msgType},
		Persistent:    true,
		OnFired:       signal.fire,
	})
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &WaitMessageBuilder{sink: b.sink, comp: b.comp, msgType: msgType, timeout: timeout, signal: signal}
}

// Assert enqueues the blocking wait step.
func (w *WaitMessageBuilder) Assert(description string, predicate func(msg message.Message) bool) {
	register(w.sink, Step{
		ComponentName: w.comp.Name(),
		Description:   "waitMessage(" + w.msgType + ").assert " + description,
		Timeout:       w.timeout,
		Run: func(ctx context.Context) (any, error) {
			result, err := w.signal.wait(ctx)
			if err != nil {
				return nil, &engineerr.TimeoutError{ComponentName: w.comp.Name(), Description: "message " + w.msgType, Timeout: w.timeout.String()}
			}
			if result.Err != nil {
				return nil, fmt.Errorf("waitMessage(%s): %w", w.msgType, result.Err)
			}
			if !predicate(result.Message) {
				return nil, &hook.AssertionError{Description: description, Value: result.Message}
			}
			return result.Message, nil
		},
	})
}
