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

// AsyncClientBuilder is the fluent surface bound to one AsyncClient
// component.
type AsyncClientBuilder struct {
	sink Sink
	comp *component.AsyncClient
}

// ForAsyncClient implements component.createStepBuilder for AsyncClient.
func ForAsyncClient(sink Sink, comp *component.AsyncClient) *AsyncClientBuilder {
	return &AsyncClientBuilder{sink: sink, comp: comp}
}

// SendMessage enqueues a non-blocking send step.
func (b *AsyncClientBuilder) SendMessage(msgType string, payload any) {
	register(b.sink, Step{
		ComponentName: b.comp.Name(),
		Description:   "sendMessage " + msgType,
		Run: func(ctx context.Context) (any, error) {
			return nil, b.comp.SendMessage(ctx, message.Message{Type: msgType, Payload: payload})
		},
	})
}

// WaitEventBuilder is the chainable result of WaitEvent, letting the caller
// add .Assert(...).
type WaitEventBuilder struct {
	sink        Sink
	comp        *component.AsyncClient
	msgType     string
	timeout     time.Duration
	signal      *oneShotSignal
}

// WaitEvent pre-registers a persistent-until-fired hook at build time, before
// the blocking step runs, so a message arriving between registration and
// step execution is not lost.
func (b *AsyncClientBuilder) WaitEvent(msgType string, timeout time.Duration) *WaitEventBuilder {
	signal := newOneShotSignal()
	h := &hook.Hook{
		ComponentName: b.comp.Name(),
		Phase:         b.sink.CurrentPhase(),
		Matcher:       hook.Matcher{Literal: msgType},
		Persistent:    true,
		OnFired:       signal.fire,
	}
	b.comp.RegisterHook(h)
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &WaitEventBuilder{sink: b.sink, comp: b.comp, msgType: msgType, timeout: timeout, signal: signal}
}

// Assert enqueues the blocking wait step: it awaits the pre-registered
// hook's one-shot signal (already fired or not) and asserts predicate over
// the delivered message.
func (w *WaitEventBuilder) Assert(description string, predicate func(msg message.Message) bool) {
	register(w.sink, Step{
		ComponentName: w.comp.Name(),
		Description:   "waitEvent(" + w.msgType + ").assert " + description,
		Timeout:       w.timeout,
		Run: func(ctx context.Context) (any, error) {
			result, err := w.signal.wait(ctx)
			if err != nil {
				return nil, &engineerr.TimeoutError{ComponentName: w.comp.Name(), Description: "event " + w.msgType, Timeout: w.timeout.String()}
			}
			if result.Err != nil {
				return nil, fmt.Errorf("waitEvent(%s): %w", w.msgType, result.Err)
			}
			if !predicate(result.Message) {
				return nil, &hook.AssertionError{Description: description, Value: result.Message}
			}
			return result.Message, nil
		},
	})
}

// OnEvent registers a persistent, non-blocking hook.
func (b *AsyncClientBuilder) OnEvent(msgType string, onFired func(ctx context.Context, msg message.Message)) {
	b.comp.RegisterHook(&hook.Hook{
		ComponentName: b.comp.Name(),
		Phase:         b.sink.CurrentPhase(),
		Matcher:       hook.Matcher{Literal: msgType},
		Persistent:    true,
		OnFired: func(result hook.HandlerChainResult) {
			if result.Err == nil && !result.Dropped {
				onFired(context.Background(), result.Message)
			}
		},
	})
}

// Disconnect enqueues a step closing the client connection.
func (b *AsyncClientBuilder) Disconnect() {
	register(b.sink, Step{
		ComponentName: b.comp.Name(),
		Description:   "disconnect",
		Run:           func(ctx context.Context) (any, error) { return nil, b.comp.Stop(ctx) },
	})
}
