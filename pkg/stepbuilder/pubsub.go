package stepbuilder

import (
	"context"
	"fmt"
	"time"

	"github.com/udamir/testurio/pkg/component"
	"github.com/udamir/testurio/pkg/engineerr"
	"github.com/udamir/testurio/pkg/hook"
	"github.com/udamir/testurio/pkg/message"
	"github.com/udamir/testurio/pkg/transport"
)

// PublisherBuilder is the fluent surface bound to one Publisher component.
type PublisherBuilder struct {
	sink Sink
	comp *component.Publisher
}

// ForPublisher implements component.createStepBuilder for Publisher.
func ForPublisher(sink Sink, comp *component.Publisher) *PublisherBuilder {
	return &PublisherBuilder{sink: sink, comp: comp}
}

// Publish enqueues a publish step.
func (b *PublisherBuilder) Publish(topic string, payload any, opts transport.PublishOptions) {
	register(b.sink, Step{
		ComponentName: b.comp.Name(),
		Description:   "publish " + topic,
		Run: func(ctx context.Context) (any, error) {
			return nil, b.comp.Publish(ctx, topic, message.Message{Type: topic, Payload: payload}, opts)
		},
	})
}

// PublishBatch enqueues a batch-publish step.
func (b *PublisherBuilder) PublishBatch(topic string, payloads []any, opts transport.PublishOptions) {
	register(b.sink, Step{
		ComponentName: b.comp.Name(),
		Description:   "publishBatch " + topic,
		Run: func(ctx context.Context) (any, error) {
			msgs := make([]message.Message, len(payloads))
			for i, p := range payloads {
				msgs[i] = message.Message{Type: topic, Payload: p}
			}
			return nil, b.comp.PublishBatch(ctx, topic, msgs, opts)
		},
	})
}

// SubscriberBuilder is the fluent surface bound to one Subscriber component.
type SubscriberBuilder struct {
	sink Sink
	comp *component.Subscriber
}

// ForSubscriber implements component.createStepBuilder for Subscriber.
func ForSubscriber(sink Sink, comp *component.Subscriber) *SubscriberBuilder {
	return &SubscriberBuilder{sink: sink, comp: comp}
}

// Subscribe enqueues a subscribe step.
func (b *SubscriberBuilder) Subscribe(topic string) {
	register(b.sink, Step{
		ComponentName: b.comp.Name(),
		Description:   "subscribe " + topic,
		Run:           func(ctx context.Context) (any, error) { return nil, b.comp.Subscribe(ctx, topic) },
	})
}

// Unsubscribe enqueues an unsubscribe step.
func (b *SubscriberBuilder) Unsubscribe(topic string) {
	register(b.sink, Step{
		ComponentName: b.comp.Name(),
		Description:   "unsubscribe " + topic,
		Run:           func(ctx context.Context) (any, error) { return nil, b.comp.Unsubscribe(ctx, topic) },
	})
}

// OnMessage registers a persistent, non-blocking hook matched by topic name
// or a topic pattern (wildcard support is adapter-defined; the engine
// passes the string through unchanged).
func (b *SubscriberBuilder) OnMessage(topic string, onFired func(ctx context.Context, msg message.Message)) {
	b.comp.RegisterHook(&hook.Hook{
		ComponentName: b.comp.Name(),
		Phase:         b.sink.CurrentPhase(),
		Matcher:       hook.Matcher{Literal: topic},
		Persistent:    true,
		OnFired: func(result hook.HandlerChainResult) {
			if result.Err == nil && !result.Dropped && onFired != nil {
				onFired(context.Background(), result.Message)
			}
		},
	})
}

// WaitTopicBuilder is the chainable result of WaitMessage.
type WaitTopicBuilder struct {
	sink    Sink
	comp    *component.Subscriber
	topic   string
	timeout time.Duration
	signal  *oneShotSignal
}

// WaitMessage pre-registers a persistent-until-fired hook at build time.
func (b *SubscriberBuilder) WaitMessage(topic string, timeout time.Duration) *WaitTopicBuilder {
	signal := newOneShotSignal()
	b.comp.RegisterHook(&hook.Hook{
		ComponentName: b.comp.Name(),
		Phase:         b.sink.CurrentPhase(),
		Matcher:       hook.Matcher{Literal: topic},
		Persistent:    true,
		OnFired:       signal.fire,
	})
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &WaitTopicBuilder{sink: b.sink, comp: b.comp, topic: topic, timeout: timeout, signal: signal}
}

// Assert enqueues the blocking wait step.
func (w *WaitTopicBuilder) Assert(description string, predicate func(msg message.Message) bool) {
	register(w.sink, Step{
		ComponentName: w.comp.Name(),
		Description:   "waitMessage(" + w.topic + ").assert " + description,
		Timeout:       w.timeout,
		Run: func(ctx context.Context) (any, error) {
			result, err := w.signal.wait(ctx)
			if err != nil {
				return nil, &engineerr.TimeoutError{ComponentName: w.comp.Name(), Description: "topic " + w.topic, Timeout: w.timeout.String()}
			}
			if result.Err != nil {
				return nil, fmt.Errorf("waitMessage(%s): %w", w.topic, result.Err)
			}
			if !predicate(result.Message) {
				return nil, &hook.AssertionError{Description: description, Value: result.Message}
			}
			return result.Message, nil
		},
	})
}
