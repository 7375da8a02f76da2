package component

import (
	"context"
	"fmt"
	"sync"

	"github.com/udamir/testurio/pkg/hook"
	"github.com/udamir/testurio/pkg/message"
	"github.com/udamir/testurio/pkg/transport"
)

// Subscriber consumes messages from a dynamic set of broker topics, matching
// each against its hook registry (onMessage/waitMessage).
type Subscriber struct {
	Base
	driver transport.Subscriber

	topicsMu sync.Mutex
	topics   map[string]struct{}
}

// NewSubscriber wires driver.
func NewSubscriber(name string, driver transport.Subscriber) *Subscriber {
	s := &Subscriber{Base: NewBase(name, ScopeScenario), driver: driver, topics: map[string]struct{}{}}
	driver.OnError(func(err error) { s.ReportError(fmt.Errorf("testurio/component %q: transport: %w", s.Name(), err)) })
	s.StopFn = func(ctx context.Context) error { return driver.Close(ctx) }
	return s
}

// Subscribe starts consuming topic.
func (s *Subscriber) Subscribe(ctx context.Context, topic string) error {
	s.topicsMu.Lock()
	_, already := s.topics[topic]
	s.topicsMu.Unlock()
	if already {
		return nil
	}
	if err := s.driver.Subscribe(ctx, topic, s.handleMessage); err != nil {
		return err
	}
	s.topicsMu.Lock()
	s.topics[topic] = struct{}{}
	s.topicsMu.Unlock()
	return nil
}

// Unsubscribe stops consuming topic.
func (s *Subscriber) Unsubscribe(ctx context.Context, topic string) error {
	s.topicsMu.Lock()
	delete(s.topics, topic)
	s.topicsMu.Unlock()
	return s.driver.Unsubscribe(ctx, topic)
}

func (s *Subscriber) handleMessage(ctx context.Context, msg message.Message) {
	h := s.Hooks.FindFirstMatch(msg)
	if h == nil {
		return
	}
	result := hook.RunChain(ctx, h, msg)
	if result.Err != nil {
		s.ReportError(fmt.Errorf("testurio/component %q: hook %s: %w", s.Name(), h.ID, result.Err))
	}
}
