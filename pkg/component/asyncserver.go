package component

import (
	"context"
	"fmt"

	"github.com/udamir/testurio/pkg/hook"
	"github.com/udamir/testurio/pkg/message"
	"github.com/udamir/testurio/pkg/transport"
)

// AsyncServer mocks a message-stream endpoint (WebSocket server, gRPC
// streaming service). Inbound messages are matched against the hook
// registry; a matched mockEvent/transform handler's output is pushed back on
// the stream. A hook with no reply-producing handler (pure assert, used by
// waitMessage) produces no outbound traffic.
type AsyncServer struct {
	Base
	driver transport.AsyncDriver
	listen message.Address
}

// NewAsyncServer wires driver to listen.
func NewAsyncServer(name string, driver transport.AsyncDriver, listen message.Address) *AsyncServer {
	s := &AsyncServer{Base: NewBase(name, ScopeScenario), driver: driver, listen: listen}
	s.StartFn = func(ctx context.Context) error {
		return driver.StartServer(ctx, listen, s.handleMessage)
	}
	s.StopFn = driver.StopServer
	return s
}

// PushEvent proactively sends msg without a triggering inbound message, for
// server-initiated events.
func (s *AsyncServer) PushEvent(ctx context.Context, msg message.Message) error {
	return s.driver.SendMessage(ctx, msg)
}

func (s *AsyncServer) handleMessage(ctx context.Context, msg message.Message) {
	h := s.Hooks.FindFirstMatch(msg)
	if h == nil {
		return
	}
	result := hook.RunChain(ctx, h, msg)
	if result.Err != nil {
		s.ReportError(fmt.Errorf("testurio/component %q: hook %s: %w", s.Name(), h.ID, result.Err))
		return
	}
	// A hook with no handlers (onMessage/waitMessage) or a pure assert chain
	// produces no reply-shaped output; only a mockEvent/transform/proxy
	// handler chain ends in something meant for the wire.
	replies := false
	for _, handler := range h.Handlers {
		if handler.Kind != hook.KindAssert {
			replies = true
		}
	}
	if result.Dropped || result.Output == nil || !replies {
		return
	}
	out, ok := result.Output.(message.Message)
	if !ok {
		out = message.Message{Type: msg.Type, Payload: result.Output, TraceID: msg.TraceID}
	}
	if err := s.driver.SendMessage(ctx, out); err != nil {
		s.ReportError(fmt.Errorf("testurio/component %q: send: %w", s.Name(), err))
	}
}
