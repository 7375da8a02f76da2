package component

import (
	"context"
	"fmt"

	"github.com/udamir/testurio/pkg/hook"
	"github.com/udamir/testurio/pkg/message"
	"github.com/udamir/testurio/pkg/transport"
)

// SyncServer mocks a request/response endpoint (HTTP server, unary gRPC
// service). Inbound requests are matched against the hook registry; the
// first matching hook's chain produces the reply via a mockReply handler.
// No match falls back to the noMatch reply given to NewSyncServer (by
// default a generic 404-style "no handler for TYPE" reply).
type SyncServer struct {
	Base
	driver  transport.SyncDriver
	listen  message.Address
	noMatch func(ctx context.Context, req message.Message) (message.Message, error)
}

// NewSyncServer wires driver to listen, registering onRequest as the inbound
// entry point. An optional noMatch override replaces the built-in generic
// "no handler for TYPE" 404-style reply.
func NewSyncServer(name string, driver transport.SyncDriver, listen message.Address, noMatch func(ctx context.Context, req message.Message) (message.Message, error)) *SyncServer {
	if noMatch == nil {
		noMatch = defaultNoMatchReply
	}
	s := &SyncServer{Base: NewBase(name, ScopeScenario), driver: driver, listen: listen, noMatch: noMatch}
	s.StartFn = func(ctx context.Context) error {
		return driver.StartServer(ctx, listen, s.handleRequest)
	}
	s.StopFn = driver.StopServer
	return s
}

func defaultNoMatchReply(ctx context.Context, req message.Message) (message.Message, error) {
	return message.Message{
		Type:    req.Type,
		TraceID: req.TraceID,
		Payload: map[string]any{
			"code": 404,
			"body": map[string]any{"error": fmt.Sprintf("no handler for %s", req.Type)},
		},
	}, nil
}

func (s *SyncServer) handleRequest(ctx context.Context, req message.Message) {
	h := s.Hooks.FindFirstMatch(req)
	if h == nil {
		reply, err := s.noMatch(ctx, req)
		if err != nil {
			s.ReportError(fmt.Errorf("testurio/component %q: default reply: %w", s.Name(), err))
			return
		}
		if err := s.driver.Respond(ctx, req.TraceID, reply); err != nil {
			s.ReportError(fmt.Errorf("testurio/component %q: respond: %w", s.Name(), err))
		}
		return
	}

	result := hook.RunChain(ctx, h, req)
	if result.Err != nil {
		s.ReportError(fmt.Errorf("testurio/component %q: hook %s: %w", s.Name(), h.ID, result.Err))
		return
	}
	if result.Dropped {
		return
	}
	reply, ok := result.Output.(message.Message)
	if !ok {
		reply = message.Message{Type: req.Type, Payload: result.Output}
	}
	if err := s.driver.Respond(ctx, req.TraceID, reply); err != nil {
		s.ReportError(fmt.Errorf("testurio/component %q: respond: %w", s.Name(), err))
	}
}
