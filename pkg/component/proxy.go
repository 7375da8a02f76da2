package component

import (
	"context"
	"fmt"

	"github.com/udamir/testurio/pkg/hook"
	"github.com/udamir/testurio/pkg/message"
	"github.com/udamir/testurio/pkg/transport"
)

// Proxy sits between a real client and a real (or mocked) target, holding
// two independent hook registries — downstream (client -> target) and
// upstream (target -> client) — that are never merged. A message with no
// matching hook in either direction is forwarded unchanged; a hook whose
// chain ends in Drop is not forwarded; a hook ending in a mockReply handler
// short-circuits instead of forwarding, answering the sender directly
// without the other side ever seeing the message.
type Proxy struct {
	Base
	Downstream *hook.Registry
	Upstream   *hook.Registry

	serverDriver transport.AsyncDriver
	clientDriver transport.AsyncDriver
	listen       message.Address
	target       message.Address
}

// NewProxy wires serverDriver to accept the real client on listen and
// clientDriver to dial target, so both directions of traffic pass through
// the proxy's hook registries: a downstream message (client -> target)
// forwards via clientDriver unless a matched hook short-circuits it back via
// serverDriver, and an upstream message (target -> client, delivered by
// clientDriver's connection) forwards via serverDriver unless a matched hook
// short-circuits it back via clientDriver.
func NewProxy(name string, serverDriver, clientDriver transport.AsyncDriver, listen, target message.Address) *Proxy {
	p := &Proxy{
		Base:         NewBase(name, ScopeScenario),
		Downstream:   hook.New(),
		Upstream:     hook.New(),
		serverDriver: serverDriver,
		clientDriver: clientDriver,
		listen:       listen,
		target:       target,
	}
	p.StartFn = func(ctx context.Context) error {
		if err := serverDriver.StartServer(ctx, listen, p.handleDownstream); err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		if err := clientDriver.CreateClient(ctx, target, p.HandleUpstream); err != nil {
			return fmt.Errorf("dial target: %w", err)
		}
		return nil
	}
	p.StopFn = func(ctx context.Context) error {
		if err := clientDriver.CloseClient(ctx); err != nil {
			return err
		}
		return serverDriver.StopServer(ctx)
	}
	return p
}

// RegisterHook dispatches h to the Downstream or Upstream registry per
// h.Direction, overriding Base's single-registry behaviour. An empty
// Direction is treated as downstream.
func (p *Proxy) RegisterHook(h *hook.Hook) {
	if h.Direction == "upstream" {
		p.Upstream.Register(h)
		return
	}
	p.Downstream.Register(h)
}

func (p *Proxy) ClearTestCaseHooks() {
	p.Downstream.ClearNonPersistent()
	p.Upstream.ClearNonPersistent()
}

func (p *Proxy) ClearAllHooks() {
	p.Downstream.Clear()
	p.Upstream.Clear()
}

// HandleUpstream is invoked by clientDriver when the real target sends a
// message to be relayed back toward the client.
func (p *Proxy) HandleUpstream(ctx context.Context, msg message.Message) {
	p.dispatch(ctx, p.Upstream, msg, p.serverDriver.SendMessage, p.clientDriver.SendMessage)
}

func (p *Proxy) handleDownstream(ctx context.Context, msg message.Message) {
	p.dispatch(ctx, p.Downstream, msg, p.clientDriver.SendMessage, p.serverDriver.SendMessage)
}

// dispatch matches msg against registry. No match or a matched
// transform/proxy chain forwards the (possibly rewritten) message onward via
// forward. A matched hook ending in a mockReply handler short-circuits
// instead: it answers back via reply and forward is never called — the
// mock-respond path spec.md's proxy scenario depends on ("backend never
// called").
func (p *Proxy) dispatch(ctx context.Context, registry *hook.Registry, msg message.Message, forward, reply func(ctx context.Context, msg message.Message) error) {
	h := registry.FindFirstMatch(msg)
	if h == nil {
		if err := forward(ctx, msg); err != nil {
			p.ReportError(fmt.Errorf("testurio/component %q: forward: %w", p.Name(), err))
		}
		return
	}

	result := hook.RunChain(ctx, h, msg)
	if result.Err != nil {
		p.ReportError(fmt.Errorf("testurio/component %q: hook %s: %w", p.Name(), h.ID, result.Err))
		return
	}
	if result.Dropped {
		return
	}

	out, ok := result.Output.(message.Message)
	if !ok {
		out = message.Message{Type: msg.Type, Payload: result.Output, TraceID: msg.TraceID}
	}

	send := forward
	if isMockReply(h) {
		send = reply
	}
	if err := send(ctx, out); err != nil {
		p.ReportError(fmt.Errorf("testurio/component %q: send: %w", p.Name(), err))
	}
}

// isMockReply reports whether h's chain ends in a mockReply handler — the
// only handler kind a Proxy hook uses to short-circuit forwarding.
func isMockReply(h *hook.Hook) bool {
	if len(h.Handlers) == 0 {
		return false
	}
	return h.Handlers[len(h.Handlers)-1].Kind == hook.KindMockReply
}
