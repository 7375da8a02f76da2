package hook

import (
	"context"
	"errors"
)

// ErrDrop is the sentinel a Handler returns (wrapped or bare) to signal that
// the current message should be dropped: the engine suppresses any auto-reply
// and does not feed a value to the next handler in the chain.
var ErrDrop = errors.New("testurio/hook: message dropped")

// Kind identifies a Handler variant.
type Kind string

const (
	KindAssert    Kind = "assert"
	KindTransform Kind = "transform"
	KindMockReply Kind = "mockReply"
	KindMockEvent Kind = "mockEvent"
	KindProxy     Kind = "proxy"
	KindDrop      Kind = "drop"
)

// Handler is one link in a Hook's handler chain. It receives the current
// value (the inbound message on the first handler, the previous handler's
// return value thereafter) and returns the next value, or ErrDrop to stop the
// chain and suppress any reply.
type Handler struct {
	Kind        Kind
	Description string

	// Assert runs a predicate over the current value; a false return or a
	// non-drop error fails the owning hook (and the step that awaited it).
	Assert func(ctx context.Context, value any) (bool, error)

	// Transform replaces the current value with its return value.
	Transform func(ctx context.Context, value any) (any, error)

	// ResponseFactory builds the reply a SyncServer sends back on the wire.
	ResponseFactory func(ctx context.Context, request any) (any, error)

	// EventFactory builds the event payload an AsyncServer pushes reactively.
	EventFactory func(ctx context.Context, trigger any) (any, error)

	// Execute implements the generic "proxy" handler kind: transform,
	// mock-respond (short-circuit), or drop, decided by the handler itself.
	Execute func(ctx context.Context, value any) (any, error)
}

// Run executes h against value, returning the next value in the chain.
// A (nil, ErrDrop) return means the message was dropped.
func (h Handler) Run(ctx context.Context, value any) (any, error) {
	switch h.Kind {
	case KindAssert:
		ok, err := h.Assert(ctx, value)
		if err != nil {
			if errors.Is(err, ErrDrop) {
				return nil, ErrDrop
			}
			return nil, &AssertionError{Description: h.Description, Value: value, Cause: err}
		}
		if !ok {
			return nil, &AssertionError{Description: h.Description, Value: value}
		}
		return value, nil
	case KindTransform:
		return h.Transform(ctx, value)
	case KindMockReply:
		return h.ResponseFactory(ctx, value)
	case KindMockEvent:
		return h.EventFactory(ctx, value)
	case KindProxy:
		return h.Execute(ctx, value)
	case KindDrop:
		return nil, ErrDrop
	default:
		return value, nil
	}
}

// AssertionError is returned when an assert Handler's predicate fails or
// throws. It carries the offending value for diagnostics.
type AssertionError struct {
	Description string
	Value       any
	Cause       error
}

func (e *AssertionError) Error() string {
	desc := e.Description
	if desc == "" {
		desc = "assertion failed"
	}
	if e.Cause != nil {
		return desc + ": " + e.Cause.Error()
	}
	return desc
}

func (e *AssertionError) Unwrap() error { return e.Cause }

// Assert builds an assert Handler.
func Assert(description string, predicate func(ctx context.Context, value any) (bool, error)) Handler {
	return Handler{Kind: KindAssert, Description: description, Assert: predicate}
}

// Transform builds a transform Handler.
func Transform(description string, fn func(ctx context.Context, value any) (any, error)) Handler {
	return Handler{Kind: KindTransform, Description: description, Transform: fn}
}

// MockReply builds a mockReply Handler (sync server only).
func MockReply(factory func(ctx context.Context, request any) (any, error)) Handler {
	return Handler{Kind: KindMockReply, ResponseFactory: factory}
}

// MockEvent builds a mockEvent Handler (async server only).
func MockEvent(eventType string, factory func(ctx context.Context, trigger any) (any, error)) Handler {
	return Handler{Kind: KindMockEvent, Description: eventType, EventFactory: factory}
}

// Proxy builds a generic proxy Handler.
func Proxy(execute func(ctx context.Context, value any) (any, error)) Handler {
	return Handler{Kind: KindProxy, Execute: execute}
}

// Drop builds a drop Handler.
func Drop() Handler { return Handler{Kind: KindDrop} }
