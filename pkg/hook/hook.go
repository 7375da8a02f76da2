package hook

import (
	"time"

	"github.com/udamir/testurio/pkg/message"
)

// Phase is the lifecycle bucket a Hook (and the Step that registered it) was
// declared in.
type Phase string

const (
	PhaseInit   Phase = "init"
	PhaseBefore Phase = "before"
	PhaseTest   Phase = "test"
	PhaseAfter  Phase = "after"
	PhaseStop   Phase = "stop"
)

// Matcher decides whether a Hook applies to an inbound message. Exactly one
// of Literal or Predicate is set.
type Matcher struct {
	Literal   string
	Predicate func(msgType string, payload any) bool
}

// Match reports whether m matches msg's type/payload. Predicate panics and
// non-bool-convertible behaviour are never produced here; a Predicate
// returning normally is the only contract — the caller (Hook.Matches)
// recovers a panicking predicate as "no match".
func (m Matcher) Match(msgType string, payload any) bool {
	if m.Predicate != nil {
		return m.Predicate(msgType, payload)
	}
	return m.Literal == msgType
}

// PayloadMatcherKind distinguishes the two payload-matcher flavours.
type PayloadMatcherKind string

const (
	PayloadMatchTraceID PayloadMatcherKind = "traceId"
	PayloadMatchFunc    PayloadMatcherKind = "fn"
)

// PayloadMatcher is an additional condition a Hook's Matcher must pass
// alongside.
type PayloadMatcher struct {
	Kind  PayloadMatcherKind
	Value string // used when Kind == PayloadMatchTraceID
	Fn    func(msg message.Message) bool
}

// Match reports whether pm accepts msg. A panicking Fn is treated as no-match
// by the caller (Hook.Matches), exactly like a panicking predicate.
func (pm PayloadMatcher) Match(msg message.Message) bool {
	switch pm.Kind {
	case PayloadMatchTraceID:
		return msg.TraceID == pm.Value
	case PayloadMatchFunc:
		return pm.Fn(msg)
	default:
		return true
	}
}

// Hook is a registered expectation on a Component: a matcher plus an ordered
// handler chain.
type Hook struct {
	ID             string
	ComponentName  string
	Phase          Phase
	Matcher        Matcher
	PayloadMatcher *PayloadMatcher
	Handlers       []Handler
	Persistent     bool
	Timeout        time.Duration

	// Direction tags a Proxy hook as "downstream" (client→target) or
	// "upstream" (target→client). Empty for non-proxy components.
	Direction string

	// OnFired, if set, is invoked synchronously once after the handler chain
	// completes (success or failure) — used by the step builder to signal a
	// blocking wait-step that the hook it registered has fired.
	OnFired func(result HandlerChainResult)
}

// HandlerChainResult captures the outcome of running a Hook's handler chain
// against one inbound message.
type HandlerChainResult struct {
	Message message.Message
	Output  any
	Dropped bool
	Err     error
}

// Matches reports whether h applies to msg matching
// semantics: matcher first, then payload matcher if present. A panicking
// matcher or payload matcher function is treated as "no match".
func (h *Hook) Matches(msg message.Message) (matched bool) {
	defer func() {
		if recover() != nil {
			matched = false
		}
	}()
	if !h.Matcher.Match(msg.Type, msg.Payload) {
		return false
	}
	if h.PayloadMatcher != nil && !h.PayloadMatcher.Match(msg) {
		return false
	}
	return true
}
