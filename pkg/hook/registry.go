package hook

import (
	"context"
	"errors"
	"sync"

	"github.com/udamir/testurio/pkg/message"
)

// Registry is a component's ordered list of hooks. Matching is always
// registration-order first-match: no specificity scoring.
// Registry is safe for concurrent registration and lookup. Handler-chain
// execution is not serialised: two concurrent inbound messages matching the
// same hook run its chain concurrently.
type Registry struct {
	mu    sync.Mutex
	hooks []*Hook
}

// New returns an empty Registry.
func New() *Registry { return &Registry{} }

// Register appends hook to the end of the registry. Registration order is
// the match-priority order.
func (r *Registry) Register(h *Hook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, h)
}

// ClearNonPersistent removes every hook with Persistent == false. Called at
// test-case boundaries.
func (r *Registry) ClearNonPersistent() {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.hooks[:0]
	for _, h := range r.hooks {
		if h.Persistent {
			kept = append(kept, h)
		}
	}
	r.hooks = kept
}

// Clear removes every hook, persistent or not.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = nil
}

// FindFirstMatch returns the first registered hook whose matcher and payload
// matcher both accept msg, or nil if none match.
func (r *Registry) FindFirstMatch(msg message.Message) *Hook {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, h := range r.hooks {
		if h.Matches(msg) {
			return h
		}
	}
	return nil
}

// Snapshot returns a copy of the currently registered hooks, for tests and
// for proxy/direction filtering.
func (r *Registry) Snapshot() []*Hook {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Hook, len(r.hooks))
	copy(out, r.hooks)
	return out
}

// Len reports the number of currently registered hooks.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.hooks)
}

// ErrNoMatch names the case where no hook matched an inbound message. No
// function in this package returns it: FindFirstMatch returns nil, and
// components apply their own variant-specific default instead of treating
// this as a failure.
var ErrNoMatch = errors.New("testurio/hook: no hook matched")

// RunChain executes h's handler chain against msg, feeding each handler's
// return into the next. It runs the matched hook's handlers in order,
// shared by every component variant.
func RunChain(ctx context.Context, h *Hook, msg message.Message) HandlerChainResult {
	var value any = msg
	for _, handler := range h.Handlers {
		out, err := handler.Run(ctx, value)
		if err != nil {
			if errors.Is(err, ErrDrop) {
				result := HandlerChainResult{Message: msg, Dropped: true}
				if h.OnFired != nil {
					h.OnFired(result)
				}
				return result
			}
			result := HandlerChainResult{Message: msg, Err: err}
			if h.OnFired != nil {
				h.OnFired(result)
			}
			return result
		}
		value = out
	}
	result := HandlerChainResult{Message: msg, Output: value}
	if h.OnFired != nil {
		h.OnFired(result)
	}
	return result
}
