// Package testcase implements the TestCaseBuilder/TestCase pair: a fluent
// accumulator of steps and hooks phased into init/before/test/after, and
// the executor that runs them against a fresh Builder per invocation.
package testcase

import (
	"sync"
	"time"

	"github.com/udamir/testurio/pkg/component"
	"github.com/udamir/testurio/pkg/hook"
	"github.com/udamir/testurio/pkg/stepbuilder"
)

// Builder is a pure accumulator: one instance is used by exactly one
// TestCase invocation, and its steps must not be re-executed.
type Builder struct {
	components map[string]component.Component
	pending    map[string]component.Component

	phase hook.Phase
	steps []stepbuilder.Step

	ctxMu sync.RWMutex
	ctx   map[string]any
}

// NewBuilder constructs a Builder bound to the given scenario components and
// shared context map (the same map instance flows across every test case in
// a scenario).
func NewBuilder(components map[string]component.Component, sharedCtx map[string]any) *Builder {
	if sharedCtx == nil {
		sharedCtx = map[string]any{}
	}
	return &Builder{
		components: components,
		pending:    map[string]component.Component{},
		phase:      hook.PhaseTest,
		ctx:        sharedCtx,
	}
}

// CurrentPhase implements stepbuilder.Sink.
func (b *Builder) CurrentPhase() hook.Phase { return b.phase }

// SetPhase switches the phase subsequently registered steps are tagged with.
func (b *Builder) SetPhase(phase hook.Phase) { b.phase = phase }

// RegisterStep implements stepbuilder.Sink.
func (b *Builder) RegisterStep(step stepbuilder.Step) {
	if step.Phase == "" {
		step.Phase = b.phase
	}
	b.steps = append(b.steps, step)
}

// Steps returns the accumulated steps.
func (b *Builder) Steps() []stepbuilder.Step { return b.steps }

// Use resolves component.Use(name) into its typed step builder, registering
// it as a pending dynamic component when it was not already part of the
// scenario.
func (b *Builder) Use(comp component.Component) any {
	name := comp.Name()
	if _, known := b.components[name]; !known {
		b.pending[name] = comp
		b.components[name] = comp
	}
	return stepbuilder.For(b, comp)
}

// PendingComponents returns dynamically-created components awaiting
// lifecycle management by the scenario.
func (b *Builder) PendingComponents() map[string]component.Component {
	out := make(map[string]component.Component, len(b.pending))
	for k, v := range b.pending {
		out[k] = v
	}
	return out
}

// ClearPendingComponents empties the pending set once the scenario has taken
// ownership of starting/stopping them.
func (b *Builder) ClearPendingComponents() { b.pending = map[string]component.Component{} }

// Context returns the value stored under key in the shared per-scenario
// context map.
func (b *Builder) Context(key string) (any, bool) {
	b.ctxMu.RLock()
	defer b.ctxMu.RUnlock()
	v, ok := b.ctx[key]
	return v, ok
}

// SetContext stores value under key in the shared per-scenario context map,
// visible to every subsequent step and test case.
func (b *Builder) SetContext(key string, value any) {
	b.ctxMu.Lock()
	defer b.ctxMu.Unlock()
	b.ctx[key] = value
}

// Wait enqueues a step that simply sleeps for d.
func (b *Builder) Wait(d time.Duration) {
	stepbuilder.RegisterWait(b, d)
}

// WaitUntil enqueues a step that polls predicate until it returns true or
// the step's timeout elapses.
func (b *Builder) WaitUntil(description string, predicate func() bool, interval, timeout time.Duration) {
	stepbuilder.RegisterWaitUntil(b, description, predicate, interval, timeout)
}
