// Package component implements the eight Component variants on top of a
// shared lifecycle/hook-registry base: a start/stop state machine plus an
// unhandled-error mailbox that pkg/testcase drains after each phase of a
// test case (not after each step).
package component

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/udamir/testurio/pkg/hook"
)

// State is a Component's lifecycle stage. Transitions are monotonic:
// created -> started -> stopped. Start and Stop are both idempotent.
type State string

const (
	Created State = "created"
	Started State = "started"
	Stopped State = "stopped"
)

// Scope controls when a dynamically-created component is torn down.
type Scope string

const (
	ScopeScenario Scope = "scenario"
	ScopeTestCase Scope = "testCase"
)

// Component is the contract every variant satisfies, and the only surface
// pkg/stepbuilder, pkg/testcase and pkg/scenario depend on.
type Component interface {
	Name() string
	Scope() Scope
	State() State

	Start(ctx context.Context) error
	Stop(ctx context.Context) error

	RegisterHook(h *hook.Hook)
	ClearTestCaseHooks()
	ClearAllHooks()

	// UnhandledErrors drains and returns errors raised by background handler
	// chains since the last drain.
	UnhandledErrors() []error
}

// Base implements the lifecycle state machine, hook registry ownership and
// unhandled-error mailbox shared by every Component variant. Variants embed
// Base and add their transport-specific operations.
type Base struct {
	name  string
	scope Scope

	mu    sync.Mutex
	state State

	Hooks *hook.Registry

	errMu   sync.Mutex
	errs    []error

	// StartFn/StopFn are supplied by the variant constructor and wrap the
	// concrete transport.Driver's StartServer/CreateClient etc.
	StartFn func(ctx context.Context) error
	StopFn  func(ctx context.Context) error
}

// NewBase constructs a Base in the Created state with an empty hook registry.
func NewBase(name string, scope Scope) Base {
	return Base{
		name:  name,
		scope: scope,
		state: Created,
		Hooks: hook.New(),
	}
}

func (b *Base) Name() string { return b.name }
func (b *Base) Scope() Scope { return b.scope }

func (b *Base) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Start transitions Created -> Started. Calling Start on an already-started
// or stopped component is a no-op.
func (b *Base) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.state != Created {
		b.mu.Unlock()
		slog.Debug("component start ignored, not in created state", "component", b.name, "state", b.state)
		return nil
	}
	b.mu.Unlock()

	if b.StartFn != nil {
		if err := b.StartFn(ctx); err != nil {
			return fmt.Errorf("testurio/component %q: start: %w", b.name, err)
		}
	}

	b.mu.Lock()
	b.state = Started
	b.mu.Unlock()
	slog.Info("component started", "component", b.name)
	return nil
}

// Stop transitions Started -> Stopped. Calling Stop on a component that was
// never started or is already stopped is a no-op.
func (b *Base) Stop(ctx context.Context) error {
	b.mu.Lock()
	if b.state != Started {
		b.mu.Unlock()
		return nil
	}
	b.mu.Unlock()

	if b.StopFn != nil {
		if err := b.StopFn(ctx); err != nil {
			return fmt.Errorf("testurio/component %q: stop: %w", b.name, err)
		}
	}

	b.mu.Lock()
	b.state = Stopped
	b.mu.Unlock()
	slog.Info("component stopped", "component", b.name)
	return nil
}

func (b *Base) RegisterHook(h *hook.Hook) { b.Hooks.Register(h) }

func (b *Base) ClearTestCaseHooks() { b.Hooks.ClearNonPersistent() }

func (b *Base) ClearAllHooks() { b.Hooks.Clear() }

// ReportError records an error raised by a background handler chain (e.g. a
// mockEvent factory panicking, a proxy hook's transform returning an error
// with no step awaiting it) so the next step boundary can surface it.
func (b *Base) ReportError(err error) {
	if err == nil {
		return
	}
	b.errMu.Lock()
	defer b.errMu.Unlock()
	b.errs = append(b.errs, err)
	slog.Error("unhandled component error", "component", b.name, "error", err)
}

// UnhandledErrors drains and returns every error recorded since the previous
// call.
func (b *Base) UnhandledErrors() []error {
	b.errMu.Lock()
	defer b.errMu.Unlock()
	out := b.errs
	b.errs = nil
	return out
}
