// Package stepbuilder implements the protocol-flavored fluent surfaces by
// which a test author enqueues Steps and registers Hooks against one
// Component.
package stepbuilder

import (
	"context"
	"time"

	"github.com/udamir/testurio/pkg/hook"
)

// DefaultTimeout is applied to a Step with no explicit override.
const DefaultTimeout = 30 * time.Second

// Step is one atomic action in a test case: a closure capturing the step
// builder's intent (send, wait, register a hook, block), tagged with the
// phase and component it belongs to.
type Step struct {
	Phase         hook.Phase
	ComponentName string
	Description   string
	Timeout       time.Duration

	// Run executes the step's action. ctx carries the per-step deadline
	// set by pkg/executor.
	Run func(ctx context.Context) (any, error)
}

// Sink is the subset of TestCaseBuilder a step builder needs: appending
// steps in the builder's currently-active phase. Defined here (rather than
// depended on from pkg/testcase) so stepbuilder never imports testcase.
type Sink interface {
	RegisterStep(step Step)
	CurrentPhase() hook.Phase
}

// register fills in step's Phase from sink's current phase and a default
// timeout, then appends it.
func register(sink Sink, step Step) {
	step.Phase = sink.CurrentPhase()
	if step.Timeout == 0 {
		step.Timeout = DefaultTimeout
	}
	sink.RegisterStep(step)
}

// oneShotSignal is the "already fired" flag shared between a pre-registered
// hook's closure and the blocking step body.
type oneShotSignal struct {
	ch     chan hook.HandlerChainResult
	fired  chan struct{}
}

func newOneShotSignal() *oneShotSignal {
	return &oneShotSignal{ch: make(chan hook.HandlerChainResult, 1), fired: make(chan struct{})}
}

func (s *oneShotSignal) fire(result hook.HandlerChainResult) {
	select {
	case s.ch <- result:
		close(s.fired)
	default:
		// already fired once; a persistent hook firing again is ignored by
		// the original waiter, which has already consumed its one value.
	}
}

func (s *oneShotSignal) wait(ctx context.Context) (hook.HandlerChainResult, error) {
	select {
	case result := <-s.ch:
		return result, nil
	case <-ctx.Done():
		return hook.HandlerChainResult{}, ctx.Err()
	}
}
