package testcase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udamir/testurio/pkg/component"
	"github.com/udamir/testurio/pkg/executor"
	"github.com/udamir/testurio/pkg/hook"
	"github.com/udamir/testurio/pkg/stepbuilder"
)

func stepFn(desc string, run func(ctx context.Context) (any, error)) stepbuilder.Step {
	return stepbuilder.Step{Description: desc, Run: run}
}

func newFakeComponent(name string) *component.Base {
	b := component.NewBase(name, component.ScopeScenario)
	return &b
}

func TestExecute_PhaseOrder(t *testing.T) {
	var order []string
	tc := New("phase-order", func(b *Builder) {
		b.SetPhase(hook.PhaseTest)
		b.RegisterStep(stepFn("test-step", func(ctx context.Context) (any, error) { order = append(order, "test"); return nil, nil }))
		b.SetPhase(hook.PhaseBefore)
		b.RegisterStep(stepFn("before-step", func(ctx context.Context) (any, error) { order = append(order, "before"); return nil, nil }))
		b.SetPhase(hook.PhaseAfter)
		b.RegisterStep(stepFn("after-step", func(ctx context.Context) (any, error) { order = append(order, "after"); return nil, nil }))
		b.SetPhase(hook.PhaseInit)
		b.RegisterStep(stepFn("init-step", func(ctx context.Context) (any, error) { order = append(order, "init"); return nil, nil }))
	})

	b := NewBuilder(map[string]component.Component{}, nil)
	result := tc.Execute(context.Background(), b, ExecuteOptions{})

	require.True(t, result.Passed)
	assert.Equal(t, []string{"init", "before", "test", "after"}, order, "steps must run in init, before, test, after order regardless of declaration order")
}

func TestExecute_AfterAlwaysRunsDespiteTestFailure(t *testing.T) {
	afterRan := false
	tc := New("after-runs", func(b *Builder) {
		b.SetPhase(hook.PhaseTest)
		b.RegisterStep(stepFn("failing", func(ctx context.Context) (any, error) { return nil, errors.New("boom") }))
		b.SetPhase(hook.PhaseAfter)
		b.RegisterStep(stepFn("cleanup", func(ctx context.Context) (any, error) { afterRan = true; return nil, nil }))
	})

	b := NewBuilder(map[string]component.Component{}, nil)
	result := tc.Execute(context.Background(), b, ExecuteOptions{})

	assert.False(t, result.Passed)
	assert.True(t, afterRan, "after phase must run even when an earlier phase failed")
}

func TestExecute_UnhandledErrorFailsTestCase(t *testing.T) {
	comp := newFakeComponent("backend")
	tc := New("unhandled", func(b *Builder) {
		b.SetPhase(hook.PhaseTest)
		b.RegisterStep(stepFn("trigger", func(ctx context.Context) (any, error) {
			comp.ReportError(errors.New("background failure"))
			return nil, nil
		}))
	})

	b := NewBuilder(map[string]component.Component{"backend": comp}, nil)
	result := tc.Execute(context.Background(), b, ExecuteOptions{})

	assert.False(t, result.Passed, "an unhandled component error must fail the test case even though the step itself returned no error")
}

func TestExecute_ClearsNonPersistentHooksAtEnd(t *testing.T) {
	comp := newFakeComponent("svc")
	comp.RegisterHook(&hook.Hook{Matcher: hook.Matcher{Literal: "ephemeral"}})
	comp.RegisterHook(&hook.Hook{Matcher: hook.Matcher{Literal: "sticky"}, Persistent: true})

	tc := New("clears", func(b *Builder) {})
	b := NewBuilder(map[string]component.Component{"svc": comp}, nil)
	tc.Execute(context.Background(), b, ExecuteOptions{})

	assert.Equal(t, 1, comp.Hooks.Len())
}

func TestExecute_PopulatesStepCountsAndTimestamps(t *testing.T) {
	tc := New("counts", func(b *Builder) {
		b.SetPhase(hook.PhaseTest)
		b.RegisterStep(stepFn("ok", func(ctx context.Context) (any, error) { return nil, nil }))
		b.SetPhase(hook.PhaseAfter)
		b.RegisterStep(stepFn("boom", func(ctx context.Context) (any, error) { return nil, errors.New("boom") }))
	})

	b := NewBuilder(map[string]component.Component{}, nil)
	result := tc.Execute(context.Background(), b, ExecuteOptions{})

	assert.Equal(t, 2, result.TotalSteps)
	assert.Equal(t, 1, result.PassedSteps)
	assert.Equal(t, 1, result.FailedSteps)
	assert.False(t, result.StartedAt.IsZero())
	assert.False(t, result.EndedAt.IsZero())
	assert.False(t, result.EndedAt.Before(result.StartedAt))
}

func TestExecute_OnStepCompleteFiresInOrder(t *testing.T) {
	var seen []string
	tc := New("callback", func(b *Builder) {
		b.SetPhase(hook.PhaseTest)
		b.RegisterStep(stepFn("first", func(ctx context.Context) (any, error) { return nil, nil }))
		b.RegisterStep(stepFn("second", func(ctx context.Context) (any, error) { return nil, nil }))
	})

	b := NewBuilder(map[string]component.Component{}, nil)
	tc.Execute(context.Background(), b, ExecuteOptions{
		OnStepComplete: func(step executor.StepResult) { seen = append(seen, step.Description) },
	})

	assert.Equal(t, []string{"first", "second"}, seen)
}

func TestExecute_RecordingCapturesInteractions(t *testing.T) {
	tc := New("recording", func(b *Builder) {
		b.SetPhase(hook.PhaseTest)
		b.RegisterStep(stepFn("produces", func(ctx context.Context) (any, error) { return "payload", nil }))
	})

	b := NewBuilder(map[string]component.Component{}, nil)
	result := tc.Execute(context.Background(), b, ExecuteOptions{Recording: true})

	require.Len(t, result.Interactions, 1)
	assert.Equal(t, "produces", result.Interactions[0].Description)
	assert.Equal(t, "payload", result.Interactions[0].Output)
}

func TestExecute_NoRecordingLeavesInteractionsEmpty(t *testing.T) {
	tc := New("no-recording", func(b *Builder) {
		b.RegisterStep(stepFn("step", func(ctx context.Context) (any, error) { return nil, nil }))
	})

	b := NewBuilder(map[string]component.Component{}, nil)
	result := tc.Execute(context.Background(), b, ExecuteOptions{})

	assert.Empty(t, result.Interactions)
}
