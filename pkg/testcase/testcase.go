package testcase

import (
	"context"
	"fmt"
	"time"

	"github.com/udamir/testurio/pkg/component"
	"github.com/udamir/testurio/pkg/engineerr"
	"github.com/udamir/testurio/pkg/executor"
	"github.com/udamir/testurio/pkg/hook"
)

// BuildFn populates a Builder with steps and hooks.
type BuildFn func(b *Builder)

// TestCase holds a name, metadata and the function that builds its steps.
type TestCase struct {
	Name     string
	Metadata Metadata
	BuildFn  BuildFn
}

// New constructs a TestCase.
func New(name string, buildFn BuildFn) *TestCase {
	return &TestCase{Name: name, BuildFn: buildFn}
}

// WithMetadata attaches metadata, merged with any metadata set fluently by
// a caller later via Metadata's With* chain.
func (tc *TestCase) WithMetadata(m Metadata) *TestCase {
	tc.Metadata = Merge(tc.Metadata, m)
	return tc
}

// ExecuteOptions controls a TestCase's execution.
type ExecuteOptions struct {
	// OnBeforeExecute starts any test-case-scoped components the scenario
	// pre-created before buildFn's init/before steps run.
	OnBeforeExecute func(ctx context.Context) error

	// ContinueOnFailure disables the fail-fast default.
	ContinueOnFailure bool

	// OnStepComplete, if set, is invoked once per step as it finishes (in
	// execution order, across every phase) so a reporter can render
	// per-step detail as the test case runs rather than only at the end.
	OnStepComplete func(step executor.StepResult)

	// Recording, when true, captures each step's output into the returned
	// Result's Interactions trail.
	Recording bool
}

// Interaction is a recorded artifact of one step's execution, captured when
// a scenario runs with recording enabled.
type Interaction struct {
	Description string
	Output      any
	StartedAt   time.Time
	EndedAt     time.Time
}

// Result is the outcome of one TestCase.execute call.
type Result struct {
	Name     string
	Metadata Metadata
	Passed   bool
	Steps    []executor.StepResult
	Duration time.Duration

	StartedAt time.Time
	EndedAt   time.Time

	PassedSteps int
	FailedSteps int
	TotalSteps  int

	Interactions []Interaction
}

// GetName implements reporter.TestCaseResulter.
func (r Result) GetName() string { return r.Name }

// GetPassed implements reporter.TestCaseResulter and reporter.Resulter.
func (r Result) GetPassed() bool { return r.Passed }

// GetTotalSteps implements reporter.TestCaseResulter.
func (r Result) GetTotalSteps() int { return r.TotalSteps }

// GetPassedSteps implements reporter.TestCaseResulter.
func (r Result) GetPassedSteps() int { return r.PassedSteps }

// GetFailedSteps implements reporter.TestCaseResulter.
func (r Result) GetFailedSteps() int { return r.FailedSteps }

var phaseOrder = []hook.Phase{hook.PhaseInit, hook.PhaseBefore, hook.PhaseTest, hook.PhaseAfter}

// Execute runs the phased build/init/before/test/after algorithm against b
// (a fresh Builder bound to this invocation) and returns the aggregated
// result.
func (tc *TestCase) Execute(ctx context.Context, b *Builder, opts ExecuteOptions) Result {
	start := time.Now()

	emit := func(rs []executor.StepResult) {
		if opts.OnStepComplete == nil {
			return
		}
		for _, r := range rs {
			opts.OnStepComplete(r)
		}
	}

	tc.BuildFn(b)

	if opts.OnBeforeExecute != nil {
		if err := opts.OnBeforeExecute(ctx); err != nil {
			step := executor.StepResult{
				Description: "onBeforeExecute", Passed: false,
				Err: &engineerr.BuildError{Reason: "starting test-case-scoped components", Cause: err},
			}
			emit([]executor.StepResult{step})
			return Result{
				Name: tc.Name, Metadata: tc.Metadata, Passed: false,
				Steps:     []executor.StepResult{step},
				Duration:  time.Since(start),
				StartedAt: start, EndedAt: time.Now(),
				FailedSteps: 1, TotalSteps: 1,
			}
		}
	}

	byPhase := map[hook.Phase][]executor.StepResult{}
	involved := involvedComponents(b)

	failFast := !opts.ContinueOnFailure
	var overallFailed bool

	for _, phase := range phaseOrder {
		steps := stepsForPhase(b, phase)
		if len(steps) == 0 {
			continue
		}
		results := executor.Run(ctx, steps, executor.Options{FailFast: failFast && phase != hook.PhaseAfter})
		byPhase[phase] = results

		for _, r := range results {
			if !r.Passed {
				overallFailed = true
			}
		}

		for _, comp := range involved {
			for _, unhandled := range comp.UnhandledErrors() {
				overallFailed = true
				results = append(results, executor.StepResult{
					Description: fmt.Sprintf("unhandled error on %s", comp.Name()),
					Passed:      false,
					Err:         unhandled,
				})
			}
		}
		byPhase[phase] = results
		emit(results)

		if overallFailed && failFast && phase != hook.PhaseAfter {
			break
		}
	}

	// after always runs regardless of prior failures.
	if _, ran := byPhase[hook.PhaseAfter]; !ran {
		afterSteps := stepsForPhase(b, hook.PhaseAfter)
		if len(afterSteps) > 0 {
			results := executor.Run(ctx, afterSteps, executor.Options{FailFast: false})
			for _, r := range results {
				if !r.Passed {
					overallFailed = true
				}
			}
			byPhase[hook.PhaseAfter] = results
			emit(results)
		}
	}

	for _, comp := range involved {
		comp.ClearTestCaseHooks()
	}

	var all []executor.StepResult
	for _, phase := range phaseOrder {
		all = append(all, byPhase[phase]...)
	}

	var passedSteps, failedSteps int
	var interactions []Interaction
	for _, r := range all {
		if r.Passed {
			passedSteps++
		} else {
			failedSteps++
		}
		if opts.Recording {
			interactions = append(interactions, Interaction{
				Description: r.Description,
				Output:      r.Output,
				StartedAt:   r.StartedAt,
				EndedAt:     r.EndedAt,
			})
		}
	}

	end := time.Now()
	return Result{
		Name:     tc.Name,
		Metadata: tc.Metadata,
		Passed:   !overallFailed,
		Steps:    all,
		Duration: end.Sub(start),

		StartedAt: start,
		EndedAt:   end,

		PassedSteps: passedSteps,
		FailedSteps: failedSteps,
		TotalSteps:  len(all),

		Interactions: interactions,
	}
}

func stepsForPhase(b *Builder, phase hook.Phase) []executor.Step {
	var out []executor.Step
	for _, s := range b.Steps() {
		if s.Phase == phase {
			out = append(out, executor.Step{
				Description: s.Description,
				Timeout:     s.Timeout,
				Run:         s.Run,
			})
		}
	}
	return out
}

func involvedComponents(b *Builder) []component.Component {
	out := make([]component.Component, 0, len(b.components))
	for _, c := range b.components {
		out = append(out, c)
	}
	return out
}
