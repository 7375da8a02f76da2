// Package executor runs a list of steps sequentially, racing each one
// against a per-step deadline derived from its own timeout or a context
// passed in by the caller.
package executor

import (
	"context"
	"fmt"
	"time"
)

// DefaultTimeout mirrors stepbuilder.DefaultTimeout; duplicated here (rather
// than imported) to keep executor free of a dependency on stepbuilder —
// pkg/testcase is the only place both are wired together.
const DefaultTimeout = 30 * time.Second

// Step is one unit of sequential work, a transport-agnostic projection of
// stepbuilder.Step.
type Step struct {
	Description string
	Timeout     time.Duration
	Run         func(ctx context.Context) (any, error)
}

// StepResult is the per-step outcome: start/end timestamps, pass/fail, and
// the captured error (if any).
type StepResult struct {
	Description string
	Passed      bool
	Output      any
	Err         error
	StartedAt   time.Time
	EndedAt     time.Time
}

// Options controls Run's fail-fast behaviour.
type Options struct {
	FailFast bool
}

// Run executes steps in order. Each step races its action against a timer
// derived from step.Timeout (or DefaultTimeout) and ctx's own cancellation.
// With opts.FailFast set, the first failing step stops execution and the
// remaining steps are not run; the zero Options runs every step.
func Run(ctx context.Context, steps []Step, opts Options) []StepResult {
	results := make([]StepResult, 0, len(steps))
	for _, step := range steps {
		result := runOne(ctx, step)
		results = append(results, result)
		if !result.Passed && opts.FailFast {
			break
		}
	}
	return results
}

func runOne(ctx context.Context, step Step) StepResult {
	timeout := step.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result := StepResult{Description: step.Description, StartedAt: time.Now()}

	type outcome struct {
		value any
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("step %q panicked: %v", step.Description, r)}
			}
		}()
		value, err := step.Run(stepCtx)
		done <- outcome{value: value, err: err}
	}()

	select {
	case o := <-done:
		result.EndedAt = time.Now()
		result.Output = o.value
		result.Err = o.err
		result.Passed = o.err == nil
	case <-stepCtx.Done():
		result.EndedAt = time.Now()
		result.Err = fmt.Errorf("step %q: timeout after %s: %w", step.Description, timeout, stepCtx.Err())
		result.Passed = false
	}
	return result
}
