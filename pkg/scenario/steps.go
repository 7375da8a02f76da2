package scenario

import (
	"context"

	"github.com/udamir/testurio/pkg/executor"
	"github.com/udamir/testurio/pkg/testcase"
)

// runBuilderSteps runs every step accumulated on b (used for the
// scenario-level init/stop builders, which are not full TestCase
// invocations and so bypass testcase.Execute's phase partitioning).
func runBuilderSteps(ctx context.Context, b *testcase.Builder) []executor.StepResult {
	steps := make([]executor.Step, 0, len(b.Steps()))
	for _, s := range b.Steps() {
		steps = append(steps, executor.Step{Description: s.Description, Timeout: s.Timeout, Run: s.Run})
	}
	return executor.Run(ctx, steps, executor.Options{FailFast: true})
}
