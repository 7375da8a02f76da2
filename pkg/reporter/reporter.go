// Package reporter implements the scenario result sinks. Reporters are
// notified for visibility only — a failing reporter never alters the
// engine's own TestResult.
package reporter

import (
	"log/slog"

	"github.com/udamir/testurio/pkg/executor"
)

// Reporter receives scenario lifecycle callbacks. Implementations must not
// panic; Composite recovers and isolates a misbehaving reporter regardless.
type Reporter interface {
	OnStart(groupCount int)
	OnTestCaseStart(name string)
	OnStepComplete(testCaseName string, step executor.StepResult)
	OnTestCaseComplete(result TestCaseResulter)
	OnComplete(result Resulter)
}

// TestCaseResulter and Resulter are satisfied by testcase.Result and
// scenario.Result respectively; defined here as minimal interfaces so
// pkg/reporter never imports pkg/testcase or pkg/scenario (avoiding an
// import cycle, since pkg/scenario depends on pkg/reporter).
type TestCaseResulter interface {
	GetName() string
	GetPassed() bool
	GetTotalSteps() int
	GetPassedSteps() int
	GetFailedSteps() int
}

type Resulter interface {
	GetPassed() bool
	GetTotalTests() int
	GetPassedTests() int
	GetFailedTests() int
	GetPassRate() float64
}

// Console logs every callback via log/slog, the default
// observability surface.
type Console struct {
	logger *slog.Logger
}

// NewConsole builds a Console reporter using slog.Default().
func NewConsole() *Console { return &Console{logger: slog.Default()} }

func (c *Console) OnStart(groupCount int) {
	c.logger.Info("scenario started", "groups", groupCount)
}

func (c *Console) OnTestCaseStart(name string) {
	c.logger.Info("test case started", "name", name)
}

func (c *Console) OnStepComplete(testCaseName string, step executor.StepResult) {
	if step.Passed {
		c.logger.Debug("step passed", "test_case", testCaseName, "step", step.Description)
		return
	}
	c.logger.Warn("step failed", "test_case", testCaseName, "step", step.Description, "error", step.Err)
}

func (c *Console) OnTestCaseComplete(result TestCaseResulter) {
	c.logger.Info("test case completed",
		"name", result.GetName(), "passed", result.GetPassed(),
		"steps", result.GetTotalSteps(), "passed_steps", result.GetPassedSteps(), "failed_steps", result.GetFailedSteps())
}

func (c *Console) OnComplete(result Resulter) {
	c.logger.Info("scenario completed",
		"passed", result.GetPassed(),
		"tests", result.GetTotalTests(), "passed_tests", result.GetPassedTests(), "failed_tests", result.GetFailedTests(),
		"pass_rate", result.GetPassRate())
}

// Composite fans out every callback to a list of reporters, isolating each
// one so a panicking reporter never affects another reporter or the
// engine's own result. Reporters are called one after another on the
// caller's goroutine, so a slow reporter delays the rest.
type Composite struct {
	reporters []Reporter
}

// NewComposite builds a Composite over reporters.
func NewComposite(reporters ...Reporter) *Composite { return &Composite{reporters: reporters} }

func (c *Composite) each(fn func(r Reporter)) {
	for _, r := range c.reporters {
		r := r
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					slog.Error("reporter panicked, isolating", "error", rec)
				}
			}()
			fn(r)
		}()
	}
}

func (c *Composite) OnStart(groupCount int) { c.each(func(r Reporter) { r.OnStart(groupCount) }) }

func (c *Composite) OnTestCaseStart(name string) {
	c.each(func(r Reporter) { r.OnTestCaseStart(name) })
}

func (c *Composite) OnStepComplete(testCaseName string, step executor.StepResult) {
	c.each(func(r Reporter) { r.OnStepComplete(testCaseName, step) })
}

func (c *Composite) OnTestCaseComplete(result TestCaseResulter) {
	c.each(func(r Reporter) { r.OnTestCaseComplete(result) })
}

func (c *Composite) OnComplete(result Resulter) {
	c.each(func(r Reporter) { r.OnComplete(result) })
}
