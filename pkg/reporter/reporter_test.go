package reporter_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udamir/testurio/pkg/executor"
	"github.com/udamir/testurio/pkg/reporter"
)

type fakeResult struct {
	name   string
	passed bool
}

func (r fakeResult) GetName() string          { return r.name }
func (r fakeResult) GetPassed() bool          { return r.passed }
func (r fakeResult) GetTotalSteps() int       { return 1 }
func (r fakeResult) GetPassedSteps() int      { return 1 }
func (r fakeResult) GetFailedSteps() int      { return 0 }
func (r fakeResult) GetTotalTests() int       { return 1 }
func (r fakeResult) GetPassedTests() int      { return 1 }
func (r fakeResult) GetFailedTests() int      { return 0 }
func (r fakeResult) GetPassRate() float64     { return 1 }

type panickingReporter struct{}

func (panickingReporter) OnStart(int)                                  { panic("boom") }
func (panickingReporter) OnTestCaseStart(string)                       { panic("boom") }
func (panickingReporter) OnStepComplete(string, executor.StepResult)   { panic("boom") }
func (panickingReporter) OnTestCaseComplete(reporter.TestCaseResulter) { panic("boom") }
func (panickingReporter) OnComplete(reporter.Resulter)                 { panic("boom") }

type recordingReporter struct {
	events []string
}

func (r *recordingReporter) OnStart(n int)           { r.events = append(r.events, "start") }
func (r *recordingReporter) OnTestCaseStart(string)  { r.events = append(r.events, "tc-start") }
func (r *recordingReporter) OnStepComplete(string, executor.StepResult) {
	r.events = append(r.events, "step")
}
func (r *recordingReporter) OnTestCaseComplete(reporter.TestCaseResulter) {
	r.events = append(r.events, "tc-complete")
}
func (r *recordingReporter) OnComplete(reporter.Resulter) { r.events = append(r.events, "complete") }

func TestComposite_PanickingReporterIsIsolated(t *testing.T) {
	rec := &recordingReporter{}
	composite := reporter.NewComposite(panickingReporter{}, rec)

	require.NotPanics(t, func() {
		composite.OnStart(1)
		composite.OnTestCaseStart("tc1")
		composite.OnStepComplete("tc1", executor.StepResult{Description: "step"})
		composite.OnTestCaseComplete(fakeResult{name: "tc1", passed: true})
		composite.OnComplete(fakeResult{passed: true})
	})

	assert.Equal(t, []string{"start", "tc-start", "step", "tc-complete", "complete"}, rec.events,
		"a panicking reporter must not prevent a peer reporter from receiving every event")
}

func TestConsole_DoesNotPanicOnAnyCallback(t *testing.T) {
	c := reporter.NewConsole()
	require.NotPanics(t, func() {
		c.OnStart(2)
		c.OnTestCaseStart("tc1")
		c.OnStepComplete("tc1", executor.StepResult{Description: "s", Passed: true})
		c.OnStepComplete("tc1", executor.StepResult{Description: "s2", Passed: false, Err: assertErr{}})
		c.OnTestCaseComplete(fakeResult{name: "tc1", passed: false})
		c.OnComplete(fakeResult{passed: false})
	})
}

type assertErr struct{}

func (assertErr) Error() string { return "assertion failed" }
