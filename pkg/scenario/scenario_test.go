package scenario_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udamir/testurio/pkg/component"
	"github.com/udamir/testurio/pkg/executor"
	"github.com/udamir/testurio/pkg/message"
	"github.com/udamir/testurio/pkg/reporter"
	"github.com/udamir/testurio/pkg/scenario"
	"github.com/udamir/testurio/pkg/stepbuilder"
	"github.com/udamir/testurio/pkg/testcase"
	"github.com/udamir/testurio/pkg/transport"
)

// noopSyncDriver is a transport.SyncDriver stub used only to exercise the
// scenario package's component start-order scheduling, never a real socket.
type noopSyncDriver struct{}

func (noopSyncDriver) Characteristics() transport.Characteristics { return transport.Characteristics{} }
func (noopSyncDriver) StartServer(context.Context, message.Address, transport.InboundHandler) error {
	return nil
}
func (noopSyncDriver) StopServer(context.Context) error { return nil }
func (noopSyncDriver) CreateClient(context.Context, message.Address) error { return nil }
func (noopSyncDriver) CloseClient(context.Context) error { return nil }
func (noopSyncDriver) Request(_ context.Context, msg message.Message) (message.Message, error) {
	return msg, nil
}
func (noopSyncDriver) Respond(context.Context, string, message.Message) error { return nil }

func newFakeComponent(name string) *component.Base {
	b := component.NewBase(name, component.ScopeScenario)
	return &b
}

func sleepTestCase(name string, d time.Duration) *testcase.TestCase {
	return testcase.New(name, func(b *testcase.Builder) {
		b.Wait(d)
	})
}

func TestNew_DuplicateComponentNameFails(t *testing.T) {
	c1 := newFakeComponent("svc")
	c2 := newFakeComponent("svc")
	_, err := scenario.New([]component.Component{c1, c2})
	require.Error(t, err)
}

func TestRun_SequentialGroupIsolation(t *testing.T) {
	var events []string
	tc1 := testcase.New("tc1", func(b *testcase.Builder) {
		b.RegisterStep(stepbuilder.Step{Description: "tc1-step", Run: func(ctx context.Context) (any, error) {
			events = append(events, "tc1-start")
			time.Sleep(20 * time.Millisecond)
			events = append(events, "tc1-end")
			return nil, nil
		}})
	})
	tc2 := testcase.New("tc2", func(b *testcase.Builder) {
		b.RegisterStep(stepbuilder.Step{Description: "tc2-step", Run: func(ctx context.Context) (any, error) {
			events = append(events, "tc2-start")
			return nil, nil
		}})
	})

	scn, err := scenario.New(nil)
	require.NoError(t, err)

	result, err := scn.Run(context.Background(), scenario.Group{tc1, tc2})
	require.NoError(t, err)
	require.True(t, result.Passed)

	require.Equal(t, []string{"tc1-start", "tc1-end", "tc2-start"}, events,
		"tc2's first step must start strictly after tc1's last step completes")
}

func TestRun_ParallelGroupsRunConcurrently(t *testing.T) {
	const sleepFor = 150 * time.Millisecond

	scn, err := scenario.New(nil)
	require.NoError(t, err)

	start := time.Now()
	result, err := scn.Run(context.Background(),
		scenario.Group{sleepTestCase("group-a", sleepFor)},
		scenario.Group{sleepTestCase("group-b", sleepFor)},
	)
	elapsed := time.Since(start)

	require.NoError(t, err)
	require.True(t, result.Passed)
	assert.Less(t, elapsed, 2*sleepFor, "two groups sleeping in parallel must not take ~2x a single group's duration")
}

func TestRun_OneFailingGroupDoesNotCancelPeers(t *testing.T) {
	tcFail := testcase.New("fails", func(b *testcase.Builder) {
		b.RegisterStep(stepbuilder.Step{Description: "boom", Run: func(ctx context.Context) (any, error) {
			return nil, errors.New("boom")
		}})
	})
	tcPass := testcase.New("passes", func(b *testcase.Builder) {
		b.RegisterStep(stepbuilder.Step{Description: "ok", Run: func(ctx context.Context) (any, error) { return nil, nil }})
	})

	scn, err := scenario.New(nil)
	require.NoError(t, err)

	result, err := scn.Run(context.Background(),
		scenario.Group{tcFail},
		scenario.Group{tcPass},
	)
	require.NoError(t, err)
	require.False(t, result.Passed)
	require.Len(t, result.TestCases, 2)

	byName := map[string]bool{}
	for _, r := range result.TestCases {
		byName[r.Name] = r.Passed
	}
	assert.False(t, byName["fails"])
	assert.True(t, byName["passes"], "a failing group must not prevent a peer group's test case from running and passing")
}

func TestRun_InitAndStopHooksRun(t *testing.T) {
	var initRan, stopRan bool

	scn, err := scenario.New(nil)
	require.NoError(t, err)
	scn.OnInit(func(b *testcase.Builder) {
		b.RegisterStep(stepbuilder.Step{Description: "init-step", Run: func(ctx context.Context) (any, error) {
			initRan = true
			return nil, nil
		}})
	})
	scn.OnStop(func(b *testcase.Builder) {
		b.RegisterStep(stepbuilder.Step{Description: "stop-step", Run: func(ctx context.Context) (any, error) {
			stopRan = true
			return nil, nil
		}})
	})

	tc := testcase.New("tc", func(b *testcase.Builder) {})
	_, err = scn.Run(context.Background(), scenario.Group{tc})
	require.NoError(t, err)

	assert.True(t, initRan)
	assert.True(t, stopRan)
}

func TestRun_StartsServerTierBeforeClientTier(t *testing.T) {
	var order []string

	srv := component.NewSyncServer("backend", noopSyncDriver{}, message.Address{}, nil)
	srv.StartFn = func(ctx context.Context) error { order = append(order, "server"); return nil }

	cli := component.NewSyncClient("api", noopSyncDriver{}, message.Address{})
	cli.StartFn = func(ctx context.Context) error { order = append(order, "client"); return nil }

	scn, err := scenario.New([]component.Component{cli, srv}, scenario.WithReporter(reporter.NewConsole()))
	require.NoError(t, err)

	tc := testcase.New("noop", func(b *testcase.Builder) {})
	_, err = scn.Run(context.Background(), scenario.Group{tc})
	require.NoError(t, err)

	require.Equal(t, []string{"server", "client"}, order, "servers must start before clients so clients never dial an unbound port")
}

func TestRun_ScenarioPassedIsAndOfAllTestCases(t *testing.T) {
	tcPass := testcase.New("pass", func(b *testcase.Builder) {})
	tcFail := testcase.New("fail", func(b *testcase.Builder) {
		b.RegisterStep(stepbuilder.Step{Description: "x", Run: func(ctx context.Context) (any, error) {
			return nil, errors.New("nope")
		}})
	})

	scn, err := scenario.New(nil)
	require.NoError(t, err)

	result, err := scn.Run(context.Background(), scenario.Group{tcPass, tcFail})
	require.NoError(t, err)
	assert.False(t, result.Passed)
	assert.Equal(t, 2, len(result.TestCases))
}

func TestRun_SummaryCountsAndPassRate(t *testing.T) {
	tcPass := testcase.New("pass", func(b *testcase.Builder) {
		b.RegisterStep(stepbuilder.Step{Description: "ok", Run: func(ctx context.Context) (any, error) { return nil, nil }})
	})
	tcFail := testcase.New("fail", func(b *testcase.Builder) {
		b.RegisterStep(stepbuilder.Step{Description: "x", Run: func(ctx context.Context) (any, error) {
			return nil, errors.New("nope")
		}})
	})

	scn, err := scenario.New(nil)
	require.NoError(t, err)

	result, err := scn.Run(context.Background(), scenario.Group{tcPass, tcFail})
	require.NoError(t, err)

	assert.Equal(t, 2, result.TotalTests)
	assert.Equal(t, 1, result.PassedTests)
	assert.Equal(t, 1, result.FailedTests)
	assert.InDelta(t, 0.5, result.Summary.PassRate, 0.0001)

	for _, tcr := range result.TestCases {
		assert.Equal(t, 1, tcr.TotalSteps)
		assert.False(t, tcr.StartedAt.IsZero())
		assert.False(t, tcr.EndedAt.IsZero())
	}
}

func TestRun_OnStepCompleteFiresForEveryStep(t *testing.T) {
	var got []string
	rep := &recordingStepReporter{}

	scn, err := scenario.New(nil, scenario.WithReporter(rep))
	require.NoError(t, err)

	tc := testcase.New("tc", func(b *testcase.Builder) {
		b.RegisterStep(stepbuilder.Step{Description: "step-1", Run: func(ctx context.Context) (any, error) { return nil, nil }})
		b.RegisterStep(stepbuilder.Step{Description: "step-2", Run: func(ctx context.Context) (any, error) { return nil, nil }})
	})

	_, err = scn.Run(context.Background(), scenario.Group{tc})
	require.NoError(t, err)

	for _, s := range rep.steps {
		got = append(got, s)
	}
	assert.ElementsMatch(t, []string{"step-1", "step-2"}, got)
}

func TestRun_ScenarioScopedDynamicComponentPersistsAcrossTestCases(t *testing.T) {
	scn, err := scenario.New(nil)
	require.NoError(t, err)

	dyn := newFakeComponent("dynamic")
	var startCount int
	dyn.StartFn = func(ctx context.Context) error { startCount++; return nil }

	tc1 := testcase.New("first", func(b *testcase.Builder) {
		b.Use(dyn)
	})
	tc2 := testcase.New("second", func(b *testcase.Builder) {
		b.Use(dyn)
	})

	_, err = scn.Run(context.Background(), scenario.Group{tc1, tc2})
	require.NoError(t, err)

	assert.Equal(t, 1, startCount, "a scenario-scoped component registered in one test case must be visible (and not restarted) in a later one")
}

func TestRun_WithTimeoutBoundsTheEntireRun(t *testing.T) {
	scn, err := scenario.New(nil, scenario.WithTimeout(10*time.Millisecond))
	require.NoError(t, err)

	tc := testcase.New("slow", func(b *testcase.Builder) {
		b.RegisterStep(stepbuilder.Step{Description: "sleep", Run: func(ctx context.Context) (any, error) {
			select {
			case <-time.After(200 * time.Millisecond):
				return nil, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}})
	})

	result, err := scn.Run(context.Background(), scenario.Group{tc})
	require.NoError(t, err)
	assert.False(t, result.Passed, "a step that outlives the scenario timeout must fail")
}

func TestRun_RecordingAggregatesInteractionsIntoResult(t *testing.T) {
	scn, err := scenario.New(nil, scenario.WithRecording(true))
	require.NoError(t, err)

	tc := testcase.New("tc", func(b *testcase.Builder) {
		b.RegisterStep(stepbuilder.Step{Description: "step", Run: func(ctx context.Context) (any, error) { return "value", nil }})
	})

	result, err := scn.Run(context.Background(), scenario.Group{tc})
	require.NoError(t, err)
	require.Len(t, result.Interactions, 1)
	assert.Equal(t, "step", result.Interactions[0].Description)
}

type recordingStepReporter struct {
	steps []string
}

func (r *recordingStepReporter) OnStart(int)          {}
func (r *recordingStepReporter) OnTestCaseStart(string) {}
func (r *recordingStepReporter) OnStepComplete(_ string, step executor.StepResult) {
	r.steps = append(r.steps, step.Description)
}
func (r *recordingStepReporter) OnTestCaseComplete(reporter.TestCaseResulter) {}
func (r *recordingStepReporter) OnComplete(reporter.Resulter)                 {}
