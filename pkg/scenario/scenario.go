// Package scenario implements TestScenario: a uniquely-named set of
// components, started and stopped in dependency-respecting tiers around
// groups of test cases run in parallel with each other.
package scenario

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/udamir/testurio/pkg/component"
	"github.com/udamir/testurio/pkg/executor"
	"github.com/udamir/testurio/pkg/hook"
	"github.com/udamir/testurio/pkg/reporter"
	"github.com/udamir/testurio/pkg/testcase"
)

// Tier orders component startup/shutdown: servers and proxies bind a port
// first so clients never dial an unbound address.
func tier(c component.Component) int {
	switch c.(type) {
	case *component.SyncServer, *component.AsyncServer, *component.Proxy, *component.Publisher, *component.Subscriber, *component.DataSource:
		return 0
	default:
		return 1
	}
}

// Group is a sequential run of test cases; a scenario Run call is a list of
// groups executed in parallel with each other.
type Group []*testcase.TestCase

// Config holds the knobs scenario.Option functions set on a Scenario.
type Config struct {
	// Timeout, when positive, bounds an entire Run call: it is applied as a
	// deadline on the context passed to every group/test case, on top of any
	// deadline the caller's own ctx already carries.
	Timeout time.Duration

	// Reporter receives lifecycle callbacks. Defaults to reporter.NewConsole.
	Reporter reporter.Reporter

	// Recording, when true, makes Run flatten every test case's recorded
	// step interactions into the returned Result's Interactions trail.
	Recording bool
}

// Option configures a Scenario at construction time.
type Option func(*Config)

// WithTimeout bounds the whole scenario Run call at d.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.Timeout = d }
}

// WithReporter overrides the default console reporter.
func WithReporter(rep reporter.Reporter) Option {
	return func(c *Config) { c.Reporter = rep }
}

// WithRecording turns on step-interaction capture for every test case.
func WithRecording(enabled bool) Option {
	return func(c *Config) { c.Recording = enabled }
}

// Scenario owns a uniquely-named set of components and a shared context map.
type Scenario struct {
	mu         sync.Mutex
	components map[string]component.Component
	sharedCtx  map[string]any

	cfg      Config
	reporter reporter.Reporter

	initFn BuildFn
	stopFn BuildFn
}

// BuildFn populates a testcase.Builder the way a TestCase's BuildFn does,
// used for the scenario-level init/stop hooks.
type BuildFn func(b *testcase.Builder)

// New constructs a Scenario from a uniquely-named component set. Duplicate
// names are a construction-time failure.
func New(components []component.Component, opts ...Option) (*Scenario, error) {
	m := make(map[string]component.Component, len(components))
	for _, c := range components {
		if _, dup := m[c.Name()]; dup {
			return nil, fmt.Errorf("testurio/scenario: duplicate component name %q", c.Name())
		}
		m[c.Name()] = c
	}

	cfg := Config{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Reporter == nil {
		cfg.Reporter = reporter.NewConsole()
	}

	return &Scenario{components: m, sharedCtx: map[string]any{}, cfg: cfg, reporter: reporter.NewComposite(cfg.Reporter)}, nil
}

// OnInit sets the scenario-level init builder (phase init).
func (s *Scenario) OnInit(fn BuildFn) { s.initFn = fn }

// OnStop sets the scenario-level stop builder (phase stop).
func (s *Scenario) OnStop(fn BuildFn) { s.stopFn = fn }

// Summary is the aggregate counts a reporter renders at the end of a run.
type Summary struct {
	PassRate        float64
	AverageDuration time.Duration
}

// Result aggregates every test case's result across every group.
type Result struct {
	Passed    bool
	TestCases []testcase.Result
	Duration  time.Duration

	StartedAt time.Time
	EndedAt   time.Time

	PassedTests int
	FailedTests int
	TotalTests  int

	Summary Summary

	Interactions []testcase.Interaction
}

// GetPassed implements reporter.Resulter.
func (r Result) GetPassed() bool { return r.Passed }

// GetTotalTests implements reporter.Resulter.
func (r Result) GetTotalTests() int { return r.TotalTests }

// GetPassedTests implements reporter.Resulter.
func (r Result) GetPassedTests() int { return r.PassedTests }

// GetFailedTests implements reporter.Resulter.
func (r Result) GetFailedTests() int { return r.FailedTests }

// GetPassRate implements reporter.Resulter.
func (r Result) GetPassRate() float64 { return r.Summary.PassRate }

// Run executes groups in parallel with each other; within a group, test
// cases run sequentially.
func (s *Scenario) Run(ctx context.Context, groups ...Group) (Result, error) {
	start := time.Now()

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	if err := s.start(ctx); err != nil {
		return Result{}, fmt.Errorf("testurio/scenario: start: %w", err)
	}
	defer func() {
		if err := s.stop(context.Background()); err != nil {
			slog.Error("scenario stop failed", "error", err)
		}
	}()

	if err := s.runInit(ctx); err != nil {
		return Result{}, fmt.Errorf("testurio/scenario: runInit: %w", err)
	}

	s.reporter.OnStart(len(groups))

	var mu sync.Mutex
	var allResults []testcase.Result

	g, gctx := errgroup.WithContext(ctx)
	for _, group := range groups {
		group := group
		g.Go(func() error {
			for _, tc := range group {
				result := s.runOne(gctx, tc)
				mu.Lock()
				allResults = append(allResults, result)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	s.runStop(ctx)

	end := time.Now()
	result := buildResult(allResults, start, end, s.cfg.Recording)
	s.reporter.OnComplete(result)
	return result, nil
}

func buildResult(allResults []testcase.Result, start, end time.Time, recording bool) Result {
	passed := true
	var passedTests, failedTests int
	var totalDuration time.Duration
	var interactions []testcase.Interaction
	for _, r := range allResults {
		if !r.Passed {
			passed = false
			failedTests++
		} else {
			passedTests++
		}
		totalDuration += r.Duration
		if recording {
			interactions = append(interactions, r.Interactions...)
		}
	}

	var passRate, avgDuration float64
	if len(allResults) > 0 {
		passRate = float64(passedTests) / float64(len(allResults))
		avgDuration = float64(totalDuration) / float64(len(allResults))
	}

	return Result{
		Passed:    passed,
		TestCases: allResults,
		Duration:  end.Sub(start),

		StartedAt: start,
		EndedAt:   end,

		PassedTests: passedTests,
		FailedTests: failedTests,
		TotalTests:  len(allResults),

		Summary: Summary{
			PassRate:        passRate,
			AverageDuration: time.Duration(avgDuration),
		},

		Interactions: interactions,
	}
}

func (s *Scenario) runOne(ctx context.Context, tc *testcase.TestCase) testcase.Result {
	s.reporter.OnTestCaseStart(tc.Name)

	s.mu.Lock()
	snapshot := make(map[string]component.Component, len(s.components))
	for k, v := range s.components {
		snapshot[k] = v
	}
	s.mu.Unlock()

	b := testcase.NewBuilder(snapshot, s.sharedCtx)
	result := tc.Execute(ctx, b, testcase.ExecuteOptions{
		OnBeforeExecute: func(ctx context.Context) error {
			return s.startTier(ctx, pendingTier(b.PendingComponents()))
		},
		OnStepComplete: func(step executor.StepResult) {
			s.reporter.OnStepComplete(tc.Name, step)
		},
		Recording: s.cfg.Recording,
	})

	for name, c := range b.PendingComponents() {
		switch c.Scope() {
		case component.ScopeTestCase:
			if err := c.Stop(ctx); err != nil {
				slog.Error("failed to stop test-case-scoped component", "component", name, "error", err)
			}
			s.mu.Lock()
			delete(s.components, name)
			s.mu.Unlock()
		case component.ScopeScenario:
			s.mu.Lock()
			s.components[name] = c
			s.mu.Unlock()
		}
	}
	b.ClearPendingComponents()

	s.reporter.OnTestCaseComplete(result)
	return result
}

func pendingTier(pending map[string]component.Component) []component.Component {
	out := make([]component.Component, 0, len(pending))
	for _, c := range pending {
		out = append(out, c)
	}
	return out
}

func (s *Scenario) startTier(ctx context.Context, comps []component.Component) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, c := range comps {
		c := c
		g.Go(func() error { return c.Start(gctx) })
	}
	return g.Wait()
}

// start brings every scenario component up, servers/proxies before clients,
// parallel within a tier.
func (s *Scenario) start(ctx context.Context) error {
	byTier := map[int][]component.Component{}
	for _, c := range s.components {
		byTier[tier(c)] = append(byTier[tier(c)], c)
	}
	for t := 0; t <= 1; t++ {
		if err := s.startTier(ctx, byTier[t]); err != nil {
			return err
		}
	}
	return nil
}

// stop tears every scenario component down in reverse tier order: clients,
// then proxies/servers, each wrapped so one failure
// does not prevent the rest from stopping.
func (s *Scenario) stop(ctx context.Context) error {
	byTier := map[int][]component.Component{}
	for _, c := range s.components {
		byTier[tier(c)] = append(byTier[tier(c)], c)
	}
	var firstErr error
	for t := 1; t >= 0; t-- {
		for _, c := range byTier[t] {
			if err := c.Stop(ctx); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (s *Scenario) runInit(ctx context.Context) error {
	if s.initFn == nil {
		return nil
	}
	b := testcase.NewBuilder(s.components, s.sharedCtx)
	b.SetPhase(hook.PhaseInit)
	s.initFn(b)
	results := runBuilderSteps(ctx, b)
	for _, r := range results {
		if !r.Passed {
			return fmt.Errorf("init step %q failed: %w", r.Description, r.Err)
		}
	}
	return s.startTier(ctx, pendingTier(b.PendingComponents()))
}

func (s *Scenario) runStop(ctx context.Context) {
	if s.stopFn == nil {
		return
	}
	b := testcase.NewBuilder(s.components, s.sharedCtx)
	b.SetPhase(hook.PhaseStop)
	s.stopFn(b)
	for _, r := range runBuilderSteps(ctx, b) {
		if !r.Passed {
			slog.Error("scenario stop step failed", "step", r.Description, "error", r.Err)
		}
	}
}
