package stepbuilder

import (
	"context"

	"github.com/udamir/testurio/pkg/component"
	"github.com/udamir/testurio/pkg/hook"
)

// DataSourceBuilder is the fluent surface bound to one DataSource component.
type DataSourceBuilder struct {
	sink Sink
	comp *component.DataSource
}

// ForDataSource implements component.createStepBuilder for DataSource.
func ForDataSource(sink Sink, comp *component.DataSource) *DataSourceBuilder {
	return &DataSourceBuilder{sink: sink, comp: comp}
}

// ExecResult is the chainable result of Exec. Its step is enqueued only by
// .Assert(...), which checks the returned value, or by .Done(), which adds
// no assertion.
type ExecResult struct {
	sink        Sink
	comp        *component.DataSource
	description string
	fn          func(ctx context.Context, client any) (any, error)
	registered  bool
}

// Exec prepares a step invoking fn against the underlying native client
// handle. Exec itself enqueues nothing: call Assert to enqueue the step with
// a check on the returned value, or Done to enqueue it for a pure side
// effect (e.g. seeding data).
func (b *DataSourceBuilder) Exec(description string, fn func(ctx context.Context, client any) (any, error)) *ExecResult {
	return &ExecResult{sink: b.sink, comp: b.comp, description: description, fn: fn}
}

func (e *ExecResult) register(assertDesc string, predicate func(value any) bool) {
	register(e.sink, Step{
		ComponentName: e.comp.Name(),
		Description:   "exec(" + e.description + ")" + assertDescSuffix(assertDesc),
		Run: func(ctx context.Context) (any, error) {
			value, err := e.comp.Exec(ctx, e.fn)
			if err != nil {
				return nil, err
			}
			if predicate != nil && !predicate(value) {
				return nil, &hook.AssertionError{Description: assertDesc, Value: value}
			}
			return value, nil
		},
	})
	e.registered = true
}

func assertDescSuffix(desc string) string {
	if desc == "" {
		return ""
	}
	return ".assert " + desc
}

// Assert enqueues the exec step with a predicate checked against its result.
func (e *ExecResult) Assert(description string, predicate func(value any) bool) {
	e.register(description, predicate)
}

// Done enqueues the exec step with no assertion, for pure side-effecting
// calls.
func (e *ExecResult) Done() {
	if !e.registered {
		e.register("", nil)
	}
}
