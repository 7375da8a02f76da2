package stepbuilder

import (
	"context"
	"fmt"

	"github.com/udamir/testurio/pkg/component"
	"github.com/udamir/testurio/pkg/engineerr"
	"github.com/udamir/testurio/pkg/hook"
	"github.com/udamir/testurio/pkg/message"
)

// SyncClientBuilder is the fluent surface bound to one SyncClient component.
type SyncClientBuilder struct {
	sink Sink
	comp *component.SyncClient

	lastOperation string
	lastResponse  *message.Message
}

// ForSyncClient implements component.createStepBuilder for SyncClient.
func ForSyncClient(sink Sink, comp *component.SyncClient) *SyncClientBuilder {
	return &SyncClientBuilder{sink: sink, comp: comp}
}

// Request enqueues a blocking request step.
// meta carries protocol-specific routing data (httpadapter reads "method"
// and "path" from it). The response is captured for a later chained
// OnResponse(operation).
func (b *SyncClientBuilder) Request(operation string, payload any, meta map[string]any) {
	register(b.sink, Step{
		ComponentName: b.comp.Name(),
		Description:   "request " + operation,
		Run: func(ctx context.Context) (any, error) {
			resp, err := b.comp.Request(ctx, message.Message{Type: operation, Payload: payload, Metadata: meta})
			if err != nil {
				return nil, fmt.Errorf("request %s: %w", operation, err)
			}
			b.lastOperation = operation
			b.lastResponse = &resp
			return resp, nil
		},
	})
}

// ResponseAssertion is the chainable builder OnResponse returns.
type ResponseAssertion struct {
	sink      Sink
	comp      *component.SyncClient
	operation string
	get       func() (*message.Message, bool)
}

// OnResponse returns an assertion builder over the last Request's captured
// response for the named operation.
func (b *SyncClientBuilder) OnResponse(operation string) *ResponseAssertion {
	return &ResponseAssertion{
		sink: b.sink, comp: b.comp, operation: operation,
		get: func() (*message.Message, bool) {
			if b.lastOperation == operation && b.lastResponse != nil {
				return b.lastResponse, true
			}
			return nil, false
		},
	}
}

// Assert enqueues a step asserting predicate over the captured response.
func (r *ResponseAssertion) Assert(description string, predicate func(resp message.Message) bool) {
	register(r.sink, Step{
		ComponentName: r.comp.Name(),
		Description:   "onResponse(" + r.operation + ").assert " + description,
		Run: func(ctx context.Context) (any, error) {
			resp, ok := r.get()
			if !ok {
				return nil, &engineerr.BuildError{Reason: "onResponse(" + r.operation + ") has no prior request step"}
			}
			if !predicate(*resp) {
				return nil, &hook.AssertionError{Description: description, Value: *resp}
			}
			return *resp, nil
		},
	})
}
