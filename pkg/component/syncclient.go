package component

import (
	"context"

	"github.com/udamir/testurio/pkg/message"
	"github.com/udamir/testurio/pkg/transport"
)

// SyncClient issues requests against a target endpoint and blocks for the
// response. Its hook registry exists only for assertion hooks a step builder
// attaches to the response before returning it to the test case.
type SyncClient struct {
	Base
	driver transport.SyncDriver
	target message.Address
}

// NewSyncClient wires driver to target; Start/Stop establish and tear down
// the underlying connection via driver.CreateClient/CloseClient.
func NewSyncClient(name string, driver transport.SyncDriver, target message.Address) *SyncClient {
	c := &SyncClient{Base: NewBase(name, ScopeTestCase), driver: driver, target: target}
	c.StartFn = func(ctx context.Context) error { return driver.CreateClient(ctx, target) }
	c.StopFn = driver.CloseClient
	return c
}

// Request sends msg and blocks for the correlated response.onResponse
// form — both resolve to this single call).
func (c *SyncClient) Request(ctx context.Context, msg message.Message) (message.Message, error) {
	if msg.TraceID == "" {
		msg = msg.WithTraceID(message.NewTraceID())
	}
	return c.driver.Request(ctx, msg)
}
