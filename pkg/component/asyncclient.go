package component

import (
	"context"
	"fmt"

	"github.com/udamir/testurio/pkg/hook"
	"github.com/udamir/testurio/pkg/message"
	"github.com/udamir/testurio/pkg/transport"
)

// AsyncClient connects to a message-stream endpoint and both sends messages
// and reacts to inbound ones through its hook registry (onEvent/waitEvent).
type AsyncClient struct {
	Base
	driver transport.AsyncDriver
	target message.Address
}

// NewAsyncClient wires driver to target.
func NewAsyncClient(name string, driver transport.AsyncDriver, target message.Address) *AsyncClient {
	c := &AsyncClient{Base: NewBase(name, ScopeTestCase), driver: driver, target: target}
	c.StartFn = func(ctx context.Context) error {
		return driver.CreateClient(ctx, target, c.handleMessage)
	}
	c.StopFn = driver.CloseClient
	return c
}

// SendMessage pushes msg to the connected endpoint.
func (c *AsyncClient) SendMessage(ctx context.Context, msg message.Message) error {
	if msg.TraceID == "" {
		msg = msg.WithTraceID(message.NewTraceID())
	}
	return c.driver.SendMessage(ctx, msg)
}

func (c *AsyncClient) handleMessage(ctx context.Context, msg message.Message) {
	h := c.Hooks.FindFirstMatch(msg)
	if h == nil {
		return
	}
	result := hook.RunChain(ctx, h, msg)
	if result.Err != nil {
		c.ReportError(fmt.Errorf("testurio/component %q: hook %s: %w", c.Name(), h.ID, result.Err))
	}
}
