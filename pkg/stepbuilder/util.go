package stepbuilder

import (
	"context"
	"time"

	"github.com/udamir/testurio/pkg/component"
	"github.com/udamir/testurio/pkg/engineerr"
)

// RegisterWait enqueues a utility step that blocks for d.
func RegisterWait(sink Sink, d time.Duration) {
	register(sink, Step{
		Description: "wait",
		Timeout:     d + time.Second,
		Run: func(ctx context.Context) (any, error) {
			select {
			case <-time.After(d):
				return nil, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
	})
}

// RegisterWaitUntil enqueues a utility step that polls predicate every
// interval until it returns true or the step's own timeout elapses.
func RegisterWaitUntil(sink Sink, description string, predicate func() bool, interval, timeout time.Duration) {
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	register(sink, Step{
		Description: "waitUntil " + description,
		Timeout:     timeout,
		Run: func(ctx context.Context) (any, error) {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			if predicate() {
				return nil, nil
			}
			for {
				select {
				case <-ticker.C:
					if predicate() {
						return nil, nil
					}
				case <-ctx.Done():
					return nil, &engineerr.TimeoutError{Description: description, Timeout: timeout.String()}
				}
			}
		},
	})
}

// For dispatches comp's concrete type to its per-variant step builder
// constructor, implementing component.createStepBuilder's factory role
// without requiring pkg/component to depend on stepbuilder.
func For(sink Sink, comp component.Component) any {
	switch c := comp.(type) {
	case *component.SyncClient:
		return ForSyncClient(sink, c)
	case *component.SyncServer:
		return ForSyncServer(sink, c)
	case *component.AsyncClient:
		return ForAsyncClient(sink, c)
	case *component.AsyncServer:
		return ForAsyncServer(sink, c)
	case *component.Proxy:
		return ForProxy(sink, c)
	case *component.Publisher:
		return ForPublisher(sink, c)
	case *component.Subscriber:
		return ForSubscriber(sink, c)
	case *component.DataSource:
		return ForDataSource(sink, c)
	default:
		return nil
	}
}
