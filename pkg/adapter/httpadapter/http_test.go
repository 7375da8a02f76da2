package httpadapter_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/udamir/testurio/pkg/adapter/httpadapter"
	"github.com/udamir/testurio/pkg/codec/jsoncodec"
	"github.com/udamir/testurio/pkg/message"
)

// TestDriver_MockReply exercises a sync request/mock reply flow at the
// transport layer: a request is routed to onRequest, and the reply written
// via Respond(traceID, ...) comes back out of Request.
func TestDriver_MockReply(t *testing.T) {
	ctx := context.Background()
	server := httpadapter.New(jsoncodec.New())
	require.NoError(t, server.StartServer(ctx, message.Address{Host: "127.0.0.1", Port: 18299}, func(_ context.Context, req message.Message) {
		go server.Respond(ctx, req.TraceID, message.Message{
			Payload: map[string]any{"code": 200, "body": map[string]any{"id": float64(1), "name": "Alice"}},
		})
	}))
	defer server.StopServer(ctx)
	time.Sleep(50 * time.Millisecond)

	client := httpadapter.New(jsoncodec.New())
	require.NoError(t, client.CreateClient(ctx, message.Address{Host: "127.0.0.1", Port: 18299}))
	defer client.CloseClient(ctx)

	resp, err := client.Request(ctx, message.Message{
		Type:     "getUser",
		TraceID:  message.NewTraceID(),
		Metadata: map[string]any{"method": "GET", "path": "/users/1"},
	})
	require.NoError(t, err)
	body, ok := resp.Payload.(map[string]any)
	require.True(t, ok)
	m, ok := body["code"].(int)
	require.True(t, ok)
	require.Equal(t, 200, m)
}
