package tcpadapter_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/udamir/testurio/pkg/adapter/tcpadapter"
	"github.com/udamir/testurio/pkg/codec/jsoncodec"
	"github.com/udamir/testurio/pkg/message"
)

func TestDriver_ClientServerRoundTrip(t *testing.T) {
	ctx := context.Background()

	serverReceived := make(chan message.Message, 1)
	server := tcpadapter.New(jsoncodec.New())
	require.NoError(t, server.StartServer(ctx, message.Address{Host: "127.0.0.1", Port: 18199}, func(_ context.Context, msg message.Message) {
		serverReceived <- msg
	}))
	defer server.StopServer(ctx)
	time.Sleep(50 * time.Millisecond)

	client := tcpadapter.New(jsoncodec.New())
	require.NoError(t, client.CreateClient(ctx, message.Address{Host: "127.0.0.1", Port: 18199}, func(context.Context, message.Message) {}))
	defer client.CloseClient(ctx)

	require.NoError(t, client.SendMessage(ctx, message.Message{Type: "ping", Payload: map[string]any{"seq": float64(7)}}))

	select {
	case msg := <-serverReceived:
		require.Equal(t, "ping", msg.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not receive message")
	}
}
