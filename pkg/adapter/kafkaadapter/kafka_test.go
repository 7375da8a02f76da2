package kafkaadapter

import (
	"context"
	"testing"

	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/require"

	"github.com/udamir/testurio/pkg/codec/jsoncodec"
	"github.com/udamir/testurio/pkg/message"
	"github.com/udamir/testurio/pkg/transport"
)

// TestPublisherDriver_Publish exercises the wire-encode path against
// sarama's in-process mock producer (mocks.SyncProducer), so the suite runs
// without a real Kafka broker.
func TestPublisherDriver_Publish(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	mockProducer.ExpectSendMessageAndSucceed()

	d := &PublisherDriver{codec: jsoncodec.New(), producer: mockProducer}
	defer d.Close(context.Background())

	err := d.Publish(context.Background(), "orders", message.Message{
		Type:    "order.created",
		Payload: map[string]any{"id": "o-1"},
	}, transport.PublishOptions{Key: "o-1"})
	require.NoError(t, err)
}

func TestPublisherDriver_PublishBatch(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	mockProducer.ExpectSendMessageAndSucceed()
	mockProducer.ExpectSendMessageAndSucceed()

	d := &PublisherDriver{codec: jsoncodec.New(), producer: mockProducer}
	defer d.Close(context.Background())

	err := d.PublishBatch(context.Background(), "orders", []message.Message{
		{Type: "order.created", Payload: map[string]any{"id": "o-1"}},
		{Type: "order.created", Payload: map[string]any{"id": "o-2"}},
	}, transport.PublishOptions{})
	require.NoError(t, err)
}
