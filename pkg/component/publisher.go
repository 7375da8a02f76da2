package component

import (
	"context"

	"github.com/udamir/testurio/pkg/message"
	"github.com/udamir/testurio/pkg/transport"
)

// Publisher sends messages to a topic on a message broker (Kafka, RabbitMQ,
// Redis pub/sub). It has no inbound hook registry — a publisher is never the
// target of an onMessage expectation.
type Publisher struct {
	Base
	driver transport.Publisher
}

// NewPublisher wires driver.
func NewPublisher(name string, driver transport.Publisher) *Publisher {
	p := &Publisher{Base: NewBase(name, ScopeScenario), driver: driver}
	p.StopFn = func(ctx context.Context) error { return driver.Close(ctx) }
	return p
}

// Publish sends msg to topic.
func (p *Publisher) Publish(ctx context.Context, topic string, msg message.Message, opts transport.PublishOptions) error {
	if msg.TraceID == "" {
		msg = msg.WithTraceID(message.NewTraceID())
	}
	return p.driver.Publish(ctx, topic, msg, opts)
}

// PublishBatch sends msgs to topic as a batch.
func (p *Publisher) PublishBatch(ctx context.Context, topic string, msgs []message.Message, opts transport.PublishOptions) error {
	return p.driver.PublishBatch(ctx, topic, msgs, opts)
}

// IsConnected reports the driver's current connectivity.
func (p *Publisher) IsConnected() bool { return p.driver.IsConnected() }
