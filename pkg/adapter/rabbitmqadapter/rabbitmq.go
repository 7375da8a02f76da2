// Package rabbitmqadapter implements transport.Publisher/Subscriber over
// RabbitMQ using amqp091-go, publishing to a topic exchange and consuming
// through an exclusive, auto-delete queue bound per subscription.
package rabbitmqadapter

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/udamir/testurio/pkg/adapter"
	"github.com/udamir/testurio/pkg/codec"
	"github.com/udamir/testurio/pkg/message"
	"github.com/udamir/testurio/pkg/transport"
)

func init() {
	_ = adapter.Default.Register("rabbitmq", New)
}

// Config carries the AMQP connection URI and the exchange topics publish
// to / fan out from; Testurio treats "topic" as a topic-exchange routing
// key, matching "topic name or pattern" passthrough.
type Config struct {
	URI      string
	Exchange string
}

func dial(cfg Config) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(cfg.URI)
	if err != nil {
		return nil, nil, fmt.Errorf("rabbitmqadapter: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("rabbitmqadapter: channel: %w", err)
	}
	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, fmt.Errorf("rabbitmqadapter: exchange declare: %w", err)
	}
	return conn, ch, nil
}

// Driver implements both Publisher and Subscriber over one AMQP channel,
// mirroring redisadapter's single-connection-two-roles shape.
type Driver struct {
	codec codec.Codec
	cfg   Config

	conn *amqp.Connection
	ch   *amqp.Channel

	mu      sync.Mutex
	queues  map[string]string // topic -> queue name
	cancels map[string]context.CancelFunc
	onErr   func(error)
	onClose func()
}

// New dials cfg and returns a ready Driver usable as both Publisher and
// Subscriber.
func New(cfg Config, c codec.Codec) (*Driver, error) {
	conn, ch, err := dial(cfg)
	if err != nil {
		return nil, err
	}
	return &Driver{
		codec: c, cfg: cfg, conn: conn, ch: ch,
		queues: map[string]string{}, cancels: map[string]context.CancelFunc{},
	}, nil
}

func (d *Driver) Publish(ctx context.Context, topic string, msg message.Message, opts transport.PublishOptions) error {
	raw, err := d.codec.Encode(ctx, map[string]any{"type": msg.Type, "payload": msg.Payload, "traceId": msg.TraceID, "metadata": msg.Metadata})
	if err != nil {
		return err
	}
	headers := amqp.Table{}
	for k, v := range opts.Headers {
		headers[k] = v
	}
	return d.ch.PublishWithContext(ctx, d.cfg.Exchange, topic, false, false, amqp.Publishing{
		ContentType: "application/octet-stream",
		Body:        raw,
		Headers:     headers,
		MessageId:   opts.Key,
	})
}

func (d *Driver) PublishBatch(ctx context.Context, topic string, msgs []message.Message, opts transport.PublishOptions) error {
	for _, m := range msgs {
		if err := d.Publish(ctx, topic, m, opts); err != nil {
			return err
		}
	}
	return nil
}

func (d *Driver) Close(ctx context.Context) error {
	d.mu.Lock()
	for _, cancel := range d.cancels {
		cancel()
	}
	d.mu.Unlock()
	if err := d.ch.Close(); err != nil {
		slog.Warn("rabbitmqadapter: channel close failed", "error", err)
	}
	return d.conn.Close()
}

func (d *Driver) IsConnected() bool { return d.conn != nil && !d.conn.IsClosed() }

// Subscribe declares an exclusive queue bound to topic and starts a
// goroutine delivering messages to onMessage dynamic
// topic-set Subscriber contract.
func (d *Driver) Subscribe(ctx context.Context, topic string, onMessage transport.InboundHandler) error {
	q, err := d.ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return fmt.Errorf("rabbitmqadapter: queue declare: %w", err)
	}
	if err := d.ch.QueueBind(q.Name, topic, d.cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("rabbitmqadapter: queue bind: %w", err)
	}
	deliveries, err := d.ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		return fmt.Errorf("rabbitmqadapter: consume: %w", err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	d.mu.Lock()
	d.queues[topic] = q.Name
	d.cancels[topic] = cancel
	d.mu.Unlock()

	go func() {
		for {
			select {
			case <-subCtx.Done():
				return
			case delivery, ok := <-deliveries:
				if !ok {
					if d.onClose != nil {
						d.onClose()
					}
					return
				}
				msg, err := d.decode(subCtx, topic, delivery.Body)
				if err != nil {
					slog.Warn("rabbitmqadapter: invalid message", "topic", topic, "error", err)
					if d.onErr != nil {
						d.onErr(err)
					}
					continue
				}
				onMessage(subCtx, msg)
			}
		}
	}()
	return nil
}

func (d *Driver) Unsubscribe(ctx context.Context, topic string) error {
	d.mu.Lock()
	cancel, ok := d.cancels[topic]
	delete(d.cancels, topic)
	delete(d.queues, topic)
	d.mu.Unlock()
	if ok {
		cancel()
	}
	return nil
}

func (d *Driver) OnError(handler func(err error)) { d.onErr = handler }
func (d *Driver) OnDisconnect(handler func())      { d.onClose = handler }

func (d *Driver) decode(_ context.Context, topic string, raw []byte) (message.Message, error) {
	decoded, err := d.codec.Decode(context.Background(), raw)
	if err != nil {
		return message.Message{}, err
	}
	m, _ := decoded.(map[string]any)
	msg := message.Message{Type: topic}
	if m != nil {
		if t, ok := m["type"].(string); ok && t != "" {
			msg.Type = t
		}
		msg.Payload = m["payload"]
		if tid, ok := m["traceId"].(string); ok {
			msg.TraceID = tid
		}
		if meta, ok := m["metadata"].(map[string]any); ok {
			msg.Metadata = meta
		}
	}
	return msg, nil
}
