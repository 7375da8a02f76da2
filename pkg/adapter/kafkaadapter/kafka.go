// Package kafkaadapter implements transport.Publisher/Subscriber over
// Kafka using IBM/sarama.
package kafkaadapter

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/udamir/testurio/pkg/adapter"
	"github.com/udamir/testurio/pkg/codec"
	"github.com/udamir/testurio/pkg/message"
	"github.com/udamir/testurio/pkg/transport"
)

func init() {
	_ = adapter.Default.Register("kafka-publisher", NewPublisher)
	_ = adapter.Default.Register("kafka-subscriber", NewSubscriber)
}

// Config carries broker addresses and the testMode knob that
// tightens default timeouts (heartbeat, rebalance, fetch wait) on the
// adapter for faster test turnaround.
type Config struct {
	Brokers  []string
	GroupID  string
	TestMode bool
}

func newSaramaConfig(cfg Config) *sarama.Config {
	sc := sarama.NewConfig()
	sc.Producer.Return.Successes = true
	sc.Consumer.Return.Errors = true
	if cfg.TestMode {
		sc.Consumer.Group.Heartbeat.Interval = 200 * time.Millisecond
		sc.Consumer.Group.Session.Timeout = 2 * time.Second
		sc.Consumer.MaxWaitTime = 100 * time.Millisecond
	}
	return sc
}

// PublisherDriver wraps a sarama.SyncProducer.
type PublisherDriver struct {
	codec    codec.Codec
	producer sarama.SyncProducer
}

// NewPublisher constructs a PublisherDriver; Publisher/Subscriber are
// registered separately.
func NewPublisher(cfg Config, c codec.Codec) (*PublisherDriver, error) {
	producer, err := sarama.NewSyncProducer(cfg.Brokers, newSaramaConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("kafkaadapter: new producer: %w", err)
	}
	return &PublisherDriver{codec: c, producer: producer}, nil
}

func (p *PublisherDriver) Publish(ctx context.Context, topic string, msg message.Message, opts transport.PublishOptions) error {
	raw, err := p.codec.Encode(ctx, map[string]any{"type": msg.Type, "payload": msg.Payload, "traceId": msg.TraceID, "metadata": msg.Metadata})
	if err != nil {
		return err
	}
	kmsg := &sarama.ProducerMessage{Topic: topic, Value: sarama.ByteEncoder(raw)}
	if opts.Key != "" {
		kmsg.Key = sarama.StringEncoder(opts.Key)
	}
	for k, v := range opts.Headers {
		kmsg.Headers = append(kmsg.Headers, sarama.RecordHeader{Key: []byte(k), Value: []byte(v)})
	}
	_, _, err = p.producer.SendMessage(kmsg)
	return err
}

func (p *PublisherDriver) PublishBatch(ctx context.Context, topic string, msgs []message.Message, opts transport.PublishOptions) error {
	batch := make([]*sarama.ProducerMessage, 0, len(msgs))
	for _, m := range msgs {
		raw, err := p.codec.Encode(ctx, map[string]any{"type": m.Type, "payload": m.Payload, "traceId": m.TraceID, "metadata": m.Metadata})
		if err != nil {
			return err
		}
		kmsg := &sarama.ProducerMessage{Topic: topic, Value: sarama.ByteEncoder(raw)}
		if opts.Key != "" {
			kmsg.Key = sarama.StringEncoder(opts.Key)
		}
		batch = append(batch, kmsg)
	}
	return p.producer.SendMessages(batch)
}

func (p *PublisherDriver) Close(ctx context.Context) error { return p.producer.Close() }

func (p *PublisherDriver) IsConnected() bool { return p.producer != nil }

// SubscriberDriver wraps a sarama consumer group with a dynamic topic set:
// one goroutine per consumed partition feeds a callback.
type SubscriberDriver struct {
	codec  codec.Codec
	client sarama.ConsumerGroup
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	topics  map[string]transport.InboundHandler
	onErr   func(error)
	onClose func()
}

// NewSubscriber constructs a SubscriberDriver bound to a consumer group.
func NewSubscriber(cfg Config, c codec.Codec) (*SubscriberDriver, error) {
	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, newSaramaConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("kafkaadapter: new consumer group: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &SubscriberDriver{codec: c, client: group, ctx: ctx, cancel: cancel, topics: map[string]transport.InboundHandler{}}
	go s.consumeErrors()
	return s, nil
}

func (s *SubscriberDriver) consumeErrors() {
	for err := range s.client.Errors() {
		slog.Warn("kafkaadapter: consumer error", "error", err)
		if s.onErr != nil {
			s.onErr(err)
		}
	}
}

// Subscribe adds topic to the dynamic topic set and (re)starts the consume
// loop over the current topic set, mirroring subscriber.go's
// dynamic-subscribe-set pattern generalized from channel names to topics.
func (s *SubscriberDriver) Subscribe(ctx context.Context, topic string, onMessage transport.InboundHandler) error {
	s.mu.Lock()
	s.topics[topic] = onMessage
	topics := s.topicList()
	s.mu.Unlock()
	go s.consumeLoop(topics)
	return nil
}

func (s *SubscriberDriver) topicList() []string {
	topics := make([]string, 0, len(s.topics))
	for t := range s.topics {
		topics = append(topics, t)
	}
	return topics
}

func (s *SubscriberDriver) consumeLoop(topics []string) {
	handler := &groupHandler{driver: s}
	for {
		if err := s.client.Consume(s.ctx, topics, handler); err != nil {
			if s.ctx.Err() != nil {
				return
			}
			slog.Warn("kafkaadapter: consume error", "error", err)
		}
		if s.ctx.Err() != nil {
			return
		}
	}
}

func (s *SubscriberDriver) Unsubscribe(ctx context.Context, topic string) error {
	s.mu.Lock()
	delete(s.topics, topic)
	s.mu.Unlock()
	return nil
}

func (s *SubscriberDriver) OnError(handler func(err error)) { s.onErr = handler }
func (s *SubscriberDriver) OnDisconnect(handler func())     { s.onClose = handler }

func (s *SubscriberDriver) Close(ctx context.Context) error {
	s.cancel()
	err := s.client.Close()
	if s.onClose != nil {
		s.onClose()
	}
	return err
}

// groupHandler adapts sarama.ConsumerGroupHandler to the subscriber's
// per-topic onMessage callbacks.
type groupHandler struct {
	driver *SubscriberDriver
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *groupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for kmsg := range claim.Messages() {
		h.driver.mu.Lock()
		onMessage, ok := h.driver.topics[kmsg.Topic]
		h.driver.mu.Unlock()
		if !ok {
			continue
		}
		msg, err := h.driver.decode(kmsg)
		if err != nil {
			slog.Warn("kafkaadapter: invalid message", "topic", kmsg.Topic, "error", err)
			continue
		}
		onMessage(sess.Context(), msg)
		sess.MarkMessage(kmsg, "")
	}
	return nil
}

func (s *SubscriberDriver) decode(kmsg *sarama.ConsumerMessage) (message.Message, error) {
	decoded, err := s.codec.Decode(context.Background(), kmsg.Value)
	if err != nil {
		return message.Message{}, err
	}
	m, _ := decoded.(map[string]any)
	msg := message.Message{Type: kmsg.Topic}
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
