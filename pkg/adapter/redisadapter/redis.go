// Package redisadapter implements transport.Publisher/Subscriber (pub/sub
// channels) and transport.DataSourceDriver (KV store) over go-redis.
package redisadapter

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/udamir/testurio/pkg/adapter"
	"github.com/udamir/testurio/pkg/codec"
	"github.com/udamir/testurio/pkg/message"
	"github.com/udamir/testurio/pkg/transport"
)

func init() {
	_ = adapter.Default.Register("redis-pubsub", NewPubSub)
	_ = adapter.Default.Register("redis-datasource", NewDataSource)
}

// --- Publisher/Subscriber -------------------------------------------------

// PubSubDriver wraps a *redis.Client and implements both
// transport.Publisher and transport.Subscriber.
type PubSubDriver struct {
	codec  codec.Codec
	client *redis.Client

	mu      sync.Mutex
	subs    map[string]*redis.PubSub
	onErr   func(error)
	onClose func()
}

// NewPubSub constructs a redisadapter.PubSubDriver against addr using c to
// encode/decode published payloads.
func NewPubSub(addr string, c codec.Codec) *PubSubDriver {
	return &PubSubDriver{
		codec:  c,
		client: redis.NewClient(&redis.Options{Addr: addr}),
		subs:   map[string]*redis.PubSub{},
	}
}

func (p *PubSubDriver) Publish(ctx context.Context, topic string, msg message.Message, opts transport.PublishOptions) error {
	raw, err := p.codec.Encode(ctx, map[string]any{
		"type": msg.Type, "payload": msg.Payload, "traceId": msg.TraceID, "metadata": msg.Metadata,
		"key": opts.Key, "headers": opts.Headers,
	})
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, topic, raw).Err()
}

func (p *PubSubDriver) PublishBatch(ctx context.Context, topic string, msgs []message.Message, opts transport.PublishOptions) error {
	pipe := p.client.Pipeline()
	for _, m := range msgs {
		raw, err := p.codec.Encode(ctx, map[string]any{"type": m.Type, "payload": m.Payload, "traceId": m.TraceID, "metadata": m.Metadata})
		if err != nil {
			return err
		}
		pipe.Publish(ctx, topic, raw)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (p *PubSubDriver) Close(ctx context.Context) error {
	p.mu.Lock()
	subs := make([]*redis.PubSub, 0, len(p.subs))
	for _, s := range p.subs {
		subs = append(subs, s)
	}
	p.mu.Unlock()
	for _, s := range subs {
		_ = s.Close()
	}
	return p.client.Close()
}

func (p *PubSubDriver) IsConnected() bool {
	return p.client.Ping(context.Background()).Err() == nil
}

// Subscribe subscribes topic and starts a background receive loop feeding
// onMessage, mirroring wsadapter's per-connection read loop but over a
// Redis pub/sub channel.
func (p *PubSubDriver) Subscribe(ctx context.Context, topic string, onMessage transport.InboundHandler) error {
	sub := p.client.Subscribe(ctx, topic)
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("redisadapter: subscribe %s: %w", topic, err)
	}
	p.mu.Lock()
	p.subs[topic] = sub
	p.mu.Unlock()

	ch := sub.Channel()
	go func() {
		for payload := range ch {
			msg, err := p.decode(ctx, topic, []byte(payload.Payload))
			if err != nil {
				slog.Warn("redisadapter: invalid message", "topic", topic, "error", err)
				if p.onErr != nil {
					p.onErr(err)
				}
				continue
			}
			onMessage(ctx, msg)
		}
		if p.onClose != nil {
			p.onClose()
		}
	}()
	return nil
}

func (p *PubSubDriver) Unsubscribe(ctx context.Context, topic string) error {
	p.mu.Lock()
	sub, ok := p.subs[topic]
	delete(p.subs, topic)
	p.mu.Unlock()
	if !ok {
		return nil
	}
	return sub.Unsubscribe(ctx, topic)
}

func (p *PubSubDriver) OnError(handler func(err error)) { p.onErr = handler }
func (p *PubSubDriver) OnDisconnect(handler func())     { p.onClose = handler }

func (p *PubSubDriver) decode(_ context.Context, topic string, raw []byte) (message.Message, error) {
	decoded, err := p.codec.Decode(context.Background(), raw)
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

// --- DataSource (KV) -------------------------------------------------------

// DataSourceDriver exposes the native *redis.Client as a
// transport.DataSourceDriver for KV-flavoured DataSource components.
type DataSourceDriver struct {
	addr   string
	client *redis.Client

	mu        sync.Mutex
	connected bool
	handlers  map[transport.DataSourceEvent][]func(error)
}

// NewDataSource constructs a redisadapter.DataSourceDriver against addr.
func NewDataSource(addr string) *DataSourceDriver {
	return &DataSourceDriver{addr: addr, handlers: map[transport.DataSourceEvent][]func(error){}}
}

func (d *DataSourceDriver) Init(ctx context.Context) error {
	d.client = redis.NewClient(&redis.Options{Addr: d.addr})
	if err := d.client.Ping(ctx).Err(); err != nil {
		d.emit(transport.DataSourceError, err)
		return fmt.Errorf("redisadapter: ping: %w", err)
	}
	d.mu.Lock()
	d.connected = true
	d.mu.Unlock()
	d.emit(transport.DataSourceConnected, nil)
	return nil
}

func (d *DataSourceDriver) Dispose(ctx context.Context) error {
	if d.client == nil {
		return nil
	}
	err := d.client.Close()
	d.mu.Lock()
	d.connected = false
	d.mu.Unlock()
	d.emit(transport.DataSourceDisconnected, nil)
	return err
}

func (d *DataSourceDriver) GetClient() any { return d.client }

func (d *DataSourceDriver) IsConnected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connected
}

func (d *DataSourceDriver) On(event transport.DataSourceEvent, handler func(err error)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[event] = append(d.handlers[event], handler)
}

func (d *DataSourceDriver) emit(event transport.DataSourceEvent, err error) {
	d.mu.Lock()
	handlers := append([]func(error){}, d.handlers[event]...)
	d.mu.Unlock()
	for _, h := range handlers {
		h(err)
	}
}
