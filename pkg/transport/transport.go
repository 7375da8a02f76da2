// Package transport defines the adapter boundary: the
// interfaces every concrete protocol/MQ/datasource plug-in implements, and
// which the engine (component, hook, scenario) depends on exclusively. No
// package under pkg/component ever imports a concrete adapter.
package transport

import (
	"context"

	"github.com/udamir/testurio/pkg/message"
)

// Characteristics describes what a Driver kind can do, so step builders can
// reject operations the transport does not support at build time.
type Characteristics struct {
	Type              string
	Async             bool
	SupportsProxy     bool
	SupportsMock      bool
	Streaming         bool
	RequiresConnection bool
	Bidirectional     bool
}

// InboundHandler is invoked by a driver when it delivers a message from the
// wire into the engine. Implementations must not block for long. The
// component does not serialise handler-chain execution: concurrent
// deliveries run their chains concurrently.
type InboundHandler func(ctx context.Context, msg message.Message)

// SyncDriver is the transport contract for request/response protocols (HTTP,
// a generic unary RPC).
type SyncDriver interface {
	Characteristics() Characteristics

	StartServer(ctx context.Context, listen message.Address, onRequest InboundHandler) error
	StopServer(ctx context.Context) error

	CreateClient(ctx context.Context, target message.Address) error
	CloseClient(ctx context.Context) error

	// Request sends op/data from the client side and blocks for the response.
	Request(ctx context.Context, msg message.Message) (message.Message, error)

	// Respond sends a reply from the server side, correlated by traceID, for
	// mock or proxy mode.
	Respond(ctx context.Context, traceID string, reply message.Message) error
}

// AsyncDriver is the transport contract for message-stream protocols
// (WebSocket, TCP, gRPC streaming).
type AsyncDriver interface {
	Characteristics() Characteristics

	StartServer(ctx context.Context, listen message.Address, onMessage InboundHandler) error
	StopServer(ctx context.Context) error

	CreateClient(ctx context.Context, target message.Address, onMessage InboundHandler) error
	CloseClient(ctx context.Context) error

	SendMessage(ctx context.Context, msg message.Message) error
}

// Publisher is the transport contract an MQ adapter exposes for publishing.
type Publisher interface {
	Publish(ctx context.Context, topic string, msg message.Message, opts PublishOptions) error
	PublishBatch(ctx context.Context, topic string, msgs []message.Message, opts PublishOptions) error
	Close(ctx context.Context) error
	IsConnected() bool
}

// PublishOptions carries optional per-publish metadata (partition key, wire
// headers) that MQ adapters may use.
type PublishOptions struct {
	Key     string
	Headers map[string]string
}

// Subscriber is the transport contract an MQ adapter exposes for consuming,
// with a dynamic topic set.
type Subscriber interface {
	Subscribe(ctx context.Context, topic string, onMessage InboundHandler) error
	Unsubscribe(ctx context.Context, topic string) error
	OnError(handler func(err error))
	OnDisconnect(handler func())
	Close(ctx context.Context) error
}

// DataSourceEvent names the lifecycle events a DataSource driver emits.
type DataSourceEvent string

const (
	DataSourceConnected    DataSourceEvent = "connected"
	DataSourceDisconnected DataSourceEvent = "disconnected"
	DataSourceError        DataSourceEvent = "error"
)

// DataSourceDriver wraps a native client handle (KV store, RDBMS pool,
// document DB) and exposes it to component.DataSource.Exec unchanged.
type DataSourceDriver interface {
	Init(ctx context.Context) error
	Dispose(ctx context.Context) error
	GetClient() any
	IsConnected() bool
	On(event DataSourceEvent, handler func(err error))
}
