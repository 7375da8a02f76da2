// Package mongoadapter implements transport.DataSourceDriver over a Mongo
// database handle, following the same native-handle pattern as
// postgresadapter.
package mongoadapter

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/udamir/testurio/pkg/adapter"
	"github.com/udamir/testurio/pkg/transport"
)

func init() {
	_ = adapter.Default.Register("mongo", New)
}

// Config holds the connection URI and target database name.
type Config struct {
	URI      string
	Database string
}

// Driver wraps a *mongo.Database as a transport.DataSourceDriver.
type Driver struct {
	cfg    Config
	client *mongo.Client
	db     *mongo.Database

	mu        sync.Mutex
	connected bool
	handlers  map[transport.DataSourceEvent][]func(error)
}

// New constructs a mongoadapter.Driver from cfg.
func New(cfg Config) *Driver {
	return &Driver{cfg: cfg, handlers: map[transport.DataSourceEvent][]func(error){}}
}

func (d *Driver) Init(ctx context.Context) error {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(d.cfg.URI))
	if err != nil {
		d.emit(transport.DataSourceError, err)
		return fmt.Errorf("mongoadapter: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		d.emit(transport.DataSourceError, err)
		return fmt.Errorf("mongoadapter: ping: %w", err)
	}

	d.client = client
	d.db = client.Database(d.cfg.Database)
	d.mu.Lock()
	d.connected = true
	d.mu.Unlock()
	d.emit(transport.DataSourceConnected, nil)
	slog.Info("mongoadapter: connected", "database", d.cfg.Database)
	return nil
}

func (d *Driver) Dispose(ctx context.Context) error {
	if d.client == nil {
		return nil
	}
	if err := d.client.Disconnect(ctx); err != nil {
		slog.Warn("mongoadapter: disconnect failed", "error", err)
	}
	d.mu.Lock()
	d.connected = false
	d.mu.Unlock()
	d.emit(transport.DataSourceDisconnected, nil)
	return nil
}

// GetClient returns the native *mongo.Database handle.
func (d *Driver) GetClient() any { return d.db }

func (d *Driver) IsConnected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connected
}

func (d *Driver) On(event transport.DataSourceEvent, handler func(err error)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[event] = append(d.handlers[event], handler)
}

func (d *Driver) emit(event transport.DataSourceEvent, err error) {
	d.mu.Lock()
	handlers := append([]func(error){}, d.handlers[event]...)
	d.mu.Unlock()
	for _, h := range handlers {
		h(err)
	}
}
