// Package postgresadapter implements transport.DataSourceDriver over a pgx
// connection pool. DataSource hands the native handle to the user's exec
// closure verbatim, so this adapter exposes *pgxpool.Pool directly rather
// than wrapping it behind a generated ORM client.
package postgresadapter

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/udamir/testurio/pkg/adapter"
	"github.com/udamir/testurio/pkg/transport"
)

func init() {
	_ = adapter.Default.Register("postgres", New)
}

// Config mirrors the database.Config shape (host/port/user/
// password/database + pool tuning), generalized to a DSN-first adapter.
type Config struct {
	DSN             string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

// Driver wraps a pgxpool.Pool as a transport.DataSourceDriver.
type Driver struct {
	cfg  Config
	pool *pgxpool.Pool

	mu        sync.Mutex
	connected bool
	handlers  map[transport.DataSourceEvent][]func(error)
}

// New constructs a postgresadapter.Driver from cfg. The pool is not opened
// until Init is called, matching transport.DataSourceDriver's lifecycle.
func New(cfg Config) *Driver {
	return &Driver{cfg: cfg, handlers: map[transport.DataSourceEvent][]func(error){}}
}

func (d *Driver) Init(ctx context.Context) error {
	poolCfg, err := pgxpool.ParseConfig(d.cfg.DSN)
	if err != nil {
		return fmt.Errorf("postgresadapter: parse dsn: %w", err)
	}
	if d.cfg.MaxConns > 0 {
		poolCfg.MaxConns = d.cfg.MaxConns
	}
	if d.cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = d.cfg.MaxConnLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		d.emit(transport.DataSourceError, err)
		return fmt.Errorf("postgresadapter: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		d.emit(transport.DataSourceError, err)
		return fmt.Errorf("postgresadapter: ping: %w", err)
	}

	d.pool = pool
	d.mu.Lock()
	d.connected = true
	d.mu.Unlock()
	d.emit(transport.DataSourceConnected, nil)
	slog.Info("postgresadapter: connected")
	return nil
}

// Dispose closes the pool. pgxpool's Close reports no error, so Dispose
// always returns nil.
func (d *Driver) Dispose(ctx context.Context) error {
	if d.pool == nil {
		return nil
	}
	d.pool.Close()
	d.mu.Lock()
	d.connected = false
	d.mu.Unlock()
	d.emit(transport.DataSourceDisconnected, nil)
	return nil
}

// GetClient returns the native *pgxpool.Pool handle, exposed verbatim to
// DataSource.Exec closures
func (d *Driver) GetClient() any { return d.pool }

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
