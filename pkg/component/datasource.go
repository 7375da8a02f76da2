package component

import (
	"context"
	"fmt"

	"github.com/udamir/testurio/pkg/transport"
)

// DataSource wraps a native client handle (Postgres pool, Redis client,
// Mongo database) for direct use by assertion steps — no hook registry, no
// wire protocol: calls for exposing the underlying driver
// unchanged rather than modelling every possible query shape.
type DataSource struct {
	Base
	driver transport.DataSourceDriver
}

// NewDataSource wires driver; Start/Stop map to Init/Dispose.
func NewDataSource(name string, driver transport.DataSourceDriver) *DataSource {
	d := &DataSource{Base: NewBase(name, ScopeScenario), driver: driver}
	d.StartFn = driver.Init
	d.StopFn = driver.Dispose
	driver.On(transport.DataSourceError, func(err error) {
		d.ReportError(fmt.Errorf("testurio/component %q: driver: %w", d.Name(), err))
	})
	return d
}

// Client returns the underlying native client handle (e.g. *pgxpool.Pool,
// *redis.Client, *mongo.Database) for a step builder's exec/assert chain to
// use directly.
func (d *DataSource) Client() any { return d.driver.GetClient() }

// IsConnected reports the driver's current connectivity.
func (d *DataSource) IsConnected() bool { return d.driver.IsConnected() }

// Exec runs fn with the underlying client handle, the shape every concrete
// datasource adapter's step builder extension expects.
func (d *DataSource) Exec(ctx context.Context, fn func(ctx context.Context, client any) (any, error)) (any, error) {
	return fn(ctx, d.driver.GetClient())
}
