//go:build integration

package postgresadapter_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/udamir/testurio/pkg/adapter/postgresadapter"
)

// TestDriver_InitAndExec spins up a real Postgres via testcontainers-go,
// mirroring test/database/client.go's container-per-test pattern, and
// verifies the native *pgxpool.Pool handle GetClient returns is directly
// usable by a DataSource.Exec closure.
func TestDriver_InitAndExec(t *testing.T) {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testurio"),
		postgres.WithUsername("testurio"),
		postgres.WithPassword("testurio"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = testcontainers.TerminateContainer(container)
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	d := postgresadapter.New(postgresadapter.Config{DSN: dsn})
	require.NoError(t, d.Init(ctx))
	t.Cleanup(func() { _ = d.Dispose(ctx) })
	require.True(t, d.IsConnected())

	pool, ok := d.GetClient().(*pgxpool.Pool)
	require.True(t, ok)

	_, err = pool.Exec(ctx, "CREATE TABLE users (id int primary key, name text)")
	require.NoError(t, err)
	_, err = pool.Exec(ctx, "INSERT INTO users VALUES (1, 'Alice')")
	require.NoError(t, err)

	var name string
	require.NoError(t, pool.QueryRow(ctx, "SELECT name FROM users WHERE id=1").Scan(&name))
	require.Equal(t, "Alice", name)
}
