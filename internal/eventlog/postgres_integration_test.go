//go:build integration

package eventlog

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	postgresmodule "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"switchyard/pkg/models"
)

func setupPostgres(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	container, err := postgresmodule.Run(ctx, "postgres:15",
		postgresmodule.WithDatabase("test_db"),
		postgresmodule.WithUsername("test_user"),
		postgresmodule.WithPassword("test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	conn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sql.Open("postgres", conn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.PingContext(ctx))

	require.NoError(t, Migrate(db))
	// a second run is a no-op
	require.NoError(t, Migrate(db))
	return db
}

func TestPostgres_AppendAndQuery(t *testing.T) {
	db := setupPostgres(t)
	log := NewPostgres(db)
	ctx := context.Background()

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 6; i++ {
		eventType := "order.created"
		if i%2 == 1 {
			eventType = "order.shipped"
		}
		ev := models.NewEventBuilder(eventType).
			WithID(fmt.Sprintf("e%d", i)).
			WithSource("shop").
			WithStream("order-1", 0).
			WithPayloadField("n", i).
			WithTimestamp(base.Add(time.Duration(i) * time.Minute)).
			Build()
		stored, err := log.Append(ctx, ev)
		require.NoError(t, err)
		assert.Equal(t, int64(i+1), stored.Version)
	}

	dup, err := log.Append(ctx, models.NewEventBuilder("order.created").WithID("e2").WithSource("shop").Build())
	require.NoError(t, err)
	assert.Equal(t, int64(3), dup.Version)

	shipped, err := log.GetEvents(ctx, Query{EventTypes: []string{"order.shipped"}})
	require.NoError(t, err)
	require.Len(t, shipped, 3)
	assert.Equal(t, "e1", shipped[0].ID)
	assert.Equal(t, float64(1), shipped[0].Payload["n"])
	assert.True(t, base.Add(time.Minute).Equal(shipped[0].Timestamp))

	from := base.Add(2 * time.Minute)
	page, err := log.GetEvents(ctx, Query{FromTimestamp: &from, Offset: 1, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "e3", page[0].ID)
	assert.Equal(t, "e4", page[1].ID)

	versions, err := log.GetEvents(ctx, Query{FromVersion: 5, StreamIDs: []string{"order-1"}})
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, int64(6), versions[1].Version)
}
