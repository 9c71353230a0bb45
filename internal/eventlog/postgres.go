package eventlog

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/lib/pq"

	"switchyard/pkg/metrics"
	"switchyard/pkg/models"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const metricsService = "eventlog"

// Migrate applies the embedded event log schema. It leaves db open.
func Migrate(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: "eventlog_schema_migrations"})
	if err != nil {
		return fmt.Errorf("failed to create postgres driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) Append(ctx context.Context, ev models.Event) (models.Event, error) {
	start := time.Now()

	payload, err := encodeJSONB(ev.Payload)
	if err != nil {
		return models.Event{}, fmt.Errorf("failed to encode payload: %w", err)
	}
	metadata, err := encodeJSONB(ev.Metadata)
	if err != nil {
		return models.Event{}, fmt.Errorf("failed to encode metadata: %w", err)
	}

	// the no-op update makes RETURNING yield the stored version for a duplicate id
	query := `
		INSERT INTO events (id, type, source, stream_id, payload, metadata, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET id = EXCLUDED.id
		RETURNING version
	`

	var version int64
	err = p.db.QueryRowContext(ctx, query,
		ev.ID, ev.Type, ev.Source, ev.StreamID, payload, metadata, ev.Timestamp.UTC(),
	).Scan(&version)
	observe("append", start, err)
	if err != nil {
		return models.Event{}, fmt.Errorf("failed to append event: %w", err)
	}

	out := ev.Clone()
	out.Version = version
	return out, nil
}

func (p *Postgres) GetEvents(ctx context.Context, q Query) ([]models.Event, error) {
	start := time.Now()
	q = q.normalized()

	var (
		where []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(q.EventTypes) > 0 {
		where = append(where, "type = ANY("+arg(pq.Array(q.EventTypes))+")")
	}
	if len(q.StreamIDs) > 0 {
		where = append(where, "stream_id = ANY("+arg(pq.Array(q.StreamIDs))+")")
	}
	if q.FromTimestamp != nil {
		where = append(where, "occurred_at >= "+arg(q.FromTimestamp.UTC()))
	}
	if q.ToTimestamp != nil {
		where = append(where, "occurred_at <= "+arg(q.ToTimestamp.UTC()))
	}
	if q.FromVersion > 0 {
		where = append(where, "version >= "+arg(q.FromVersion))
	}
	if q.ToVersion > 0 {
		where = append(where, "version <= "+arg(q.ToVersion))
	}

	query := `SELECT version, id, type, source, stream_id, payload, metadata, occurred_at FROM events`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY version ASC LIMIT " + arg(q.Limit) + " OFFSET " + arg(q.Offset)

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		observe("query", start, err)
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var (
			ev                models.Event
			payload, metadata []byte
		)
		if err := rows.Scan(
			&ev.Version,
			&ev.ID,
			&ev.Type,
			&ev.Source,
			&ev.StreamID,
			&payload,
			&metadata,
			&ev.Timestamp,
		); err != nil {
			observe("query", start, err)
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if err := json.Unmarshal(payload, &ev.Payload); err != nil {
			return nil, fmt.Errorf("failed to decode payload of event %s: %w", ev.ID, err)
		}
		if err := json.Unmarshal(metadata, &ev.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata of event %s: %w", ev.ID, err)
		}
		ev.Timestamp = ev.Timestamp.UTC()
		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		observe("query", start, err)
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	observe("query", start, nil)
	return events, nil
}

func encodeJSONB(m map[string]interface{}) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func observe(operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.IncDatabaseQuery(metricsService, "postgres", operation, status)
	metrics.ObserveDatabaseQueryDuration(metricsService, "postgres", operation, time.Since(start))
}
