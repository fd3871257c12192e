package storage

import (
	"context"
	"fmt"
	"log/slog"
)

// eventsTableDDL creates the security event log. MergeTree ordered by
// creation time matches the access pattern: trailing-window counts and
// newest-first queries.
const eventsTableDDL = `
CREATE TABLE IF NOT EXISTS %s (
	id            UUID,
	event_type    LowCardinality(String),
	severity      LowCardinality(String),
	user_id       Nullable(String),
	resource_type Nullable(String),
	resource_id   Nullable(String),
	ip_address    Nullable(String),
	user_agent    Nullable(String),
	details       String DEFAULT '{}',
	created_at    DateTime64(3, 'UTC'),
	resolved_at   Nullable(DateTime64(3, 'UTC')),
	resolved_by   Nullable(String)
) ENGINE = MergeTree()
ORDER BY (created_at, id)
`

// Migrator applies the storage schema on startup.
type Migrator struct {
	client *ClickHouseClient
}

// NewMigrator creates a new Migrator.
func NewMigrator(client *ClickHouseClient) *Migrator {
	return &Migrator{client: client}
}

// Run ensures the database and tables exist.
func (m *Migrator) Run(ctx context.Context) error {
	if err := m.client.EnsureDatabase(ctx); err != nil {
		return WrapQueryError("EnsureDatabase", "", err)
	}

	ddl := fmt.Sprintf(eventsTableDDL, eventsTable)
	if err := m.client.Exec(ctx, ddl); err != nil {
		return WrapQueryError("Migrate", eventsTable, err)
	}

	slog.Info("storage schema ready", "table", eventsTable)
	return nil
}
