// Package store is the bun/pgx-backed implementation of dqueue.MessageStore: the
// shared queue table, its supporting indexes/trigger, and the raw SQL that drives
// claim-via-skip-locked and the rest of the message lifecycle.
package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/code19m/errx"
	"github.com/uptrace/bun"
)

const migrationTimeout = 10 * time.Second

// NotifyChannel is the single LISTEN/NOTIFY channel the change notifier subscribes
// to; every schema's insert trigger NOTIFYs on it with a JSON payload carrying the
// table name so one connection can demultiplex several queue tables.
const NotifyChannel = "dqueue_changes"

func tableName(schema, table string) string {
	return fmt.Sprintf("%s.%s", schema, table)
}

func notifyFunctionName(schema string) string {
	return fmt.Sprintf("%s.dqueue_notify_change", schema)
}

// GenerateSchemaSQL returns the full DDL for the shared queue table: table,
// indexes, and the AFTER INSERT trigger that NOTIFYs NotifyChannel.
func GenerateSchemaSQL(schema, table string) string {
	qt := tableName(schema, table)
	fn := notifyFunctionName(schema)

	var sql strings.Builder
	writeSection(&sql, createSchema(schema))
	writeSection(&sql, createTable(qt))
	writeSection(&sql, createIndexes(qt))
	writeSection(&sql, createNotifyTrigger(fn, qt))
	return sql.String()
}

func writeSection(b *strings.Builder, s string) {
	b.WriteString(s)
	b.WriteString("\n")
}

func createSchema(schema string) string {
	return fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s;`, schema)
}

func createTable(table string) string {
	return fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id UUID PRIMARY KEY,

	queue_name TEXT NOT NULL,

	payload_type TEXT NOT NULL,
	payload BYTEA NOT NULL,
	metadata JSONB NOT NULL DEFAULT '{}',

	added_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	next_delivery_at TIMESTAMPTZ NOT NULL,

	delivery_attempts INT NOT NULL DEFAULT 0,
	redelivery_attempts INT NOT NULL DEFAULT 0,
	last_delivery_error TEXT,
	is_dead_letter BOOLEAN NOT NULL DEFAULT FALSE,

	delivery_mode TEXT NOT NULL DEFAULT 'normal',
	key TEXT,
	key_order BIGINT,

	claimed_until TIMESTAMPTZ
);`, table)
}

func createIndexes(table string) string {
	return fmt.Sprintf(`
CREATE INDEX IF NOT EXISTS idx_dqueue_due
ON %s (queue_name, is_dead_letter, next_delivery_at);

CREATE INDEX IF NOT EXISTS idx_dqueue_key_order
ON %s (queue_name, key, key_order)
WHERE key IS NOT NULL;`, table, table)
}

func createNotifyTrigger(fn, table string) string {
	return fmt.Sprintf(`
CREATE OR REPLACE FUNCTION %[1]s() RETURNS TRIGGER AS $$
BEGIN
	PERFORM pg_notify(
		'%[3]s',
		json_build_object(
			'table', TG_TABLE_NAME,
			'operation', 'insert',
			'id', NEW.id,
			'queue_name', NEW.queue_name
		)::text
	);
	RETURN NEW;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS dqueue_notify_trigger ON %[2]s;
CREATE TRIGGER dqueue_notify_trigger
	AFTER INSERT ON %[2]s
	FOR EACH ROW
	EXECUTE FUNCTION %[1]s();`, fn, table, NotifyChannel)
}

// Migrate creates the schema, table, indexes, and notify trigger if they don't
// already exist.
func Migrate(ctx context.Context, db bun.IDB, schema, table string) error {
	ctx, cancel := context.WithTimeout(ctx, migrationTimeout)
	defer cancel()

	_, err := db.ExecContext(ctx, GenerateSchemaSQL(schema, table))
	return errx.Wrap(err)
}
