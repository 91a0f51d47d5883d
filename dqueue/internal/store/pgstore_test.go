package store_test

import (
	"context"
	"database/sql"
	"os"
	"strings"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"github.com/rise-and-shine/durablequeue/dqueue/internal/store"
)

// setupTestStore opens a real PostgreSQL connection from DQUEUE_TEST_POSTGRES_DSN and
// migrates a uniquely-named schema for the test to use, dropped on cleanup. Tests in
// this file are skipped when the env var is unset: the claim/lock/notify semantics they
// exercise have no meaningful in-memory substitute.
func setupTestStore(t *testing.T) *store.PgStore {
	t.Helper()

	dsn := strings.TrimSpace(os.Getenv("DQUEUE_TEST_POSTGRES_DSN"))
	if dsn == "" {
		t.Skip("DQUEUE_TEST_POSTGRES_DSN not set, skipping PostgreSQL-backed store test")
	}

	sqldb, err := sql.Open("pgx", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqldb.Close() })

	db := bun.NewDB(sqldb, pgdialect.New())

	schema := "dqueue_test_" + schemaSuffix()
	const table = "durable_queue_messages"

	ctx := context.Background()
	err = store.Migrate(ctx, db, schema, table)
	require.NoError(t, err)

	t.Cleanup(func() {
		_, _ = db.NewRaw("DROP SCHEMA IF EXISTS ? CASCADE", bun.Ident(schema)).Exec(context.Background())
	})

	return store.New(db, schema, table, time.Minute)
}

func newRow(queue, payload string) store.Row {
	return store.Row{
		PayloadType: "test.payload",
		Payload:     []byte(payload),
		Metadata:    map[string]string{"queue": queue},
	}
}

func TestPgStore_InsertAndClaim_FIFO(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	idA, err := s.Insert(ctx, "fifo", newRow("fifo", "A"), 0)
	require.NoError(t, err)
	idB, err := s.Insert(ctx, "fifo", newRow("fifo", "B"), 0)
	require.NoError(t, err)
	idC, err := s.Insert(ctx, "fifo", newRow("fifo", "C"), 0)
	require.NoError(t, err)

	count, err := s.CountQueued(ctx, "fifo")
	require.NoError(t, err)
	require.Equal(t, 3, count)

	rows, err := s.ListQueued(ctx, "fifo", "asc", 0, 20)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, []string{idA, idB, idC}, []string{rows[0].ID, rows[1].ID, rows[2].ID})

	for _, want := range []string{idA, idB, idC} {
		claimed, err := s.ClaimNextDue(ctx, "fifo", time.Now())
		require.NoError(t, err)
		require.NotNil(t, claimed)
		require.Equal(t, want, claimed.ID)
		require.NoError(t, s.Ack(ctx, claimed.ID))
	}

	claimed, err := s.ClaimNextDue(ctx, "fifo", time.Now())
	require.NoError(t, err)
	require.Nil(t, claimed)
}

func TestPgStore_InsertAsDeadLetter(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	id, err := s.InsertAsDeadLetter(ctx, "dlq", newRow("dlq", "oops"), "bad input")
	require.NoError(t, err)

	count, err := s.CountQueued(ctx, "dlq")
	require.NoError(t, err)
	require.Equal(t, 0, count)

	deadLetters, err := s.ListDeadLetters(ctx, "dlq", "asc", 0, 20)
	require.NoError(t, err)
	require.Len(t, deadLetters, 1)
	require.Equal(t, id, deadLetters[0].ID)
	require.True(t, deadLetters[0].IsDeadLetter)

	claimed, err := s.ClaimNextDue(ctx, "dlq", time.Now())
	require.NoError(t, err)
	require.Nil(t, claimed)
}

func TestPgStore_RescheduleAndMarkDeadLetter(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	id, err := s.Insert(ctx, "redeliver", newRow("redeliver", "m"), 0)
	require.NoError(t, err)

	claimed, err := s.ClaimNextDue(ctx, "redeliver", time.Now())
	require.NoError(t, err)
	require.Equal(t, id, claimed.ID)

	require.NoError(t, s.Reschedule(ctx, id, time.Now().Add(-time.Second), "handler exploded"))

	row, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "handler exploded", *row.LastDeliveryError)
	require.Equal(t, 1, row.DeliveryAttempts)

	reclaimed, err := s.ClaimNextDue(ctx, "redeliver", time.Now())
	require.NoError(t, err)
	require.Equal(t, id, reclaimed.ID)

	require.NoError(t, s.MarkDeadLetter(ctx, id, "exhausted"))

	count, err := s.CountQueued(ctx, "redeliver")
	require.NoError(t, err)
	require.Equal(t, 0, count)

	dl, err := s.GetDeadLetter(ctx, id)
	require.NoError(t, err)
	require.True(t, dl.IsDeadLetter)
	require.Equal(t, "exhausted", *dl.LastDeliveryError)
}

func TestPgStore_Resurrect(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	id, err := s.InsertAsDeadLetter(ctx, "resurrect", newRow("resurrect", "m"), "cause")
	require.NoError(t, err)

	restored, err := s.Resurrect(ctx, id, 50*time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, restored)
	require.False(t, restored.IsDeadLetter)
	require.Equal(t, 0, restored.RedeliveryAttempts)

	claimed, err := s.ClaimNextDue(ctx, "resurrect", time.Now())
	require.NoError(t, err)
	require.Nil(t, claimed, "message should not be claimable before its resurrection delay elapses")

	time.Sleep(60 * time.Millisecond)

	claimed, err = s.ClaimNextDue(ctx, "resurrect", time.Now())
	require.NoError(t, err)
	require.NotNil(t, claimed)
	require.Equal(t, id, claimed.ID)

	again, err := s.Resurrect(ctx, "does-not-exist", time.Second)
	require.NoError(t, err)
	require.Nil(t, again)
}

func TestPgStore_Purge(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	claimedID, err := s.Insert(ctx, "purge", newRow("purge", "in-flight"), 0)
	require.NoError(t, err)
	claimed, err := s.ClaimNextDue(ctx, "purge", time.Now())
	require.NoError(t, err)
	require.Equal(t, claimedID, claimed.ID)

	_, err = s.Insert(ctx, "purge", newRow("purge", "a"), 0)
	require.NoError(t, err)
	_, err = s.Insert(ctx, "purge", newRow("purge", "b"), 0)
	require.NoError(t, err)
	_, err = s.InsertAsDeadLetter(ctx, "purge", newRow("purge", "c"), "cause")
	require.NoError(t, err)

	deleted, err := s.Purge(ctx, "purge")
	require.NoError(t, err)
	require.Equal(t, 3, deleted, "purge deletes queued + dead-lettered rows but not the in-flight claim")

	count, err := s.CountQueued(ctx, "purge")
	require.NoError(t, err)
	require.Equal(t, 1, count, "the in-flight row survives purge")

	require.NoError(t, s.Ack(ctx, claimedID))
}

func TestPgStore_QueryDueSoon_MatchesListOrder(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	idA, err := s.Insert(ctx, "duesoon", newRow("duesoon", "a"), 0)
	require.NoError(t, err)
	idB, err := s.Insert(ctx, "duesoon", newRow("duesoon", "b"), 0)
	require.NoError(t, err)
	idC, err := s.Insert(ctx, "duesoon", newRow("duesoon", "c"), 0)
	require.NoError(t, err)

	upTo := time.Now().Add(-2 * time.Second)

	all, err := s.QueryDueSoon(ctx, "duesoon", upTo, 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, []string{idA, idB, idC}, []string{all[0].ID, all[1].ID, all[2].ID})

	limited, err := s.QueryDueSoon(ctx, "duesoon", upTo, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	require.Equal(t, []string{idA, idB}, []string{limited[0].ID, limited[1].ID})
}

func TestPgStore_OrderedKey_HeadOfLineBlock(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	insertOrdered := func(key string, order int64) string {
		row := newRow("ordered", key)
		row.DeliveryMode = "ordered"
		row.Key = &key
		row.KeyOrder = &order
		id, err := s.Insert(ctx, "ordered", row, 0)
		require.NoError(t, err)
		return id
	}

	msg1 := insertOrdered("K1", 0)
	msg2 := insertOrdered("K1", 1)
	msg3 := insertOrdered("K1", 2)

	claimed, err := s.ClaimNextDue(ctx, "ordered", time.Now())
	require.NoError(t, err)
	require.Equal(t, msg1, claimed.ID, "the lowest key_order claims first")

	// msg2/msg3 cannot be claimed while msg1 is still in flight.
	claimed, err = s.ClaimNextDue(ctx, "ordered", time.Now())
	require.NoError(t, err)
	require.Nil(t, claimed)

	require.NoError(t, s.MarkDeadLetter(ctx, msg1, "boom"))

	// msg2/msg3 still blocked: msg1 is dead-lettered, not resolved.
	claimed, err = s.ClaimNextDue(ctx, "ordered", time.Now())
	require.NoError(t, err)
	require.Nil(t, claimed)

	_, err = s.Resurrect(ctx, msg1, 0)
	require.NoError(t, err)
	require.NoError(t, s.Ack(ctx, msg1))

	claimed, err = s.ClaimNextDue(ctx, "ordered", time.Now())
	require.NoError(t, err)
	require.Equal(t, msg2, claimed.ID)
	require.NoError(t, s.Ack(ctx, msg2))

	claimed, err = s.ClaimNextDue(ctx, "ordered", time.Now())
	require.NoError(t, err)
	require.Equal(t, msg3, claimed.ID)
	require.NoError(t, s.Ack(ctx, claimed.ID))
}

// schemaSuffix avoids pulling in google/uuid just for a schema-name disambiguator; a
// nanosecond-resolution timestamp is unique enough across a single test binary run.
func schemaSuffix() string {
	return strings.ReplaceAll(time.Now().Format("20060102150405.000000000"), ".", "")
}
