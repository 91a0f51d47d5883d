package dqueue_test

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"github.com/rise-and-shine/durablequeue/dqueue"
	"github.com/rise-and-shine/durablequeue/observability/alert"
	"github.com/rise-and-shine/durablequeue/observability/logger"
)

// newTestEngine opens a real PostgreSQL connection from DQUEUE_TEST_POSTGRES_DSN,
// migrates a uniquely-named schema, and returns a started Engine against it. Tests
// using it are skipped when the env var is unset: claim-locking, head-of-line
// blocking, and LISTEN/NOTIFY wake-ups have no meaningful in-memory substitute.
func newTestEngine(t *testing.T, cfg dqueue.Config) dqueue.Engine {
	t.Helper()

	dsn := strings.TrimSpace(os.Getenv("DQUEUE_TEST_POSTGRES_DSN"))
	if dsn == "" {
		t.Skip("DQUEUE_TEST_POSTGRES_DSN not set, skipping PostgreSQL-backed engine test")
	}

	sqldb, err := sql.Open("pgx", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqldb.Close() })
	db := bun.NewDB(sqldb, pgdialect.New())

	pool, err := pgxpool.New(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	schema := "dqueue_engine_test_" + strings.ReplaceAll(time.Now().Format("20060102150405.000000000"), ".", "")
	cfg.Schema = schema
	if cfg.SharedQueueTableName == "" {
		cfg.SharedQueueTableName = "durable_queue_messages"
	}
	if cfg.BasePollingInterval == 0 {
		cfg.BasePollingInterval = 20 * time.Millisecond
	}
	if cfg.MaxPollingInterval == 0 {
		cfg.MaxPollingInterval = 200 * time.Millisecond
	}
	if cfg.PollingDelayIncrementFactor == 0 {
		cfg.PollingDelayIncrementFactor = 1.5
	}
	if cfg.MessageHandlingTimeout == 0 {
		cfg.MessageHandlingTimeout = 5 * time.Second
	}
	if cfg.DrainTimeout == 0 {
		cfg.DrainTimeout = 2 * time.Second
	}

	log, err := logger.New(logger.Config{Disable: true})
	require.NoError(t, err)
	alertProvider, err := alert.NewProvider(alert.Config{Disable: true}, "dqueue-test", "test")
	require.NoError(t, err)

	engine := dqueue.New(db, pool, cfg, log, alertProvider)
	require.NoError(t, engine.Start(context.Background()))

	t.Cleanup(func() {
		_ = engine.Stop(context.Background())
		_, _ = db.NewRaw("DROP SCHEMA IF EXISTS ? CASCADE", bun.Ident(schema)).Exec(context.Background())
	})

	return engine
}

// recordingHandler collects every payload handed to Handle, optionally failing the
// first failUntil invocations with errFail before succeeding.
type recordingHandler struct {
	mu        sync.Mutex
	payloads  []string
	failUntil int32
	calls     int32
}

func (h *recordingHandler) OperationID() string { return "test.recorder" }

func (h *recordingHandler) Handle(_ context.Context, msg dqueue.QueuedMessage) error {
	n := atomic.AddInt32(&h.calls, 1)

	h.mu.Lock()
	h.payloads = append(h.payloads, string(msg.Payload))
	h.mu.Unlock()

	if n <= atomic.LoadInt32(&h.failUntil) {
		return fmt.Errorf("forced failure on attempt %d", n) //nolint:err113
	}
	return nil
}

func (h *recordingHandler) Payloads() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.payloads...)
}

func (h *recordingHandler) Calls() int {
	return int(atomic.LoadInt32(&h.calls))
}

func TestEngine_SimpleFIFO(t *testing.T) {
	engine := newTestEngine(t, dqueue.Config{})
	ctx := t.Context()

	const queue = "fifo"
	for _, payload := range []string{"A", "B", "C"} {
		_, err := engine.Enqueue(ctx, queue, dqueue.Message{PayloadType: "t", Payload: []byte(payload)}, 0)
		require.NoError(t, err)
	}

	count, err := engine.QueuedCount(ctx, queue)
	require.NoError(t, err)
	require.Equal(t, 3, count)

	listed, err := engine.ListQueued(ctx, queue, dqueue.SortAsc, 0, 20)
	require.NoError(t, err)
	require.Len(t, listed, 3)
	require.Equal(t, []string{"A", "B", "C"}, []string{
		string(listed[0].Payload), string(listed[1].Payload), string(listed[2].Payload),
	})

	handler := &recordingHandler{}
	sub, err := engine.Consume(ctx, queue, handler, dqueue.ConsumeOptions{
		Parallel: 1,
		Policy:   dqueue.NewFixedPolicy(100*time.Millisecond, 3),
	})
	require.NoError(t, err)
	defer sub.Stop(ctx) //nolint:errcheck

	require.Eventually(t, func() bool { return handler.Calls() >= 3 }, 3*time.Second, 10*time.Millisecond)
	require.Equal(t, []string{"A", "B", "C"}, handler.Payloads())
}

func TestEngine_DeadLetterOnInitialEnqueue(t *testing.T) {
	engine := newTestEngine(t, dqueue.Config{})
	ctx := t.Context()

	const queue = "seed-dlq"
	id, err := engine.EnqueueAsDeadLetter(ctx, queue, dqueue.Message{PayloadType: "t", Payload: []byte("m")}, "oops")
	require.NoError(t, err)

	count, err := engine.QueuedCount(ctx, queue)
	require.NoError(t, err)
	require.Equal(t, 0, count)

	deadLetters, err := engine.ListDeadLetters(ctx, queue, dqueue.SortAsc, 0, 20)
	require.NoError(t, err)
	require.Len(t, deadLetters, 1)
	require.Equal(t, id, deadLetters[0].ID)

	handler := &recordingHandler{}
	sub, err := engine.Consume(ctx, queue, handler, dqueue.ConsumeOptions{
		Parallel: 1,
		Policy:   dqueue.NewFixedPolicy(100*time.Millisecond, 3),
	})
	require.NoError(t, err)

	time.Sleep(2 * time.Second)
	require.NoError(t, sub.Stop(ctx))

	require.Equal(t, 0, handler.Calls(), "a message seeded directly as a dead letter is never delivered")
}

func TestEngine_RedeliverySuccessOnFourthTry(t *testing.T) {
	engine := newTestEngine(t, dqueue.Config{})
	ctx := t.Context()

	const queue = "redeliver-success"
	_, err := engine.Enqueue(ctx, queue, dqueue.Message{PayloadType: "t", Payload: []byte("m")}, 0)
	require.NoError(t, err)

	handler := &recordingHandler{failUntil: 3}
	sub, err := engine.Consume(ctx, queue, handler, dqueue.ConsumeOptions{
		Parallel: 1,
		Policy:   dqueue.NewFixedPolicy(100*time.Millisecond, 5),
	})
	require.NoError(t, err)
	defer sub.Stop(ctx) //nolint:errcheck

	require.Eventually(t, func() bool { return handler.Calls() >= 4 }, 3*time.Second, 10*time.Millisecond)
	time.Sleep(300 * time.Millisecond) // settle: confirm no extra delivery past success
	require.Equal(t, 4, handler.Calls())
}

func TestEngine_ExhaustionThenResurrection(t *testing.T) {
	engine := newTestEngine(t, dqueue.Config{})
	ctx := t.Context()

	const queue = "exhaustion"
	id, err := engine.Enqueue(ctx, queue, dqueue.Message{PayloadType: "t", Payload: []byte("m")}, 0)
	require.NoError(t, err)

	handler := &recordingHandler{failUntil: 6}
	sub, err := engine.Consume(ctx, queue, handler, dqueue.ConsumeOptions{
		Parallel: 1,
		Policy:   dqueue.NewFixedPolicy(100*time.Millisecond, 5),
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return handler.Calls() >= 6 }, 4*time.Second, 10*time.Millisecond)
	time.Sleep(300 * time.Millisecond)
	require.Equal(t, 6, handler.Calls())

	count, err := engine.QueuedCount(ctx, queue)
	require.NoError(t, err)
	require.Equal(t, 0, count)

	dl, err := engine.GetDeadLetterMessage(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, dl)

	_, err = engine.ResurrectDeadLetter(ctx, id, 0)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return handler.Calls() >= 7 }, 3*time.Second, 10*time.Millisecond)

	require.NoError(t, sub.Stop(ctx))

	count, err = engine.QueuedCount(ctx, queue)
	require.NoError(t, err)
	require.Equal(t, 0, count)

	deadLetters, err := engine.ListDeadLetters(ctx, queue, dqueue.SortAsc, 0, 20)
	require.NoError(t, err)
	require.Empty(t, deadLetters)
}

func TestEngine_DueSoonQuery(t *testing.T) {
	engine := newTestEngine(t, dqueue.Config{})
	ctx := t.Context()

	const queue = "due-soon"
	for i := 0; i < 3; i++ {
		_, err := engine.Enqueue(ctx, queue, dqueue.Message{
			PayloadType: "t", Payload: []byte(strconv.Itoa(i)),
		}, 0)
		require.NoError(t, err)
	}

	upTo := time.Now().Add(-2 * time.Second)

	all, err := engine.QueryDueSoon(ctx, queue, upTo, 10)
	require.NoError(t, err)
	require.Len(t, all, 3)

	limited, err := engine.QueryDueSoon(ctx, queue, upTo, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)

	listed, err := engine.ListQueued(ctx, queue, dqueue.SortAsc, 0, 20)
	require.NoError(t, err)
	require.Equal(t, []string{listed[0].ID, listed[1].ID}, []string{limited[0].ID, limited[1].ID})
}

func TestEngine_Purge(t *testing.T) {
	engine := newTestEngine(t, dqueue.Config{})
	ctx := t.Context()

	const queue = "purge-via-engine"
	for i := 0; i < 3; i++ {
		_, err := engine.Enqueue(ctx, queue, dqueue.Message{PayloadType: "t", Payload: []byte("m")}, 0)
		require.NoError(t, err)
	}

	n, err := engine.Purge(ctx, queue)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	count, err := engine.QueuedCount(ctx, queue)
	require.NoError(t, err)
	require.Equal(t, 0, count)

	listed, err := engine.ListQueued(ctx, queue, dqueue.SortAsc, 0, 20)
	require.NoError(t, err)
	require.Empty(t, listed)
}
