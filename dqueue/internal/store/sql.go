package store

import (
	"context"
	"fmt"
	"time"

	"github.com/code19m/errx"
	"github.com/google/uuid"
	"github.com/rise-and-shine/durablequeue/pg"
	"github.com/uptrace/bun"
)

// queries holds the fully qualified table name once so every raw SQL builder below
// only has to interpolate it, the way the teacher's queue.tableName() does.
type queries struct {
	table string
}

func newQueries(schema, table string) *queries {
	return &queries{table: tableName(schema, table)}
}

func (q *queries) insert(
	ctx context.Context,
	db bun.IDB,
	queueName string,
	row Row,
) (string, error) {
	id := uuid.NewString()

	query := fmt.Sprintf(`
		INSERT INTO %s (
			id, queue_name, payload_type, payload, metadata,
			next_delivery_at, delivery_mode, key, key_order,
			is_dead_letter, delivery_attempts, redelivery_attempts, last_delivery_error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, q.table)

	_, err := db.ExecContext(ctx, query,
		id, queueName, row.PayloadType, row.Payload, row.Metadata,
		row.NextDeliveryAt, row.DeliveryMode, row.Key, row.KeyOrder,
		row.IsDeadLetter, row.DeliveryAttempts, row.RedeliveryAttempts, row.LastDeliveryError,
	)
	if err != nil {
		return "", errx.Wrap(err)
	}

	return id, nil
}

// claimNextDue implements the core FOR UPDATE SKIP LOCKED claim. A message is only
// eligible if it is due, not a dead letter, not already leased (claimed_until is NULL
// or in the past), and -- for ordered messages -- no earlier-key_order message for the
// same queue+key is still outstanding (the NOT EXISTS predicate enforces the
// per-key head-of-line-blocking invariant without a separate advisory lock).
func (q *queries) claimNextDue(
	ctx context.Context,
	db bun.IDB,
	queueName string,
	now time.Time,
	leaseDuration time.Duration,
) (*Row, error) {
	query := fmt.Sprintf(`
		WITH selected AS (
			SELECT id
			FROM %s m
			WHERE m.queue_name = ?
			  AND m.is_dead_letter = FALSE
			  AND m.next_delivery_at <= ?
			  AND (m.claimed_until IS NULL OR m.claimed_until <= ?)
			  AND NOT (
			      m.delivery_mode = 'ordered'
			      AND EXISTS (
			          SELECT 1 FROM %s p
			          WHERE p.queue_name = m.queue_name
			            AND p.key = m.key
			            AND p.key_order < m.key_order
			      )
			  )
			ORDER BY m.next_delivery_at ASC, m.added_at ASC, m.id ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE %s t
		SET claimed_until = ?,
		    delivery_attempts = t.delivery_attempts + 1
		FROM selected s
		WHERE t.id = s.id
		RETURNING t.*
	`, q.table, q.table, q.table)

	rows := make([]Row, 0, 1)
	_, err := db.NewRaw(query,
		queueName, now, now, now.Add(leaseDuration),
	).Exec(ctx, &rows)
	if err != nil {
		return nil, errx.Wrap(err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	return &rows[0], nil
}

func (q *queries) ack(ctx context.Context, db bun.IDB, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, q.table)
	_, err := db.ExecContext(ctx, query, id)
	return errx.Wrap(err)
}

func (q *queries) reschedule(
	ctx context.Context,
	db bun.IDB,
	id string,
	nextAt time.Time,
	errorText string,
	redeliveryAttempts int,
) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET next_delivery_at = ?,
		    claimed_until = NULL,
		    redelivery_attempts = ?,
		    last_delivery_error = ?
		WHERE id = ?
	`, q.table)

	_, err := db.ExecContext(ctx, query, nextAt, redeliveryAttempts, errorText, id)
	return errx.Wrap(err)
}

func (q *queries) markDeadLetter(ctx context.Context, db bun.IDB, id, errorText string) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET is_dead_letter = TRUE,
		    claimed_until = NULL,
		    last_delivery_error = ?
		WHERE id = ?
	`, q.table)

	_, err := db.ExecContext(ctx, query, errorText, id)
	return errx.Wrap(err)
}

func (q *queries) resurrect(
	ctx context.Context,
	db bun.IDB,
	id string,
	nextAt time.Time,
) (*Row, error) {
	// delivery_attempts is a historical, monotonically increasing counter and is
	// deliberately not reset here -- only redelivery_attempts, which gates the
	// subscription's MaxRedeliveries ceiling, starts over.
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET is_dead_letter = FALSE,
		    redelivery_attempts = 0,
		    next_delivery_at = ?,
		    claimed_until = NULL,
		    last_delivery_error = NULL
		WHERE id = ? AND is_dead_letter = TRUE
		RETURNING *
	`, q.table)

	row := new(Row)
	err := db.NewRaw(query, nextAt, id).Scan(ctx, row)
	if err != nil {
		if pg.IsNotFound(err) {
			return nil, nil
		}
		return nil, errx.Wrap(err)
	}

	return row, nil
}

func (q *queries) get(ctx context.Context, db bun.IDB, id string, deadLetter bool) (*Row, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}

	query := fmt.Sprintf(`
		SELECT * FROM %s WHERE id = ? AND is_dead_letter = ?
	`, q.table)

	row := new(Row)
	err := db.NewRaw(query, id, deadLetter).Scan(ctx, row)
	if err != nil {
		if pg.IsNotFound(err) {
			return nil, nil
		}
		return nil, errx.Wrap(err)
	}

	return row, nil
}

func (q *queries) list(
	ctx context.Context,
	db bun.IDB,
	queueName string,
	deadLetter bool,
	order string,
	skip, limit int,
) ([]Row, error) {
	query := fmt.Sprintf(`
		SELECT * FROM %s
		WHERE queue_name = ? AND is_dead_letter = ?
		ORDER BY next_delivery_at %[2]s, added_at %[2]s, id %[2]s
		OFFSET ? LIMIT ?
	`, q.table, order)

	var rows []Row
	_, err := db.NewRaw(query, queueName, deadLetter, skip, limit).Exec(ctx, &rows)
	return rows, errx.Wrap(err)
}

func (q *queries) count(ctx context.Context, db bun.IDB, queueName string) (int, error) {
	query := fmt.Sprintf(`
		SELECT COUNT(*) FROM %s WHERE queue_name = ? AND is_dead_letter = FALSE
	`, q.table)

	var n int
	err := db.NewRaw(query, queueName).Scan(ctx, &n)
	return n, errx.Wrap(err)
}

func (q *queries) queryDueSoon(
	ctx context.Context,
	db bun.IDB,
	queueName string,
	upTo time.Time,
	limit int,
) ([]Row, error) {
	query := fmt.Sprintf(`
		SELECT * FROM %s
		WHERE queue_name = ? AND is_dead_letter = FALSE AND next_delivery_at >= ?
		ORDER BY next_delivery_at ASC, added_at ASC, id ASC
		LIMIT ?
	`, q.table)

	var rows []Row
	_, err := db.NewRaw(query, queueName, upTo, limit).Exec(ctx, &rows)
	return rows, errx.Wrap(err)
}

func (q *queries) purge(ctx context.Context, db bun.IDB, queueName string) (int, error) {
	query := fmt.Sprintf(`
		DELETE FROM %s
		WHERE queue_name = ? AND (claimed_until IS NULL OR claimed_until <= now())
	`, q.table)

	result, err := db.ExecContext(ctx, query, queueName)
	if err != nil {
		return 0, errx.Wrap(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, errx.Wrap(err)
	}

	return int(affected), nil
}
