package store

import (
	"context"
	"time"

	"github.com/code19m/errx"
	"github.com/uptrace/bun"
)

// DefaultLeaseDuration bounds how long a claimed message stays invisible to other
// workers before it is treated as abandoned and becomes reclaimable again, when New is
// given a non-positive lease duration. The engine passes Config.MessageHandlingTimeout
// as the lease duration at construction time.
const DefaultLeaseDuration = 2 * time.Minute

// PgStore is the bun/pgx-backed message store. It speaks only in Row and primitive
// types, deliberately: the dqueue package (its only caller) owns the
// Message/QueuedMessage domain types and adapts them to/from Row, so this package
// never has to import dqueue.
type PgStore struct {
	db    bun.IDB
	q     *queries
	lease time.Duration
}

// New creates a PgStore against the shared queue table identified by schema/table.
// Callers are expected to run Migrate once at startup before using the store.
func New(db bun.IDB, schema, table string, leaseDuration time.Duration) *PgStore {
	if leaseDuration <= 0 {
		leaseDuration = DefaultLeaseDuration
	}
	return &PgStore{
		db:    db,
		q:     newQueries(schema, table),
		lease: leaseDuration,
	}
}

func (s *PgStore) Insert(ctx context.Context, queue string, row Row, delay time.Duration) (string, error) {
	row.NextDeliveryAt = time.Now().Add(delay)

	id, err := s.q.insert(ctx, s.db, queue, row)
	if err != nil {
		return "", errx.Wrap(err)
	}
	return id, nil
}

func (s *PgStore) InsertAsDeadLetter(ctx context.Context, queue string, row Row, cause string) (string, error) {
	row.NextDeliveryAt = time.Now()
	row.IsDeadLetter = true
	row.LastDeliveryError = &cause
	row.DeliveryAttempts = 1

	id, err := s.q.insert(ctx, s.db, queue, row)
	if err != nil {
		return "", errx.Wrap(err)
	}
	return id, nil
}

func (s *PgStore) ClaimNextDue(ctx context.Context, queue string, now time.Time) (*Row, error) {
	row, err := s.q.claimNextDue(ctx, s.db, queue, now, s.lease)
	if err != nil {
		return nil, errx.Wrap(err)
	}
	return row, nil
}

func (s *PgStore) Ack(ctx context.Context, id string) error {
	if err := s.q.ack(ctx, s.db, id); err != nil {
		return errx.Wrap(err)
	}
	return nil
}

func (s *PgStore) Reschedule(ctx context.Context, id string, nextAt time.Time, errorText string) error {
	current, err := s.q.get(ctx, s.db, id, false)
	if err != nil {
		return errx.Wrap(err)
	}

	attempts := 0
	if current != nil {
		attempts = current.RedeliveryAttempts + 1
	}

	if err := s.q.reschedule(ctx, s.db, id, nextAt, errorText, attempts); err != nil {
		return errx.Wrap(err)
	}
	return nil
}

func (s *PgStore) MarkDeadLetter(ctx context.Context, id, errorText string) error {
	if err := s.q.markDeadLetter(ctx, s.db, id, errorText); err != nil {
		return errx.Wrap(err)
	}
	return nil
}

func (s *PgStore) Resurrect(ctx context.Context, id string, delay time.Duration) (*Row, error) {
	row, err := s.q.resurrect(ctx, s.db, id, time.Now().Add(delay))
	if err != nil {
		return nil, errx.Wrap(err)
	}
	return row, nil
}

func (s *PgStore) Get(ctx context.Context, id string) (*Row, error) {
	row, err := s.q.get(ctx, s.db, id, false)
	if err != nil {
		return nil, errx.Wrap(err)
	}
	return row, nil
}

func (s *PgStore) GetDeadLetter(ctx context.Context, id string) (*Row, error) {
	row, err := s.q.get(ctx, s.db, id, true)
	if err != nil {
		return nil, errx.Wrap(err)
	}
	return row, nil
}

func (s *PgStore) ListQueued(ctx context.Context, queue, order string, skip, limit int) ([]Row, error) {
	rows, err := s.q.list(ctx, s.db, queue, false, order, skip, limit)
	if err != nil {
		return nil, errx.Wrap(err)
	}
	return rows, nil
}

func (s *PgStore) ListDeadLetters(ctx context.Context, queue, order string, skip, limit int) ([]Row, error) {
	rows, err := s.q.list(ctx, s.db, queue, true, order, skip, limit)
	if err != nil {
		return nil, errx.Wrap(err)
	}
	return rows, nil
}

func (s *PgStore) CountQueued(ctx context.Context, queue string) (int, error) {
	n, err := s.q.count(ctx, s.db, queue)
	if err != nil {
		return 0, errx.Wrap(err)
	}
	return n, nil
}

func (s *PgStore) QueryDueSoon(ctx context.Context, queue string, upTo time.Time, limit int) ([]Row, error) {
	rows, err := s.q.queryDueSoon(ctx, s.db, queue, upTo, limit)
	if err != nil {
		return nil, errx.Wrap(err)
	}
	return rows, nil
}

func (s *PgStore) Purge(ctx context.Context, queue string) (int, error) {
	n, err := s.q.purge(ctx, s.db, queue)
	if err != nil {
		return 0, errx.Wrap(err)
	}
	return n, nil
}
