package dqueue

import (
	"context"
	"time"

	"github.com/rise-and-shine/durablequeue/dqueue/internal/store"
)

// pgMessageStore adapts *store.PgStore (which speaks only in store.Row and primitive
// types, to avoid an import cycle back into this package) to the MessageStore
// interface, translating to/from Message and QueuedMessage at the boundary.
type pgMessageStore struct {
	inner *store.PgStore
}

func newPgMessageStore(inner *store.PgStore) MessageStore {
	return &pgMessageStore{inner: inner}
}

func toStoreRow(msg Message) store.Row {
	row := store.Row{
		PayloadType:  msg.PayloadType,
		Payload:      msg.Payload,
		Metadata:     msg.Metadata,
		DeliveryMode: string(msg.DeliveryMode),
	}
	if row.DeliveryMode == "" {
		row.DeliveryMode = string(DeliveryModeNormal)
	}
	if msg.Key != "" {
		key := msg.Key
		order := msg.KeyOrder
		row.Key = &key
		row.KeyOrder = &order
	}
	return row
}

func fromStoreRow(row store.Row, queueName string) QueuedMessage {
	qm := QueuedMessage{
		ID:                 row.ID,
		QueueName:          queueName,
		PayloadType:        row.PayloadType,
		Payload:            row.Payload,
		Metadata:           row.Metadata,
		AddedAt:            row.AddedAt,
		NextDeliveryAt:     row.NextDeliveryAt,
		DeliveryAttempts:   row.DeliveryAttempts,
		RedeliveryAttempts: row.RedeliveryAttempts,
		IsDeadLetter:       row.IsDeadLetter,
		DeliveryMode:       DeliveryMode(row.DeliveryMode),
	}
	if row.LastDeliveryError != nil {
		qm.LastDeliveryError = *row.LastDeliveryError
	}
	if row.Key != nil {
		qm.Key = *row.Key
	}
	if row.KeyOrder != nil {
		qm.KeyOrder = *row.KeyOrder
	}
	return qm
}

func sortOrderSQL(order SortOrder) string {
	if order == SortDesc {
		return "DESC"
	}
	return "ASC"
}

func mapStoreRows(rows []store.Row, queue string) []QueuedMessage {
	out := make([]QueuedMessage, 0, len(rows))
	for _, r := range rows {
		out = append(out, fromStoreRow(r, queue))
	}
	return out
}

func (a *pgMessageStore) Insert(ctx context.Context, queue string, msg Message, delay time.Duration) (string, error) {
	return a.inner.Insert(ctx, queue, toStoreRow(msg), delay)
}

func (a *pgMessageStore) InsertAsDeadLetter(ctx context.Context, queue string, msg Message, cause string) (string, error) {
	return a.inner.InsertAsDeadLetter(ctx, queue, toStoreRow(msg), cause)
}

func (a *pgMessageStore) ClaimNextDue(ctx context.Context, queue string, now time.Time) (*QueuedMessage, error) {
	row, err := a.inner.ClaimNextDue(ctx, queue, now)
	if err != nil || row == nil {
		return nil, err
	}
	qm := fromStoreRow(*row, queue)
	return &qm, nil
}

func (a *pgMessageStore) Ack(ctx context.Context, id string) error {
	return a.inner.Ack(ctx, id)
}

func (a *pgMessageStore) Reschedule(ctx context.Context, id string, nextAt time.Time, errorText string) error {
	return a.inner.Reschedule(ctx, id, nextAt, errorText)
}

func (a *pgMessageStore) MarkDeadLetter(ctx context.Context, id, errorText string) error {
	return a.inner.MarkDeadLetter(ctx, id, errorText)
}

func (a *pgMessageStore) Resurrect(ctx context.Context, id string, delay time.Duration) (*QueuedMessage, error) {
	row, err := a.inner.Resurrect(ctx, id, delay)
	if err != nil || row == nil {
		return nil, err
	}
	qm := fromStoreRow(*row, row.QueueName)
	return &qm, nil
}

func (a *pgMessageStore) Get(ctx context.Context, id string) (*QueuedMessage, error) {
	row, err := a.inner.Get(ctx, id)
	if err != nil || row == nil {
		return nil, err
	}
	qm := fromStoreRow(*row, row.QueueName)
	return &qm, nil
}

func (a *pgMessageStore) GetDeadLetter(ctx context.Context, id string) (*QueuedMessage, error) {
	row, err := a.inner.GetDeadLetter(ctx, id)
	if err != nil || row == nil {
		return nil, err
	}
	qm := fromStoreRow(*row, row.QueueName)
	return &qm, nil
}

func (a *pgMessageStore) ListQueued(ctx context.Context, queue string, order SortOrder, skip, limit int) ([]QueuedMessage, error) {
	rows, err := a.inner.ListQueued(ctx, queue, sortOrderSQL(order), skip, limit)
	if err != nil {
		return nil, err
	}
	return mapStoreRows(rows, queue), nil
}

func (a *pgMessageStore) ListDeadLetters(ctx context.Context, queue string, order SortOrder, skip, limit int) ([]QueuedMessage, error) {
	rows, err := a.inner.ListDeadLetters(ctx, queue, sortOrderSQL(order), skip, limit)
	if err != nil {
		return nil, err
	}
	return mapStoreRows(rows, queue), nil
}

func (a *pgMessageStore) CountQueued(ctx context.Context, queue string) (int, error) {
	return a.inner.CountQueued(ctx, queue)
}

func (a *pgMessageStore) QueryDueSoon(ctx context.Context, queue string, upTo time.Time, limit int) ([]QueuedMessage, error) {
	rows, err := a.inner.QueryDueSoon(ctx, queue, upTo, limit)
	if err != nil {
		return nil, err
	}
	return mapStoreRows(rows, queue), nil
}

func (a *pgMessageStore) Purge(ctx context.Context, queue string) (int, error) {
	return a.inner.Purge(ctx, queue)
}
