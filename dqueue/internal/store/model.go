package store

import "time"

// Row mirrors the shared queue table's columns for Scan targets. It is never passed to
// bun's query builder directly (queries are raw SQL, per the teacher's pgqueue
// convention of hand-written SQL for the hot dequeue/claim path); it exists so
// db.NewRaw(...).Scan can populate a typed slice/struct. Row is exported so the
// dqueue package can translate to/from its own Message/QueuedMessage types without
// this package importing dqueue back (which would be a cycle, since dqueue imports
// store for PgStore itself).
type Row struct {
	ID          string            `bun:"id"`
	QueueName   string            `bun:"queue_name"`
	PayloadType string            `bun:"payload_type"`
	Payload     []byte            `bun:"payload"`
	Metadata    map[string]string `bun:"metadata,type:jsonb"`

	AddedAt        time.Time `bun:"added_at"`
	NextDeliveryAt time.Time `bun:"next_delivery_at"`

	DeliveryAttempts   int     `bun:"delivery_attempts"`
	RedeliveryAttempts int     `bun:"redelivery_attempts"`
	LastDeliveryError  *string `bun:"last_delivery_error"`
	IsDeadLetter       bool    `bun:"is_dead_letter"`

	DeliveryMode string  `bun:"delivery_mode"`
	Key          *string `bun:"key"`
	KeyOrder     *int64  `bun:"key_order"`

	ClaimedUntil *time.Time `bun:"claimed_until"`
}
