package dqueue

import "context"

// Handler processes one queued message. Implementations must be idempotent: the
// engine redelivers a message whenever its previous handling had a side effect but
// never completed acknowledgement -- a crashed process, an expired claim lease, a
// network partition between the worker and the store all look identical to the next
// claimer. Outside manual_acknowledgement mode, a returned error is handed to the
// subscription's RedeliveryPolicy; once the policy's MaxRedeliveries is exceeded the
// message becomes a dead letter instead of being redelivered again.
type Handler interface {
	// OperationID names the logical operation this handler performs. It appears in
	// logs, trace span names, and alert payloads, and has no effect on routing: a
	// subscription always has exactly one handler.
	OperationID() string

	// Handle processes msg. Returning nil acknowledges it in every transactional mode
	// except manual_acknowledgement, where the handler itself must call the engine's
	// AcknowledgeAsHandled before returning.
	Handle(ctx context.Context, msg QueuedMessage) error
}

// ConsumeOptions configures a Consume subscription.
type ConsumeOptions struct {
	// Parallel is the number of concurrent worker goroutines polling this queue.
	// Must be >= 1.
	Parallel int

	// Policy computes redelivery delay and the redelivery ceiling for this
	// subscription's failed messages.
	Policy RedeliveryPolicy
}

func (o ConsumeOptions) validate() error {
	if o.Parallel < 1 {
		return ErrParallelOutOfRange
	}
	if o.Policy == nil {
		return ErrPolicyRequired
	}
	return nil
}

// Subscription is a handle to a running consumer. Stop blocks its worker goroutines
// from claiming new messages and waits for in-flight handlers to finish, up to the
// engine's configured DrainTimeout.
type Subscription interface {
	Stop(ctx context.Context) error
}
