// Package dqueue implements a durable, PostgreSQL-backed message queue: producers
// enqueue opaque payloads onto named queues, consumers subscribe a Handler to a queue
// and receive each message at least once, and failed messages are automatically
// redelivered with backoff before landing in a per-queue dead-letter set for manual
// inspection and resurrection.
package dqueue

import (
	"context"
	"sync"
	"time"

	"github.com/code19m/errx"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rise-and-shine/durablequeue/dqueue/internal/store"
	"github.com/rise-and-shine/durablequeue/observability/alert"
	"github.com/rise-and-shine/durablequeue/observability/logger"
	"github.com/uptrace/bun"
)

// Engine is the queue facade: the single entry point producers and consumers use to
// enqueue, consume, inspect, and administer durable queues.
type Engine interface {
	// Enqueue stores msg on queue, due after delay (zero delay means due immediately).
	// Returns the new message's ID.
	Enqueue(ctx context.Context, queue string, msg Message, delay time.Duration) (string, error)

	// EnqueueAsDeadLetter stores msg on queue already in the dead-letter state, with
	// cause recorded as its last delivery error. Used to seed a dead-letter queue for
	// messages a caller has already decided are unprocessable.
	EnqueueAsDeadLetter(ctx context.Context, queue string, msg Message, cause string) (string, error)

	// Consume starts a subscription: opts.Parallel worker goroutines claim and handle
	// messages from queue until the returned Subscription is stopped or the engine
	// itself is stopped.
	Consume(ctx context.Context, queue string, handler Handler, opts ConsumeOptions) (Subscription, error)

	// GetMessage returns a non-dead-letter message snapshot, or
	// (nil, errx with CodeMessageNotFound) if it doesn't exist.
	GetMessage(ctx context.Context, id string) (*QueuedMessage, error)

	// GetDeadLetterMessage returns a dead-letter message snapshot, or
	// (nil, errx with CodeDeadLetterNotFound) if it doesn't exist.
	GetDeadLetterMessage(ctx context.Context, id string) (*QueuedMessage, error)

	// QueuedCount returns how many non-dead-letter messages queue currently holds.
	QueuedCount(ctx context.Context, queue string) (int, error)

	// ListQueued lists queue's non-dead-letter messages ordered by due time.
	ListQueued(ctx context.Context, queue string, order SortOrder, skip, limit int) ([]QueuedMessage, error)

	// ListDeadLetters lists queue's dead-letter messages.
	ListDeadLetters(ctx context.Context, queue string, order SortOrder, skip, limit int) ([]QueuedMessage, error)

	// QueryDueSoon returns up to limit non-dead-letter messages due at or after upTo.
	QueryDueSoon(ctx context.Context, queue string, upTo time.Time, limit int) ([]QueuedMessage, error)

	// AcknowledgeAsHandled acks a message directly. Only meaningful in
	// manual_acknowledgement mode, where a Handler settles its own messages instead of
	// relying on Consume's automatic ack/reschedule/dead-letter.
	AcknowledgeAsHandled(ctx context.Context, id string) error

	// ResurrectDeadLetter clears a dead letter's dead-letter state and requeues it for
	// delivery after delay. Returns errx with CodeNotDeadLetter if id isn't currently a
	// dead letter.
	ResurrectDeadLetter(ctx context.Context, id string, delay time.Duration) (*QueuedMessage, error)

	// Purge deletes every non-in-flight message on queue (dead letters included) and
	// returns the number removed.
	Purge(ctx context.Context, queue string) (int, error)

	// Start brings up the engine's background machinery: schema migration and, if
	// enabled, the change notifier. Must be called before Consume.
	Start(ctx context.Context) error

	// Stop stops every active subscription (see Subscription.Stop) and the change
	// notifier, in that order.
	Stop(ctx context.Context) error
}

type engine struct {
	db    bun.IDB
	pool  *pgxpool.Pool
	store MessageStore
	cfg   Config

	log           logger.Logger
	alertProvider alert.Provider

	notifier *changeNotifier

	mu            sync.Mutex
	subscriptions []*consumer
	started       bool
}

// New constructs an Engine. pool is used only for the change notifier's dedicated
// LISTEN connection; db drives every other operation and may be a *bun.DB or an
// in-flight *bun.Tx depending on the caller's transactional mode.
func New(db bun.IDB, pool *pgxpool.Pool, cfg Config, log logger.Logger, alertProvider alert.Provider) Engine {
	s := newPgMessageStore(store.New(db, cfg.Schema, cfg.SharedQueueTableName, cfg.MessageHandlingTimeout))

	e := &engine{
		db:            db,
		pool:          pool,
		store:         s,
		cfg:           cfg,
		log:           log.Named("dqueue.engine"),
		alertProvider: alertProvider,
	}

	if cfg.ChangeNotifierEnabled && pool != nil {
		e.notifier = newChangeNotifier(pool, log)
	}

	return e
}

func (e *engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		return ErrAlreadyStarted
	}

	if err := store.Migrate(ctx, e.db, e.cfg.Schema, e.cfg.SharedQueueTableName); err != nil {
		return errx.Wrap(err, errx.WithCode(CodeInvalidConfig))
	}

	if e.notifier != nil {
		go e.notifier.run(ctx)
	}

	e.started = true
	return nil
}

func (e *engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	subs := e.subscriptions
	e.subscriptions = nil
	notifier := e.notifier
	e.started = false
	e.mu.Unlock()

	var firstErr error
	for _, sub := range subs {
		if err := sub.Stop(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if notifier != nil {
		notifier.stop()
	}

	return firstErr
}

func (e *engine) Enqueue(ctx context.Context, queue string, msg Message, delay time.Duration) (string, error) {
	if err := validateEnqueue(queue, msg, delay); err != nil {
		return "", err
	}

	msg.Metadata = injectTraceContext(ctx, msg.Metadata)

	id, err := e.store.Insert(ctx, queue, msg, delay)
	if err != nil {
		return "", errx.Wrap(err, errx.WithCode(CodeStoreUnavailable))
	}

	e.wakeSubscriptions(queue)
	return id, nil
}

func (e *engine) EnqueueAsDeadLetter(ctx context.Context, queue string, msg Message, cause string) (string, error) {
	if err := validateEnqueue(queue, msg, 0); err != nil {
		return "", err
	}

	id, err := e.store.InsertAsDeadLetter(ctx, queue, msg, cause)
	if err != nil {
		return "", errx.Wrap(err, errx.WithCode(CodeStoreUnavailable))
	}

	return id, nil
}

func validateEnqueue(queue string, msg Message, delay time.Duration) error {
	if queue == "" {
		return ErrQueueNameRequired
	}
	if msg.Payload == nil && msg.PayloadType == "" {
		return ErrMessageRequired
	}
	if msg.DeliveryMode == DeliveryModeOrdered && msg.Key == "" {
		return ErrKeyRequired
	}
	if delay < 0 {
		return ErrNegativeDelay
	}
	return nil
}

func (e *engine) Consume(ctx context.Context, queue string, handler Handler, opts ConsumeOptions) (Subscription, error) {
	if queue == "" {
		return nil, ErrQueueNameRequired
	}
	if handler == nil {
		return nil, ErrHandlerRequired
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return nil, ErrNotStarted
	}

	optimizer := newPollingOptimizer(e.cfg.BasePollingInterval, e.cfg.PollingDelayIncrementFactor, e.cfg.MaxPollingInterval)
	c := newConsumer(queue, handler, opts, e.store, e.cfg, optimizer, e.alertProvider, e.log)
	e.subscriptions = append(e.subscriptions, c)
	e.mu.Unlock()

	if e.notifier != nil {
		e.notifier.subscribe(queue, optimizer.notifyWake)
	}

	c.start(ctx)
	return c, nil
}

func (e *engine) wakeSubscriptions(queue string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, sub := range e.subscriptions {
		if sub.queue == queue {
			sub.optimizer.notifyWake()
		}
	}
}

func (e *engine) GetMessage(ctx context.Context, id string) (*QueuedMessage, error) {
	if id == "" {
		return nil, ErrMessageIDRequired
	}

	msg, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, errx.Wrap(err, errx.WithCode(CodeStoreUnavailable))
	}
	if msg == nil {
		return nil, errx.New("dqueue: message not found", errx.WithCode(CodeMessageNotFound))
	}

	return msg, nil
}

func (e *engine) GetDeadLetterMessage(ctx context.Context, id string) (*QueuedMessage, error) {
	if id == "" {
		return nil, ErrMessageIDRequired
	}

	msg, err := e.store.GetDeadLetter(ctx, id)
	if err != nil {
		return nil, errx.Wrap(err, errx.WithCode(CodeStoreUnavailable))
	}
	if msg == nil {
		return nil, errx.New("dqueue: dead letter not found", errx.WithCode(CodeDeadLetterNotFound))
	}

	return msg, nil
}

func (e *engine) QueuedCount(ctx context.Context, queue string) (int, error) {
	if queue == "" {
		return 0, ErrQueueNameRequired
	}

	n, err := e.store.CountQueued(ctx, queue)
	if err != nil {
		return 0, errx.Wrap(err, errx.WithCode(CodeStoreUnavailable))
	}
	return n, nil
}

func (e *engine) ListQueued(ctx context.Context, queue string, order SortOrder, skip, limit int) ([]QueuedMessage, error) {
	if queue == "" {
		return nil, ErrQueueNameRequired
	}

	msgs, err := e.store.ListQueued(ctx, queue, order, skip, limit)
	if err != nil {
		return nil, errx.Wrap(err, errx.WithCode(CodeStoreUnavailable))
	}
	return msgs, nil
}

func (e *engine) ListDeadLetters(ctx context.Context, queue string, order SortOrder, skip, limit int) ([]QueuedMessage, error) {
	if queue == "" {
		return nil, ErrQueueNameRequired
	}

	msgs, err := e.store.ListDeadLetters(ctx, queue, order, skip, limit)
	if err != nil {
		return nil, errx.Wrap(err, errx.WithCode(CodeStoreUnavailable))
	}
	return msgs, nil
}

func (e *engine) QueryDueSoon(ctx context.Context, queue string, upTo time.Time, limit int) ([]QueuedMessage, error) {
	if queue == "" {
		return nil, ErrQueueNameRequired
	}

	msgs, err := e.store.QueryDueSoon(ctx, queue, upTo, limit)
	if err != nil {
		return nil, errx.Wrap(err, errx.WithCode(CodeStoreUnavailable))
	}
	return msgs, nil
}

func (e *engine) AcknowledgeAsHandled(ctx context.Context, id string) error {
	if id == "" {
		return ErrMessageIDRequired
	}

	if err := e.store.Ack(ctx, id); err != nil {
		return errx.Wrap(err, errx.WithCode(CodeStoreUnavailable))
	}
	return nil
}

func (e *engine) ResurrectDeadLetter(ctx context.Context, id string, delay time.Duration) (*QueuedMessage, error) {
	if id == "" {
		return nil, ErrMessageIDRequired
	}
	if delay < 0 {
		return nil, ErrNegativeDelay
	}

	msg, err := e.store.Resurrect(ctx, id, delay)
	if err != nil {
		return nil, errx.Wrap(err, errx.WithCode(CodeStoreUnavailable))
	}
	if msg == nil {
		return nil, errx.New("dqueue: message is not a dead letter", errx.WithCode(CodeNotDeadLetter))
	}

	e.wakeSubscriptions(msg.QueueName)
	return msg, nil
}

func (e *engine) Purge(ctx context.Context, queue string) (int, error) {
	if queue == "" {
		return 0, ErrQueueNameRequired
	}

	n, err := e.store.Purge(ctx, queue)
	if err != nil {
		return 0, errx.Wrap(err, errx.WithCode(CodeStoreUnavailable))
	}
	return n, nil
}
