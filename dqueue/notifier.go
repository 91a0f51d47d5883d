package dqueue

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/code19m/errx"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rise-and-shine/durablequeue/dqueue/internal/store"
	"github.com/rise-and-shine/durablequeue/observability/logger"
)

// changeEvent mirrors the JSON payload the schema's insert trigger sends over
// store.NotifyChannel.
type changeEvent struct {
	Table     string `json:"table"`
	Operation string `json:"operation"`
	ID        string `json:"id"`
	QueueName string `json:"queue_name"`
}

// changeNotifier holds a single dedicated connection LISTENing on store.NotifyChannel
// and fans every insert out to whichever subscriptions are interested in its queue, so
// their pollingOptimizer can wake immediately instead of waiting out its backoff.
// Disabled entirely when Config.ChangeNotifierEnabled is false, in which case the
// engine falls back to pure polling.
type changeNotifier struct {
	pool *pgxpool.Pool
	log  logger.Logger

	mu        sync.Mutex
	listeners map[string][]func()

	stopCh chan struct{}
}

func newChangeNotifier(pool *pgxpool.Pool, log logger.Logger) *changeNotifier {
	return &changeNotifier{
		pool:      pool,
		log:       log.Named("dqueue.notifier"),
		listeners: make(map[string][]func()),
		stopCh:    make(chan struct{}),
	}
}

// subscribe registers wake to be called whenever an insert notification for queue
// arrives. Safe to call while run is dispatching: dispatch reads the listener list
// under the same mutex.
func (n *changeNotifier) subscribe(queue string, wake func()) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.listeners[queue] = append(n.listeners[queue], wake)
}

// run connects, issues LISTEN, and dispatches notifications until ctx is cancelled or
// Stop is called. On connection loss it reconnects with backoff via retry-go rather
// than giving up -- the engine degrades to pure polling only for the duration of the
// outage, not permanently.
func (n *changeNotifier) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-n.stopCh:
			return
		default:
		}

		err := retry.Do(
			func() error { return n.listenOnce(ctx) },
			retry.Context(ctx),
			retry.Attempts(0), // retry forever until ctx/stopCh fires
			retry.Delay(time.Second),
			retry.MaxDelay(30*time.Second),
			retry.MaxJitter(500*time.Millisecond),
			retry.OnRetry(func(attempt uint, err error) {
				n.log.With("attempt", attempt, "error", err).Warn("dqueue: change notifier reconnecting")
			}),
		)
		if err != nil {
			return
		}
	}
}

func (n *changeNotifier) listenOnce(ctx context.Context) error {
	conn, err := n.pool.Acquire(ctx)
	if err != nil {
		return errx.Wrap(err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, "LISTEN "+store.NotifyChannel)
	if err != nil {
		return errx.Wrap(err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-n.stopCh:
			return nil
		default:
		}

		notification, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return errx.Wrap(err)
		}

		n.dispatch(notification.Payload)
	}
}

func (n *changeNotifier) dispatch(payload string) {
	var event changeEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		n.log.With("payload", payload).Warn("dqueue: change notifier received malformed payload")
		return
	}

	n.mu.Lock()
	wakers := n.listeners[event.QueueName]
	n.mu.Unlock()

	for _, wake := range wakers {
		wake()
	}
}

func (n *changeNotifier) stop() {
	close(n.stopCh)
}
