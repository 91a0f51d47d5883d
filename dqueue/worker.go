package dqueue

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/code19m/errx"
	"github.com/rise-and-shine/durablequeue/meta"
	"github.com/rise-and-shine/durablequeue/observability/alert"
	"github.com/rise-and-shine/durablequeue/observability/logger"
)

const alertContextTimeout = 3 * time.Second

// consumer runs Parallel worker goroutines against a single queue/handler pair. Each
// goroutine repeatedly claims the next due message (or sleeps, backing off through a
// pollingOptimizer that the change notifier can wake early), runs it through the same
// middleware chain shape as the rest of the ambient stack's async workers, and settles
// it by acking, rescheduling, or dead-lettering depending on the handler's outcome.
type consumer struct {
	queue   string
	handler Handler
	opts    ConsumeOptions

	store     MessageStore
	cfg       Config
	optimizer *pollingOptimizer
	metrics   *queueMetrics

	serviceName, serviceVersion string
	alertProvider                alert.Provider
	log                          logger.Logger

	stopCh    chan struct{}
	stopOnce  sync.Once
	stoppedCh chan struct{}
	wg        sync.WaitGroup
}

func newConsumer(
	queue string,
	handler Handler,
	opts ConsumeOptions,
	store MessageStore,
	cfg Config,
	optimizer *pollingOptimizer,
	alertProvider alert.Provider,
	log logger.Logger,
) *consumer {
	return &consumer{
		queue:          queue,
		handler:        handler,
		opts:           opts,
		store:          store,
		cfg:            cfg,
		optimizer:      optimizer,
		metrics:        newQueueMetrics(queue),
		serviceName:    meta.GetServiceName(),
		serviceVersion: meta.GetServiceVersion(),
		alertProvider:  alertProvider,
		log:            log.Named("dqueue.consumer").With("queue", queue, "operation_id", handler.OperationID()),
		stopCh:         make(chan struct{}),
		stoppedCh:      make(chan struct{}),
	}
}

func (c *consumer) start(ctx context.Context) {
	for range c.opts.Parallel {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.loop(ctx)
		}()
	}

	go func() {
		c.wg.Wait()
		close(c.stoppedCh)
	}()
}

// Stop implements Subscription.
func (c *consumer) Stop(ctx context.Context) error {
	c.stopOnce.Do(func() { close(c.stopCh) })

	select {
	case <-c.stoppedCh:
		return nil
	case <-ctx.Done():
		return errx.Wrap(ctx.Err(), errx.WithCode(CodeDrainTimeout))
	case <-time.After(c.cfg.DrainTimeout):
		return errx.New("dqueue: subscription drain timeout exceeded", errx.WithCode(CodeDrainTimeout))
	}
}

func (c *consumer) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		default:
		}

		msg, err := c.store.ClaimNextDue(ctx, c.queue, time.Now())
		if err != nil {
			c.log.Errorx(errx.Wrap(err))
			c.optimizer.miss()
			c.optimizer.sleep(c.stopCh)
			continue
		}

		if msg == nil {
			c.optimizer.miss()
			c.optimizer.sleep(c.stopCh)
			continue
		}

		c.optimizer.hit()
		c.metrics.claimed.Inc(1)

		chain := c.buildChain()
		_ = chain(ctx, *msg)
	}
}

type handleFunc func(context.Context, QueuedMessage) error

func (c *consumer) buildChain() handleFunc {
	h := c.processAndSettle

	// built in reverse so recovery is outermost
	h = c.withLogging(h)
	h = c.withAlerting(h)
	h = c.withMetaInjection(h)
	h = c.withTimeout(h)
	h = c.withTracing(h)
	h = c.withRecovery(h)

	return h
}

// processAndSettle invokes the handler and, outside manual_acknowledgement mode,
// settles the message: ack on success, reschedule or dead-letter on failure depending
// on the configured RedeliveryPolicy.
func (c *consumer) processAndSettle(ctx context.Context, msg QueuedMessage) error {
	start := time.Now()
	err := withVerboseSpan(ctx, c.cfg.VerboseTracing, "dqueue.handle", func(ctx context.Context) error {
		return executeWithRecovery(ctx, c.handler, msg)
	})
	c.metrics.handleTimer.UpdateSince(start)

	if c.cfg.TransactionalMode == TransactionalModeManualAck {
		return err
	}

	_ = withVerboseSpan(ctx, c.cfg.VerboseTracing, "dqueue.settle", func(ctx context.Context) error {
		if err == nil {
			if ackErr := c.store.Ack(ctx, msg.ID); ackErr != nil {
				c.log.With("message_id", msg.ID).Errorx(errx.Wrap(ackErr))
				return nil
			}
			c.metrics.acked.Inc(1)
			return nil
		}

		c.settleFailure(ctx, msg, err)
		return nil
	})

	return err
}

func (c *consumer) settleFailure(ctx context.Context, msg QueuedMessage, err error) {
	redeliveryAttempt := msg.RedeliveryAttempts + 1

	if redeliveryAttempt > c.opts.Policy.MaxRedeliveries() {
		if dlErr := c.store.MarkDeadLetter(ctx, msg.ID, err.Error()); dlErr != nil {
			c.log.With("message_id", msg.ID).Errorx(errx.Wrap(dlErr))
			return
		}
		c.metrics.deadLettered.Inc(1)
		return
	}

	delay := c.opts.Policy.Delay(redeliveryAttempt)
	nextAt := time.Now().Add(delay)
	if rescheduleErr := c.store.Reschedule(ctx, msg.ID, nextAt, err.Error()); rescheduleErr != nil {
		c.log.With("message_id", msg.ID).Errorx(errx.Wrap(rescheduleErr))
		return
	}
	c.metrics.rescheduled.Inc(1)
}

func (c *consumer) withLogging(next handleFunc) handleFunc {
	return func(ctx context.Context, m QueuedMessage) error {
		log := c.log.WithContext(ctx)
		start := time.Now()

		err := next(ctx, m)

		log = log.With("message_id", m.ID, "duration", time.Since(start).Round(time.Microsecond))
		if err != nil {
			log.Errorx(err)
		} else {
			log.Info("dqueue: message processed successfully")
		}

		return err
	}
}

func (c *consumer) withAlerting(next handleFunc) handleFunc {
	return func(ctx context.Context, m QueuedMessage) error {
		err := next(ctx, m)
		if err == nil {
			return nil
		}

		e := errx.AsErrorX(err)
		operation := fmt.Sprintf("dqueue: %s/%s", c.queue, c.handler.OperationID())
		details := map[string]string{"message_id": m.ID}
		if e != nil {
			details["error_trace"] = e.Trace()
		}

		alertCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), alertContextTimeout)
		go func() {
			defer cancel()
			code := "UNKNOWN"
			if e != nil {
				code = e.Code()
			}
			if sendErr := c.alertProvider.SendError(alertCtx, code, err.Error(), operation, details); sendErr != nil {
				c.log.With("alert_send_error", sendErr).Warn("dqueue: failed to send error alert")
			}
		}()

		return err
	}
}

func (c *consumer) withMetaInjection(next handleFunc) handleFunc {
	return func(ctx context.Context, m QueuedMessage) error {
		ctx = context.WithValue(ctx, meta.ServiceName, c.serviceName)
		ctx = context.WithValue(ctx, meta.ServiceVersion, c.serviceVersion)
		return next(ctx, m)
	}
}

func (c *consumer) withTimeout(next handleFunc) handleFunc {
	return func(ctx context.Context, m QueuedMessage) error {
		ctx, cancel := context.WithTimeout(ctx, c.cfg.MessageHandlingTimeout)
		defer cancel()
		return next(ctx, m)
	}
}

func (c *consumer) withTracing(next handleFunc) handleFunc {
	return func(ctx context.Context, m QueuedMessage) error {
		ctx = extractTraceContext(ctx, m.Metadata)
		ctx, span := startDeliverySpan(ctx, c.queue, c.handler.OperationID(), m)

		err := next(ctx, m)
		endSpanWithError(span, err)
		return err
	}
}

func (c *consumer) withRecovery(next handleFunc) handleFunc {
	return func(ctx context.Context, m QueuedMessage) (err error) {
		defer func() {
			if r := recover(); r != nil {
				c.log.With("recover", r, "message_id", m.ID).Error("dqueue: worker panicked at recovery wrapper")

				alertCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), alertContextTimeout)
				operation := fmt.Sprintf("dqueue: %s/%s", c.queue, c.handler.OperationID())
				go func() {
					defer cancel()
					_ = c.alertProvider.SendError(alertCtx, "PANIC",
						"dqueue: worker panicked at recovery wrapper", operation,
						map[string]string{"recover": fmt.Sprintf("%v", r)})
				}()

				err = errx.New("dqueue: worker panicked at recovery wrapper",
					errx.WithDetails(errx.D{"panic": fmt.Sprintf("%v", r)}))
			}
		}()
		return next(ctx, m)
	}
}

func executeWithRecovery(ctx context.Context, handler Handler, msg QueuedMessage) (err error) {
	defer func() {
		if r := recover(); r != nil {
			stackTrace := make([]byte, 4096)
			stackTrace = stackTrace[:runtime.Stack(stackTrace, false)]

			err = errx.New("dqueue: worker panicked at handler execution", errx.WithDetails(errx.D{
				"stack_trace":   string(stackTrace),
				"panic_message": fmt.Sprintf("%v", r),
			}))
		}
	}()
	return handler.Handle(ctx, msg)
}
