package main

import (
	"context"
	"time"

	"github.com/rise-and-shine/durablequeue/dqueue"
	"github.com/rise-and-shine/durablequeue/observability/logger"
)

const exampleQueueName = "dqueued.example"

// exampleHandler is a sample Handler demonstrating the contract a real consumer
// implements: OperationID for observability, Handle doing the actual work and
// returning an error to trigger redelivery.
type exampleHandler struct {
	log logger.Logger
}

func (h *exampleHandler) OperationID() string {
	return "example.log_payload"
}

func (h *exampleHandler) Handle(_ context.Context, msg dqueue.QueuedMessage) error {
	h.log.With("message_id", msg.ID, "payload_type", msg.PayloadType, "payload_size", len(msg.Payload)).
		Info("example handler processed message")
	return nil
}

// startExampleSubscription enqueues one sample message and starts a single-worker
// subscription against exampleQueueName, so a fresh deployment has something visible
// moving through the queue without requiring an external producer.
func startExampleSubscription(ctx context.Context, engine dqueue.Engine, log logger.Logger) (dqueue.Subscription, error) {
	handler := &exampleHandler{log: log.Named("example.handler")}

	sub, err := engine.Consume(ctx, exampleQueueName, handler, dqueue.ConsumeOptions{
		Parallel: 1,
		Policy:   dqueue.NewExponentialPolicy(time.Second, 2.0, 30*time.Second, 5),
	})
	if err != nil {
		return nil, err
	}

	_, err = engine.Enqueue(ctx, exampleQueueName, dqueue.Message{
		PayloadType: "example.greeting",
		Payload:     []byte("hello from dqueued"),
	}, 0)
	if err != nil {
		return nil, err
	}

	return sub, nil
}
