package dqueue_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/rise-and-shine/durablequeue/dqueue"
	"github.com/rise-and-shine/durablequeue/observability/alert"
	"github.com/rise-and-shine/durablequeue/observability/logger"
)

func TestFixedPolicy_Delay(t *testing.T) {
	p := dqueue.NewFixedPolicy(200*time.Millisecond, 5)

	assert.Equal(t, 5, p.MaxRedeliveries())
	assert.Equal(t, 200*time.Millisecond, p.Delay(1))
	assert.Equal(t, 200*time.Millisecond, p.Delay(4))
}

func TestLinearPolicy_Delay(t *testing.T) {
	p := dqueue.NewLinearPolicy(time.Second, 500*time.Millisecond, time.Second, 10*time.Second, 6)

	assert.Equal(t, 500*time.Millisecond, p.Delay(1), "first redelivery uses the configured followup delay")
	assert.Equal(t, 3*time.Second, p.Delay(2))
	assert.Equal(t, 10*time.Second, p.Delay(20), "delay is clamped to max")
}

func TestExponentialPolicy_Delay(t *testing.T) {
	p := dqueue.NewExponentialPolicy(time.Second, 2.0, 30*time.Second, 5)

	for attempt := 1; attempt <= 5; attempt++ {
		d := p.Delay(attempt)
		assert.LessOrEqual(t, d, 30*time.Second+6*time.Second, "jitter should not exceed 20%% of the capped delay")
		assert.Greater(t, d, time.Duration(0))
	}
}

func TestEngine_Consume_RejectsInvalidOptions(t *testing.T) {
	log, err := logger.New(logger.Config{Disable: true})
	assert.NoError(t, err)
	alertProvider, err := alert.NewProvider(alert.Config{Disable: true}, "dqueue-test", "test")
	assert.NoError(t, err)

	engine := dqueue.New(nil, nil, dqueue.Config{}, log, alertProvider)
	ctx := t.Context()

	_, err = engine.Consume(ctx, "q", noopHandler{}, dqueue.ConsumeOptions{
		Parallel: 0,
		Policy:   dqueue.NewFixedPolicy(time.Second, 3),
	})
	assert.ErrorIs(t, err, dqueue.ErrParallelOutOfRange)

	_, err = engine.Consume(ctx, "q", noopHandler{}, dqueue.ConsumeOptions{Parallel: 1})
	assert.ErrorIs(t, err, dqueue.ErrPolicyRequired)

	_, err = engine.Consume(ctx, "q", noopHandler{}, dqueue.ConsumeOptions{
		Parallel: 1,
		Policy:   dqueue.NewFixedPolicy(time.Second, 3),
	})
	assert.ErrorIs(t, err, dqueue.ErrNotStarted, "Consume before Start is rejected once options pass validation")
}

type noopHandler struct{}

func (noopHandler) OperationID() string                                     { return "test.noop" }
func (noopHandler) Handle(_ context.Context, _ dqueue.QueuedMessage) error { return nil }
