package dqueue

import (
	"math"
	"math/rand/v2"
	"time"
)

// RedeliveryPolicy computes the next delivery instant after a failed handler
// invocation, and decides when an exhausted message should become a dead letter.
type RedeliveryPolicy interface {
	// Delay returns how long to wait before the redeliveryAttempt-th redelivery
	// (1-based: the first redelivery is redeliveryAttempt == 1).
	Delay(redeliveryAttempt int) time.Duration

	// MaxRedeliveries returns the configured redelivery ceiling. A message is
	// dead-lettered once its redelivery attempt count exceeds this value.
	MaxRedeliveries() int
}

// commonPolicy holds the fields shared by every RedeliveryPolicy variant below.
type commonPolicy struct {
	initialDelay    time.Duration
	followupDelay   time.Duration
	multiplier      float64
	maxDelay        time.Duration
	maxRedeliveries int
}

func (c commonPolicy) MaxRedeliveries() int { return c.maxRedeliveries }

// FixedPolicy redelivers every failed message after the same fixed delay.
type FixedPolicy struct {
	commonPolicy
}

// NewFixedPolicy creates a policy where delay(n) = base for every redelivery attempt.
func NewFixedPolicy(base time.Duration, maxRedeliveries int) *FixedPolicy {
	return &FixedPolicy{commonPolicy{
		initialDelay:    base,
		followupDelay:   base,
		maxRedeliveries: maxRedeliveries,
	}}
}

// Delay returns the fixed base delay regardless of attempt number.
func (p *FixedPolicy) Delay(_ int) time.Duration {
	return p.initialDelay
}

// LinearPolicy increases the delay linearly with the attempt number, clamped to Max.
type LinearPolicy struct {
	commonPolicy
	step time.Duration
}

// NewLinearPolicy creates a policy where delay(n) = base + step*n, clamped to max.
// followup is used for the first redelivery (n == 1) in place of base+step.
func NewLinearPolicy(base, followup, step, max time.Duration, maxRedeliveries int) *LinearPolicy {
	return &LinearPolicy{
		commonPolicy: commonPolicy{
			initialDelay:    base,
			followupDelay:   followup,
			maxDelay:        max,
			maxRedeliveries: maxRedeliveries,
		},
		step: step,
	}
}

// Delay returns base + step*n, clamped to maxDelay, with the first redelivery using
// followupDelay instead of the formula whenever followupDelay is greater than zero.
func (p *LinearPolicy) Delay(redeliveryAttempt int) time.Duration {
	if redeliveryAttempt <= 1 && p.followupDelay > 0 {
		return p.followupDelay
	}

	d := p.initialDelay + p.step*time.Duration(redeliveryAttempt)
	if p.maxDelay > 0 && d > p.maxDelay {
		return p.maxDelay
	}
	return d
}

// ExponentialPolicy backs off exponentially with jitter, clamped to Max.
type ExponentialPolicy struct {
	commonPolicy
}

// NewExponentialPolicy creates a policy where
// delay(n) = min(max, base*multiplier^n) + jitter.
func NewExponentialPolicy(base time.Duration, multiplier float64, max time.Duration, maxRedeliveries int) *ExponentialPolicy {
	return &ExponentialPolicy{commonPolicy{
		initialDelay:    base,
		multiplier:      multiplier,
		maxDelay:        max,
		maxRedeliveries: maxRedeliveries,
	}}
}

// Delay returns the exponential backoff delay with up to 20% jitter.
func (p *ExponentialPolicy) Delay(redeliveryAttempt int) time.Duration {
	raw := float64(p.initialDelay) * math.Pow(p.multiplier, float64(redeliveryAttempt))

	capped := raw
	if p.maxDelay > 0 && capped > float64(p.maxDelay) {
		capped = float64(p.maxDelay)
	}

	jitter := capped * 0.2 * rand.Float64() //nolint:gosec // jitter does not need crypto randomness
	return time.Duration(capped + jitter)
}
