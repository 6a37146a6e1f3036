// Package retry is the resilience layer wrapped around every destination
// call: a rate-limit probe before each call, a bounded exponential backoff on
// transient failures, and a blocking wait when the quota is exhausted.
package retry

import (
	"context"
	"time"

	"github.com/forgeport/forgeport/internal/github"
	"github.com/forgeport/forgeport/internal/output"
)

// Defaults for the resilience layer.
const (
	DefaultAttempts     = 3
	DefaultBaseDelay    = 2 * time.Second
	DefaultReserve      = 10
	DefaultSafetyMargin = 10 * time.Second
)

// RateLimiter reports the destination's current quota.
type RateLimiter interface {
	RateLimit(ctx context.Context) (*github.RateLimit, error)
}

// Invoker executes destination calls with rate-limit awareness and bounded
// retry. It holds no persistent state beyond the low-quota warning latch,
// which resets whenever quota is observed to have recovered.
type Invoker struct {
	Limits RateLimiter
	Out    *output.Writer

	Attempts     int           // retry ceiling per call
	BaseDelay    time.Duration // first backoff delay; doubles each attempt
	Reserve      int           // warn when remaining quota drops below this
	SafetyMargin time.Duration // added to the provider's stated reset time

	// SleepFn and NowFn exist so tests can observe waits without waiting.
	SleepFn func(time.Duration)
	NowFn   func() time.Time

	warned bool
}

// New creates an Invoker with the default attempt ceiling, backoff schedule,
// and quota reserve.
func New(limits RateLimiter, out *output.Writer) *Invoker {
	return &Invoker{
		Limits:       limits,
		Out:          out,
		Attempts:     DefaultAttempts,
		BaseDelay:    DefaultBaseDelay,
		Reserve:      DefaultReserve,
		SafetyMargin: DefaultSafetyMargin,
		SleepFn:      time.Sleep,
		NowFn:        time.Now,
	}
}

// Do runs fn, probing the rate limit first and retrying transient failures
// with exponential backoff (BaseDelay, then 2x, ...). After the attempt
// ceiling the last error propagates unchanged so per-item isolation in the
// caller can catch it. Permanent errors (404, validation) propagate
// immediately.
func (in *Invoker) Do(ctx context.Context, op string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < in.Attempts; attempt++ {
		if err := in.waitForQuota(ctx); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !github.IsTransient(lastErr) {
			return lastErr
		}
		if attempt == in.Attempts-1 {
			break
		}

		delay := in.BaseDelay << attempt
		in.Out.Warn("%s failed (%v), retrying in %s", op, lastErr, delay)
		in.SleepFn(delay)
	}
	return lastErr
}

// waitForQuota probes the destination quota. Below the reserve it warns once
// until quota recovers; at zero it blocks until the provider's stated reset
// time plus the safety margin, then probes again. A failed probe is only a
// warning: the call itself will surface any real problem.
func (in *Invoker) waitForQuota(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	rl, err := in.Limits.RateLimit(ctx)
	if err != nil {
		in.Out.Warn("could not check rate limit: %v", err)
		return nil
	}

	if rl.Remaining >= in.Reserve {
		in.warned = false
		return nil
	}

	if !in.warned {
		in.Out.Warn("destination rate limit low (%d requests remaining)", rl.Remaining)
		in.warned = true
	}

	if rl.Remaining > 0 {
		return nil
	}

	wait := rl.Reset.Sub(in.NowFn()) + in.SafetyMargin
	if wait < 0 {
		wait = in.SafetyMargin
	}
	in.Out.Warn("rate limit exhausted, waiting %s for reset", wait.Round(time.Second))
	in.SleepFn(wait)
	in.warned = false
	return in.waitForQuota(ctx)
}
