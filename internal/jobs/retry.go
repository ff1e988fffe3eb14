// Package jobs runs photo jobs: fetch the photo, analyze it, record the faces,
// publish the outcome. Retrying failed jobs is a policy decision kept apart
// from the handler so the queue consumer and in-process callers share it.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Limmita2/FaseWatch/internal/identity"
	"github.com/Limmita2/FaseWatch/internal/observability"
)

// Verdict is what to do with a job after a failed attempt.
type Verdict int

const (
	// Retry schedules another attempt after the policy delay.
	Retry Verdict = iota
	// Drop gives up immediately because the error is permanent.
	Drop
	// Exhausted gives up because the attempt budget is spent.
	Exhausted
)

func (v Verdict) String() string {
	switch v {
	case Retry:
		return "retry"
	case Drop:
		return "permanent"
	case Exhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Clock abstracts waiting so tests can run the policy without sleeping.
type Clock interface {
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// RetryPolicy bounds how often and how fast a failed job is attempted again.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
	// Clock defaults to the wall clock.
	Clock Clock
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 5, Delay: 15 * time.Second}
}

// Next decides the fate of a job whose attempt number attempt (1-based)
// failed with err.
func (p RetryPolicy) Next(attempt int, err error) (Verdict, time.Duration) {
	if identity.IsPermanent(err) {
		return Drop, 0
	}
	if attempt >= p.MaxAttempts {
		return Exhausted, 0
	}
	return Retry, p.Delay
}

// Run calls fn until it succeeds, returns a permanent error, or the attempt
// budget is spent. The returned error wraps the last failure.
func (p RetryPolicy) Run(ctx context.Context, fn func(ctx context.Context, attempt int) error) error {
	clock := p.Clock
	if clock == nil {
		clock = realClock{}
	}

	for attempt := 1; ; attempt++ {
		err := fn(ctx, attempt)
		if err == nil {
			return nil
		}

		verdict, delay := p.Next(attempt, err)
		if verdict != Retry {
			observability.JobsFailed.WithLabelValues(verdict.String()).Inc()
			return fmt.Errorf("gave up after %d attempts (%s): %w", attempt, verdict, err)
		}

		observability.JobsRetried.Inc()
		slog.Warn("attempt failed, retrying", "attempt", attempt, "delay", delay, "error", err)

		select {
		case <-ctx.Done():
			return fmt.Errorf("retry interrupted after %d attempts: %w", attempt, ctx.Err())
		case <-clock.After(delay):
		}
	}
}
