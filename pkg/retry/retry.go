// Package retry provides a small attempt/backoff policy used by the
// fleet's connection and clock operations.
package retry

import (
	"context"
	"time"
)

// Policy describes a bounded retry schedule. The delay before attempt
// n+1 is Initial + (n-1)*Step, so the backoff grows linearly.
type Policy struct {
	MaxAttempts int
	Initial     time.Duration
	Step        time.Duration
}

// Do invokes fn up to MaxAttempts times until it reports success,
// sleeping between attempts per the schedule. It returns false when all
// attempts fail or the context is cancelled while backing off.
func (p Policy) Do(ctx context.Context, fn func(attempt int) bool) bool {
	if ctx == nil {
		ctx = context.Background()
	}
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	delay := p.Initial
	for attempt := 1; attempt <= attempts; attempt++ {
		if fn(attempt) {
			return true
		}
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(delay):
		}
		delay += p.Step
	}
	return false
}
