package fetch

import (
	"context"
	"encoding/json"
	"time"
)

// RetryPolicy is a declarative retry rule set. Exclusions are data, not
// conditionals scattered per call site: statuses listed in NoRetryStatuses
// are never retried regardless of remaining attempts.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts including the first.
	MaxAttempts int

	// Delay is the pause before the first retry.
	Delay time.Duration

	// Backoff multiplies the delay after each retry. Zero means constant.
	Backoff float64

	// NoRetryStatuses lists HTTP statuses that must fail immediately,
	// typically authorization failures.
	NoRetryStatuses []int
}

// DefaultRetryPolicy returns the single-attempt policy: the core never
// retries on its own, retry behavior is an explicit caller choice.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     1,
		NoRetryStatuses: []int{401, 403},
	}
}

// Retryable reports whether the policy allows retrying after err.
func (p RetryPolicy) Retryable(err error) bool {
	te, ok := err.(*Error)
	if !ok {
		return false
	}
	switch te.Kind {
	case MalformedResponse:
		// The server answered; asking again will not fix its payload.
		return false
	case NonSuccessStatus:
		for _, status := range p.NoRetryStatuses {
			if te.StatusCode == status {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// Do runs fn under the policy. The last error is returned when attempts are
// exhausted.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) (json.RawMessage, error)) (json.RawMessage, error) {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	delay := p.Delay
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, unreachable(ctx.Err())
			case <-time.After(delay):
			}
			if p.Backoff > 0 {
				delay = time.Duration(float64(delay) * p.Backoff)
			}
		}

		body, err := fn(ctx)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !p.Retryable(err) {
			return nil, err
		}
	}
	return nil, lastErr
}
