// Package retry provides exponential-backoff retries for transient
// failures of outbound calls (message delivery, index writes).
package retry

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/shirayu/docent/pkg/utils/logging"
)

// Policy controls how Do behaves.
type Policy struct {
	// Attempts is the total number of tries including the first one.
	// Values below 1 are treated as a single try.
	Attempts int
	// Delay is the wait before the second try; it doubles after every
	// failed try, capped at MaxDelay.
	Delay    time.Duration
	MaxDelay time.Duration
}

// Default is tuned for short network calls to nearby services.
var Default = Policy{
	Attempts: 3,
	Delay:    500 * time.Millisecond,
	MaxDelay: 5 * time.Second,
}

// Do runs fn until it succeeds, the policy is exhausted, or ctx is
// done. The last error is returned.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	if p.Attempts < 1 {
		p.Attempts = 1
	}
	if p.Delay <= 0 {
		p.Delay = Default.Delay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = Default.MaxDelay
	}

	delay := p.Delay
	var lastErr error

	for attempt := 1; attempt <= p.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return goerr.Wrap(err, "retry aborted", goerr.V("attempt", attempt))
		}

		if lastErr = fn(ctx); lastErr == nil {
			return nil
		}

		if attempt == p.Attempts {
			break
		}

		logging.From(ctx).Debug("retrying after failure",
			"attempt", attempt, "max", p.Attempts, "delay", delay, "error", lastErr)

		select {
		case <-ctx.Done():
			return goerr.Wrap(ctx.Err(), "retry aborted while waiting")
		case <-time.After(delay):
		}

		delay *= 2
		if delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}

	return lastErr
}
