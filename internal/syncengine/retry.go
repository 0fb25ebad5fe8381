package syncengine

import (
	"context"
	"time"
)

// Policy is a uniform retry strategy shared by the upload and backup paths.
type Policy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// DefaultPolicy retries transient remote-store failures three times with a
// short fixed delay.
var DefaultPolicy = Policy{MaxAttempts: 3, Backoff: time.Second}

// Do runs op until it succeeds, attempts are exhausted, or the context ends.
// The last error is returned on exhaustion.
func (p Policy) Do(ctx context.Context, op func(context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = op(ctx); err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.Backoff):
		}
	}
	return err
}
