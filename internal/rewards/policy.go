package rewards

import (
	"context"
	"errors"
	"time"
)

// CallPolicy bounds one external call: a per-attempt timeout, how many attempts, and the
// base of the exponential backoff between them.
type CallPolicy struct {
	Timeout  time.Duration
	Attempts int
	Backoff  time.Duration
}

// Do runs fn until it succeeds, returns a permanent error, or attempts run out.
// Deadline expiry of an attempt is reported as ErrExternalTimeout, other failures as
// ErrExternalFailure.
func (p CallPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = p.once(ctx, fn)
		if lastErr == nil {
			return nil
		}
		if IsPermanent(lastErr) || ctx.Err() != nil || attempt == attempts {
			break
		}
		delay := p.Backoff * time.Duration(1<<(attempt-1))
		if delay > 0 {
			t := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return classify(ctx.Err())
			case <-t.C:
			}
		}
	}
	return classify(lastErr)
}

func (p CallPolicy) once(ctx context.Context, fn func(ctx context.Context) error) error {
	if p.Timeout <= 0 {
		return fn(ctx)
	}
	callCtx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()
	return fn(callCtx)
}

func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrExternalTimeout), errors.Is(err, ErrExternalFailure):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return errors.Join(ErrExternalTimeout, err)
	default:
		return errors.Join(ErrExternalFailure, err)
	}
}
