package poll

import (
	"context"
	"time"
)

// Predicate reports whether the awaited condition holds. A non-nil error
// aborts the poll.
type Predicate func(ctx context.Context) (bool, error)

// Until checks pred immediately and then every interval until it holds,
// timeout elapses, or ctx is done. A timeout is (false, nil), not an error.
func Until(ctx context.Context, interval, timeout time.Duration, pred Predicate) (bool, error) {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	var deadline <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		deadline = t.C
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		ok, err := pred(ctx)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-deadline:
			// one last look so a condition that became true on the boundary is not missed
			ok, err := pred(ctx)
			if err != nil {
				return false, err
			}
			return ok, nil
		case <-ticker.C:
		}
	}
}

// Sleep waits d or until ctx is done, returning ctx.Err() in the latter case.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
