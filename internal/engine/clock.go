package engine

import (
	"context"
	"time"

	"autominer/internal/poll"
)

// Clock is the scheduler's only source of time. Every wait the loop itself
// performs goes through Sleep so a fake clock can drive it in tests.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

func (RealClock) Sleep(ctx context.Context, d time.Duration) error { return poll.Sleep(ctx, d) }
