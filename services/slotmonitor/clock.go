package slotmonitor

import (
	"context"
	"time"

	"slotwatch/lib/timezone"
)

// Clock abstracts the wall clock so interval policy and failure counting
// are testable without real sleeps. Sleep returns the context error when
// interrupted, which is the loop's only shutdown path.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type sysClock struct{}

func SystemClock() Clock {
	return sysClock{}
}

func (sysClock) Now() time.Time {
	return timezone.Now()
}

func (sysClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
