package executor

import (
	"context"
	"time"
)

// WaitUntil blocks until targetSeconds of scenario time, divided by
// timeScale, have passed since start. It returns early with ctx's error.
func WaitUntil(ctx context.Context, start time.Time, targetSeconds, timeScale int) error {
	delay := time.Until(start.Add(ScaledOffset(targetSeconds, timeScale)))
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ScaledOffset converts scenario seconds to wall time
func ScaledOffset(targetSeconds, timeScale int) time.Duration {
	if timeScale < 1 {
		timeScale = 1
	}
	return time.Duration(targetSeconds) * time.Second / time.Duration(timeScale)
}

// Elapsed returns seconds since start
func Elapsed(start time.Time) float64 {
	return time.Since(start).Seconds()
}
