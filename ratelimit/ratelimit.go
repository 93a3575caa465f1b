// Package ratelimit provides the politeness pause taken between source requests.
package ratelimit

import (
	"context"
	"time"
)

// Pacer blocks between steps of a crawl.
type Pacer interface {
	Pause(ctx context.Context) error
}

// Delay pauses for a fixed duration.
type Delay time.Duration

// Pause waits for the delay or until ctx is done.
func (d Delay) Pause(ctx context.Context) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(time.Duration(d))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Nop never waits. Tests use it to run crawls without sleeping.
type Nop struct{}

// Pause returns immediately unless ctx is already done.
func (Nop) Pause(ctx context.Context) error {
	return ctx.Err()
}

// Counter is a Nop that records how many pauses were taken.
type Counter struct {
	Pauses int
}

// Pause implements Pacer.
func (c *Counter) Pause(ctx context.Context) error {
	c.Pauses++
	return ctx.Err()
}

// Sleep waits d or until ctx is done. Backoff loops use it.
func Sleep(ctx context.Context, d time.Duration) error {
	return Delay(d).Pause(ctx)
}
