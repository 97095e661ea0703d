package fetch

import (
	"context"
	"sync"
	"time"
)

// Clock reports the current time. Tests swap it for a fake.
type Clock interface {
	Now() time.Time
}

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}

// Sleep is the real SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Pacer enforces a minimum interval between requests. It holds the time of
// the last request explicitly; one Pacer is shared by everything that talks
// to the same forum.
type Pacer struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
	clock    Clock
	sleep    SleepFunc
}

// NewPacer returns a pacer that allows one request per interval. A nil clock
// or sleep falls back to the real ones.
func NewPacer(interval time.Duration, clock Clock, sleep SleepFunc) *Pacer {
	if clock == nil {
		clock = SystemClock
	}
	if sleep == nil {
		sleep = Sleep
	}
	return &Pacer{interval: interval, clock: clock, sleep: sleep}
}

// Wait blocks until a request may be sent and records it as sent.
func (p *Pacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.last.IsZero() {
		if d := p.interval - p.clock.Now().Sub(p.last); d > 0 {
			if err := p.sleep(ctx, d); err != nil {
				return err
			}
		}
	}
	p.last = p.clock.Now()
	return nil
}

// Last returns when the previous request was let through.
func (p *Pacer) Last() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

func (p *Pacer) Interval() time.Duration {
	return p.interval
}
