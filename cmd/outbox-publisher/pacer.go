package main

import (
	"context"
	"math/rand/v2"
	"time"
)

const (
	maxBackoff   = 10 * time.Second
	jitterWindow = 250 * time.Millisecond
)

// pacer spaces relay polls: the base interval while idle, doubling after
// each consecutive failure until max.
type pacer struct {
	base    time.Duration
	max     time.Duration
	current time.Duration
}

func newPacer(base, max time.Duration) *pacer {
	return &pacer{base: base, max: max, current: base}
}

func (p *pacer) idle() time.Duration {
	return jitter(p.base)
}

func (p *pacer) failure() time.Duration {
	p.current = min(p.current*2, p.max)
	return jitter(p.current)
}

func (p *pacer) reset() {
	p.current = p.base
}

func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + rand.N(jitterWindow)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
