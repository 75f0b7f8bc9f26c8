package fetch

import (
	"context"
	"math/rand/v2"
	"time"
)

// Pacer inserts a randomized delay between requests to emulate human pacing.
// It is a courtesy to the remote server, not a correctness mechanism.
type Pacer struct {
	min time.Duration
	max time.Duration
}

// NewPacer builds a Pacer sleeping uniformly in [min, max] per call. A nil
// Pacer or a non-positive max disables pacing.
func NewPacer(min, max time.Duration) *Pacer {
	if max < min {
		max = min
	}
	return &Pacer{min: min, max: max}
}

// Pause sleeps for the next jittered interval, returning early when the
// context finishes.
func (p *Pacer) Pause(ctx context.Context) {
	if p == nil || p.max <= 0 {
		return
	}
	delay := p.min
	if span := p.max - p.min; span > 0 {
		delay += rand.N(span)
	}
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
