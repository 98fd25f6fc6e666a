package pipeline

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Backoff is the delay policy between items and between navigation retries.
// Attempt 0 is the plain inter-item delay: Base plus up to Jitter.
type Backoff struct {
	Base       time.Duration
	Jitter     time.Duration
	Multiplier float64
	Max        time.Duration
	Retries    int

	rand func(n int64) int64
}

// DefaultBackoff matches the source site's tolerance: 2-4s between pages.
func DefaultBackoff() Backoff {
	return Backoff{Base: 2 * time.Second, Jitter: 2 * time.Second, Multiplier: 2, Max: 30 * time.Second, Retries: 2}
}

func (b Backoff) Delay(attempt int) time.Duration {
	d := b.Base
	if attempt > 0 && b.Multiplier > 1 {
		d = time.Duration(float64(d) * math.Pow(b.Multiplier, float64(attempt)))
	}
	if b.Jitter > 0 {
		rnd := b.rand
		if rnd == nil {
			rnd = rand.Int63n
		}
		d += time.Duration(rnd(int64(b.Jitter)))
	}
	if b.Max > 0 && d > b.Max {
		d = b.Max
	}
	return d
}

// Wait sleeps for Delay(attempt) or until ctx is done.
func (b Backoff) Wait(ctx context.Context, attempt int) error {
	d := b.Delay(attempt)
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
