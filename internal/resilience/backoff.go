package resilience

import (
	"context"
	"time"
)

// Backoff produces exponentially growing delays for reconnect loops.
// The zero value is usable and starts at 1s, doubling up to 30s.
// Backoff is not safe for concurrent use; each loop owns its own.
type Backoff struct {
	// Initial is the first delay. Default: 1s.
	Initial time.Duration

	// Max caps the delay. Default: 30s.
	Max time.Duration

	// Factor is the multiplier applied per attempt. Default: 2.
	Factor float64

	attempt int
}

// Next returns the delay for the current attempt and advances the counter.
func (b *Backoff) Next() time.Duration {
	initial := b.Initial
	if initial <= 0 {
		initial = time.Second
	}
	max := b.Max
	if max <= 0 {
		max = 30 * time.Second
	}
	factor := b.Factor
	if factor <= 1 {
		factor = 2
	}

	d := time.Duration(float64(initial) * pow(factor, b.attempt))
	if d > max || d <= 0 {
		d = max
	} else {
		b.attempt++
	}
	return d
}

// Reset rewinds the backoff to its initial delay, typically after a
// successful connection.
func (b *Backoff) Reset() {
	b.attempt = 0
}

// Sleep waits for d or until ctx is done, returning ctx.Err() in the
// latter case.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func pow(base float64, n int) float64 {
	v := 1.0
	for i := 0; i < n; i++ {
		v *= base
	}
	return v
}
