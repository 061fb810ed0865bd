package rabbitmq

import (
	"math"
	"math/rand"
	"time"
)

// Backoff decides how long the consumer waits before reconnect attempt n (1-based).
// ok=false means stop retrying.
type Backoff interface {
	Next(attempt int) (delay time.Duration, ok bool)
}

// FixedBackoff waits the same delay forever.
type FixedBackoff struct {
	Delay time.Duration
}

func (b FixedBackoff) Next(int) (time.Duration, bool) {
	return b.Delay, true
}

// ExponentialBackoff doubles Base per attempt up to Max, then spreads it by +/- Jitter (a fraction).
// Without a Max the delay stops growing at maxExponentialDelay.
type ExponentialBackoff struct {
	Base   time.Duration
	Max    time.Duration
	Jitter float64
}

// maxExponentialDelay keeps doubling and jitter clear of time.Duration overflow.
const maxExponentialDelay = time.Duration(math.MaxInt64 / 4)

func (b ExponentialBackoff) Next(attempt int) (time.Duration, bool) {
	if attempt < 1 {
		attempt = 1
	}

	ceiling := maxExponentialDelay
	if b.Max > 0 && b.Max < ceiling {
		ceiling = b.Max
	}

	delay := b.Base
	for i := 1; i < attempt && delay < ceiling; i++ {
		delay *= 2
	}
	if delay > ceiling {
		delay = ceiling
	}

	if b.Jitter > 0 {
		spread := float64(delay) * b.Jitter
		jittered := float64(delay) - spread + rand.Float64()*2*spread
		if jittered > float64(2*maxExponentialDelay) {
			jittered = float64(2 * maxExponentialDelay)
		}
		delay = time.Duration(jittered)
	}

	return delay, true
}

// CappedBackoff gives up after MaxAttempts consecutive failures.
type CappedBackoff struct {
	Backoff     Backoff
	MaxAttempts int
}

func (b CappedBackoff) Next(attempt int) (time.Duration, bool) {
	if attempt > b.MaxAttempts {
		return 0, false
	}
	return b.Backoff.Next(attempt)
}
