package syncqueue

import (
	"time"

	"github.com/sethvargo/go-retry"
)

// Backoff computes per-item retry delays: exponential growth with optional
// jitter, hard-capped so a long-failing item never waits unbounded and a
// burst of queued items reconnecting together does not retry in lockstep.
type Backoff struct {
	Base          time.Duration
	Cap           time.Duration
	JitterPercent uint64
}

// DefaultBackoff mirrors the shipped configuration defaults.
func DefaultBackoff() Backoff {
	return Backoff{Base: 2 * time.Second, Cap: 5 * time.Minute, JitterPercent: 10}
}

// Delay returns the wait before attempt n (1-based). The cap applies after
// jitter, so the configured maximum is a true bound.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	var bo retry.Backoff = retry.NewExponential(b.Base)
	if b.JitterPercent > 0 {
		bo = retry.WithJitterPercent(b.JitterPercent, bo)
	}
	bo = retry.WithCappedDuration(b.Cap, bo)

	var d time.Duration
	for i := 0; i < attempt; i++ {
		d, _ = bo.Next()
	}
	return d
}
