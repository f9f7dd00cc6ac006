package stream

import (
	"math/rand"
	"time"
)

// fullJitterBackoff returns a random delay in [0, min(cap, base*2^attempt)),
// the "full jitter" strategy from spec §4.4's reconnect policy — spreading
// reconnect storms across a wide window rather than the synchronized
// thundering herd a fixed exponential delay produces.
func fullJitterBackoff(attempt int, base, cap time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 32 {
		attempt = 32
	}
	upper := base << attempt
	if upper <= 0 || upper > cap {
		upper = cap
	}
	if upper <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(upper)))
}
