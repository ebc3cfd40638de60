package geocode

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// DefaultMinInterval spaces provider calls far enough apart for the public
// Nominatim and Photon instances.
const DefaultMinInterval = 500 * time.Millisecond

// Throttle paces outbound provider calls with a token bucket. One token is
// released per interval and at most one is held, so bursts cannot form even
// after an idle stretch.
type Throttle struct {
	limiter *rate.Limiter
}

// NewThrottle returns a throttle that releases one call per minInterval.
// Zero or negative disables pacing.
func NewThrottle(minInterval time.Duration) *Throttle {
	if minInterval <= 0 {
		return &Throttle{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Throttle{limiter: rate.NewLimiter(rate.Every(minInterval), 1)}
}

// Wait blocks until the next call may proceed or ctx is done.
func (t *Throttle) Wait(ctx context.Context) error {
	return t.limiter.Wait(ctx)
}

// Allow reports whether a call may proceed right now without waiting,
// consuming a token if so.
func (t *Throttle) Allow() bool {
	return t.limiter.Allow()
}
