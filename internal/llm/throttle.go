package llm

import (
	"context"

	"golang.org/x/time/rate"
)

// Throttle limits the request rate to model servers. A nil *Throttle never blocks.
type Throttle struct {
	limiter *rate.Limiter
}

// NewThrottle creates a throttle allowing rps requests per second.
// rps <= 0 disables throttling and returns nil.
func NewThrottle(rps float64) *Throttle {
	if rps <= 0 {
		return nil
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return &Throttle{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Wait blocks until a request may be sent or ctx is done.
func (t *Throttle) Wait(ctx context.Context) error {
	if t == nil {
		return nil
	}
	return t.limiter.Wait(ctx)
}
