package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Pacer spaces outgoing requests on the client side.
type Pacer struct {
	limiter *rate.Limiter
}

// NewPacer allows rps requests per second with the given burst.
// A non-positive rps disables pacing.
func NewPacer(rps float64, burst int) *Pacer {
	if rps <= 0 {
		return &Pacer{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	if burst <= 0 {
		burst = 1
	}
	return &Pacer{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Wait blocks until the next request may be sent or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}
