package extraction

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

type throttled struct {
	next    Extractor
	limiter *rate.Limiter
}

// Throttle limits next to perMinute requests with the given burst, shared by
// every worker. A non-positive rate disables throttling.
func Throttle(next Extractor, perMinute float64, burst int) Extractor {
	if perMinute <= 0 {
		return next
	}
	if burst < 1 {
		burst = 1
	}
	return &throttled{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(perMinute/60), burst),
	}
}

func (t *throttled) Extract(ctx context.Context, req Request) (*Result, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, &Error{Kind: KindUpstreamUnavailable, Err: fmt.Errorf("waiting for request slot: %w", err)}
	}
	return t.next.Extract(ctx, req)
}
