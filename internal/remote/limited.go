package remote

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// LimitedFetcher throttles thumbnail downloads so a large sync pass cannot
// saturate the uplink.
type LimitedFetcher struct {
	base    BlobFetcher
	limiter *rate.Limiter
}

// NewLimitedFetcher wraps base with a token-bucket limiter of perSec requests
// per second and the given burst. A non-positive rate disables throttling.
func NewLimitedFetcher(base BlobFetcher, perSec float64, burst int) *LimitedFetcher {
	var limiter *rate.Limiter
	if perSec > 0 {
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(perSec), burst)
	}
	return &LimitedFetcher{base: base, limiter: limiter}
}

// FetchThumb waits for limiter headroom, then delegates to the wrapped fetcher.
func (f *LimitedFetcher) FetchThumb(ctx context.Context, url string) ([]byte, error) {
	if f == nil || f.base == nil {
		return nil, ErrBackendUnavailable
	}
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("fetch limiter: %w", err)
		}
	}
	return f.base.FetchThumb(ctx, url)
}
