// Package ratelimit throttles outgoing calls to the scraping platform API.
//
// TokenBucket refills to full capacity once per period and is what the API
// client uses when a per-minute budget is configured. Unlimited is used
// otherwise. Both implement Limiter, whose Wait honors context cancellation:
//
//	limiter := ratelimit.PerMinute(cfg.RateLimit.RequestsPerMinute)
//	if err := limiter.Wait(ctx); err != nil {
//		return err
//	}
package ratelimit
