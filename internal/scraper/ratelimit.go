package scraper

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter applies three tiers of crawl rate limiting: a global cap
// protecting the server, per-domain caps respecting target sites, and
// per-tenant caps for fair usage.
type RateLimiter struct {
	globalLimiter     *rate.Limiter
	perDomainLimiters sync.Map // map[string]*rate.Limiter
	perTenantLimiters sync.Map // map[string]*rate.Limiter
	perTenantRate     float64
}

// NewRateLimiter creates a three-tier rate limiter.
func NewRateLimiter(globalRate, perTenantRate float64) *RateLimiter {
	return &RateLimiter{
		globalLimiter: rate.NewLimiter(rate.Limit(globalRate), int(globalRate*2)),
		perTenantRate: perTenantRate,
	}
}

// Wait blocks until all three tiers admit a request to domain on behalf
// of tenantID, honoring crawlDelay from robots.txt for the domain tier.
func (rl *RateLimiter) Wait(ctx context.Context, tenantID, domain string, crawlDelay time.Duration) error {
	if err := rl.globalLimiter.Wait(ctx); err != nil {
		return err
	}
	if err := rl.domainLimiter(domain, crawlDelay).Wait(ctx); err != nil {
		return err
	}
	return rl.tenantLimiter(tenantID).Wait(ctx)
}

func (rl *RateLimiter) domainLimiter(domain string, crawlDelay time.Duration) *rate.Limiter {
	if limiter, ok := rl.perDomainLimiters.Load(domain); ok {
		return limiter.(*rate.Limiter)
	}

	if crawlDelay <= 0 {
		crawlDelay = 500 * time.Millisecond
	}
	requestsPerSecond := 1.0 / crawlDelay.Seconds()
	if requestsPerSecond > 5.0 {
		requestsPerSecond = 5.0
	}
	if requestsPerSecond < 0.2 {
		requestsPerSecond = 0.2 // at least one request per 5 seconds
	}

	actual, _ := rl.perDomainLimiters.LoadOrStore(domain, rate.NewLimiter(rate.Limit(requestsPerSecond), 1))
	return actual.(*rate.Limiter)
}

func (rl *RateLimiter) tenantLimiter(tenantID string) *rate.Limiter {
	if limiter, ok := rl.perTenantLimiters.Load(tenantID); ok {
		return limiter.(*rate.Limiter)
	}
	actual, _ := rl.perTenantLimiters.LoadOrStore(tenantID, rate.NewLimiter(rate.Limit(rl.perTenantRate), 10))
	return actual.(*rate.Limiter)
}
