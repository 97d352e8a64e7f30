// Package ratelimit paces outbound metadata requests so each provider
// stays inside its published API limits.
package ratelimit

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// Default request rates per provider, requests per second. Google Books
// throttles aggressively on burst traffic and Open Library asks for
// polite crawling, so both stay well under their documented ceilings.
var providerRates = map[string]int{
	"google_books": 2,
	"open_library": 2,
	"hardcover":    1,
}

// defaultProviderRate applies to user-defined providers with no known
// published limit.
const defaultProviderRate = 2

// Limiter is a named token bucket. The name ends up in cancellation
// errors so a stalled provider is identifiable in logs.
type Limiter struct {
	limiter *rate.Limiter
	name    string
}

// New creates a limiter allowing requestsPerSecond, with a burst of
// the same size.
func New(name string, requestsPerSecond int) *Limiter {
	return NewWithBurst(name, requestsPerSecond, requestsPerSecond)
}

// NewWithBurst creates a limiter with a custom burst size.
func NewWithBurst(name string, requestsPerSecond, burst int) *Limiter {
	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
		name:    name,
	}
}

// ForProvider returns a rate limiter tuned for the named provider.
// Unknown names get defaultProviderRate.
func ForProvider(name string) *Limiter {
	rps, ok := providerRates[name]
	if !ok {
		rps = defaultProviderRate
	}
	return New(name, rps)
}

// Wait blocks until a request may proceed or ctx is cancelled.
func (l *Limiter) Wait(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait for %s: %w", l.name, err)
	}
	return nil
}

// Allow reports whether a request can proceed right now without
// blocking.
func (l *Limiter) Allow() bool {
	return l.limiter.Allow()
}

// Name returns the limiter's name.
func (l *Limiter) Name() string {
	return l.name
}
