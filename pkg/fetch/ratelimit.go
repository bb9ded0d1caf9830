package fetch

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// RateLimiter paces requests per competitor domain with a token bucket each
type RateLimiter struct {
	limiters    map[string]*rate.Limiter
	mu          sync.Mutex
	defaultRate float64 // Requests per second; <= 0 means unlimited
	log         *logrus.Entry
}

// NewRateLimiter creates a RateLimiter. Domains without an explicit rate use defaultRate
func NewRateLimiter(defaultRate float64, log *logrus.Entry) *RateLimiter {
	return &RateLimiter{
		limiters:    make(map[string]*rate.Limiter),
		defaultRate: defaultRate,
		log:         log,
	}
}

func newLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(perSecond), 1)
}

// SetRate configures the rate for one domain, replacing any previous limiter
func (rl *RateLimiter) SetRate(domain string, perSecond float64) {
	rl.mu.Lock()
	rl.limiters[domain] = newLimiter(perSecond)
	rl.mu.Unlock()
}

func (rl *RateLimiter) limiter(domain string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	l, ok := rl.limiters[domain]
	if !ok {
		l = newLimiter(rl.defaultRate)
		rl.limiters[domain] = l
	}
	return l
}

// Wait blocks until a request to domain is allowed or ctx is done
func (rl *RateLimiter) Wait(ctx context.Context, domain string) error {
	l := rl.limiter(domain)
	if l.Limit() == rate.Inf {
		return ctx.Err()
	}
	r := l.Reserve()
	if !r.OK() {
		return ctx.Err()
	}
	delay := r.Delay()
	if delay <= 0 {
		return nil
	}
	rl.log.WithFields(logrus.Fields{"domain": domain, "sleep": delay}).Debug("Rate limit applying sleep")
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	}
}
