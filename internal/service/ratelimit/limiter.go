package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// Limiter keeps one token bucket per key (client address, endpoint).
// Buckets idle for longer than idleTTL are forgotten.
type Limiter struct {
	mu      sync.Mutex
	m       map[string]*bucket
	rps     rate.Limit
	burst   int
	idleTTL time.Duration
	now     func() time.Time
}

func New(rps float64, burst int) *Limiter {
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		m:       make(map[string]*bucket),
		rps:     rate.Limit(rps),
		burst:   burst,
		idleTTL: 10 * time.Minute,
		now:     time.Now,
	}
}

// Allow reports whether one event for key may happen now.
func (l *Limiter) Allow(key string) bool {
	now := l.now()

	l.mu.Lock()
	b, ok := l.m[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.rps, l.burst)}
		l.m[key] = b
	}
	b.lastSeen = now
	if len(l.m) > 1024 {
		l.sweep(now)
	}
	l.mu.Unlock()

	return b.lim.AllowN(now, 1)
}

func (l *Limiter) sweep(now time.Time) {
	for k, b := range l.m {
		if now.Sub(b.lastSeen) > l.idleTTL {
			delete(l.m, k)
		}
	}
}
