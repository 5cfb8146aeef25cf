package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// pruneAbove is the key count past which idle, fully refilled buckets are dropped.
const pruneAbove = 10000

type entry struct {
	lim  *rate.Limiter
	last time.Time
}

// Limiter is a token bucket per key, e.g. per client IP.
type Limiter struct {
	mu       sync.Mutex
	m        map[string]*entry
	capacity int
	refill   rate.Limit
	now      func() time.Time
}

// New creates a limiter whose buckets hold capacity tokens and refill refillPerSec tokens a second.
func New(capacity int, refillPerSec float64) *Limiter {
	return &Limiter{
		m:        make(map[string]*entry),
		capacity: capacity,
		refill:   rate.Limit(refillPerSec),
		now:      time.Now,
	}
}

// Allow returns true if one token can be consumed for key.
func (l *Limiter) Allow(key string) bool {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.m[key]
	if !ok {
		if len(l.m) >= pruneAbove {
			l.prune(now)
		}
		e = &entry{lim: rate.NewLimiter(l.refill, l.capacity)}
		l.m[key] = e
	}
	e.last = now
	return e.lim.AllowN(now, 1)
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}

// prune drops buckets idle long enough to be full again; forgetting them changes nothing.
func (l *Limiter) prune(now time.Time) {
	if l.refill <= 0 {
		return
	}
	full := time.Duration(float64(l.capacity) / float64(l.refill) * float64(time.Second))
	for k, e := range l.m {
		if now.Sub(e.last) >= full {
			delete(l.m, k)
		}
	}
}
