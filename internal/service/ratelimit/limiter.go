package ratelimit

import (
	"context"
	"sync"
	"time"
)

type bucket struct {
	tokens float64
	last   time.Time
}

// Limiter is a token bucket per key. Every key starts full.
type Limiter struct {
	mu           sync.Mutex
	m            map[string]*bucket
	capacity     float64
	refillPerSec float64
	now          func() time.Time
}

func New(capacity, refillPerSec float64) *Limiter {
	return &Limiter{
		m:            make(map[string]*bucket),
		capacity:     capacity,
		refillPerSec: refillPerSec,
		now:          time.Now,
	}
}

// Allow returns true if one token can be consumed for key.
func (l *Limiter) Allow(key string) bool {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.m[key]
	if !ok {
		b = &bucket{tokens: l.capacity, last: now}
		l.m[key] = b
	}
	// refill
	elapsed := now.Sub(b.last).Seconds()
	if elapsed > 0 {
		b.tokens += elapsed * l.refillPerSec
		if b.tokens > l.capacity {
			b.tokens = l.capacity
		}
		b.last = now
	}
	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// Prune drops buckets that have been full for at least idle.
func (l *Limiter) Prune(idle time.Duration) int {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for k, b := range l.m {
		if now.Sub(b.last) < idle {
			continue
		}
		if b.tokens+now.Sub(b.last).Seconds()*l.refillPerSec >= l.capacity {
			delete(l.m, k)
			n++
		}
	}
	return n
}

// PruneEvery calls Prune(idle) on every tick until ctx is done. onPrune, if
// set, receives the number of buckets dropped by each non-empty sweep.
func (l *Limiter) PruneEvery(ctx context.Context, every, idle time.Duration, onPrune func(int)) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := l.Prune(idle); n > 0 && onPrune != nil {
				onPrune(n)
			}
		}
	}
}
