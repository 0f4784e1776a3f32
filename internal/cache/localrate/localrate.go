// Package localrate is the in-process fallback for carrier throttling when Redis is not
// configured.
package localrate

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter keeps one token bucket per carrier. Keys built by the poller carry a minute suffix
// ("rl:carrier:<ref>:<minute>"); that suffix is ignored because the bucket refills continuously.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

func New() *Limiter {
	return &Limiter{buckets: make(map[string]*rate.Limiter)}
}

func (l *Limiter) bucket(key string, limit int64, window time.Duration) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	every := rate.Every(window / time.Duration(limit))
	b, ok := l.buckets[key]
	if !ok {
		b = rate.NewLimiter(every, int(limit))
		l.buckets[key] = b
		return b
	}
	if b.Limit() != every || b.Burst() != int(limit) {
		b.SetLimit(every)
		b.SetBurst(int(limit))
	}
	return b
}

// Allow takes one token. The returned count is the number of tokens already spent in the
// current burst.
func (l *Limiter) Allow(_ context.Context, key string, limit int64, window time.Duration) (bool, int64, error) {
	if limit <= 0 || window <= 0 {
		return true, 0, nil
	}
	b := l.bucket(carrierKey(key), limit, window)
	ok := b.Allow()
	used := limit - int64(b.Tokens())
	return ok, used, nil
}

func carrierKey(key string) string {
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == ':' {
			return key[:i]
		}
	}
	return key
}
