package httpapi

import (
	"sync"

	"golang.org/x/time/rate"
)

// limiterSet hands out one token-bucket limiter per key, lazily created on
// first use. Grounded on the teacher's per-user/per-IP RateLimiter map,
// keyed here on organization instead.
type limiterSet struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	r        rate.Limit
	burst    int
}

func newLimiterSet(r rate.Limit, burst int) *limiterSet {
	return &limiterSet{limiters: make(map[string]*rate.Limiter), r: r, burst: burst}
}

func (s *limiterSet) allow(key string) bool {
	if key == "" {
		key = "unknown"
	}
	s.mu.Lock()
	limiter, ok := s.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(s.r, s.burst)
		s.limiters[key] = limiter
	}
	s.mu.Unlock()
	return limiter.Allow()
}
