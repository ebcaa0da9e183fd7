package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	apperrors "roombook/pkg/errors"
	httputil "roombook/pkg/http"
	"roombook/pkg/logger"
)

// KeyFunc identifies who a request is counted against. An empty key
// exempts the request.
type KeyFunc func(r *http.Request) string

// RateLimiter is a sliding window limiter keyed per caller.
type RateLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int
	window   time.Duration
	keyFunc  KeyFunc
	log      *logger.Logger
	now      func() time.Time
	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewRateLimiter(limit int, window time.Duration, keyFunc KeyFunc, log *logger.Logger) *RateLimiter {
	limiter := &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
		keyFunc:  keyFunc,
		log:      log,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}

	go limiter.cleanup()

	return limiter
}

func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := rl.now()
			rl.mu.Lock()
			for key, timestamps := range rl.requests {
				if len(timestamps) == 0 || now.Sub(timestamps[len(timestamps)-1]) > rl.window {
					delete(rl.requests, key)
				}
			}
			rl.mu.Unlock()
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// Allow records a request for key and reports whether it fits the window.
func (rl *RateLimiter) Allow(key string) bool {
	if key == "" {
		return true
	}

	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	timestamps := rl.requests[key]
	valid := timestamps[:0]
	for _, ts := range timestamps {
		if now.Sub(ts) < rl.window {
			valid = append(valid, ts)
		}
	}

	if len(valid) >= rl.limit {
		rl.requests[key] = valid
		return false
	}

	rl.requests[key] = append(valid, now)
	return true
}

func RateLimit(limiter *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := ""
			if limiter.keyFunc != nil {
				key = limiter.keyFunc(r)
			}

			if !limiter.Allow(key) {
				rejectRateLimited(w, limiter, r, key)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func rejectRateLimited(w http.ResponseWriter, limiter *RateLimiter, r *http.Request, key string) {
	limiter.log.Warn("Rate limit exceeded",
		"request_id", RequestID(r.Context()),
		"caller", key,
		"path", r.URL.Path,
	)

	w.Header().Set("Retry-After", strconv.Itoa(int(limiter.window.Seconds())))
	_ = httputil.WriteError(w, apperrors.RateLimited())
}
