package approvalhttp

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimit configures the decision endpoint's per-signer token bucket,
// the same RatePerSecond/Burst shape gateway/middleware/ratelimit.go
// uses per route.
type RateLimit struct {
	RatePerSecond float64
	Burst         int
}

// RateLimiter bounds POST /decision calls per signer address rather than
// per client IP: a wallet can retry a flaky submission, but cannot be
// used to hammer the quorum bookkeeping behind a rotating IP.
type RateLimiter struct {
	cfg      RateLimit
	mu       sync.Mutex
	visitors map[string]*rate.Limiter
	now      func() time.Time
}

func NewRateLimiter(cfg RateLimit, now func() time.Time) *RateLimiter {
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 1
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 5
	}
	if now == nil {
		now = time.Now
	}
	return &RateLimiter{cfg: cfg, visitors: make(map[string]*rate.Limiter), now: now}
}

func (rl *RateLimiter) limiterFor(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	l, ok := rl.visitors[key]
	if !ok {
		l = rate.NewLimiter(rate.Limit(rl.cfg.RatePerSecond), rl.cfg.Burst)
		rl.visitors[key] = l
	}
	return l
}

// Middleware throttles by the signer identity requireSession already
// placed in the request context; it must run after requireSession.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		signer, ok := signerFromContext(r.Context())
		if !ok {
			signer = r.RemoteAddr
		}
		if !rl.limiterFor(signer).AllowN(rl.now(), 1) {
			writeJSONError(w, http.StatusTooManyRequests, "too many decision attempts, slow down")
			return
		}
		next.ServeHTTP(w, r)
	})
}
