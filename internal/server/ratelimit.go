package server

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/54b3r/ragkit/internal/logging"
)

const (
	// defaultRateLimit is the sustained searches per second allowed per
	// client IP when none is configured.
	defaultRateLimit = 10

	// defaultRateBurst is the per-IP burst when none is configured.
	defaultRateBurst = 20

	// limiterIdleTTL is how long an idle client keeps its bucket.
	limiterIdleTTL = 5 * time.Minute
)

// clientBucket is one client's token bucket and when it was last used.
type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter enforces a per-client-IP token bucket on the search route.
// Idle buckets are evicted every minute.
type rateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*clientBucket

	rps   rate.Limit
	burst int

	onReject func(reason string)
	log      *slog.Logger

	// now is replaced in tests.
	now func() time.Time
}

// newRateLimiter constructs a rateLimiter and starts its eviction loop. The
// loop exits when the returned stop function is called.
func newRateLimiter(rps float64, burst int, onReject func(reason string), log *slog.Logger) (*rateLimiter, func()) {
	if onReject == nil {
		onReject = func(string) {}
	}
	rl := &rateLimiter{
		buckets:  make(map[string]*clientBucket),
		rps:      rate.Limit(rps),
		burst:    burst,
		onReject: onReject,
		log:      log,
		now:      time.Now,
	}

	stopCh := make(chan struct{})
	go rl.evictLoop(stopCh)

	var once sync.Once
	return rl, func() { once.Do(func() { close(stopCh) }) }
}

// allow takes a token from ip's bucket, creating the bucket on first use.
func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	b, ok := rl.buckets[ip]
	if !ok {
		b = &clientBucket{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.buckets[ip] = b
	}
	b.lastSeen = rl.now()
	rl.mu.Unlock()

	return b.limiter.Allow()
}

func (rl *rateLimiter) evictLoop(stopCh <-chan struct{}) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			rl.evict()
		}
	}
}

// evict drops buckets idle for longer than limiterIdleTTL.
func (rl *rateLimiter) evict() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-limiterIdleTTL)
	evicted := 0
	for ip, b := range rl.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(rl.buckets, ip)
			evicted++
		}
	}
	if evicted > 0 && rl.log != nil {
		rl.log.Debug("rate limiter evicted idle clients",
			slog.Int("evicted", evicted),
			slog.Int("remaining", len(rl.buckets)),
		)
	}
}

// size reports the number of tracked clients.
func (rl *rateLimiter) size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

// middleware rejects requests over the limit with a JSON 429 whose
// Retry-After header is the bucket refill interval.
func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !rl.allow(ip) {
			logging.FromContext(r.Context()).Warn("rate limit exceeded",
				slog.String("ip", ip),
				slog.String("path", r.URL.Path),
			)
			rl.onReject(reasonRateLimited)
			w.Header().Set("Retry-After", strconv.Itoa(rl.retryAfterSeconds()))
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// retryAfterSeconds is the time for one token to refill, rounded up to a
// whole second and capped at a minute.
func (rl *rateLimiter) retryAfterSeconds() int {
	if rl.rps <= 0 {
		return 60
	}
	secs := math.Ceil(1 / float64(rl.rps))
	return int(min(max(secs, 1), 60))
}

// clientIP returns the host part of RemoteAddr. X-Forwarded-For is not
// trusted; put a proxy that rewrites RemoteAddr in front when needed.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
