package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/teilomillet/lucid/config"
	"github.com/teilomillet/lucid/errors"
	"github.com/teilomillet/lucid/metrics"
	"golang.org/x/time/rate"
)

// minIdle bounds how quickly an idle client is forgotten.
const minIdle = time.Minute

// RateLimiter throttles requests per client address with a token bucket.
// Clients idle long enough for their bucket to refill are evicted.
type RateLimiter struct {
	limit   rate.Limit
	burst   int
	idle    time.Duration
	metrics *metrics.Metrics
	now     func() time.Time

	mu        sync.Mutex
	visitors  map[string]*visitor
	lastSweep time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter builds a limiter allowing cfg.RequestsPerMinute with bursts
// of cfg.Burst (at least 1). A non-positive budget disables limiting. m may
// be nil.
func NewRateLimiter(cfg config.RateLimitConfig, m *metrics.Metrics) *RateLimiter {
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	limit := rate.Inf
	idle := minIdle
	if cfg.RequestsPerMinute > 0 {
		interval := time.Minute / time.Duration(cfg.RequestsPerMinute)
		limit = rate.Every(interval)
		if refill := time.Duration(burst) * interval; refill > idle {
			idle = refill
		}
	}
	return &RateLimiter{
		limit:    limit,
		burst:    burst,
		idle:     idle,
		metrics:  m,
		now:      time.Now,
		visitors: make(map[string]*visitor),
	}
}

func (l *RateLimiter) limiter(client string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= l.idle {
		for c, v := range l.visitors {
			if now.Sub(v.lastSeen) >= l.idle {
				delete(l.visitors, c)
			}
		}
		l.lastSweep = now
	}

	v, exists := l.visitors[client]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[client] = v
	}
	v.lastSeen = now
	return v.limiter
}

func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Handler rejects requests over budget with a rate_limit_error envelope.
func (l *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client := clientAddr(r)
		limiter := l.limiter(client)

		reservation := limiter.Reserve()
		if delay := reservation.Delay(); delay > 0 {
			reservation.Cancel()
			if l.metrics != nil {
				l.metrics.RateLimitHits.WithLabelValues(client).Inc()
			}
			retryAfter := int(math.Ceil(delay.Seconds()))
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			errors.WriteError(w, errors.NewRateLimitError(GetRequestID(r.Context()), retryAfter))
			return
		}

		next.ServeHTTP(w, r)
	})
}
