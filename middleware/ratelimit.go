package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"dispatch-gateway/metrics"

	"github.com/go-chi/render"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"
)

// RateLimitMessage is the fixed body returned on admission rejection.
const RateLimitMessage = "Too many requests from this IP, please try again later."

// maxTrackedClients bounds the client table; idle clients also expire after one window.
const maxTrackedClients = 10000

type clientWindow struct {
	hits []time.Time
}

// RateLimiter admits at most max requests per client address within any
// rolling window.
type RateLimiter struct {
	window  time.Duration
	max     int
	now     func() time.Time
	metrics *metrics.Metrics

	mu      sync.Mutex
	clients *lru.LRU[string, *clientWindow]
}

func NewRateLimiter(window time.Duration, max int, m *metrics.Metrics) *RateLimiter {
	return &RateLimiter{
		window:  window,
		max:     max,
		now:     time.Now,
		metrics: m,
		clients: lru.NewLRU[string, *clientWindow](maxTrackedClients, nil, window),
	}
}

// Allow records a request from client and reports whether it is admitted,
// how many requests remain, and when the oldest counted request leaves the window.
func (rl *RateLimiter) Allow(client string) (bool, int, time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	cutoff := now.Add(-rl.window)

	cw, ok := rl.clients.Get(client)
	if !ok {
		cw = &clientWindow{}
	}

	kept := cw.hits[:0]
	for _, hit := range cw.hits {
		if hit.After(cutoff) {
			kept = append(kept, hit)
		}
	}
	cw.hits = kept

	allowed := len(cw.hits) < rl.max
	if allowed {
		cw.hits = append(cw.hits, now)
	}
	rl.clients.Add(client, cw)

	reset := now.Add(rl.window)
	if len(cw.hits) > 0 {
		reset = cw.hits[0].Add(rl.window)
	}
	return allowed, rl.max - len(cw.hits), reset
}

// Handler is the admission-control middleware.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client := clientAddress(r)
		allowed, remaining, reset := rl.Allow(client)

		resetIn := int(math.Ceil(reset.Sub(rl.now()).Seconds()))
		if resetIn < 0 {
			resetIn = 0
		}
		w.Header().Set("RateLimit-Limit", strconv.Itoa(rl.max))
		w.Header().Set("RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("RateLimit-Reset", strconv.Itoa(resetIn))

		if !allowed {
			rl.metrics.RateLimited()
			logrus.WithFields(logrus.Fields{
				"client": client,
				"path":   r.URL.Path,
			}).Warn("Rate limit exceeded")
			w.Header().Set("Retry-After", strconv.Itoa(resetIn))
			render.Status(r, http.StatusTooManyRequests)
			render.JSON(w, r, map[string]string{"error": RateLimitMessage})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func clientAddress(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
