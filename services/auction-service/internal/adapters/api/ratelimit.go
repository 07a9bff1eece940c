package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/greenrow/lot-auction/pkg/auth"
)

const (
	limiterIdleTTL       = 10 * time.Minute
	limiterSweepInterval = 5 * time.Minute
)

type bidderLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// BidderRateLimiter is a token bucket per authenticated bidder. Idle buckets
// are swept lazily on access so no background goroutine is needed.
type BidderRateLimiter struct {
	mu        sync.Mutex
	limiters  map[uuid.UUID]*bidderLimiter
	r         rate.Limit
	burst     int
	lastSweep time.Time
	now       func() time.Time
}

// NewBidderRateLimiter allows r requests per second with bursts up to burst.
func NewBidderRateLimiter(r rate.Limit, burst int) *BidderRateLimiter {
	return &BidderRateLimiter{
		limiters:  make(map[uuid.UUID]*bidderLimiter),
		r:         r,
		burst:     burst,
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

func (rl *BidderRateLimiter) allow(bidderID uuid.UUID) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastSweep) > limiterSweepInterval {
		for id, v := range rl.limiters {
			if now.Sub(v.lastSeen) > limiterIdleTTL {
				delete(rl.limiters, id)
			}
		}
		rl.lastSweep = now
	}

	v, ok := rl.limiters[bidderID]
	if !ok {
		v = &bidderLimiter{limiter: rate.NewLimiter(rl.r, rl.burst)}
		rl.limiters[bidderID] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// Limit must run after the auth middleware.
func (rl *BidderRateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bidderID, ok := auth.GetBidderID(r.Context())
		if ok && !rl.allow(bidderID) {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}
