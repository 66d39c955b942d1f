package security

import (
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultMaxClients = 10000
	sweepInterval     = 5 * time.Minute
	maxIdle           = 30 * time.Minute
)

// clientLimiter is one token bucket, keyed by client_id at the token
// endpoint (or remote address for unauthenticated endpoints).
type clientLimiter struct {
	bucket   *rate.Limiter
	lastSeen time.Time
}

// RateLimiter throttles requests per client using token buckets. Idle
// buckets are swept periodically, and a hard cap bounds the number of
// tracked clients so an attacker cycling client_id values cannot grow
// the map without limit.
type RateLimiter struct {
	mu         sync.Mutex
	clients    map[string]*clientLimiter
	rps        rate.Limit
	burst      int
	maxClients int
	logger     *slog.Logger
	stop       chan struct{}
	stopOnce   sync.Once

	evictions uint64
}

// NewRateLimiter creates a per-client rate limiter allowing
// requestsPerSecond sustained with the given burst. Stop must be called
// to release the sweep goroutine.
func NewRateLimiter(requestsPerSecond, burst int, logger *slog.Logger) *RateLimiter {
	if logger == nil {
		logger = slog.Default()
	}
	rl := &RateLimiter{
		clients:    make(map[string]*clientLimiter),
		rps:        rate.Limit(requestsPerSecond),
		burst:      burst,
		maxClients: defaultMaxClients,
		logger:     logger,
		stop:       make(chan struct{}),
	}
	go rl.sweepLoop()
	return rl
}

// Allow reports whether a request attributed to key may proceed.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cl, ok := rl.clients[key]
	if !ok {
		if len(rl.clients) >= rl.maxClients {
			rl.evictStalest()
		}
		cl = &clientLimiter{bucket: rate.NewLimiter(rl.rps, rl.burst)}
		rl.clients[key] = cl
	}
	cl.lastSeen = time.Now()
	return cl.bucket.Allow()
}

// evictStalest drops the least recently seen client. Caller holds mu.
func (rl *RateLimiter) evictStalest() {
	var stalest string
	var stalestSeen time.Time
	for key, cl := range rl.clients {
		if stalest == "" || cl.lastSeen.Before(stalestSeen) {
			stalest = key
			stalestSeen = cl.lastSeen
		}
	}
	if stalest != "" {
		delete(rl.clients, stalest)
		rl.evictions++
		rl.logger.Debug("Rate limiter evicted stalest client",
			"client", stalest, "tracked", len(rl.clients), "evictions", rl.evictions)
	}
}

func (rl *RateLimiter) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.Sweep(maxIdle)
		case <-rl.stop:
			return
		}
	}
}

// Sweep removes clients that have been idle longer than cutoff.
func (rl *RateLimiter) Sweep(cutoff time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	deadline := time.Now().Add(-cutoff)
	removed := 0
	for key, cl := range rl.clients {
		if cl.lastSeen.Before(deadline) {
			delete(rl.clients, key)
			removed++
		}
	}
	if removed > 0 {
		rl.logger.Debug("Rate limiter sweep", "removed", removed, "tracked", len(rl.clients))
	}
}

// TrackedClients returns the number of clients currently tracked.
func (rl *RateLimiter) TrackedClients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// Stop terminates the background sweep goroutine. Safe to call more
// than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}
