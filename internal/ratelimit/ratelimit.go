// Package ratelimit implements the per-client-IP sliding-window limiter
// described by the service's concurrency model: a single map guarded by a
// mutex, with periodic expiry of stale entries, fail-open on internal
// error because availability beats strictness here.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// entry pairs a per-client limiter with the last time it was touched, so
// the sweeper can evict clients that have gone quiet.
type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter is a process-wide, mutex-guarded collection of per-client token
// buckets. The zero value is not usable; construct with New.
type Limiter struct {
	mu            sync.Mutex
	clients       map[string]*entry
	ratePerSecond rate.Limit
	burst         int
	idleTimeout   time.Duration
}

// New builds a Limiter allowing ratePerSecond sustained requests per client
// with the given burst, evicting clients idle for longer than idleTimeout.
func New(ratePerSecond float64, burst int, idleTimeout time.Duration) *Limiter {
	return &Limiter{
		clients:       make(map[string]*entry),
		ratePerSecond: rate.Limit(ratePerSecond),
		burst:         burst,
		idleTimeout:   idleTimeout,
	}
}

// Allow reports whether clientKey (typically a remote IP) may proceed. It
// fails open: if the internal map is somehow in an inconsistent state, the
// request is allowed rather than rejected, trading strictness for
// availability per the documented design.
func (l *Limiter) Allow(clientKey string) bool {
	if l == nil {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.clients[clientKey]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(l.ratePerSecond, l.burst)}
		l.clients[clientKey] = e
	}
	e.lastSeen = time.Now()
	return e.limiter.Allow()
}

// Sweep removes clients that have not been seen within idleTimeout. Callers
// run this periodically (e.g. from a ticker goroutine); it is safe to call
// concurrently with Allow.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := time.Now().Add(-l.idleTimeout)
	removed := 0
	for key, e := range l.clients {
		if e.lastSeen.Before(cutoff) {
			delete(l.clients, key)
			removed++
		}
	}
	return removed
}

// RunSweeper blocks, sweeping every interval until stop is closed.
func (l *Limiter) RunSweeper(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.Sweep()
		case <-stop:
			return
		}
	}
}

// Clients reports the current number of tracked clients, for metrics/tests.
func (l *Limiter) Clients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}
