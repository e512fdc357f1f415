package http

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// idleLimiter is how long an unused session limiter is kept.
const idleLimiter = 10 * time.Minute

// sessionLimiter is a token bucket per session id.
type sessionLimiter struct {
	rps   rate.Limit
	burst int

	mu        sync.Mutex
	visitors  map[string]*visitor
	lastSweep time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newSessionLimiter(rps float64, burst int) *sessionLimiter {
	if burst < 1 {
		burst = 1
	}
	return &sessionLimiter{
		rps:       rate.Limit(rps),
		burst:     burst,
		visitors:  make(map[string]*visitor),
		lastSweep: time.Now(),
	}
}

// Allow reports whether the session may send another message now.
func (l *sessionLimiter) Allow(sessionID string) bool {
	now := time.Now()
	l.mu.Lock()
	if now.Sub(l.lastSweep) > idleLimiter {
		for id, v := range l.visitors {
			if now.Sub(v.lastSeen) > idleLimiter {
				delete(l.visitors, id)
			}
		}
		l.lastSweep = now
	}
	v, ok := l.visitors[sessionID]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.visitors[sessionID] = v
	}
	v.lastSeen = now
	l.mu.Unlock()
	return v.limiter.AllowN(now, 1)
}
