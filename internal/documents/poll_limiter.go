package documents

import (
	"sync"
	"time"
)

// pollLimiter throttles status polling per user and document so an
// aggressive client cannot hammer the database. One poll per interval is
// allowed; callers that hit the limit get the seconds left until retry.
type pollLimiter struct {
	mu       sync.Mutex
	interval time.Duration
	lastSeen map[string]time.Time
	now      func() time.Time
}

func newPollLimiter(interval time.Duration) *pollLimiter {
	return &pollLimiter{
		interval: interval,
		lastSeen: make(map[string]time.Time),
		now:      time.Now,
	}
}

// Allow reports whether the caller may poll now, and if not, how many whole
// seconds to wait.
func (l *pollLimiter) Allow(key string) (bool, int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	last, seen := l.lastSeen[key]
	if seen && now.Sub(last) < l.interval {
		wait := l.interval - now.Sub(last)
		secs := int(wait / time.Second)
		if wait%time.Second > 0 {
			secs++
		}
		return false, secs
	}
	l.lastSeen[key] = now
	if len(l.lastSeen) > 4096 {
		l.prune(now)
	}
	return true, 0
}

func (l *pollLimiter) prune(now time.Time) {
	for k, t := range l.lastSeen {
		if now.Sub(t) > 10*l.interval {
			delete(l.lastSeen, k)
		}
	}
}
