package identity

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// addressLimiter keeps one token bucket per remote address. Idle buckets expire
// so the map doesn't grow with every address ever seen.
type addressLimiter struct {
	limiters *cache.Cache
	mu       sync.Mutex
	r        rate.Limit
	b        int
}

func newAddressLimiter(r rate.Limit, b int) *addressLimiter {
	return &addressLimiter{
		limiters: cache.New(10*time.Minute, 20*time.Minute),
		r:        r,
		b:        b,
	}
}

func (l *addressLimiter) get(addr string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if v, ok := l.limiters.Get(addr); ok {
		lim := v.(*rate.Limiter)
		l.limiters.SetDefault(addr, lim)
		return lim
	}
	lim := rate.NewLimiter(l.r, l.b)
	l.limiters.SetDefault(addr, lim)
	return lim
}

// Allow reports whether addr may attempt another sign-in now
func (l *addressLimiter) Allow(addr string) bool {
	return l.get(addr).Allow()
}
