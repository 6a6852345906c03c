package workflow

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// DefaultIdleTTL is how long an untouched workflow survives
const DefaultIdleTTL = 30 * time.Minute

// Registry keeps one Controller per session. Controllers idle for longer than
// the TTL are evicted and invalidated.
type Registry struct {
	sessions      *cache.Cache
	newController func() *Controller
}

// NewRegistry creates a registry building controllers with newController
func NewRegistry(idleTTL time.Duration, newController func() *Controller) *Registry {
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTTL
	}
	return newRegistry(idleTTL, idleTTL/2, newController)
}

// newRegistry sweeps every sweepInterval; zero leaves sweeping to Get
func newRegistry(idleTTL, sweepInterval time.Duration, newController func() *Controller) *Registry {
	sessions := cache.New(idleTTL, sweepInterval)
	sessions.OnEvicted(func(_ string, v any) {
		if ctrl, ok := v.(*Controller); ok {
			ctrl.Invalidate()
		}
	})
	return &Registry{sessions: sessions, newController: newController}
}

// Get returns the session's controller, creating it on first use. Every call
// restarts the idle timer.
func (r *Registry) Get(sessionID string) *Controller {
	if v, ok := r.sessions.Get(sessionID); ok {
		ctrl := v.(*Controller)
		r.sessions.SetDefault(sessionID, ctrl)
		return ctrl
	}

	// An expired entry not yet swept would be overwritten without eviction
	r.sessions.DeleteExpired()

	ctrl := r.newController()
	if err := r.sessions.Add(sessionID, ctrl, cache.DefaultExpiration); err != nil {
		// Lost the race to a concurrent request for the same session
		if v, ok := r.sessions.Get(sessionID); ok {
			return v.(*Controller)
		}
		r.sessions.SetDefault(sessionID, ctrl)
	}
	return ctrl
}

// Drop invalidates and forgets the session's controller, typically on sign-out
func (r *Registry) Drop(sessionID string) {
	r.sessions.Delete(sessionID)
}

// Len reports how many sessions hold a controller
func (r *Registry) Len() int {
	return r.sessions.ItemCount()
}
