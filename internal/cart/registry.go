package cart

import (
	"sync"
	"time"
)

// Registry holds one cart per session. Carts idle for longer than ttl are
// discarded without trace.
type Registry struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	carts map[string]*entry
}

type entry struct {
	cart    *Cart
	touched time.Time
}

func NewRegistry(ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	return &Registry{ttl: ttl, now: time.Now, carts: make(map[string]*entry)}
}

// Get returns the session's cart, creating an empty one on first use.
func (r *Registry) Get(session string) *Cart {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.pruneLocked(now)
	e, ok := r.carts[session]
	if !ok {
		e = &entry{cart: New()}
		r.carts[session] = e
	}
	e.touched = now
	return e.cart
}

func (r *Registry) Drop(session string) {
	r.mu.Lock()
	delete(r.carts, session)
	r.mu.Unlock()
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.carts)
}

func (r *Registry) pruneLocked(now time.Time) {
	cutoff := now.Add(-r.ttl)
	for session, e := range r.carts {
		if e.touched.Before(cutoff) {
			delete(r.carts, session)
		}
	}
}
