package httppresentation

import (
	"errors"
	"sync"

	"github.com/Zhima-Mochi/minishop-shopping/internal/domain/cart"
)

var errCartNotFound = errors.New("http: cart not found")

type IDGenerator interface {
	NewID() string
}

// cartSession serializes requests touching the same cart.
type cartSession struct {
	mu   sync.Mutex
	cart *cart.Cart
}

// cartRegistry keeps the carts handed out over HTTP between requests.
type cartRegistry struct {
	mu    sync.RWMutex
	ids   IDGenerator
	carts map[string]*cartSession
}

func newCartRegistry(ids IDGenerator) *cartRegistry {
	return &cartRegistry{
		ids:   ids,
		carts: make(map[string]*cartSession),
	}
}

func (r *cartRegistry) put(c *cart.Cart) string {
	id := r.ids.NewID()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.carts[id] = &cartSession{cart: c}
	return id
}

// drop forgets the cart. Requests already holding it finish normally.
func (r *cartRegistry) drop(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.carts, id)
}

func (r *cartRegistry) size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.carts)
}

// with runs fn while holding the cart's lock.
func (r *cartRegistry) with(id string, fn func(c *cart.Cart) error) error {
	r.mu.RLock()
	s, ok := r.carts[id]
	r.mu.RUnlock()
	if !ok {
		return errCartNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.cart)
}
