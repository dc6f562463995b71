package credential

import (
	"fmt"
	"sync"

	"github.com/idmkit/idmkit/model"
)

// Registry maps credential kinds to handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds a handler, replacing any previous handler for the same
// kind.
func (r *Registry) Register(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[h.Kind()] = h
}

// Handler returns the handler for a kind, or
// model.ErrUnsupportedCredentialType when none is registered.
func (r *Registry) Handler(kind string) (Handler, error) {
	r.mu.RLock()
	h, ok := r.handlers[kind]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", model.ErrUnsupportedCredentialType, kind)
	}
	return h, nil
}
