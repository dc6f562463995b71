// Package router selects, constructs and caches the identity store serving
// a (partition, capability) pair. Backends register themselves by name; the
// configuration decides which backend serves which partition. Construction
// is lazy and happens exactly once per partition, even under concurrent
// first access; a constructed instance serves every capability it declares.
package router

import (
	"fmt"
	"sync"

	"github.com/idmkit/idmkit/config"
	"github.com/idmkit/idmkit/model"
	"github.com/idmkit/idmkit/store"
)

// Builder constructs a store instance for a backend name.
type Builder func(cfg *config.Config) (store.IdentityStore, error)

var (
	buildersMu sync.RWMutex
	builders   = make(map[string]Builder)
)

// RegisterBackend adds a backend builder to the registry. Built-in backends
// register themselves in their package init.
func RegisterBackend(name string, b Builder) {
	buildersMu.Lock()
	defer buildersMu.Unlock()
	builders[name] = b
}

func lookupBackend(name string) (Builder, bool) {
	buildersMu.RLock()
	defer buildersMu.RUnlock()
	b, ok := builders[name]
	return b, ok
}

// StoreFactory resolves the store serving a partition and capability.
type StoreFactory interface {
	// Resolve returns a ready-to-use store for the partition, verifying
	// that it declares the required capability. Fails with
	// model.ErrNoStoreConfigured when configuration maps no backend to the
	// partition, and with model.ErrUnsupportedOperation when the resolved
	// store lacks the capability.
	Resolve(p model.Partition, cap store.Capability) (store.IdentityStore, error)

	// Invalidate drops all cached store instances. Called on bootstrap
	// and reconfiguration; entries are never evicted otherwise.
	Invalidate()
}

// Router is the default StoreFactory.
type Router struct {
	cfg *config.Config

	mu      sync.Mutex
	entries map[string]*entry // partition key -> construction entry
}

// One entry per partition; sync.Once gives construct-once-publish-once
// under concurrent first access. Losers of the construction race observe
// the winner's instance, never an error.
type entry struct {
	once  sync.Once
	store store.IdentityStore
	err   error
}

// New creates a router over the given configuration.
func New(cfg *config.Config) *Router {
	return &Router{cfg: cfg, entries: make(map[string]*entry)}
}

func (r *Router) Resolve(p model.Partition, cap store.Capability) (store.IdentityStore, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: no partition selected", model.ErrNoStoreConfigured)
	}

	name := r.cfg.BackendFor(p.Name())
	if name == "" {
		return nil, fmt.Errorf("%w: partition %s", model.ErrNoStoreConfigured, p.Key())
	}
	builder, ok := lookupBackend(name)
	if !ok {
		return nil, fmt.Errorf("%w: partition %s maps to unknown backend %q", model.ErrNoStoreConfigured, p.Key(), name)
	}

	e := r.entry(p.Key())
	e.once.Do(func() {
		e.store, e.err = builder(r.cfg)
	})
	if e.err != nil {
		return nil, fmt.Errorf("building backend %q for partition %s: %w", name, p.Key(), e.err)
	}

	if !e.store.Capabilities().Has(cap) {
		return nil, fmt.Errorf("%w: backend %q lacks %s (partition %s)", model.ErrUnsupportedOperation, name, cap, p.Key())
	}

	return e.store, nil
}

func (r *Router) entry(partitionKey string) *entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[partitionKey]
	if !ok {
		e = &entry{}
		r.entries[partitionKey] = e
	}
	return e
}

func (r *Router) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make(map[string]*entry)
}

var _ StoreFactory = (*Router)(nil)
