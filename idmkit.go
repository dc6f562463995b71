// Package idmkit is an embeddable identity-management core: users, groups
// and roles in isolated partitions, stored behind a pluggable backend
// contract, with typed queries and a credential pipeline.
//
// The Manager is the top-level API. It is bound to one partition at a time;
// ForRealm and ForTier return independent handles bound to another
// partition. All operations are synchronous; no call spans more than one
// store operation, so composite flows commit step by step.
package idmkit

import (
	"go.uber.org/zap"

	"github.com/idmkit/idmkit/config"
	"github.com/idmkit/idmkit/credential"
	"github.com/idmkit/idmkit/logger"
	"github.com/idmkit/idmkit/model"
	"github.com/idmkit/idmkit/router"
	"github.com/idmkit/idmkit/store"
)

// Manager is the identity façade. Safe for concurrent use; partition
// switches produce new handles instead of mutating shared state.
type Manager struct {
	cfg       *config.Config
	factory   router.StoreFactory
	handlers  *credential.Registry
	invoke    store.InvocationContextFactory
	partition model.Partition
}

// Option customizes a Manager during Bootstrap.
type Option func(*Manager)

// WithStoreFactory replaces the default router with a custom factory.
func WithStoreFactory(f router.StoreFactory) Option {
	return func(m *Manager) { m.factory = f }
}

// WithInvocationFactory installs the collaborator producing per-call
// ambient context.
func WithInvocationFactory(f store.InvocationContextFactory) Option {
	return func(m *Manager) { m.invoke = f }
}

// WithCredentialHandler registers an additional credential handler,
// replacing any built-in handler of the same kind.
func WithCredentialHandler(h credential.Handler) Option {
	return func(m *Manager) { m.handlers.Register(h) }
}

// Bootstrap builds a Manager bound to the configured default realm. The
// password handler is always registered; the signed-token handler only when
// a token key is configured. A nil config selects config.Default.
func Bootstrap(cfg *config.Config, opts ...Option) (*Manager, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if cfg.LogLevel != "" {
		logger.Init(cfg.LogLevel)
	}

	realm := cfg.DefaultRealm
	if realm == "" {
		realm = model.DefaultRealmName
	}

	m := &Manager{
		cfg:       cfg,
		handlers:  credential.NewRegistry(),
		invoke:    store.NopInvocationFactory(),
		partition: model.NewRealm(realm),
	}
	m.handlers.Register(credential.NewPasswordHandler(cfg.BcryptCost))
	if cfg.TokenKey != "" {
		m.handlers.Register(credential.NewTokenHandler([]byte(cfg.TokenKey)))
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.factory == nil {
		m.factory = router.New(cfg)
	}
	m.factory.Invalidate()

	logger.Log.Info("identity manager bootstrapped",
		zap.String("realm", realm),
		zap.String("default_backend", cfg.DefaultBackend))
	return m, nil
}

// SetStoreFactory swaps the store factory and drops every cached store.
func (m *Manager) SetStoreFactory(f router.StoreFactory) {
	m.factory = f
	f.Invalidate()
}

// CurrentPartition returns the partition this handle is bound to.
func (m *Manager) CurrentPartition() model.Partition { return m.partition }

// ForRealm returns a handle bound to the named realm. The copy shares the
// store cache and credential handlers with the receiver.
func (m *Manager) ForRealm(name string) *Manager {
	c := *m
	c.partition = model.NewRealm(name)
	return &c
}

// ForTier returns a handle bound to the tier with the given id.
func (m *Manager) ForTier(id string) *Manager {
	c := *m
	c.partition = model.NewTier(id)
	return &c
}

// resolve returns the store serving the bound partition for the capability,
// together with the per-call context.
func (m *Manager) resolve(cap store.Capability) (store.IdentityStore, store.Context, error) {
	return m.resolveFor(m.partition, cap)
}

func (m *Manager) resolveFor(p model.Partition, cap store.Capability) (store.IdentityStore, store.Context, error) {
	sctx := store.NewContext(p, m.invoke.NewInvocation())
	s, err := m.factory.Resolve(p, cap)
	if err != nil {
		return nil, sctx, err
	}
	return s, sctx, nil
}
