package idmkit

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/idmkit/idmkit/credential"
	"github.com/idmkit/idmkit/logger"
	"github.com/idmkit/idmkit/model"
	"github.com/idmkit/idmkit/store"
)

// AddToGroup makes member a direct member of group. Adding an existing
// member is a no-op.
func (m *Manager) AddToGroup(ctx context.Context, member model.IdentityType, group *model.Group) error {
	s, sctx, err := m.resolve(store.CapMembership)
	if err != nil {
		return err
	}
	return store.WrapErr("add to group", sctx, store.CapMembership,
		s.AddToGroup(ctx, sctx, member, group))
}

// RemoveFromGroup drops the direct membership.
func (m *Manager) RemoveFromGroup(ctx context.Context, member model.IdentityType, group *model.Group) error {
	s, sctx, err := m.resolve(store.CapMembership)
	if err != nil {
		return err
	}
	return store.WrapErr("remove from group", sctx, store.CapMembership,
		s.RemoveFromGroup(ctx, sctx, member, group))
}

// IsMember reports whether member is a direct member of group.
func (m *Manager) IsMember(ctx context.Context, member model.IdentityType, group *model.Group) (bool, error) {
	s, sctx, err := m.resolve(store.CapMembership)
	if err != nil {
		return false, err
	}
	ok, err := s.IsMember(ctx, sctx, member, group)
	return ok, store.WrapErr("is member", sctx, store.CapMembership, err)
}

// GrantRole grants the role to member without group scope.
func (m *Manager) GrantRole(ctx context.Context, member model.IdentityType, role *model.Role) error {
	s, sctx, err := m.resolve(store.CapRoleGrant)
	if err != nil {
		return err
	}
	return store.WrapErr("grant role", sctx, store.CapRoleGrant,
		s.GrantRole(ctx, sctx, member, role))
}

// RevokeRole drops an unscoped grant.
func (m *Manager) RevokeRole(ctx context.Context, member model.IdentityType, role *model.Role) error {
	s, sctx, err := m.resolve(store.CapRoleGrant)
	if err != nil {
		return err
	}
	return store.WrapErr("revoke role", sctx, store.CapRoleGrant,
		s.RevokeRole(ctx, sctx, member, role))
}

// HasRole reports whether member holds the role without group scope. A
// group-scoped grant of the same role does not count.
func (m *Manager) HasRole(ctx context.Context, member model.IdentityType, role *model.Role) (bool, error) {
	s, sctx, err := m.resolve(store.CapRoleGrant)
	if err != nil {
		return false, err
	}
	ok, err := s.HasRole(ctx, sctx, member, role)
	return ok, store.WrapErr("has role", sctx, store.CapRoleGrant, err)
}

// GrantGroupRole grants the role to member scoped to group.
func (m *Manager) GrantGroupRole(ctx context.Context, member model.IdentityType, role *model.Role, group *model.Group) error {
	s, sctx, err := m.resolve(store.CapRoleGrant)
	if err != nil {
		return err
	}
	return store.WrapErr("grant group role", sctx, store.CapRoleGrant,
		s.GrantGroupRole(ctx, sctx, member, role, group))
}

// RevokeGroupRole drops a group-scoped grant.
func (m *Manager) RevokeGroupRole(ctx context.Context, member model.IdentityType, role *model.Role, group *model.Group) error {
	s, sctx, err := m.resolve(store.CapRoleGrant)
	if err != nil {
		return err
	}
	return store.WrapErr("revoke group role", sctx, store.CapRoleGrant,
		s.RevokeGroupRole(ctx, sctx, member, role, group))
}

// HasGroupRole reports whether member holds the role scoped to group.
func (m *Manager) HasGroupRole(ctx context.Context, member model.IdentityType, role *model.Role, group *model.Group) (bool, error) {
	s, sctx, err := m.resolve(store.CapRoleGrant)
	if err != nil {
		return false, err
	}
	ok, err := s.HasGroupRole(ctx, sctx, member, role, group)
	return ok, store.WrapErr("has group role", sctx, store.CapRoleGrant, err)
}

// ValidateCredential checks the presented credential against the user's
// stored material. An unknown credential kind fails with
// model.ErrUnsupportedCredentialType before any store is touched.
func (m *Manager) ValidateCredential(ctx context.Context, user *model.User, cred credential.Credential) (bool, error) {
	h, err := m.handlers.Handler(cred.CredentialKind())
	if err != nil {
		return false, err
	}
	s, sctx, err := m.resolve(store.CapCredential)
	if err != nil {
		return false, err
	}
	ok, err := h.Validate(ctx, sctx, user, cred, s)
	if err != nil {
		return false, store.WrapErr("validate credential", sctx, store.CapCredential, err)
	}
	if !ok {
		logger.Log.Warn("credential validation failed",
			zap.String("user", user.Key()), zap.String("kind", cred.CredentialKind()))
	}
	return ok, nil
}

// UpdateCredential installs new credential material for the user through
// the kind's handler.
func (m *Manager) UpdateCredential(ctx context.Context, user *model.User, cred credential.Credential) error {
	h, err := m.handlers.Handler(cred.CredentialKind())
	if err != nil {
		return err
	}
	s, sctx, err := m.resolve(store.CapCredential)
	if err != nil {
		return err
	}
	if err := h.Update(ctx, sctx, user, cred, s); err != nil {
		return store.WrapErr("update credential", sctx, store.CapCredential, err)
	}
	logger.Log.Debug("credential updated",
		zap.String("user", user.Key()), zap.String("kind", cred.CredentialKind()))
	return nil
}

// --- Partition lifecycle ---

// CreateRealm registers a new realm with the backend serving it.
func (m *Manager) CreateRealm(ctx context.Context, name string) (*model.Realm, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: realm name must not be empty", model.ErrInvalidIdentity)
	}
	realm := model.NewRealm(name)
	if err := m.createPartition(ctx, realm); err != nil {
		return nil, err
	}
	return realm, nil
}

// RemoveRealm removes an empty realm. Fails with
// model.ErrPartitionNotEmpty while identities remain in it.
func (m *Manager) RemoveRealm(ctx context.Context, name string) error {
	return m.removePartition(ctx, model.NewRealm(name))
}

// GetRealm returns the registered realm with the given name.
func (m *Manager) GetRealm(ctx context.Context, name string) (*model.Realm, error) {
	p, err := m.getPartition(ctx, model.NewRealm(name))
	if err != nil {
		return nil, err
	}
	realm, ok := p.(*model.Realm)
	if !ok {
		return nil, fmt.Errorf("store returned %T for realm %q", p, name)
	}
	return realm, nil
}

// CreateTier registers a new tier. An empty id gets a generated one.
func (m *Manager) CreateTier(ctx context.Context, id string) (*model.Tier, error) {
	if id == "" {
		id = uuid.NewString()
	}
	tier := model.NewTier(id)
	if err := m.createPartition(ctx, tier); err != nil {
		return nil, err
	}
	return tier, nil
}

// RemoveTier removes an empty tier.
func (m *Manager) RemoveTier(ctx context.Context, id string) error {
	return m.removePartition(ctx, model.NewTier(id))
}

// GetTier returns the registered tier with the given id.
func (m *Manager) GetTier(ctx context.Context, id string) (*model.Tier, error) {
	p, err := m.getPartition(ctx, model.NewTier(id))
	if err != nil {
		return nil, err
	}
	tier, ok := p.(*model.Tier)
	if !ok {
		return nil, fmt.Errorf("store returned %T for tier %q", p, id)
	}
	return tier, nil
}

// Partition records live in the backend serving the partition itself, so
// lifecycle calls resolve against the target partition rather than the
// bound one.
func (m *Manager) createPartition(ctx context.Context, p model.Partition) error {
	s, sctx, err := m.resolveFor(p, store.CapPartition)
	if err != nil {
		return err
	}
	if err := s.CreatePartition(ctx, sctx, p); err != nil {
		return store.WrapErr("create partition", sctx, store.CapPartition, err)
	}
	logger.Log.Info("partition created", zap.String("partition", p.Key()))
	return nil
}

func (m *Manager) removePartition(ctx context.Context, p model.Partition) error {
	s, sctx, err := m.resolveFor(p, store.CapPartition)
	if err != nil {
		return err
	}
	if err := s.RemovePartition(ctx, sctx, p); err != nil {
		return store.WrapErr("remove partition", sctx, store.CapPartition, err)
	}
	logger.Log.Info("partition removed", zap.String("partition", p.Key()))
	return nil
}

func (m *Manager) getPartition(ctx context.Context, p model.Partition) (model.Partition, error) {
	s, sctx, err := m.resolveFor(p, store.CapPartition)
	if err != nil {
		return nil, err
	}
	got, err := s.GetPartition(ctx, p.PartitionKind(), p.Name())
	if err != nil {
		return nil, store.WrapErr("get partition", sctx, store.CapPartition, err)
	}
	return got, nil
}
