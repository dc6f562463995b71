package idmkit

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/idmkit/idmkit/logger"
	"github.com/idmkit/idmkit/model"
	"github.com/idmkit/idmkit/query"
	"github.com/idmkit/idmkit/store"
)

// Add persists a new identity in the bound partition. The identity's key is
// already canonical at this point; it was derived at construction. On
// success the caller's value is bound to the partition.
func (m *Manager) Add(ctx context.Context, id model.IdentityType) error {
	if err := id.Validate(); err != nil {
		return err
	}
	s, sctx, err := m.resolve(store.CapCRUD)
	if err != nil {
		return err
	}
	if err := s.Create(ctx, sctx, id); err != nil {
		return store.WrapErr("add", sctx, store.CapCRUD, err)
	}
	id.SetPartition(m.partition)
	logger.Log.Debug("identity added",
		zap.String("key", id.Key()), zap.String("partition", sctx.PartitionKey()))
	return nil
}

// Update replaces the mutable fields (enabled, expiry, attributes) of the
// stored identity matching the value's key. Names and group parents are
// immutable; a mismatch against the stored record is rejected here before
// the store is asked to write.
func (m *Manager) Update(ctx context.Context, id model.IdentityType) error {
	if err := id.Validate(); err != nil {
		return err
	}
	s, sctx, err := m.resolve(store.CapCRUD)
	if err != nil {
		return err
	}

	stored, err := s.LookupByKey(ctx, sctx, id.Key())
	if err != nil {
		return store.WrapErr("update", sctx, store.CapCRUD, err)
	}
	if err := checkImmutable(stored, id); err != nil {
		return err
	}

	if err := s.Update(ctx, sctx, id); err != nil {
		return store.WrapErr("update", sctx, store.CapCRUD, err)
	}
	logger.Log.Debug("identity updated",
		zap.String("key", id.Key()), zap.String("partition", sctx.PartitionKey()))
	return nil
}

// UpdateGroup updates a group's mutable fields.
func (m *Manager) UpdateGroup(ctx context.Context, g *model.Group) error {
	return m.Update(ctx, g)
}

// UpdateRole updates a role's mutable fields.
func (m *Manager) UpdateRole(ctx context.Context, r *model.Role) error {
	return m.Update(ctx, r)
}

// checkImmutable rejects updates that would change an identity's natural
// key fields. The model types derive their key from those fields, so this
// guards custom IdentityType implementations reporting a stable key with
// changed contents.
func checkImmutable(stored, incoming model.IdentityType) error {
	if stored.Kind() != incoming.Kind() {
		return fmt.Errorf("%w: %s is a %s", model.ErrImmutableField, incoming.Key(), stored.Kind())
	}

	switch sv := stored.(type) {
	case *model.Group:
		gv, ok := incoming.(*model.Group)
		if !ok || sv.Path() != gv.Path() {
			return fmt.Errorf("%w: group name and parent are fixed", model.ErrImmutableField)
		}
	case *model.Role:
		rv, ok := incoming.(*model.Role)
		if !ok || sv.Name() != rv.Name() {
			return fmt.Errorf("%w: role name is fixed", model.ErrImmutableField)
		}
	case *model.User:
		uv, ok := incoming.(*model.User)
		if !ok || sv.Login() != uv.Login() {
			return fmt.Errorf("%w: user login is fixed", model.ErrImmutableField)
		}
	}
	return nil
}

// Remove deletes the identity. Memberships, role grants and credentials
// referencing it are purged by the store.
func (m *Manager) Remove(ctx context.Context, id model.IdentityType) error {
	s, sctx, err := m.resolve(store.CapCRUD)
	if err != nil {
		return err
	}
	if err := s.Remove(ctx, sctx, id); err != nil {
		return store.WrapErr("remove", sctx, store.CapCRUD, err)
	}
	logger.Log.Debug("identity removed",
		zap.String("key", id.Key()), zap.String("partition", sctx.PartitionKey()))
	return nil
}

// GetUser returns the user with the given login.
func (m *Manager) GetUser(ctx context.Context, login string) (*model.User, error) {
	id, err := m.lookupByName(ctx, model.KindUser, login, nil)
	if err != nil {
		return nil, err
	}
	u, ok := id.(*model.User)
	if !ok {
		return nil, fmt.Errorf("store returned %T for user %q", id, login)
	}
	return u, nil
}

// GetGroup returns the group with the given name regardless of its parent.
func (m *Manager) GetGroup(ctx context.Context, name string) (*model.Group, error) {
	return m.getGroup(ctx, name, nil)
}

// GetGroupWithParent returns the group with the given name whose parent
// matches exactly. A name match under a different parent is not found,
// never a partial match.
func (m *Manager) GetGroupWithParent(ctx context.Context, name string, parent *model.Group) (*model.Group, error) {
	return m.getGroup(ctx, name, parent)
}

func (m *Manager) getGroup(ctx context.Context, name string, parent *model.Group) (*model.Group, error) {
	id, err := m.lookupByName(ctx, model.KindGroup, name, parent)
	if err != nil {
		return nil, err
	}
	g, ok := id.(*model.Group)
	if !ok {
		return nil, fmt.Errorf("store returned %T for group %q", id, name)
	}
	return g, nil
}

// GetRole returns the role with the given name.
func (m *Manager) GetRole(ctx context.Context, name string) (*model.Role, error) {
	id, err := m.lookupByName(ctx, model.KindRole, name, nil)
	if err != nil {
		return nil, err
	}
	r, ok := id.(*model.Role)
	if !ok {
		return nil, fmt.Errorf("store returned %T for role %q", id, name)
	}
	return r, nil
}

func (m *Manager) lookupByName(ctx context.Context, kind model.Kind, name string, parent *model.Group) (model.IdentityType, error) {
	s, sctx, err := m.resolve(store.CapCRUD)
	if err != nil {
		return nil, err
	}
	id, err := s.LookupByName(ctx, sctx, kind, name, parent)
	if err != nil {
		return nil, store.WrapErr("lookup", sctx, store.CapCRUD, err)
	}
	return id, nil
}

// LookupIdentityByKey returns the identity with exactly the given canonical
// key, any variant.
func (m *Manager) LookupIdentityByKey(ctx context.Context, key string) (model.IdentityType, error) {
	s, sctx, err := m.resolve(store.CapCRUD)
	if err != nil {
		return nil, err
	}
	id, err := s.LookupByKey(ctx, sctx, key)
	if err != nil {
		return nil, store.WrapErr("lookup", sctx, store.CapCRUD, err)
	}
	return id, nil
}

// LoadAttribute reads one stored attribute of the identity.
func (m *Manager) LoadAttribute(ctx context.Context, id model.IdentityType, name string) (model.Attribute, error) {
	s, sctx, err := m.resolve(store.CapAttribute)
	if err != nil {
		return model.Attribute{}, err
	}
	attr, err := s.GetAttribute(ctx, sctx, id, name)
	if err != nil {
		return model.Attribute{}, store.WrapErr("load attribute", sctx, store.CapAttribute, err)
	}
	return attr, nil
}

// CreateQuery starts a predicate builder targeting one identity variant.
func (m *Manager) CreateQuery(kind model.Kind) *query.Query {
	return query.New(kind)
}

// ExecuteQuery validates the predicate set and hands it to the resolved
// store's native executor. A store lacking query support fails with
// model.ErrUnsupportedOperation; there is no in-memory fallback.
func (m *Manager) ExecuteQuery(ctx context.Context, q *query.Query) ([]model.IdentityType, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	s, sctx, err := m.resolve(store.CapQuery)
	if err != nil {
		return nil, err
	}
	out, err := s.ExecuteQuery(ctx, sctx, q)
	if err != nil {
		return nil, store.WrapErr("query", sctx, store.CapQuery, err)
	}
	return out, nil
}
