package memstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/hashicorp/go-memdb"

	"github.com/idmkit/idmkit/model"
	"github.com/idmkit/idmkit/store"
)

// --- Membership ---

func (s *Store) AddToGroup(ctx context.Context, sctx store.Context, member model.IdentityType, group *model.Group) error {
	txn := s.db.Txn(true)
	defer txn.Abort()

	if err := s.requireIdentities(txn, sctx, member, group); err != nil {
		return err
	}

	raw, err := txn.First(tableMembership, "relation", sctx.PartitionKey(), member.Key(), group.Key())
	if err != nil {
		return err
	}
	if raw != nil {
		txn.Commit() // already a member, no-op
		return nil
	}

	row := &membershipRow{
		ID:           uuid.NewString(),
		PartitionKey: sctx.PartitionKey(),
		MemberKey:    member.Key(),
		GroupKey:     group.Key(),
	}
	if err := txn.Insert(tableMembership, row); err != nil {
		return err
	}

	txn.Commit()
	return nil
}

func (s *Store) RemoveFromGroup(ctx context.Context, sctx store.Context, member model.IdentityType, group *model.Group) error {
	txn := s.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tableMembership, "relation", sctx.PartitionKey(), member.Key(), group.Key())
	if err != nil {
		return err
	}
	if raw == nil {
		return fmt.Errorf("%w: %s is not a member of %s", model.ErrNotFound, member.Key(), group.Key())
	}
	if err := txn.Delete(tableMembership, raw); err != nil {
		return err
	}

	txn.Commit()
	return nil
}

func (s *Store) IsMember(ctx context.Context, sctx store.Context, member model.IdentityType, group *model.Group) (bool, error) {
	txn := s.db.Txn(false)
	raw, err := txn.First(tableMembership, "relation", sctx.PartitionKey(), member.Key(), group.Key())
	if err != nil {
		return false, err
	}
	return raw != nil, nil
}

// --- Role grants ---

func (s *Store) GrantRole(ctx context.Context, sctx store.Context, member model.IdentityType, role *model.Role) error {
	return s.grant(sctx, member, role, nil)
}

func (s *Store) RevokeRole(ctx context.Context, sctx store.Context, member model.IdentityType, role *model.Role) error {
	return s.revoke(sctx, member, role, nil)
}

func (s *Store) HasRole(ctx context.Context, sctx store.Context, member model.IdentityType, role *model.Role) (bool, error) {
	return s.hasGrant(sctx, member, role, nil)
}

func (s *Store) GrantGroupRole(ctx context.Context, sctx store.Context, member model.IdentityType, role *model.Role, group *model.Group) error {
	return s.grant(sctx, member, role, group)
}

func (s *Store) RevokeGroupRole(ctx context.Context, sctx store.Context, member model.IdentityType, role *model.Role, group *model.Group) error {
	return s.revoke(sctx, member, role, group)
}

func (s *Store) HasGroupRole(ctx context.Context, sctx store.Context, member model.IdentityType, role *model.Role, group *model.Group) (bool, error) {
	return s.hasGrant(sctx, member, role, group)
}

func groupScope(group *model.Group) string {
	if group == nil {
		return noParent
	}
	return group.Key()
}

func (s *Store) grant(sctx store.Context, member model.IdentityType, role *model.Role, group *model.Group) error {
	txn := s.db.Txn(true)
	defer txn.Abort()

	required := []model.IdentityType{member, role}
	if group != nil {
		required = append(required, group)
	}
	if err := s.requireIdentities(txn, sctx, required...); err != nil {
		return err
	}

	raw, err := txn.First(tableGrant, "relation", sctx.PartitionKey(), member.Key(), role.Key(), groupScope(group))
	if err != nil {
		return err
	}
	if raw != nil {
		txn.Commit() // already granted, no-op
		return nil
	}

	row := &grantRow{
		ID:           uuid.NewString(),
		PartitionKey: sctx.PartitionKey(),
		MemberKey:    member.Key(),
		RoleKey:      role.Key(),
		GroupKey:     groupScope(group),
	}
	if err := txn.Insert(tableGrant, row); err != nil {
		return err
	}

	txn.Commit()
	return nil
}

func (s *Store) revoke(sctx store.Context, member model.IdentityType, role *model.Role, group *model.Group) error {
	txn := s.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tableGrant, "relation", sctx.PartitionKey(), member.Key(), role.Key(), groupScope(group))
	if err != nil {
		return err
	}
	if raw == nil {
		return fmt.Errorf("%w: %s does not hold %s", model.ErrNotFound, member.Key(), role.Key())
	}
	if err := txn.Delete(tableGrant, raw); err != nil {
		return err
	}

	txn.Commit()
	return nil
}

func (s *Store) hasGrant(sctx store.Context, member model.IdentityType, role *model.Role, group *model.Group) (bool, error) {
	txn := s.db.Txn(false)
	raw, err := txn.First(tableGrant, "relation", sctx.PartitionKey(), member.Key(), role.Key(), groupScope(group))
	if err != nil {
		return false, err
	}
	return raw != nil, nil
}

// --- Credentials ---

func (s *Store) StoreCredential(ctx context.Context, sctx store.Context, user *model.User, kind string, material []byte) error {
	txn := s.db.Txn(true)
	defer txn.Abort()

	if err := s.requireIdentities(txn, sctx, user); err != nil {
		return err
	}

	row := &credentialRow{
		ID:           rowID(sctx, user.Key()) + "|" + kind,
		PartitionKey: sctx.PartitionKey(),
		UserKey:      user.Key(),
		CredKind:     kind,
		Material:     append([]byte(nil), material...),
	}
	if err := txn.Insert(tableCredential, row); err != nil {
		return err
	}

	txn.Commit()
	return nil
}

func (s *Store) RetrieveCredential(ctx context.Context, sctx store.Context, user *model.User, kind string) ([]byte, error) {
	txn := s.db.Txn(false)
	raw, err := txn.First(tableCredential, "id", rowID(sctx, user.Key())+"|"+kind)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: no %s credential for %s", model.ErrNotFound, kind, user.Key())
	}
	return append([]byte(nil), raw.(*credentialRow).Material...), nil
}

// --- Partitions ---

func (s *Store) CreatePartition(ctx context.Context, sctx store.Context, p model.Partition) error {
	txn := s.db.Txn(true)
	defer txn.Abort()

	id := string(p.PartitionKind()) + "|" + p.Name()
	raw, err := txn.First(tablePartition, "id", id)
	if err != nil {
		return err
	}
	if raw != nil {
		return fmt.Errorf("%w: partition %s", model.ErrDuplicateIdentity, p.Key())
	}

	if err := txn.Insert(tablePartition, &partitionRow{ID: id, Kind: string(p.PartitionKind()), Name: p.Name()}); err != nil {
		return err
	}

	txn.Commit()
	return nil
}

func (s *Store) RemovePartition(ctx context.Context, sctx store.Context, p model.Partition) error {
	txn := s.db.Txn(true)
	defer txn.Abort()

	id := string(p.PartitionKind()) + "|" + p.Name()
	raw, err := txn.First(tablePartition, "id", id)
	if err != nil {
		return err
	}
	if raw == nil {
		return fmt.Errorf("%w: partition %s", model.ErrNotFound, p.Key())
	}

	member, err := txn.First(tableIdentity, "partition", p.Key())
	if err != nil {
		return err
	}
	if member != nil {
		return fmt.Errorf("%w: %s", model.ErrPartitionNotEmpty, p.Key())
	}

	if err := txn.Delete(tablePartition, raw); err != nil {
		return err
	}

	txn.Commit()
	return nil
}

func (s *Store) GetPartition(ctx context.Context, kind model.PartitionKind, name string) (model.Partition, error) {
	txn := s.db.Txn(false)
	raw, err := txn.First(tablePartition, "id", string(kind)+"|"+name)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: %s %q", model.ErrNotFound, kind, name)
	}

	row := raw.(*partitionRow)
	if row.Kind == string(model.PartitionTier) {
		return model.NewTier(row.Name), nil
	}
	return model.NewRealm(row.Name), nil
}

// requireIdentities fails with model.ErrNotFound unless every identity has
// a stored record in the partition. Relation operations never create
// identities implicitly.
func (s *Store) requireIdentities(txn *memdb.Txn, sctx store.Context, ids ...model.IdentityType) error {
	for _, id := range ids {
		if _, err := s.identityRowTxn(txn, sctx, id.Key()); err != nil {
			return err
		}
	}
	return nil
}
