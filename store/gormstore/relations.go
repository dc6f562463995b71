package gormstore

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/idmkit/idmkit/model"
	"github.com/idmkit/idmkit/store"
)

// --- Membership ---

func (s *Store) AddToGroup(ctx context.Context, sctx store.Context, member model.IdentityType, group *model.Group) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireIdentities(tx, sctx, member, group); err != nil {
			return err
		}

		var count int64
		err := tx.Model(&gormMembership{}).
			Where("partition_key = ? AND member_key = ? AND group_key = ?",
				sctx.PartitionKey(), member.Key(), group.Key()).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count > 0 {
			return nil // already a member, no-op
		}

		return tx.Create(&gormMembership{
			PartitionKey: sctx.PartitionKey(),
			MemberKey:    member.Key(),
			GroupKey:     group.Key(),
		}).Error
	})
}

func (s *Store) RemoveFromGroup(ctx context.Context, sctx store.Context, member model.IdentityType, group *model.Group) error {
	res := s.db.WithContext(ctx).
		Where("partition_key = ? AND member_key = ? AND group_key = ?",
			sctx.PartitionKey(), member.Key(), group.Key()).
		Delete(&gormMembership{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s is not a member of %s", model.ErrNotFound, member.Key(), group.Key())
	}
	return nil
}

func (s *Store) IsMember(ctx context.Context, sctx store.Context, member model.IdentityType, group *model.Group) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&gormMembership{}).
		Where("partition_key = ? AND member_key = ? AND group_key = ?",
			sctx.PartitionKey(), member.Key(), group.Key()).
		Count(&count).Error
	return count > 0, err
}

// --- Role grants ---

func (s *Store) GrantRole(ctx context.Context, sctx store.Context, member model.IdentityType, role *model.Role) error {
	return s.grant(ctx, sctx, member, role, nil)
}

func (s *Store) RevokeRole(ctx context.Context, sctx store.Context, member model.IdentityType, role *model.Role) error {
	return s.revoke(ctx, sctx, member, role, nil)
}

func (s *Store) HasRole(ctx context.Context, sctx store.Context, member model.IdentityType, role *model.Role) (bool, error) {
	return s.hasGrant(ctx, sctx, member, role, nil)
}

func (s *Store) GrantGroupRole(ctx context.Context, sctx store.Context, member model.IdentityType, role *model.Role, group *model.Group) error {
	return s.grant(ctx, sctx, member, role, group)
}

func (s *Store) RevokeGroupRole(ctx context.Context, sctx store.Context, member model.IdentityType, role *model.Role, group *model.Group) error {
	return s.revoke(ctx, sctx, member, role, group)
}

func (s *Store) HasGroupRole(ctx context.Context, sctx store.Context, member model.IdentityType, role *model.Role, group *model.Group) (bool, error) {
	return s.hasGrant(ctx, sctx, member, role, group)
}

func groupScope(group *model.Group) string {
	if group == nil {
		return ""
	}
	return group.Key()
}

func (s *Store) grant(ctx context.Context, sctx store.Context, member model.IdentityType, role *model.Role, group *model.Group) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		required := []model.IdentityType{member, role}
		if group != nil {
			required = append(required, group)
		}
		if err := requireIdentities(tx, sctx, required...); err != nil {
			return err
		}

		var count int64
		err := tx.Model(&gormGrant{}).
			Where("partition_key = ? AND member_key = ? AND role_key = ? AND group_key = ?",
				sctx.PartitionKey(), member.Key(), role.Key(), groupScope(group)).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count > 0 {
			return nil // already granted, no-op
		}

		return tx.Create(&gormGrant{
			PartitionKey: sctx.PartitionKey(),
			MemberKey:    member.Key(),
			RoleKey:      role.Key(),
			GroupKey:     groupScope(group),
		}).Error
	})
}

func (s *Store) revoke(ctx context.Context, sctx store.Context, member model.IdentityType, role *model.Role, group *model.Group) error {
	res := s.db.WithContext(ctx).
		Where("partition_key = ? AND member_key = ? AND role_key = ? AND group_key = ?",
			sctx.PartitionKey(), member.Key(), role.Key(), groupScope(group)).
		Delete(&gormGrant{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s does not hold %s", model.ErrNotFound, member.Key(), role.Key())
	}
	return nil
}

func (s *Store) hasGrant(ctx context.Context, sctx store.Context, member model.IdentityType, role *model.Role, group *model.Group) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&gormGrant{}).
		Where("partition_key = ? AND member_key = ? AND role_key = ? AND group_key = ?",
			sctx.PartitionKey(), member.Key(), role.Key(), groupScope(group)).
		Count(&count).Error
	return count > 0, err
}

// --- Credentials ---

func (s *Store) StoreCredential(ctx context.Context, sctx store.Context, user *model.User, kind string, material []byte) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireIdentities(tx, sctx, user); err != nil {
			return err
		}

		err := tx.Where("partition_key = ? AND user_key = ? AND kind = ?",
			sctx.PartitionKey(), user.Key(), kind).
			Delete(&gormCredential{}).Error
		if err != nil {
			return err
		}

		return tx.Create(&gormCredential{
			PartitionKey: sctx.PartitionKey(),
			UserKey:      user.Key(),
			Kind:         kind,
			Material:     append([]byte(nil), material...),
		}).Error
	})
}

func (s *Store) RetrieveCredential(ctx context.Context, sctx store.Context, user *model.User, kind string) ([]byte, error) {
	var row gormCredential
	err := s.db.WithContext(ctx).
		Where("partition_key = ? AND user_key = ? AND kind = ?",
			sctx.PartitionKey(), user.Key(), kind).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: no %s credential for %s", model.ErrNotFound, kind, user.Key())
	}
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), row.Material...), nil
}

// --- Partitions ---

func (s *Store) CreatePartition(ctx context.Context, sctx store.Context, p model.Partition) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		err := tx.Model(&gormPartition{}).
			Where("kind = ? AND name = ?", string(p.PartitionKind()), p.Name()).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("%w: partition %s", model.ErrDuplicateIdentity, p.Key())
		}
		return tx.Create(&gormPartition{Kind: string(p.PartitionKind()), Name: p.Name()}).Error
	})
}

func (s *Store) RemovePartition(ctx context.Context, sctx store.Context, p model.Partition) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var members int64
		err := tx.Model(&gormIdentity{}).
			Where("partition_key = ?", p.Key()).
			Count(&members).Error
		if err != nil {
			return err
		}
		if members > 0 {
			return fmt.Errorf("%w: %s", model.ErrPartitionNotEmpty, p.Key())
		}

		res := tx.Where("kind = ? AND name = ?", string(p.PartitionKind()), p.Name()).
			Delete(&gormPartition{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: partition %s", model.ErrNotFound, p.Key())
		}
		return nil
	})
}

func (s *Store) GetPartition(ctx context.Context, kind model.PartitionKind, name string) (model.Partition, error) {
	var row gormPartition
	err := s.db.WithContext(ctx).
		Where("kind = ? AND name = ?", string(kind), name).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s %q", model.ErrNotFound, kind, name)
	}
	if err != nil {
		return nil, err
	}

	if row.Kind == string(model.PartitionTier) {
		return model.NewTier(row.Name), nil
	}
	return model.NewRealm(row.Name), nil
}

// requireIdentities fails with model.ErrNotFound unless every identity has
// a stored record in the partition. Relation operations never create
// identities implicitly.
func requireIdentities(tx *gorm.DB, sctx store.Context, ids ...model.IdentityType) error {
	for _, id := range ids {
		if _, err := identityRowTx(tx, sctx, id.Key()); err != nil {
			return err
		}
	}
	return nil
}
