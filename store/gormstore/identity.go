package gormstore

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/idmkit/idmkit/model"
	"github.com/idmkit/idmkit/store"
)

func (s *Store) Create(ctx context.Context, sctx store.Context, id model.IdentityType) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		name, parentKey := naturalName(id)
		var count int64
		err := tx.Model(&gormIdentity{}).
			Where("partition_key = ? AND kind = ? AND name = ? AND parent_key = ?",
				sctx.PartitionKey(), string(id.Kind()), name, parentKey).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("%w: %s", model.ErrDuplicateIdentity, id.Key())
		}

		if err := tx.Create(fromIdentity(sctx, id)).Error; err != nil {
			return err
		}
		rows := encodeAttributes(sctx, id.Key(), id.Attributes())
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
}

func (s *Store) Update(ctx context.Context, sctx store.Context, id model.IdentityType) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := identityRowTx(tx, sctx, id.Key())
		if err != nil {
			return err
		}

		// Natural-key fields are immutable. The stored record wins; an
		// identity reporting a stable key but a changed name or parent is
		// rejected unchanged.
		name, parentKey := naturalName(id)
		if row.Name != name || row.ParentKey != parentKey {
			return fmt.Errorf("%w: %s", model.ErrImmutableField, id.Key())
		}

		err = tx.Model(row).Updates(map[string]any{
			"enabled":    id.Enabled(),
			"expires_at": cloneTime(id.ExpirationDate()),
		}).Error
		if err != nil {
			return err
		}
		return replaceAttributes(tx, sctx, id.Key(), id.Attributes())
	})
}

func (s *Store) Remove(ctx context.Context, sctx store.Context, id model.IdentityType) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := identityRowTx(tx, sctx, id.Key())
		if err != nil {
			return err
		}
		if err := tx.Delete(row).Error; err != nil {
			return err
		}
		return cascade(tx, sctx.PartitionKey(), row.Key)
	})
}

// cascade purges memberships, grants, credentials and attribute rows
// referencing the removed identity so no dangling relations survive.
func cascade(tx *gorm.DB, partitionKey, key string) error {
	err := tx.Where("partition_key = ? AND (member_key = ? OR group_key = ?)", partitionKey, key, key).
		Delete(&gormMembership{}).Error
	if err != nil {
		return err
	}
	err = tx.Where("partition_key = ? AND (member_key = ? OR role_key = ? OR group_key = ?)", partitionKey, key, key, key).
		Delete(&gormGrant{}).Error
	if err != nil {
		return err
	}
	err = tx.Where("partition_key = ? AND user_key = ?", partitionKey, key).
		Delete(&gormCredential{}).Error
	if err != nil {
		return err
	}
	return tx.Where("partition_key = ? AND identity_key = ?", partitionKey, key).
		Delete(&gormAttribute{}).Error
}

func (s *Store) LookupByKey(ctx context.Context, sctx store.Context, key string) (model.IdentityType, error) {
	tx := s.db.WithContext(ctx)
	row, err := identityRowTx(tx, sctx, key)
	if err != nil {
		return nil, err
	}
	return s.materialize(tx, sctx, row)
}

func (s *Store) LookupByName(ctx context.Context, sctx store.Context, kind model.Kind, name string, parent *model.Group) (model.IdentityType, error) {
	tx := s.db.WithContext(ctx)
	var row gormIdentity

	if kind == model.KindGroup && parent == nil {
		// Name-only group lookup matches regardless of parent.
		err := tx.Where("partition_key = ? AND kind = ? AND name = ?",
			sctx.PartitionKey(), string(model.KindGroup), name).
			First(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: group %q", model.ErrNotFound, name)
		}
		if err != nil {
			return nil, err
		}
		return s.materialize(tx, sctx, &row)
	}

	parentKey := ""
	if parent != nil {
		parentKey = parent.Key()
	}
	err := tx.Where("partition_key = ? AND kind = ? AND name = ? AND parent_key = ?",
		sctx.PartitionKey(), string(kind), name, parentKey).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s %q", model.ErrNotFound, kind, name)
	}
	if err != nil {
		return nil, err
	}
	return s.materialize(tx, sctx, &row)
}

func (s *Store) materialize(tx *gorm.DB, sctx store.Context, row *gormIdentity) (model.IdentityType, error) {
	var attrs []gormAttribute
	err := tx.Where("partition_key = ? AND identity_key = ?", sctx.PartitionKey(), row.Key).
		Order("ord").
		Find(&attrs).Error
	if err != nil {
		return nil, err
	}
	return toIdentity(sctx, row, attrs)
}

func identityRowTx(tx *gorm.DB, sctx store.Context, key string) (*gormIdentity, error) {
	var row gormIdentity
	err := tx.Where("partition_key = ? AND identity_key = ?", sctx.PartitionKey(), key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", model.ErrNotFound, key)
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// --- Attributes ---

func (s *Store) SetAttribute(ctx context.Context, sctx store.Context, id model.IdentityType, attr model.Attribute) error {
	return s.mutateAttributes(ctx, sctx, id, func(attrs []model.Attribute) []model.Attribute {
		for i := range attrs {
			if attrs[i].Name == attr.Name {
				attrs[i] = attr
				return attrs
			}
		}
		return append(attrs, attr)
	})
}

func (s *Store) RemoveAttribute(ctx context.Context, sctx store.Context, id model.IdentityType, name string) error {
	return s.mutateAttributes(ctx, sctx, id, func(attrs []model.Attribute) []model.Attribute {
		for i := range attrs {
			if attrs[i].Name == name {
				return append(attrs[:i], attrs[i+1:]...)
			}
		}
		return attrs
	})
}

func (s *Store) GetAttribute(ctx context.Context, sctx store.Context, id model.IdentityType, name string) (model.Attribute, error) {
	attrs, err := s.GetAttributes(ctx, sctx, id)
	if err != nil {
		return model.Attribute{}, err
	}
	for _, a := range attrs {
		if a.Name == name {
			return a, nil
		}
	}
	return model.Attribute{}, fmt.Errorf("%w: attribute %q on %s", model.ErrNotFound, name, id.Key())
}

func (s *Store) GetAttributes(ctx context.Context, sctx store.Context, id model.IdentityType) ([]model.Attribute, error) {
	tx := s.db.WithContext(ctx)
	if _, err := identityRowTx(tx, sctx, id.Key()); err != nil {
		return nil, err
	}
	var rows []gormAttribute
	err := tx.Where("partition_key = ? AND identity_key = ?", sctx.PartitionKey(), id.Key()).
		Order("ord").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return decodeAttributes(rows), nil
}

func (s *Store) mutateAttributes(ctx context.Context, sctx store.Context, id model.IdentityType, mutate func([]model.Attribute) []model.Attribute) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := identityRowTx(tx, sctx, id.Key()); err != nil {
			return err
		}
		var rows []gormAttribute
		err := tx.Where("partition_key = ? AND identity_key = ?", sctx.PartitionKey(), id.Key()).
			Order("ord").
			Find(&rows).Error
		if err != nil {
			return err
		}
		return replaceAttributes(tx, sctx, id.Key(), mutate(decodeAttributes(rows)))
	})
}

func replaceAttributes(tx *gorm.DB, sctx store.Context, key string, attrs []model.Attribute) error {
	err := tx.Where("partition_key = ? AND identity_key = ?", sctx.PartitionKey(), key).
		Delete(&gormAttribute{}).Error
	if err != nil {
		return err
	}
	rows := encodeAttributes(sctx, key, attrs)
	if len(rows) == 0 {
		return nil
	}
	return tx.Create(&rows).Error
}
