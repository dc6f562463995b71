package gormstore

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/idmkit/idmkit/model"
	"github.com/idmkit/idmkit/query"
	"github.com/idmkit/idmkit/store"
)

// ExecuteQuery translates every parameter into a SQL predicate, relational
// parameters into subqueries against the relation tables. Results come
// back in key order.
func (s *Store) ExecuteQuery(ctx context.Context, sctx store.Context, q *query.Query) ([]model.IdentityType, error) {
	tx := s.db.WithContext(ctx).Model(&gormIdentity{}).
		Where("partition_key = ? AND kind = ?", sctx.PartitionKey(), string(q.Kind()))

	for _, p := range q.Parameters() {
		for _, v := range q.Values(p) {
			tx = s.applyPredicate(tx, sctx, p, v)
		}
	}

	var rows []gormIdentity
	if err := tx.Order("identity_key").Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]model.IdentityType, 0, len(rows))
	for i := range rows {
		id, err := s.materialize(s.db.WithContext(ctx), sctx, &rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

func (s *Store) applyPredicate(tx *gorm.DB, sctx store.Context, p query.Parameter, v any) *gorm.DB {
	if p.IsAttribute() {
		sub := s.db.Model(&gormAttribute{}).Select("identity_key").
			Where("partition_key = ? AND name = ? AND value = ?",
				sctx.PartitionKey(), p.AttributeName(), encodeValue(v))
		return tx.Where("identity_key IN (?)", sub)
	}

	switch p {
	case query.Key:
		return tx.Where("identity_key = ?", v.(string))

	case query.Enabled:
		return tx.Where("enabled = ?", v.(bool))

	case query.CreatedDate:
		return tx.Where("created_at = ?", v.(time.Time))

	case query.ExpiryDate:
		return tx.Where("expires_at = ?", v.(time.Time))

	case query.MemberOf:
		group := v.(*model.Group)
		sub := s.db.Model(&gormMembership{}).Select("member_key").
			Where("partition_key = ? AND group_key = ?", sctx.PartitionKey(), group.Key())
		return tx.Where("identity_key IN (?)", sub)

	case query.HasMember:
		member := v.(model.IdentityType)
		sub := s.db.Model(&gormMembership{}).Select("group_key").
			Where("partition_key = ? AND member_key = ?", sctx.PartitionKey(), member.Key())
		return tx.Where("identity_key IN (?)", sub)

	case query.HasRole:
		role := v.(*model.Role)
		sub := s.db.Model(&gormGrant{}).Select("member_key").
			Where("partition_key = ? AND role_key = ? AND group_key = ?",
				sctx.PartitionKey(), role.Key(), "")
		return tx.Where("identity_key IN (?)", sub)

	case query.RoleOf:
		member := v.(model.IdentityType)
		sub := s.db.Model(&gormGrant{}).Select("role_key").
			Where("partition_key = ? AND member_key = ? AND group_key = ?",
				sctx.PartitionKey(), member.Key(), "")
		return tx.Where("identity_key IN (?)", sub)

	case query.HasGroupRole:
		gr := v.(model.GroupRole)
		sub := s.db.Model(&gormGrant{}).Select("member_key").
			Where("partition_key = ? AND role_key = ? AND group_key = ?",
				sctx.PartitionKey(), gr.Role.Key(), gr.Group.Key())
		return tx.Where("identity_key IN (?)", sub)

	case query.GroupRoleOf:
		// Any group-scoped grant of this role to the member.
		member := v.(model.IdentityType)
		sub := s.db.Model(&gormGrant{}).Select("role_key").
			Where("partition_key = ? AND member_key = ? AND group_key <> ?",
				sctx.PartitionKey(), member.Key(), "")
		return tx.Where("identity_key IN (?)", sub)
	}

	return tx
}
