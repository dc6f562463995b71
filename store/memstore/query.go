package memstore

import (
	"context"
	"reflect"
	"time"

	"github.com/hashicorp/go-memdb"

	"github.com/idmkit/idmkit/model"
	"github.com/idmkit/idmkit/query"
	"github.com/idmkit/idmkit/store"
)

// ExecuteQuery evaluates every parameter natively against the identity and
// relation tables. Results come back in index order (ascending key).
func (s *Store) ExecuteQuery(ctx context.Context, sctx store.Context, q *query.Query) ([]model.IdentityType, error) {
	txn := s.db.Txn(false)

	it, err := txn.Get(tableIdentity, "partition", sctx.PartitionKey())
	if err != nil {
		return nil, err
	}

	var out []model.IdentityType
	for raw := it.Next(); raw != nil; raw = it.Next() {
		row := raw.(*identityRow)
		if row.Kind != string(q.Kind()) {
			continue
		}

		match, err := s.matches(txn, sctx, row, q)
		if err != nil {
			return nil, err
		}
		if match {
			out = append(out, row.Snapshot.Clone())
		}
	}
	return out, nil
}

func (s *Store) matches(txn *memdb.Txn, sctx store.Context, row *identityRow, q *query.Query) (bool, error) {
	for _, p := range q.Parameters() {
		for _, v := range q.Values(p) {
			ok, err := s.matchValue(txn, sctx, row, p, v)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
	}
	return true, nil
}

func (s *Store) matchValue(txn *memdb.Txn, sctx store.Context, row *identityRow, p query.Parameter, v any) (bool, error) {
	if p.IsAttribute() {
		attr, ok := row.Snapshot.Attribute(p.AttributeName())
		if !ok {
			return false, nil
		}
		for _, stored := range attr.Values {
			if reflect.DeepEqual(stored, v) {
				return true, nil
			}
		}
		return false, nil
	}

	switch p {
	case query.Key:
		return row.Key == v.(string), nil

	case query.Enabled:
		return row.Snapshot.Enabled() == v.(bool), nil

	case query.CreatedDate:
		return row.Snapshot.CreatedDate().Equal(v.(time.Time)), nil

	case query.ExpiryDate:
		exp := row.Snapshot.ExpirationDate()
		return exp != nil && exp.Equal(v.(time.Time)), nil

	case query.MemberOf:
		group := v.(*model.Group)
		return s.relationExists(txn, tableMembership, sctx.PartitionKey(), row.Key, group.Key())

	case query.HasMember:
		member := v.(model.IdentityType)
		return s.relationExists(txn, tableMembership, sctx.PartitionKey(), member.Key(), row.Key)

	case query.HasRole:
		role := v.(*model.Role)
		return s.grantExists(txn, sctx.PartitionKey(), row.Key, role.Key(), noParent)

	case query.RoleOf:
		member := v.(model.IdentityType)
		return s.grantExists(txn, sctx.PartitionKey(), member.Key(), row.Key, noParent)

	case query.HasGroupRole:
		gr := v.(model.GroupRole)
		return s.grantExists(txn, sctx.PartitionKey(), row.Key, gr.Role.Key(), gr.Group.Key())

	case query.GroupRoleOf:
		// Any group-scoped grant of this role to the member.
		member := v.(model.IdentityType)
		it, err := txn.Get(tableGrant, "member", member.Key())
		if err != nil {
			return false, err
		}
		for raw := it.Next(); raw != nil; raw = it.Next() {
			grant := raw.(*grantRow)
			if grant.PartitionKey == sctx.PartitionKey() && grant.RoleKey == row.Key && grant.GroupKey != noParent {
				return true, nil
			}
		}
		return false, nil
	}

	return false, nil
}

func (s *Store) relationExists(txn *memdb.Txn, table, partitionKey, memberKey, groupKey string) (bool, error) {
	raw, err := txn.First(table, "relation", partitionKey, memberKey, groupKey)
	if err != nil {
		return false, err
	}
	return raw != nil, nil
}

func (s *Store) grantExists(txn *memdb.Txn, partitionKey, memberKey, roleKey, groupKey string) (bool, error) {
	raw, err := txn.First(tableGrant, "relation", partitionKey, memberKey, roleKey, groupKey)
	if err != nil {
		return false, err
	}
	return raw != nil, nil
}
