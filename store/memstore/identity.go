package memstore

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-memdb"
	"github.com/hashicorp/go-multierror"

	"github.com/idmkit/idmkit/model"
	"github.com/idmkit/idmkit/store"
)

func (s *Store) Create(ctx context.Context, sctx store.Context, id model.IdentityType) error {
	txn := s.db.Txn(true)
	defer txn.Abort()

	name, parentKey := naturalName(id)
	raw, err := txn.First(tableIdentity, "natural", sctx.PartitionKey(), string(id.Kind()), name, parentKey)
	if err != nil {
		return err
	}
	if raw != nil {
		return fmt.Errorf("%w: %s", model.ErrDuplicateIdentity, id.Key())
	}

	snap := id.Clone()
	snap.SetPartition(sctx.Partition)

	row := &identityRow{
		ID:           rowID(sctx, id.Key()),
		PartitionKey: sctx.PartitionKey(),
		Key:          id.Key(),
		Kind:         string(id.Kind()),
		Name:         name,
		ParentKey:    parentKey,
		Snapshot:     snap,
	}
	if err := txn.Insert(tableIdentity, row); err != nil {
		return err
	}

	txn.Commit()
	return nil
}

func (s *Store) Update(ctx context.Context, sctx store.Context, id model.IdentityType) error {
	txn := s.db.Txn(true)
	defer txn.Abort()

	row, err := s.identityRowTxn(txn, sctx, id.Key())
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

	next := *row
	next.Snapshot = applyUpdate(row.Snapshot, id)
	if err := txn.Insert(tableIdentity, &next); err != nil {
		return err
	}

	txn.Commit()
	return nil
}

// applyUpdate carries the mutable fields (enabled, expiry, attributes) of
// incoming onto a copy of the stored snapshot. Created date and natural
// key fields stay as stored.
func applyUpdate(stored, incoming model.IdentityType) model.IdentityType {
	next := stored.Clone()
	next.SetEnabled(incoming.Enabled())
	next.SetExpirationDate(incoming.ExpirationDate())
	for _, a := range next.Attributes() {
		next.RemoveAttribute(a.Name)
	}
	for _, a := range incoming.Attributes() {
		next.SetAttribute(a)
	}
	return next
}

func (s *Store) Remove(ctx context.Context, sctx store.Context, id model.IdentityType) error {
	txn := s.db.Txn(true)
	defer txn.Abort()

	row, err := s.identityRowTxn(txn, sctx, id.Key())
	if err != nil {
		return err
	}
	if err := txn.Delete(tableIdentity, row); err != nil {
		return err
	}
	if err := cascade(txn, sctx.PartitionKey(), row.Key); err != nil {
		return err
	}

	txn.Commit()
	return nil
}

// cascade purges memberships, grants and credentials referencing the
// removed identity so no dangling relations survive.
func cascade(txn *memdb.Txn, partitionKey, key string) error {
	var errs *multierror.Error

	for _, index := range []string{"member", "group"} {
		for _, raw := range collect(txn, tableMembership, index, key) {
			row := raw.(*membershipRow)
			if row.PartitionKey != partitionKey {
				continue
			}
			errs = multierror.Append(errs, txn.Delete(tableMembership, row))
		}
	}

	for _, index := range []string{"member", "role", "group"} {
		for _, raw := range collect(txn, tableGrant, index, key) {
			row := raw.(*grantRow)
			if row.PartitionKey != partitionKey {
				continue
			}
			errs = multierror.Append(errs, txn.Delete(tableGrant, row))
		}
	}

	for _, raw := range collect(txn, tableCredential, "user", key) {
		row := raw.(*credentialRow)
		if row.PartitionKey != partitionKey {
			continue
		}
		errs = multierror.Append(errs, txn.Delete(tableCredential, row))
	}

	return errs.ErrorOrNil()
}

// collect materializes an index scan; deleting while iterating a live
// iterator is unsafe.
func collect(txn *memdb.Txn, table, index, value string) []any {
	it, err := txn.Get(table, index, value)
	if err != nil {
		return nil
	}
	var rows []any
	for raw := it.Next(); raw != nil; raw = it.Next() {
		rows = append(rows, raw)
	}
	return rows
}

func (s *Store) LookupByKey(ctx context.Context, sctx store.Context, key string) (model.IdentityType, error) {
	txn := s.db.Txn(false)
	row, err := s.identityRowTxn(txn, sctx, key)
	if err != nil {
		return nil, err
	}
	return row.Snapshot.Clone(), nil
}

func (s *Store) LookupByName(ctx context.Context, sctx store.Context, kind model.Kind, name string, parent *model.Group) (model.IdentityType, error) {
	txn := s.db.Txn(false)

	if kind == model.KindGroup && parent == nil {
		// Name-only group lookup matches regardless of parent.
		it, err := txn.Get(tableIdentity, "partition", sctx.PartitionKey())
		if err != nil {
			return nil, err
		}
		for raw := it.Next(); raw != nil; raw = it.Next() {
			row := raw.(*identityRow)
			if row.Kind == string(model.KindGroup) && row.Name == name {
				return row.Snapshot.Clone(), nil
			}
		}
		return nil, fmt.Errorf("%w: group %q", model.ErrNotFound, name)
	}

	parentKey := noParent
	if parent != nil {
		parentKey = parent.Key()
	}
	raw, err := txn.First(tableIdentity, "natural", sctx.PartitionKey(), string(kind), name, parentKey)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: %s %q", model.ErrNotFound, kind, name)
	}
	return raw.(*identityRow).Snapshot.Clone(), nil
}

func (s *Store) identityRowTxn(txn *memdb.Txn, sctx store.Context, key string) (*identityRow, error) {
	raw, err := txn.First(tableIdentity, "id", rowID(sctx, key))
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: %s", model.ErrNotFound, key)
	}
	return raw.(*identityRow), nil
}

// --- Attributes ---

func (s *Store) SetAttribute(ctx context.Context, sctx store.Context, id model.IdentityType, attr model.Attribute) error {
	return s.mutateSnapshot(sctx, id, func(snap model.IdentityType) {
		snap.SetAttribute(attr)
	})
}

func (s *Store) RemoveAttribute(ctx context.Context, sctx store.Context, id model.IdentityType, name string) error {
	return s.mutateSnapshot(sctx, id, func(snap model.IdentityType) {
		snap.RemoveAttribute(name)
	})
}

func (s *Store) GetAttribute(ctx context.Context, sctx store.Context, id model.IdentityType, name string) (model.Attribute, error) {
	txn := s.db.Txn(false)
	row, err := s.identityRowTxn(txn, sctx, id.Key())
	if err != nil {
		return model.Attribute{}, err
	}
	attr, ok := row.Snapshot.Attribute(name)
	if !ok {
		return model.Attribute{}, fmt.Errorf("%w: attribute %q on %s", model.ErrNotFound, name, id.Key())
	}
	return attr, nil
}

func (s *Store) GetAttributes(ctx context.Context, sctx store.Context, id model.IdentityType) ([]model.Attribute, error) {
	txn := s.db.Txn(false)
	row, err := s.identityRowTxn(txn, sctx, id.Key())
	if err != nil {
		return nil, err
	}
	return row.Snapshot.Attributes(), nil
}

func (s *Store) mutateSnapshot(sctx store.Context, id model.IdentityType, mutate func(model.IdentityType)) error {
	txn := s.db.Txn(true)
	defer txn.Abort()

	row, err := s.identityRowTxn(txn, sctx, id.Key())
	if err != nil {
		return err
	}

	next := *row
	next.Snapshot = row.Snapshot.Clone()
	mutate(next.Snapshot)
	if err := txn.Insert(tableIdentity, &next); err != nil {
		return err
	}

	txn.Commit()
	return nil
}
