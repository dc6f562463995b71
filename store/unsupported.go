package store

import (
	"context"

	"github.com/idmkit/idmkit/model"
	"github.com/idmkit/idmkit/query"
)

// Unsupported provides the full contract with every method failing with
// model.ErrUnsupportedOperation. Partial backends embed it and override the
// groups they implement; the router keeps undeclared groups from being
// dispatched, so these methods only fire when a backend mis-declares its
// capabilities.
type Unsupported struct{}

func (Unsupported) Create(context.Context, Context, model.IdentityType) error {
	return model.ErrUnsupportedOperation
}

func (Unsupported) Update(context.Context, Context, model.IdentityType) error {
	return model.ErrUnsupportedOperation
}

func (Unsupported) Remove(context.Context, Context, model.IdentityType) error {
	return model.ErrUnsupportedOperation
}

func (Unsupported) LookupByKey(context.Context, Context, string) (model.IdentityType, error) {
	return nil, model.ErrUnsupportedOperation
}

func (Unsupported) LookupByName(context.Context, Context, model.Kind, string, *model.Group) (model.IdentityType, error) {
	return nil, model.ErrUnsupportedOperation
}

func (Unsupported) AddToGroup(context.Context, Context, model.IdentityType, *model.Group) error {
	return model.ErrUnsupportedOperation
}

func (Unsupported) RemoveFromGroup(context.Context, Context, model.IdentityType, *model.Group) error {
	return model.ErrUnsupportedOperation
}

func (Unsupported) IsMember(context.Context, Context, model.IdentityType, *model.Group) (bool, error) {
	return false, model.ErrUnsupportedOperation
}

func (Unsupported) GrantRole(context.Context, Context, model.IdentityType, *model.Role) error {
	return model.ErrUnsupportedOperation
}

func (Unsupported) RevokeRole(context.Context, Context, model.IdentityType, *model.Role) error {
	return model.ErrUnsupportedOperation
}

func (Unsupported) HasRole(context.Context, Context, model.IdentityType, *model.Role) (bool, error) {
	return false, model.ErrUnsupportedOperation
}

func (Unsupported) GrantGroupRole(context.Context, Context, model.IdentityType, *model.Role, *model.Group) error {
	return model.ErrUnsupportedOperation
}

func (Unsupported) RevokeGroupRole(context.Context, Context, model.IdentityType, *model.Role, *model.Group) error {
	return model.ErrUnsupportedOperation
}

func (Unsupported) HasGroupRole(context.Context, Context, model.IdentityType, *model.Role, *model.Group) (bool, error) {
	return false, model.ErrUnsupportedOperation
}

func (Unsupported) SetAttribute(context.Context, Context, model.IdentityType, model.Attribute) error {
	return model.ErrUnsupportedOperation
}

func (Unsupported) RemoveAttribute(context.Context, Context, model.IdentityType, string) error {
	return model.ErrUnsupportedOperation
}

func (Unsupported) GetAttribute(context.Context, Context, model.IdentityType, string) (model.Attribute, error) {
	return model.Attribute{}, model.ErrUnsupportedOperation
}

func (Unsupported) GetAttributes(context.Context, Context, model.IdentityType) ([]model.Attribute, error) {
	return nil, model.ErrUnsupportedOperation
}

func (Unsupported) StoreCredential(context.Context, Context, *model.User, string, []byte) error {
	return model.ErrUnsupportedOperation
}

func (Unsupported) RetrieveCredential(context.Context, Context, *model.User, string) ([]byte, error) {
	return nil, model.ErrUnsupportedOperation
}

func (Unsupported) ExecuteQuery(context.Context, Context, *query.Query) ([]model.IdentityType, error) {
	return nil, model.ErrUnsupportedOperation
}

func (Unsupported) CreatePartition(context.Context, Context, model.Partition) error {
	return model.ErrUnsupportedOperation
}

func (Unsupported) RemovePartition(context.Context, Context, model.Partition) error {
	return model.ErrUnsupportedOperation
}

func (Unsupported) GetPartition(context.Context, model.PartitionKind, string) (model.Partition, error) {
	return nil, model.ErrUnsupportedOperation
}
