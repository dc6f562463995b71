// Package store defines the contract every identity backend must satisfy,
// split into capability groups. A backend declares the groups it supports;
// the router rejects operations against undeclared groups at dispatch time
// instead of letting them fail inside the backend.
package store

import (
	"context"

	"github.com/idmkit/idmkit/model"
	"github.com/idmkit/idmkit/query"
)

// Capability names one operation group of the contract.
type Capability string

const (
	CapCRUD       Capability = "crud"
	CapMembership Capability = "membership"
	CapRoleGrant  Capability = "role-grant"
	CapAttribute  Capability = "attribute"
	CapCredential Capability = "credential"
	CapQuery      Capability = "query"
	CapPartition  Capability = "partition"
)

// AllCapabilities lists every operation group of the contract.
func AllCapabilities() []Capability {
	return []Capability{
		CapCRUD, CapMembership, CapRoleGrant, CapAttribute,
		CapCredential, CapQuery, CapPartition,
	}
}

// CapabilitySet is the set of operation groups a store declares support for.
type CapabilitySet map[Capability]bool

// Capabilities builds a set from the given groups.
func Capabilities(caps ...Capability) CapabilitySet {
	s := make(CapabilitySet, len(caps))
	for _, c := range caps {
		s[c] = true
	}
	return s
}

// Has reports whether the set contains the capability.
func (s CapabilitySet) Has(c Capability) bool { return s[c] }

// IdentityStore is the full backend contract. Backends that do not support
// an operation group embed Unsupported for its methods and leave the group
// out of Capabilities; the router guarantees those methods are never
// dispatched.
//
// All operations are scoped to the partition carried by the call Context.
// Store instances must be safe for concurrent use.
type IdentityStore interface {
	// Capabilities returns the operation groups this store supports.
	Capabilities() CapabilitySet

	CRUDStore
	MembershipStore
	RoleGrantStore
	AttributeStore
	CredentialStore
	QueryStore
	PartitionStore
}

// CRUDStore covers identity lifecycle and lookup.
type CRUDStore interface {
	// Create persists a new identity. Fails with model.ErrDuplicateIdentity
	// when an identity with the same natural key exists in the partition.
	Create(ctx context.Context, sctx Context, id model.IdentityType) error

	// Update replaces the mutable fields (enabled, expiry, attributes) of
	// the stored record matching the identity's key. Name and parent of a
	// group, and the name of a role, are immutable; a mismatch fails with
	// model.ErrImmutableField and leaves the record unchanged. Fails with
	// model.ErrNotFound when no record matches.
	Update(ctx context.Context, sctx Context, id model.IdentityType) error

	// Remove deletes the identity and cascades: memberships, role grants
	// and credentials referencing it are purged. Fails with
	// model.ErrNotFound when absent.
	Remove(ctx context.Context, sctx Context, id model.IdentityType) error

	// LookupByKey returns the identity with exactly the given key, or
	// model.ErrNotFound.
	LookupByKey(ctx context.Context, sctx Context, key string) (model.IdentityType, error)

	// LookupByName returns the identity of the given variant and natural
	// name. For groups a nil parent matches by name alone; with a parent
	// given the stored parent must match exactly — a name-only match with
	// a different parent is model.ErrNotFound, never a partial match.
	LookupByName(ctx context.Context, sctx Context, kind model.Kind, name string, parent *model.Group) (model.IdentityType, error)
}

// MembershipStore covers the member/group relation. Membership is a pure
// relation; it is independent of attribute storage.
type MembershipStore interface {
	AddToGroup(ctx context.Context, sctx Context, member model.IdentityType, group *model.Group) error
	RemoveFromGroup(ctx context.Context, sctx Context, member model.IdentityType, group *model.Group) error
	IsMember(ctx context.Context, sctx Context, member model.IdentityType, group *model.Group) (bool, error)
}

// RoleGrantStore covers plain and group-scoped role grants. A group-scoped
// grant does not imply the unscoped grant, nor the reverse.
type RoleGrantStore interface {
	GrantRole(ctx context.Context, sctx Context, member model.IdentityType, role *model.Role) error
	RevokeRole(ctx context.Context, sctx Context, member model.IdentityType, role *model.Role) error
	HasRole(ctx context.Context, sctx Context, member model.IdentityType, role *model.Role) (bool, error)

	GrantGroupRole(ctx context.Context, sctx Context, member model.IdentityType, role *model.Role, group *model.Group) error
	RevokeGroupRole(ctx context.Context, sctx Context, member model.IdentityType, role *model.Role, group *model.Group) error
	HasGroupRole(ctx context.Context, sctx Context, member model.IdentityType, role *model.Role, group *model.Group) (bool, error)
}

// AttributeStore covers stored attributes. Set overwrites all previous
// values for the attribute name; there is no partial merge.
type AttributeStore interface {
	SetAttribute(ctx context.Context, sctx Context, id model.IdentityType, attr model.Attribute) error
	RemoveAttribute(ctx context.Context, sctx Context, id model.IdentityType, name string) error
	GetAttribute(ctx context.Context, sctx Context, id model.IdentityType, name string) (model.Attribute, error)
	GetAttributes(ctx context.Context, sctx Context, id model.IdentityType) ([]model.Attribute, error)
}

// CredentialStore persists opaque credential material per (user, kind).
// Validation and update policy live in credential handlers; the store only
// reads and writes the material handlers hand it.
type CredentialStore interface {
	StoreCredential(ctx context.Context, sctx Context, user *model.User, kind string, material []byte) error

	// RetrieveCredential returns the stored material, or model.ErrNotFound
	// when the user has no credential of that kind.
	RetrieveCredential(ctx context.Context, sctx Context, user *model.User, kind string) ([]byte, error)
}

// QueryStore evaluates a compiled predicate set natively. Results come back
// in backend order without de-duplication beyond natural key uniqueness.
// A store that cannot evaluate a relational parameter must not approximate
// it; it leaves CapQuery semantics to stores that can.
type QueryStore interface {
	ExecuteQuery(ctx context.Context, sctx Context, q *query.Query) ([]model.IdentityType, error)
}

// PartitionStore covers partition lifecycle. RemovePartition fails with
// model.ErrPartitionNotEmpty while identities remain in the partition.
type PartitionStore interface {
	CreatePartition(ctx context.Context, sctx Context, p model.Partition) error
	RemovePartition(ctx context.Context, sctx Context, p model.Partition) error
	GetPartition(ctx context.Context, kind model.PartitionKind, name string) (model.Partition, error)
}
