// Package model defines the identity value types: users, groups, roles,
// the partitions that isolate them, and the attribute bag they share.
//
// Identities are plain value objects. They carry no store-assigned state;
// persistence happens through the manager, and after a successful add the
// store is the sole authority for what is current. Mutating a previously
// persisted value object has no effect until it is passed to an update
// call.
package model

import "time"

// Kind tags the closed set of identity variants.
type Kind string

const (
	KindUser  Kind = "user"
	KindGroup Kind = "group"
	KindRole  Kind = "role"
)

// Key prefixes per variant. A full key is the prefix followed by a
// slash-rooted path, e.g. "GROUP:///Company/Administrators".
const (
	UserKeyPrefix  = "USER://"
	GroupKeyPrefix = "GROUP://"
	RoleKeyPrefix  = "ROLE://"
)

// IdentityType is the common surface of the three identity variants.
// The variant set is closed: code that needs variant-specific behavior
// switches exhaustively on Kind rather than extending the interface.
type IdentityType interface {
	// Key returns the derived, unique identifier of this identity within
	// its partition.
	Key() string

	Kind() Kind

	Enabled() bool
	SetEnabled(enabled bool)

	CreatedDate() time.Time

	// ExpirationDate returns nil when the identity does not expire.
	ExpirationDate() *time.Time
	SetExpirationDate(expires *time.Time)

	// SetAttribute overwrites any previous values stored under the
	// attribute's name.
	SetAttribute(attr Attribute)
	RemoveAttribute(name string)

	// Attribute returns the attribute with the given name, or false when
	// it is not set.
	Attribute(name string) (Attribute, bool)

	// Attributes returns all attributes in insertion order.
	Attributes() []Attribute

	// Partition returns the owning partition, or nil before the identity
	// has been added through a manager.
	Partition() Partition
	SetPartition(p Partition)

	// Validate reports whether the identity satisfies the model
	// invariants (e.g. a non-empty name).
	Validate() error

	// Clone returns a deep copy. Stores snapshot identities on create and
	// update so that later mutations of the caller's value are not
	// observed.
	Clone() IdentityType
}

// common is the field set shared by all variants.
type common struct {
	enabled   bool
	created   time.Time
	expires   *time.Time
	attrs     []Attribute
	partition Partition
}

func newCommon() common {
	return common{enabled: true, created: time.Now()}
}

func (c *common) Enabled() bool           { return c.enabled }
func (c *common) SetEnabled(enabled bool) { c.enabled = enabled }

func (c *common) CreatedDate() time.Time { return c.created }

func (c *common) ExpirationDate() *time.Time { return c.expires }
func (c *common) SetExpirationDate(expires *time.Time) {
	c.expires = expires
}

func (c *common) SetAttribute(attr Attribute) {
	for i := range c.attrs {
		if c.attrs[i].Name == attr.Name {
			c.attrs[i] = attr
			return
		}
	}
	c.attrs = append(c.attrs, attr)
}

func (c *common) RemoveAttribute(name string) {
	for i := range c.attrs {
		if c.attrs[i].Name == name {
			c.attrs = append(c.attrs[:i], c.attrs[i+1:]...)
			return
		}
	}
}

func (c *common) Attribute(name string) (Attribute, bool) {
	for _, a := range c.attrs {
		if a.Name == name {
			return a, true
		}
	}
	return Attribute{}, false
}

func (c *common) Attributes() []Attribute {
	out := make([]Attribute, len(c.attrs))
	copy(out, c.attrs)
	return out
}

func (c *common) Partition() Partition     { return c.partition }
func (c *common) SetPartition(p Partition) { c.partition = p }

// RestoreCreatedDate overwrites the creation timestamp of a freshly built
// identity. For store use only, when materializing a stored record; the
// timestamp is otherwise fixed at construction.
func RestoreCreatedDate(id IdentityType, created time.Time) {
	switch v := id.(type) {
	case *User:
		v.created = created
	case *Group:
		v.created = created
	case *Role:
		v.created = created
	}
}

func (c *common) cloneCommon() common {
	cc := common{
		enabled:   c.enabled,
		created:   c.created,
		partition: c.partition,
	}
	if c.expires != nil {
		exp := *c.expires
		cc.expires = &exp
	}
	if c.attrs != nil {
		cc.attrs = make([]Attribute, len(c.attrs))
		for i, a := range c.attrs {
			cc.attrs[i] = a.clone()
		}
	}
	return cc
}
