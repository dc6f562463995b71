// Package query provides the backend-agnostic predicate algebra for
// identity lookups. A query maps typed parameters to required values;
// parameters combine with implicit AND semantics. Stores translate the
// parameter set into native lookups, so a given query behaves identically
// regardless of the backend evaluating it.
package query

import "strings"

const attributePrefix = "attribute:"

// Parameter identifies one predicate family. Parameters are comparable and
// usable as map keys.
type Parameter struct {
	name string
}

// Scalar predicates on identity fields.
var (
	Key         = Parameter{name: "key"}
	Enabled     = Parameter{name: "enabled"}
	CreatedDate = Parameter{name: "created_date"}
	ExpiryDate  = Parameter{name: "expiry_date"}
)

// Relational predicates, expressing membership in a relation rather than a
// field comparison.
var (
	HasRole      = Parameter{name: "has_role"}
	RoleOf       = Parameter{name: "role_of"}
	HasGroupRole = Parameter{name: "has_group_role"}
	GroupRoleOf  = Parameter{name: "group_role_of"}
	MemberOf     = Parameter{name: "member_of"}
	HasMember    = Parameter{name: "has_member"}
)

// Attribute returns the parameter matching stored values of the named
// attribute. Each distinct attribute name is its own predicate key.
func Attribute(name string) Parameter {
	return Parameter{name: attributePrefix + name}
}

func (p Parameter) String() string { return p.name }

// IsAttribute reports whether this parameter targets a named attribute.
func (p Parameter) IsAttribute() bool {
	return strings.HasPrefix(p.name, attributePrefix)
}

// AttributeName returns the attribute name for attribute parameters, or ""
// otherwise.
func (p Parameter) AttributeName() string {
	if !p.IsAttribute() {
		return ""
	}
	return strings.TrimPrefix(p.name, attributePrefix)
}

// IsRelational reports whether the parameter is evaluated against a
// relation table instead of an identity field.
func (p Parameter) IsRelational() bool {
	switch p {
	case HasRole, RoleOf, HasGroupRole, GroupRoleOf, MemberOf, HasMember:
		return true
	}
	return false
}
