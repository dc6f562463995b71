package model

// GroupRole binds a member to a role within the scope of a group. It is
// distinct from a plain (member, role) grant, which carries no group scope.
type GroupRole struct {
	Member IdentityType
	Group  *Group
	Role   *Role
}

// NewGroupRole creates a group-scoped role binding. Member may be nil when
// the value is used as a query argument.
func NewGroupRole(member IdentityType, group *Group, role *Role) GroupRole {
	return GroupRole{Member: member, Group: group, Role: role}
}
