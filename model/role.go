package model

import "fmt"

// Role is a flat, named identity; roles have no hierarchy.
type Role struct {
	common
	name string
}

// NewRole creates a role with the given name.
func NewRole(name string) *Role {
	return &Role{common: newCommon(), name: name}
}

func (r *Role) Name() string { return r.name }

func (r *Role) Key() string { return RoleKeyPrefix + "/" + r.name }

func (r *Role) Kind() Kind { return KindRole }

func (r *Role) Validate() error {
	if r.name == "" {
		return fmt.Errorf("%w: role name must not be empty", ErrInvalidIdentity)
	}
	return nil
}

func (r *Role) Clone() IdentityType {
	return &Role{common: r.cloneCommon(), name: r.name}
}
