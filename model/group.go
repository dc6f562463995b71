package model

import (
	"fmt"
	"strings"
)

// Group is an identity arranged in a hierarchy. A child references its
// parent; parents hold no references to children, child enumeration is a
// store query.
type Group struct {
	common
	name   string
	parent *Group
	path   string
}

// NewGroup creates a root group.
func NewGroup(name string) *Group {
	return NewChildGroup(name, nil)
}

// NewChildGroup creates a group under parent. Name and parent are fixed at
// construction; the canonical path is derived here once and never
// recomputed.
func NewChildGroup(name string, parent *Group) *Group {
	return &Group{
		common: newCommon(),
		name:   name,
		parent: parent,
		path:   groupPath(name, parent),
	}
}

// groupPath joins the ancestor chain from root to the new group, e.g.
// "/Company/Administrators".
func groupPath(name string, parent *Group) string {
	if parent == nil {
		return "/" + name
	}
	return parent.path + "/" + name
}

func (g *Group) Name() string { return g.name }

// ParentGroup returns the parent, or nil for a root group.
func (g *Group) ParentGroup() *Group { return g.parent }

// Path returns the slash-rooted ancestor path, e.g. "/Company/Administrators".
func (g *Group) Path() string { return g.path }

func (g *Group) Key() string { return GroupKeyPrefix + g.path }

func (g *Group) Kind() Kind { return KindGroup }

func (g *Group) Validate() error {
	if g.name == "" {
		return fmt.Errorf("%w: group name must not be empty", ErrInvalidIdentity)
	}
	if strings.Contains(g.name, "/") {
		return fmt.Errorf("%w: group name must not contain %q", ErrInvalidIdentity, "/")
	}
	if g.parent != nil {
		return g.parent.Validate()
	}
	return nil
}

// Equal reports whether both groups denote the same path.
// TODO: take the owning partition into account; groups with equal paths in
// different partitions currently compare equal.
func (g *Group) Equal(other *Group) bool {
	return other != nil && g.path == other.path
}

func (g *Group) Clone() IdentityType {
	c := &Group{common: g.cloneCommon(), name: g.name, parent: g.parent, path: g.path}
	return c
}

// GroupFromPath rebuilds a group chain from a slash-rooted path such as
// "/Company/Administrators". Ancestors carry names only; attributes and
// flags of stored ancestors are not loaded.
func GroupFromPath(path string) *Group {
	segments := strings.Split(strings.TrimPrefix(path, "/"), "/")
	var g *Group
	for _, name := range segments {
		if name == "" {
			continue
		}
		g = NewChildGroup(name, g)
	}
	return g
}
