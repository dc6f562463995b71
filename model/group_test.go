package model

import "testing"

func TestGroupKeyRoot(t *testing.T) {
	g := NewGroup("Company")

	if g.Key() != "GROUP:///Company" {
		t.Errorf("Expected GROUP:///Company, got %s", g.Key())
	}
	if g.ParentGroup() != nil {
		t.Error("Root group should have no parent")
	}
}

func TestGroupKeyWithParent(t *testing.T) {
	parent := NewGroup("Company")
	child := NewChildGroup("Administrators", parent)

	if child.Key() != "GROUP:///Company/Administrators" {
		t.Errorf("Expected GROUP:///Company/Administrators, got %s", child.Key())
	}
	if child.ParentGroup().Name() != "Company" {
		t.Errorf("Expected parent Company, got %s", child.ParentGroup().Name())
	}
}

func TestGroupKeyDeepChain(t *testing.T) {
	a := NewGroup("a")
	b := NewChildGroup("b", a)
	c := NewChildGroup("c", b)

	if c.Key() != "GROUP:///a/b/c" {
		t.Errorf("Expected GROUP:///a/b/c, got %s", c.Key())
	}
}

func TestGroupValidate(t *testing.T) {
	if err := NewGroup("").Validate(); err == nil {
		t.Error("Expected error for empty group name")
	}
	if err := NewGroup("ok").Validate(); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}

	child := NewChildGroup("child", NewGroup(""))
	if err := child.Validate(); err == nil {
		t.Error("Expected error for invalid ancestor")
	}
}

func TestGroupEqual(t *testing.T) {
	a := NewChildGroup("Administrators", NewGroup("Company"))
	b := NewChildGroup("Administrators", NewGroup("Company"))
	c := NewGroup("Administrators")

	if !a.Equal(b) {
		t.Error("Groups with the same path should be equal")
	}
	if a.Equal(c) {
		t.Error("Groups with different paths should not be equal")
	}
	if a.Equal(nil) {
		t.Error("Group should not equal nil")
	}
}

func TestGroupFromPath(t *testing.T) {
	g := GroupFromPath("/Company/Administrators")

	if g.Name() != "Administrators" {
		t.Errorf("Expected Administrators, got %s", g.Name())
	}
	if g.ParentGroup() == nil || g.ParentGroup().Name() != "Company" {
		t.Error("Expected parent Company")
	}
	if g.Key() != "GROUP:///Company/Administrators" {
		t.Errorf("Rebuilt key mismatch: %s", g.Key())
	}
}

func TestGroupCloneIsDeep(t *testing.T) {
	g := NewGroup("Company")
	g.SetAttribute(NewAttribute("location", "HQ"))

	c := g.Clone().(*Group)
	c.SetAttribute(NewAttribute("location", "Remote"))

	attr, _ := g.Attribute("location")
	if attr.Value() != "HQ" {
		t.Error("Mutating the clone should not affect the original")
	}
}
