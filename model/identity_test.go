package model

import (
	"testing"
	"time"
)

func TestAttributeFirstValue(t *testing.T) {
	a := NewAttribute("mail", "a@example.com", "b@example.com")

	if a.Value() != "a@example.com" {
		t.Errorf("Expected first inserted value, got %v", a.Value())
	}
	if len(a.Values) != 2 {
		t.Errorf("Expected 2 values, got %d", len(a.Values))
	}
	if NewAttribute("empty").Value() != nil {
		t.Error("Attribute without values should return nil")
	}
}

func TestSetAttributeOverwrites(t *testing.T) {
	u := NewUser("alice")
	u.SetAttribute(NewAttribute("phone", "111"))
	u.SetAttribute(NewAttribute("phone", "222", "333"))

	attr, ok := u.Attribute("phone")
	if !ok {
		t.Fatal("Attribute not found")
	}
	if attr.Value() != "222" {
		t.Errorf("Set should overwrite, got %v", attr.Value())
	}
	if len(u.Attributes()) != 1 {
		t.Errorf("Expected a single attribute, got %d", len(u.Attributes()))
	}
}

func TestRemoveAttribute(t *testing.T) {
	u := NewUser("alice")
	u.SetAttribute(NewAttribute("phone", "111"))
	u.RemoveAttribute("phone")

	if _, ok := u.Attribute("phone"); ok {
		t.Error("Attribute should have been removed")
	}
}

func TestAttributesInsertionOrder(t *testing.T) {
	u := NewUser("alice")
	u.SetAttribute(NewAttribute("b", 1))
	u.SetAttribute(NewAttribute("a", 2))
	u.SetAttribute(NewAttribute("c", 3))

	attrs := u.Attributes()
	want := []string{"b", "a", "c"}
	for i, name := range want {
		if attrs[i].Name != name {
			t.Errorf("Position %d: expected %s, got %s", i, name, attrs[i].Name)
		}
	}
}

func TestIdentityDefaults(t *testing.T) {
	u := NewUser("alice")

	if !u.Enabled() {
		t.Error("New identities should be enabled")
	}
	if u.ExpirationDate() != nil {
		t.Error("New identities should not expire")
	}
	if u.CreatedDate().IsZero() {
		t.Error("Created date should be set")
	}
	if u.Key() != "USER:///alice" {
		t.Errorf("Unexpected user key %s", u.Key())
	}
}

func TestIdentityExpiry(t *testing.T) {
	r := NewRole("admin")
	exp := time.Now().Add(24 * time.Hour)
	r.SetExpirationDate(&exp)

	if r.ExpirationDate() == nil || !r.ExpirationDate().Equal(exp) {
		t.Error("Expiration date not stored")
	}
	if r.Key() != "ROLE:///admin" {
		t.Errorf("Unexpected role key %s", r.Key())
	}
}

func TestValidateEmptyNames(t *testing.T) {
	if err := NewUser("").Validate(); err == nil {
		t.Error("Expected error for empty login")
	}
	if err := NewRole("").Validate(); err == nil {
		t.Error("Expected error for empty role name")
	}
}
