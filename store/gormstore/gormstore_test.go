package gormstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/idmkit/idmkit/model"
	"github.com/idmkit/idmkit/query"
	"github.com/idmkit/idmkit/store"
)

func newTestStore(t *testing.T) (*Store, store.Context) {
	t.Helper()
	s, err := Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return s, store.NewContext(model.DefaultRealm(), &store.Invocation{})
}

func mustCreate(t *testing.T, s *Store, sctx store.Context, ids ...model.IdentityType) {
	t.Helper()
	for _, id := range ids {
		if err := s.Create(context.Background(), sctx, id); err != nil {
			t.Fatalf("Create %s failed: %v", id.Key(), err)
		}
	}
}

func TestRoundTripPreservesFields(t *testing.T) {
	s, sctx := newTestStore(t)

	expires := time.Now().Add(24 * time.Hour).Truncate(time.Second)
	alice := model.NewUser("alice")
	alice.SetExpirationDate(&expires)
	alice.SetAttribute(model.NewAttribute("team", "core", "infra"))
	alice.SetAttribute(model.NewAttribute("office", "berlin"))
	mustCreate(t, s, sctx, alice)

	got, err := s.LookupByKey(context.Background(), sctx, alice.Key())
	if err != nil {
		t.Fatalf("LookupByKey failed: %v", err)
	}
	if got.Key() != alice.Key() {
		t.Errorf("Expected %s, got %s", alice.Key(), got.Key())
	}
	if !got.CreatedDate().Truncate(time.Second).Equal(alice.CreatedDate().Truncate(time.Second)) {
		t.Error("Created date should survive the round trip")
	}
	if got.ExpirationDate() == nil || !got.ExpirationDate().Equal(expires) {
		t.Error("Expiration date should survive the round trip")
	}

	attrs := got.Attributes()
	if len(attrs) != 2 || attrs[0].Name != "team" || attrs[1].Name != "office" {
		t.Fatalf("Expected attributes in insertion order, got %v", attrs)
	}
	if len(attrs[0].Values) != 2 || attrs[0].Values[0] != "core" {
		t.Errorf("Expected multi-valued attribute, got %v", attrs[0].Values)
	}
}

func TestGroupParentChainSurvives(t *testing.T) {
	s, sctx := newTestStore(t)

	company := model.NewGroup("Company")
	admins := model.NewChildGroup("Administrators", company)
	mustCreate(t, s, sctx, company, admins)

	got, err := s.LookupByKey(context.Background(), sctx, "GROUP:///Company/Administrators")
	if err != nil {
		t.Fatalf("LookupByKey failed: %v", err)
	}
	g := got.(*model.Group)
	if g.Name() != "Administrators" || g.ParentGroup() == nil || g.ParentGroup().Name() != "Company" {
		t.Errorf("Parent chain should be rebuilt from the stored key, got %s", g.Path())
	}
}

func TestCreateDuplicate(t *testing.T) {
	s, sctx := newTestStore(t)
	mustCreate(t, s, sctx, model.NewUser("alice"))

	err := s.Create(context.Background(), sctx, model.NewUser("alice"))
	if !errors.Is(err, model.ErrDuplicateIdentity) {
		t.Errorf("Expected ErrDuplicateIdentity, got %v", err)
	}
}

func TestUpdateMutableFieldsOnly(t *testing.T) {
	s, sctx := newTestStore(t)
	alice := model.NewUser("alice")
	mustCreate(t, s, sctx, alice)

	upd := model.NewUser("alice")
	upd.SetEnabled(false)
	upd.SetAttribute(model.NewAttribute("team", "core"))
	if err := s.Update(context.Background(), sctx, upd); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	got, err := s.LookupByKey(context.Background(), sctx, alice.Key())
	if err != nil {
		t.Fatalf("LookupByKey failed: %v", err)
	}
	if got.Enabled() {
		t.Error("Enabled flag should have been updated")
	}
	if attr, ok := got.Attribute("team"); !ok || attr.Value() != "core" {
		t.Error("Attributes should have been replaced")
	}
}

func TestRemoveCascades(t *testing.T) {
	s, sctx := newTestStore(t)
	ctx := context.Background()

	alice := model.NewUser("alice")
	company := model.NewGroup("Company")
	admin := model.NewRole("admin")
	mustCreate(t, s, sctx, alice, company, admin)

	if err := s.AddToGroup(ctx, sctx, alice, company); err != nil {
		t.Fatal(err)
	}
	if err := s.GrantGroupRole(ctx, sctx, alice, admin, company); err != nil {
		t.Fatal(err)
	}
	if err := s.StoreCredential(ctx, sctx, alice, "password", []byte("hash")); err != nil {
		t.Fatal(err)
	}

	if err := s.Remove(ctx, sctx, alice); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	if ok, err := s.IsMember(ctx, sctx, alice, company); err != nil || ok {
		t.Errorf("Membership should not survive removal (ok=%v, err=%v)", ok, err)
	}
	if ok, err := s.HasGroupRole(ctx, sctx, alice, admin, company); err != nil || ok {
		t.Errorf("Group role should not survive removal (ok=%v, err=%v)", ok, err)
	}
	if _, err := s.RetrieveCredential(ctx, sctx, alice, "password"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("Credential should not survive removal, got %v", err)
	}
}

func TestScopedAndUnscopedGrantsAreDistinct(t *testing.T) {
	s, sctx := newTestStore(t)
	ctx := context.Background()

	alice := model.NewUser("alice")
	company := model.NewGroup("Company")
	admin := model.NewRole("admin")
	mustCreate(t, s, sctx, alice, company, admin)

	if err := s.GrantRole(ctx, sctx, alice, admin); err != nil {
		t.Fatal(err)
	}

	if ok, _ := s.HasRole(ctx, sctx, alice, admin); !ok {
		t.Error("Unscoped grant should be visible")
	}
	if ok, _ := s.HasGroupRole(ctx, sctx, alice, admin, company); ok {
		t.Error("An unscoped grant must not imply a scoped grant")
	}
}

func TestQueryAttributeAndMembership(t *testing.T) {
	s, sctx := newTestStore(t)
	ctx := context.Background()

	company := model.NewGroup("Company")
	alice := model.NewUser("alice")
	alice.SetAttribute(model.NewAttribute("team", "core", "infra"))
	bob := model.NewUser("bob")
	bob.SetAttribute(model.NewAttribute("team", "core"))
	mustCreate(t, s, sctx, company, alice, bob)

	if err := s.AddToGroup(ctx, sctx, alice, company); err != nil {
		t.Fatal(err)
	}

	q := query.New(model.KindUser).
		Where(query.Attribute("team"), "core").
		Where(query.MemberOf, company)
	results, err := s.ExecuteQuery(ctx, sctx, q)
	if err != nil {
		t.Fatalf("ExecuteQuery failed: %v", err)
	}
	if len(results) != 1 || results[0].Key() != alice.Key() {
		t.Errorf("Expected only alice, got %d results", len(results))
	}
}

func TestQueryHasRoleExcludesScopedGrants(t *testing.T) {
	s, sctx := newTestStore(t)
	ctx := context.Background()

	alice := model.NewUser("alice")
	bob := model.NewUser("bob")
	company := model.NewGroup("Company")
	admin := model.NewRole("admin")
	mustCreate(t, s, sctx, alice, bob, company, admin)

	if err := s.GrantRole(ctx, sctx, alice, admin); err != nil {
		t.Fatal(err)
	}
	if err := s.GrantGroupRole(ctx, sctx, bob, admin, company); err != nil {
		t.Fatal(err)
	}

	q := query.New(model.KindUser).Where(query.HasRole, admin)
	results, err := s.ExecuteQuery(ctx, sctx, q)
	if err != nil {
		t.Fatalf("ExecuteQuery failed: %v", err)
	}
	if len(results) != 1 || results[0].Key() != alice.Key() {
		t.Errorf("Expected only the unscoped holder, got %d results", len(results))
	}
}

func TestPartitionLifecycle(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	realm := model.NewRealm("realm1")
	sctx := store.NewContext(realm, &store.Invocation{})

	if err := s.CreatePartition(ctx, sctx, realm); err != nil {
		t.Fatalf("CreatePartition failed: %v", err)
	}

	mustCreate(t, s, sctx, model.NewUser("alice"))
	if err := s.RemovePartition(ctx, sctx, realm); !errors.Is(err, model.ErrPartitionNotEmpty) {
		t.Errorf("Expected ErrPartitionNotEmpty, got %v", err)
	}

	if err := s.Remove(ctx, sctx, model.NewUser("alice")); err != nil {
		t.Fatal(err)
	}
	if err := s.RemovePartition(ctx, sctx, realm); err != nil {
		t.Errorf("RemovePartition failed on empty partition: %v", err)
	}
}

func TestStoreCredentialReplaces(t *testing.T) {
	s, sctx := newTestStore(t)
	ctx := context.Background()

	alice := model.NewUser("alice")
	mustCreate(t, s, sctx, alice)

	if err := s.StoreCredential(ctx, sctx, alice, "password", []byte("old")); err != nil {
		t.Fatal(err)
	}
	if err := s.StoreCredential(ctx, sctx, alice, "password", []byte("new")); err != nil {
		t.Fatal(err)
	}

	material, err := s.RetrieveCredential(ctx, sctx, alice, "password")
	if err != nil {
		t.Fatalf("RetrieveCredential failed: %v", err)
	}
	if string(material) != "new" {
		t.Errorf("Expected the replacement material, got %q", material)
	}
}
