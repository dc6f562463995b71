package idmkit_test

import (
	"context"
	"errors"
	"testing"

	"github.com/idmkit/idmkit"
	"github.com/idmkit/idmkit/config"
	"github.com/idmkit/idmkit/credential"
	"github.com/idmkit/idmkit/model"
	"github.com/idmkit/idmkit/query"
	"github.com/idmkit/idmkit/router"
	"github.com/idmkit/idmkit/store"

	_ "github.com/idmkit/idmkit/store/memstore"
)

func newManager(t *testing.T, opts ...idmkit.Option) *idmkit.Manager {
	t.Helper()
	cfg := config.Default()
	cfg.LogLevel = ""
	cfg.BcryptCost = 4
	cfg.TokenKey = "test-signing-key"
	m, err := idmkit.Bootstrap(cfg, opts...)
	if err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}
	return m
}

func mustAdd(t *testing.T, m *idmkit.Manager, ids ...model.IdentityType) {
	t.Helper()
	for _, id := range ids {
		if err := m.Add(context.Background(), id); err != nil {
			t.Fatalf("Add %s failed: %v", id.Key(), err)
		}
	}
}

func TestGroupHierarchyScenario(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)

	if _, err := m.CreateRealm(ctx, "realm1"); err != nil {
		t.Fatalf("CreateRealm failed: %v", err)
	}
	h := m.ForRealm("realm1")

	company := model.NewGroup("Company")
	admins := model.NewChildGroup("Administrators", company)
	mustAdd(t, h, company, admins)

	if company.Key() != "GROUP:///Company" {
		t.Errorf("Expected GROUP:///Company, got %s", company.Key())
	}
	if admins.Key() != "GROUP:///Company/Administrators" {
		t.Errorf("Expected GROUP:///Company/Administrators, got %s", admins.Key())
	}

	got, err := h.GetGroup(ctx, "Administrators")
	if err != nil {
		t.Fatalf("GetGroup failed: %v", err)
	}
	if got.ParentGroup() == nil || got.ParentGroup().Name() != "Company" {
		t.Error("Expected parent group Company")
	}

	if company.Partition() == nil || company.Partition().Name() != "realm1" {
		t.Error("Add should bind the identity to the handle's partition")
	}
}

func TestGetGroupWithWrongParent(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)

	parent := model.NewGroup("Test Parent Group")
	child := model.NewChildGroup("Test Group", parent)
	mustAdd(t, m, parent, child)

	_, err := m.GetGroupWithParent(ctx, "Test Group", model.NewGroup("Wrong Parent"))
	if !errors.Is(err, model.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for wrong parent, got %v", err)
	}

	got, err := m.GetGroup(ctx, "Test Group")
	if err != nil {
		t.Fatalf("GetGroup failed: %v", err)
	}
	if got.ParentGroup().Name() != "Test Parent Group" {
		t.Error("Name-only lookup should return the stored parent chain")
	}
}

func TestScopedGrantDoesNotImplyUnscoped(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)

	alice := model.NewUser("alice")
	company := model.NewGroup("Company")
	admin := model.NewRole("admin")
	mustAdd(t, m, alice, company, admin)

	if err := m.GrantGroupRole(ctx, alice, admin, company); err != nil {
		t.Fatalf("GrantGroupRole failed: %v", err)
	}

	if ok, err := m.HasGroupRole(ctx, alice, admin, company); err != nil || !ok {
		t.Errorf("Expected scoped grant to hold (ok=%v, err=%v)", ok, err)
	}
	if ok, err := m.HasRole(ctx, alice, admin); err != nil || ok {
		t.Errorf("Scoped grant must not imply unscoped (ok=%v, err=%v)", ok, err)
	}
}

func TestRemoveGroupCascades(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)

	alice := model.NewUser("alice")
	company := model.NewGroup("Company")
	admin := model.NewRole("admin")
	mustAdd(t, m, alice, company, admin)

	if err := m.AddToGroup(ctx, alice, company); err != nil {
		t.Fatal(err)
	}
	if err := m.GrantGroupRole(ctx, alice, admin, company); err != nil {
		t.Fatal(err)
	}

	if err := m.Remove(ctx, company); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	if ok, _ := m.IsMember(ctx, alice, company); ok {
		t.Error("Membership should not survive group removal")
	}
	if ok, _ := m.HasGroupRole(ctx, alice, admin, company); ok {
		t.Error("Group role should not survive group removal")
	}
	if _, err := m.LookupIdentityByKey(ctx, company.Key()); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("Expected ErrNotFound after removal, got %v", err)
	}
}

func TestUpdatePreservesNameAndParent(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)

	company := model.NewGroup("Company")
	mustAdd(t, m, company)

	upd := model.NewGroup("Company")
	upd.SetEnabled(false)
	upd.SetAttribute(model.NewAttribute("location", "HQ"))
	if err := m.UpdateGroup(ctx, upd); err != nil {
		t.Fatalf("UpdateGroup failed: %v", err)
	}

	got, err := m.GetGroup(ctx, "Company")
	if err != nil {
		t.Fatalf("GetGroup failed: %v", err)
	}
	if got.Name() != "Company" || got.ParentGroup() != nil {
		t.Error("Update must preserve name and parent")
	}
	if got.Enabled() {
		t.Error("Enabled flag should have been updated")
	}

	attr, err := m.LoadAttribute(ctx, got, "location")
	if err != nil {
		t.Fatalf("LoadAttribute failed: %v", err)
	}
	if attr.Value() != "HQ" {
		t.Errorf("Expected HQ, got %v", attr.Value())
	}
}

func TestQueryMemberOfMatchesIsMember(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)

	company := model.NewGroup("Company")
	alice := model.NewUser("alice")
	bob := model.NewUser("bob")
	mustAdd(t, m, company, alice, bob)

	if err := m.AddToGroup(ctx, alice, company); err != nil {
		t.Fatal(err)
	}

	q := m.CreateQuery(model.KindUser).Where(query.MemberOf, company)
	results, err := m.ExecuteQuery(ctx, q)
	if err != nil {
		t.Fatalf("ExecuteQuery failed: %v", err)
	}

	matched := make(map[string]bool)
	for _, r := range results {
		matched[r.Key()] = true
	}
	for _, u := range []*model.User{alice, bob} {
		want, err := m.IsMember(ctx, u, company)
		if err != nil {
			t.Fatal(err)
		}
		if matched[u.Key()] != want {
			t.Errorf("Query and IsMember disagree for %s", u.Key())
		}
	}
}

func TestQueryValidationRejectsBeforeStore(t *testing.T) {
	ctx := context.Background()
	factory := &countingFactory{}
	m := newManager(t, idmkit.WithStoreFactory(factory))

	q := m.CreateQuery(model.KindRole).Where(query.MemberOf, model.NewGroup("Company"))
	_, err := m.ExecuteQuery(ctx, q)
	if !errors.Is(err, model.ErrInvalidQueryParameter) {
		t.Fatalf("Expected ErrInvalidQueryParameter, got %v", err)
	}
	if factory.resolves != 0 {
		t.Errorf("Structural validation must not resolve a store, got %d calls", factory.resolves)
	}
}

func TestValidateCredentialUnknownKind(t *testing.T) {
	ctx := context.Background()
	factory := &countingFactory{}
	m := newManager(t, idmkit.WithStoreFactory(factory))

	_, err := m.ValidateCredential(ctx, model.NewUser("alice"), apiKey{})
	if !errors.Is(err, model.ErrUnsupportedCredentialType) {
		t.Fatalf("Expected ErrUnsupportedCredentialType, got %v", err)
	}
	if factory.resolves != 0 {
		t.Errorf("Unknown credential kind must not touch a store, got %d resolves", factory.resolves)
	}
}

func TestPasswordRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)

	alice := model.NewUser("alice")
	mustAdd(t, m, alice)

	if err := m.UpdateCredential(ctx, alice, credential.Password{Value: "s3cret"}); err != nil {
		t.Fatalf("UpdateCredential failed: %v", err)
	}

	if ok, err := m.ValidateCredential(ctx, alice, credential.Password{Value: "s3cret"}); err != nil || !ok {
		t.Errorf("Expected the right password to validate (ok=%v, err=%v)", ok, err)
	}
	if ok, err := m.ValidateCredential(ctx, alice, credential.Password{Value: "wrong"}); err != nil || ok {
		t.Errorf("Expected the wrong password to fail (ok=%v, err=%v)", ok, err)
	}
}

func TestPartitionHandlesAreIndependent(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)

	a := m.ForRealm("a")
	b := m.ForRealm("b")

	alice := model.NewUser("alice")
	mustAdd(t, a, alice)

	if _, err := b.GetUser(ctx, "alice"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("Identity should not be visible from another realm, got %v", err)
	}
	if _, err := a.GetUser(ctx, "alice"); err != nil {
		t.Errorf("Identity should stay visible from its own realm, got %v", err)
	}
	if m.CurrentPartition().Name() != config.Default().DefaultRealm {
		t.Error("ForRealm must not mutate the original handle")
	}
}

func TestRemoveRealmWhileOccupied(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)

	if _, err := m.CreateRealm(ctx, "crowded"); err != nil {
		t.Fatal(err)
	}
	h := m.ForRealm("crowded")
	mustAdd(t, h, model.NewUser("alice"))

	if err := m.RemoveRealm(ctx, "crowded"); !errors.Is(err, model.ErrPartitionNotEmpty) {
		t.Errorf("Expected ErrPartitionNotEmpty, got %v", err)
	}

	if err := h.Remove(ctx, model.NewUser("alice")); err != nil {
		t.Fatal(err)
	}
	if err := m.RemoveRealm(ctx, "crowded"); err != nil {
		t.Errorf("RemoveRealm failed on empty realm: %v", err)
	}
}

func TestTierLifecycle(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)

	tier, err := m.CreateTier(ctx, "")
	if err != nil {
		t.Fatalf("CreateTier failed: %v", err)
	}
	if tier.Name() == "" {
		t.Fatal("An empty tier id should be generated")
	}

	got, err := m.GetTier(ctx, tier.Name())
	if err != nil {
		t.Fatalf("GetTier failed: %v", err)
	}
	if got.Key() != tier.Key() {
		t.Errorf("Expected %s, got %s", tier.Key(), got.Key())
	}

	h := m.ForTier(tier.Name())
	mustAdd(t, h, model.NewRole("auditor"))
	if _, err := h.GetRole(ctx, "auditor"); err != nil {
		t.Errorf("GetRole in tier failed: %v", err)
	}
}

func TestCapabilityGapSurfacesUnsupported(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, idmkit.WithStoreFactory(&crudOnlyFactory{}))

	q := m.CreateQuery(model.KindUser).Where(query.Enabled, true)
	_, err := m.ExecuteQuery(ctx, q)
	if !errors.Is(err, model.ErrUnsupportedOperation) {
		t.Errorf("Expected ErrUnsupportedOperation, got %v", err)
	}
}

// --- test doubles ---

type apiKey struct{}

func (apiKey) CredentialKind() string { return "api-key" }

type countingFactory struct {
	resolves int
}

func (f *countingFactory) Resolve(p model.Partition, cap store.Capability) (store.IdentityStore, error) {
	f.resolves++
	return nil, model.ErrNoStoreConfigured
}

func (f *countingFactory) Invalidate() {}

var _ router.StoreFactory = (*countingFactory)(nil)

type crudOnlyStore struct {
	store.Unsupported
}

func (crudOnlyStore) Capabilities() store.CapabilitySet {
	return store.Capabilities(store.CapCRUD)
}

type crudOnlyFactory struct{}

func (crudOnlyFactory) Resolve(p model.Partition, cap store.Capability) (store.IdentityStore, error) {
	s := crudOnlyStore{}
	if !s.Capabilities().Has(cap) {
		return nil, model.ErrUnsupportedOperation
	}
	return s, nil
}

func (crudOnlyFactory) Invalidate() {}
