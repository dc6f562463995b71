package credential

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/idmkit/idmkit/model"
	"github.com/idmkit/idmkit/store"
)

// fakeCredentialStore keeps material in memory and counts accesses.
type fakeCredentialStore struct {
	store.Unsupported
	material map[string][]byte
	calls    int
}

func newFakeCredentialStore() *fakeCredentialStore {
	return &fakeCredentialStore{material: make(map[string][]byte)}
}

func (f *fakeCredentialStore) StoreCredential(ctx context.Context, sctx store.Context, user *model.User, kind string, material []byte) error {
	f.calls++
	f.material[user.Key()+"|"+kind] = material
	return nil
}

func (f *fakeCredentialStore) RetrieveCredential(ctx context.Context, sctx store.Context, user *model.User, kind string) ([]byte, error) {
	f.calls++
	m, ok := f.material[user.Key()+"|"+kind]
	if !ok {
		return nil, model.ErrNotFound
	}
	return m, nil
}

func TestRegistryUnknownKind(t *testing.T) {
	r := NewRegistry()

	_, err := r.Handler("fingerprint")
	if !errors.Is(err, model.ErrUnsupportedCredentialType) {
		t.Errorf("Expected ErrUnsupportedCredentialType, got %v", err)
	}
}

func TestRegistryRegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	r.Register(NewPasswordHandler(4))

	h, err := r.Handler(KindPassword)
	if err != nil {
		t.Fatalf("Handler lookup failed: %v", err)
	}
	if h.Kind() != KindPassword {
		t.Errorf("Expected password handler, got %s", h.Kind())
	}
}

func TestPasswordUpdateAndValidate(t *testing.T) {
	h := NewPasswordHandler(4) // low cost to keep the test fast
	s := newFakeCredentialStore()
	sctx := store.NewContext(model.DefaultRealm(), nil)
	alice := model.NewUser("alice")

	if err := h.Update(context.Background(), sctx, alice, Password{Value: "s3cret"}, s); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	ok, err := h.Validate(context.Background(), sctx, alice, Password{Value: "s3cret"}, s)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if !ok {
		t.Error("Correct password should validate")
	}

	ok, err = h.Validate(context.Background(), sctx, alice, Password{Value: "wrong"}, s)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if ok {
		t.Error("Wrong password should not validate")
	}
}

func TestPasswordStoresHashNotPlaintext(t *testing.T) {
	h := NewPasswordHandler(4)
	s := newFakeCredentialStore()
	sctx := store.NewContext(model.DefaultRealm(), nil)
	alice := model.NewUser("alice")

	if err := h.Update(context.Background(), sctx, alice, Password{Value: "s3cret"}, s); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	stored := s.material[alice.Key()+"|"+KindPassword]
	if string(stored) == "s3cret" {
		t.Error("Plaintext password must never be persisted")
	}
}

func TestPasswordValidateWithoutStoredCredential(t *testing.T) {
	h := NewPasswordHandler(4)
	s := newFakeCredentialStore()
	sctx := store.NewContext(model.DefaultRealm(), nil)

	ok, err := h.Validate(context.Background(), sctx, model.NewUser("ghost"), Password{Value: "x"}, s)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if ok {
		t.Error("User without a stored password should not validate")
	}
}

func mintToken(t *testing.T, key []byte, subject string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": subject,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := tok.SignedString(key)
	if err != nil {
		t.Fatalf("Signing token failed: %v", err)
	}
	return signed
}

func TestTokenUpdateAndValidate(t *testing.T) {
	key := []byte("0123456789abcdef")
	h := NewTokenHandler(key)
	s := newFakeCredentialStore()
	sctx := store.NewContext(model.DefaultRealm(), nil)
	alice := model.NewUser("alice")

	raw := mintToken(t, key, "alice")
	if err := h.Update(context.Background(), sctx, alice, SignedToken{Token: raw}, s); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	ok, err := h.Validate(context.Background(), sctx, alice, SignedToken{Token: raw}, s)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if !ok {
		t.Error("Registered token should validate")
	}
}

func TestTokenRotationInvalidatesPrevious(t *testing.T) {
	key := []byte("0123456789abcdef")
	h := NewTokenHandler(key)
	s := newFakeCredentialStore()
	sctx := store.NewContext(model.DefaultRealm(), nil)
	alice := model.NewUser("alice")

	first := mintToken(t, key, "alice")
	if err := h.Update(context.Background(), sctx, alice, SignedToken{Token: first}, s); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	// Tokens issued in the same second can be byte-identical; force a
	// different exp claim.
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "alice",
		"exp": time.Now().Add(2 * time.Hour).Unix(),
	})
	second, err := tok.SignedString(key)
	if err != nil {
		t.Fatalf("Signing token failed: %v", err)
	}
	if err := h.Update(context.Background(), sctx, alice, SignedToken{Token: second}, s); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	ok, err := h.Validate(context.Background(), sctx, alice, SignedToken{Token: first}, s)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if ok {
		t.Error("Rotated-out token should no longer validate")
	}
}

func TestTokenSubjectMismatch(t *testing.T) {
	key := []byte("0123456789abcdef")
	h := NewTokenHandler(key)
	s := newFakeCredentialStore()
	sctx := store.NewContext(model.DefaultRealm(), nil)

	raw := mintToken(t, key, "bob")
	err := h.Update(context.Background(), sctx, model.NewUser("alice"), SignedToken{Token: raw}, s)
	if err == nil {
		t.Error("Registering a token for a different subject should fail")
	}
	if s.calls != 0 {
		t.Error("Failed update should not touch the store")
	}
}
