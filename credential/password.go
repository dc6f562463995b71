package credential

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/idmkit/idmkit/model"
	"github.com/idmkit/idmkit/store"
)

// KindPassword identifies plain password credentials.
const KindPassword = "password"

// Password is a plaintext password presented for validation or update.
// Only its bcrypt hash ever reaches a store.
type Password struct {
	Value string
}

func (Password) CredentialKind() string { return KindPassword }

// PasswordHandler validates and updates password credentials using bcrypt.
type PasswordHandler struct {
	cost int
}

// NewPasswordHandler creates a password handler. A cost of 0 selects the
// default of 14.
func NewPasswordHandler(cost int) *PasswordHandler {
	if cost == 0 {
		cost = 14
	}
	return &PasswordHandler{cost: cost}
}

func (h *PasswordHandler) Kind() string { return KindPassword }

// Validate compares the presented password against the stored hash. A user
// without a stored password fails validation without an error.
func (h *PasswordHandler) Validate(ctx context.Context, sctx store.Context, user *model.User, cred Credential, s store.CredentialStore) (bool, error) {
	pw, ok := cred.(Password)
	if !ok {
		return false, fmt.Errorf("password handler got %T", cred)
	}

	hash, err := s.RetrieveCredential(ctx, sctx, user, KindPassword)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	return bcrypt.CompareHashAndPassword(hash, []byte(pw.Value)) == nil, nil
}

// Update hashes the new password and stores the hash, replacing any
// previous one.
func (h *PasswordHandler) Update(ctx context.Context, sctx store.Context, user *model.User, cred Credential, s store.CredentialStore) error {
	pw, ok := cred.(Password)
	if !ok {
		return fmt.Errorf("password handler got %T", cred)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(pw.Value), h.cost)
	if err != nil {
		return err
	}

	return s.StoreCredential(ctx, sctx, user, KindPassword, hash)
}
