// Package credential decouples what kind of credential a user presents
// from which store persists it. A registry maps a credential kind to a
// handler; handlers receive the resolved store so they can read and write
// credential material without knowing which backend is active. Validation
// policy (hashing, token verification) lives entirely in the handlers.
package credential

import (
	"context"

	"github.com/idmkit/idmkit/model"
	"github.com/idmkit/idmkit/store"
)

// Credential is a piece of material presented for validation or update.
type Credential interface {
	// CredentialKind names the handler responsible for this credential.
	CredentialKind() string
}

// Handler implements the validation and update policy for one credential
// kind. The store passed in persists only opaque material; its shape is
// owned by the handler.
type Handler interface {
	Kind() string
	Validate(ctx context.Context, sctx store.Context, user *model.User, cred Credential, s store.CredentialStore) (bool, error)
	Update(ctx context.Context, sctx store.Context, user *model.User, cred Credential, s store.CredentialStore) error
}
