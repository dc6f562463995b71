package credential

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/idmkit/idmkit/model"
	"github.com/idmkit/idmkit/store"
)

// KindToken identifies signed-token credentials.
const KindToken = "token"

// SignedToken is a JWT presented for validation, or registered as the
// user's current token via update.
type SignedToken struct {
	Token string
}

func (SignedToken) CredentialKind() string { return KindToken }

// TokenHandler validates HMAC-signed JWTs. A user has at most one active
// token at a time: Update registers the token, Validate additionally
// checks the presented token against the registered one, so rotating the
// token invalidates the previous one.
type TokenHandler struct {
	key []byte
}

// NewTokenHandler creates a token handler verifying signatures with the
// given HMAC key.
func NewTokenHandler(key []byte) *TokenHandler {
	return &TokenHandler{key: key}
}

func (h *TokenHandler) Kind() string { return KindToken }

// verify parses the token, checks the HMAC signature and that the subject
// claim matches the user's login.
func (h *TokenHandler) verify(user *model.User, raw string) error {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return h.key, nil
	})
	if err != nil {
		return err
	}

	sub, err := tok.Claims.GetSubject()
	if err != nil {
		return err
	}
	if sub != user.Login() {
		return fmt.Errorf("token subject %q does not match user %q", sub, user.Login())
	}
	return nil
}

// Validate checks signature, subject and expiry, and that the token is the
// user's currently registered one.
func (h *TokenHandler) Validate(ctx context.Context, sctx store.Context, user *model.User, cred Credential, s store.CredentialStore) (bool, error) {
	st, ok := cred.(SignedToken)
	if !ok {
		return false, fmt.Errorf("token handler got %T", cred)
	}

	if err := h.verify(user, st.Token); err != nil {
		return false, nil
	}

	current, err := s.RetrieveCredential(ctx, sctx, user, KindToken)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	return subtle.ConstantTimeCompare(current, []byte(st.Token)) == 1, nil
}

// Update registers the token as the user's current one after verifying it.
func (h *TokenHandler) Update(ctx context.Context, sctx store.Context, user *model.User, cred Credential, s store.CredentialStore) error {
	st, ok := cred.(SignedToken)
	if !ok {
		return fmt.Errorf("token handler got %T", cred)
	}

	if err := h.verify(user, st.Token); err != nil {
		return err
	}

	return s.StoreCredential(ctx, sctx, user, KindToken, []byte(st.Token))
}
