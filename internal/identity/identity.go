// Package identity signs users in and carries the current identity through
// request contexts.
package identity

import (
	"context"
	"errors"
)

var (
	// ErrInvalidCredentials hides whether the account or the password was wrong
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrAlreadyExists indicates the email is taken
	ErrAlreadyExists = errors.New("account already exists")

	// ErrNotFound indicates the account does not exist
	ErrNotFound = errors.New("account not found")

	// ErrRateLimited indicates too many sign-in attempts from one address
	ErrRateLimited = errors.New("too many sign-in attempts")

	// ErrInvalidToken covers malformed, expired and revoked session tokens
	ErrInvalidToken = errors.New("invalid session token")

	// ErrInvalidInput rejects a registration before anything is stored
	ErrInvalidInput = errors.New("invalid registration")

	// ErrUnknownProvider indicates a federated provider with no configured secret
	ErrUnknownProvider = errors.New("unknown identity provider")
)

// Identity is the signed-in user a request acts for
type Identity struct {
	OwnerID   string `json:"owner_id"`
	SessionID string `json:"session_id"`
	Email     string `json:"email,omitempty"`
	Provider  string `json:"provider"`
}

type ctxKey string

const identityKey ctxKey = "warranty.identity"

// WithIdentity stores the authenticated identity in ctx
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// FromContext fetches the identity stored by WithIdentity
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}
