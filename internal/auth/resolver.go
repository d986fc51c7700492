// ABOUTME: Identity resolution from a bearer credential to an active user
// ABOUTME: Any verification or lookup failure collapses to ErrUnauthenticated

package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/2389/support-gateway/internal/store"
)

// ErrUnauthenticated is returned when a credential does not resolve to an
// active user. Callers reject the connection or request.
var ErrUnauthenticated = errors.New("unauthenticated")

// Identity is the resolved caller attached to a connection. It is not
// modified after resolution.
type Identity struct {
	ID                int64
	Email             string
	FirstName         string
	LastName          string
	PreferredLanguage string
	IsSupport         bool
}

// UserLookup is the subset of the store the resolver reads.
type UserLookup interface {
	GetActiveUser(ctx context.Context, id int64) (*store.User, error)
}

// Resolver turns credentials into identities.
type Resolver struct {
	verifier TokenVerifier
	users    UserLookup
	logger   *slog.Logger
}

// NewResolver creates a Resolver. A nil logger uses slog.Default().
func NewResolver(verifier TokenVerifier, users UserLookup, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		verifier: verifier,
		users:    users,
		logger:   logger.With("component", "auth"),
	}
}

// Resolve verifies the credential and loads the user it names.
// The lookup only matches active, non-deleted users in a single read.
func (r *Resolver) Resolve(ctx context.Context, credential string) (*Identity, error) {
	if credential == "" {
		return nil, ErrUnauthenticated
	}

	userID, err := r.verifier.Verify(credential)
	if err != nil {
		r.logger.Debug("credential rejected", "error", err)
		return nil, ErrUnauthenticated
	}

	user, err := r.users.GetActiveUser(ctx, userID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			r.logger.Error("user lookup failed", "user_id", userID, "error", err)
		}
		return nil, ErrUnauthenticated
	}

	return IdentityFromUser(user), nil
}

// IdentityFromUser copies the identity fields out of a stored user.
func IdentityFromUser(u *store.User) *Identity {
	return &Identity{
		ID:                u.ID,
		Email:             u.Email,
		FirstName:         u.FirstName,
		LastName:          u.LastName,
		PreferredLanguage: u.PreferredLanguage,
		IsSupport:         u.IsSupport,
	}
}
