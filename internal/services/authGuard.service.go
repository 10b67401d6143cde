package services

import (
	"context"
	"net/http"
	"time"

	"ineed/internal/apperrors"
	. "ineed/internal/models"
	"ineed/internal/repositories"

	logger "github.com/Bparsons0904/goLogger"
	"github.com/golang-jwt/jwt/v5"
)

type IdentityVerifier interface {
	VerifyIdentity(ctx context.Context, role Role) (Identity, error)
}

// AuthGuard turns stored credentials of a role into a verified identity. Each role
// is guarded independently.
type AuthGuard struct {
	verifier    IdentityVerifier
	credentials repositories.CredentialRepository
	now         func() time.Time
	log         logger.Logger
}

func NewAuthGuard(verifier IdentityVerifier, credentials repositories.CredentialRepository) *AuthGuard {
	return &AuthGuard{
		verifier:    verifier,
		credentials: credentials,
		now:         time.Now,
		log:         logger.New("AuthGuard"),
	}
}

func (g *AuthGuard) SignIn(ctx context.Context, role Role, credentials Credentials) error {
	if credentials.AccessToken == "" {
		return apperrors.Validation("Access token is required", map[string]string{"accessToken": "This field is required"})
	}
	return g.credentials.Save(ctx, role, credentials)
}

func (g *AuthGuard) SignOut(ctx context.Context, role Role) error {
	return g.credentials.Delete(ctx, role)
}

// Verify asks the API who the stored credentials belong to. An access token that
// is a JWT already past its expiry, with no refresh token to rotate it, fails
// without a network call.
func (g *AuthGuard) Verify(ctx context.Context, role Role) (Identity, error) {
	log := g.log.TraceFromContext(ctx).Function("Verify")

	credentials, ok, err := g.credentials.Get(ctx, role)
	if err != nil {
		return Identity{}, err
	}
	if !ok || credentials.AccessToken == "" {
		return Identity{}, apperrors.New(apperrors.KindAuth, apperrors.CodeNoSession, "Not signed in")
	}

	if g.expired(credentials.AccessToken) && credentials.RefreshToken == "" {
		log.Info("Access token expired", "role", role)
		return Identity{}, &apperrors.AppError{
			Kind:    apperrors.KindAuth,
			Code:    apperrors.CodeTokenExpired,
			Message: "Session expired",
			Status:  http.StatusUnauthorized,
		}
	}

	identity, err := g.verifier.VerifyIdentity(ctx, role)
	if err != nil {
		return Identity{}, err
	}

	log.Info("Identity verified", "identity", identity.Key())
	return identity, nil
}

// expired reports whether token is a JWT whose exp claim has passed. Opaque
// tokens are left for the server to judge.
func (g *AuthGuard) expired(token string) bool {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	return claims.ExpiresAt != nil && claims.ExpiresAt.Before(g.now())
}
