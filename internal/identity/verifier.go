package identity

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
)

// Verifier validates access tokens locally against the project's JWKS
type Verifier struct {
	verifier *oidc.IDTokenVerifier
}

// accessTokenAudience is the audience the service puts on user tokens
const accessTokenAudience = "authenticated"

// NewVerifier builds a verifier for tokens issued by <baseURL>/auth/v1. Keys
// are fetched lazily and cached by the key set.
func NewVerifier(ctx context.Context, baseURL string) *Verifier {
	issuer := baseURL + "/auth/v1"
	keySet := oidc.NewRemoteKeySet(ctx, issuer+"/.well-known/jwks.json")
	return &Verifier{
		verifier: oidc.NewVerifier(issuer, keySet, &oidc.Config{
			ClientID:             accessTokenAudience,
			SupportedSigningAlgs: []string{oidc.RS256, oidc.ES256},
		}),
	}
}

// Verify checks signature, issuer, audience and expiry and returns the user
// carried in the claims
func (v *Verifier) Verify(ctx context.Context, accessToken string) (*User, error) {
	token, err := v.verifier.Verify(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	var claims struct {
		Subject      string         `json:"sub"`
		Email        string         `json:"email"`
		UserMetadata map[string]any `json:"user_metadata"`
	}
	if err := token.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to parse access token claims: %w", err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("access token has no subject")
	}

	return &User{ID: claims.Subject, Email: claims.Email, UserMetadata: claims.UserMetadata}, nil
}
