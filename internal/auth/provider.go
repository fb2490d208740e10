package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"taxdocs/internal/model"
)

// providerMethods are the asymmetric algorithms accepted from an identity provider.
var providerMethods = []string{"RS256", "ES256", "EdDSA"}

// ProviderVerifier verifies ID tokens minted by an external identity provider.
// The signing key is chosen by the token's "kid" header from a KeySource.
type ProviderVerifier struct {
	issuer   string
	audience string
	keys     KeySource
	now      func() time.Time
}

// NewProviderVerifier creates a ProviderVerifier for one issuer/audience pair.
func NewProviderVerifier(issuer, audience string, keys KeySource) *ProviderVerifier {
	return &ProviderVerifier{issuer: issuer, audience: audience, keys: keys, now: time.Now}
}

// Issuer returns the issuer this verifier accepts.
func (v *ProviderVerifier) Issuer() string {
	return v.issuer
}

// Verify implements Verifier. Key lookup failures, including an unreachable
// provider, are reported as ErrInvalidToken.
func (v *ProviderVerifier) Verify(ctx context.Context, token string) (model.Identity, error) {
	var claims roleClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("token has no kid header")
		}
		return v.keys.Key(ctx, kid)
	},
		jwt.WithValidMethods(providerMethods),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return model.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims.identity()
}
