package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"taxdocs/internal/model"
)

// LocalVerifier issues and verifies HS256 session tokens signed with a shared secret.
type LocalVerifier struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewLocalVerifier creates a LocalVerifier. An empty issuer disables the iss check.
func NewLocalVerifier(secret []byte, issuer string, ttl time.Duration) *LocalVerifier {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &LocalVerifier{secret: secret, issuer: issuer, ttl: ttl, now: time.Now}
}

// Issue mints a session token for id. The login collaborator calls this after
// checking the user's password.
func (v *LocalVerifier) Issue(id model.Identity) (string, error) {
	if id.ID == "" {
		return "", errors.New("identity id is required")
	}
	if !model.ValidPathSegment(id.ID) {
		return "", fmt.Errorf("identity id %q is not a usable owner id", id.ID)
	}
	now := v.now()
	claims := roleClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.ID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(v.ttl)),
		},
		Role: string(id.Role),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify implements Verifier.
func (v *LocalVerifier) Verify(_ context.Context, token string) (model.Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	var claims roleClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return model.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims.identity()
}
