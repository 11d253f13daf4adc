// Package auth implements issuing and verifying the signed identity tokens
// carried inside server-side sessions.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// TokenTTL is the token lifetime. There is no refresh mechanism; after
	// expiry the user must authenticate again.
	TokenTTL = time.Hour

	issuer   = "socialdb-api"
	audience = "socialdb-client"
)

// ErrInvalidToken is returned for any token that fails verification, whether
// malformed, tampered with, or expired.
var ErrInvalidToken = errors.New("invalid or expired token")

// Claims is the identity payload embedded in every issued token.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// UserID returns the numeric user ID from the subject claim.
func (c *Claims) UserID() (uint, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 32)
	if err != nil || id == 0 {
		return 0, ErrInvalidToken
	}
	return uint(id), nil
}

// TokenService issues and verifies HS256-signed identity tokens.
type TokenService struct {
	secret []byte
}

// NewTokenService creates a TokenService signing with the given shared secret.
func NewTokenService(secret string) (*TokenService, error) {
	if secret == "" {
		return nil, errors.New("JWT secret not configured")
	}
	return &TokenService{secret: []byte(secret)}, nil
}

// Issue produces a signed token embedding the user's identity, valid for
// TokenTTL from now.
func (ts *TokenService) Issue(userID uint, username string) (string, error) {
	now := time.Now()
	claims := Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			Issuer:    issuer,
			Audience:  jwt.ClaimStrings{audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(ts.secret)
}

// Verify checks the signature, issuer, audience, and validity window of the
// given token and returns its claims. Every failure is reported as
// ErrInvalidToken; callers have no reason to distinguish them.
func (ts *TokenService) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithAudience(audience))

	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
