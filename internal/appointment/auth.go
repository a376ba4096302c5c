package appointment

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// IdentityClaims represents the JWT claims carried by portal access tokens
type IdentityClaims struct {
	Identity string `json:"identity"`
	jwt.RegisteredClaims
}

// TokenValidator implements JWT token validation for the push channel
type TokenValidator struct {
	jwtSecret []byte
	issuer    string
}

// NewTokenValidator creates a new token validator
func NewTokenValidator(secret, issuer string) *TokenValidator {
	return &TokenValidator{
		jwtSecret: []byte(secret),
		issuer:    issuer,
	}
}

// ValidateToken validates a JWT token and returns the identity it asserts
func (tv *TokenValidator) ValidateToken(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &IdentityClaims{}, func(token *jwt.Token) (interface{}, error) {
		// Validate signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return tv.jwtSecret, nil
	})

	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(*IdentityClaims)
	if !ok {
		return "", fmt.Errorf("invalid token claims")
	}

	if claims.ExpiresAt != nil && claims.ExpiresAt.Time.Before(time.Now()) {
		return "", fmt.Errorf("token expired")
	}

	if tv.issuer != "" && claims.Issuer != tv.issuer {
		return "", fmt.Errorf("unexpected token issuer: %s", claims.Issuer)
	}

	identity := claims.Identity
	if identity == "" {
		identity = claims.Subject
	}
	if identity == "" {
		return "", fmt.Errorf("token carries no identity")
	}

	return identity, nil
}

// IssueToken generates a signed access token for identity. Used by tests and
// local tooling; production tokens come from the IAM service.
func (tv *TokenValidator) IssueToken(identity string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &IdentityClaims{
		Identity: identity,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    tv.issuer,
			Subject:   identity,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tv.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}
