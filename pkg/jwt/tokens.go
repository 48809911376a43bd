package jwt

import (
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// SessionClaims defines the dashboard session payload.
type SessionClaims struct {
	Role string `json:"role"`
	jwtlib.RegisteredClaims
}

// GenerateSession issues a signed session token with the provided secret and ttl.
func GenerateSession(role, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		Role: role,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Issuer:    "draftline",
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseSession validates and extracts claims from a session token.
func ParseSession(token string, secret string) (*SessionClaims, error) {
	parsed, err := jwtlib.ParseWithClaims(token, &SessionClaims{}, func(t *jwtlib.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Name}))
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*SessionClaims)
	if !ok || !parsed.Valid {
		return nil, jwtlib.ErrTokenInvalidClaims
	}
	return claims, nil
}
