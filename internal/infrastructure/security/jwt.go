// Package security provides JWT token utilities
package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// HookScope is the scope claim required on mutation hook tokens.
const HookScope = "hooks"

// ValidateJWT validates an HS256 token and returns the claims
func ValidateJWT(tokenString, jwtSecret string) (jwt.MapClaims, error) {
	if jwtSecret == "" {
		return nil, errors.New("no signing secret configured")
	}
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(jwtSecret), nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}

// GenerateHookToken creates a token the CMS presents when calling the
// mutation hooks. A zero ttl produces a token without expiry.
func GenerateHookToken(secret, subject string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("no signing secret configured")
	}
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub":   subject,
		"scope": HookScope,
		"jti":   GenerateULID(),
		"iat":   now.Unix(),
	}
	if ttl > 0 {
		claims["exp"] = now.Add(ttl).Unix()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign hook token: %w", err)
	}
	return signed, nil
}

// HasHookScope reports whether claims grant access to the hook endpoints.
func HasHookScope(claims jwt.MapClaims) bool {
	scope, _ := claims["scope"].(string)
	return scope == HookScope
}
