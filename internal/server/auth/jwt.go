// Package auth issues and verifies the HS256 tokens carrying a caller's UID.
// The token is only a transport for identity; the admin decision itself is
// made by the moderation service against the configured administrator UID.
package auth

import (
	"fmt"
	"time"

	"github.com/arbolado/treeregistry/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims includes the registered claims plus the caller UID.
type Claims struct {
	jwt.RegisteredClaims
	UID string
}

// GenerateToken signs a token carrying uid, valid for validityDuration.
func GenerateToken(uid string, secretKey []byte, validityDuration time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validityDuration)),
		},
		UID: uid,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// GetUIDFromToken parses and verifies tokenString and returns the UID claim.
func GetUIDFromToken(tokenString string, secretKey []byte) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}

	if !token.Valid {
		return "", common.ErrInvalidToken
	}

	return claims.UID, nil
}
