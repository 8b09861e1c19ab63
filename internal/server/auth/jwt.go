// Package auth issues and verifies editor tokens for the catalog's write
// surface.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/cartographer/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the standard claims plus the editor's name.
type Claims struct {
	jwt.RegisteredClaims
	Editor string `json:"editor"`
}

// GenerateToken signs an HS256 token for editor valid for validityDuration.
func GenerateToken(editor string, secretKey []byte, validityDuration time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validityDuration)),
			Subject:   editor,
		},
		Editor: editor,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// GetEditorFromToken verifies tokenString and returns the editor it names.
// Expired tokens return common.ErrTokenExpired; anything else that fails
// verification returns an error wrapping common.ErrInvalidToken.
func GetEditorFromToken(tokenString string, secretKey []byte) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", common.ErrTokenExpired
		}
		return "", fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}

	if !token.Valid || claims.Editor == "" {
		return "", common.ErrInvalidToken
	}

	return claims.Editor, nil
}
