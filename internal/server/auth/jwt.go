// Package auth mints and parses the two token shapes used by the service:
// bearer identity tokens resolving to an authenticated subject, and
// short-lived session tokens proving a completed pin or device verification.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"sharegate/internal/common"
)

// IdentityClaims carry the stable subject identifier of an authenticated
// caller. Token internals beyond the subject are irrelevant to the share
// protocol.
type IdentityClaims struct {
	jwt.RegisteredClaims
	UserID string
}

// SessionClaims bind a single-use session row (via ID/jti) to the share and
// subject it was minted for.
type SessionClaims struct {
	jwt.RegisteredClaims
	ShareID string
	Subject string
}

// GenerateIdentityToken signs an HS256 identity token for userID.
func GenerateIdentityToken(userID string, secretKey []byte, validityDuration time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, IdentityClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validityDuration)),
		},
		UserID: userID,
	})

	return token.SignedString(secretKey)
}

// GetUserIDFromToken validates an identity token and returns its subject id.
func GetUserIDFromToken(tokenString string, secretKey []byte) (string, error) {
	claims := &IdentityClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	})
	if err != nil {
		return "", err
	}

	if !token.Valid {
		return "", common.ErrInvalidToken
	}

	return claims.UserID, nil
}

// GenerateSessionToken signs an HS256 token whose ID claim is the session
// row id; consuming the row is what makes the token single-use.
func GenerateSessionToken(sessionID, shareID, subject string, secretKey []byte, validityDuration time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validityDuration)),
		},
		ShareID: shareID,
		Subject: subject,
	})

	return token.SignedString(secretKey)
}

// ParseSessionToken validates a session token and returns its claims.
// Expired or malformed tokens map to ErrSessionInvalidOrExpired so callers
// never have to inspect jwt internals.
func ParseSessionToken(tokenString string, secretKey []byte) (*SessionClaims, error) {
	claims := &SessionClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	})
	if err != nil {
		return nil, common.ErrSessionInvalidOrExpired
	}

	if !token.Valid || claims.ID == "" {
		return nil, common.ErrSessionInvalidOrExpired
	}

	return claims, nil
}
