package utils

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var sessionSecret = []byte("change-me-in-production")

type SessionClaims struct {
	SessionID string `json:"sessionID"`
	jwt.RegisteredClaims
}

func ConfigureSessionSigning(secret string) {
	if secret != "" {
		sessionSecret = []byte(secret)
	}
}

// SignSessionToken wraps a session row id into a signed bearer token.
// Expiry here is advisory; the session row decides authoritatively.
func SignSessionToken(sessionID string, expiresAt time.Time) (string, error) {
	claims := SessionClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Subject:   sessionID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(sessionSecret)
}

func ParseSessionToken(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return sessionSecret, nil
	})
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("invalid token")
	}

	return claims.SessionID, nil
}
