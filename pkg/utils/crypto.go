package utils

import (
	"crypto/rand"
	"encoding/hex"

	"golang.org/x/crypto/bcrypt"
)

// HashAuthenticationKey bcrypt-hashes the client-derived
// authentication key. The server never sees the account password
// itself, only this derived key.
func HashAuthenticationKey(authenticationKey string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(authenticationKey), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func CheckAuthenticationKey(authenticationKey, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(authenticationKey)) == nil
}

// RandomHex returns n crypto-random bytes hex-encoded (2n characters).
func RandomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
