package store

import (
	"crypto/subtle"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

func HashCredential(plain string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func IsCredentialHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}

// CredentialMatches reports whether input matches stored. Legacy rows that were
// saved in plain text match only by exact comparison.
func CredentialMatches(stored string, input string) bool {
	if stored == "" || input == "" {
		return false
	}
	if !IsCredentialHash(stored) {
		return subtle.ConstantTimeCompare([]byte(stored), []byte(input)) == 1
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(input)) == nil
}
