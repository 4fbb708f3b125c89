package utils

import (
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// GenerateID returns a random (v4) UUID string.
func GenerateID() string {
	return uuid.NewString()
}

// ParseUserID accepts any form uuid.Parse does (braced, urn:uuid:, hyphenless,
// any case) and returns the lowercase hyphenated form used as the store key.
func ParseUserID(id string) (string, bool) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", false
	}
	return parsed.String(), true
}

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPassword checks if a password matches a hash
func CheckPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
