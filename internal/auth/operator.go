package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidOperatorKey = errors.New("invalid operator key")
	ErrWeakOperatorKey    = errors.New("operator key must be at least 16 characters")
	ErrNoOperatorKey      = errors.New("no operator key hash configured")
)

// HashOperatorKey returns the bcrypt hash stored in configuration.
func HashOperatorKey(key string) (string, error) {
	if len(key) < 16 {
		return "", ErrWeakOperatorKey
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash operator key: %w", err)
	}
	return string(hash), nil
}

// VerifyOperatorKey checks key against a hash produced by HashOperatorKey.
func VerifyOperatorKey(hash, key string) error {
	if hash == "" {
		return ErrNoOperatorKey
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)); err != nil {
		return ErrInvalidOperatorKey
	}
	return nil
}
