package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

const (
	// DefaultBcryptCost matches the reference deployment; overridable via config.
	DefaultBcryptCost = 10

	RefreshTokenLength = 64
	ResetTokenLength   = 32

	MinPasswordLen = 8
	MaxPasswordLen = 128
)

// tokenAlphabet is the 62-symbol alphabet used for all opaque tokens.
const tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// HashPassword hashes a password with bcrypt at the given cost.
// A cost of 0 falls back to DefaultBcryptCost.
func HashPassword(password string, cost int) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	if cost == 0 {
		cost = DefaultBcryptCost
	}
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

// ComparePassword performs a constant-time comparison of a candidate
// password against a stored bcrypt hash.
func ComparePassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// GenerateSecureToken produces a token of the given length drawn from the
// 62-symbol alphanumeric alphabet using crypto/rand. Rejection-free: each
// symbol is picked with a uniform big.Int draw, so no modulo bias.
func GenerateSecureToken(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("token length must be positive")
	}

	max := big.NewInt(int64(len(tokenAlphabet)))
	token := make([]byte, length)
	for i := range token {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate secure token: %w", err)
		}
		token[i] = tokenAlphabet[n.Int64()]
	}

	return string(token), nil
}

// ValidatePassword enforces minimum password requirements before hashing.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLen {
		return fmt.Errorf("password must be at least %d characters", MinPasswordLen)
	}
	if len(password) > MaxPasswordLen {
		return fmt.Errorf("password must be at most %d characters", MaxPasswordLen)
	}
	return nil
}
