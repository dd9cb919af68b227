package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	// MinPasswordLength is the minimum accepted password length.
	MinPasswordLength = 8

	// MaxPasswordLength bounds bcrypt input.
	MaxPasswordLength = 72
)

// ErrWeakPassword means the password fails the strength policy.
var ErrWeakPassword = errors.New("password too weak")

// PasswordManager handles password hashing and verification.
type PasswordManager struct {
	cost int
}

// NewPasswordManager creates a password manager with the given bcrypt cost.
func NewPasswordManager(cost int) *PasswordManager {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &PasswordManager{cost: cost}
}

// Hash hashes a password using bcrypt.
func (p *PasswordManager) Hash(password string) (string, error) {
	if len(password) > MaxPasswordLength {
		return "", fmt.Errorf("password too long")
	}
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(bytes), nil
}

// Verify reports whether password matches hash.
func (p *PasswordManager) Verify(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ValidateStrength checks the password against the platform policy.
func (p *PasswordManager) ValidateStrength(password string) error {
	if len(password) < MinPasswordLength || len(password) > MaxPasswordLength {
		return fmt.Errorf("%w: must be %d-%d characters",
			ErrWeakPassword, MinPasswordLength, MaxPasswordLength)
	}
	return nil
}
