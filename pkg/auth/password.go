package auth

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// bcryptCost trades login latency for brute-force resistance. 14 keeps a
// single hash under a couple of seconds on current hardware.
const bcryptCost = 14

// HashPassword returns the bcrypt hash of a plaintext password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPasswordHash reports whether the plaintext password matches the hash.
func CheckPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ValidatePasswordStrength rejects passwords shorter than 8 characters or
// missing an uppercase letter, a lowercase letter, a digit or a special
// character. The error lists every unmet rule so the client can show them
// all at once.
func ValidatePasswordStrength(password string) error {
	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, ch := range password {
		switch {
		case unicode.IsUpper(ch):
			hasUpper = true
		case unicode.IsLower(ch):
			hasLower = true
		case unicode.IsDigit(ch):
			hasDigit = true
		case unicode.IsPunct(ch) || unicode.IsSymbol(ch):
			hasSpecial = true
		}
	}

	var missing []string
	if len(password) < 8 {
		missing = append(missing, "at least 8 characters")
	}
	if !hasUpper {
		missing = append(missing, "at least 1 uppercase letter")
	}
	if !hasLower {
		missing = append(missing, "at least 1 lowercase letter")
	}
	if !hasDigit {
		missing = append(missing, "at least 1 digit")
	}
	if !hasSpecial {
		missing = append(missing, "at least 1 special character")
	}

	if len(missing) > 0 {
		return fmt.Errorf("password must contain %s", strings.Join(missing, ", "))
	}
	return nil
}
