package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword_RoundTrip(t *testing.T) {
	hash, err := HashPassword("Sup3r$ecret")
	require.NoError(t, err)
	assert.NotEqual(t, "Sup3r$ecret", hash)

	assert.True(t, CheckPasswordHash("Sup3r$ecret", hash))
	assert.False(t, CheckPasswordHash("wrong", hash))
}

func TestValidatePasswordStrength(t *testing.T) {
	valid := []string{"Sup3r$ecret", "Aa1!aaaa"}
	for _, p := range valid {
		assert.NoError(t, ValidatePasswordStrength(p), "password %q", p)
	}

	invalid := []string{
		"alllowercase1!",
		"ALLUPPERCASE1!",
		"NoDigits!!",
		"NoSpecial11A",
		"Aa1!a",
	}
	for _, p := range invalid {
		assert.Error(t, ValidatePasswordStrength(p), "password %q", p)
	}
}
