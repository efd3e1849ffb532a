package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerify(t *testing.T) {
	t.Parallel()

	encoded, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)

	parts := strings.Split(encoded, "$")
	require.Len(t, parts, 3)
	assert.Equal(t, "argon2id", parts[0])

	assert.True(t, VerifyPassword(encoded, "correct horse battery staple"))
	assert.False(t, VerifyPassword(encoded, "correct horse battery stapl"))
	assert.False(t, VerifyPassword(encoded, ""))
}

func TestHashPassword_FreshSaltPerCall(t *testing.T) {
	t.Parallel()

	h1, err := HashPassword("same input")
	require.NoError(t, err)
	h2, err := HashPassword("same input")
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2)
	assert.True(t, VerifyPassword(h1, "same input"))
	assert.True(t, VerifyPassword(h2, "same input"))
}

func TestVerifyPassword_MalformedEncoded(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		encoded string
	}{
		{"empty", ""},
		{"no separators", "argon2id"},
		{"wrong scheme", "bcrypt$c2FsdA$aGFzaA"},
		{"two fields", "argon2id$c2FsdA"},
		{"four fields", "argon2id$a$b$c"},
		{"bad salt base64", "argon2id$!!!$aGFzaA"},
		{"bad hash base64", "argon2id$c2FsdA$!!!"},
		{"short hash", "argon2id$c2FsdA$aGFzaA"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, VerifyPassword(tt.encoded, "whatever"))
		})
	}
}
