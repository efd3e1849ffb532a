package auth

import (
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/Aphrodine-wq/clipsync/internal/common"
	"golang.org/x/crypto/argon2"
)

// Argon2id parameters. Unsalted comparisons are never done: every hash
// carries its own random salt.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
	argonSaltLen = 16
)

// HashPassword derives an argon2id hash of password with a fresh random
// salt. The result is a self-describing string of the form
// "argon2id$base64(salt)$base64(hash)".
func HashPassword(password string) (string, error) {
	salt := common.GenerateRandByteArray(argonSaltLen)
	hash := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	return fmt.Sprintf("argon2id$%s$%s",
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash)), nil
}

// VerifyPassword re-derives the hash of candidate with the encoded salt and
// compares in constant time. A malformed encoded hash verifies as false.
func VerifyPassword(encoded, candidate string) bool {
	parts := strings.Split(encoded, "$")
	if len(parts) != 3 || parts[0] != "argon2id" {
		return false
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[1])
	if err != nil {
		return false
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[2])
	if err != nil || len(want) != argonKeyLen {
		return false
	}
	got := argon2.IDKey([]byte(candidate), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	return subtle.ConstantTimeCompare(want, got) == 1
}
