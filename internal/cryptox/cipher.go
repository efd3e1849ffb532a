// Package cryptox implements the symmetric envelope cipher used for clip
// fields flagged sensitive. The cipher is an explicitly constructed instance
// keyed at startup, injected into whoever needs it, so tests can run several
// independent instances side by side.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"

	"github.com/Aphrodine-wq/clipsync/internal/common"
)

const (
	// KeyLen is the master key length (AES-256).
	KeyLen = 32
	// IVLen is the per-call initialization vector length.
	IVLen = 16
	// TagLen is the GCM authentication tag length.
	TagLen = 16
)

// Cipher performs authenticated encryption with a process-wide master key.
// Every Encrypt call draws a fresh random IV; an IV is never reused.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher builds a Cipher from 32-byte key material. Use ResolveMasterKey
// to obtain the key from configuration.
func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != KeyLen {
		return nil, common.ErrConfig
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCMWithNonceSize(block, IVLen)
	if err != nil {
		return nil, err
	}
	return &Cipher{aead: aead}, nil
}

// Encrypt seals plaintext into an envelope with a fresh 16-byte IV and a
// 16-byte authentication tag.
func (c *Cipher) Encrypt(plaintext string) (*Envelope, error) {
	iv := make([]byte, IVLen)
	if _, err := rand.Read(iv); err != nil {
		return nil, err
	}

	sealed := c.aead.Seal(nil, iv, []byte(plaintext), nil)

	// Seal appends the tag after the ciphertext; the envelope carries the
	// two parts separately.
	ct := sealed[:len(sealed)-TagLen]
	tag := sealed[len(sealed)-TagLen:]

	return &Envelope{IV: iv, AuthTag: tag, Ciphertext: ct}, nil
}

// Decrypt verifies the envelope's authentication tag and returns the
// plaintext. Any malformed envelope or tag mismatch yields
// common.ErrDecryptionFailed; partial plaintext is never returned.
func (c *Cipher) Decrypt(env *Envelope) (string, error) {
	if env == nil || len(env.IV) != IVLen || len(env.AuthTag) != TagLen {
		return "", common.ErrDecryptionFailed
	}

	sealed := make([]byte, 0, len(env.Ciphertext)+TagLen)
	sealed = append(sealed, env.Ciphertext...)
	sealed = append(sealed, env.AuthTag...)

	plaintext, err := c.aead.Open(nil, env.IV, sealed, nil)
	if err != nil {
		return "", common.ErrDecryptionFailed
	}
	return string(plaintext), nil
}

// DecryptString parses a serialized envelope and decrypts it in one step.
func (c *Cipher) DecryptString(serialized string) (string, error) {
	env, err := ParseEnvelope(serialized)
	if err != nil {
		return "", err
	}
	return c.Decrypt(env)
}
