package cryptox

import (
	"encoding/hex"
	"fmt"

	"github.com/Aphrodine-wq/clipsync/internal/common"
	"golang.org/x/crypto/argon2"
)

// Deterministic inputs for the development fallback key. The derived key is
// stable across restarts so local databases stay readable, and worthless as
// a secret.
var (
	devKeyPassword = []byte("clipsync-development-master-key")
	devKeySalt     = []byte("clipsync-dev-salt")
)

// ResolveMasterKey turns the operator-provided key material into the 32-byte
// master key. keyHex must be 64 hex characters. When it is empty a
// deterministic development-only fallback is derived with Argon2id; in a
// production configuration that fallback is a fatal configuration error,
// not a warning.
func ResolveMasterKey(keyHex string, production bool) ([]byte, error) {
	if keyHex == "" {
		if production {
			return nil, fmt.Errorf("%w: master key is required in production", common.ErrConfig)
		}
		return argon2.IDKey(devKeyPassword, devKeySalt, 1, 64*1024, 4, KeyLen), nil
	}

	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("%w: master key is not valid hex", common.ErrConfig)
	}
	if len(key) != KeyLen {
		return nil, fmt.Errorf("%w: master key must be %d bytes (%d hex chars)", common.ErrConfig, KeyLen, KeyLen*2)
	}
	return key, nil
}
