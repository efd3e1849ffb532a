package cryptox

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/Aphrodine-wq/clipsync/internal/common"
)

// Envelope is the output of one Encrypt call. On the wire and in storage it
// serializes as three colon-joined hex fields: hex(iv):hex(authTag):hex(ct),
// exactly two colons, with the iv and authTag fields exactly 32 hex chars.
type Envelope struct {
	IV         []byte
	AuthTag    []byte
	Ciphertext []byte
}

// String renders the envelope wire format.
func (e *Envelope) String() string {
	return fmt.Sprintf("%s:%s:%s",
		hex.EncodeToString(e.IV),
		hex.EncodeToString(e.AuthTag),
		hex.EncodeToString(e.Ciphertext))
}

// ParseEnvelope parses the wire format, rejecting anything that does not
// have exactly three fields of well-formed hex with correct iv and tag
// lengths. All parse failures map to common.ErrDecryptionFailed so callers
// see a single failure mode for bad envelopes.
func ParseEnvelope(s string) (*Envelope, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return nil, common.ErrDecryptionFailed
	}

	iv, err := hex.DecodeString(parts[0])
	if err != nil || len(iv) != IVLen {
		return nil, common.ErrDecryptionFailed
	}
	tag, err := hex.DecodeString(parts[1])
	if err != nil || len(tag) != TagLen {
		return nil, common.ErrDecryptionFailed
	}
	ct, err := hex.DecodeString(parts[2])
	if err != nil {
		return nil, common.ErrDecryptionFailed
	}

	return &Envelope{IV: iv, AuthTag: tag, Ciphertext: ct}, nil
}
