package cryptox

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/Aphrodine-wq/clipsync/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveMasterKey_OperatorKey(t *testing.T) {
	t.Parallel()

	raw := make([]byte, KeyLen)
	for i := range raw {
		raw[i] = byte(i)
	}

	key, err := ResolveMasterKey(hex.EncodeToString(raw), true)
	require.NoError(t, err)
	assert.Equal(t, raw, key)
}

func TestResolveMasterKey_DevFallbackIsDeterministic(t *testing.T) {
	t.Parallel()

	a, err := ResolveMasterKey("", false)
	require.NoError(t, err)
	b, err := ResolveMasterKey("", false)
	require.NoError(t, err)

	assert.Len(t, a, KeyLen)
	assert.Equal(t, a, b)
}

func TestResolveMasterKey_DevFallbackFatalInProduction(t *testing.T) {
	t.Parallel()

	_, err := ResolveMasterKey("", true)
	assert.ErrorIs(t, err, common.ErrConfig)
}

func TestResolveMasterKey_RejectsBadMaterial(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
	}{
		{"not hex", strings.Repeat("zz", KeyLen)},
		{"too short", "abcd"},
		{"too long", strings.Repeat("ab", KeyLen+1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ResolveMasterKey(tt.in, false)
			assert.ErrorIs(t, err, common.ErrConfig)
		})
	}
}
