package timex

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDuration_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Duration
		wantErr bool
	}{
		{name: "string form", input: `"10s"`, want: 10 * time.Second},
		{name: "string with unit mix", input: `"1m30s"`, want: 90 * time.Second},
		{name: "numeric nanoseconds", input: `15000000000`, want: 15 * time.Second},
		{name: "invalid string", input: `"not-a-duration"`, wantErr: true},
		{name: "invalid type", input: `true`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Duration
			err := json.Unmarshal([]byte(tt.input), &d)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Duration)
		})
	}
}

func TestDuration_MarshalJSON(t *testing.T) {
	d := Duration{Duration: 90 * time.Second}
	b, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"1m30s"`, string(b))
}

func TestDuration_RoundTripInsideStruct(t *testing.T) {
	type cfg struct {
		Timeout Duration `json:"timeout"`
	}

	var c cfg
	require.NoError(t, json.Unmarshal([]byte(`{"timeout":"2h45m"}`), &c))
	assert.Equal(t, 2*time.Hour+45*time.Minute, c.Timeout.Duration)

	b, err := json.Marshal(c)
	require.NoError(t, err)

	var back cfg
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, c.Timeout.Duration, back.Timeout.Duration)
}
