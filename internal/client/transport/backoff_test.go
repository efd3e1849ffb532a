package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoff_DoublesToCeiling(t *testing.T) {
	b := newBackoff()

	want := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		5 * time.Second,
		5 * time.Second,
		5 * time.Second,
	}
	for i, w := range want {
		assert.Equal(t, w, b.Next(), "delay %d", i)
	}
}

func TestBackoff_ResetRestoresFloor(t *testing.T) {
	b := newBackoff()
	for i := 0; i < 4; i++ {
		b.Next()
	}

	b.Reset()
	assert.Equal(t, 1*time.Second, b.Next())
	assert.Equal(t, 2*time.Second, b.Next())
}
