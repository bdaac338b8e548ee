package envutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEnvReaders(t *testing.T) {
	t.Setenv("EU_STR", "  hello ")
	t.Setenv("EU_INT", "42")
	t.Setenv("EU_BAD_INT", "x")
	t.Setenv("EU_FLOAT", "0.3")
	t.Setenv("EU_BOOL", "off")
	t.Setenv("EU_SECS", "5")

	assert.Equal(t, "hello", String("EU_STR", "d"))
	assert.Equal(t, "d", String("EU_MISSING", "d"))
	assert.Equal(t, 42, Int("EU_INT", 1))
	assert.Equal(t, 1, Int("EU_BAD_INT", 1))
	assert.InDelta(t, 0.3, Float("EU_FLOAT", 0), 1e-9)
	assert.False(t, Bool("EU_BOOL", true))
	assert.True(t, Bool("EU_MISSING", true))
	assert.Equal(t, 5*time.Second, Seconds("EU_SECS", time.Minute))
	assert.Equal(t, time.Minute, Seconds("EU_MISSING", time.Minute))
}
