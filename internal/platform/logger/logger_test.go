package logger

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeKVsRedactsSecrets(t *testing.T) {
	out := sanitizeKVs([]interface{}{"openai_api_key", "sk-123", "lesson_title", "Greetings"})
	require.Len(t, out, 4)
	assert.Equal(t, "[REDACTED]", out[1])
	assert.Equal(t, "Greetings", out[3])
}

func TestSanitizeKVsHashesLearnerIDs(t *testing.T) {
	out := sanitizeKVs([]interface{}{"learner_id", "cadet-42"})
	require.Len(t, out, 2)
	hashed, ok := out[1].(string)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(hashed, "hash:"))
	assert.NotContains(t, hashed, "cadet-42")

	again := sanitizeKVs([]interface{}{"learner_id", "cadet-42"})
	assert.Equal(t, hashed, again[1], "hashing must be stable")
}

func TestSanitizeKVsOddLength(t *testing.T) {
	out := sanitizeKVs([]interface{}{"stream", "SEL", "dangling"})
	assert.Equal(t, []interface{}{"stream", "SEL", "dangling"}, out)
}

func TestNewModes(t *testing.T) {
	for _, mode := range []string{"test", "development", "production"} {
		l, err := New(mode)
		require.NoError(t, err, mode)
		require.NotNil(t, l.With("service", "x"))
	}
	Nop().Info("discarded")
}
