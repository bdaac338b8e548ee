package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOfThroughWrapping(t *testing.T) {
	base := New(KindSchemaViolation, "missing rubric", nil)
	wrapped := fmt.Errorf("synthesize lesson 2: %w", base)

	assert.Equal(t, KindSchemaViolation, KindOf(wrapped))
	assert.True(t, Is(wrapped, KindSchemaViolation))
	assert.False(t, Is(wrapped, KindGenerationFailed))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
}

func TestStatusClasses(t *testing.T) {
	clientKinds := []Kind{KindUnsupportedFormat, KindSchemaViolation, KindBudgetExceeded, KindInvalidInput}
	for _, k := range clientKinds {
		s := k.Status()
		assert.True(t, s >= 400 && s < 500, "%s -> %d", k, s)
	}
	serverKinds := []Kind{KindGenerationFailed, KindPersistenceError, KindEmbeddingUnavailable}
	for _, k := range serverKinds {
		s := k.Status()
		assert.True(t, s >= 500, "%s -> %d", k, s)
	}
	assert.Equal(t, http.StatusInternalServerError, StatusOf(errors.New("x")))
}

func TestErrorMessageAndUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := New(KindPersistenceError, "insert score", cause)

	assert.Equal(t, "persistence_error: insert score: connection refused", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "budget_exceeded: 5000 > 4000", Newf(KindBudgetExceeded, "%d > %d", 5000, 4000).Error())
}
