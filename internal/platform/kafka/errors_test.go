package kafka

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindRetryable, KindOf(Retryable("db down", errors.New("dial tcp"))))
	assert.Equal(t, KindPermanent, KindOf(Permanent("bad payload", nil)))

	// wrapped classification survives
	wrapped := fmt.Errorf("handler: %w", Permanent("bad payload", nil))
	assert.Equal(t, KindPermanent, KindOf(wrapped))

	// anything unclassified is retryable for safety
	assert.Equal(t, KindRetryable, KindOf(errors.New("who knows")))
}

func TestHandlerErrorUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := Retryable("insert failed", cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "retryable")
	assert.Contains(t, err.Error(), "insert failed")
}
