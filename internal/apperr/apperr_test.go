package apperr_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/flappyjet/telemetry-server/internal/apperr"
)

func TestKindOf_UnwrapsTypedErrors(t *testing.T) {
	err := apperr.NotFound("tournament missing")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestKindOf_DefaultsUnavailableForUntypedErrors(t *testing.T) {
	assert.Equal(t, apperr.KindUnavailable, apperr.KindOf(errors.New("boom")))
}

func TestIs_MatchesWrappedKind(t *testing.T) {
	wrapped := fmt.Errorf("context: %w", apperr.Conflict("duplicate"))
	assert.True(t, apperr.Is(wrapped, apperr.KindConflict))
	assert.False(t, apperr.Is(wrapped, apperr.KindFatal))
}

func TestValidation_IncludesFieldInMessage(t *testing.T) {
	err := apperr.Validation("score", "out of range")
	assert.Contains(t, err.Error(), "score")
	assert.Contains(t, err.Error(), "out of range")
}

func TestUnavailable_PreservesCauseForUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := apperr.Unavailable("store: connect", cause)
	assert.ErrorIs(t, err, cause)
}
