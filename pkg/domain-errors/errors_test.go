package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrap(t *testing.T) {
	t.Run("keeps the cause reachable", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := Wrap(cause, CodeUnavailable, "subscription lookup failed")

		require.ErrorIs(t, err, cause)
		assert.True(t, HasCode(err, CodeUnavailable))
		assert.Contains(t, err.Error(), "connection refused")
	})

	t.Run("code survives further fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("dispatch: %w", New(CodeValidation, "account is required"))

		assert.True(t, Is(err, CodeValidation))
		assert.Equal(t, CodeValidation, CodeOf(err))
	})
}

func TestCodeOf_UncodedIsInternal(t *testing.T) {
	assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
	assert.False(t, HasCode(nil, CodeInternal))
}
