package errors_test

import (
	stderrors "errors"
	"fmt"
	"testing"

	"codeberg.org/mutker/dronedash/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactoryMessages(t *testing.T) {
	errFactory := errors.New()

	err := errFactory.New(errors.ErrInvalidInterval)
	assert.Equal(t, "Invalid interval value", err.Error())
	assert.Equal(t, errors.ErrInvalidInterval, err.Code())

	err = errFactory.WithData(errors.ErrInvalidLogLevel, "loud")
	assert.Equal(t, "Invalid log level: loud", err.Error())
	assert.Equal(t, "loud", err.GetData())

	err = errFactory.WithMessage(errors.ErrInternal, "boom")
	assert.Equal(t, "boom", err.Error())
}

func TestWrapUnwrap(t *testing.T) {
	cause := stderrors.New("disk full")
	err := errors.New().Wrap(errors.ErrOperationFailed, cause)

	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "Operation failed: disk full", err.Error())
}

func TestCodeOf(t *testing.T) {
	err := fmt.Errorf("outer: %w", errors.New().New(errors.ErrTimeout))

	assert.Equal(t, errors.ErrTimeout, errors.CodeOf(err))
	assert.Equal(t, errors.ErrInternal, errors.CodeOf(stderrors.New("plain")))
	assert.True(t, errors.HasCode(err, errors.ErrTimeout))
	assert.False(t, errors.HasCode(err, errors.ErrInternal))
}

func TestUnknownCodeMessage(t *testing.T) {
	code := errors.ErrorCode("custom_code")
	require.Equal(t, "custom_code", errors.GetErrorMessage(code))
	assert.Equal(t, "custom_code", code.String())
}
