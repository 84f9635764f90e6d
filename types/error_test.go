package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_FormatAndUnwrap(t *testing.T) {
	cause := errors.New("sensor offline")
	err := NewError(ErrCapabilityFailure, "query loc failed").WithCause(cause)

	assert.Equal(t, "[CAPABILITY_FAILURE] query loc failed: sensor offline", err.Error())
	assert.ErrorIs(t, err, cause)

	bare := NewError(ErrStructural, "head is not a token")
	assert.Equal(t, "[STRUCTURAL] head is not a token", bare.Error())
	assert.Nil(t, bare.Unwrap())
}

func TestGetErrorCode(t *testing.T) {
	assert.Equal(t, ErrUnknownVerb, GetErrorCode(NewError(ErrUnknownVerb, "negotiate")))
	assert.Equal(t, ErrorCode(""), GetErrorCode(errors.New("plain")))
}
