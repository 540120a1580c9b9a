package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := New(ErrorTypeValidation, "bad input")

	assert.Equal(t, ErrorTypeValidation, err.Type)
	assert.Equal(t, "validation: bad input", err.Error())
	assert.NotEmpty(t, err.Stack)
}

func TestNewf(t *testing.T) {
	err := Newf(ErrorTypeData, "stream %q failed at offset %d", "workers", 200)
	assert.Equal(t, `data: stream "workers" failed at offset 200`, err.Error())
}

func TestWrap(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := Wrap(cause, ErrorTypeConnection, "token request failed")

	assert.Equal(t, "connection: token request failed: connection refused", err.Error())
	assert.Equal(t, cause, err.Unwrap())

	assert.Nil(t, Wrap(nil, ErrorTypeInternal, "ignored"))
}

func TestWrapPreservesStack(t *testing.T) {
	inner := New(ErrorTypeData, "parse failed")
	outer := Wrap(inner, ErrorTypeInternal, "extraction failed")

	require.NotEmpty(t, outer.Stack)
	assert.Equal(t, inner.Stack[0], outer.Stack[0])
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(New(ErrorTypeRateLimit, "throttled")))
	assert.True(t, IsRetryable(New(ErrorTypeTimeout, "deadline")))
	assert.True(t, IsRetryable(New(ErrorTypeConnection, "reset")))
	assert.False(t, IsRetryable(New(ErrorTypeAuthentication, "denied")))
	assert.False(t, IsRetryable(New(ErrorTypeValidation, "bad")))
	assert.False(t, IsRetryable(fmt.Errorf("plain error")))
	assert.False(t, IsRetryable(nil))

	// Wrapped errors classify by the outermost type
	wrapped := Wrap(New(ErrorTypeValidation, "bad"), ErrorTypeTimeout, "slow")
	assert.True(t, IsRetryable(wrapped))
}

func TestIsType(t *testing.T) {
	err := New(ErrorTypeConfig, "missing field")
	assert.True(t, IsType(err, ErrorTypeConfig))
	assert.False(t, IsType(err, ErrorTypeData))
	assert.False(t, IsType(fmt.Errorf("plain"), ErrorTypeConfig))

	wrapped := fmt.Errorf("outer: %w", err)
	assert.True(t, IsType(wrapped, ErrorTypeConfig))
}

func TestWithDetail(t *testing.T) {
	err := New(ErrorTypeData, "bad page").
		WithDetail("stream", "workers").
		WithDetail("status", 502)

	assert.Equal(t, "workers", err.Details["stream"])
	assert.Equal(t, 502, err.Details["status"])
}
