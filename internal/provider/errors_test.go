package provider

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorFormatting(t *testing.T) {
	err := NewError(KindTimeout, "deepseek", eris.New("deadline exceeded"))
	assert.Equal(t, "provider deepseek: timeout: deadline exceeded", err.Error())

	bare := NewError(KindUnavailable, "tencent", nil)
	assert.Equal(t, "provider tencent: unavailable", bare.Error())
}

func TestErrorUnwrap(t *testing.T) {
	inner := eris.New("connection refused")
	err := NewError(KindRejected, "openai", inner)

	assert.ErrorIs(t, err, inner)
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"unavailable", NewError(KindUnavailable, "p", nil), KindUnavailable},
		{"timeout", NewError(KindTimeout, "p", nil), KindTimeout},
		{"malformed", NewError(KindMalformedResponse, "p", nil), KindMalformedResponse},
		{"rejected", NewError(KindRejected, "p", nil), KindRejected},
		{"untyped defaults to rejected", eris.New("boom"), KindRejected},
		{"wrapped typed error", eris.Wrap(NewError(KindTimeout, "p", nil), "outer"), KindTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestRetryable(t *testing.T) {
	assert.False(t, Retryable(NewError(KindUnavailable, "p", nil)))
	assert.False(t, Retryable(NewError(KindMalformedResponse, "p", nil)))
	assert.True(t, Retryable(NewError(KindTimeout, "p", nil)))
	assert.True(t, Retryable(NewError(KindRejected, "p", nil)))
	// Untyped errors count as rejected, so they are retried.
	assert.True(t, Retryable(eris.New("boom")))
}

func TestIsUnavailable(t *testing.T) {
	assert.True(t, IsUnavailable(NewError(KindUnavailable, "p", nil)))
	assert.False(t, IsUnavailable(NewError(KindTimeout, "p", nil)))
}

func TestKindString(t *testing.T) {
	require.Equal(t, "unavailable", KindUnavailable.String())
	require.Equal(t, "timeout", KindTimeout.String())
	require.Equal(t, "malformed_response", KindMalformedResponse.String())
	require.Equal(t, "rejected", KindRejected.String())
}
