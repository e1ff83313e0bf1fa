package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	err := Wrap(ErrorTypeNetwork, "request failed", stderrors.New("connection refused")).WithURL("https://example.com/a.jpg")
	err.Code = 502

	assert.Equal(t, "network error (code 502): request failed [https://example.com/a.jpg]: connection refused", err.Error())
}

func TestTypeOfWrapped(t *testing.T) {
	inner := New(ErrorTypeNotAnImage, "got text/plain")
	wrapped := fmt.Errorf("writing: %w", inner)

	assert.Equal(t, ErrorTypeNotAnImage, TypeOf(wrapped))
	assert.True(t, IsType(wrapped, ErrorTypeNotAnImage))
	assert.False(t, IsType(wrapped, ErrorTypeTimeout))
	assert.False(t, IsType(nil, ErrorTypeUnknown))
	assert.Equal(t, ErrorTypeUnknown, TypeOf(stderrors.New("plain")))
}

func TestUnwrap(t *testing.T) {
	cause := stderrors.New("disk full")
	err := Wrap(ErrorTypeWriteFailed, "write", cause)
	assert.True(t, stderrors.Is(err, cause))
}

func TestIsTransient(t *testing.T) {
	status := func(code int) error {
		err := New(ErrorTypeNetwork, "unexpected status")
		err.Code = code
		return fmt.Errorf("fetch: %w", err)
	}

	assert.True(t, IsTransient(status(503)))
	assert.True(t, IsTransient(status(429)))
	assert.False(t, IsTransient(status(404)))
	assert.True(t, IsTransient(Wrap(ErrorTypeNetwork, "request failed", stderrors.New("connection reset"))))
	assert.True(t, IsTransient(New(ErrorTypeTimeout, "download timed out")))
	assert.False(t, IsTransient(New(ErrorTypeNotAnImage, "got text/html")))
	assert.False(t, IsTransient(nil))

	assert.Equal(t, 503, StatusCode(status(503)))
	assert.Zero(t, StatusCode(stderrors.New("plain")))
}

func TestIsRetryableStatusCode(t *testing.T) {
	tests := []struct {
		code int
		want bool
	}{
		{0, true},
		{429, true},
		{500, true},
		{503, true},
		{404, false},
		{403, false},
		{200, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryableStatusCode(tt.code))
		})
	}
}
