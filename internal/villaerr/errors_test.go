package villaerr

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProtocolError_IsMatchesCodeTable(t *testing.T) {
	tests := []struct {
		code int
		kind error
	}{
		{CodeInvalidRequest, ErrInvalidRequest},
		{CodeUnknownServerError, ErrUnknownServerError},
		{CodeInsufficientPermission, ErrInsufficientPermission},
		{CodeBotNotAdded, ErrBotNotAdded},
		{CodePermissionDenied, ErrPermissionDenied},
		{CodeInvalidMemberToken, ErrInvalidMemberToken},
		{CodeInvalidCredentials, ErrInvalidCredentials},
		{CodeUnsupportedMessageType, ErrUnsupportedMessageType},
	}

	for _, tt := range tests {
		t.Run(tt.kind.Error(), func(t *testing.T) {
			err := fmt.Errorf("wrapped: %w", NewProtocolError("sendMessage", tt.code, "x"))
			assert.True(t, errors.Is(err, tt.kind))

			var pe *ProtocolError
			assert.True(t, errors.As(err, &pe))
			assert.Equal(t, tt.code, pe.Code)
		})
	}
}

func TestProtocolError_UnknownCode(t *testing.T) {
	err := NewProtocolError("login", 42, "")

	assert.Nil(t, err.Kind())
	assert.False(t, errors.Is(err, ErrBotNotAdded))
	assert.Equal(t, "login: rejected with code 42", err.Error())
}

func TestNetworkError_Unwrap(t *testing.T) {
	err := &NetworkError{Op: "getVilla", Err: io.ErrUnexpectedEOF}

	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
	assert.Contains(t, err.Error(), "getVilla")
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(fmt.Errorf("kicked: %w", ErrDisconnect)))
	assert.True(t, IsRetryable(ErrReconnect))
	assert.True(t, IsRetryable(NewProtocolError("login", CodeBotNotAdded, "")))
}
