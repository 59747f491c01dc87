// Package villaerr defines the error taxonomy shared by the Villa adapter.
//
// Decode-layer failures are sentinel errors compared with errors.Is.
// Server rejections are reported as *ProtocolError, which also matches the
// sentinel for its numeric code (for example ErrBotNotAdded), and transport
// failures are wrapped in *NetworkError.
package villaerr

import (
	"errors"
	"fmt"
)

// Local decode failures.
var (
	ErrMalformedFrame   = errors.New("malformed frame")
	ErrMalformedContent = errors.New("malformed message content")
	ErrEmptyMessage     = errors.New("message has no sendable content")
)

// Forward-compatibility gaps. Callers log and drop.
var (
	ErrUnknownEventType  = errors.New("unknown event type")
	ErrUnrecognizedFrame = errors.New("unrecognized frame")
)

// ErrProfileNotYetAvailable is returned when a bot's robot profile is read
// before the first successful login or verified event.
var ErrProfileNotYetAvailable = errors.New("bot profile not yet available")

// Connection supervisor control flow.
var (
	ErrReconnect  = errors.New("connection lost, reconnecting")
	ErrDisconnect = errors.New("connection revoked by server")
)

// Kinds of server-side rejection, keyed by retcode.
var (
	ErrInvalidRequest         = errors.New("invalid request")
	ErrUnknownServerError     = errors.New("unknown server error")
	ErrInsufficientPermission = errors.New("insufficient permission")
	ErrBotNotAdded            = errors.New("bot not added to villa")
	ErrPermissionDenied       = errors.New("permission denied")
	ErrInvalidMemberToken     = errors.New("invalid member bot access token")
	ErrInvalidCredentials     = errors.New("invalid bot credentials")
	ErrUnsupportedMessageType = errors.New("unsupported message type")
)

// Retcodes documented by the platform.
const (
	CodeInvalidRequest         = -1
	CodeUnknownServerError     = -502
	CodeInsufficientPermission = 10318001
	CodeBotNotAdded            = 10322002
	CodePermissionDenied       = 10322003
	CodeInvalidMemberToken     = 10322004
	CodeInvalidCredentials     = 10322005
	CodeUnsupportedMessageType = 10322006
)

var codeKinds = map[int]error{
	CodeInvalidRequest:         ErrInvalidRequest,
	CodeUnknownServerError:     ErrUnknownServerError,
	CodeInsufficientPermission: ErrInsufficientPermission,
	CodeBotNotAdded:            ErrBotNotAdded,
	CodePermissionDenied:       ErrPermissionDenied,
	CodeInvalidMemberToken:     ErrInvalidMemberToken,
	CodeInvalidCredentials:     ErrInvalidCredentials,
	CodeUnsupportedMessageType: ErrUnsupportedMessageType,
}

// ProtocolError reports an explicit rejection by the server, either a REST
// envelope with a non-zero retcode or a control reply with a non-zero code.
type ProtocolError struct {
	Op      string
	Code    int
	Message string
}

// NewProtocolError builds a ProtocolError for the given operation.
func NewProtocolError(op string, code int, message string) *ProtocolError {
	return &ProtocolError{Op: op, Code: code, Message: message}
}

func (e *ProtocolError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: rejected with code %d", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: rejected with code %d: %s", e.Op, e.Code, e.Message)
}

// Kind returns the sentinel for the error code, or nil for codes outside
// the documented table.
func (e *ProtocolError) Kind() error {
	return codeKinds[e.Code]
}

// Is lets errors.Is(err, ErrBotNotAdded) match a ProtocolError carrying
// code 10322002.
func (e *ProtocolError) Is(target error) bool {
	kind := e.Kind()
	return kind != nil && kind == target
}

// NetworkError wraps a transport-level failure.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// IsRetryable reports whether the connection supervisor should try again
// after err. Only ErrDisconnect (kick-off) stops reconnection.
func IsRetryable(err error) bool {
	return err != nil && !errors.Is(err, ErrDisconnect)
}
