package rpc

import (
	"errors"
	"fmt"
)

// ErrAuthFailed is returned when authenticate yields no identity.
var ErrAuthFailed = errors.New("rpc: authentication failed")

// ErrorData is the server-side detail attached to a remote error.
type ErrorData struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Debug   string `json:"debug,omitempty"`
}

// RemoteError is a response that carried an "error" member.
type RemoteError struct {
	Code    int       `json:"code"`
	Message string    `json:"message"`
	Data    ErrorData `json:"data"`
}

func (e *RemoteError) Error() string {
	if e.Data.Message != "" {
		return fmt.Sprintf("remote error %d: %s: %s", e.Code, e.Message, e.Data.Message)
	}
	return fmt.Sprintf("remote error %d: %s", e.Code, e.Message)
}

// TransportError wraps failures where no usable response was received:
// the request could not be sent, the status was not 2xx, or the body was malformed.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error (%s): %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsRemote reports whether err is (or wraps) a RemoteError.
func IsRemote(err error) bool {
	var re *RemoteError
	return errors.As(err, &re)
}

// IsTransport reports whether err is (or wraps) a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
