package errcodes

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

type Error struct {
	HTTPCode int
	Message  string
	Code     string
}

func (err *Error) Error() string {
	return err.Message
}

func (err *Error) As(target interface{}) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	te.HTTPCode = err.HTTPCode
	te.Message = err.Message
	te.Code = err.Code
	return true
}

func (err *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return te.HTTPCode == err.HTTPCode &&
		te.Message == err.Message &&
		te.Code == err.Code
}

const (
	CodeNetwork      = "network_error"
	CodeUnauthorized = "unauthorized"
	CodeNotFound     = "not_found"
	CodeDecode       = "decode_error"
	CodeConflict     = "conflict"
)

// Network returns an error for a failed or timed-out call to the library
// backend. Callers treat it as retryable.
func Network(detail string) error {
	return &Error{
		http.StatusBadGateway,
		"Could not reach the library server: " + detail,
		CodeNetwork,
	}
}

// Unauthorized returns an error for an expired or rejected auth token. It
// aborts the current sync pass and is surfaced for re-authentication.
func Unauthorized() error {
	return &Error{
		http.StatusUnauthorized,
		"Authentication with the library server failed.",
		CodeUnauthorized,
	}
}

// NotFound returns a 404 error with a message indicating the given resource.
func NotFound(resource string) error {
	return &Error{
		http.StatusNotFound,
		resource + " not found.",
		CodeNotFound,
	}
}

// Decode returns an error for a malformed server payload. It aborts only the
// unit of work it occurred in and never advances the checkpoint.
func Decode(detail string) error {
	return &Error{
		http.StatusBadGateway,
		"Could not decode server response: " + detail,
		CodeDecode,
	}
}

func Conflict(msg string) error {
	return &Error{
		http.StatusConflict,
		msg,
		CodeConflict,
	}
}

func UnknownParameter(param string) error {
	return &Error{
		http.StatusUnprocessableEntity,
		fmt.Sprintf("Unknown Parameter %q", param),
		"unknown_parameter",
	}
}

func ValidationTypeError(msg string) error {
	return &Error{
		http.StatusUnprocessableEntity,
		msg,
		"validation_type_error",
	}
}

func ValidationError(msg string) error {
	return &Error{
		http.StatusUnprocessableEntity,
		msg,
		"validation_error",
	}
}

func MalformedPayload() error {
	return &Error{
		http.StatusBadRequest,
		"Malformed Payload",
		"malformed_payload",
	}
}

func EmptyRequestBody() error {
	return &Error{
		http.StatusBadRequest,
		"Request body can't be empty.",
		"empty_request_body",
	}
}

func UnsupportedMediaType() error {
	return &Error{
		http.StatusUnsupportedMediaType,
		"Unsupported Media Type",
		"unsupported_media_type",
	}
}

func hasCode(err error, code string) bool {
	var e *Error
	if ok := errors.As(err, &e); ok {
		return e.Code == code
	}
	return false
}

// IsRetryable reports whether the error is transient and the operation can be
// safely attempted again (network failures and timeouts).
func IsRetryable(err error) bool {
	return hasCode(err, CodeNetwork)
}

func IsUnauthorized(err error) bool {
	return hasCode(err, CodeUnauthorized)
}

func IsNotFound(err error) bool {
	return hasCode(err, CodeNotFound)
}

func IsDecode(err error) bool {
	return hasCode(err, CodeDecode)
}

func IsConflict(err error) bool {
	return hasCode(err, CodeConflict)
}
