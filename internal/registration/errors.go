package registration

import (
	"errors"
	"fmt"
)

// Guard errors. A flow operation returning one of these did nothing: no
// request was issued and, apart from ErrInvalidEmail, no state changed.
var (
	ErrClosed       = errors.New("registration flow closed")
	ErrInFlight     = errors.New("request already in flight")
	ErrInvalidEmail = errors.New("email address is not valid")
	ErrNotVerified  = errors.New("email address not verified")
	ErrWrongState   = errors.New("operation not allowed in current verification state")
	ErrStale        = errors.New("response discarded: email changed while request was in flight")
)

// IsGuard reports whether err is a refusal rather than a failure.
func IsGuard(err error) bool {
	for _, g := range []error{ErrClosed, ErrInFlight, ErrInvalidEmail, ErrNotVerified, ErrWrongState, ErrStale} {
		if errors.Is(err, g) {
			return true
		}
	}
	return false
}

// Operations that talk to the backend.
const (
	OpSendVerification = "send_verification"
	OpCheckVerified    = "check_verified"
	OpRegister         = "register"
)

// Fallback messages when the backend gives no reason.
const (
	MsgRegistrationFailed = "Registration failed"
	MsgSendFailed         = "Failed to send verification link"
	MsgCheckFailed        = "Could not check verification status"
)

// ValidationError is a local rule violation found before any request.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Is lets a validation failure on the email field match ErrInvalidEmail.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidEmail && e.Field == FieldEmail
}

// RequestError is a failed backend call. Message is what the user sees.
type RequestError struct {
	Op      string
	Message string
	Err     error
}

func (e *RequestError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// serverMessager is implemented by backend errors that carry the message
// from the response body.
type serverMessager interface {
	ServerMessage() string
}

// newRequestError builds the user-facing error for a failed call, preferring
// the server's message over fallback.
func newRequestError(op string, err error, fallback string) *RequestError {
	return &RequestError{Op: op, Message: UserMessage(err, fallback), Err: err}
}

// UserMessage returns the reason the server gave for err, or fallback when
// it gave none.
func UserMessage(err error, fallback string) string {
	var sm serverMessager
	if errors.As(err, &sm) && sm.ServerMessage() != "" {
		return sm.ServerMessage()
	}
	return fallback
}
