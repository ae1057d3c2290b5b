// Package registration implements the sign-up flow: form state, validation,
// password strength and the email verification gate that must pass before
// the form can be submitted.
//
// State is a plain record and every transition is a pure method on it that
// returns the next record. Flow applies those transitions under a lock, talks
// to the backend, and publishes each new State on a broker the UI subscribes to.
package registration

import "fmt"

// VerificationState tracks where the email address is in the verification gate.
type VerificationState int

const (
	Unverified VerificationState = iota
	Sending
	Sent
	Verified
)

func (v VerificationState) String() string {
	switch v {
	case Unverified:
		return "unverified"
	case Sending:
		return "sending"
	case Sent:
		return "sent"
	case Verified:
		return "verified"
	default:
		return fmt.Sprintf("VerificationState(%d)", int(v))
	}
}

// ProblemKind distinguishes locally detected problems from failed requests.
type ProblemKind int

const (
	NoProblem ProblemKind = iota
	ValidationProblem
	RequestProblem
)

// Problem is the inline error currently shown under the form.
type Problem struct {
	Kind    ProblemKind
	Field   string // set for validation problems
	Op      string // set for request problems
	Message string
}

// Verification status messages.
const (
	MsgSending      = "Sending verification link..."
	MsgVerified     = "Email verified."
	MsgNotYet       = "Email not verified yet. Open the link we sent, then leave the email field again."
	MsgRegistered   = "Registration successful! Redirecting..."
	msgSentTemplate = "Verification link sent to %s. Open it, then leave the email field to refresh."
)

// State is the single source of truth for the registration screen.
type State struct {
	Form         Form
	Verification VerificationState
	Strength     Strength

	// In-flight flags, one per request kind.
	Sending    bool
	Checking   bool
	Submitting bool

	Problem       Problem
	VerifyMessage string
	Success       string

	// Generation increments on every email edit. Responses to requests
	// started under an older generation are discarded.
	Generation uint64

	// RequireConfirm makes the confirm-password field part of validation.
	RequireConfirm bool

	// SubmittedEmail is the address sent with the running or accepted
	// registration. Later edits of the email field do not change it.
	SubmittedEmail string
	// Registered is set once the backend accepted the registration.
	Registered bool
	// NavigateTo is set to the login destination when the post-registration
	// redirect fires.
	NavigateTo string
}

// NewState returns the initial state of an empty form.
func NewState(requireConfirm bool) State {
	return State{
		Verification:   Unverified,
		Strength:       Weak,
		RequireConfirm: requireConfirm,
	}
}

// WithName records a name edit.
func (s State) WithName(name string) State {
	s.Form.Name = name
	return s
}

// WithEmail records an email edit. A changed address always drops back to
// Unverified, clears the verification message and starts a new generation.
func (s State) WithEmail(email string) State {
	if email == s.Form.Email {
		return s
	}
	s.Form.Email = email
	s.Verification = Unverified
	s.VerifyMessage = ""
	s.Generation++
	if s.Problem.Field == FieldEmail || s.Problem.Op == OpSendVerification || s.Problem.Op == OpCheckVerified {
		s.Problem = Problem{}
	}
	return s
}

// WithPassword records a password edit and recomputes its strength.
func (s State) WithPassword(password string) State {
	s.Form.Password = password
	s.Strength = ClassifyPasswordStrength(password)
	return s
}

// WithConfirmPassword records an edit of the confirmation field.
func (s State) WithConfirmPassword(confirm string) State {
	s.Form.ConfirmPassword = confirm
	return s
}

// CanRequestVerification reports whether the verify button is enabled.
func (s State) CanRequestVerification() bool {
	return !s.Sending &&
		(s.Verification == Unverified || s.Verification == Sent) &&
		ValidateEmailFormat(s.Form.Email)
}

// CanPoll reports whether a verification status check may start.
func (s State) CanPoll() bool {
	return s.Verification == Sent && !s.Checking
}

// CanSubmit reports whether the submit button is enabled.
func (s State) CanSubmit() bool {
	return s.Verification == Verified &&
		!s.Submitting &&
		Validate(s.Form, s.RequireConfirm) == nil
}

// BeginSend starts a verification-link request. On a guard failure the
// returned state is either unchanged or, for a malformed address, carries
// the inline validation problem.
func (s State) BeginSend() (State, error) {
	if s.Sending {
		return s, ErrInFlight
	}
	if !ValidateEmailFormat(s.Form.Email) {
		s.Problem = Problem{Kind: ValidationProblem, Field: FieldEmail, Message: MsgInvalidEmail}
		return s, &ValidationError{Field: FieldEmail, Message: MsgInvalidEmail}
	}
	if s.Verification != Unverified && s.Verification != Sent {
		return s, ErrWrongState
	}
	s.Sending = true
	s.Verification = Sending
	s.VerifyMessage = MsgSending
	s.Problem = Problem{}
	return s, nil
}

// CompleteSend applies the outcome of a send started under generation gen.
// reqErr is nil on success.
func (s State) CompleteSend(gen uint64, reqErr *RequestError) State {
	s.Sending = false
	if gen != s.Generation || s.Verification != Sending {
		return s
	}
	if reqErr != nil {
		s.Verification = Unverified
		s.VerifyMessage = ""
		s.Problem = Problem{Kind: RequestProblem, Op: reqErr.Op, Message: reqErr.Message}
		return s
	}
	s.Verification = Sent
	s.VerifyMessage = fmt.Sprintf(msgSentTemplate, s.Form.Email)
	return s
}

// BeginPoll starts a verification status check.
func (s State) BeginPoll() (State, error) {
	if s.Checking {
		return s, ErrInFlight
	}
	if s.Verification != Sent {
		return s, ErrWrongState
	}
	s.Checking = true
	return s, nil
}

// CompletePoll applies the outcome of a status check started under generation gen.
func (s State) CompletePoll(gen uint64, verified bool, reqErr *RequestError) State {
	s.Checking = false
	if gen != s.Generation {
		return s
	}
	if reqErr != nil {
		s.Problem = Problem{Kind: RequestProblem, Op: reqErr.Op, Message: reqErr.Message}
		return s
	}
	if s.Verification != Sent {
		return s
	}
	if verified {
		s.Verification = Verified
		s.VerifyMessage = MsgVerified
		if s.Problem.Op == OpCheckVerified || s.Problem.Op == OpSendVerification {
			s.Problem = Problem{}
		}
		return s
	}
	s.VerifyMessage = MsgNotYet
	return s
}

// BeginSubmit starts a registration request. It refuses outright while the
// email is not verified or another submit is running. Otherwise it clears the
// previous messages and runs local validation; a failing rule is recorded as
// the inline problem and returned.
func (s State) BeginSubmit() (State, error) {
	if s.Verification != Verified {
		return s, ErrNotVerified
	}
	if s.Submitting {
		return s, ErrInFlight
	}
	s.Problem = Problem{}
	s.Success = ""
	if err := Validate(s.Form, s.RequireConfirm); err != nil {
		ve := err.(*ValidationError)
		s.Problem = Problem{Kind: ValidationProblem, Field: ve.Field, Message: ve.Message}
		return s, err
	}
	s.Submitting = true
	s.SubmittedEmail = s.Form.Email
	return s, nil
}

// CompleteSubmit applies the outcome of a registration request.
func (s State) CompleteSubmit(reqErr *RequestError) State {
	s.Submitting = false
	if reqErr != nil {
		s.SubmittedEmail = ""
		s.Problem = Problem{Kind: RequestProblem, Op: reqErr.Op, Message: reqErr.Message}
		return s
	}
	s.Registered = true
	s.Success = MsgRegistered
	return s
}

// Navigated records that the post-registration redirect fired.
func (s State) Navigated(destination string) State {
	s.NavigateTo = destination
	return s
}
