package registration

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MinPasswordLength is the shortest password the form accepts.
const MinPasswordLength = 8

// Form field names, used to attach validation errors to an input.
const (
	FieldName            = "name"
	FieldEmail           = "email"
	FieldPassword        = "password"
	FieldConfirmPassword = "confirm_password"
)

// Validation messages shown inline under the form.
const (
	MsgInvalidEmail     = "Please enter a valid email address."
	MsgPasswordTooShort = "Password must be at least 8 characters long."
	MsgNameRequired     = "Name is required."
	MsgPasswordMismatch = "Passwords do not match."
)

// Form holds the registration fields.
type Form struct {
	Name            string
	Email           string
	Password        string
	ConfirmPassword string
}

// ValidateEmailFormat reports whether email has the local@domain.tld shape:
// exactly one '@', no whitespace anywhere, a non-empty local part, and a
// domain containing a '.' with text on both sides of it.
func ValidateEmailFormat(email string) bool {
	if strings.IndexFunc(email, unicode.IsSpace) >= 0 {
		return false
	}
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" || strings.Contains(domain, "@") {
		return false
	}
	if len(domain) < 3 {
		return false
	}
	return strings.Contains(domain[1:len(domain)-1], ".")
}

// Validate checks the form in the order the user sees the messages: email,
// password length, name, then (when requireConfirm is set) the confirmation.
// Returns nil or a *ValidationError for the first failing rule.
func Validate(f Form, requireConfirm bool) error {
	if !ValidateEmailFormat(f.Email) {
		return &ValidationError{Field: FieldEmail, Message: MsgInvalidEmail}
	}
	if utf8.RuneCountInString(f.Password) < MinPasswordLength {
		return &ValidationError{Field: FieldPassword, Message: MsgPasswordTooShort}
	}
	if strings.TrimSpace(f.Name) == "" {
		return &ValidationError{Field: FieldName, Message: MsgNameRequired}
	}
	if requireConfirm && f.ConfirmPassword != f.Password {
		return &ValidationError{Field: FieldConfirmPassword, Message: MsgPasswordMismatch}
	}
	return nil
}

// ValidateCredentials applies the login screen rules: email shape and
// minimum password length.
func ValidateCredentials(email, password string) error {
	if !ValidateEmailFormat(email) {
		return &ValidationError{Field: FieldEmail, Message: MsgInvalidEmail}
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return &ValidationError{Field: FieldPassword, Message: MsgPasswordTooShort}
	}
	return nil
}
