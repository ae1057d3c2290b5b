package registration

import (
	"strings"
	"unicode/utf8"
)

// Strength classifies a password.
type Strength int

const (
	Weak Strength = iota
	Medium
	Strong
)

func (s Strength) String() string {
	switch s {
	case Weak:
		return "Weak"
	case Medium:
		return "Medium"
	case Strong:
		return "Strong"
	default:
		return "Unknown"
	}
}

// PasswordSymbols is the symbol set a Strong password must draw from.
const PasswordSymbols = "!@#$%^&*"

// ClassifyPasswordStrength grades a password. Rules are checked top to bottom
// and the first match wins:
//
//	fewer than 8 characters                       -> Weak
//	lowercase, uppercase, digit and a symbol      -> Strong
//	at least one letter and one digit             -> Medium
//	anything else                                 -> Weak
//
// Letters and digits are ASCII only.
func ClassifyPasswordStrength(password string) Strength {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return Weak
	}

	var lower, upper, digit, symbol bool
	for _, r := range password {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune(PasswordSymbols, r):
			symbol = true
		}
	}

	switch {
	case lower && upper && digit && symbol:
		return Strong
	case (lower || upper) && digit:
		return Medium
	default:
		return Weak
	}
}
