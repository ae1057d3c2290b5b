package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zjrosen/signup/internal/registration"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check form values against the sign-up rules",
	Long: `Run the same checks the form runs before submitting, without contacting
the backend. Exits non-zero when a rule fails.

Without --name only the email address decides the exit status; the password
strength is reported either way. With --name the full registration rules
apply, including --confirm when it is given.

Example:
  signup validate --email ann@example.com --password 'Passw0rd!'
  signup validate --name Ann --email ann@example.com --password secret123 --confirm secret123`,
	RunE: runValidate,
}

var (
	validateName     string
	validateEmail    string
	validatePassword string
	validateConfirm  string
)

// errInvalid is returned after the failing rule has been printed.
var errInvalid = errors.New("validation failed")

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVar(&validateName, "name", "", "display name")
	validateCmd.Flags().StringVar(&validateEmail, "email", "", "email address")
	validateCmd.Flags().StringVar(&validatePassword, "password", "", "password")
	validateCmd.Flags().StringVar(&validateConfirm, "confirm", "", "password confirmation")
}

func runValidate(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	form := registration.Form{
		Name:            validateName,
		Email:           validateEmail,
		Password:        validatePassword,
		ConfirmPassword: validateConfirm,
	}
	strength, err := checkForm(form, cmd.Flags().Changed("name"), cmd.Flags().Changed("confirm"))

	emailState := "valid"
	if !registration.ValidateEmailFormat(form.Email) {
		emailState = "invalid"
	}
	_, _ = fmt.Fprintf(out, "email: %s\n", emailState)
	_, _ = fmt.Fprintf(out, "password strength: %s\n", strength)
	if err != nil {
		_, _ = fmt.Fprintf(out, "invalid: %s\n", err)
		cmd.SilenceUsage = true
		return errInvalid
	}
	return nil
}

// checkForm applies the registration rules when full is set and only the
// email shape otherwise.
func checkForm(form registration.Form, full, withConfirm bool) (registration.Strength, error) {
	strength := registration.ClassifyPasswordStrength(form.Password)
	if full {
		return strength, registration.Validate(form, withConfirm)
	}
	if !registration.ValidateEmailFormat(form.Email) {
		return strength, registration.ErrInvalidEmail
	}
	return strength, nil
}
