package register

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	zone "github.com/lrstanley/bubblezone"
	"github.com/muesli/reflow/wordwrap"

	"github.com/zjrosen/signup/internal/registration"
	"github.com/zjrosen/signup/internal/ui/styles"
)

const title = "Create your account"

var slotZones = [slotCount]string{
	slotName:     "register-name",
	slotEmail:    "register-email",
	slotVerify:   "register-verify",
	slotPassword: "register-password",
	slotConfirm:  "register-confirm",
	slotSubmit:   "register-submit",
}

func zoneID(s slot) string {
	return slotZones[s]
}

var slotLabels = [slotCount]string{
	slotName:     "Name",
	slotEmail:    "Email",
	slotPassword: "Password",
	slotConfirm:  "Confirm password",
}

// View renders the form. Zones are marked but not scanned; the app scans once.
func (m Model) View() string {
	wrap := max(m.width-6, 20)

	var b strings.Builder
	b.WriteString(styles.TitleStyle.Render(title))
	b.WriteString("\n\n")

	b.WriteString(m.renderField(slotName))
	b.WriteString("\n")

	email := m.renderField(slotEmail)
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Bottom, email, "  ", m.renderVerifyButton()))
	b.WriteString("\n")
	if line := m.verifyLine(wrap); line != "" {
		b.WriteString(line)
		b.WriteString("\n")
	}

	b.WriteString(m.renderField(slotPassword))
	b.WriteString("\n")
	if m.state.Form.Password != "" {
		b.WriteString(styles.StatusStyle.Render("Strength: "))
		b.WriteString(styles.Strength(m.state.Strength).Render(m.state.Strength.String()))
		b.WriteString("\n")
	}

	if m.state.RequireConfirm {
		b.WriteString(m.renderField(slotConfirm))
		b.WriteString("\n")
	}

	if msg := m.state.Problem.Message; msg != "" {
		b.WriteString("\n")
		b.WriteString(styles.ErrorStyle.Render(wordwrap.String(msg, wrap)))
		b.WriteString("\n")
	}
	if m.state.Success != "" {
		b.WriteString("\n")
		b.WriteString(styles.SuccessStyle.Render(wordwrap.String(m.state.Success, wrap)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.renderSubmitButton())

	if m.cfg.ShowHelp {
		b.WriteString("\n\n")
		b.WriteString(m.help.View(m.keys))
	}

	return lipgloss.NewStyle().Padding(1, 2).Render(b.String())
}

func (m Model) renderField(s slot) string {
	focused := m.focus == s
	label := styles.LabelStyle.Render(slotLabels[s])
	box := styles.InputBoxStyle
	if focused {
		label = styles.FocusedLabelStyle.Render(slotLabels[s])
		box = styles.FocusedInputBoxStyle
	}
	return zone.Mark(zoneID(s), label+"\n"+box.Render(m.inputs[s].View()))
}

func (m Model) renderVerifyButton() string {
	label := "Verify email"
	switch m.state.Verification {
	case registration.Sending:
		label = "Sending..."
	case registration.Sent:
		label = "Resend link"
	case registration.Verified:
		label = "Verified ✓"
	}
	style := styles.Button(m.focus == slotVerify, m.state.CanRequestVerification())
	return zone.Mark(zoneID(slotVerify), style.Render(label))
}

func (m Model) renderSubmitButton() string {
	label := "Register"
	if m.state.Submitting {
		label = "Registering..."
	}
	btn := zone.Mark(zoneID(slotSubmit), styles.Button(m.focus == slotSubmit, m.state.CanSubmit()).Render(label))
	if m.state.Submitting {
		return btn + " " + m.spinner.View()
	}
	return btn
}

// verifyLine shows progress of the verification gate under the email field.
func (m Model) verifyLine(wrap int) string {
	msg := m.state.VerifyMessage
	if msg == "" {
		return ""
	}
	text := wordwrap.String(msg, wrap)
	switch {
	case m.state.Verification == registration.Verified:
		return styles.SuccessStyle.Render(text)
	case m.state.Sending || m.state.Checking:
		return m.spinner.View() + " " + styles.StatusStyle.Render(text)
	default:
		return styles.StatusStyle.Render(text)
	}
}
