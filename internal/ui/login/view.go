package login

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	zone "github.com/lrstanley/bubblezone"
	"github.com/muesli/reflow/wordwrap"

	"github.com/zjrosen/signup/internal/ui/styles"
)

// View renders the login form.
func (m Model) View() string {
	wrap := max(m.width-6, 20)

	var b strings.Builder
	b.WriteString(styles.TitleStyle.Render("Log in"))
	b.WriteString("\n\n")
	b.WriteString(m.field(slotEmail, "Email", m.email.View()))
	b.WriteString("\n")
	b.WriteString(m.field(slotPassword, "Password", m.password.View()))
	b.WriteString("\n")

	if m.problem != "" {
		b.WriteString("\n")
		b.WriteString(styles.ErrorStyle.Render(wordwrap.String(m.problem, wrap)))
		b.WriteString("\n")
	}
	if m.success != "" {
		b.WriteString("\n")
		b.WriteString(styles.SuccessStyle.Render(wordwrap.String(m.success, wrap)))
		b.WriteString("\n")
	}

	label := "Log in"
	if m.submitting {
		label = "Logging in..."
	}
	b.WriteString("\n")
	b.WriteString(zone.Mark(slotZones[slotSubmit], styles.Button(m.focus == slotSubmit, !m.submitting).Render(label)))
	if m.submitting {
		b.WriteString(" " + m.spinner.View())
	}

	if m.cfg.ShowHelp {
		b.WriteString("\n\n")
		b.WriteString(m.help.View(m.keys))
	}
	return lipgloss.NewStyle().Padding(1, 2).Render(b.String())
}

func (m Model) field(s slot, label, input string) string {
	l := styles.LabelStyle.Render(label)
	box := styles.InputBoxStyle
	if m.focus == s {
		l = styles.FocusedLabelStyle.Render(label)
		box = styles.FocusedInputBoxStyle
	}
	return zone.Mark(slotZones[s], l+"\n"+box.Render(input))
}
