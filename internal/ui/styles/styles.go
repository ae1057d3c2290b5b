// Package styles contains Lip Gloss style definitions.
package styles

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/zjrosen/signup/internal/registration"
)

var (
	// Semantic color names - Text hierarchy
	TextPrimaryColor     = lipgloss.AdaptiveColor{Light: "#1F1F1F", Dark: "#CCCCCC"} // Main/primary text
	TextMutedColor       = lipgloss.AdaptiveColor{Light: "#8C8C8C", Dark: "#696969"} // Hints, help text, footers
	TextDescriptionColor = lipgloss.AdaptiveColor{Light: "#666666", Dark: "#999999"} // Status lines under fields
	TextPlaceholderColor = lipgloss.AdaptiveColor{Light: "#666666", Dark: "#777777"} // Input placeholders

	// Semantic color names - Status
	StatusSuccessColor = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"} // Success states
	StatusWarningColor = lipgloss.AdaptiveColor{Light: "#E0A800", Dark: "#FECA57"} // Warnings
	StatusErrorColor   = lipgloss.AdaptiveColor{Light: "#FF6B6B", Dark: "#FF8787"} // Errors

	// Button colors
	ButtonTextColor           = lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#FFFFFF"}
	ButtonPrimaryBgColor      = lipgloss.AdaptiveColor{Light: "#1A5276", Dark: "#1A5276"}
	ButtonPrimaryFocusBgColor = lipgloss.AdaptiveColor{Light: "#3498DB", Dark: "#3498DB"}
	ButtonDisabledBgColor     = lipgloss.AdaptiveColor{Light: "#BBBBBB", Dark: "#2D2D2D"}
	ButtonDisabledTextColor   = lipgloss.AdaptiveColor{Light: "#666666", Dark: "#777777"}

	// Form colors
	FormLabelColor        = lipgloss.AdaptiveColor{Light: "#8C8C8C", Dark: "#8C8C8C"}
	FormFocusedLabelColor = lipgloss.AdaptiveColor{Light: "#1F1F1F", Dark: "#FFFFFF"}
	BorderDefaultColor    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#696969"}
	BorderFocusColor      = lipgloss.AdaptiveColor{Light: "#54A0FF", Dark: "#54A0FF"}

	// Loading spinner color
	SpinnerColor = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#FFF"}

	TitleStyle = lipgloss.NewStyle().Bold(true).Foreground(TextPrimaryColor)

	LabelStyle        = lipgloss.NewStyle().Foreground(FormLabelColor)
	FocusedLabelStyle = lipgloss.NewStyle().Foreground(FormFocusedLabelColor).Bold(true)

	InputBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(BorderDefaultColor).
			Padding(0, 1)

	FocusedInputBoxStyle = InputBoxStyle.BorderForeground(BorderFocusColor)

	HintStyle    = lipgloss.NewStyle().Foreground(TextMutedColor)
	StatusStyle  = lipgloss.NewStyle().Foreground(TextDescriptionColor)
	ErrorStyle   = lipgloss.NewStyle().Foreground(StatusErrorColor).Bold(true)
	SuccessStyle = lipgloss.NewStyle().Foreground(StatusSuccessColor).Bold(true)

	baseButtonStyle = lipgloss.NewStyle().Padding(0, 2).Bold(true)

	PrimaryButtonStyle = baseButtonStyle.
				Foreground(ButtonTextColor).
				Background(ButtonPrimaryBgColor)

	PrimaryButtonFocusedStyle = baseButtonStyle.
					Foreground(ButtonTextColor).
					Background(ButtonPrimaryFocusBgColor).
					Underline(true).
					UnderlineSpaces(true)

	DisabledButtonStyle = baseButtonStyle.
				Bold(false).
				Foreground(ButtonDisabledTextColor).
				Background(ButtonDisabledBgColor)

	// Password strength
	StrengthWeakStyle   = lipgloss.NewStyle().Foreground(StatusErrorColor)
	StrengthMediumStyle = lipgloss.NewStyle().Foreground(StatusWarningColor)
	StrengthStrongStyle = lipgloss.NewStyle().Foreground(StatusSuccessColor)
)

// Button picks the style for a button given its focus and enablement.
func Button(focused, enabled bool) lipgloss.Style {
	switch {
	case !enabled:
		return DisabledButtonStyle
	case focused:
		return PrimaryButtonFocusedStyle
	default:
		return PrimaryButtonStyle
	}
}

// Strength returns the style used to show a password strength label.
func Strength(s registration.Strength) lipgloss.Style {
	switch s {
	case registration.Strong:
		return StrengthStrongStyle
	case registration.Medium:
		return StrengthMediumStyle
	default:
		return StrengthWeakStyle
	}
}

// ApplyTheme overrides the status colors from configuration.
// Empty strings keep the defaults.
func ApplyTheme(muted, errorColor, success string) {
	if muted != "" {
		TextMutedColor = lipgloss.AdaptiveColor{Light: muted, Dark: muted}
		HintStyle = HintStyle.Foreground(TextMutedColor)
	}
	if errorColor != "" {
		StatusErrorColor = lipgloss.AdaptiveColor{Light: errorColor, Dark: errorColor}
		ErrorStyle = ErrorStyle.Foreground(StatusErrorColor)
		StrengthWeakStyle = StrengthWeakStyle.Foreground(StatusErrorColor)
	}
	if success != "" {
		StatusSuccessColor = lipgloss.AdaptiveColor{Light: success, Dark: success}
		SuccessStyle = SuccessStyle.Foreground(StatusSuccessColor)
		StrengthStrongStyle = StrengthStrongStyle.Foreground(StatusSuccessColor)
	}
}
