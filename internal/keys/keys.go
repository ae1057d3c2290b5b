// Package keys contains keybinding definitions.
package keys

import "github.com/charmbracelet/bubbles/key"

// FormKeyMap defines the keybindings shared by the register and login forms.
// Printable keys go to the focused input, so every action sits on a control
// chord or a navigation key.
type FormKeyMap struct {
	// Navigation
	NextField key.Binding
	PrevField key.Binding

	// Actions
	Activate key.Binding
	Verify   key.Binding
	Refresh  key.Binding
	Submit   key.Binding

	// General
	Help key.Binding
	Quit key.Binding
}

// DefaultFormKeyMap returns the default form keybindings.
func DefaultFormKeyMap() FormKeyMap {
	return FormKeyMap{
		// Navigation
		NextField: key.NewBinding(
			key.WithKeys("tab", "down"),
			key.WithHelp("tab/↓", "next field"),
		),
		PrevField: key.NewBinding(
			key.WithKeys("shift+tab", "up"),
			key.WithHelp("shift+tab/↑", "previous field"),
		),

		// Actions
		Activate: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "next / press button"),
		),
		Verify: key.NewBinding(
			key.WithKeys("ctrl+e"),
			key.WithHelp("ctrl+e", "send verification link"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("ctrl+r", "check verification"),
		),
		Submit: key.NewBinding(
			key.WithKeys("ctrl+s"),
			key.WithHelp("ctrl+s", "submit"),
		),

		// General
		Help: key.NewBinding(
			key.WithKeys("f1"),
			key.WithHelp("f1", "toggle help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "esc"),
			key.WithHelp("esc", "quit"),
		),
	}
}

// LoginKeyMap returns the form keybindings without the verification actions.
func LoginKeyMap() FormKeyMap {
	k := DefaultFormKeyMap()
	k.Verify.SetEnabled(false)
	k.Refresh.SetEnabled(false)
	return k
}

// ShortHelp returns keybindings for the short help view.
func (k FormKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.NextField, k.Submit, k.Help, k.Quit}
}

// FullHelp returns keybindings for the full help view.
func (k FormKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.NextField, k.PrevField},                  // Navigation
		{k.Activate, k.Verify, k.Refresh, k.Submit}, // Actions
		{k.Help, k.Quit},                            // General
	}
}
