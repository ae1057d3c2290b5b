// Package register is the Bubble Tea screen for the sign-up form. It renders
// snapshots of a registration.Flow and turns keystrokes, focus changes and
// clicks into flow operations.
package register

import (
	"context"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/zjrosen/signup/internal/keys"
	"github.com/zjrosen/signup/internal/pubsub"
	"github.com/zjrosen/signup/internal/registration"
	"github.com/zjrosen/signup/internal/ui/styles"
)

// slot is a focusable element of the form, in tab order.
type slot int

const (
	slotName slot = iota
	slotEmail
	slotVerify
	slotPassword
	slotConfirm
	slotSubmit
	slotCount
)

// NavigateMsg is emitted once the post-registration redirect fires.
type NavigateMsg struct {
	Destination string
	Email       string
}

// Messages carrying the outcome of flow operations. The state itself arrives
// through the broker; these only trigger a resync.
type (
	sendDoneMsg   struct{ err error }
	pollDoneMsg   struct{ err error }
	submitDoneMsg struct{ err error }
)

// Config controls optional parts of the screen.
type Config struct {
	ShowHelp bool
	Mouse    bool
}

// Model is the register screen state.
type Model struct {
	flow     *registration.Flow
	listener *pubsub.ContinuousListener[registration.State]
	cancel   context.CancelFunc

	state  registration.State
	inputs [slotCount]textinput.Model
	focus  slot

	spinner spinner.Model
	help    help.Model
	keys    keys.FormKeyMap
	cfg     Config

	width  int
	height int
}

// New creates the screen for flow and subscribes to its snapshots.
func New(flow *registration.Flow, cfg Config) Model {
	ctx, cancel := context.WithCancel(context.Background())

	s := spinner.New()
	s.Spinner = spinner.MiniDot
	s.Style = lipgloss.NewStyle().Foreground(styles.SpinnerColor)

	h := help.New()
	h.ShowAll = false

	m := Model{
		flow:     flow,
		listener: pubsub.NewContinuousListener[registration.State](ctx, flow.Broker()),
		cancel:   cancel,
		state:    flow.Snapshot(),
		spinner:  s,
		help:     h,
		keys:     keys.DefaultFormKeyMap(),
		cfg:      cfg,
		width:    80,
	}

	m.inputs[slotName] = newInput("Ann Example", 64)
	m.inputs[slotEmail] = newInput("you@example.com", 254)
	m.inputs[slotPassword] = newSecretInput("at least 8 characters")
	m.inputs[slotConfirm] = newSecretInput("repeat password")
	m.setFocus(slotName)
	return m
}

func newInput(placeholder string, limit int) textinput.Model {
	ti := textinput.New()
	ti.Prompt = ""
	ti.Placeholder = placeholder
	ti.PlaceholderStyle = lipgloss.NewStyle().Foreground(styles.TextPlaceholderColor)
	ti.CharLimit = limit
	ti.Width = 36
	return ti
}

func newSecretInput(placeholder string) textinput.Model {
	ti := newInput(placeholder, 128)
	ti.EchoMode = textinput.EchoPassword
	ti.EchoCharacter = '•'
	return ti
}

// Init starts the cursor blink and the snapshot listener.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.listener.Listen())
}

// SetShowHelp toggles the key hints under the form.
func (m Model) SetShowHelp(show bool) Model {
	m.cfg.ShowHelp = show
	return m
}

// SetSize records the terminal size.
func (m Model) SetSize(width, height int) Model {
	m.width = width
	m.height = height
	m.help.Width = width

	w := min(max(width-12, 16), 48)
	for i := range m.inputs {
		m.inputs[i].Width = w
	}
	return m
}

// State returns the last snapshot the screen rendered.
func (m Model) State() registration.State {
	return m.state
}

// Close stops listening and closes the flow, cancelling in-flight requests.
func (m Model) Close() {
	m.cancel()
	m.flow.Close()
}

// Closed reports whether the screen's flow has been shut down.
func (m Model) Closed() bool {
	return m.flow.Closed()
}

// slots returns the focus order, skipping the confirmation field when the
// flow does not collect it.
func (m Model) slots() []slot {
	order := []slot{slotName, slotEmail, slotVerify, slotPassword}
	if m.state.RequireConfirm {
		order = append(order, slotConfirm)
	}
	return append(order, slotSubmit)
}

func (m *Model) setFocus(s slot) {
	for i := range m.inputs {
		m.inputs[i].Blur()
	}
	m.focus = s
	if isInput(s) {
		m.inputs[s].Focus()
	}
}

func isInput(s slot) bool {
	return s == slotName || s == slotEmail || s == slotPassword || s == slotConfirm
}

func (m Model) busy() bool {
	return m.state.Sending || m.state.Checking || m.state.Submitting
}
