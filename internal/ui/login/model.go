// Package login is the screen the sign-up form hands over to once an account
// has been created.
package login

import (
	"context"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	zone "github.com/lrstanley/bubblezone"

	"github.com/zjrosen/signup/internal/keys"
	"github.com/zjrosen/signup/internal/log"
	"github.com/zjrosen/signup/internal/registration"
	"github.com/zjrosen/signup/internal/ui/styles"
)

// Messages shown after a login attempt.
const (
	MsgSuccess = "Login successful!"
	MsgFailed  = "Login failed"
)

// Authenticator checks credentials against the backend.
type Authenticator interface {
	Login(ctx context.Context, email, password string) error
}

type slot int

const (
	slotEmail slot = iota
	slotPassword
	slotSubmit
	slotCount
)

var slotZones = [slotCount]string{
	slotEmail:    "login-email",
	slotPassword: "login-password",
	slotSubmit:   "login-submit",
}

type loginDoneMsg struct{ err error }

// Config controls optional parts of the screen.
type Config struct {
	ShowHelp bool
	Mouse    bool
}

// Model is the login screen state.
type Model struct {
	auth   Authenticator
	ctx    context.Context
	cancel context.CancelFunc

	email    textinput.Model
	password textinput.Model
	focus    slot

	submitting bool
	loggedIn   bool
	problem    string
	success    string

	spinner spinner.Model
	help    help.Model
	keys    keys.FormKeyMap
	cfg     Config
	width   int
}

// New creates the login screen. email prefills the address field, and
// focus starts on the password when it is set.
func New(auth Authenticator, email string, cfg Config) Model {
	ctx, cancel := context.WithCancel(context.Background())

	s := spinner.New()
	s.Spinner = spinner.MiniDot
	s.Style = lipgloss.NewStyle().Foreground(styles.SpinnerColor)

	m := Model{
		auth:    auth,
		ctx:     ctx,
		cancel:  cancel,
		spinner: s,
		help:    help.New(),
		keys:    keys.LoginKeyMap(),
		cfg:     cfg,
		width:   80,
	}

	m.email = textinput.New()
	m.email.Prompt = ""
	m.email.Placeholder = "you@example.com"
	m.email.PlaceholderStyle = lipgloss.NewStyle().Foreground(styles.TextPlaceholderColor)
	m.email.CharLimit = 254
	m.email.Width = 36
	m.email.SetValue(email)

	m.password = textinput.New()
	m.password.Prompt = ""
	m.password.Placeholder = "password"
	m.password.PlaceholderStyle = m.email.PlaceholderStyle
	m.password.CharLimit = 128
	m.password.Width = 36
	m.password.EchoMode = textinput.EchoPassword
	m.password.EchoCharacter = '•'

	if email != "" {
		m.setFocus(slotPassword)
	} else {
		m.setFocus(slotEmail)
	}
	return m
}

// Init starts the cursor blink.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// SetShowHelp toggles the key hints under the form.
func (m Model) SetShowHelp(show bool) Model {
	m.cfg.ShowHelp = show
	return m
}

// SetSize records the terminal size.
func (m Model) SetSize(width, _ int) Model {
	m.width = width
	m.help.Width = width
	w := min(max(width-12, 16), 48)
	m.email.Width = w
	m.password.Width = w
	return m
}

// Close cancels an in-flight login.
func (m Model) Close() {
	if m.cancel != nil {
		m.cancel()
	}
}

// Email returns the address in the email field.
func (m Model) Email() string {
	return m.email.Value()
}

// LoggedIn reports whether the last attempt succeeded.
func (m Model) LoggedIn() bool {
	return m.loggedIn
}

// Problem returns the inline error, if any.
func (m Model) Problem() string {
	return m.problem
}

// Success returns the success message, if any.
func (m Model) Success() string {
	return m.success
}

// Submitting reports whether a login request is in flight.
func (m Model) Submitting() bool {
	return m.submitting
}

func (m *Model) setFocus(s slot) {
	m.focus = s
	m.email.Blur()
	m.password.Blur()
	switch s {
	case slotEmail:
		m.email.Focus()
	case slotPassword:
		m.password.Focus()
	}
}

// Update handles messages for the login screen.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loginDoneMsg:
		m.submitting = false
		switch {
		case msg.err == nil:
			m.loggedIn = true
			m.success = MsgSuccess
			log.Info(log.CatUI, "login succeeded", "email", m.email.Value())
		case m.ctx.Err() != nil:
			// Screen closed while the request was running.
		default:
			m.problem = registration.UserMessage(msg.err, MsgFailed)
			log.Debug(log.CatUI, "login failed", "error", msg.err)
		}
		return m, nil

	case spinner.TickMsg:
		if !m.submitting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		return m.SetSize(msg.Width, msg.Height), nil

	case tea.MouseMsg:
		if m.cfg.Mouse && msg.Button == tea.MouseButtonLeft && msg.Action == tea.MouseActionRelease {
			return m.handleClick(msg)
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	switch m.focus {
	case slotEmail:
		m.email, cmd = m.email.Update(msg)
	case slotPassword:
		m.password, cmd = m.password.Update(msg)
	}
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.NextField):
		m.setFocus((m.focus + 1) % slotCount)
		return m, textinput.Blink
	case key.Matches(msg, m.keys.PrevField):
		m.setFocus((m.focus + slotCount - 1) % slotCount)
		return m, textinput.Blink
	case key.Matches(msg, m.keys.Submit):
		return m.submit()
	case key.Matches(msg, m.keys.Activate):
		if m.focus == slotEmail {
			m.setFocus(slotPassword)
			return m, textinput.Blink
		}
		return m.submit()
	}

	var cmd tea.Cmd
	switch m.focus {
	case slotEmail:
		m.email, cmd = m.email.Update(msg)
	case slotPassword:
		m.password, cmd = m.password.Update(msg)
	}
	return m, cmd
}

// submit validates the credentials and starts a login. A second submit while
// one is running is ignored.
func (m Model) submit() (Model, tea.Cmd) {
	if m.submitting {
		return m, nil
	}
	m.problem = ""
	m.success = ""
	email, password := m.email.Value(), m.password.Value()
	if err := registration.ValidateCredentials(email, password); err != nil {
		m.problem = err.Error()
		return m, nil
	}

	m.submitting = true
	auth, ctx := m.auth, m.ctx
	log.Debug(log.CatUI, "logging in", "email", email)
	return m, tea.Batch(m.spinner.Tick, func() tea.Msg {
		return loginDoneMsg{err: auth.Login(ctx, email, password)}
	})
}

func (m Model) handleClick(msg tea.MouseMsg) (Model, tea.Cmd) {
	for s := slotEmail; s < slotCount; s++ {
		z := zone.Get(slotZones[s])
		if z == nil || !z.InBounds(msg) {
			continue
		}
		m.setFocus(s)
		if s == slotSubmit {
			return m.submit()
		}
		return m, textinput.Blink
	}
	return m, nil
}
