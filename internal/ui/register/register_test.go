package register

import (
	"context"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	zone "github.com/lrstanley/bubblezone"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/signup/internal/pubsub"
	"github.com/zjrosen/signup/internal/registration"
)

func TestMain(m *testing.M) {
	zone.NewGlobal()
	os.Exit(m.Run())
}

type stubBackend struct {
	mu        sync.Mutex
	verified  bool
	sends     []string
	checks    []string
	registers []registration.Form
}

func (b *stubBackend) SendVerification(_ context.Context, email string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sends = append(b.sends, email)
	return nil
}

func (b *stubBackend) CheckVerified(_ context.Context, email string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.checks = append(b.checks, email)
	return b.verified, nil
}

func (b *stubBackend) Register(_ context.Context, form registration.Form) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.registers = append(b.registers, form)
	return nil
}

func (b *stubBackend) setVerified(v bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.verified = v
}

func (b *stubBackend) counts() (sends, checks, registers int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sends), len(b.checks), len(b.registers)
}

// manualScheduler holds the redirect until the test fires it.
type manualScheduler struct {
	mu sync.Mutex
	fn func()
}

func (s *manualScheduler) AfterFunc(_ time.Duration, fn func()) func() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fn = fn
	return func() bool { return false }
}

func (s *manualScheduler) fire() {
	s.mu.Lock()
	fn := s.fn
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func newTestModel(t *testing.T, cfg registration.Config) (Model, *stubBackend, *manualScheduler) {
	t.Helper()
	backend := &stubBackend{}
	sched := &manualScheduler{}
	flow := registration.New(backend, cfg, registration.WithScheduler(sched))
	m := New(flow, Config{ShowHelp: true, Mouse: true}).SetSize(100, 40)
	t.Cleanup(m.Close)
	return m, backend, sched
}

// collect runs cmd and every command it batches, gathering the messages
// that arrive within a short window. Commands that block longer (listeners,
// blink timers) are abandoned.
func collect(cmd tea.Cmd) []tea.Msg {
	out := make(chan tea.Msg, 64)
	var run func(c tea.Cmd)
	run = func(c tea.Cmd) {
		if c == nil {
			return
		}
		go func() {
			msg := c()
			if batch, ok := msg.(tea.BatchMsg); ok {
				for _, child := range batch {
					run(child)
				}
				return
			}
			if msg != nil {
				out <- msg
			}
		}()
	}
	run(cmd)

	var msgs []tea.Msg
	deadline := time.After(300 * time.Millisecond)
	for {
		select {
		case msg := <-out:
			msgs = append(msgs, msg)
		case <-deadline:
			return msgs
		}
	}
}

// settle runs cmd and feeds back the operation results.
func settle(m Model, cmd tea.Cmd) Model {
	for _, msg := range collect(cmd) {
		switch msg.(type) {
		case sendDoneMsg, pollDoneMsg, submitDoneMsg:
			m, _ = m.Update(msg)
		}
	}
	return m
}

func keyMsg(t tea.KeyType) tea.KeyMsg {
	return tea.KeyMsg{Type: t}
}

func typeText(m Model, s string) Model {
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
	return m
}

func press(m Model, t tea.KeyType) (Model, tea.Cmd) {
	return m.Update(keyMsg(t))
}

// fillVerified types a complete form and verifies the email address.
func fillVerified(t *testing.T, m Model, backend *stubBackend, password string) Model {
	t.Helper()
	m = typeText(m, "Ann")
	m, _ = press(m, tea.KeyTab)
	m = typeText(m, "ann@example.com")

	m, cmd := press(m, tea.KeyCtrlE)
	m = settle(m, cmd)
	require.Equal(t, registration.Sent, m.State().Verification)

	backend.setVerified(true)
	m, cmd = press(m, tea.KeyTab) // leave the email field
	m = settle(m, cmd)
	require.Equal(t, registration.Verified, m.State().Verification)

	m, _ = press(m, tea.KeyTab) // password
	m = typeText(m, password)
	if m.State().RequireConfirm {
		m, _ = press(m, tea.KeyTab)
		m = typeText(m, password)
	}
	return m
}

func TestNew_InitialView(t *testing.T) {
	m, _, _ := newTestModel(t, registration.DefaultConfig())

	require.Equal(t, slotName, m.focus)
	view := m.View()
	require.Contains(t, view, "Create your account")
	require.Contains(t, view, "Verify email")
	require.Contains(t, view, "Confirm password")
	require.Contains(t, view, "Register")
}

func TestTyping_SyncsFlow(t *testing.T) {
	m, _, _ := newTestModel(t, registration.DefaultConfig())

	m = typeText(m, "Ann")
	m, _ = press(m, tea.KeyTab)
	m = typeText(m, "ann@example.com")

	form := m.flow.Snapshot().Form
	require.Equal(t, "Ann", form.Name)
	require.Equal(t, "ann@example.com", form.Email)
	require.Equal(t, form, m.State().Form)
}

func TestFocusOrder_SkipsConfirmWhenNotRequired(t *testing.T) {
	cfg := registration.DefaultConfig()
	cfg.RequireConfirmPassword = false
	m, _, _ := newTestModel(t, cfg)

	var seen []slot
	for range 5 {
		m, _ = press(m, tea.KeyTab)
		seen = append(seen, m.focus)
	}
	require.Equal(t, []slot{slotEmail, slotVerify, slotPassword, slotSubmit, slotName}, seen)
	require.NotContains(t, m.View(), "Confirm password")

	m, _ = press(m, tea.KeyShiftTab)
	require.Equal(t, slotSubmit, m.focus)
}

func TestVerify_InvalidEmailShowsError(t *testing.T) {
	m, backend, _ := newTestModel(t, registration.DefaultConfig())
	m, _ = press(m, tea.KeyTab)
	m = typeText(m, "not-an-email")

	m, cmd := press(m, tea.KeyCtrlE)
	m = settle(m, cmd)

	sends, _, _ := backend.counts()
	require.Zero(t, sends)
	require.Equal(t, registration.MsgInvalidEmail, m.State().Problem.Message)
	require.Contains(t, m.View(), registration.MsgInvalidEmail)
}

func TestVerify_SendsLinkAndShowsResend(t *testing.T) {
	m, backend, _ := newTestModel(t, registration.DefaultConfig())
	m, _ = press(m, tea.KeyTab)
	m = typeText(m, "ann@example.com")

	m, cmd := press(m, tea.KeyCtrlE)
	m = settle(m, cmd)

	sends, _, _ := backend.counts()
	require.Equal(t, 1, sends)
	require.Equal(t, registration.Sent, m.State().Verification)
	view := m.View()
	require.Contains(t, view, "Resend link")
	require.Contains(t, view, "ann@example.com")
}

func TestActivate_OnVerifyButtonSends(t *testing.T) {
	m, backend, _ := newTestModel(t, registration.DefaultConfig())
	m, _ = press(m, tea.KeyTab)
	m = typeText(m, "ann@example.com")
	m, _ = press(m, tea.KeyTab)
	require.Equal(t, slotVerify, m.focus)

	m, cmd := press(m, tea.KeyEnter)
	m = settle(m, cmd)

	sends, _, _ := backend.counts()
	require.Equal(t, 1, sends)
	require.Equal(t, registration.Sent, m.State().Verification)
}

func TestActivate_OnInputMovesFocus(t *testing.T) {
	m, _, _ := newTestModel(t, registration.DefaultConfig())
	m, _ = press(m, tea.KeyEnter)
	require.Equal(t, slotEmail, m.focus)
}

func TestLeavingEmail_PollsOnlyAfterSend(t *testing.T) {
	m, backend, _ := newTestModel(t, registration.DefaultConfig())
	m, _ = press(m, tea.KeyTab)
	m = typeText(m, "ann@example.com")

	// Nothing sent yet: leaving the field does not poll.
	m, cmd := press(m, tea.KeyTab)
	m = settle(m, cmd)
	_, checks, _ := backend.counts()
	require.Zero(t, checks)

	m, cmd = press(m, tea.KeyCtrlE)
	m = settle(m, cmd)
	m, _ = press(m, tea.KeyShiftTab)
	require.Equal(t, slotEmail, m.focus)

	m, cmd = press(m, tea.KeyTab)
	m = settle(m, cmd)
	_, checks, _ = backend.counts()
	require.Equal(t, 1, checks)
	require.Equal(t, registration.Sent, m.State().Verification)
	require.Equal(t, registration.MsgNotYet, m.State().VerifyMessage)
}

func TestRefresh_ChecksVerification(t *testing.T) {
	m, backend, _ := newTestModel(t, registration.DefaultConfig())
	m, _ = press(m, tea.KeyTab)
	m = typeText(m, "ann@example.com")
	m, cmd := press(m, tea.KeyCtrlE)
	m = settle(m, cmd)

	backend.setVerified(true)
	m, cmd = press(m, tea.KeyCtrlR)
	m = settle(m, cmd)

	require.Equal(t, registration.Verified, m.State().Verification)
	require.Contains(t, m.View(), "Verified")
}

func TestEditingEmail_ResetsVerification(t *testing.T) {
	m, backend, _ := newTestModel(t, registration.DefaultConfig())
	m = fillVerified(t, m, backend, "Passw0rd!")

	m, _ = press(m, tea.KeyShiftTab)
	m, _ = press(m, tea.KeyShiftTab)
	m, _ = press(m, tea.KeyShiftTab)
	require.Equal(t, slotEmail, m.focus)
	m = typeText(m, "x")

	require.Equal(t, registration.Unverified, m.State().Verification)
	require.Equal(t, "ann@example.comx", m.State().Form.Email)
}

func TestSubmit_BeforeVerificationIsRefused(t *testing.T) {
	m, backend, _ := newTestModel(t, registration.DefaultConfig())
	m = typeText(m, "Ann")

	m, cmd := press(m, tea.KeyCtrlS)
	m = settle(m, cmd)

	_, _, registers := backend.counts()
	require.Zero(t, registers)
	require.False(t, m.State().Registered)
}

func TestSubmit_ShowsValidationProblem(t *testing.T) {
	m, backend, _ := newTestModel(t, registration.DefaultConfig())
	m = fillVerified(t, m, backend, "short")

	m, cmd := press(m, tea.KeyCtrlS)
	m = settle(m, cmd)

	_, _, registers := backend.counts()
	require.Zero(t, registers)
	require.Equal(t, registration.MsgPasswordTooShort, m.State().Problem.Message)
	require.Contains(t, m.View(), registration.MsgPasswordTooShort)
}

func TestSubmit_SuccessThenNavigate(t *testing.T) {
	m, backend, sched := newTestModel(t, registration.DefaultConfig())
	m = fillVerified(t, m, backend, "Passw0rd!")

	m, cmd := press(m, tea.KeyCtrlS)
	m = settle(m, cmd)

	_, _, registers := backend.counts()
	require.Equal(t, 1, registers)
	require.True(t, m.State().Registered)
	require.Contains(t, m.View(), registration.MsgRegistered)

	sched.fire()
	snap := m.flow.Snapshot()
	require.Equal(t, "/login", snap.NavigateTo)

	m, cmd = m.Update(pubsub.Event[registration.State]{Type: pubsub.NavigateEvent, Payload: snap})
	var nav *NavigateMsg
	for _, msg := range collect(cmd) {
		if n, ok := msg.(NavigateMsg); ok {
			nav = &n
		}
	}
	require.NotNil(t, nav)
	require.Equal(t, NavigateMsg{Destination: "/login", Email: "ann@example.com"}, *nav)
	require.Equal(t, "/login", m.State().NavigateTo)
}

func TestNavigate_PrefillsSubmittedEmail(t *testing.T) {
	m, _, _ := newTestModel(t, registration.DefaultConfig())

	snap := m.flow.Snapshot()
	snap.Form.Email = "other@example.com"
	snap.SubmittedEmail = "ann@example.com"
	snap.Registered = true
	snap.NavigateTo = "/login"

	_, cmd := m.Update(pubsub.Event[registration.State]{Type: pubsub.NavigateEvent, Payload: snap})
	var nav *NavigateMsg
	for _, msg := range collect(cmd) {
		if n, ok := msg.(NavigateMsg); ok {
			nav = &n
		}
	}
	require.NotNil(t, nav)
	require.Equal(t, "ann@example.com", nav.Email)
}

func TestChangedEvent_DoesNotNavigate(t *testing.T) {
	m, _, _ := newTestModel(t, registration.DefaultConfig())

	_, cmd := m.Update(pubsub.Event[registration.State]{Type: pubsub.ChangedEvent, Payload: m.flow.Snapshot()})
	for _, msg := range collect(cmd) {
		_, isNav := msg.(NavigateMsg)
		require.False(t, isNav)
	}
}

func TestHelp_Toggle(t *testing.T) {
	m, _, _ := newTestModel(t, registration.DefaultConfig())
	require.False(t, m.help.ShowAll)

	m, _ = press(m, tea.KeyF1)
	require.True(t, m.help.ShowAll)
	require.Contains(t, m.View(), "check verification")

	m, _ = press(m, tea.KeyF1)
	require.False(t, m.help.ShowAll)
}

func TestView_HidesHelpWhenDisabled(t *testing.T) {
	flow := registration.New(&stubBackend{}, registration.DefaultConfig())
	m := New(flow, Config{ShowHelp: false})
	t.Cleanup(m.Close)

	require.NotContains(t, m.View(), "quit")
}

func TestView_PasswordIsMasked(t *testing.T) {
	m, _, _ := newTestModel(t, registration.DefaultConfig())
	m, _ = press(m, tea.KeyTab)
	m, _ = press(m, tea.KeyTab)
	m, _ = press(m, tea.KeyTab)
	require.Equal(t, slotPassword, m.focus)

	m = typeText(m, "hunter22")
	view := m.View()
	require.NotContains(t, view, "hunter22")
	require.Contains(t, view, "Strength")
}

func TestSpinnerTick_IgnoredWhenIdle(t *testing.T) {
	m, _, _ := newTestModel(t, registration.DefaultConfig())
	_, cmd := m.Update(m.spinner.Tick())
	require.Nil(t, cmd)
}

func TestMouse_ClickOutsideZonesIsIgnored(t *testing.T) {
	m, _, _ := newTestModel(t, registration.DefaultConfig())
	m, cmd := m.Update(tea.MouseMsg{X: 500, Y: 500, Button: tea.MouseButtonLeft, Action: tea.MouseActionRelease})
	require.Nil(t, cmd)
	require.Equal(t, slotName, m.focus)
}

func TestWindowSize_ResizesInputs(t *testing.T) {
	m, _, _ := newTestModel(t, registration.DefaultConfig())
	m, _ = m.Update(tea.WindowSizeMsg{Width: 30, Height: 20})
	require.Equal(t, 18, m.inputs[slotName].Width)

	m, _ = m.Update(tea.WindowSizeMsg{Width: 200, Height: 50})
	require.Equal(t, 48, m.inputs[slotName].Width)
	require.False(t, strings.Contains(m.View(), "\t"))
}
