package app

import (
	"bytes"
	"context"
	"os"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/exp/teatest"
	zone "github.com/lrstanley/bubblezone"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/signup/internal/config"
	"github.com/zjrosen/signup/internal/mode"
	"github.com/zjrosen/signup/internal/registration"
	"github.com/zjrosen/signup/internal/ui/register"
)

func TestMain(m *testing.M) {
	zone.NewGlobal()
	os.Exit(m.Run())
}

// memoryBackend verifies an address as soon as a link was sent to it.
type memoryBackend struct {
	mu      sync.Mutex
	sent    map[string]bool
	logins  []string
	created []registration.Form
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{sent: make(map[string]bool)}
}

func (b *memoryBackend) SendVerification(_ context.Context, email string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent[email] = true
	return nil
}

func (b *memoryBackend) CheckVerified(_ context.Context, email string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sent[email], nil
}

func (b *memoryBackend) Register(_ context.Context, form registration.Form) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.created = append(b.created, form)
	return nil
}

func (b *memoryBackend) Login(_ context.Context, email, _ string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.logins = append(b.logins, email)
	return nil
}

// immediateScheduler fires the redirect right away.
type immediateScheduler struct{}

func (immediateScheduler) AfterFunc(_ time.Duration, fn func()) func() bool {
	go fn()
	return func() bool { return false }
}

func createTestModel(t *testing.T) (Model, *memoryBackend) {
	t.Helper()
	cfg := config.Defaults()
	backend := newMemoryBackend()
	m := New(mode.Services{
		Backend:   backend,
		Auth:      backend,
		Config:    &cfg,
		Scheduler: immediateScheduler{},
	})
	t.Cleanup(m.Close)
	return m, backend
}

func TestApp_DefaultMode(t *testing.T) {
	m, _ := createTestModel(t)
	assert.Equal(t, mode.ModeRegister, m.Mode(), "expected default mode to be register")
	assert.Contains(t, m.View(), "Create your account")
}

func TestApp_WindowSizeMsg(t *testing.T) {
	m, _ := createTestModel(t)

	newModel, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 50})
	m = newModel.(Model)

	assert.Equal(t, 120, m.width, "expected width to be updated")
	assert.Equal(t, 50, m.height, "expected height to be updated")
}

func TestApp_QuitKeys(t *testing.T) {
	for _, k := range []tea.KeyType{tea.KeyCtrlC, tea.KeyEsc} {
		m, _ := createTestModel(t)
		_, cmd := m.Update(tea.KeyMsg{Type: k})
		require.NotNil(t, cmd)
		assert.Equal(t, tea.QuitMsg{}, cmd(), "key %v should quit", k)
	}
}

func TestApp_NavigateSwitchesToLogin(t *testing.T) {
	m, _ := createTestModel(t)

	newModel, _ := m.Update(register.NavigateMsg{Destination: "/login", Email: "ann@example.com"})
	m = newModel.(Model)

	require.Equal(t, mode.ModeLogin, m.Mode())
	view := m.View()
	assert.Contains(t, view, "Log in")
	assert.Contains(t, view, "ann@example.com")
	assert.True(t, m.register.Closed(), "register flow should be closed after switching")
}

func TestApp_NavigateUnknownDestinationStays(t *testing.T) {
	m, _ := createTestModel(t)

	newModel, cmd := m.Update(register.NavigateMsg{Destination: "/elsewhere"})
	m = newModel.(Model)

	assert.Nil(t, cmd)
	assert.Equal(t, mode.ModeRegister, m.Mode())
	assert.False(t, m.register.Closed())
}

func TestApp_ConfigReloadTogglesHelp(t *testing.T) {
	m, _ := createTestModel(t)
	original := m.services.Config
	require.Contains(t, m.View(), "quit")

	newModel, cmd := m.Update(ConfigReloadedMsg{UI: config.UIConfig{ShowHelp: false}})
	m = newModel.(Model)

	assert.Nil(t, cmd)
	assert.NotContains(t, m.View(), "quit")
	assert.False(t, m.services.Config.UI.ShowHelp)
	assert.True(t, original.UI.ShowHelp, "reload must not mutate the config it started with")

	newModel, _ = m.Update(register.NavigateMsg{Destination: "/login"})
	m = newModel.(Model)
	assert.NotContains(t, m.View(), "quit", "login screen built after the reload keeps help hidden")
}

func TestApp_ViewHasNoZoneMarkers(t *testing.T) {
	m, _ := createTestModel(t)
	// zone.Scan strips the markers the screens embed.
	assert.Equal(t, m.View(), zone.Scan(m.View()))
}

func waitFor(t *testing.T, tm *teatest.TestModel, text string) {
	t.Helper()
	teatest.WaitFor(t, tm.Output(), func(out []byte) bool {
		return bytes.Contains(out, []byte(text))
	}, teatest.WithDuration(3*time.Second), teatest.WithCheckInterval(20*time.Millisecond))
}

func TestApp_RegisterThenLogin(t *testing.T) {
	m, backend := createTestModel(t)
	tm := teatest.NewTestModel(t, m, teatest.WithInitialTermSize(100, 50))

	tm.Type("Ann")
	tm.Send(tea.KeyMsg{Type: tea.KeyTab})
	tm.Type("ann@example.com")
	tm.Send(tea.KeyMsg{Type: tea.KeyCtrlE})
	waitFor(t, tm, "Resend link")

	// Leaving the email field picks up the verification.
	tm.Send(tea.KeyMsg{Type: tea.KeyTab})
	waitFor(t, tm, "Verified")

	tm.Send(tea.KeyMsg{Type: tea.KeyTab})
	tm.Type("Passw0rd!")
	tm.Send(tea.KeyMsg{Type: tea.KeyTab})
	tm.Type("Passw0rd!")
	tm.Send(tea.KeyMsg{Type: tea.KeyCtrlS})
	waitFor(t, tm, "Log in")

	tm.Type("Passw0rd!")
	tm.Send(tea.KeyMsg{Type: tea.KeyEnter})
	waitFor(t, tm, "Login successful!")

	tm.Send(tea.KeyMsg{Type: tea.KeyCtrlC})
	final := tm.FinalModel(t, teatest.WithFinalTimeout(3*time.Second)).(Model)
	assert.Equal(t, mode.ModeLogin, final.Mode())

	backend.mu.Lock()
	defer backend.mu.Unlock()
	require.Len(t, backend.created, 1)
	assert.Equal(t, registration.Form{
		Name:            "Ann",
		Email:           "ann@example.com",
		Password:        "Passw0rd!",
		ConfirmPassword: "Passw0rd!",
	}, backend.created[0])
	assert.Equal(t, []string{"ann@example.com"}, backend.logins)
}
