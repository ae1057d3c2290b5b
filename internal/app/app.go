// Package app contains the root application model.
package app

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	zone "github.com/lrstanley/bubblezone"

	"github.com/zjrosen/signup/internal/config"
	"github.com/zjrosen/signup/internal/keys"
	"github.com/zjrosen/signup/internal/log"
	"github.com/zjrosen/signup/internal/mode"
	"github.com/zjrosen/signup/internal/registration"
	"github.com/zjrosen/signup/internal/ui/login"
	"github.com/zjrosen/signup/internal/ui/register"
	"github.com/zjrosen/signup/internal/ui/styles"
)

// Model is the root application state.
type Model struct {
	currentMode mode.AppMode
	register    register.Model
	login       login.Model

	// Shared services (passed to the screens)
	services mode.Services
	quit     key.Binding

	width  int
	height int
}

// New creates the application, starting on the register screen.
func New(services mode.Services) Model {
	cfg := services.Config

	var opts []registration.Option
	if services.Scheduler != nil {
		opts = append(opts, registration.WithScheduler(services.Scheduler))
	}
	flow := registration.New(services.Backend, cfg.FlowConfig(), opts...)

	return Model{
		currentMode: mode.ModeRegister,
		register:    register.New(flow, register.Config{ShowHelp: cfg.UI.ShowHelp, Mouse: cfg.UI.Mouse}),
		services:    services,
		quit:        keys.DefaultFormKeyMap().Quit,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return m.register.Init()
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.register = m.register.SetSize(msg.Width, msg.Height)
		m.login = m.login.SetSize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.quit) {
			log.Info(log.CatUI, "quitting", "mode", m.currentMode)
			m.Close()
			return m, tea.Quit
		}

	case register.NavigateMsg:
		return m.navigate(msg)

	case ConfigReloadedMsg:
		return m.applyUI(msg.UI), nil
	}

	var cmd tea.Cmd
	switch m.currentMode {
	case mode.ModeLogin:
		m.login, cmd = m.login.Update(msg)
	default:
		m.register, cmd = m.register.Update(msg)
	}
	return m, cmd
}

func (m Model) navigate(msg register.NavigateMsg) (tea.Model, tea.Cmd) {
	target, ok := mode.ForDestination(m.services.Config, msg.Destination)
	if !ok {
		log.Warn(log.CatUI, "no screen for destination", "destination", msg.Destination)
		return m, nil
	}
	if target != mode.ModeLogin || m.currentMode == mode.ModeLogin {
		return m, nil
	}

	log.Info(log.CatUI, "Switching mode", "from", m.currentMode, "to", target, "email", msg.Email)
	// The register screen is never shown again; stop its listener and any
	// request still in flight.
	m.register.Close()
	cfg := m.services.Config.UI
	m.login = login.New(m.services.Auth, msg.Email, login.Config{ShowHelp: cfg.ShowHelp, Mouse: cfg.Mouse}).
		SetSize(m.width, m.height)
	m.currentMode = target
	return m, m.login.Init()
}

// ConfigReloadedMsg carries the UI settings read after the config file changed.
// Mouse capture is fixed when the program starts and is not reapplied.
type ConfigReloadedMsg struct {
	UI config.UIConfig
}

func (m Model) applyUI(ui config.UIConfig) Model {
	styles.ApplyTheme(ui.Theme.Muted, ui.Theme.Error, ui.Theme.Success)

	cfg := *m.services.Config
	cfg.UI.ShowHelp = ui.ShowHelp
	cfg.UI.Theme = ui.Theme
	m.services.Config = &cfg

	m.register = m.register.SetShowHelp(ui.ShowHelp)
	m.login = m.login.SetShowHelp(ui.ShowHelp)
	log.Info(log.CatConfig, "ui settings reloaded", "show_help", ui.ShowHelp)
	return m
}

// Mode returns the screen currently shown.
func (m Model) Mode() mode.AppMode {
	return m.currentMode
}

// View implements tea.Model.
func (m Model) View() string {
	var view string
	switch m.currentMode {
	case mode.ModeLogin:
		view = m.login.View()
	default:
		view = m.register.View()
	}
	return zone.Scan(view)
}

// Close releases resources held by the application: the registration flow
// and any in-flight login.
func (m Model) Close() {
	m.register.Close()
	m.login.Close()
}
