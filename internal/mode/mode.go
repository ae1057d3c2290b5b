// Package mode defines the screens of the application and the services they
// share.
package mode

import (
	"github.com/zjrosen/signup/internal/config"
	"github.com/zjrosen/signup/internal/registration"
	"github.com/zjrosen/signup/internal/ui/login"
)

// AppMode identifies the screen currently shown.
type AppMode int

const (
	ModeRegister AppMode = iota
	ModeLogin
)

func (m AppMode) String() string {
	switch m {
	case ModeRegister:
		return "register"
	case ModeLogin:
		return "login"
	default:
		return "unknown"
	}
}

// Services contains shared dependencies injected into the screens.
type Services struct {
	Backend registration.Backend
	Auth    login.Authenticator
	Config  *config.Config
	// Scheduler runs the post-registration redirect. Nil uses real timers.
	Scheduler registration.Scheduler
}

// ForDestination maps a navigation destination to the screen serving it.
func ForDestination(cfg *config.Config, destination string) (AppMode, bool) {
	switch destination {
	case cfg.Registration.LoginDestination, "/login":
		return ModeLogin, true
	case "/register", "/":
		return ModeRegister, true
	}
	return ModeRegister, false
}
