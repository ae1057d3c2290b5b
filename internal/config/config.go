// Package config provides configuration types, defaults and validation for signup.
package config

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zjrosen/signup/internal/log"
	"github.com/zjrosen/signup/internal/registration"
)

// Config holds all configuration options for signup.
type Config struct {
	API          APIConfig          `mapstructure:"api"`
	Registration RegistrationConfig `mapstructure:"registration"`
	UI           UIConfig           `mapstructure:"ui"`
	Stub         StubConfig         `mapstructure:"stub"`
	Tracing      TracingConfig      `mapstructure:"tracing"`
	Log          LogConfig          `mapstructure:"log"`
}

// APIConfig locates the backend the flow talks to.
type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"` // 0 = no client-side timeout
	Paths   PathsConfig   `mapstructure:"paths"`
}

// PathsConfig holds the endpoint paths relative to BaseURL.
type PathsConfig struct {
	Register         string `mapstructure:"register"`
	SendVerification string `mapstructure:"send_verification"`
	CheckVerified    string `mapstructure:"check_verified"`
	Login            string `mapstructure:"login"`
}

// RegistrationConfig tunes the registration flow.
type RegistrationConfig struct {
	RedirectDelay          time.Duration `mapstructure:"redirect_delay"`
	LoginDestination       string        `mapstructure:"login_destination"`
	RequireConfirmPassword bool          `mapstructure:"require_confirm_password"`
}

// UIConfig holds user interface configuration options.
type UIConfig struct {
	ShowHelp bool        `mapstructure:"show_help"` // Show key hints under the form
	Mouse    bool        `mapstructure:"mouse"`     // Enable mouse clicks on buttons and fields
	Theme    ThemeConfig `mapstructure:"theme"`
}

// ThemeConfig overrides status colors. Empty values keep the built-in palette.
type ThemeConfig struct {
	Muted   string `mapstructure:"muted"`
	Error   string `mapstructure:"error"`
	Success string `mapstructure:"success"`
}

// StubConfig configures the development stub backend.
type StubConfig struct {
	Addr       string        `mapstructure:"addr"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
	AutoVerify bool          `mapstructure:"auto_verify"`
}

// TracingConfig holds distributed tracing configuration for backend calls.
type TracingConfig struct {
	// Enabled controls whether tracing is active.
	// Default: false
	Enabled bool `mapstructure:"enabled"`

	// Exporter selects the trace export backend.
	// Options: "none", "file", "stdout", "otlp"
	// Default: "file"
	Exporter string `mapstructure:"exporter"`

	// FilePath is the output file for "file" exporter.
	// Default: ~/.config/signup/traces/traces.jsonl
	FilePath string `mapstructure:"file_path"`

	// OTLPEndpoint is the collector endpoint for "otlp" exporter.
	// Default: "localhost:4317"
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`

	// SampleRate controls trace sampling (0.0 to 1.0).
	// Default: 1.0
	SampleRate float64 `mapstructure:"sample_rate"`
}

// LogConfig controls the debug log file.
type LogConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"` // debug, info, warn, error
}

// DefaultTracesFilePath returns the default trace file under the user config dir.
func DefaultTracesFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".signup", "traces", "traces.jsonl")
	}
	return filepath.Join(home, ".config", "signup", "traces", "traces.jsonl")
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		API: APIConfig{
			BaseURL: "http://localhost:3000",
			Timeout: 0,
			Paths: PathsConfig{
				Register:         "/api/register",
				SendVerification: "/api/send-verification-link",
				CheckVerified:    "/api/check-email-verified",
				Login:            "/api/login",
			},
		},
		Registration: RegistrationConfig{
			RedirectDelay:          1500 * time.Millisecond,
			LoginDestination:       "/login",
			RequireConfirmPassword: true,
		},
		UI: UIConfig{
			ShowHelp: true,
			Mouse:    true,
		},
		Stub: StubConfig{
			Addr:       "127.0.0.1:3000",
			TokenTTL:   15 * time.Minute,
			AutoVerify: false,
		},
		Tracing: TracingConfig{
			Enabled:      false,
			Exporter:     "file",
			FilePath:     "", // Derived from config dir at runtime
			OTLPEndpoint: "localhost:4317",
			SampleRate:   1.0,
		},
		Log: LogConfig{
			File:  "debug.log",
			Level: "debug",
		},
	}
}

// FlowConfig returns the registration flow settings.
func (c Config) FlowConfig() registration.Config {
	return registration.Config{
		RedirectDelay:          c.Registration.RedirectDelay,
		LoginDestination:       c.Registration.LoginDestination,
		RequireConfirmPassword: c.Registration.RequireConfirmPassword,
	}
}

// Validate checks the whole configuration and returns the first problem found.
func (c Config) Validate() error {
	if err := ValidateAPI(c.API); err != nil {
		return err
	}
	if err := ValidateRegistration(c.Registration); err != nil {
		return err
	}
	if err := ValidateStub(c.Stub); err != nil {
		return err
	}
	return ValidateTracing(c.Tracing)
}

// ValidateAPI checks the backend location and endpoint paths.
func ValidateAPI(api APIConfig) error {
	u, err := url.Parse(api.BaseURL)
	if err != nil {
		return fmt.Errorf("api.base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("api.base_url must use http or https, got %q", api.BaseURL)
	}
	if u.Host == "" {
		return fmt.Errorf("api.base_url must include a host, got %q", api.BaseURL)
	}
	if api.Timeout < 0 {
		return fmt.Errorf("api.timeout must not be negative, got %s", api.Timeout)
	}

	paths := []struct{ key, val string }{
		{"register", api.Paths.Register},
		{"send_verification", api.Paths.SendVerification},
		{"check_verified", api.Paths.CheckVerified},
		{"login", api.Paths.Login},
	}
	for _, p := range paths {
		if !strings.HasPrefix(p.val, "/") {
			return fmt.Errorf("api.paths.%s must start with \"/\", got %q", p.key, p.val)
		}
	}
	return nil
}

// ValidateRegistration checks the flow settings.
func ValidateRegistration(reg RegistrationConfig) error {
	if reg.RedirectDelay < 0 {
		return fmt.Errorf("registration.redirect_delay must not be negative, got %s", reg.RedirectDelay)
	}
	if reg.LoginDestination == "" {
		return fmt.Errorf("registration.login_destination is required")
	}
	return nil
}

// ValidateStub checks the stub backend settings.
func ValidateStub(stub StubConfig) error {
	if stub.Addr == "" {
		return fmt.Errorf("stub.addr is required")
	}
	if stub.TokenTTL <= 0 {
		return fmt.Errorf("stub.token_ttl must be positive, got %s", stub.TokenTTL)
	}
	return nil
}

// ValidateTracing checks tracing configuration for errors.
// Returns nil if the configuration is valid (empty values use defaults).
func ValidateTracing(tracing TracingConfig) error {
	if tracing.SampleRate < 0.0 || tracing.SampleRate > 1.0 {
		return fmt.Errorf("tracing.sample_rate must be between 0.0 and 1.0, got %v", tracing.SampleRate)
	}

	if tracing.Exporter != "" {
		switch tracing.Exporter {
		case "none", "file", "stdout", "otlp":
		default:
			return fmt.Errorf("tracing.exporter must be \"none\", \"file\", \"stdout\", or \"otlp\", got %q", tracing.Exporter)
		}
	}

	// otlp needs an endpoint; the file exporter falls back to DefaultTracesFilePath.
	if tracing.Enabled && tracing.Exporter == "otlp" && tracing.OTLPEndpoint == "" {
		return fmt.Errorf("tracing.otlp_endpoint is required when exporter is \"otlp\"")
	}

	return nil
}

// Render returns the configuration as YAML, durations in Go notation.
func (c Config) Render() (string, error) {
	type paths struct {
		Register         string `yaml:"register"`
		SendVerification string `yaml:"send_verification"`
		CheckVerified    string `yaml:"check_verified"`
		Login            string `yaml:"login"`
	}
	doc := struct {
		API struct {
			BaseURL string `yaml:"base_url"`
			Timeout string `yaml:"timeout"`
			Paths   paths  `yaml:"paths"`
		} `yaml:"api"`
		Registration struct {
			RedirectDelay          string `yaml:"redirect_delay"`
			LoginDestination       string `yaml:"login_destination"`
			RequireConfirmPassword bool   `yaml:"require_confirm_password"`
		} `yaml:"registration"`
		UI struct {
			ShowHelp bool `yaml:"show_help"`
			Mouse    bool `yaml:"mouse"`
			Theme    struct {
				Muted   string `yaml:"muted,omitempty"`
				Error   string `yaml:"error,omitempty"`
				Success string `yaml:"success,omitempty"`
			} `yaml:"theme,omitempty"`
		} `yaml:"ui"`
		Stub struct {
			Addr       string `yaml:"addr"`
			TokenTTL   string `yaml:"token_ttl"`
			AutoVerify bool   `yaml:"auto_verify"`
		} `yaml:"stub"`
		Tracing struct {
			Enabled      bool    `yaml:"enabled"`
			Exporter     string  `yaml:"exporter"`
			FilePath     string  `yaml:"file_path,omitempty"`
			OTLPEndpoint string  `yaml:"otlp_endpoint"`
			SampleRate   float64 `yaml:"sample_rate"`
		} `yaml:"tracing"`
		Log struct {
			File  string `yaml:"file"`
			Level string `yaml:"level"`
		} `yaml:"log"`
	}{}

	doc.API.BaseURL = c.API.BaseURL
	doc.API.Timeout = c.API.Timeout.String()
	doc.API.Paths = paths(c.API.Paths)
	doc.Registration.RedirectDelay = c.Registration.RedirectDelay.String()
	doc.Registration.LoginDestination = c.Registration.LoginDestination
	doc.Registration.RequireConfirmPassword = c.Registration.RequireConfirmPassword
	doc.UI.ShowHelp = c.UI.ShowHelp
	doc.UI.Mouse = c.UI.Mouse
	doc.UI.Theme.Muted = c.UI.Theme.Muted
	doc.UI.Theme.Error = c.UI.Theme.Error
	doc.UI.Theme.Success = c.UI.Theme.Success
	doc.Stub.Addr = c.Stub.Addr
	doc.Stub.TokenTTL = c.Stub.TokenTTL.String()
	doc.Stub.AutoVerify = c.Stub.AutoVerify
	doc.Tracing.Enabled = c.Tracing.Enabled
	doc.Tracing.Exporter = c.Tracing.Exporter
	doc.Tracing.FilePath = c.Tracing.FilePath
	doc.Tracing.OTLPEndpoint = c.Tracing.OTLPEndpoint
	doc.Tracing.SampleRate = c.Tracing.SampleRate
	doc.Log.File = c.Log.File
	doc.Log.Level = c.Log.Level

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return "", fmt.Errorf("marshaling config: %w", err)
	}
	_ = enc.Close()
	return buf.String(), nil
}

// DefaultConfigTemplate returns the default config as a YAML string with comments.
func DefaultConfigTemplate() string {
	return `# signup configuration

# Backend the registration flow talks to
api:
  base_url: http://localhost:3000
  # Client-side request timeout. 0 leaves it to the transport.
  timeout: 0s
  paths:
    register: /api/register
    send_verification: /api/send-verification-link
    check_verified: /api/check-email-verified
    login: /api/login

# Registration flow
registration:
  # How long the success message stays up before moving to the login screen
  redirect_delay: 1.5s
  login_destination: /login
  # Ask for the password twice and require both to match
  require_confirm_password: true

# UI settings
ui:
  show_help: true   # Show key hints under the form
  mouse: true       # Click buttons and fields
  # theme:
  #   muted: "#696969"
  #   error: "#FF8787"
  #   success: "#73F59F"

# Development stub backend ('signup stub' and 'signup playground')
stub:
  addr: 127.0.0.1:3000
  token_ttl: 15m      # Lifetime of a verification link
  auto_verify: false  # Mark addresses verified as soon as a link is sent

# Distributed tracing of backend calls
# tracing:
#   enabled: false                 # Enable/disable tracing (default: false)
#   exporter: file                 # Export backend: none, file, stdout, otlp (default: file)
#   file_path: ~/.config/signup/traces/traces.jsonl
#   otlp_endpoint: localhost:4317  # OTLP collector endpoint (for otlp exporter)
#   sample_rate: 1.0               # Trace sampling rate 0.0-1.0 (default: 1.0)

# Debug log (written only with --debug or SIGNUP_DEBUG=1)
log:
  file: debug.log
  level: debug
`
}

// WriteDefaultConfig creates a config file at the given path with default settings and comments.
// Creates the parent directory if it doesn't exist.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "Writing default config", "path", configPath)

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "Created default config", "path", configPath)
	return nil
}
