package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	zone "github.com/lrstanley/bubblezone"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/signup/internal/api"
	"github.com/zjrosen/signup/internal/app"
	"github.com/zjrosen/signup/internal/config"
	"github.com/zjrosen/signup/internal/log"
	"github.com/zjrosen/signup/internal/mode"
	"github.com/zjrosen/signup/internal/tracing"
	"github.com/zjrosen/signup/internal/ui/styles"
	"github.com/zjrosen/signup/internal/watcher"
)

func init() {
	// Force lipgloss/termenv to query terminal background color BEFORE
	// any Bubble Tea program starts. This prevents the terminal's OSC 11
	// response from racing with Bubble Tea's input loop and appearing as
	// garbage text in input fields.
	//
	// See: https://github.com/charmbracelet/bubbletea/issues/1036
	_ = lipgloss.HasDarkBackground()
}

var (
	version   = "dev"
	cfgFile   string
	debugFlag bool
	cfg       config.Config
)

var rootCmd = &cobra.Command{
	Use:     "signup",
	Short:   "A terminal sign-up form with email verification",
	Long:    `A terminal user interface for creating an account: fill in the form, verify your email address through the link the backend sends, then register and log in.`,
	Version: version,
	RunE:    runApp,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ~/.config/signup/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&debugFlag, "debug", "d", false,
		"write a debug log (path from log.file)")
	rootCmd.PersistentFlags().String("api-url", "",
		"backend base URL (overrides api.base_url)")

	// Bind flags to viper
	_ = viper.BindPFlag("api.base_url", rootCmd.PersistentFlags().Lookup("api-url"))
}

func initConfig() {
	setDefaults(viper.GetViper(), config.Defaults())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Config lookup order:
		// 1. .signup/config.yaml (current directory)
		// 2. ~/.config/signup/config.yaml (user config)
		if _, err := os.Stat(".signup/config.yaml"); err == nil {
			viper.SetConfigFile(".signup/config.yaml")
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(filepath.Join(home, ".config", "signup"))
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
	}

	// A missing config file leaves the defaults in place.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "warning: reading config: %v\n", err)
		}
	}

	_ = viper.Unmarshal(&cfg)
}

// setDefaults registers every key of d so that viper.Unmarshal sees keys the
// config file leaves out.
func setDefaults(v *viper.Viper, d config.Config) {
	v.SetDefault("api.base_url", d.API.BaseURL)
	v.SetDefault("api.timeout", d.API.Timeout)
	v.SetDefault("api.paths.register", d.API.Paths.Register)
	v.SetDefault("api.paths.send_verification", d.API.Paths.SendVerification)
	v.SetDefault("api.paths.check_verified", d.API.Paths.CheckVerified)
	v.SetDefault("api.paths.login", d.API.Paths.Login)
	v.SetDefault("registration.redirect_delay", d.Registration.RedirectDelay)
	v.SetDefault("registration.login_destination", d.Registration.LoginDestination)
	v.SetDefault("registration.require_confirm_password", d.Registration.RequireConfirmPassword)
	v.SetDefault("ui.show_help", d.UI.ShowHelp)
	v.SetDefault("ui.mouse", d.UI.Mouse)
	v.SetDefault("stub.addr", d.Stub.Addr)
	v.SetDefault("stub.token_ttl", d.Stub.TokenTTL)
	v.SetDefault("stub.auto_verify", d.Stub.AutoVerify)
	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.exporter", d.Tracing.Exporter)
	v.SetDefault("tracing.file_path", d.Tracing.FilePath)
	v.SetDefault("tracing.otlp_endpoint", d.Tracing.OTLPEndpoint)
	v.SetDefault("tracing.sample_rate", d.Tracing.SampleRate)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.level", d.Log.Level)
}

// setupLogging opens the debug log when --debug or SIGNUP_DEBUG is set.
// The returned cleanup is always safe to call.
func setupLogging(prefix string) (func(), error) {
	if !debugFlag && os.Getenv("SIGNUP_DEBUG") == "" {
		return func() {}, nil
	}
	logPath := os.Getenv("SIGNUP_LOG")
	if logPath == "" {
		logPath = cfg.Log.File
	}
	cleanup, err := log.Init(logPath, prefix)
	if err != nil {
		return nil, fmt.Errorf("initializing logging: %w", err)
	}
	log.SetMinLevel(log.ParseLevel(cfg.Log.Level))
	log.Info(log.CatConfig, "signup starting", "version", version, "config", viper.ConfigFileUsed())
	return cleanup, nil
}

func tracingConfig(c config.TracingConfig) tracing.Config {
	return tracing.Config{
		Enabled:      c.Enabled,
		Exporter:     c.Exporter,
		FilePath:     c.FilePath,
		OTLPEndpoint: c.OTLPEndpoint,
		SampleRate:   c.SampleRate,
		ServiceName:  tracing.DefaultServiceName,
	}
}

func runApp(_ *cobra.Command, _ []string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	cleanup, err := setupLogging("signup")
	if err != nil {
		return err
	}
	defer cleanup()

	return runTUI(cfg)
}

// runTUI starts the sign-up program against c.API and blocks until it exits.
func runTUI(c config.Config) error {
	tp, err := tracing.NewProvider(tracingConfig(c.Tracing))
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.ErrorErr(log.CatTrace, "tracing shutdown failed", err)
		}
	}()

	styles.ApplyTheme(c.UI.Theme.Muted, c.UI.Theme.Error, c.UI.Theme.Success)
	zone.NewGlobal()

	client := api.New(api.Options{
		BaseURL: c.API.BaseURL,
		Timeout: c.API.Timeout,
		Paths: api.Paths{
			Register:         c.API.Paths.Register,
			SendVerification: c.API.Paths.SendVerification,
			CheckVerified:    c.API.Paths.CheckVerified,
			Login:            c.API.Paths.Login,
		},
		Tracer: tp.Tracer(),
	})
	defer func() { _ = client.Close() }()

	model := app.New(mode.Services{
		Backend: client,
		Auth:    client,
		Config:  &c,
	})

	opts := []tea.ProgramOption{tea.WithAltScreen()}
	if c.UI.Mouse {
		opts = append(opts, tea.WithMouseCellMotion())
	}
	p := tea.NewProgram(model, opts...)

	if path := viper.ConfigFileUsed(); path != "" {
		stop := watchConfig(path, p)
		defer stop()
	}

	final, err := p.Run()
	if m, ok := final.(app.Model); ok {
		m.Close()
	}
	if err != nil {
		return fmt.Errorf("running program: %w", err)
	}
	return nil
}

// watchConfig forwards UI settings from path to p whenever the file changes.
// Failing to watch only costs hot reload, so errors are logged and a no-op
// stop is returned.
func watchConfig(path string, p *tea.Program) func() {
	w, err := watcher.New(watcher.DefaultConfig(path))
	if err != nil {
		log.ErrorErr(log.CatConfig, "config watcher unavailable", err)
		return func() {}
	}
	onChange, err := w.Start()
	if err != nil {
		_ = w.Stop()
		log.ErrorErr(log.CatConfig, "config watcher unavailable", err, "path", path)
		return func() {}
	}

	go func() {
		for range onChange {
			ui, err := reloadUIConfig(path)
			if err != nil {
				log.ErrorErr(log.CatConfig, "config reload failed", err, "path", path)
				continue
			}
			p.Send(app.ConfigReloadedMsg{UI: ui})
		}
	}()
	return func() { _ = w.Stop() }
}

// reloadUIConfig reads path into a fresh viper instance and returns its UI
// section. Keys missing from the file fall back to the defaults.
func reloadUIConfig(path string) (config.UIConfig, error) {
	v := viper.New()
	setDefaults(v, config.Defaults())
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return config.UIConfig{}, fmt.Errorf("reading %s: %w", path, err)
	}
	var c config.Config
	if err := v.Unmarshal(&c); err != nil {
		return config.UIConfig{}, fmt.Errorf("decoding %s: %w", path, err)
	}
	return c.UI, nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
