package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/signup/internal/config"
	"github.com/zjrosen/signup/internal/registration"
)

// TestSetDefaults_PartialFileKeepsDefaults verifies that keys missing from a
// config file fall back to the built-in defaults after Unmarshal.
func TestSetDefaults_PartialFileKeepsDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v, config.Defaults())
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(`
api:
  base_url: https://signup.example.com
registration:
  redirect_delay: 3s
`)))

	var got config.Config
	require.NoError(t, v.Unmarshal(&got))

	want := config.Defaults()
	want.API.BaseURL = "https://signup.example.com"
	want.Registration.RedirectDelay = 3 * time.Second
	require.Equal(t, want, got)
}

func TestSetDefaults_EmptyConfigEqualsDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v, config.Defaults())

	var got config.Config
	require.NoError(t, v.Unmarshal(&got))
	require.Equal(t, config.Defaults(), got)
}

func TestReloadUIConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
ui:
  show_help: false
  theme:
    error: "#FF0000"
`), 0o600))

	ui, err := reloadUIConfig(path)
	require.NoError(t, err)
	require.False(t, ui.ShowHelp)
	require.Equal(t, "#FF0000", ui.Theme.Error)
	require.Equal(t, config.Defaults().UI.Mouse, ui.Mouse, "missing keys keep defaults")

	require.NoError(t, os.WriteFile(path, []byte("ui: [broken"), 0o600))
	_, err = reloadUIConfig(path)
	require.Error(t, err)

	_, err = reloadUIConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestTracingConfig_CopiesFields(t *testing.T) {
	tc := tracingConfig(config.TracingConfig{
		Enabled:      true,
		Exporter:     "otlp",
		OTLPEndpoint: "collector:4317",
		SampleRate:   0.25,
	})
	require.True(t, tc.Enabled)
	require.Equal(t, "otlp", tc.Exporter)
	require.Equal(t, "collector:4317", tc.OTLPEndpoint)
	require.Equal(t, 0.25, tc.SampleRate)
	require.Equal(t, "signup", tc.ServiceName)
}

func TestCheckForm(t *testing.T) {
	tests := []struct {
		name     string
		form     registration.Form
		full     bool
		confirm  bool
		wantErr  string
		strength registration.Strength
	}{
		{
			name:     "email only",
			form:     registration.Form{Email: "ann@example.com", Password: "Passw0rd!"},
			strength: registration.Strong,
		},
		{
			name:     "email only ignores short password",
			form:     registration.Form{Email: "ann@example.com", Password: "short"},
			strength: registration.Weak,
		},
		{
			name:    "bad email",
			form:    registration.Form{Email: "bad-email", Password: "password1"},
			wantErr: registration.ErrInvalidEmail.Error(),
		},
		{
			name:    "full rules need a name",
			form:    registration.Form{Email: "ann@example.com", Password: "password1"},
			full:    true,
			wantErr: registration.MsgNameRequired,
		},
		{
			name:    "confirmation checked when given",
			form:    registration.Form{Name: "Ann", Email: "ann@example.com", Password: "password1", ConfirmPassword: "password2"},
			full:    true,
			confirm: true,
			wantErr: registration.MsgPasswordMismatch,
		},
		{
			name:     "confirmation skipped when absent",
			form:     registration.Form{Name: "Ann", Email: "ann@example.com", Password: "password1"},
			full:     true,
			strength: registration.Medium,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			strength, err := checkForm(tt.form, tt.full, tt.confirm)
			if tt.wantErr != "" {
				require.EqualError(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.strength, strength)
		})
	}
}

func TestRunConfigInit_WritesTemplateOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signup", "config.yaml")
	var out bytes.Buffer
	c := &cobra.Command{}
	c.SetOut(&out)

	require.NoError(t, runConfigInit(c, []string{path}))
	require.Contains(t, out.String(), "wrote "+path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, config.DefaultConfigTemplate(), string(data))

	err = runConfigInit(c, []string{path})
	require.ErrorContains(t, err, "already exists")
}

func TestRunConfigShow_RendersEffectiveConfig(t *testing.T) {
	saved := cfg
	t.Cleanup(func() { cfg = saved })
	cfg = config.Defaults()
	cfg.API.BaseURL = "http://127.0.0.1:4000"

	var out bytes.Buffer
	c := &cobra.Command{}
	c.SetOut(&out)

	require.NoError(t, runConfigShow(c, nil))
	require.Contains(t, out.String(), "base_url: http://127.0.0.1:4000")
	require.Contains(t, out.String(), "redirect_delay: 1.5s")
}

func TestRunConfigShow_RejectsInvalidConfig(t *testing.T) {
	saved := cfg
	t.Cleanup(func() { cfg = saved })
	cfg = config.Defaults()
	cfg.API.BaseURL = "ftp://example.com"

	err := runConfigShow(&cobra.Command{}, nil)
	require.ErrorContains(t, err, "invalid configuration")
}

func TestRootCommand_RegistersSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"stub", "playground", "validate", "config"} {
		require.True(t, names[want], "missing subcommand %q", want)
	}
	require.NotNil(t, rootCmd.PersistentFlags().Lookup("api-url"))
	require.NotNil(t, rootCmd.PersistentFlags().ShorthandLookup("d"))
}
