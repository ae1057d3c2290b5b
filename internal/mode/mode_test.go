package mode

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/signup/internal/config"
)

func TestForDestination(t *testing.T) {
	cfg := config.Defaults()
	cfg.Registration.LoginDestination = "/signin"

	tests := []struct {
		dest   string
		want   AppMode
		wantOK bool
	}{
		{"/signin", ModeLogin, true},
		{"/login", ModeLogin, true},
		{"/register", ModeRegister, true},
		{"/", ModeRegister, true},
		{"/dashboard", ModeRegister, false},
	}
	for _, tt := range tests {
		t.Run(tt.dest, func(t *testing.T) {
			got, ok := ForDestination(&cfg, tt.dest)
			require.Equal(t, tt.want, got)
			require.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestAppMode_String(t *testing.T) {
	require.Equal(t, "register", ModeRegister.String())
	require.Equal(t, "login", ModeLogin.String())
	require.Equal(t, "unknown", AppMode(9).String())
}
