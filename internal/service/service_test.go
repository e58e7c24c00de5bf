package service

import (
	"errors"
	"testing"

	"github.com/ruffel/redeploy"
	"github.com/ruffel/redeploy/providers/mock"
	"github.com/stretchr/testify/assert"
	tmock "github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestStopCommand(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		os       redeploy.TargetOS
		service  string
		override string
		want     string
	}{
		{"linux", redeploy.OSLinux, "api", "", "systemctl stop api"},
		{"windows", redeploy.OSWindows, "api", "", "sc.exe stop api"},
		{"darwin", redeploy.OSDarwin, "com.example.api", "", "launchctl stop com.example.api"},
		{"override", redeploy.OSLinux, "api", `supervisorctl stop "api worker"`, `supervisorctl stop "api worker"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env := mock.New()
			env.On("TargetOS").Return(tt.os).Maybe()

			cmd, err := NewManager(redeploy.NewExecutor(env), tt.service, tt.override).StopCommand()
			require.NoError(t, err)
			assert.Equal(t, tt.want, cmd.String())
		})
	}
}

func TestStopCommand_NothingConfigured(t *testing.T) {
	t.Parallel()

	env := mock.New()

	_, err := NewManager(redeploy.NewExecutor(env), "", "").StopCommand()
	require.ErrorIs(t, err, errNoService)
}

func TestStop_WithSudo(t *testing.T) {
	t.Parallel()

	env := mock.New()
	env.On("TargetOS").Return(redeploy.OSLinux)
	env.On("Run", tmock.Anything, mock.Command("sudo -n -- systemctl stop api")).Return(mock.Exited(0))

	_, err := NewManager(redeploy.NewExecutor(env), "api", "", redeploy.WithSudo()).Stop(t.Context())
	require.NoError(t, err)

	env.AssertExpectations(t)
}

func TestStop_Failure(t *testing.T) {
	t.Parallel()

	env := mock.New()
	env.On("TargetOS").Return(redeploy.OSLinux)
	env.On("Run", tmock.Anything, tmock.Anything).Return(mock.Exited(5))

	_, err := NewManager(redeploy.NewExecutor(env), "api", "").Stop(t.Context())

	var exitErr *redeploy.ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 5, exitErr.ExitCode)
	assert.Contains(t, err.Error(), `stop service "api"`)
}
