package mock

import (
	"context"
	"io"

	"github.com/ruffel/redeploy"
	"github.com/stretchr/testify/mock"
)

// Environment implements a mock redeploy.Environment using testify/mock.
type Environment struct {
	mock.Mock
}

var _ redeploy.Environment = (*Environment)(nil)

// New creates a new mock environment.
func New() *Environment {
	return &Environment{}
}

// Upload mocks uploading a file or directory to the remote environment.
func (m *Environment) Upload(ctx context.Context, localPath, remotePath string, opts ...redeploy.FileOption) error {
	// Variadic capture fix for testify
	args := m.Called(ctx, localPath, remotePath, opts)

	return args.Error(0)
}

// Run mocks running a command to completion.
func (m *Environment) Run(ctx context.Context, cmd *redeploy.Command) (*redeploy.Result, error) {
	args := m.Called(ctx, cmd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*redeploy.Result), args.Error(1)
}

// TargetOS mocks returning the target operating system.
func (m *Environment) TargetOS() redeploy.TargetOS {
	args := m.Called()

	return args.Get(0).(redeploy.TargetOS)
}

// Close mocks closing the environment.
func (m *Environment) Close() error {
	args := m.Called()

	return args.Error(0)
}

// Command matches a *redeploy.Command whose display form equals line.
// Usage: m.On("Run", mock.Anything, mock.Command("systemctl stop api")).
func Command(line string) any {
	return mock.MatchedBy(func(cmd *redeploy.Command) bool {
		return cmd != nil && cmd.String() == line
	})
}

// CommandPrefix matches a *redeploy.Command whose display form starts with prefix.
func CommandPrefix(prefix string) any {
	return mock.MatchedBy(func(cmd *redeploy.Command) bool {
		if cmd == nil {
			return false
		}

		s := cmd.String()

		return len(s) >= len(prefix) && s[:len(prefix)] == prefix
	})
}

// Exited returns the Run results for a command that finished with code.
// A non-zero code yields a *redeploy.ExitError as the provider would.
// Usage: m.On("Run", mock.Anything, mock.Anything).Return(mock.Exited(3)).
func Exited(code int) (*redeploy.Result, error) {
	res := &redeploy.Result{ExitCode: code}
	if code == 0 {
		return res, nil
	}

	return res, &redeploy.ExitError{ExitCode: code}
}

// WriteOutput is a Run hook that writes content to the command's Stdout.
// Usage: m.On("Run", mock.Anything, mock.Anything).Run(mock.WriteOutput("ok")).Return(mock.Exited(0)).
func WriteOutput(content string) func(mock.Arguments) {
	return func(args mock.Arguments) {
		cmd, ok := args.Get(1).(*redeploy.Command)
		if ok && cmd.Stdout != nil {
			_, _ = io.WriteString(cmd.Stdout, content)
		}
	}
}
