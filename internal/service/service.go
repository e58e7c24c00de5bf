// Package service stops the remote service before new files are installed.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/ruffel/redeploy"
)

var errNoService = errors.New("no service name or stop command configured")

// Manager stops a named service on the target host.
type Manager struct {
	exec        *redeploy.Executor
	name        string
	stopCommand string
	opts        []redeploy.ExecOption
}

// NewManager returns a Manager for name. A non-empty stopCommand replaces the
// platform default and is split with shlex; it is not run through a shell.
func NewManager(exec *redeploy.Executor, name, stopCommand string, opts ...redeploy.ExecOption) *Manager {
	return &Manager{exec: exec, name: name, stopCommand: stopCommand, opts: opts}
}

// Configured reports whether there is anything to stop.
func (m *Manager) Configured() bool {
	return m.name != "" || m.stopCommand != ""
}

// Name returns the service name.
func (m *Manager) Name() string {
	return m.name
}

// StopCommand returns the command Stop would run.
func (m *Manager) StopCommand() (*redeploy.Command, error) {
	if m.stopCommand != "" {
		return redeploy.ParseCommand(m.stopCommand)
	}

	if m.name == "" {
		return nil, errNoService
	}

	switch m.exec.TargetOS() {
	case redeploy.OSWindows:
		return redeploy.Cmd("sc.exe").Args("stop", m.name).Build(), nil
	case redeploy.OSDarwin:
		return redeploy.Cmd("launchctl").Args("stop", m.name).Build(), nil
	case redeploy.OSLinux, redeploy.OSUnknown:
		fallthrough
	default:
		return redeploy.Cmd("systemctl").Args("stop", m.name).Build(), nil
	}
}

// Stop runs the stop command and returns its buffered result.
func (m *Manager) Stop(ctx context.Context) (*redeploy.BufferedResult, error) {
	cmd, err := m.StopCommand()
	if err != nil {
		return nil, err
	}

	res, err := m.exec.RunBuffered(ctx, cmd, m.opts...)
	if err != nil {
		return res, fmt.Errorf("stop service %q: %w", m.name, err)
	}

	return res, nil
}
