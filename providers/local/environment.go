package local

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/ruffel/redeploy"
)

var _ redeploy.Environment = (*Environment)(nil)

// waitDelay bounds how long Run waits for output pipes after the process is killed.
const waitDelay = 2 * time.Second

// Environment implements redeploy.Environment for the local operating system.
type Environment struct {
	targetOS redeploy.TargetOS

	mu     sync.RWMutex
	closed bool
}

// New creates a new local environment.
func New(opts ...Option) *Environment {
	e := &Environment{targetOS: redeploy.DetectLocalOS()}
	for _, o := range opts {
		o(e)
	}

	return e
}

// Run executes a command on the local machine and waits for it to finish.
// Cancelling ctx kills the whole process group.
func (e *Environment) Run(ctx context.Context, cmd *redeploy.Command) (*redeploy.Result, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	if e.isClosed() {
		return nil, &redeploy.TransportError{Command: cmd, Err: redeploy.ErrEnvironmentClosed}
	}

	execCmd := exec.CommandContext(ctx, cmd.Cmd, cmd.Args...)
	execCmd.Dir = cmd.Dir
	execCmd.Stdout = cmd.Stdout
	execCmd.Stderr = cmd.Stderr

	if len(cmd.Env) > 0 {
		execCmd.Env = append(os.Environ(), cmd.Env...)
	}

	// Kill the process group so children started by scripts die too.
	setProcessGroup(execCmd)
	execCmd.Cancel = func() error {
		if execCmd.Process == nil {
			return nil
		}

		return killProcessGroup(execCmd.Process.Pid)
	}
	execCmd.WaitDelay = waitDelay

	start := time.Now()
	err := execCmd.Run()
	duration := time.Since(start)

	if err == nil {
		return &redeploy.Result{Duration: duration}, nil
	}

	if ctx.Err() != nil {
		return &redeploy.Result{ExitCode: -1, Duration: duration, Error: ctx.Err()},
			&redeploy.TransportError{Command: cmd, Err: ctx.Err()}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()

		return &redeploy.Result{ExitCode: code, Duration: duration},
			&redeploy.ExitError{Command: cmd, ExitCode: code, Cause: err}
	}

	// Binary not found, permission denied, bad working directory.
	return &redeploy.Result{ExitCode: 127, Duration: duration, Error: err},
		&redeploy.TransportError{Command: cmd, Err: fmt.Errorf("failed to start %q: %w", cmd.Cmd, err)}
}

// TargetOS returns the operating system of the host machine.
func (e *Environment) TargetOS() redeploy.TargetOS {
	return e.targetOS
}

// Close marks the environment closed. Later calls fail with ErrEnvironmentClosed.
func (e *Environment) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.closed = true

	return nil
}

func (e *Environment) isClosed() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.closed
}
