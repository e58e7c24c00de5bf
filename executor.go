package redeploy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// Executor layers sudo, retries, timeouts and output capture on top of an Environment.
type Executor struct {
	env Environment
}

// NewExecutor creates a new Executor with the given environment.
func NewExecutor(env Environment) *Executor {
	return &Executor{env: env}
}

// Run executes a command, respecting context cancellation and configured retry policies.
func (e *Executor) Run(ctx context.Context, cmd *Command, opts ...ExecOption) (*Result, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	cfg := ExecConfig{RetryAttempts: 1}
	for _, o := range opts {
		o(&cfg)
	}

	if cfg.SudoConfig != nil {
		wrapped, err := e.applySudo(cmd, cfg.SudoConfig)
		if err != nil {
			return nil, err
		}

		cmd = wrapped
	}

	var (
		lastRes *Result
		lastErr error
	)

	for i := range cfg.RetryAttempts {
		if i > 0 {
			if err := e.wait(ctx, cfg.RetryDelay); err != nil {
				return lastRes, err
			}
		}

		lastRes, lastErr = e.attempt(ctx, cmd, cfg.Timeout)
		if lastErr == nil && (lastRes == nil || lastRes.ExitCode == 0) {
			return lastRes, nil
		}
	}

	if lastErr == nil && lastRes != nil && lastRes.ExitCode != 0 {
		lastErr = &ExitError{Command: cmd, ExitCode: lastRes.ExitCode}
	}

	var exitErr *ExitError
	if cfg.RetryAttempts > 1 && !errors.As(lastErr, &exitErr) {
		return lastRes, fmt.Errorf("command execution failed after %d attempts: %w", cfg.RetryAttempts, lastErr)
	}

	return lastRes, lastErr
}

// RunBuffered executes a command and captures both stdout and stderr.
// Writers already attached to cmd still receive the output.
func (e *Executor) RunBuffered(ctx context.Context, cmd *Command, opts ...ExecOption) (*BufferedResult, error) {
	var stdoutBuf, stderrBuf bytes.Buffer

	cmdCopy := *cmd
	cmdCopy.Stdout = teeWriter(&stdoutBuf, cmd.Stdout)
	cmdCopy.Stderr = teeWriter(&stderrBuf, cmd.Stderr)

	result, err := e.Run(ctx, &cmdCopy, opts...)

	bufResult := &BufferedResult{
		Stdout: stdoutBuf.Bytes(),
		Stderr: stderrBuf.Bytes(),
	}
	if result != nil {
		bufResult.Result = *result
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		exitErr.Stderr = bufResult.Stderr
	}

	return bufResult, err
}

// RunShell executes a script using the target OS's default shell.
func (e *Executor) RunShell(ctx context.Context, script string, opts ...ExecOption) (*BufferedResult, error) {
	return e.RunBuffered(ctx, e.env.TargetOS().ShellCommand(script), opts...)
}

// TargetOS returns the operating system of the underlying environment.
func (e *Executor) TargetOS() TargetOS {
	return e.env.TargetOS()
}

// Upload copies a local file or directory to the remote destination.
// It delegates directly to the underlying Environment.
func (e *Executor) Upload(ctx context.Context, localPath, remotePath string, opts ...FileOption) error {
	return e.env.Upload(ctx, localPath, remotePath, opts...)
}

func (e *Executor) attempt(ctx context.Context, cmd *Command, timeout time.Duration) (*Result, error) {
	if timeout <= 0 {
		return e.env.Run(ctx, cmd)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return e.env.Run(ctx, cmd)
}

func (e *Executor) applySudo(cmd *Command, cfg *SudoConfig) (*Command, error) {
	if e.env.TargetOS() == OSWindows {
		return nil, fmt.Errorf("sudo on %s: %w", OSWindows, ErrNotSupported)
	}

	args := []string{"-n"}
	if cfg.User != "" {
		args = append(args, "-u", cfg.User)
	}

	if cfg.PreserveEnv {
		args = append(args, "-E")
	}

	args = append(args, "--", cmd.Cmd)

	newCmd := *cmd
	newCmd.Cmd = "sudo"
	newCmd.Args = append(args, cmd.Args...)

	return &newCmd, nil
}

func (e *Executor) wait(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

func teeWriter(buf *bytes.Buffer, w io.Writer) io.Writer {
	if w == nil {
		return buf
	}

	return io.MultiWriter(buf, w)
}
