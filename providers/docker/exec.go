package docker

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/ruffel/redeploy"
)

const (
	// inspectTimeout bounds how long Run waits for the daemon to report an exit code
	// once the output streams have closed.
	inspectTimeout = 30 * time.Second
	pollInterval   = 100 * time.Millisecond
)

// Run executes a command as a docker exec instance and waits for it to finish.
//
// Cancelling ctx detaches from the exec and returns immediately; the Engine API has no
// call to kill an exec instance, so the process inside the container runs to completion.
func (e *Environment) Run(ctx context.Context, cmd *redeploy.Command) (*redeploy.Result, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	if e.isClosed() {
		return nil, &redeploy.TransportError{Command: cmd, Err: redeploy.ErrEnvironmentClosed}
	}

	idResp, err := e.client.ContainerExecCreate(ctx, e.config.Container, buildExecConfig(cmd))
	if err != nil {
		return nil, &redeploy.TransportError{Command: cmd, Err: fmt.Errorf("failed to create exec: %w", err)}
	}

	stream, err := e.client.ContainerExecAttach(ctx, idResp.ID, container.ExecStartOptions{})
	if err != nil {
		return nil, &redeploy.TransportError{Command: cmd, Err: fmt.Errorf("failed to attach exec: %w", err)}
	}

	defer stream.Close()

	start := time.Now()
	outputDone := make(chan struct{})

	go func() {
		defer close(outputDone)

		_, _ = stdcopy.StdCopy(writerOrDiscard(cmd.Stdout), writerOrDiscard(cmd.Stderr), stream.Reader)
	}()

	select {
	case <-ctx.Done():
		stream.Close()
		<-outputDone

		return &redeploy.Result{ExitCode: -1, Duration: time.Since(start), Error: ctx.Err()},
			&redeploy.TransportError{Command: cmd, Err: ctx.Err()}
	case <-outputDone:
	}

	inspect, err := pollForExitCode(context.WithoutCancel(ctx), e.client, idResp.ID, inspectTimeout)
	duration := time.Since(start)

	if err != nil {
		return &redeploy.Result{ExitCode: -1, Duration: duration, Error: err},
			&redeploy.TransportError{Command: cmd, Err: fmt.Errorf("failed to inspect exec: %w", err)}
	}

	res := &redeploy.Result{ExitCode: inspect.ExitCode, Duration: duration}
	if inspect.ExitCode != 0 {
		return res, &redeploy.ExitError{Command: cmd, ExitCode: inspect.ExitCode}
	}

	return res, nil
}

// buildExecConfig translates a redeploy.Command to container.ExecOptions.
func buildExecConfig(cmd *redeploy.Command) container.ExecOptions {
	return container.ExecOptions{
		Cmd:          append([]string{cmd.Cmd}, cmd.Args...),
		Env:          cmd.Env,
		WorkingDir:   cmd.Dir,
		AttachStdout: true,
		AttachStderr: true,
	}
}

// pollForExitCode polls the Docker API until the exec process exits or timeout passes.
func pollForExitCode(ctx context.Context, cli *client.Client, execID string, timeout time.Duration) (container.ExecInspect, error) {
	pollCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		inspectResp, err := cli.ContainerExecInspect(pollCtx, execID)
		if err != nil {
			return inspectResp, err
		}

		if !inspectResp.Running {
			return inspectResp, nil
		}

		select {
		case <-pollCtx.Done():
			return inspectResp, pollCtx.Err()
		case <-ticker.C:
		}
	}
}

func writerOrDiscard(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}

	return w
}
