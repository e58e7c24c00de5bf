// Package redeploy provides the primitives used to push a service onto a remote host:
// commands, results, the Environment a command runs in, and an Executor that layers
// sudo, retries and timeouts on top of an Environment.
//
// # Core Interfaces
//
// - Environment: The connection to a target host (SSH, dry-run, mock).
//
// # Output
//
// Output is streamed, never buffered implicitly. Attach an `io.Writer` to a `Command`
// to capture stdout/stderr, or use `Executor.RunBuffered`.
//
// # Sudo
//
// Privilege escalation is supported via `redeploy.WithSudo()`. This uses `sudo -n` so a
// missing sudoers rule fails fast instead of hanging on a password prompt.
package redeploy

import (
	"context"
	"io"
)

// Environment abstracts the host that commands run on and files are copied to.
type Environment interface {
	io.Closer

	// Run executes a command synchronously.
	// A non-zero exit status is reported as *ExitError, a connection or session failure
	// as *TransportError. The Result is returned whenever the command actually ran.
	Run(ctx context.Context, cmd *Command) (*Result, error)

	// Upload copies a local file or directory to the remote destination.
	//
	// Directories are copied recursively: the contents of localPath end up inside
	// remotePath. Missing parent directories are created.
	Upload(ctx context.Context, localPath, remotePath string, opts ...FileOption) error

	// TargetOS returns the operating system of the target host.
	TargetOS() TargetOS
}
