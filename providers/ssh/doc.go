// Package ssh implements redeploy.Environment for remote hosts reached over SSH.
//
// Commands run in their own session on a shared connection (golang.org/x/crypto/ssh);
// files are copied over SFTP (github.com/pkg/sftp). The connection is established
// lazily on first use, and re-established on the next call if it could not be
// opened or was lost, so a transient failure during a best-effort step does not poison
// the steps that follow.
//
// Usage:
//
//	env, err := ssh.New(
//		ssh.WithHost("app01.internal"),
//		ssh.WithUser("deploy"),
//		ssh.WithKeyPath("~/.ssh/id_ed25519"),
//	)
package ssh
