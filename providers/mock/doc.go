// Package mock provides a controllable implementation of redeploy.Environment
// for testing purposes.
//
// It allows defining expectations for command execution and file operations,
// enabling deterministic unit tests for code that builds upon redeploy.
//
// Usage:
//
//	m := mock.New()
//	m.On("TargetOS").Return(redeploy.OSLinux)
//	m.On("Run", tmock.Anything, mock.Command("systemctl stop api")).Return(mock.Exited(0))
//	// pass 'm' to your logic
package mock
