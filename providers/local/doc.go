// Package local provides a redeploy.Environment for the machine redeploy runs on.
//
// It wraps os/exec and the os package, so a deployment can target the local host
// (target.local in the configuration) with the same pipeline used over SSH. Commands
// are executed directly without a shell; uploads are plain file copies.
//
// Usage:
//
//	env := local.New()
//	res, _ := env.Run(ctx, redeploy.NewCommand("echo", "hello"))
//	_ = res
package local
