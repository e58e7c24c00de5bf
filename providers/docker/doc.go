// Package docker provides a redeploy.Environment for an existing Docker container.
//
// Commands run as Docker Engine API "exec" instances and uploads are streamed to the
// daemon as tar archives, so a container can be redeployed the same way as an SSH host
// (target.container in the configuration). Non-TTY output is demultiplexed into the
// command's stdout and stderr writers.
//
// Usage:
//
//	// Connects to the daemon from DOCKER_HOST or the default socket.
//	env, err := docker.New(docker.WithContainer("api-staging"))
package docker
