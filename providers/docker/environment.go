package docker

import (
	"fmt"
	"sync"

	"github.com/docker/docker/client"
	"github.com/ruffel/redeploy"
)

var _ redeploy.Environment = (*Environment)(nil)

// Environment implements redeploy.Environment for a Docker container.
type Environment struct {
	config Config
	client *client.Client

	mu     sync.Mutex
	closed bool
}

// New creates a Docker client for the configured daemon. The daemon is not contacted
// until the first command or upload.
func New(opts ...Option) (*Environment, error) {
	var c Config
	for _, o := range opts {
		o(&c)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	cli, err := client.NewClientWithOpts(c.ClientOpts()...)
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	return &Environment{
		config: c,
		client: cli,
	}, nil
}

// TargetOS returns the operating system of the container.
func (e *Environment) TargetOS() redeploy.TargetOS {
	if e.config.OS == redeploy.OSUnknown {
		return redeploy.OSLinux
	}

	return e.config.OS
}

// Close shuts down the client connection.
func (e *Environment) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}

	e.closed = true

	return e.client.Close()
}

func (e *Environment) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.closed
}
