package docker

import (
	"net/http"

	"github.com/ruffel/redeploy"
)

// Option defines a functional option for the Docker provider.
type Option func(*Config)

// WithConfig replaces the whole configuration.
func WithConfig(c Config) Option {
	return func(cfg *Config) {
		*cfg = c
	}
}

// WithContainer sets the target container name or ID.
func WithContainer(name string) Option {
	return func(c *Config) {
		c.Container = name
	}
}

// WithHost sets the Docker daemon host.
func WithHost(host string) Option {
	return func(c *Config) {
		c.Host = host
	}
}

// WithVersion sets the Docker API version.
func WithVersion(version string) Option {
	return func(c *Config) {
		c.Version = version
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Config) {
		c.HTTPClient = client
	}
}

// WithTargetOS sets the container's operating system.
func WithTargetOS(os redeploy.TargetOS) Option {
	return func(c *Config) {
		c.OS = os
	}
}
