package docker

import (
	"errors"
	"net/http"

	"github.com/docker/docker/client"
	"github.com/ruffel/redeploy"
)

// Config holds configuration parameters for a Docker environment.
type Config struct {
	// Container is the target container name or ID.
	Container string

	// Host specifies the Docker daemon host (e.g. "unix:///var/run/docker.sock", "ssh://user@host").
	// If empty, DOCKER_HOST or the platform default is used.
	Host string
	// Version pins the Docker API version. If empty, version negotiation is used.
	Version string
	// HTTPClient allows providing a custom *http.Client (e.g. for TLS config).
	HTTPClient *http.Client

	// OS is the container's operating system (default: Linux).
	OS redeploy.TargetOS
}

// NewConfig creates a configuration for a target container.
func NewConfig(container string) Config {
	return Config{
		Container: container,
	}
}

// Validate checks if the minimal required configuration is present.
func (c Config) Validate() error {
	if c.Container == "" {
		return errors.New("configuration error: container cannot be empty")
	}

	return nil
}

// ClientOpts converts the Config into Docker client options.
func (c Config) ClientOpts() []client.Opt {
	opts := []client.Opt{
		client.FromEnv, // DOCKER_HOST, DOCKER_TLS_VERIFY, DOCKER_CERT_PATH
		client.WithAPIVersionNegotiation(),
	}

	if c.Host != "" {
		opts = append(opts, client.WithHost(c.Host))
	}

	if c.Version != "" {
		opts = append(opts, client.WithVersion(c.Version))
	}

	if c.HTTPClient != nil {
		opts = append(opts, client.WithHTTPClient(c.HTTPClient))
	}

	return opts
}
