package ssh

import (
	"time"

	"github.com/ruffel/redeploy"
	"golang.org/x/crypto/ssh"
)

// Option defines a functional option for the SSH provider.
type Option func(*Config)

// WithConfig replaces the whole configuration. Options applied afterwards still win.
func WithConfig(c Config) Option {
	return func(cfg *Config) {
		*cfg = c
	}
}

// WithHost sets the target hostname.
func WithHost(host string) Option {
	return func(c *Config) {
		c.Host = host
	}
}

// WithUser sets the SSH user.
func WithUser(user string) Option {
	return func(c *Config) {
		c.User = user
	}
}

// WithPort sets the SSH port.
func WithPort(port int) Option {
	return func(c *Config) {
		c.Port = port
	}
}

// WithPassword sets the SSH password.
func WithPassword(password string) Option {
	return func(c *Config) {
		c.Password = password
	}
}

// WithKeyPath sets the path to the private key file.
func WithKeyPath(path string) Option {
	return func(c *Config) {
		c.PrivateKeyPath = path
	}
}

// WithAgent enables authentication through the agent at SSH_AUTH_SOCK.
func WithAgent() Option {
	return func(c *Config) {
		c.UseAgent = true
	}
}

// WithKnownHosts verifies host keys against the given known_hosts file.
func WithKnownHosts(path string) Option {
	return func(c *Config) {
		c.KnownHostsPath = path
	}
}

// WithHostKeyCallback sets a custom host key verifier.
func WithHostKeyCallback(cb ssh.HostKeyCallback) Option {
	return func(c *Config) {
		c.HostKeyCheck = cb
	}
}

// WithInsecureSkipVerify enables/disables strict host key checking.
func WithInsecureSkipVerify(skip bool) Option {
	return func(c *Config) {
		c.InsecureSkipVerify = skip
	}
}

// WithTimeout sets the dial and handshake timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.Timeout = d
	}
}

// WithTargetOS sets the operating system of the remote host.
func WithTargetOS(os redeploy.TargetOS) Option {
	return func(c *Config) {
		c.OS = os
	}
}

// WithConnectionReuse keeps one connection open for every Run and Upload instead of
// dialing a new one per call.
func WithConnectionReuse() Option {
	return func(c *Config) {
		c.ReuseConnection = true
	}
}
