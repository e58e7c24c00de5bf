package ssh

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kevinburke/ssh_config"
	"github.com/ruffel/redeploy"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

const (
	// DefaultPort is the standard SSH port.
	DefaultPort = 22
	// DefaultTimeout bounds dialing and the SSH handshake.
	DefaultTimeout = 10 * time.Second
)

// Config holds all parameters required to establish an SSH connection.
type Config struct {
	// Connection details
	Host string // Hostname or IP address
	Port int    // Port number (default 22)
	User string // Username to authenticate as

	// Authentication methods (tried in order)
	Password       string // Password for authentication
	PrivateKey     string // PEM encoded private key content
	PrivateKeyPath string // Path to private key file (e.g. "~/.ssh/id_ed25519")
	UseAgent       bool   // If true, also offer keys held by the agent at SSH_AUTH_SOCK

	// Connection settings
	Timeout            time.Duration       // Dial and handshake timeout (default 10s)
	KnownHostsPath     string              // known_hosts file used when HostKeyCheck is nil
	HostKeyCheck       ssh.HostKeyCallback // Custom host key verification; wins over KnownHostsPath
	InsecureSkipVerify bool                // Disables host key checking. Use ONLY for testing.
	OS                 redeploy.TargetOS   // Target operating system (default OSLinux)
	ReuseConnection    bool                // Keep one connection for every call instead of dialing per call
}

// NewConfig creates a Config with defaults for port and timeout.
// Host keys are checked against ~/.ssh/known_hosts unless configured otherwise.
func NewConfig(host, username string) Config {
	return Config{
		Host:    host,
		User:    username,
		Port:    DefaultPort,
		Timeout: DefaultTimeout,
	}
}

// NewFromSSHConfig resolves alias through an OpenSSH client config file.
// An empty path means ~/.ssh/config.
func NewFromSSHConfig(alias, path string) (Config, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Config{}, fmt.Errorf("failed to open ssh config: %w", err)
		}

		path = filepath.Join(home, ".ssh", "config")
	}

	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("failed to open ssh config: %w", err)
	}

	defer func() { _ = f.Close() }()

	return NewFromSSHConfigReader(alias, f)
}

// NewFromSSHConfigReader parses OpenSSH client config data and resolves alias to its
// HostName, User, Port, IdentityFile, UserKnownHostsFile and StrictHostKeyChecking.
func NewFromSSHConfigReader(alias string, r io.Reader) (Config, error) {
	cfg, err := ssh_config.Decode(r)
	if err != nil {
		return Config{}, fmt.Errorf("failed to parse ssh config: %w", err)
	}

	hostName, err := cfg.Get(alias, "HostName")
	if err != nil || hostName == "" {
		hostName = alias
	}

	username, _ := cfg.Get(alias, "User")
	if username == "" {
		if u, _ := user.Current(); u != nil {
			username = u.Username
		}
	}

	c := NewConfig(hostName, username)

	if portStr, _ := cfg.Get(alias, "Port"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return Config{}, fmt.Errorf("invalid port %q for host %s: %w", portStr, alias, err)
		}

		c.Port = port
	}

	if identityFile, _ := cfg.Get(alias, "IdentityFile"); identityFile != "" {
		c.PrivateKeyPath = ExpandHome(identityFile)
	}

	if knownHosts, _ := cfg.Get(alias, "UserKnownHostsFile"); knownHosts != "" {
		// Only the first file is used when several are listed.
		c.KnownHostsPath = ExpandHome(strings.Fields(knownHosts)[0])
	}

	if strict, _ := cfg.Get(alias, "StrictHostKeyChecking"); strict == "no" {
		c.InsecureSkipVerify = true
	}

	return c, nil
}

// WithDefaults sets default values for zero-valued fields.
func (c Config) WithDefaults() Config {
	if c.Port == 0 {
		c.Port = DefaultPort
	}

	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}

	if c.InsecureSkipVerify && c.HostKeyCheck == nil {
		c.HostKeyCheck = ssh.InsecureIgnoreHostKey()
	}

	if c.HostKeyCheck == nil && c.KnownHostsPath == "" {
		if home, err := os.UserHomeDir(); err == nil {
			c.KnownHostsPath = filepath.Join(home, ".ssh", "known_hosts")
		}
	}

	c.PrivateKeyPath = ExpandHome(c.PrivateKeyPath)
	c.KnownHostsPath = ExpandHome(c.KnownHostsPath)

	if c.OS == redeploy.OSUnknown {
		c.OS = redeploy.OSLinux
	}

	return c
}

// Validate ensures all required fields are present.
func (c Config) Validate() error {
	if c.Host == "" {
		return errors.New("configuration error: host address cannot be empty")
	}

	if c.User == "" {
		return errors.New("configuration error: user cannot be empty")
	}

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("configuration error: port %d out of range", c.Port)
	}

	if c.HostKeyCheck == nil && c.KnownHostsPath == "" {
		return errors.New("configuration error: no host key verification; provide a known_hosts file or set InsecureSkipVerify=true (testing only)")
	}

	if c.Password == "" && c.PrivateKey == "" && c.PrivateKeyPath == "" && !c.UseAgent {
		return errors.New("configuration error: no authentication method; set a password, a private key or enable the agent")
	}

	return nil
}

// Address returns the host:port pair to dial.
func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ToClientConfig converts the Config to an ssh.ClientConfig.
// Private key files are read and known_hosts is loaded here; agent auth is added by
// the Environment, which owns the agent connection.
func (c Config) ToClientConfig() (*ssh.ClientConfig, error) {
	hostKeyCallback := c.HostKeyCheck
	if hostKeyCallback == nil {
		cb, err := knownhosts.New(c.KnownHostsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load known_hosts %s: %w", c.KnownHostsPath, err)
		}

		hostKeyCallback = cb
	}

	config := &ssh.ClientConfig{
		User:            c.User,
		Auth:            []ssh.AuthMethod{},
		HostKeyCallback: hostKeyCallback,
		Timeout:         c.Timeout,
	}

	if c.Password != "" {
		config.Auth = append(config.Auth, ssh.Password(c.Password))
	}

	if c.PrivateKey != "" {
		signer, err := ssh.ParsePrivateKey([]byte(c.PrivateKey))
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}

		config.Auth = append(config.Auth, ssh.PublicKeys(signer))
	}

	if c.PrivateKeyPath != "" {
		keyBytes, err := os.ReadFile(c.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read private key file: %w", err)
		}

		signer, err := ssh.ParsePrivateKey(keyBytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key file %s: %w", c.PrivateKeyPath, err)
		}

		config.Auth = append(config.Auth, ssh.PublicKeys(signer))
	}

	return config, nil
}

// ExpandHome replaces a leading "~/" with the current user's home directory.
func ExpandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}

	return filepath.Join(home, strings.TrimPrefix(p[1:], "/"))
}
