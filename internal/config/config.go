package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ruffel/redeploy"
	"github.com/ruffel/redeploy/fileutil"
	"github.com/ruffel/redeploy/providers/ssh"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigFilename is read when no path is given.
	DefaultConfigFilename = "redeploy.yaml"

	// DefaultConsolePrefix starts every console announcement.
	DefaultConsolePrefix = "[redeploy]"

	// DefaultRetryDelay is the pause between attempts of a retried command.
	DefaultRetryDelay = 2 * time.Second

	// DefaultFilePermissions is the permission used when saving the file.
	DefaultFilePermissions = 0o600

	// PasswordEnv overrides target.password when set.
	PasswordEnv = "REDEPLOY_PASSWORD" //nolint:gosec // Variable name, not a credential.
)

var (
	errConfigIsNotSet        = errors.New("configuration is not set")
	errHostRequired          = errors.New("target.host or target.ssh_alias must be provided")
	errUserRequired          = errors.New("target.user must be provided")
	errSourceRequired        = errors.New("source must be provided")
	errInstallRequired       = errors.New("install.command must be provided")
	errRetryAttemptsNegative = errors.New("retry.attempts cannot be negative")
	errTargetConflict        = errors.New("target.local and target.container are mutually exclusive")
)

// Config holds every setting of one deployment.
type Config struct {
	Target      Target        `yaml:"target"`
	Source      string        `yaml:"source"`
	Destination string        `yaml:"destination"`
	Exclude     []string      `yaml:"exclude,omitempty"`
	Service     Service       `yaml:"service"`
	Install     Install       `yaml:"install"`
	Console     Console       `yaml:"console"`
	StepTimeout time.Duration `yaml:"step_timeout,omitempty"`
	Retry       Retry         `yaml:"retry"`
	LogLevel    string        `yaml:"log_level,omitempty"`
}

// Target describes the host to deploy to. Local deploys to this machine and Container
// to a running Docker container; otherwise the host is reached over SSH.
type Target struct {
	Local              bool          `yaml:"local,omitempty"`
	Container          string        `yaml:"container,omitempty"`
	DockerHost         string        `yaml:"docker_host,omitempty"`
	Host               string        `yaml:"host"`
	Port               int           `yaml:"port,omitempty"`
	User               string        `yaml:"user"`
	Password           string        `yaml:"password,omitempty"`
	KeyPath            string        `yaml:"key_path,omitempty"`
	UseAgent           bool          `yaml:"use_agent,omitempty"`
	SSHAlias           string        `yaml:"ssh_alias,omitempty"`
	SSHConfig          string        `yaml:"ssh_config,omitempty"`
	KnownHosts         string        `yaml:"known_hosts,omitempty"`
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify,omitempty"`
	ReuseConnection    bool          `yaml:"reuse_connection,omitempty"`
	OS                 string        `yaml:"os,omitempty"`
	Timeout            time.Duration `yaml:"timeout,omitempty"`
}

// Service names the remote service and how to stop it.
type Service struct {
	Name        string `yaml:"name"`
	StopCommand string `yaml:"stop_command,omitempty"`
	Sudo        bool   `yaml:"sudo,omitempty"`
}

// Install is the remote command that installs and starts the new files.
type Install struct {
	Command string `yaml:"command"`
	Sudo    bool   `yaml:"sudo,omitempty"`
}

// Console controls remote console announcements.
type Console struct {
	Enabled bool   `yaml:"enabled"`
	Prefix  string `yaml:"prefix,omitempty"`
	Command string `yaml:"command,omitempty"`
}

// Retry configures how often remote commands are attempted.
type Retry struct {
	Attempts int           `yaml:"attempts,omitempty"`
	Delay    time.Duration `yaml:"delay,omitempty"`
}

// Load reads configuration from path, applies the password override and validates it.
func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Read parses path on top of Default and applies the password override without
// validating, so callers can layer further overrides first.
func Read(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(contents, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	cfg.ApplyEnv()

	return cfg, nil
}

// ApplyEnv copies PasswordEnv into the target password when it is set.
func (c *Config) ApplyEnv() {
	if pw := os.Getenv(PasswordEnv); pw != "" {
		c.Target.Password = pw
	}
}

// Save writes cfg to path. The password is never persisted.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	out := *cfg
	out.Target.Password = ""

	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Default returns a Config with every default applied and no target.
func Default() *Config {
	return &Config{
		Console: Console{Enabled: true, Prefix: DefaultConsolePrefix},
		Retry:   Retry{Attempts: 1, Delay: DefaultRetryDelay},
		Install: Install{Command: "./install.sh"},
	}
}

// Validate checks required fields, fills in defaults and rejects destinations that are
// unsafe to wipe.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.Target.Local && cfg.Target.Container != "" {
		return errTargetConflict
	}

	if cfg.Target.Kind() == TargetSSH {
		if cfg.Target.Host == "" && cfg.Target.SSHAlias == "" {
			return errHostRequired
		}

		if cfg.Target.User == "" && cfg.Target.SSHAlias == "" {
			return errUserRequired
		}
	}

	if cfg.Target.Port < 0 || cfg.Target.Port > 65535 {
		return fmt.Errorf("target.port %d out of range", cfg.Target.Port)
	}

	targetOS := cfg.TargetOS()
	if cfg.Target.OS != "" && targetOS == redeploy.OSUnknown {
		return fmt.Errorf("target.os %q is not one of linux, darwin, windows", cfg.Target.OS)
	}

	if cfg.Source == "" {
		return errSourceRequired
	}

	if err := fileutil.ValidateWipeTarget(cfg.Destination, targetOS); err != nil {
		return fmt.Errorf("destination: %w", err)
	}

	if cfg.Install.Command == "" {
		return errInstallRequired
	}

	if _, err := redeploy.ParseCommand(cfg.Install.Command); err != nil {
		return fmt.Errorf("install.command: %w", err)
	}

	if cfg.Service.StopCommand != "" {
		if _, err := redeploy.ParseCommand(cfg.Service.StopCommand); err != nil {
			return fmt.Errorf("service.stop_command: %w", err)
		}
	}

	if cfg.Console.Command != "" {
		if _, err := redeploy.ParseCommand(cfg.Console.Command); err != nil {
			return fmt.Errorf("console.command: %w", err)
		}
	}

	if err := fileutil.ValidatePatterns(cfg.Exclude); err != nil {
		return fmt.Errorf("exclude: %w", err)
	}

	if cfg.Retry.Attempts < 0 {
		return errRetryAttemptsNegative
	}

	if cfg.Retry.Attempts == 0 {
		cfg.Retry.Attempts = 1
	}

	if cfg.Console.Prefix == "" {
		cfg.Console.Prefix = DefaultConsolePrefix
	}

	if cfg.StepTimeout < 0 {
		return fmt.Errorf("step_timeout %s cannot be negative", cfg.StepTimeout)
	}

	return nil
}

// TargetKind says how the target is reached.
type TargetKind int

const (
	// TargetSSH is a remote host reached over SSH/SFTP.
	TargetSSH TargetKind = iota
	// TargetLocal is this machine.
	TargetLocal
	// TargetContainer is a running Docker container.
	TargetContainer
)

// Kind returns how the target is reached.
func (t Target) Kind() TargetKind {
	switch {
	case t.Local:
		return TargetLocal
	case t.Container != "":
		return TargetContainer
	default:
		return TargetSSH
	}
}

// TargetOS returns the configured operating system. When unset it is OSLinux for SSH
// targets and the running system for local ones.
func (c *Config) TargetOS() redeploy.TargetOS {
	if c.Target.OS == "" {
		if c.Target.Local {
			return redeploy.DetectLocalOS()
		}

		return redeploy.OSLinux
	}

	return redeploy.ParseTargetOS(c.Target.OS)
}

// HostLabel is the name used for the target in messages.
func (c *Config) HostLabel() string {
	if c.Target.Local {
		return "localhost"
	}

	if c.Target.Container != "" {
		return "container/" + c.Target.Container
	}

	if c.Target.SSHAlias != "" {
		return c.Target.SSHAlias
	}

	return c.Target.Host
}

// SSHConfig builds the provider configuration. An ssh_alias is resolved through the
// OpenSSH client config first; explicit fields win over what the alias provides.
func (c *Config) SSHConfig() (ssh.Config, error) {
	var sc ssh.Config

	if c.Target.SSHAlias != "" {
		resolved, err := ssh.NewFromSSHConfig(c.Target.SSHAlias, ssh.ExpandHome(c.Target.SSHConfig))
		if err != nil {
			return ssh.Config{}, fmt.Errorf("resolve ssh alias %q: %w", c.Target.SSHAlias, err)
		}

		sc = resolved
	}

	overrideString(&sc.Host, c.Target.Host)
	overrideString(&sc.User, c.Target.User)
	overrideString(&sc.Password, c.Target.Password)
	overrideString(&sc.PrivateKeyPath, ssh.ExpandHome(c.Target.KeyPath))
	overrideString(&sc.KnownHostsPath, ssh.ExpandHome(c.Target.KnownHosts))

	if c.Target.Port != 0 {
		sc.Port = c.Target.Port
	}

	if c.Target.Timeout != 0 {
		sc.Timeout = c.Target.Timeout
	}

	sc.UseAgent = sc.UseAgent || c.Target.UseAgent
	sc.InsecureSkipVerify = sc.InsecureSkipVerify || c.Target.InsecureSkipVerify
	sc.ReuseConnection = c.Target.ReuseConnection
	sc.OS = c.TargetOS()

	return sc.WithDefaults(), nil
}

// ExecOptions returns the executor options shared by every remote step.
func (c *Config) ExecOptions() []redeploy.ExecOption {
	opts := []redeploy.ExecOption{redeploy.WithRetry(c.Retry.Attempts, c.Retry.Delay)}
	if c.StepTimeout > 0 {
		opts = append(opts, redeploy.WithTimeout(c.StepTimeout))
	}

	return opts
}

func overrideString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
