package redeploy

import (
	"os"
	"time"
)

// ExecConfig holds configuration derived from options.
type ExecConfig struct {
	SudoConfig    *SudoConfig
	RetryAttempts int
	RetryDelay    time.Duration
	Timeout       time.Duration // Per-attempt deadline; 0 means none
}

// SudoConfig defines privilege escalation options.
type SudoConfig struct {
	User        string // Target user (-u)
	PreserveEnv bool   // Preserve environment (-E)
}

// ExecOption defines a functional option for execution.
type ExecOption func(*ExecConfig)

// SudoOption defines a functional option for sudo configuration.
type SudoOption func(*SudoConfig)

// WithSudo wraps the command in sudo.
func WithSudo(opts ...SudoOption) ExecOption {
	return func(c *ExecConfig) {
		if c.SudoConfig == nil {
			c.SudoConfig = &SudoConfig{}
		}

		for _, o := range opts {
			o(c.SudoConfig)
		}
	}
}

// WithSudoUser sets the target user.
func WithSudoUser(user string) SudoOption {
	return func(s *SudoConfig) {
		s.User = user
	}
}

// WithSudoPreserveEnv preserves the environment.
func WithSudoPreserveEnv() SudoOption {
	return func(s *SudoConfig) {
		s.PreserveEnv = true
	}
}

// WithRetry enables retries with a fixed delay between attempts.
// attempts is the total number of attempts including the first one; values below 1
// are treated as 1.
func WithRetry(attempts int, delay time.Duration) ExecOption {
	return func(c *ExecConfig) {
		if attempts < 1 {
			attempts = 1
		}

		c.RetryAttempts = attempts
		c.RetryDelay = delay
	}
}

// WithTimeout bounds every attempt with its own deadline.
func WithTimeout(d time.Duration) ExecOption {
	return func(c *ExecConfig) {
		c.Timeout = d
	}
}

// FileConfig holds configuration for file transfers.
type FileConfig struct {
	Permissions os.FileMode // Destination perms override (0 means preserve source mode)
	Exclude     []string    // Glob patterns matched against slash-separated relative paths
	Progress    ProgressFunc
}

// FileOption defines a functional option for file transfers.
type FileOption func(*FileConfig)

// NewFileConfig applies opts to a zero FileConfig.
func NewFileConfig(opts ...FileOption) FileConfig {
	var cfg FileConfig
	for _, o := range opts {
		o(&cfg)
	}

	return cfg
}

// WithPermissions forces a specific destination file mode.
func WithPermissions(mode os.FileMode) FileOption {
	return func(c *FileConfig) {
		c.Permissions = mode
	}
}

// WithExclude skips source entries whose relative path, or any element of it, matches
// one of the glob patterns. Excluded directories are not descended into.
func WithExclude(patterns ...string) FileOption {
	return func(c *FileConfig) {
		c.Exclude = append(c.Exclude, patterns...)
	}
}

// ProgressFunc is a callback for tracking file transfer progress.
// path is the destination of the file currently being copied.
type ProgressFunc func(path string, current, total int64)

// WithProgress calls fn with progress updates.
func WithProgress(fn ProgressFunc) FileOption {
	return func(c *FileConfig) {
		c.Progress = fn
	}
}
