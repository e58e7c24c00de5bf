package redeploy

import (
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"
	"time"

	"github.com/google/shlex"
)

// Command configures a remote process execution.
type Command struct {
	Cmd  string   // Binary name or path to executable
	Args []string // Arguments to pass to the binary
	Env  []string // Environment variables in "KEY=VALUE" format
	Dir  string   // Working directory for execution

	// Output streams. If nil, output is discarded.
	Stdout io.Writer
	Stderr io.Writer
}

// Validate checks that the command is well-formed.
func (c *Command) Validate() error {
	if c == nil {
		return errors.New("command cannot be nil")
	}

	if strings.TrimSpace(c.Cmd) == "" {
		return errors.New("command binary cannot be empty")
	}

	return nil
}

// NewCommand creates a new Command with the given binary and arguments.
func NewCommand(binary string, args ...string) *Command {
	return &Command{
		Cmd:  binary,
		Args: args,
	}
}

// String returns a human-readable representation of the command for logs.
// Arguments containing whitespace are double-quoted; use TargetOS.CommandLine for the
// form that is actually sent to a shell.
func (c *Command) String() string {
	if len(c.Args) == 0 {
		return c.Cmd
	}

	var b strings.Builder
	b.WriteString(c.Cmd)

	for _, arg := range c.Args {
		b.WriteString(" ")

		if arg == "" || strings.ContainsAny(arg, " \t\n") {
			fmt.Fprintf(&b, "%q", arg)
		} else {
			b.WriteString(arg)
		}
	}

	return b.String()
}

// ParseCommand splits a shell-like command line into a Command using shlex.
// Quoted arguments are kept together; no shell expansion takes place.
func ParseCommand(cmdStr string) (*Command, error) {
	parts, err := shlex.Split(cmdStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse command %q: %w", cmdStr, err)
	}

	if len(parts) == 0 {
		return nil, errors.New("empty command")
	}

	return &Command{
		Cmd:  parts[0],
		Args: parts[1:],
	}, nil
}

// Result contains metadata about a completed command execution.
type Result struct {
	ExitCode int           // Process exit code (0 indicates success)
	Duration time.Duration // Time taken for execution
	Error    error         // Transport error (distinct from a non-zero exit code)
}

// BufferedResult extends Result with captured stdout/stderr.
// Returned by Executor.RunBuffered.
type BufferedResult struct {
	Result

	Stdout []byte
	Stderr []byte
}

// Success returns true if the command exited 0 without a transport error.
func (r *Result) Success() bool {
	return r.ExitCode == 0 && r.Error == nil
}

// Failed returns true if the command did not succeed.
func (r *Result) Failed() bool {
	return !r.Success()
}

// TargetOS identifies the operating system of the target host.
type TargetOS int

const (
	// OSUnknown represents an unidentified operating system.
	OSUnknown TargetOS = iota
	// OSLinux represents the Linux kernel.
	OSLinux
	// OSWindows represents Microsoft Windows.
	OSWindows
	// OSDarwin represents macOS (Darwin).
	OSDarwin
)

func (os TargetOS) String() string {
	switch os {
	case OSLinux:
		return "linux"
	case OSWindows:
		return "windows"
	case OSDarwin:
		return "darwin"
	case OSUnknown:
		return "unknown"
	default:
		return "unknown"
	}
}

// ShellCommand constructs a command that runs script inside the target's shell:
// "sh -c" on UNIX-likes, PowerShell on Windows.
func (os TargetOS) ShellCommand(script string) *Command {
	switch os {
	case OSWindows:
		return &Command{
			Cmd:  "powershell",
			Args: []string{"-NoProfile", "-NonInteractive", "-Command", script},
		}
	case OSLinux, OSDarwin, OSUnknown:
		fallthrough
	default:
		return &Command{
			Cmd:  "sh",
			Args: []string{"-c", script},
		}
	}
}

// QuoteArg quotes s so that the target shell passes it through as one literal word.
// POSIX shells get single quotes with embedded quotes written as '\''; PowerShell gets
// single quotes with embedded quotes doubled.
func (os TargetOS) QuoteArg(s string) string {
	if os == OSWindows {
		return "'" + strings.ReplaceAll(s, "'", "''") + "'"
	}

	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// CommandLine renders the binary and arguments of cmd as a single line for the target
// shell, quoting every element. Env and Dir are not included.
func (os TargetOS) CommandLine(cmd *Command) string {
	parts := make([]string, 0, len(cmd.Args)+2)

	if os == OSWindows {
		// PowerShell treats a leading quoted string as an expression; & invokes it.
		parts = append(parts, "&")
	}

	parts = append(parts, os.QuoteArg(cmd.Cmd))
	for _, arg := range cmd.Args {
		parts = append(parts, os.QuoteArg(arg))
	}

	return strings.Join(parts, " ")
}

// ParseTargetOS converts a typical OS string (e.g., "linux", "darwin") to a TargetOS.
func ParseTargetOS(osStr string) TargetOS {
	switch strings.ToLower(strings.TrimSpace(osStr)) {
	case "linux":
		return OSLinux
	case "windows", "windows_nt":
		return OSWindows
	case "darwin", "macos":
		return OSDarwin
	default:
		return OSUnknown
	}
}

// DetectLocalOS returns the TargetOS of the current running process.
func DetectLocalOS() TargetOS {
	return ParseTargetOS(runtime.GOOS)
}
