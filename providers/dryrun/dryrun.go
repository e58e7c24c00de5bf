// Package dryrun provides a redeploy.Environment that performs nothing remotely.
//
// Every command and upload is recorded and, optionally, printed as the line that would
// be sent to the target. Uploads walk the local source so that missing files and
// exclude patterns are reported exactly as a real transfer would see them.
package dryrun

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/ruffel/redeploy"
	"github.com/ruffel/redeploy/fileutil"
)

var _ redeploy.Environment = (*Environment)(nil)

// Operation is one recorded call.
type Operation struct {
	Kind    string // "run" or "upload"
	Line    string // command line, or "local -> remote"
	Files   int    // files that an upload would transfer
	Command *redeploy.Command
}

// Option configures an Environment.
type Option func(*Environment)

// WithOutput prints each operation to w as it is recorded.
func WithOutput(w io.Writer) Option {
	return func(e *Environment) {
		e.out = w
	}
}

// WithTargetOS sets the operating system commands are rendered for.
func WithTargetOS(os redeploy.TargetOS) Option {
	return func(e *Environment) {
		e.os = os
	}
}

// Environment records operations instead of executing them.
type Environment struct {
	out io.Writer
	os  redeploy.TargetOS

	mu     sync.Mutex
	ops    []Operation
	closed bool
}

// New creates a dry-run environment. The target OS defaults to the local one.
func New(opts ...Option) *Environment {
	e := &Environment{os: redeploy.DetectLocalOS()}
	for _, o := range opts {
		o(e)
	}

	if e.os == redeploy.OSUnknown {
		e.os = redeploy.OSLinux
	}

	return e
}

// Run records cmd and reports success.
func (e *Environment) Run(ctx context.Context, cmd *redeploy.Command) (*redeploy.Result, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, &redeploy.TransportError{Command: cmd, Err: err}
	}

	line := e.os.CommandLine(cmd)
	if cmd.Dir != "" {
		line = fmt.Sprintf("(in %s) %s", cmd.Dir, line)
	}

	if err := e.record(Operation{Kind: "run", Line: line, Command: cmd}); err != nil {
		return nil, &redeploy.TransportError{Command: cmd, Err: err}
	}

	return &redeploy.Result{}, nil
}

// Upload validates the local source, counts the files that would be sent and records
// the transfer.
func (e *Environment) Upload(ctx context.Context, localPath, remotePath string, opts ...redeploy.FileOption) error {
	cfg := redeploy.NewFileConfig(opts...)

	info, err := os.Stat(localPath)
	if err != nil {
		return fmt.Errorf("failed to stat upload source: %w", err)
	}

	files := 1
	if info.IsDir() {
		files, err = countFiles(ctx, localPath, cfg.Exclude)
		if err != nil {
			return err
		}
	}

	return e.record(Operation{
		Kind:  "upload",
		Line:  fmt.Sprintf("%s -> %s", localPath, remotePath),
		Files: files,
	})
}

// TargetOS returns the configured operating system.
func (e *Environment) TargetOS() redeploy.TargetOS {
	return e.os
}

// Close marks the environment closed. It is safe to call more than once.
func (e *Environment) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.closed = true

	return nil
}

// Operations returns the recorded operations in order.
func (e *Environment) Operations() []Operation {
	e.mu.Lock()
	defer e.mu.Unlock()

	return append([]Operation(nil), e.ops...)
}

func (e *Environment) record(op Operation) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return redeploy.ErrEnvironmentClosed
	}

	e.ops = append(e.ops, op)

	if e.out != nil {
		if op.Kind == "upload" {
			_, _ = fmt.Fprintf(e.out, "%s: %s (%d files)\n", op.Kind, op.Line, op.Files)
		} else {
			_, _ = fmt.Fprintf(e.out, "%s: %s\n", op.Kind, op.Line)
		}
	}

	return nil
}

func countFiles(ctx context.Context, root string, exclude []string) (int, error) {
	n := 0

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		rel, err := filepath.Rel(root, path)
		if err != nil || rel == "." {
			return err
		}

		if fileutil.Excluded(filepath.ToSlash(rel), exclude) {
			if d.IsDir() {
				return filepath.SkipDir
			}

			return nil
		}

		if !d.IsDir() {
			n++
		}

		return nil
	})

	return n, err
}
