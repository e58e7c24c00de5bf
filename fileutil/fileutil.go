// Package fileutil provides shared file-transfer and path-safety helpers for redeploy
// providers and the deployment pipeline.
package fileutil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"

	"github.com/ruffel/redeploy"
)

// ErrUnsafeWipeTarget is returned when a directory is not safe to empty recursively.
var ErrUnsafeWipeTarget = errors.New("unsafe wipe target")

// ProgressReader wraps an io.Reader to report progress via a redeploy.ProgressFunc.
// Total should be set to the known total size, or 0 if unknown.
type ProgressReader struct {
	io.Reader

	Path    string
	Total   int64
	Current int64
	Fn      redeploy.ProgressFunc
}

// Read reads from the underlying reader and reports progress.
func (pr *ProgressReader) Read(p []byte) (int, error) {
	n, err := pr.Reader.Read(p)
	if n > 0 {
		pr.Current += int64(n)
		if pr.Fn != nil {
			pr.Fn(pr.Path, pr.Current, pr.Total)
		}
	}

	return n, err
}

// ContextReader checks for context cancellation before each Read call so that a long
// io.Copy can be interrupted.
type ContextReader struct {
	Ctx    context.Context //nolint:containedctx
	Reader io.Reader
}

// Read checks for context cancellation before delegating to the underlying reader.
func (cr *ContextReader) Read(p []byte) (int, error) {
	if cr.Ctx.Err() != nil {
		return 0, cr.Ctx.Err()
	}

	return cr.Reader.Read(p)
}

// CheckRemotePathTraversal validates that target is root or a child of root using
// forward-slash path conventions.
func CheckRemotePathTraversal(root, target string) error {
	cleanRoot := path.Clean(root)
	cleanTarget := path.Clean(target)

	if cleanRoot == cleanTarget {
		return nil
	}

	prefix := cleanRoot + "/"
	if cleanRoot == "/" {
		prefix = "/"
	}

	if !strings.HasPrefix(cleanTarget, prefix) {
		return fmt.Errorf("illegal remote file path: %s is not within %s", target, root)
	}

	return nil
}

var windowsDrive = regexp.MustCompile(`^[A-Za-z]:(/|$)`)

// protectedDirs are never accepted as wipe targets, compared after cleaning and
// lower-casing.
var protectedDirs = map[string]struct{}{
	"/bin": {}, "/boot": {}, "/dev": {}, "/etc": {}, "/home": {}, "/lib": {}, "/lib64": {},
	"/opt": {}, "/proc": {}, "/root": {}, "/run": {}, "/sbin": {}, "/srv": {}, "/sys": {},
	"/tmp": {}, "/usr": {}, "/var": {}, "/usr/local": {}, "/var/lib": {},
	"/applications": {}, "/library": {}, "/system": {}, "/users": {},
	"c:/windows": {}, "c:/program files": {}, "c:/program files (x86)": {}, "c:/users": {},
	"c:/programdata": {},
}

// ValidateWipeTarget reports whether dir may be emptied recursively on a host running
// targetOS. The path must be non-empty, absolute, free of ".." elements, and must not
// be a filesystem root or a well-known system directory.
func ValidateWipeTarget(dir string, targetOS redeploy.TargetOS) error {
	trimmed := strings.TrimSpace(dir)
	if trimmed == "" {
		return fmt.Errorf("%w: destination path is empty", ErrUnsafeWipeTarget)
	}

	if strings.ContainsAny(trimmed, "\x00\n\r") {
		return fmt.Errorf("%w: destination path %q contains control characters", ErrUnsafeWipeTarget, dir)
	}

	slashed := trimmed
	if targetOS == redeploy.OSWindows {
		slashed = strings.ReplaceAll(trimmed, `\`, "/")
	}

	for _, elem := range strings.Split(slashed, "/") {
		if elem == ".." {
			return fmt.Errorf("%w: destination path %q contains '..'", ErrUnsafeWipeTarget, dir)
		}
	}

	var cleaned string

	switch {
	case targetOS == redeploy.OSWindows && windowsDrive.MatchString(slashed):
		cleaned = slashed[:2] + path.Clean("/"+slashed[2:])
		if cleaned[2:] == "/" {
			return fmt.Errorf("%w: %q is a drive root", ErrUnsafeWipeTarget, dir)
		}
	case strings.HasPrefix(slashed, "/"):
		cleaned = path.Clean(slashed)
		if cleaned == "/" {
			return fmt.Errorf("%w: %q is the filesystem root", ErrUnsafeWipeTarget, dir)
		}
	default:
		return fmt.Errorf("%w: destination path %q is not absolute", ErrUnsafeWipeTarget, dir)
	}

	if _, ok := protectedDirs[strings.ToLower(cleaned)]; ok {
		return fmt.Errorf("%w: %q is a system directory", ErrUnsafeWipeTarget, dir)
	}

	return nil
}

// Excluded reports whether the slash-separated relative path rel matches any of the
// glob patterns, either as a whole or through one of its elements.
// Malformed patterns never match; use ValidatePatterns to reject them early.
func Excluded(rel string, patterns []string) bool {
	if rel == "" || rel == "." {
		return false
	}

	elems := strings.Split(rel, "/")

	for _, pattern := range patterns {
		if ok, _ := path.Match(pattern, rel); ok {
			return true
		}

		for _, elem := range elems {
			if ok, _ := path.Match(pattern, elem); ok {
				return true
			}
		}
	}

	return false
}

// ValidatePatterns returns an error for the first malformed glob pattern.
func ValidatePatterns(patterns []string) error {
	for _, pattern := range patterns {
		if _, err := path.Match(pattern, ""); err != nil {
			return fmt.Errorf("invalid exclude pattern %q: %w", pattern, err)
		}
	}

	return nil
}
