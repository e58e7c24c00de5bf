package invoketest

import (
	"context"
	"fmt"
	"testing"

	"github.com/ruffel/redeploy"
)

// Standard categories for grouping tests.
const (
	CategoryCore        = "core"
	CategoryEnvironment = "environment"
	CategoryFilesystem  = "filesystem"
	CategoryErrors      = "errors"
)

// T is the minimal interface required for testify/assert and require.
type T interface {
	Errorf(format string, args ...any)
	FailNow()
	Skipf(format string, args ...any)
	Context() context.Context
	TempDir() string
	Name() string
}

// Target describes the provider under test.
type Target struct {
	// New returns a fresh environment. Contracts may close it.
	New func(t T) redeploy.Environment

	// RemoteDir returns an empty, writable directory on the target host.
	// Defaults to t.TempDir(), which is right for loopback targets.
	RemoteDir func(t T) string
}

func (tg Target) remoteDir(t T) string {
	if tg.RemoteDir != nil {
		return tg.RemoteDir(t)
	}

	return t.TempDir()
}

// TestCase defines a single behavioral contract requirement.
type TestCase struct {
	Category    string
	Name        string
	Description string
	Prereq      func(t T, env redeploy.Environment) (ok bool, reason string)
	Run         func(t T, env redeploy.Environment, remoteDir string)
}

// ID returns the stable, globally unique contract identifier.
func (tc TestCase) ID() string {
	return fmt.Sprintf("%s/%s", tc.Category, tc.Name)
}

// Verify is the standard Go test entry point for provider authors.
func Verify(t *testing.T, target Target) {
	t.Helper()

	for _, tc := range AllContracts() {
		t.Run(tc.ID(), func(t *testing.T) {
			env := target.New(t)

			defer func() { _ = env.Close() }()

			if tc.Prereq != nil {
				ok, reason := tc.Prereq(t, env)
				if !ok {
					t.Skipf("prereq unmet: %s", reason)
				}
			}

			tc.Run(t, env, target.remoteDir(t))
		})
	}
}
