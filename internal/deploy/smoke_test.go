package deploy_test

import (
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"

	"github.com/ruffel/redeploy/internal/config"
	"github.com/ruffel/redeploy/internal/deploy"
	"github.com/ruffel/redeploy/providers/local"
	"github.com/ruffel/redeploy/providers/ssh"
	"github.com/ruffel/redeploy/providers/ssh/sshtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeHost answers console and service commands itself and hands everything else to a
// real shell.
type fakeHost struct {
	mu        sync.Mutex
	announced []string
	stopCode  int
}

func (h *fakeHost) handle(command string, stdout, stderr io.Writer) int {
	switch {
	case strings.Contains(command, "| wall"):
		h.mu.Lock()
		h.announced = append(h.announced, command)
		h.mu.Unlock()

		return 0
	case strings.Contains(command, "systemctl"):
		return h.stopCode
	default:
		return sshtest.ShellHandler(command, stdout, stderr)
	}
}

func (h *fakeHost) messages() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	return append([]string(nil), h.announced...)
}

func smokeConfig(t *testing.T, srv *sshtest.Server, installScript string) (*config.Config, string) {
	t.Helper()

	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "bin"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "bin", "api"), []byte("v2"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "notes.tmp"), []byte("scratch"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "install.sh"), []byte(installScript), 0o755))

	dst := filepath.Join(t.TempDir(), "srv", "api")
	require.NoError(t, os.MkdirAll(filepath.Join(dst, "old"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dst, "old", "stale.bin"), []byte("v1"), 0o644))

	cfg := config.Default()
	cfg.Target = config.Target{
		Host:     srv.Host(),
		Port:     srv.Port(),
		User:     sshtest.User,
		Password: sshtest.Password,
	}
	cfg.Source = src
	cfg.Destination = dst
	cfg.Exclude = []string{"*.tmp"}
	cfg.Service.Name = "api"
	require.NoError(t, config.Validate(cfg))

	return cfg, dst
}

func newSSHEnv(t *testing.T, srv *sshtest.Server, cfg *config.Config) *ssh.Environment {
	t.Helper()

	sc, err := cfg.SSHConfig()
	require.NoError(t, err)

	env, err := ssh.New(ssh.WithConfig(sc), ssh.WithHostKeyCallback(srv.HostKeyCallback()))
	require.NoError(t, err)

	t.Cleanup(func() { _ = env.Close() })

	return env
}

func TestSmoke_FullDeployment(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell behind the test server")
	}

	host := &fakeHost{stopCode: 5}
	srv := sshtest.NewServer(t, host.handle)

	cfg, dst := smokeConfig(t, srv, "#!/bin/sh\necho started > installed.marker\n")

	report, err := deploy.FromConfig(newSSHEnv(t, srv, cfg), cfg).Run(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 0, deploy.ExitCode(err))

	// The failing service stop was ignored.
	assert.Equal(t, 1, report.Count(deploy.StatusIgnored))

	cmds := srv.Commands()
	require.Len(t, cmds, 5)
	assert.Contains(t, cmds[0], "deployment started")
	assert.Contains(t, cmds[1], "'systemctl' 'stop' 'api'")
	assert.Contains(t, cmds[2], "-mindepth 1 -delete")
	assert.Contains(t, cmds[3], "'./install.sh'")
	assert.Contains(t, cmds[4], "deployment complete")

	// Five commands and one upload, each on its own connection.
	assert.Equal(t, 6, srv.Connections())

	assert.NoFileExists(t, filepath.Join(dst, "old", "stale.bin"))
	assert.NoFileExists(t, filepath.Join(dst, "notes.tmp"))
	assert.FileExists(t, filepath.Join(dst, "bin", "api"))

	marker, err := os.ReadFile(filepath.Join(dst, "installed.marker"))
	require.NoError(t, err)
	assert.Equal(t, "started\n", string(marker))
}

func TestSmoke_InstallFailure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell behind the test server")
	}

	host := &fakeHost{}
	srv := sshtest.NewServer(t, host.handle)

	cfg, _ := smokeConfig(t, srv, "#!/bin/sh\necho 'missing unit file' >&2\nexit 3\n")

	report, err := deploy.FromConfig(newSSHEnv(t, srv, cfg), cfg).Run(t.Context())
	require.Error(t, err)
	assert.Equal(t, 1, deploy.ExitCode(err))
	assert.Equal(t, deploy.StepInstall, report.Failed().Name)

	msgs := host.messages()
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[1], "deployment failed at install: exit code 3")
}

func TestSmoke_UnreachableHost(t *testing.T) {
	t.Parallel()

	host := &fakeHost{}
	srv := sshtest.NewServer(t, host.handle)

	cfg, dst := smokeConfig(t, srv, "#!/bin/sh\n")
	env := newSSHEnv(t, srv, cfg)
	require.NoError(t, srv.Close())

	report, err := deploy.FromConfig(env, cfg).Run(t.Context())
	require.Error(t, err)
	assert.Equal(t, 1, deploy.ExitCode(err))

	// Announce and stop fail quietly; the wipe is the first hard failure.
	assert.Equal(t, deploy.StepWipeDestination, report.Failed().Name)
	assert.FileExists(t, filepath.Join(dst, "old", "stale.bin"))
}

func TestWipe_SymlinkedDestination(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == "windows" {
		t.Skip("symlinked POSIX destination")
	}

	base := t.TempDir()
	release := filepath.Join(base, "app-v1")
	current := filepath.Join(base, "app")

	require.NoError(t, os.MkdirAll(filepath.Join(release, "lib"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(release, "stale.bin"), []byte("v1"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(release, "lib", "old.so"), []byte("v1"), 0o644))
	require.NoError(t, os.Symlink(release, current))

	env := local.New()

	t.Cleanup(func() { _ = env.Close() })

	cmd, err := deploy.New(env, deploy.Options{Destination: current}).WipeCommand()
	require.NoError(t, err)

	_, err = env.Run(t.Context(), cmd)
	require.NoError(t, err)

	entries, err := os.ReadDir(release)
	require.NoError(t, err)
	assert.Empty(t, entries)

	// The link itself survives and still points at the emptied release.
	target, err := os.Readlink(current)
	require.NoError(t, err)
	assert.Equal(t, release, target)
}
