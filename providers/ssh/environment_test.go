package ssh_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/ruffel/redeploy"
	"github.com/ruffel/redeploy/invoketest"
	"github.com/ruffel/redeploy/providers/ssh"
	"github.com/ruffel/redeploy/providers/ssh/sshtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEnv(t *testing.T, srv *sshtest.Server, opts ...ssh.Option) *ssh.Environment {
	t.Helper()

	base := []ssh.Option{
		ssh.WithHost(srv.Host()),
		ssh.WithPort(srv.Port()),
		ssh.WithUser(sshtest.User),
		ssh.WithPassword(sshtest.Password),
		ssh.WithHostKeyCallback(srv.HostKeyCallback()),
		ssh.WithTimeout(2 * time.Second),
	}

	env, err := ssh.New(append(base, opts...)...)
	require.NoError(t, err)

	t.Cleanup(func() { _ = env.Close() })

	return env
}

func TestNew_RequiresAuth(t *testing.T) {
	t.Parallel()

	_, err := ssh.New(ssh.WithHost("example.com"), ssh.WithUser("root"), ssh.WithInsecureSkipVerify(true))
	require.Error(t, err)
}

func TestRun_SendsQuotedCommandLine(t *testing.T) {
	t.Parallel()

	srv := sshtest.NewServer(t, func(_ string, stdout, _ io.Writer) int {
		_, _ = io.WriteString(stdout, "ok\n")

		return 0
	})
	env := newEnv(t, srv)

	res, err := redeploy.NewExecutor(env).RunBuffered(t.Context(), redeploy.Cmd("systemctl").Args("stop", "api").Dir("/opt/app").Build())
	require.NoError(t, err)

	assert.Equal(t, "ok\n", string(res.Stdout))
	assert.Equal(t, []string{"cd '/opt/app' && 'systemctl' 'stop' 'api'"}, srv.Commands())
}

func TestRun_NonZeroExit(t *testing.T) {
	t.Parallel()

	srv := sshtest.NewServer(t, func(_ string, _, stderr io.Writer) int {
		_, _ = io.WriteString(stderr, "unit not found")

		return 5
	})
	env := newEnv(t, srv)

	res, err := redeploy.NewExecutor(env).RunBuffered(t.Context(), redeploy.NewCommand("systemctl", "stop", "ghost"))
	require.Error(t, err)

	var exitErr *redeploy.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 5, exitErr.ExitCode)
	assert.Equal(t, "unit not found", string(exitErr.Stderr))
	assert.Equal(t, 5, res.ExitCode)
	assert.False(t, redeploy.IsTransport(err))
}

func TestRun_WrongPasswordIsTransportError(t *testing.T) {
	t.Parallel()

	srv := sshtest.NewServer(t, sshtest.Exit(0))
	env := newEnv(t, srv, ssh.WithPassword("wrong"))

	_, err := env.Run(t.Context(), redeploy.NewCommand("true"))
	require.Error(t, err)
	assert.True(t, redeploy.IsTransport(err))
	assert.Empty(t, srv.Commands())
}

func TestRun_UnreachableHostIsTransportError(t *testing.T) {
	t.Parallel()

	srv := sshtest.NewServer(t, sshtest.Exit(0))
	env := newEnv(t, srv)
	require.NoError(t, srv.Close())

	_, err := env.Run(t.Context(), redeploy.NewCommand("true"))
	require.Error(t, err)
	assert.True(t, redeploy.IsTransport(err))
}

func TestRun_RedialsAfterConnectionLoss(t *testing.T) {
	t.Parallel()

	srv := sshtest.NewServer(t, sshtest.Exit(0))
	env := newEnv(t, srv, ssh.WithConnectionReuse())

	require.NoError(t, env.Connect(t.Context()))

	_, err := env.Run(t.Context(), redeploy.NewCommand("echo", "one"))
	require.NoError(t, err)

	srv.DropConnections()

	// The cached client is dead; the first call notices, later calls redial.
	_, err = env.Run(t.Context(), redeploy.NewCommand("echo", "two"))
	if err != nil {
		assert.True(t, redeploy.IsTransport(err))

		_, err = env.Run(t.Context(), redeploy.NewCommand("echo", "two"))
	}

	require.NoError(t, err)
	assert.Equal(t, []string{"'echo' 'one'", "'echo' 'two'"}, srv.Commands())
}

func TestConnectionPerCall(t *testing.T) {
	t.Parallel()

	src := filepath.Join(t.TempDir(), "app.conf")
	require.NoError(t, os.WriteFile(src, []byte("port=8080"), 0o644))

	tests := []struct {
		name      string
		opts      []ssh.Option
		wantConns int
	}{
		{name: "default dials per call", wantConns: 4},
		{name: "reuse keeps one connection", opts: []ssh.Option{ssh.WithConnectionReuse()}, wantConns: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := sshtest.NewServer(t, sshtest.Exit(0))
			env := newEnv(t, srv, tt.opts...)

			for range 3 {
				_, err := env.Run(t.Context(), redeploy.NewCommand("true"))
				require.NoError(t, err)
			}

			require.NoError(t, env.Upload(t.Context(), src, filepath.Join(t.TempDir(), "app.conf")))

			assert.Len(t, srv.Commands(), 3)
			assert.Equal(t, tt.wantConns, srv.Connections())
		})
	}
}

func TestConnect_ChecksReachability(t *testing.T) {
	t.Parallel()

	srv := sshtest.NewServer(t, sshtest.Exit(0))
	env := newEnv(t, srv)

	require.NoError(t, env.Connect(t.Context()))
	assert.Equal(t, 1, srv.Connections())

	_, err := env.Run(t.Context(), redeploy.NewCommand("true"))
	require.NoError(t, err)
	assert.Equal(t, 2, srv.Connections())
}

func TestRun_ContextCancelled(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	srv := sshtest.NewServer(t, func(string, io.Writer, io.Writer) int {
		<-release

		return 0
	})
	env := newEnv(t, srv)

	ctx, cancel := context.WithTimeout(t.Context(), 200*time.Millisecond)
	defer cancel()

	res, err := env.Run(ctx, redeploy.NewCommand("sleep", "60"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.True(t, redeploy.IsTransport(err))
	assert.Equal(t, -1, res.ExitCode)
}

func TestRun_AfterClose(t *testing.T) {
	t.Parallel()

	srv := sshtest.NewServer(t, sshtest.Exit(0))
	env := newEnv(t, srv)

	require.NoError(t, env.Close())

	_, err := env.Run(t.Context(), redeploy.NewCommand("true"))
	require.ErrorIs(t, err, redeploy.ErrEnvironmentClosed)
}

func TestUpload_DirectoryWithExcludes(t *testing.T) {
	t.Parallel()

	srv := sshtest.NewServer(t, sshtest.Exit(0))
	env := newEnv(t, srv)

	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "lib"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(src, "logs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "app.bin"), []byte("bin"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "lib", "util.so"), []byte("so"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "logs", "old.log"), []byte("log"), 0o644))

	dst := filepath.Join(t.TempDir(), "srv", "app")

	var files []string

	err := env.Upload(t.Context(), src, dst,
		redeploy.WithExclude("logs"),
		redeploy.WithProgress(func(path string, current, total int64) {
			if current == total {
				files = append(files, filepath.Base(path))
			}
		}))
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(dst, "lib", "util.so"))
	require.NoError(t, err)
	assert.Equal(t, "so", string(got))
	assert.NoDirExists(t, filepath.Join(dst, "logs"))
	assert.ElementsMatch(t, []string{"app.bin", "util.so"}, files)

	if runtime.GOOS != "windows" {
		info, err := os.Stat(filepath.Join(dst, "app.bin"))
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
	}
}

func TestUpload_MissingSource(t *testing.T) {
	t.Parallel()

	srv := sshtest.NewServer(t, sshtest.Exit(0))
	env := newEnv(t, srv)

	err := env.Upload(t.Context(), filepath.Join(t.TempDir(), "missing"), filepath.Join(t.TempDir(), "dst"))
	require.Error(t, err)
	assert.False(t, redeploy.IsTransport(err))
}

func TestContract(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("contract suite drives a POSIX shell through the test server")
	}

	srv := sshtest.NewServer(t, sshtest.ShellHandler)

	invoketest.Verify(t, invoketest.Target{
		New: func(invoketest.T) redeploy.Environment {
			env, err := ssh.New(
				ssh.WithHost(srv.Host()),
				ssh.WithPort(srv.Port()),
				ssh.WithUser(sshtest.User),
				ssh.WithPassword(sshtest.Password),
				ssh.WithHostKeyCallback(srv.HostKeyCallback()),
			)
			require.NoError(t, err)

			return env
		},
	})
}
