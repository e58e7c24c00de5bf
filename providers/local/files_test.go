package local

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/ruffel/redeploy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileTransfer(t *testing.T) {
	t.Parallel()

	env := New()

	t.Cleanup(func() { _ = env.Close() })

	content := []byte("release payload")

	t.Run("single file with permissions", func(t *testing.T) {
		t.Parallel()

		tmpDir := t.TempDir()
		srcFile := filepath.Join(tmpDir, "source.txt")
		dstFile := filepath.Join(tmpDir, "nested", "dest.txt")
		require.NoError(t, os.WriteFile(srcFile, content, 0o644))

		err := env.Upload(t.Context(), srcFile, dstFile, redeploy.WithPermissions(0o600))
		require.NoError(t, err)

		got, err := os.ReadFile(dstFile)
		require.NoError(t, err)
		assert.Equal(t, content, got)

		if runtime.GOOS != osWindows {
			info, err := os.Stat(dstFile)
			require.NoError(t, err)
			assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
		}
	})

	t.Run("directory contents with excludes", func(t *testing.T) {
		t.Parallel()

		srcDir := filepath.Join(t.TempDir(), "release")
		dstDir := filepath.Join(t.TempDir(), "opt", "api")

		require.NoError(t, os.MkdirAll(filepath.Join(srcDir, "sub"), 0o755))
		require.NoError(t, os.MkdirAll(filepath.Join(srcDir, ".git"), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(srcDir, "sub", "file.txt"), content, 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(srcDir, "debug.log"), content, 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(srcDir, ".git", "HEAD"), content, 0o644))

		var progressed []string

		err := env.Upload(t.Context(), srcDir, dstDir,
			redeploy.WithExclude(".git", "*.log"),
			redeploy.WithProgress(func(path string, current, total int64) {
				if current == total {
					progressed = append(progressed, filepath.Base(path))
				}
			}),
		)
		require.NoError(t, err)

		got, err := os.ReadFile(filepath.Join(dstDir, "sub", "file.txt"))
		require.NoError(t, err)
		assert.Equal(t, content, got)

		assert.NoFileExists(t, filepath.Join(dstDir, "debug.log"))
		assert.NoDirExists(t, filepath.Join(dstDir, ".git"))
		assert.NoDirExists(t, filepath.Join(dstDir, "release"))
		assert.Contains(t, progressed, "file.txt")
	})

	t.Run("missing source", func(t *testing.T) {
		t.Parallel()

		err := env.Upload(t.Context(), filepath.Join(t.TempDir(), "absent"), t.TempDir())
		require.Error(t, err)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()

		srcFile := filepath.Join(t.TempDir(), "source.txt")
		require.NoError(t, os.WriteFile(srcFile, content, 0o644))

		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		err := env.Upload(ctx, srcFile, filepath.Join(t.TempDir(), "dest.txt"))
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestFileTransfer_Closed(t *testing.T) {
	t.Parallel()

	env := New()
	_ = env.Close()

	srcFile := filepath.Join(t.TempDir(), "source.txt")
	require.NoError(t, os.WriteFile(srcFile, []byte("x"), 0o644))

	err := env.Upload(t.Context(), srcFile, filepath.Join(t.TempDir(), "dest.txt"))
	require.ErrorIs(t, err, redeploy.ErrEnvironmentClosed)
}

func TestCheckPathTraversal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		dest    string
		target  string
		wantErr bool
	}{
		{name: "release file", dest: "/srv/api", target: "/srv/api/bin/api"},
		{name: "destination itself", dest: "/srv/api/", target: "/srv/api"},
		{name: "dotted file name", dest: "/srv/api", target: "/srv/api/..env"},
		{name: "escapes into sibling release", dest: "/srv/api", target: "/srv/api/../api-v1/stale.bin", wantErr: true},
		{name: "sibling sharing a prefix", dest: "/srv/api", target: "/srv/api-staging/app.conf", wantErr: true},
		{name: "parent of destination", dest: "/srv/api/current", target: "/srv/api", wantErr: true},
		{name: "filesystem root destination", dest: "/", target: "/srv/api"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := checkPathTraversal(filepath.FromSlash(tt.dest), filepath.FromSlash(tt.target))
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "illegal file path")
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
