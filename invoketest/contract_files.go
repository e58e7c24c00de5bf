package invoketest

import (
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/ruffel/redeploy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// joinRemote handles path joining for the target environment.
func joinRemote(env redeploy.Environment, base string, parts ...string) string {
	if env.TargetOS() == redeploy.OSWindows {
		return strings.Join(append([]string{base}, parts...), `\`)
	}

	return path.Join(append([]string{base}, parts...)...)
}

// readRemote returns the content of a remote file, trimmed.
func readRemote(t T, env redeploy.Environment, remotePath string) string {
	cmd := redeploy.NewCommand("cat", remotePath)
	if env.TargetOS() == redeploy.OSWindows {
		cmd = redeploy.NewCommand("Get-Content", "-Raw", "-LiteralPath", remotePath)
	}

	res, err := redeploy.NewExecutor(env).RunBuffered(t.Context(), cmd)
	require.NoError(t, err)

	return strings.TrimSpace(string(res.Stdout))
}

func remoteExists(t T, env redeploy.Environment, remotePath string) bool {
	cmd := redeploy.NewCommand("test", "-e", remotePath)
	if env.TargetOS() == redeploy.OSWindows {
		cmd = env.TargetOS().ShellCommand("if (-not (Test-Path -LiteralPath " + env.TargetOS().QuoteArg(remotePath) + ")) { exit 1 }")
	}

	_, err := env.Run(t.Context(), cmd)

	return err == nil
}

func writeTree(t T, root string, files map[string]string) {
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

//nolint:funlen // Contract registration function; length comes from the number of cases.
func fileContracts() []TestCase {
	return []TestCase{
		{
			Category:    CategoryFilesystem,
			Name:        "upload-failure-source-missing",
			Description: "Error returned when we try to upload a non-existent local file",
			Run: func(t T, env redeploy.Environment, remoteDir string) {
				src := filepath.Join(t.TempDir(), "this-file-really-does-not-exist-12345")

				err := env.Upload(t.Context(), src, joinRemote(env, remoteDir, "should-not-exist"))
				require.Error(t, err)
				assert.False(t, remoteExists(t, env, joinRemote(env, remoteDir, "should-not-exist")))
			},
		},
		{
			Category:    CategoryFilesystem,
			Name:        "upload-file-creates-parents",
			Description: "A single file upload creates missing parent directories",
			Run: func(t T, env redeploy.Environment, remoteDir string) {
				srcPath := filepath.Join(t.TempDir(), "service.conf")
				require.NoError(t, os.WriteFile(srcPath, []byte("port=8080"), 0o644))

				dstPath := joinRemote(env, remoteDir, "etc", "api", "service.conf")
				require.NoError(t, env.Upload(t.Context(), srcPath, dstPath))

				assert.Equal(t, "port=8080", readRemote(t, env, dstPath))
			},
		},
		{
			Category:    CategoryFilesystem,
			Name:        "upload-file-overwrites",
			Description: "Uploading over an existing file replaces its content entirely",
			Run: func(t T, env redeploy.Environment, remoteDir string) {
				srcPath := filepath.Join(t.TempDir(), "version.txt")
				dstPath := joinRemote(env, remoteDir, "version.txt")

				require.NoError(t, os.WriteFile(srcPath, []byte("version 1.0.0 with a long tail"), 0o644))
				require.NoError(t, env.Upload(t.Context(), srcPath, dstPath))

				require.NoError(t, os.WriteFile(srcPath, []byte("version 2"), 0o644))
				require.NoError(t, env.Upload(t.Context(), srcPath, dstPath))

				assert.Equal(t, "version 2", readRemote(t, env, dstPath))
			},
		},
		{
			Category:    CategoryFilesystem,
			Name:        "upload-dir-copies-contents",
			Description: "A directory upload places the source's contents inside the destination",
			Run: func(t T, env redeploy.Environment, remoteDir string) {
				src := t.TempDir()
				writeTree(t, src, map[string]string{
					"bin/api":          "binary",
					"install.sh":       "#!/bin/sh",
					"static/css/a.css": "body{}",
				})

				dst := joinRemote(env, remoteDir, "app")
				require.NoError(t, env.Upload(t.Context(), src, dst))

				assert.Equal(t, "binary", readRemote(t, env, joinRemote(env, dst, "bin", "api")))
				assert.Equal(t, "#!/bin/sh", readRemote(t, env, joinRemote(env, dst, "install.sh")))
				assert.Equal(t, "body{}", readRemote(t, env, joinRemote(env, dst, "static", "css", "a.css")))
				assert.False(t, remoteExists(t, env, joinRemote(env, dst, filepath.Base(src))))
			},
		},
		{
			Category:    CategoryFilesystem,
			Name:        "upload-dir-honours-exclude",
			Description: "Excluded files and directories are not copied",
			Run: func(t T, env redeploy.Environment, remoteDir string) {
				src := t.TempDir()
				writeTree(t, src, map[string]string{
					"app.jar":     "jar",
					"debug.tmp":   "tmp",
					".git/HEAD":   "ref",
					"conf/app.ok": "ok",
				})

				dst := joinRemote(env, remoteDir, "app")
				require.NoError(t, env.Upload(t.Context(), src, dst, redeploy.WithExclude(".git", "*.tmp")))

				assert.True(t, remoteExists(t, env, joinRemote(env, dst, "app.jar")))
				assert.True(t, remoteExists(t, env, joinRemote(env, dst, "conf", "app.ok")))
				assert.False(t, remoteExists(t, env, joinRemote(env, dst, "debug.tmp")))
				assert.False(t, remoteExists(t, env, joinRemote(env, dst, ".git")))
			},
		},
		{
			Category:    CategoryFilesystem,
			Name:        "upload-preserves-executable-bit",
			Description: "An executable install script stays executable on the target",
			Prereq:      posixOnly,
			Run: func(t T, env redeploy.Environment, remoteDir string) {
				src := t.TempDir()
				script := filepath.Join(src, "install.sh")
				require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\necho installed\n"), 0o755))

				dst := joinRemote(env, remoteDir, "app")
				require.NoError(t, env.Upload(t.Context(), src, dst))

				res, err := redeploy.NewExecutor(env).RunBuffered(t.Context(), redeploy.Cmd("./install.sh").Dir(dst).Build())
				require.NoError(t, err)
				assert.Equal(t, "installed", strings.TrimSpace(string(res.Stdout)))
			},
		},
		{
			Category:    CategoryFilesystem,
			Name:        "upload-reports-progress",
			Description: "The progress callback sees the full size of every file",
			Run: func(t T, env redeploy.Environment, remoteDir string) {
				srcPath := filepath.Join(t.TempDir(), "blob.bin")
				require.NoError(t, os.WriteFile(srcPath, []byte(strings.Repeat("x", 4096)), 0o644))

				var last, total int64

				err := env.Upload(t.Context(), srcPath, joinRemote(env, remoteDir, "blob.bin"),
					redeploy.WithProgress(func(_ string, current, size int64) {
						last, total = current, size
					}))
				require.NoError(t, err)
				assert.Equal(t, int64(4096), last)
				assert.Equal(t, int64(4096), total)
			},
		},
	}
}
