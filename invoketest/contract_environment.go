package invoketest

import (
	"os"
	"path/filepath"

	"github.com/ruffel/redeploy"
	"github.com/stretchr/testify/require"
)

func environmentContracts() []TestCase {
	return []TestCase{
		{
			Category:    CategoryEnvironment,
			Name:        "close-idempotent",
			Description: "Closing an environment multiple times is deterministic and non-fatal",
			Run: func(t T, env redeploy.Environment, _ string) {
				require.NoError(t, env.Close())
				require.NoError(t, env.Close())
			},
		},
		{
			Category:    CategoryEnvironment,
			Name:        "close-post-run-fails",
			Description: "Run fails with ErrEnvironmentClosed after close",
			Run: func(t T, env redeploy.Environment, _ string) {
				require.NoError(t, env.Close())

				_, err := env.Run(t.Context(), redeploy.NewCommand("echo", "redeploy-contract"))
				require.ErrorIs(t, err, redeploy.ErrEnvironmentClosed)
			},
		},
		{
			Category:    CategoryEnvironment,
			Name:        "close-post-upload-fails",
			Description: "Upload fails with ErrEnvironmentClosed after close",
			Run: func(t T, env redeploy.Environment, remoteDir string) {
				require.NoError(t, env.Close())

				src := filepath.Join(t.TempDir(), "close-upload-src.txt")
				require.NoError(t, os.WriteFile(src, []byte("x"), 0o644))

				err := env.Upload(t.Context(), src, joinRemote(env, remoteDir, "close-upload-dst.txt"))
				require.ErrorIs(t, err, redeploy.ErrEnvironmentClosed)
			},
		},
	}
}
