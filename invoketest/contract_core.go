package invoketest

import (
	"strings"

	"github.com/ruffel/redeploy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func coreContracts() []TestCase {
	return []TestCase{
		{
			Category: CategoryCore,
			Name:     "simple-echo",
			Run: func(t T, env redeploy.Environment, _ string) {
				exec := redeploy.NewExecutor(env)
				result, err := exec.RunBuffered(t.Context(), redeploy.NewCommand("echo", "hello"))
				require.NoError(t, err)
				require.NotNil(t, result)

				assert.Equal(t, "hello", strings.TrimSpace(string(result.Stdout)))
				assert.Equal(t, 0, result.ExitCode)
			},
		},
		{
			Category:    CategoryCore,
			Name:        "arguments-are-literal",
			Description: "Shell metacharacters in arguments must reach the command unexpanded",
			Run: func(t T, env redeploy.Environment, _ string) {
				arg := "it's $HOME; `id` | cat"

				res, err := redeploy.NewExecutor(env).RunBuffered(t.Context(), redeploy.NewCommand("echo", arg))
				require.NoError(t, err)
				assert.Equal(t, arg, strings.TrimSpace(string(res.Stdout)))
			},
		},
		{
			Category:    CategoryCore,
			Name:        "env-and-dir",
			Description: "Command.Env and Command.Dir must apply to the remote process",
			Prereq:      posixOnly,
			Run: func(t T, env redeploy.Environment, remoteDir string) {
				cmd := redeploy.Cmd("sh").
					Args("-c", `printf '%s|%s' "$GREETING" "$(pwd)"`).
					Env("GREETING", "hello world").
					Dir(remoteDir).
					Build()

				res, err := redeploy.NewExecutor(env).RunBuffered(t.Context(), cmd)
				require.NoError(t, err)
				assert.Equal(t, "hello world|"+remoteDir, string(res.Stdout))
			},
		},
		{
			Category:    CategoryCore,
			Name:        "stderr-captured",
			Description: "Stderr must be routed to Command.Stderr, not Stdout",
			Prereq:      posixOnly,
			Run: func(t T, env redeploy.Environment, _ string) {
				res, err := redeploy.NewExecutor(env).RunShell(t.Context(), "echo oops >&2")
				require.NoError(t, err)
				assert.Empty(t, res.Stdout)
				assert.Equal(t, "oops", strings.TrimSpace(string(res.Stderr)))
			},
		},
	}
}

func posixOnly(_ T, env redeploy.Environment) (bool, string) {
	if env.TargetOS() == redeploy.OSWindows {
		return false, "requires a POSIX shell"
	}

	return true, ""
}
