package invoketest

import (
	"context"
	"fmt"
	"time"

	"github.com/ruffel/redeploy"
	"github.com/stretchr/testify/require"
)

const runExitErrorCode = 13

func errorContracts() []TestCase {
	return []TestCase{
		{
			Category:    CategoryErrors,
			Name:        "run-nonzero-returns-exiterror",
			Description: "Run non-zero failures must return *redeploy.ExitError with the exit code",
			Run: func(t T, env redeploy.Environment, _ string) {
				res, err := env.Run(t.Context(), env.TargetOS().ShellCommand(fmt.Sprintf("exit %d", runExitErrorCode)))
				require.Error(t, err)

				var exitErr *redeploy.ExitError
				require.ErrorAs(t, err, &exitErr)
				require.Equal(t, runExitErrorCode, exitErr.ExitCode)

				require.NotNil(t, res)
				require.Equal(t, runExitErrorCode, res.ExitCode)
				require.False(t, redeploy.IsTransport(err))
			},
		},
		{
			Category:    CategoryErrors,
			Name:        "invalid-command-rejected",
			Description: "An empty binary must be rejected before anything is sent",
			Run: func(t T, env redeploy.Environment, _ string) {
				_, err := env.Run(t.Context(), &redeploy.Command{Cmd: " "})
				require.Error(t, err)
			},
		},
		{
			Category:    CategoryErrors,
			Name:        "context-deadline-interrupts",
			Description: "A command outliving its context must be stopped and reported as an error",
			Prereq:      posixOnly,
			Run: func(t T, env redeploy.Environment, _ string) {
				ctx, cancel := context.WithTimeout(t.Context(), 200*time.Millisecond)
				defer cancel()

				start := time.Now()
				_, err := env.Run(ctx, redeploy.NewCommand("sleep", "5"))
				require.Error(t, err)
				require.ErrorIs(t, err, context.DeadlineExceeded)
				require.Less(t, time.Since(start), 4*time.Second)
			},
		},
	}
}
