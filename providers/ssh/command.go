package ssh

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ruffel/redeploy"
)

var envKeyPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// buildEnvPrefix turns "KEY=VALUE" pairs into assignments prepended to the command.
// OpenSSH defaults to PermitUserEnvironment=no and AcceptEnv is rarely configured, so
// session.Setenv cannot be relied on. Entries with an invalid key are skipped.
func buildEnvPrefix(envVars []string, targetOS redeploy.TargetOS) string {
	var envPrefix strings.Builder

	for _, env := range envVars {
		k, v, found := strings.Cut(env, "=")
		if !found || !envKeyPattern.MatchString(k) {
			continue
		}

		if targetOS == redeploy.OSWindows {
			fmt.Fprintf(&envPrefix, "$env:%s=%s; ", k, targetOS.QuoteArg(v))
		} else {
			fmt.Fprintf(&envPrefix, "export %s=%s; ", k, targetOS.QuoteArg(v))
		}
	}

	return envPrefix.String()
}

// buildDirPrefix constructs the directory change prefix. On POSIX a failing cd aborts
// the command.
func buildDirPrefix(dir string, targetOS redeploy.TargetOS) string {
	if dir == "" {
		return ""
	}

	if targetOS == redeploy.OSWindows {
		return fmt.Sprintf("Set-Location -LiteralPath %s -ErrorAction Stop; ", targetOS.QuoteArg(dir))
	}

	return fmt.Sprintf("cd %s && ", targetOS.QuoteArg(dir))
}

// buildFullCommand constructs the complete command line sent to the remote shell.
func buildFullCommand(cmd *redeploy.Command, targetOS redeploy.TargetOS) string {
	return buildEnvPrefix(cmd.Env, targetOS) + buildDirPrefix(cmd.Dir, targetOS) + targetOS.CommandLine(cmd)
}
