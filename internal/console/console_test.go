package console

import (
	"testing"

	"github.com/ruffel/redeploy"
	"github.com/ruffel/redeploy/providers/mock"
	"github.com/stretchr/testify/assert"
	tmock "github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "[redeploy] web-01: starting", (&Announcer{prefix: "[redeploy]", host: "web-01"}).Format("starting"))
	assert.Equal(t, "web-01: starting", (&Announcer{host: "web-01"}).Format("starting"))
	assert.Equal(t, "[redeploy] starting", (&Announcer{prefix: "[redeploy]"}).Format("starting"))
	assert.Equal(t, "starting", (&Announcer{}).Format("starting"))
}

func TestCommand(t *testing.T) {
	t.Parallel()

	t.Run("posix pipes into wall", func(t *testing.T) {
		t.Parallel()

		env := mock.New()
		env.On("TargetOS").Return(redeploy.OSLinux)

		cmd, err := NewAnnouncer(redeploy.NewExecutor(env), "[redeploy]", "web-01").Command("it's done")
		require.NoError(t, err)
		assert.Equal(t, "sh", cmd.Cmd)
		assert.Equal(t, []string{"-c", `printf '%s\n' '[redeploy] web-01: it'\''s done' | wall`}, cmd.Args)
	})

	t.Run("windows uses msg", func(t *testing.T) {
		t.Parallel()

		env := mock.New()
		env.On("TargetOS").Return(redeploy.OSWindows)

		cmd, err := NewAnnouncer(redeploy.NewExecutor(env), "", "win-01").Command("done")
		require.NoError(t, err)
		assert.Equal(t, "msg", cmd.Cmd)
		assert.Equal(t, []string{"*", "/TIME:30", "win-01: done"}, cmd.Args)
	})

	t.Run("override appends message", func(t *testing.T) {
		t.Parallel()

		a := NewAnnouncer(redeploy.NewExecutor(mock.New()), "", "web-01", WithCommand("logger -t redeploy"))

		cmd, err := a.Command("done")
		require.NoError(t, err)
		assert.Equal(t, []string{"-t", "redeploy", "web-01: done"}, cmd.Args)
	})
}

func TestAnnounce(t *testing.T) {
	t.Parallel()

	t.Run("disabled sends nothing", func(t *testing.T) {
		t.Parallel()

		require.NoError(t, Disabled().Announce(t.Context(), "hello"))

		var nilAnnouncer *Announcer
		require.NoError(t, nilAnnouncer.Announce(t.Context(), "hello"))
	})

	t.Run("failure is returned", func(t *testing.T) {
		t.Parallel()

		env := mock.New()
		env.On("TargetOS").Return(redeploy.OSLinux)
		env.On("Run", tmock.Anything, tmock.Anything).Return(mock.Exited(1))

		err := NewAnnouncer(redeploy.NewExecutor(env), "", "web-01").Announce(t.Context(), "hello")
		require.Error(t, err)
		assert.Contains(t, err.Error(), `announce "hello"`)
		env.AssertExpectations(t)
	})
}
