// Package console mirrors deployment progress onto the target host's console.
package console

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ruffel/redeploy"
)

// DefaultDisplaySeconds is how long Windows shows a message box.
const DefaultDisplaySeconds = 30

// Announcer broadcasts messages to the users logged in on the target host.
// The zero value is disabled and announces nothing.
type Announcer struct {
	exec     *redeploy.Executor
	enabled  bool
	prefix   string
	host     string
	override string
	opts     []redeploy.ExecOption
}

// Option configures an Announcer.
type Option func(*Announcer)

// WithCommand replaces the broadcast command. The message is appended as the final
// argument.
func WithCommand(cmdline string) Option {
	return func(a *Announcer) {
		a.override = cmdline
	}
}

// WithExecOptions sets the options used to run the broadcast.
func WithExecOptions(opts ...redeploy.ExecOption) Option {
	return func(a *Announcer) {
		a.opts = opts
	}
}

// NewAnnouncer returns an enabled Announcer that labels messages with prefix and host.
func NewAnnouncer(exec *redeploy.Executor, prefix, host string, opts ...Option) *Announcer {
	a := &Announcer{exec: exec, enabled: true, prefix: prefix, host: host}
	for _, o := range opts {
		o(a)
	}

	return a
}

// Disabled returns an Announcer that does nothing.
func Disabled() *Announcer {
	return &Announcer{}
}

// Enabled reports whether Announce sends anything.
func (a *Announcer) Enabled() bool {
	return a != nil && a.enabled && a.exec != nil
}

// Format renders msg the way it appears on the remote console.
func (a *Announcer) Format(msg string) string {
	switch {
	case a.prefix != "" && a.host != "":
		return fmt.Sprintf("%s %s: %s", a.prefix, a.host, msg)
	case a.host != "":
		return fmt.Sprintf("%s: %s", a.host, msg)
	case a.prefix != "":
		return fmt.Sprintf("%s %s", a.prefix, msg)
	default:
		return msg
	}
}

// Command returns the command that broadcasts msg.
func (a *Announcer) Command(msg string) (*redeploy.Command, error) {
	text := a.Format(msg)

	if a.override != "" {
		cmd, err := redeploy.ParseCommand(a.override)
		if err != nil {
			return nil, err
		}

		cmd.Args = append(cmd.Args, text)

		return cmd, nil
	}

	targetOS := a.exec.TargetOS()

	if targetOS == redeploy.OSWindows {
		return redeploy.Cmd("msg").
			Args("*", "/TIME:"+strconv.Itoa(DefaultDisplaySeconds), text).
			Build(), nil
	}

	// BSD wall reads the message from stdin only.
	return targetOS.ShellCommand("printf '%s\\n' " + targetOS.QuoteArg(text) + " | wall"), nil
}

// Announce broadcasts msg. A disabled Announcer returns nil without contacting the host.
func (a *Announcer) Announce(ctx context.Context, msg string) error {
	if !a.Enabled() {
		return nil
	}

	cmd, err := a.Command(msg)
	if err != nil {
		return err
	}

	if _, err := a.exec.RunBuffered(ctx, cmd, a.opts...); err != nil {
		return fmt.Errorf("announce %q: %w", msg, err)
	}

	return nil
}
