package deploy

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/ruffel/redeploy"
	"github.com/ruffel/redeploy/fileutil"
	"github.com/ruffel/redeploy/internal/logger"
)

func (d *Deployer) announceStart(ctx context.Context) error {
	return d.opts.Console.Announce(ctx, "deployment started")
}

func (d *Deployer) announceComplete(ctx context.Context) error {
	return d.opts.Console.Announce(ctx, "deployment complete")
}

func (d *Deployer) stopService(ctx context.Context) error {
	if !d.opts.Service.Configured() {
		logger.InfoKV(ctx, "no service configured, nothing to stop")

		return nil
	}

	_, err := d.opts.Service.Stop(ctx)

	return err
}

func (d *Deployer) wipeDestination(ctx context.Context) error {
	cmd, err := d.WipeCommand()
	if err != nil {
		return err
	}

	if _, err := d.exec.RunBuffered(ctx, cmd, d.sudoOpts(d.opts.InstallSudo)...); err != nil {
		return fmt.Errorf("wipe %s: %w", d.opts.Destination, err)
	}

	return nil
}

// WipeCommand returns the command that empties the destination, creating it when
// missing. The destination is validated first; an unsafe path yields
// fileutil.ErrUnsafeWipeTarget and no command.
func (d *Deployer) WipeCommand() (*redeploy.Command, error) {
	targetOS := d.exec.TargetOS()
	dest := d.opts.Destination

	if err := fileutil.ValidateWipeTarget(dest, targetOS); err != nil {
		return nil, err
	}

	q := targetOS.QuoteArg(dest)

	if targetOS == redeploy.OSWindows {
		return targetOS.ShellCommand(fmt.Sprintf(
			"$ErrorActionPreference = 'Stop'; New-Item -ItemType Directory -Force -Path %s | Out-Null; "+
				"Get-ChildItem -LiteralPath %s -Force | Remove-Item -Recurse -Force", q, q)), nil
	}

	// -H follows the destination itself when it is a symlink to the real directory.
	return targetOS.ShellCommand(fmt.Sprintf("mkdir -p %s && find -H %s -mindepth 1 -delete", q, q)), nil
}

func (d *Deployer) copyFiles(ctx context.Context) error {
	info, err := os.Stat(d.opts.Source)
	if err != nil {
		return fmt.Errorf("source: %w", err)
	}

	remote := d.opts.Destination
	if !info.IsDir() {
		remote = joinRemote(d.exec.TargetOS(), remote, filepath.Base(d.opts.Source))
	}

	files := 0
	progress := func(p string, current, total int64) {
		if current == total {
			files++
			logger.DebugKV(ctx, "uploaded", "file", p, "bytes", total)
		}
	}

	err = d.exec.Upload(ctx, d.opts.Source, remote,
		redeploy.WithExclude(d.opts.Exclude...),
		redeploy.WithProgress(progress))
	if err != nil {
		return fmt.Errorf("copy %s to %s: %w", d.opts.Source, remote, err)
	}

	logger.InfoKV(ctx, "files copied", "files", files, "destination", remote)

	return nil
}

func (d *Deployer) install(ctx context.Context) error {
	cmd, err := d.installCommand()
	if err != nil {
		return err
	}

	res, err := d.exec.RunBuffered(ctx, cmd, d.sudoOpts(d.opts.InstallSudo)...)
	if res != nil && len(res.Stdout) > 0 {
		logger.DebugKV(ctx, "install output", "stdout", strings.TrimSpace(string(res.Stdout)))
	}

	if err != nil {
		if res != nil && len(res.Stderr) > 0 {
			logger.ErrorKV(ctx, "install script stderr", "stderr", strings.TrimSpace(string(res.Stderr)))
		}

		return fmt.Errorf("install: %w", err)
	}

	return nil
}

// installCommand parses the install command line and runs it from the destination.
func (d *Deployer) installCommand() (*redeploy.Command, error) {
	cmd, err := redeploy.ParseCommand(d.opts.InstallCommand)
	if err != nil {
		return nil, fmt.Errorf("install command: %w", err)
	}

	cmd.Dir = d.opts.Destination

	return cmd, nil
}

func (d *Deployer) sudoOpts(sudo bool) []redeploy.ExecOption {
	opts := append([]redeploy.ExecOption(nil), d.opts.ExecOptions...)
	if sudo {
		opts = append(opts, redeploy.WithSudo())
	}

	return opts
}

func joinRemote(targetOS redeploy.TargetOS, base, name string) string {
	if targetOS == redeploy.OSWindows {
		return strings.TrimRight(base, `\/`) + `\` + name
	}

	return path.Join(base, name)
}
