// Package cmd wires the redeploy command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/ruffel/redeploy"
	"github.com/ruffel/redeploy/internal/config"
	"github.com/ruffel/redeploy/internal/deploy"
	"github.com/ruffel/redeploy/internal/logger"
	"github.com/ruffel/redeploy/internal/version"
	"github.com/ruffel/redeploy/providers/docker"
	"github.com/ruffel/redeploy/providers/dryrun"
	"github.com/ruffel/redeploy/providers/local"
	"github.com/ruffel/redeploy/providers/ssh"
	"github.com/spf13/cobra"
)

// flags holds the command line overrides for the configuration file.
type flags struct {
	configPath string
	host       string
	port       int
	user       string
	keyPath    string
	sshAlias   string
	source     string
	dest       string
	service    string
	insecure   bool
	local      bool
	container  string
	dryRun     bool
	logLevel   string
}

// Execute runs the redeploy CLI and exits with the deployment's status.
func Execute() {
	os.Exit(Run(os.Args[1:], os.Stdout, os.Stderr))
}

// Run executes the CLI with args and returns the process exit code.
func Run(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	root := NewRootCommand(stdout, stderr)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, "redeploy: "+err.Error())
	}

	logger.Sync()

	return deploy.ExitCode(err)
}

// NewRootCommand builds the command tree writing to stdout and stderr.
func NewRootCommand(stdout, stderr io.Writer) *cobra.Command {
	f := &flags{}

	root := &cobra.Command{
		Use:   "redeploy",
		Short: "Replace a remote service's files and reinstall it.",
		Long: `Stops the remote service, empties its install directory, copies the local
files over SSH/SFTP and runs the remote install script, announcing progress
on the remote console. --local targets this machine and --container a
running Docker container instead.

Settings come from the configuration file (default redeploy.yaml); flags
override it. The password is read from the file or REDEPLOY_PASSWORD.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := f.load(cmd)
			if err != nil {
				return err
			}

			return deployWith(cmd.Context(), cfg, f.dryRun, stdout)
		},
	}

	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVarP(&f.configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	pf.StringVar(&f.host, "host", "", "target host")
	pf.IntVar(&f.port, "port", 0, "target SSH port")
	pf.StringVar(&f.user, "user", "", "SSH user")
	pf.StringVar(&f.keyPath, "key", "", "private key path")
	pf.StringVar(&f.sshAlias, "ssh-alias", "", "host alias from ~/.ssh/config")
	pf.StringVar(&f.source, "source", "", "local file or directory to deploy")
	pf.StringVar(&f.dest, "dest", "", "remote destination directory (emptied before copy)")
	pf.StringVar(&f.service, "service", "", "remote service to stop")
	pf.BoolVar(&f.insecure, "insecure", false, "skip host key verification (testing only)")
	pf.BoolVar(&f.local, "local", false, "deploy to this machine instead of an SSH host")
	pf.StringVar(&f.container, "container", "", "deploy into this running Docker container instead of an SSH host")
	pf.StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn, error")
	root.Flags().BoolVar(&f.dryRun, "dry-run", false, "print what would run without contacting the host")

	root.AddCommand(newPlanCommand(f, stdout))
	version.AttachCobraVersionCommand(root)

	return root
}

func newPlanCommand(f *flags, stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Print the deployment steps and the commands they would run.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := f.load(cmd)
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintln(stdout, titleStyle.Render("Plan for "+cfg.HostLabel()+":"+cfg.Destination))

			env := dryrun.New(dryrun.WithTargetOS(cfg.TargetOS()))
			printPlan(stdout, deploy.FromConfig(env, cfg).Plan())

			return deployWith(cmd.Context(), cfg, true, stdout)
		},
	}
}

// load reads the configuration file and applies flag overrides. A missing default
// file is not an error when the flags describe the target.
func (f *flags) load(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Read(f.configPath)

	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config"):
		cfg = config.Default()
		cfg.ApplyEnv()
	default:
		return nil, err
	}

	changed := cmd.Flags().Changed

	if changed("host") {
		cfg.Target.Host = f.host
	}

	if changed("port") {
		cfg.Target.Port = f.port
	}

	if changed("user") {
		cfg.Target.User = f.user
	}

	if changed("key") {
		cfg.Target.KeyPath = f.keyPath
	}

	if changed("ssh-alias") {
		cfg.Target.SSHAlias = f.sshAlias
	}

	if changed("source") {
		cfg.Source = f.source
	}

	if changed("dest") {
		cfg.Destination = f.dest
	}

	if changed("service") {
		cfg.Service.Name = f.service
	}

	if changed("insecure") {
		cfg.Target.InsecureSkipVerify = f.insecure
	}

	if changed("local") {
		cfg.Target.Local = f.local
	}

	if changed("container") {
		cfg.Target.Container = f.container
	}

	if changed("log-level") {
		cfg.LogLevel = f.logLevel
	}

	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	level, ok := logger.ParseLogLevel(cfg.LogLevel)
	if !ok {
		return nil, fmt.Errorf("invalid configuration: unknown log level %q", cfg.LogLevel)
	}

	logger.SetLevel(level)

	return cfg, nil
}

// deployWith opens the environment for cfg and runs the pipeline.
func deployWith(ctx context.Context, cfg *config.Config, dryRun bool, stdout io.Writer) error {
	env, err := openEnvironment(cfg, dryRun, stdout)
	if err != nil {
		return err
	}

	defer func() { _ = env.Close() }()

	title := fmt.Sprintf("Deploying %s to %s:%s", cfg.Source, cfg.HostLabel(), cfg.Destination)
	if dryRun {
		title += " (dry run)"
	}

	_, _ = fmt.Fprintln(stdout, titleStyle.Render(title))

	report, err := deploy.FromConfig(env, cfg).Run(ctx)
	printReport(stdout, report, err)

	return err
}

func openEnvironment(cfg *config.Config, dryRun bool, stdout io.Writer) (redeploy.Environment, error) {
	if dryRun {
		return dryrun.New(dryrun.WithOutput(stdout), dryrun.WithTargetOS(cfg.TargetOS())), nil
	}

	switch cfg.Target.Kind() {
	case config.TargetLocal:
		return local.New(local.WithTargetOS(cfg.TargetOS())), nil
	case config.TargetContainer:
		env, err := docker.New(
			docker.WithContainer(cfg.Target.Container),
			docker.WithHost(cfg.Target.DockerHost),
			docker.WithTargetOS(cfg.TargetOS()),
		)
		if err != nil {
			return nil, fmt.Errorf("docker: %w", err)
		}

		return env, nil
	default:
		sc, err := cfg.SSHConfig()
		if err != nil {
			return nil, err
		}

		env, err := ssh.New(ssh.WithConfig(sc))
		if err != nil {
			return nil, fmt.Errorf("ssh: %w", err)
		}

		return env, nil
	}
}
