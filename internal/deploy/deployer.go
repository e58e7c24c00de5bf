package deploy

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ruffel/redeploy"
	"github.com/ruffel/redeploy/fileutil"
	"github.com/ruffel/redeploy/internal/config"
	"github.com/ruffel/redeploy/internal/console"
	"github.com/ruffel/redeploy/internal/logger"
	"github.com/ruffel/redeploy/internal/service"
)

// Step names, in pipeline order.
const (
	StepAnnounceStart    = "announce-start"
	StepStopService      = "stop-service"
	StepWipeDestination  = "wipe-destination"
	StepCopyFiles        = "copy-files"
	StepInstall          = "install"
	StepAnnounceComplete = "announce-complete"

	stepPreflight = "preflight"
)

// abortAnnounceTimeout bounds the failure announcement sent after an abort.
const abortAnnounceTimeout = 10 * time.Second

// Options describe one deployment.
type Options struct {
	Host           string
	Source         string
	Destination    string
	Exclude        []string
	InstallCommand string
	InstallSudo    bool
	ExecOptions    []redeploy.ExecOption
	Service        *service.Manager
	Console        *console.Announcer
}

// Deployer runs the pipeline for one target.
type Deployer struct {
	exec *redeploy.Executor
	opts Options
}

// New returns a Deployer that drives env. A nil Service or Console disables that part.
func New(env redeploy.Environment, opts Options) *Deployer {
	exec := redeploy.NewExecutor(env)

	if opts.Service == nil {
		opts.Service = service.NewManager(exec, "", "")
	}

	if opts.Console == nil {
		opts.Console = console.Disabled()
	}

	return &Deployer{exec: exec, opts: opts}
}

// FromConfig builds a Deployer from validated settings.
func FromConfig(env redeploy.Environment, cfg *config.Config) *Deployer {
	exec := redeploy.NewExecutor(env)
	execOpts := cfg.ExecOptions()

	serviceOpts := execOpts
	if cfg.Service.Sudo {
		serviceOpts = append(append([]redeploy.ExecOption(nil), execOpts...), redeploy.WithSudo())
	}

	announcer := console.Disabled()
	if cfg.Console.Enabled {
		announcer = console.NewAnnouncer(exec, cfg.Console.Prefix, cfg.HostLabel(),
			console.WithCommand(cfg.Console.Command),
			console.WithExecOptions(execOpts...))
	}

	return &Deployer{
		exec: exec,
		opts: Options{
			Host:           cfg.HostLabel(),
			Source:         cfg.Source,
			Destination:    cfg.Destination,
			Exclude:        cfg.Exclude,
			InstallCommand: cfg.Install.Command,
			InstallSudo:    cfg.Install.Sudo,
			ExecOptions:    execOpts,
			Service:        service.NewManager(exec, cfg.Service.Name, cfg.Service.StopCommand, serviceOpts...),
			Console:        announcer,
		},
	}
}

// Plan returns the pipeline steps in execution order.
func (d *Deployer) Plan() []Step {
	return []Step{
		{Name: StepAnnounceStart, Policy: BestEffort, Run: d.announceStart},
		{Name: StepStopService, Policy: BestEffort, Run: d.stopService},
		{Name: StepWipeDestination, Policy: Required, Run: d.wipeDestination},
		{Name: StepCopyFiles, Policy: Required, Run: d.copyFiles},
		{Name: StepInstall, Policy: Required, Run: d.install},
		{Name: StepAnnounceComplete, Policy: BestEffort, Run: d.announceComplete},
	}
}

// Run executes the plan. It returns the report and, when a required step failed, a
// *StepError naming it.
func (d *Deployer) Run(ctx context.Context) (*Report, error) {
	ctx = logger.WithKV(logger.WithName(ctx, "deploy"), "host", d.opts.Host)

	plan := d.Plan()
	report := &Report{Host: d.opts.Host, Steps: make([]StepResult, len(plan))}

	for i, step := range plan {
		report.Steps[i] = StepResult{Name: step.Name, Policy: step.Policy, Status: StatusSkipped}
	}

	start := time.Now()
	defer func() { report.Duration = time.Since(start) }()

	if err := d.preflight(); err != nil {
		logger.ErrorKV(ctx, "preflight check failed, nothing was sent to the host", "error", err)

		return report, &StepError{Step: stepPreflight, Err: err}
	}

	logger.InfoKV(ctx, "deployment started", "source", d.opts.Source, "destination", d.opts.Destination)

	for i, step := range plan {
		stepCtx := logger.WithKV(ctx, "step", step.Name)

		err := ctx.Err()
		if err == nil {
			logger.DebugKV(stepCtx, "step started", "policy", step.Policy)

			stepStart := time.Now()
			err = step.Run(stepCtx)
			report.Steps[i].Duration = time.Since(stepStart)
		}

		result := &report.Steps[i]
		result.Err = err

		switch {
		case err == nil:
			result.Status = StatusOK
			logger.InfoKV(stepCtx, "step finished", "duration", result.Duration)
		case step.Policy == BestEffort:
			result.Status = StatusIgnored
			logger.WarnKV(stepCtx, "step failed, continuing", "error", err)
		default:
			result.Status = StatusFailed
			logger.ErrorKV(stepCtx, "step failed, aborting", "error", err)

			d.announceFailure(ctx, step.Name, err)

			return report, &StepError{Step: step.Name, Err: err}
		}
	}

	logger.InfoKV(ctx, "deployment complete", "ignored", report.Count(StatusIgnored))

	return report, nil
}

// preflight checks everything that can be checked locally.
func (d *Deployer) preflight() error {
	targetOS := d.exec.TargetOS()

	if err := fileutil.ValidateWipeTarget(d.opts.Destination, targetOS); err != nil {
		return err
	}

	if err := fileutil.ValidatePatterns(d.opts.Exclude); err != nil {
		return err
	}

	if _, err := os.Stat(d.opts.Source); err != nil {
		return fmt.Errorf("source: %w", err)
	}

	if _, err := d.installCommand(); err != nil {
		return err
	}

	return nil
}

// announceFailure tells the remote console about an abort. It runs even when ctx was
// cancelled, bounded by abortAnnounceTimeout.
func (d *Deployer) announceFailure(ctx context.Context, step string, cause error) {
	if !d.opts.Console.Enabled() {
		return
	}

	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), abortAnnounceTimeout)
	defer cancel()

	msg := fmt.Sprintf("deployment failed at %s: %s", step, rootCause(cause))
	if err := d.opts.Console.Announce(actx, msg); err != nil {
		logger.WarnKV(ctx, "could not announce failure", "error", err)
	}
}

// rootCause returns the innermost error message, keeping console lines short.
func rootCause(err error) string {
	var exitErr *redeploy.ExitError
	if errors.As(err, &exitErr) {
		return fmt.Sprintf("exit code %d", exitErr.ExitCode)
	}

	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}

		err = next
	}
}
