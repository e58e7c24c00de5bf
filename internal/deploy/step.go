package deploy

import (
	"context"
	"fmt"
	"time"
)

// Policy decides what a step failure means for the run.
type Policy int

const (
	// Required steps abort the run when they fail.
	Required Policy = iota
	// BestEffort steps log failures and let the run continue.
	BestEffort
)

func (p Policy) String() string {
	if p == BestEffort {
		return "best-effort"
	}

	return "required"
}

// Status is the outcome of one step.
type Status int

const (
	// StatusSkipped means the step never ran.
	StatusSkipped Status = iota
	// StatusOK means the step succeeded.
	StatusOK
	// StatusIgnored means a best-effort step failed.
	StatusIgnored
	// StatusFailed means a required step failed.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusIgnored:
		return "ignored"
	case StatusFailed:
		return "failed"
	case StatusSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Step is one stage of the pipeline.
type Step struct {
	Name   string
	Policy Policy
	Run    func(ctx context.Context) error
}

// StepResult records how a step went.
type StepResult struct {
	Name     string
	Policy   Policy
	Status   Status
	Duration time.Duration
	Err      error
}

// Report is the outcome of a whole run.
type Report struct {
	Host     string
	Steps    []StepResult
	Duration time.Duration
}

// Failed returns the step that aborted the run, or nil.
func (r *Report) Failed() *StepResult {
	for i := range r.Steps {
		if r.Steps[i].Status == StatusFailed {
			return &r.Steps[i]
		}
	}

	return nil
}

// Count returns how many steps ended with status s.
func (r *Report) Count(s Status) int {
	n := 0

	for _, st := range r.Steps {
		if st.Status == s {
			n++
		}
	}

	return n
}

// StepError is returned by Run when a required step fails.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// ExitCode maps the error returned by Run to a process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	return 1
}
