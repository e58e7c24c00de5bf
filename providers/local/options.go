package local

import "github.com/ruffel/redeploy"

// Option defines a functional option for the local provider.
type Option func(*Environment)

// WithTargetOS overrides the detected operating system.
func WithTargetOS(os redeploy.TargetOS) Option {
	return func(e *Environment) {
		e.targetOS = os
	}
}
