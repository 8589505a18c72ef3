package wrappers

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/gohindsight/environment"
	ts "github.com/samuelfneumann/gohindsight/timestep"
)

// TimeLimit wraps an environment so that its episodes are cut off
// after a fixed number of timesteps. Episodes cut off by the wrapper
// end with a timestep.Timeout EndType, never a terminal state, so
// that agents may still bootstrap off the final state.
//
// TimeLimit itself implements the environment.Environment interface,
// and is therefore itself an Environment.
type TimeLimit struct {
	environment.Environment
	limit       environment.Ender
	currentStep ts.TimeStep
}

// NewTimeLimit creates and returns a new TimeLimit which cuts
// episodes of env off after maxSteps timesteps
func NewTimeLimit(env environment.Environment, maxSteps int) (*TimeLimit,
	ts.TimeStep, error) {
	if maxSteps <= 0 {
		return nil, ts.TimeStep{}, fmt.Errorf("newTimeLimit: maxSteps "+
			"must be positive, got %d", maxSteps)
	}

	wrapped := &TimeLimit{
		Environment: env,
		limit:       environment.NewStepLimit(maxSteps),
		currentStep: env.CurrentTimeStep(),
	}

	return wrapped, wrapped.currentStep, nil
}

// Reset resets the wrapped environment and returns the first timestep
// of the new episode
func (t *TimeLimit) Reset() (ts.TimeStep, error) {
	step, err := t.Environment.Reset()
	if err != nil {
		return ts.TimeStep{}, fmt.Errorf("reset: could not reset wrapped "+
			"environment: %v", err)
	}

	t.currentStep = step
	return step, nil
}

// Step takes one environmental step given action a and returns the
// next timestep and whether it is the last in the episode, cutting
// the episode off at the step limit
func (t *TimeLimit) Step(a *mat.VecDense) (ts.TimeStep, bool, error) {
	step, _, err := t.Environment.Step(a)
	if err != nil {
		return ts.TimeStep{}, true, fmt.Errorf("step: could not step "+
			"wrapped environment: %v", err)
	}

	if !step.Last() {
		t.limit.End(&step)
	}

	t.currentStep = step
	return step, step.Last(), nil
}

// CurrentTimeStep returns the last timestep of the environment
func (t *TimeLimit) CurrentTimeStep() ts.TimeStep {
	return t.currentStep
}

// Unwrapped returns the environment that the TimeLimit wraps
func (t *TimeLimit) Unwrapped() environment.Environment {
	return t.Environment
}
