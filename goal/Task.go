package goal

import (
	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/gohindsight/environment"
)

// Task gives the goal structure of an environment: how to read the
// goal achieved at an observation, how to draw the desired goal for a
// new episode, and when an achieved goal satisfies a desired one.
//
// Tasks are consumed by goal-conditioning environment wrappers, which
// use them to construct goal-conditioned observations and to override
// rewards and episode ends.
type Task interface {
	// AchievedGoal returns the goal achieved at the argument base
	// environment observation
	AchievedGoal(obs mat.Vector) *mat.VecDense

	// SampleGoal draws the desired goal for a new episode
	SampleGoal() *mat.VecDense

	// IsSuccess returns whether an achieved goal satisfies a desired
	// goal
	IsSuccess(achieved, desired mat.Vector) bool

	// GoalSpec describes the space of goals
	GoalSpec() environment.Spec
}

// Func adapts plain functions to the Task interface. It is useful for
// goal-conditioning environments whose goal structure is decided by
// the caller, such as external simulators.
type Func struct {
	achieved func(obs mat.Vector) *mat.VecDense
	sample   func() *mat.VecDense
	success  func(achieved, desired mat.Vector) bool
	spec     environment.Spec
}

// NewFunc returns a Task whose methods call the argument functions
func NewFunc(achieved func(obs mat.Vector) *mat.VecDense,
	sample func() *mat.VecDense,
	success func(achieved, desired mat.Vector) bool,
	spec environment.Spec) Task {
	if achieved == nil || sample == nil || success == nil {
		panic("newFunc: nil goal function")
	}
	return Func{achieved: achieved, sample: sample, success: success,
		spec: spec}
}

// AchievedGoal returns the goal achieved at the argument observation
func (f Func) AchievedGoal(obs mat.Vector) *mat.VecDense {
	return f.achieved(obs)
}

// SampleGoal draws the desired goal for a new episode
func (f Func) SampleGoal() *mat.VecDense {
	return f.sample()
}

// IsSuccess returns whether an achieved goal satisfies a desired goal
func (f Func) IsSuccess(achieved, desired mat.Vector) bool {
	return f.success(achieved, desired)
}

// GoalSpec describes the space of goals
func (f Func) GoalSpec() environment.Spec {
	return f.spec
}

// Conditioned is implemented by goal-conditioned environments: those
// whose observations are vectorized goal-conditioned observations.
type Conditioned interface {
	environment.Environment

	// Layout returns the layout of the vectorized observations the
	// environment emits
	Layout() Layout

	// IsSuccess returns whether an achieved goal satisfies a desired
	// goal
	IsSuccess(achieved, desired mat.Vector) bool

	// GoalSpec describes the space of goals
	GoalSpec() environment.Spec
}

// Find searches a chain of wrapped environments for a goal-conditioned
// environment, unwrapping one wrapper at a time starting at the
// outermost. Find returns an error satisfying IsNotConditioned if no
// environment in the chain is goal-conditioned.
func Find(e environment.Environment) (Conditioned, error) {
	for e != nil {
		if c, ok := e.(Conditioned); ok {
			return c, nil
		}

		w, ok := e.(environment.Wrapper)
		if !ok {
			break
		}
		e = w.Unwrapped()
	}
	return nil, &Error{Op: "find", Err: errNotConditioned}
}
