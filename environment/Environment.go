// Package environment outlines the interfaces needed to implement
// concrete environments and provides types for composing the starting
// and ending conditions of their episodes.
package environment

import (
	"gonum.org/v1/gonum/mat"

	ts "github.com/samuelfneumann/gohindsight/timestep"
)

// Starter implements a distribution of starting states and samples
// starting states for environments
type Starter interface {
	Start() *mat.VecDense
}

// Ender determines when and how episodes end. Enders modify the
// argument timestep in-place, setting its StepType to timestep.Last
// and recording the reason the episode ended with SetEnd.
type Ender interface {
	End(*ts.TimeStep) bool
}

// Task implements the reward scheme for taking actions in some
// environment and determines the starting and ending conditions of
// episodes. Environments may run different tasks, keeping the same
// dynamics between tasks.
type Task interface {
	Starter
	Ender

	// GetReward returns the reward for a transition
	GetReward(state, action, nextState mat.Vector) float64

	// AtGoal returns whether the argument state is a goal state
	AtGoal(state mat.Matrix) bool

	// Min and Max return the minimum and maximum attainable rewards
	Min() float64
	Max() float64

	RewardSpec() Spec
}

// Environment implements a simulated environment, which includes a
// Task to complete
type Environment interface {
	Task

	// Reset resets the environment to some starting state and returns
	// the first timestep of the new episode
	Reset() (ts.TimeStep, error)

	// Step takes one environmental step given an action, returning
	// the next timestep and whether it is the last in the episode
	Step(action *mat.VecDense) (ts.TimeStep, bool, error)

	// CurrentTimeStep returns the last timestep of the environment
	CurrentTimeStep() ts.TimeStep

	DiscountSpec() Spec
	ObservationSpec() Spec
	ActionSpec() Spec
}

// Wrapper wraps another environment, adjusting its observations,
// rewards, or episode structure. Environments in a wrapped chain can
// be searched with interface assertions by unwrapping one layer at a
// time.
type Wrapper interface {
	Environment

	// Unwrapped returns the environment that the Wrapper wraps
	Unwrapped() Environment
}
