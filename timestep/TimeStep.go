// Package timestep implements timesteps, which represent a single
// step of interaction between an agent and an environment.
package timestep

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// StepType denotes the type of a timestep within an episode
type StepType int

const (
	// First denotes the first timestep in an episode
	First StepType = iota

	// Mid denotes any timestep between the first and last timesteps
	// of an episode
	Mid

	// Last denotes the last timestep in an episode
	Last
)

// String returns the string representation of a StepType
func (s StepType) String() string {
	switch s {
	case First:
		return "First"

	case Mid:
		return "Mid"

	case Last:
		return "Last"

	default:
		return "Invalid"
	}
}

// EndType denotes the reason an episode ended. Episodes may end
// because a terminal state was reached or because the episode was cut
// off at a step limit. The two are distinguished so that agents can
// bootstrap off states at which episodes were cut off, but not off
// true terminal states.
type EndType int

const (
	// Nil denotes a timestep which does not end an episode
	Nil EndType = iota

	// TerminalStateReached denotes an episode that ended because the
	// agent reached a terminal state
	TerminalStateReached

	// Timeout denotes an episode that was cut off at a step limit
	Timeout
)

// String returns the string representation of an EndType
func (e EndType) String() string {
	switch e {
	case Nil:
		return "Nil"

	case TerminalStateReached:
		return "TerminalStateReached"

	case Timeout:
		return "Timeout"

	default:
		return "Invalid"
	}
}

// TimeStep packages together all information about a single timestep
// in an episode.
//
// The Info map holds auxiliary per-step diagnostics. Environment
// wrappers that override the reward record the unmodified reward
// there. Values in Info are never used for training.
type TimeStep struct {
	StepType    StepType
	Reward      float64
	Discount    float64
	Observation *mat.VecDense
	Number      int
	EndType     EndType
	Info        map[string]float64
}

// New returns a new TimeStep with the argument fields. The returned
// timestep has a Nil EndType. Enders and environments set the EndType
// when the timestep ends an episode.
func New(t StepType, reward, discount float64, obs *mat.VecDense,
	number int) TimeStep {
	return TimeStep{
		StepType:    t,
		Reward:      reward,
		Discount:    discount,
		Observation: obs,
		Number:      number,
		EndType:     Nil,
	}
}

// SetEnd sets the reason for which the timestep ended its episode
func (t *TimeStep) SetEnd(e EndType) {
	t.EndType = e
}

// SetInfo records an auxiliary diagnostic value on the timestep
func (t *TimeStep) SetInfo(key string, value float64) {
	if t.Info == nil {
		t.Info = make(map[string]float64)
	}
	t.Info[key] = value
}

// First returns whether the timestep is the first in its episode
func (t TimeStep) First() bool {
	return t.StepType == First
}

// Mid returns whether the timestep is neither the first nor the last
// in its episode
func (t TimeStep) Mid() bool {
	return t.StepType == Mid
}

// Last returns whether the timestep is the last in its episode
func (t TimeStep) Last() bool {
	return t.StepType == Last
}

// TerminalEnd returns whether the timestep ended its episode at a
// terminal state
func (t TimeStep) TerminalEnd() bool {
	return t.Last() && t.EndType == TerminalStateReached
}

// TimeoutEnd returns whether the timestep ended its episode due to a
// step limit
func (t TimeStep) TimeoutEnd() bool {
	return t.Last() && t.EndType == Timeout
}

// String returns the string representation of a TimeStep
func (t TimeStep) String() string {
	return fmt.Sprintf("TimeStep | Number: %d | Type: %v | Reward: %v "+
		"| Observation: %v", t.Number, t.StepType,
		t.Reward, mat.Formatted(t.Observation.T()))
}
