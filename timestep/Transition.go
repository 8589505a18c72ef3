package timestep

import "gonum.org/v1/gonum/mat"

// Transition packages together a single environment transition in the
// form stored by experience replay buffers: the state the agent was
// in, the action it took, the reward and discount emitted on the
// transition, the state the transition led to, and whether that state
// was terminal.
//
// Terminal refers only to true terminal states. Transitions at which
// an episode was cut off by a step limit are not terminal, so that
// agents may still bootstrap off the next state.
type Transition struct {
	State     *mat.VecDense
	Action    *mat.VecDense
	Reward    float64
	Discount  float64
	NextState *mat.VecDense
	Terminal  bool
}

// NewTransition returns the transition between two consecutive
// timesteps, where action was the action taken at step which led to
// nextStep.
func NewTransition(step TimeStep, action *mat.VecDense,
	nextStep TimeStep) Transition {
	return Transition{
		State:     step.Observation,
		Action:    action,
		Reward:    nextStep.Reward,
		Discount:  nextStep.Discount,
		NextState: nextStep.Observation,
		Terminal:  nextStep.TerminalEnd(),
	}
}
