package hindsight

import (
	ts "github.com/samuelfneumann/gohindsight/timestep"
)

// Returns iterates over a recorded trajectory in reverse, yielding
// each transition together with the discounted return from that
// transition to the end of the episode. The return is accumulated
// incrementally while walking backwards, with each transition's own
// discount:
//
//	G_i = R_i + gamma_i * G_{i+1}
//
// The iterator is restartable, so a trajectory can be walked more
// than once.
type Returns struct {
	steps []ts.Transition
	i     int
	value float64
}

// NewReturns returns an iterator over the discounted returns of a
// trajectory
func NewReturns(steps []ts.Transition) *Returns {
	return &Returns{steps: steps, i: len(steps) - 1}
}

// Next yields the next transition, walking backwards from the end of
// the trajectory, along with the discounted return at that
// transition. The final return value is false once the trajectory is
// exhausted.
func (r *Returns) Next() (ts.Transition, float64, bool) {
	if r.i < 0 {
		return ts.Transition{}, 0, false
	}

	step := r.steps[r.i]
	r.value = step.Reward + step.Discount*r.value
	r.i--

	return step, r.value, true
}

// Reset restarts the iterator at the end of the trajectory
func (r *Returns) Reset() {
	r.i = len(r.steps) - 1
	r.value = 0
}
