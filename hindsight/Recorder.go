// Package hindsight implements hindsight relabelling of recorded
// episodes. Relabelling recomputes an episode's transitions as if a
// goal the agent actually achieved had been the desired goal all
// along, turning failed episodes into successful demonstrations of
// reaching the goals they did achieve.
package hindsight

import (
	"github.com/gammazero/deque"

	ts "github.com/samuelfneumann/gohindsight/timestep"
)

// Recorder accumulates the transitions of the episode in progress, in
// the order they occurred, so that the episode can be relabelled when
// it ends.
type Recorder struct {
	steps *deque.Deque[ts.Transition]
}

// NewRecorder returns a new, empty Recorder
func NewRecorder() *Recorder {
	return &Recorder{steps: deque.New[ts.Transition]()}
}

// Record appends a transition to the recorded episode
func (r *Recorder) Record(t ts.Transition) {
	r.steps.PushBack(t)
}

// Len returns the number of recorded transitions
func (r *Recorder) Len() int {
	return r.steps.Len()
}

// Steps returns the recorded transitions in the order they occurred
func (r *Recorder) Steps() []ts.Transition {
	out := make([]ts.Transition, r.steps.Len())
	for i := range out {
		out[i] = r.steps.At(i)
	}
	return out
}

// Clear discards all recorded transitions, readying the Recorder for
// the next episode
func (r *Recorder) Clear() {
	r.steps.Clear()
}
