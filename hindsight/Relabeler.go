package hindsight

import (
	"fmt"

	"golang.org/x/exp/rand"

	"github.com/samuelfneumann/gohindsight/environment"
	"github.com/samuelfneumann/gohindsight/goal"
	ts "github.com/samuelfneumann/gohindsight/timestep"
)

// Relabeler recomputes recorded trajectories against goals that were
// achieved in hindsight.
//
// Relabelling chooses an anchor transition in the trajectory and
// pretends that the goal achieved at that transition's next state had
// been the episode's desired goal. Every transition up to the anchor
// has the desired-goal segment of its observations rewritten to the
// anchor's achieved goal, its reward recomputed against the new goal,
// and its terminal flag set wherever the new goal is achieved. The
// relabelled trajectory is truncated at its first terminal
// transition, which is at latest the anchor itself.
//
// A Relabeler works only on transitions whose observations were
// emitted by a goal-conditioned environment, since it must locate the
// goal segments inside stored observation vectors.
type Relabeler struct {
	conditioned goal.Conditioned
	layout      goal.Layout

	successReward float64
	defaultReward float64
	nGoals        int

	rng *rand.Rand
}

// NewRelabeler returns a new Relabeler for trajectories generated by
// e. The environment chain of e must contain a goal-conditioned
// environment; if it does not, an error satisfying
// goal.IsNotConditioned is returned.
//
// Transitions achieving the relabelled goal receive successReward and
// all others defaultReward, which should match the rewards of the
// goal-conditioned environment. The Trajectories method relabels each
// episode against nGoals anchors.
func NewRelabeler(e environment.Environment, nGoals int, successReward,
	defaultReward float64, seed uint64) (*Relabeler, error) {
	conditioned, err := goal.Find(e)
	if err != nil {
		return nil, err
	}

	if nGoals < 1 {
		return nil, fmt.Errorf("newRelabeler: nGoals must be positive, "+
			"got %d", nGoals)
	}

	return &Relabeler{
		conditioned:   conditioned,
		layout:        conditioned.Layout(),
		successReward: successReward,
		defaultReward: defaultReward,
		nGoals:        nGoals,
		rng:           rand.New(rand.NewSource(seed)),
	}, nil
}

// Relabel recomputes a trajectory against the goal achieved at the
// next state of the transition at index anchor. Only transitions at
// indices up to and including the anchor are consulted, and the
// relabelled trajectory is truncated at (and including) its first
// terminal transition.
//
// The argument trajectory is not modified. An empty trajectory
// relabels to an empty trajectory.
func (r *Relabeler) Relabel(trajectory []ts.Transition,
	anchor int) ([]ts.Transition, error) {
	if len(trajectory) == 0 {
		return nil, nil
	}
	if anchor < 0 || anchor >= len(trajectory) {
		return nil, fmt.Errorf("relabel: anchor %d out of range [0, %d)",
			anchor, len(trajectory))
	}

	desired := r.layout.AchievedGoal(trajectory[anchor].NextState)

	relabelled := make([]ts.Transition, 0, anchor+1)
	for i := 0; i <= anchor; i++ {
		step := trajectory[i]

		achieved := r.layout.AchievedGoal(step.NextState)
		success := r.conditioned.IsSuccess(achieved, desired)

		step.State = r.layout.WithDesiredGoal(step.State, desired)
		step.NextState = r.layout.WithDesiredGoal(step.NextState, desired)
		if success {
			step.Reward = r.successReward
		} else {
			step.Reward = r.defaultReward
		}
		step.Terminal = step.Terminal || success

		relabelled = append(relabelled, step)
		if step.Terminal {
			break
		}
	}

	return relabelled, nil
}

// Trajectories returns the relabelled trajectories of one recorded
// episode: the trajectory relabelled against its own final
// transition, plus nGoals-1 relabellings against random earlier
// anchors. Random anchors are sampled with replacement, so the same
// anchor may be relabelled against more than once.
//
// An empty trajectory has no relabelled trajectories.
func (r *Relabeler) Trajectories(
	trajectory []ts.Transition) ([][]ts.Transition, error) {
	if len(trajectory) == 0 {
		return nil, nil
	}

	out := make([][]ts.Transition, 0, r.nGoals)
	for _, anchor := range r.anchors(len(trajectory)) {
		relabelled, err := r.Relabel(trajectory, anchor)
		if err != nil {
			return nil, err
		}
		out = append(out, relabelled)
	}

	return out, nil
}

// anchors returns the anchor indices against which a trajectory of
// length n is relabelled
func (r *Relabeler) anchors(n int) []int {
	anchors := make([]int, 0, r.nGoals)
	anchors = append(anchors, n-1)

	for i := 1; i < r.nGoals; i++ {
		if n > 1 {
			anchors = append(anchors, r.rng.Intn(n-1))
		} else {
			anchors = append(anchors, 0)
		}
	}

	return anchors
}
