// Package goal implements the goal-conditioned view of environments.
// A goal-conditioned environment emits observations that contain, in
// addition to the base environment observation, the goal the agent
// achieved at the current state and the goal it is desired to achieve
// by the end of the episode.
package goal

import (
	"gonum.org/v1/gonum/mat"
)

// Observation is a single goal-conditioned observation, consisting of
// the base environment observation, the goal achieved at the
// observed state, and the goal the agent should achieve.
type Observation struct {
	Observation  *mat.VecDense
	AchievedGoal *mat.VecDense
	DesiredGoal  *mat.VecDense
}

// NewObservation returns a new Observation holding copies of the
// argument vectors, so that later modifications to the arguments do
// not modify the returned Observation.
func NewObservation(obs, achieved, desired mat.Vector) Observation {
	base := mat.NewVecDense(obs.Len(), nil)
	base.CloneFromVec(obs)

	achievedGoal := mat.NewVecDense(achieved.Len(), nil)
	achievedGoal.CloneFromVec(achieved)

	desiredGoal := mat.NewVecDense(desired.Len(), nil)
	desiredGoal.CloneFromVec(desired)

	return Observation{
		Observation:  base,
		AchievedGoal: achievedGoal,
		DesiredGoal:  desiredGoal,
	}
}

// Vectorize returns the flat vector form of the observation: the base
// observation, followed by the achieved goal, followed by the desired
// goal.
func (o Observation) Vectorize() *mat.VecDense {
	n := o.Observation.Len() + o.AchievedGoal.Len() + o.DesiredGoal.Len()
	data := make([]float64, 0, n)

	data = append(data, o.Observation.RawVector().Data...)
	data = append(data, o.AchievedGoal.RawVector().Data...)
	data = append(data, o.DesiredGoal.RawVector().Data...)

	return mat.NewVecDense(n, data)
}
