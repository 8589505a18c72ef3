package goal

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Layout describes how a vectorized goal-conditioned observation is
// laid out: the base observation occupies the first ObservationSize
// elements, the achieved goal the next GoalSize elements, and the
// desired goal the last GoalSize elements.
//
// Layouts let relabelling code read and rewrite the goal segments of
// observations long after the episode that generated them has ended.
type Layout struct {
	ObservationSize int
	GoalSize        int
}

// NewLayout returns the layout of vectorized observations consisting
// of an observationSize base observation and goalSize goals
func NewLayout(observationSize, goalSize int) Layout {
	if observationSize <= 0 {
		panic(fmt.Sprintf("newLayout: observation size must be positive, "+
			"got %d", observationSize))
	}
	if goalSize <= 0 {
		panic(fmt.Sprintf("newLayout: goal size must be positive, got %d",
			goalSize))
	}
	return Layout{ObservationSize: observationSize, GoalSize: goalSize}
}

// TotalSize returns the length of vectorized observations with the
// layout
func (l Layout) TotalSize() int {
	return l.ObservationSize + 2*l.GoalSize
}

func (l Layout) checkLen(v mat.Vector) {
	if v.Len() != l.TotalSize() {
		panic(fmt.Sprintf("layout: vector has length %d but layout "+
			"requires length %d", v.Len(), l.TotalSize()))
	}
}

// Split returns the three segments of a vectorized observation as an
// Observation. The returned Observation holds copies of the segments.
func (l Layout) Split(v mat.Vector) Observation {
	l.checkLen(v)

	obs := mat.NewVecDense(l.ObservationSize, nil)
	achieved := mat.NewVecDense(l.GoalSize, nil)
	desired := mat.NewVecDense(l.GoalSize, nil)

	for i := 0; i < l.ObservationSize; i++ {
		obs.SetVec(i, v.AtVec(i))
	}
	for i := 0; i < l.GoalSize; i++ {
		achieved.SetVec(i, v.AtVec(l.ObservationSize+i))
		desired.SetVec(i, v.AtVec(l.ObservationSize+l.GoalSize+i))
	}

	return Observation{
		Observation:  obs,
		AchievedGoal: achieved,
		DesiredGoal:  desired,
	}
}

// AchievedGoal returns a copy of the achieved-goal segment of a
// vectorized observation
func (l Layout) AchievedGoal(v mat.Vector) *mat.VecDense {
	l.checkLen(v)

	goal := mat.NewVecDense(l.GoalSize, nil)
	for i := 0; i < l.GoalSize; i++ {
		goal.SetVec(i, v.AtVec(l.ObservationSize+i))
	}
	return goal
}

// DesiredGoal returns a copy of the desired-goal segment of a
// vectorized observation
func (l Layout) DesiredGoal(v mat.Vector) *mat.VecDense {
	l.checkLen(v)

	goal := mat.NewVecDense(l.GoalSize, nil)
	for i := 0; i < l.GoalSize; i++ {
		goal.SetVec(i, v.AtVec(l.ObservationSize+l.GoalSize+i))
	}
	return goal
}

// WithDesiredGoal returns a copy of a vectorized observation whose
// desired-goal segment has been replaced with g. The argument vector
// is not modified.
func (l Layout) WithDesiredGoal(v mat.Vector, g mat.Vector) *mat.VecDense {
	l.checkLen(v)
	if g.Len() != l.GoalSize {
		panic(fmt.Sprintf("withDesiredGoal: goal has length %d but layout "+
			"requires length %d", g.Len(), l.GoalSize))
	}

	out := mat.NewVecDense(l.TotalSize(), nil)
	out.CloneFromVec(v)
	for i := 0; i < l.GoalSize; i++ {
		out.SetVec(l.ObservationSize+l.GoalSize+i, g.AtVec(i))
	}
	return out
}
