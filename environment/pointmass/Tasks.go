package pointmass

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"

	env "github.com/samuelfneumann/gohindsight/environment"
	"github.com/samuelfneumann/gohindsight/goal"
	ts "github.com/samuelfneumann/gohindsight/timestep"
)

// Explore is a task with no goal structure of its own: rewards are
// zero everywhere and episodes end only at a step limit. It is meant
// for PointMass environments that will be wrapped to be
// goal-conditioned.
type Explore struct {
	env.Starter
	ender env.Ender
}

// NewExplore returns a new Explore task which starts episodes at
// positions drawn uniformly from the plane xBounds by yBounds and
// cuts episodes off after episodeSteps timesteps
func NewExplore(xBounds, yBounds r1.Interval, episodeSteps int,
	seed uint64) env.Task {
	starter := env.NewUniformStarter([]r1.Interval{xBounds, yBounds}, seed)

	return &Explore{
		Starter: starter,
		ender:   env.NewStepLimit(episodeSteps),
	}
}

// GetReward returns the reward for a transition, which is always 0
func (e *Explore) GetReward(state, action, nextState mat.Vector) float64 {
	return 0.0
}

// AtGoal returns whether the argument state is a goal state. An
// Explore task has no goal states.
func (e *Explore) AtGoal(state mat.Matrix) bool {
	return false
}

// Min returns the minimum attainable reward
func (e *Explore) Min() float64 {
	return 0.0
}

// Max returns the maximum attainable reward
func (e *Explore) Max() float64 {
	return 0.0
}

// RewardSpec describes the rewards of the task
func (e *Explore) RewardSpec() env.Spec {
	shape := mat.NewVecDense(1, nil)
	bound := mat.NewVecDense(1, nil)

	return env.NewSpec(shape, env.Reward, bound, bound, env.Continuous)
}

// End determines whether the current episode should be ended,
// modifying the argument timestep in-place if so
func (e *Explore) End(t *ts.TimeStep) bool {
	return e.ender.End(t)
}

// PositionGoals gives the goal structure of a PointMass for use with
// goal-conditioning wrappers. Goals are positions on the plane, the
// goal achieved at an observation is the observed position itself,
// and each episode's desired goal is drawn uniformly from the plane.
// An achieved position satisfies a desired one when it lies within
// radius of it.
type PositionGoals struct {
	xBounds r1.Interval
	yBounds r1.Interval
	radius  float64
	goals   env.Starter
}

// NewPositionGoals returns the goal structure of a PointMass on the
// plane xBounds by yBounds, where goals are considered achieved
// within radius
func NewPositionGoals(xBounds, yBounds r1.Interval, radius float64,
	seed uint64) goal.Task {
	if radius <= 0 {
		panic(fmt.Sprintf("newPositionGoals: radius must be positive, "+
			"got %v", radius))
	}

	return PositionGoals{
		xBounds: xBounds,
		yBounds: yBounds,
		radius:  radius,
		goals:   env.NewUniformStarter([]r1.Interval{xBounds, yBounds}, seed),
	}
}

// AchievedGoal returns the position observed at obs
func (p PositionGoals) AchievedGoal(obs mat.Vector) *mat.VecDense {
	achieved := mat.NewVecDense(obs.Len(), nil)
	achieved.CloneFromVec(obs)
	return achieved
}

// SampleGoal draws a uniformly random position as the desired goal
// for a new episode
func (p PositionGoals) SampleGoal() *mat.VecDense {
	return p.goals.Start()
}

// IsSuccess returns whether an achieved position lies within the
// task's radius of a desired position
func (p PositionGoals) IsSuccess(achieved, desired mat.Vector) bool {
	a := []float64{achieved.AtVec(0), achieved.AtVec(1)}
	d := []float64{desired.AtVec(0), desired.AtVec(1)}

	return floats.Distance(a, d, 2) <= p.radius
}

// GoalSpec describes the space of goals
func (p PositionGoals) GoalSpec() env.Spec {
	shape := mat.NewVecDense(ObservationDims, nil)
	lowerBound := mat.NewVecDense(ObservationDims, []float64{
		p.xBounds.Min,
		p.yBounds.Min,
	})
	upperBound := mat.NewVecDense(ObservationDims, []float64{
		p.xBounds.Max,
		p.yBounds.Max,
	})

	return env.NewSpec(shape, env.Goal, lowerBound, upperBound,
		env.Continuous)
}
