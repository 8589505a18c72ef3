package gridworld

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	env "github.com/samuelfneumann/gohindsight/environment"
	"github.com/samuelfneumann/gohindsight/goal"
	ts "github.com/samuelfneumann/gohindsight/timestep"
)

// Explore is a task with no goal structure of its own: rewards are
// zero everywhere and episodes end only at a step limit. It is meant
// for GridWorlds that will be wrapped to be goal-conditioned, where
// the wrapper determines rewards and terminal states.
type Explore struct {
	env.Starter
	ender env.Ender
}

// NewExplore returns a new Explore task which starts episodes at
// cells drawn from starter and cuts episodes off after episodeSteps
// timesteps
func NewExplore(starter env.Starter, episodeSteps int) env.Task {
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

// CellGoals gives the goal structure of a GridWorld for use with
// goal-conditioning wrappers. Goals are grid cells as (x, y) pairs,
// the goal achieved at an observation is the cell the observation
// encodes, and each episode's desired goal is a uniformly random
// cell.
type CellGoals struct {
	r, c  int
	cells env.Starter
}

// NewCellGoals returns the goal structure of an r by c GridWorld
func NewCellGoals(r, c int, seed uint64) goal.Task {
	return CellGoals{
		r:     r,
		c:     c,
		cells: env.NewCategoricalStarter([]int{c, r}, seed),
	}
}

// AchievedGoal returns the cell encoded by a one-hot observation
func (g CellGoals) AchievedGoal(obs mat.Vector) *mat.VecDense {
	x, y, err := vToC(obs, g.r, g.c)
	if err != nil {
		panic(fmt.Sprintf("achievedGoal: %v", err))
	}
	return mat.NewVecDense(2, []float64{float64(x), float64(y)})
}

// SampleGoal draws a uniformly random cell as the desired goal for a
// new episode
func (g CellGoals) SampleGoal() *mat.VecDense {
	return g.cells.Start()
}

// IsSuccess returns whether an achieved cell is the desired cell
func (g CellGoals) IsSuccess(achieved, desired mat.Vector) bool {
	return int(achieved.AtVec(0)) == int(desired.AtVec(0)) &&
		int(achieved.AtVec(1)) == int(desired.AtVec(1))
}

// GoalSpec describes the space of goals
func (g CellGoals) GoalSpec() env.Spec {
	shape := mat.NewVecDense(2, nil)
	lowerBound := mat.NewVecDense(2, nil)
	upperBound := mat.NewVecDense(2, []float64{
		float64(g.c - 1),
		float64(g.r - 1),
	})

	return env.NewSpec(shape, env.Goal, lowerBound, upperBound, env.Discrete)
}
