package maze

import (
	"fmt"

	"github.com/samuelfneumann/gomaze"
	"gonum.org/v1/gonum/mat"

	env "github.com/samuelfneumann/gohindsight/environment"
	"github.com/samuelfneumann/gohindsight/goal"
	ts "github.com/samuelfneumann/gohindsight/timestep"
)

// Rewards for the Solve task
const (
	TimeStepReward float64 = -1.0
	TerminalReward float64 = 0.0
)

// Solve is the task of reaching the exit cell of a maze. Each
// timestep receives TimeStepReward until the exit is reached, which
// receives TerminalReward and ends the episode. Episodes are also cut
// off at a step limit.
//
// A Solve task must be registered with the maze it is run on before
// use. The maze package registers the task automatically when the
// environment is constructed.
type Solve struct {
	maze *gomaze.Maze

	stepLimit  env.Ender
	registered bool
}

// NewSolve returns a new Solve task which cuts episodes off after
// cutoff timesteps
func NewSolve(cutoff int) env.Task {
	stepLimit := env.NewStepLimit(cutoff)
	return &Solve{
		stepLimit: stepLimit,
	}
}

// Register registers the maze that the task is run on
func (s *Solve) Register(m *gomaze.Maze) {
	s.maze = m
	s.registered = true
}

// Start returns the starting cell of the maze as a (row, col) pair.
// Before the task has been registered with a maze, Start returns the
// default starting cell, which lets GoMaze choose the cell itself.
func (s *Solve) Start() *mat.VecDense {
	if !s.registered {
		return mat.NewVecDense(2, []float64{
			float64(DefaultStartRow),
			float64(DefaultStartCol),
		})
	}

	row, col := s.maze.Start()
	return mat.NewVecDense(2, []float64{
		float64(row),
		float64(col),
	})
}

// GetReward returns the reward for a transition
func (s *Solve) GetReward(_, _, _ mat.Vector) float64 {
	if s.maze.AtGoal() {
		return TerminalReward
	}
	return TimeStepReward
}

// End determines whether the current episode should be ended,
// modifying the argument timestep in-place if so
func (s *Solve) End(t *ts.TimeStep) bool {
	if last := s.stepLimit.End(t); last {
		return last
	}

	if s.maze.AtGoal() {
		t.StepType = ts.Last
		t.SetEnd(ts.TerminalStateReached)
		return true
	}
	return false
}

// AtGoal returns whether the argument state is the exit cell
func (s *Solve) AtGoal(state mat.Matrix) bool {
	rows, cols := state.Dims()
	if rows != 2 || cols != 1 {
		return false
	}

	goalRow, goalCol := s.maze.Goal()

	return int(state.At(0, 0)) == goalRow && int(state.At(1, 0)) == goalCol
}

// Min returns the minimum attainable reward
func (s *Solve) Min() float64 {
	return TimeStepReward
}

// Max returns the maximum attainable reward
func (s *Solve) Max() float64 {
	return TerminalReward
}

// RewardSpec describes the rewards of the task
func (s *Solve) RewardSpec() env.Spec {
	shape := mat.NewVecDense(1, nil)
	lowerBound := mat.NewVecDense(1, []float64{TimeStepReward})
	upperBound := mat.NewVecDense(1, []float64{TerminalReward})

	return env.NewSpec(shape, env.Reward, lowerBound, upperBound,
		env.Continuous)
}

// CellGoals gives the goal structure of a Maze for use with
// goal-conditioning wrappers. Goals are maze cells as (row, col)
// pairs, the goal achieved at an observation is the observed cell,
// and the desired goal of every episode is the maze's exit cell.
type CellGoals struct {
	maze *gomaze.Maze
}

// NewCellGoals returns the goal structure of the argument maze
// environment
func NewCellGoals(e env.Environment) (goal.Task, error) {
	m, ok := e.(*Maze)
	if !ok {
		return nil, fmt.Errorf("newCellGoals: environment is not a maze")
	}

	return CellGoals{maze: m.Maze()}, nil
}

// AchievedGoal returns the cell observed at obs
func (c CellGoals) AchievedGoal(obs mat.Vector) *mat.VecDense {
	achieved := mat.NewVecDense(obs.Len(), nil)
	achieved.CloneFromVec(obs)
	return achieved
}

// SampleGoal returns the exit cell of the maze
func (c CellGoals) SampleGoal() *mat.VecDense {
	row, col := c.maze.Goal()
	return mat.NewVecDense(2, []float64{
		float64(row),
		float64(col),
	})
}

// IsSuccess returns whether an achieved cell is the desired cell
func (c CellGoals) IsSuccess(achieved, desired mat.Vector) bool {
	return int(achieved.AtVec(0)) == int(desired.AtVec(0)) &&
		int(achieved.AtVec(1)) == int(desired.AtVec(1))
}

// GoalSpec describes the space of goals
func (c CellGoals) GoalSpec() env.Spec {
	shape := mat.NewVecDense(2, nil)
	lowerBound := mat.NewVecDense(2, nil)
	upperBound := mat.NewVecDense(2, []float64{
		float64(c.maze.Rows() - 1),
		float64(c.maze.Cols() - 1),
	})

	return env.NewSpec(shape, env.Goal, lowerBound, upperBound, env.Discrete)
}
