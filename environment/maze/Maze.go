// Package maze implements maze environments using GoMaze
package maze

import (
	"fmt"

	"github.com/samuelfneumann/gomaze"
	"gonum.org/v1/gonum/mat"

	env "github.com/samuelfneumann/gohindsight/environment"
	ts "github.com/samuelfneumann/gohindsight/timestep"
)

// Default start and end cells. Negative values let GoMaze choose.
const (
	DefaultStartRow int = -1
	DefaultStartCol int = -1
	DefaultEndRow   int = -1
	DefaultEndCol   int = -1
)

// Maze represents a maze environment. Observations are the (row, col)
// cell of the agent.
type Maze struct {
	env.Task
	maze *gomaze.Maze

	discount    float64
	currentStep ts.TimeStep
}

// New creates a new rows by cols Maze with task t, generating the
// maze walls with init
func New(t env.Task, rows, cols int, init gomaze.Initer,
	discount float64) (env.Environment, ts.TimeStep, error) {

	start := t.Start()
	startRow := int(start.AtVec(0))
	startCol := int(start.AtVec(1))

	maze, err := gomaze.NewMaze(rows, cols, DefaultEndRow, DefaultEndCol,
		startRow, startCol, init, false)
	if err != nil {
		return nil, ts.TimeStep{}, fmt.Errorf("new: could not create maze: %v",
			err)
	}

	// Tasks that need the underlying maze register it here
	if task, ok := t.(*Solve); ok {
		task.Register(maze)
	}

	floatState := maze.Reset()
	state := mat.NewVecDense(len(floatState), floatState)
	step := ts.New(ts.First, 0, discount, state, 0)

	mazeEnv := &Maze{
		Task:        t,
		maze:        maze,
		discount:    discount,
		currentStep: step,
	}

	return mazeEnv, step, nil
}

// Step takes one environmental step given action a and returns the
// next timestep and whether it is the last in the episode
func (m *Maze) Step(action *mat.VecDense) (ts.TimeStep, bool, error) {
	if action.Len() > 1 {
		return ts.TimeStep{}, false, fmt.Errorf("step: actions must be " +
			"1-dimensional")
	}

	a := int(action.AtVec(0))

	newPos, _, _, err := m.maze.Step(a)
	if err != nil {
		return ts.TimeStep{}, false, err
	}
	nextState := mat.NewVecDense(len(newPos), newPos)

	reward := m.GetReward(m.currentStep.Observation, action, nextState)
	nextStep := ts.New(ts.Mid, reward, m.discount, nextState,
		m.currentStep.Number+1)

	last := m.End(&nextStep)
	m.currentStep = nextStep

	return nextStep, last, nil
}

// Reset resets the environment and returns the first timestep of the
// new episode
func (m *Maze) Reset() (ts.TimeStep, error) {
	floatState := m.maze.Reset()

	state := mat.NewVecDense(len(floatState), floatState)
	step := ts.New(ts.First, 0, m.discount, state, 0)

	m.currentStep = step

	return step, nil
}

// CurrentTimeStep returns the last timestep of the environment
func (m *Maze) CurrentTimeStep() ts.TimeStep {
	return m.currentStep
}

// Maze returns the underlying GoMaze maze
func (m *Maze) Maze() *gomaze.Maze {
	return m.maze
}

// ActionSpec describes the actions of the environment
func (m *Maze) ActionSpec() env.Spec {
	shape := mat.NewVecDense(1, nil)
	lowerBound := mat.NewVecDense(1, []float64{0.0})
	upperBound := mat.NewVecDense(1, []float64{float64(gomaze.Actions - 1)})

	return env.NewSpec(shape, env.Action, lowerBound, upperBound, env.Discrete)
}

// ObservationSpec describes the observations of the environment
func (m *Maze) ObservationSpec() env.Spec {
	shape := mat.NewVecDense(2, nil)
	lowerBound := mat.NewVecDense(2, []float64{0.0, 0.0})
	upperBound := mat.NewVecDense(2, []float64{
		float64(m.maze.Rows() - 1),
		float64(m.maze.Cols() - 1),
	})

	return env.NewSpec(shape, env.Observation, lowerBound, upperBound,
		env.Discrete)
}

// DiscountSpec describes the discounts of the environment
func (m *Maze) DiscountSpec() env.Spec {
	shape := mat.NewVecDense(1, nil)
	bound := mat.NewVecDense(1, []float64{m.discount})

	return env.NewSpec(shape, env.Discount, bound, bound, env.Continuous)
}
