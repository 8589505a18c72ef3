// Package envconfig provides configuration structs for configuring
// goal-conditioned environments with default physical parameters.
// Environment configurations in this package are JSON serializable.
package envconfig

import (
	"fmt"

	"github.com/samuelfneumann/gomaze"
	"gonum.org/v1/gonum/spatial/r1"

	env "github.com/samuelfneumann/gohindsight/environment"
	"github.com/samuelfneumann/gohindsight/environment/gridworld"
	"github.com/samuelfneumann/gohindsight/environment/gym"
	"github.com/samuelfneumann/gohindsight/environment/maze"
	"github.com/samuelfneumann/gohindsight/environment/pointmass"
	"github.com/samuelfneumann/gohindsight/environment/wrappers"
	"github.com/samuelfneumann/gohindsight/goal"
	ts "github.com/samuelfneumann/gohindsight/timestep"
)

// EnvName stores the name of environments that can be configured with
// this package
type EnvName string

// Environments available for configuration. Each environment is
// wrapped to be goal-conditioned, with the goal structure implied by
// the environment: Gridworld goals are grid cells, PointMass goals
// are plane positions, Maze goals are maze cells, and Gym goals are
// supplied by the caller.
const (
	Gridworld EnvName = "Gridworld"
	PointMass EnvName = "PointMass"
	Maze      EnvName = "Maze"
	Gym       EnvName = "Gym"
)

// Config implements a specific configuration of a specific
// goal-conditioned environment. Fields that do not apply to the
// configured environment are ignored, e.g. SlipProb configures
// Gridworld environments only.
type Config struct {
	Environment EnvName

	// Grid dimensions for Gridworld and Maze environments
	Rows int
	Cols int

	// SlipProb is the probability that a Gridworld action slips to a
	// random direction
	SlipProb float64

	// Speed scales PointMass actions and GoalRadius is the distance
	// at which a PointMass position achieves a goal position
	Speed      float64
	GoalRadius float64

	// GymName names the gym environment to build
	GymName string

	EpisodeCutoff uint
	Discount      float64

	// Rewards emitted by the goal-conditioning wrapper on transitions
	// that reach the desired goal and on all other transitions
	SuccessReward float64
	DefaultReward float64
}

// Create returns the goal-conditioned environment described by the
// Config as well as the first timestep of the environment.
//
// Maze and Gym environments need live collaborators that JSON cannot
// express, a gomaze.Initer and a goal.Task respectively, so they
// cannot be created from a Config. Use CreateMaze and CreateGym
// directly for those.
func (c Config) Create(seed uint64) (env.Environment, ts.TimeStep, error) {
	switch c.Environment {
	case Gridworld:
		return CreateGridworld(c.Rows, c.Cols, c.SlipProb, c.EpisodeCutoff,
			c.Discount, c.SuccessReward, c.DefaultReward, seed)

	case PointMass:
		return CreatePointMass(c.Speed, c.GoalRadius, c.EpisodeCutoff,
			c.Discount, c.SuccessReward, c.DefaultReward, seed)

	case Maze:
		return nil, ts.TimeStep{}, fmt.Errorf("create: maze environments " +
			"need a gomaze.Initer, use CreateMaze")

	case Gym:
		return nil, ts.TimeStep{}, fmt.Errorf("create: gym environments "+
			"need a caller-supplied goal task, use CreateGym to create %v",
			c.GymName)
	}

	panic(fmt.Sprintf("create: cannot create environment %v, no such "+
		"environment", c.Environment))
}

// CreateGridworld is a factory for creating a goal-conditioned
// gridworld. Episodes start at the bottom-left cell with a desired
// goal cell drawn uniformly at random, and are cut off after cutoff
// timesteps if the goal cell is not reached.
func CreateGridworld(rows, cols int, slipProb float64, cutoff uint,
	discount, successReward, defaultReward float64,
	seed uint64) (env.Environment, ts.TimeStep, error) {
	starter, err := gridworld.NewSingleStart(0, 0, rows, cols)
	if err != nil {
		return nil, ts.TimeStep{}, fmt.Errorf("createGridworld: could not "+
			"create starter: %v", err)
	}

	task := gridworld.NewExplore(starter, int(cutoff))
	base, _, err := gridworld.New(task, rows, cols, slipProb, discount, seed)
	if err != nil {
		return nil, ts.TimeStep{}, fmt.Errorf("createGridworld: %v", err)
	}

	return wrappers.NewGoal(base, gridworld.NewCellGoals(rows, cols, seed),
		successReward, defaultReward)
}

// CreatePointMass is a factory for creating a goal-conditioned
// point-mass reacher on the plane [-1, 1] x [-1, 1]. Episodes start
// at positions drawn uniformly at random, with a desired goal
// position also drawn uniformly at random, achieved when the mass
// comes within goalRadius of it.
func CreatePointMass(speed, goalRadius float64, cutoff uint,
	discount, successReward, defaultReward float64,
	seed uint64) (env.Environment, ts.TimeStep, error) {
	xBounds := r1.Interval{Min: -1.0, Max: 1.0}
	yBounds := r1.Interval{Min: -1.0, Max: 1.0}

	task := pointmass.NewExplore(xBounds, yBounds, int(cutoff), seed)
	base, _, err := pointmass.New(task, xBounds, yBounds, speed, discount)
	if err != nil {
		return nil, ts.TimeStep{}, fmt.Errorf("createPointMass: %v", err)
	}

	goals := pointmass.NewPositionGoals(xBounds, yBounds, goalRadius, seed)
	return wrappers.NewGoal(base, goals, successReward, defaultReward)
}

// CreateMaze is a factory for creating a goal-conditioned maze. The
// desired goal of every episode is the maze's exit cell, and episodes
// are cut off after cutoff timesteps if the exit is not reached. The
// init parameter decides the maze generation algorithm.
func CreateMaze(rows, cols int, init gomaze.Initer, cutoff uint,
	discount, successReward, defaultReward float64) (env.Environment,
	ts.TimeStep, error) {
	base, _, err := maze.New(maze.NewSolve(int(cutoff)), rows, cols, init,
		discount)
	if err != nil {
		return nil, ts.TimeStep{}, fmt.Errorf("createMaze: %v", err)
	}

	goals, err := maze.NewCellGoals(base)
	if err != nil {
		return nil, ts.TimeStep{}, fmt.Errorf("createMaze: could not create "+
			"goal structure: %v", err)
	}

	return wrappers.NewGoal(base, goals, successReward, defaultReward)
}

// CreateGym is a factory for creating a goal-conditioned gym
// environment. The goal structure of an external simulator cannot be
// derived from its observations alone, so the caller supplies it as a
// goal.Task, conventionally a goal.Func. Episodes are cut off after
// cutoff timesteps.
func CreateGym(name string, task goal.Task, cutoff uint,
	discount, successReward, defaultReward float64,
	seed uint64) (env.Environment, ts.TimeStep, error) {
	base, _, err := gym.New(name, discount, seed)
	if err != nil {
		return nil, ts.TimeStep{}, fmt.Errorf("createGym: %v", err)
	}

	limited, _, err := wrappers.NewTimeLimit(base, int(cutoff))
	if err != nil {
		return nil, ts.TimeStep{}, fmt.Errorf("createGym: could not limit "+
			"episode length: %v", err)
	}

	return wrappers.NewGoal(limited, task, successReward, defaultReward)
}
