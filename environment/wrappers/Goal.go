package wrappers

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/gohindsight/environment"
	"github.com/samuelfneumann/gohindsight/goal"
	ts "github.com/samuelfneumann/gohindsight/timestep"
)

// BaseReward is the key under which a Goal wrapper records the
// unmodified reward of its wrapped environment in each timestep's
// Info map.
const BaseReward string = "base_reward"

// Goal wraps an environment so that it becomes goal-conditioned. On
// each episode, a desired goal is drawn from a goal.Task, and every
// observation the wrapper emits is the vectorized form of a
// goal-conditioned observation: the base environment observation,
// followed by the goal achieved at that observation, followed by the
// episode's desired goal.
//
// The wrapper overrides the reward and ending structure of the
// wrapped environment. A step that achieves the desired goal receives
// the success reward and ends the episode at a terminal state. Every
// other step receives the default reward. Episodes also end whenever
// the wrapped environment ends them. The reward of the wrapped
// environment is never used for training, but is preserved in each
// timestep's Info map under the BaseReward key.
//
// Goal itself implements the environment.Environment interface, and
// is therefore itself an Environment.
type Goal struct {
	environment.Environment
	task   goal.Task
	layout goal.Layout

	successReward float64
	defaultReward float64

	desiredGoal *mat.VecDense
	currentStep ts.TimeStep
}

// NewGoal creates and returns a new goal-conditioned environment which
// draws desired goals from task. Steps achieving the desired goal
// receive successReward and end the episode. All other steps receive
// defaultReward.
func NewGoal(env environment.Environment, task goal.Task, successReward,
	defaultReward float64) (*Goal, ts.TimeStep, error) {
	if task == nil {
		return nil, ts.TimeStep{}, fmt.Errorf("newGoal: no goal task given")
	}

	layout := goal.NewLayout(
		env.ObservationSpec().Shape.Len(),
		task.GoalSpec().Shape.Len(),
	)

	wrapped := &Goal{
		Environment:   env,
		task:          task,
		layout:        layout,
		successReward: successReward,
		defaultReward: defaultReward,
	}

	step, err := wrapped.Reset()
	if err != nil {
		return nil, ts.TimeStep{}, fmt.Errorf("newGoal: could not reset "+
			"environment: %v", err)
	}

	return wrapped, step, nil
}

// Reset resets the wrapped environment, draws the desired goal for
// the new episode, and returns the first goal-conditioned timestep
func (g *Goal) Reset() (ts.TimeStep, error) {
	step, err := g.Environment.Reset()
	if err != nil {
		return ts.TimeStep{}, fmt.Errorf("reset: could not reset wrapped "+
			"environment: %v", err)
	}

	g.desiredGoal = g.task.SampleGoal()

	step.Observation = g.observation(step.Observation)
	g.currentStep = step

	return step, nil
}

// Step takes one environmental step given action a and returns the
// next goal-conditioned timestep and whether it is the last in the
// episode
func (g *Goal) Step(a *mat.VecDense) (ts.TimeStep, bool, error) {
	step, _, err := g.Environment.Step(a)
	if err != nil {
		return ts.TimeStep{}, true, fmt.Errorf("step: could not step "+
			"wrapped environment: %v", err)
	}

	achieved := g.task.AchievedGoal(step.Observation)
	success := g.task.IsSuccess(achieved, g.desiredGoal)

	step.SetInfo(BaseReward, step.Reward)
	if success {
		step.Reward = g.successReward
		step.StepType = ts.Last
		step.SetEnd(ts.TerminalStateReached)
	} else {
		step.Reward = g.defaultReward
	}

	step.Observation = g.observation(step.Observation)
	g.currentStep = step

	return step, step.Last(), nil
}

// observation returns the vectorized goal-conditioned form of a base
// environment observation
func (g *Goal) observation(obs *mat.VecDense) *mat.VecDense {
	achieved := g.task.AchievedGoal(obs)
	return goal.NewObservation(obs, achieved, g.desiredGoal).Vectorize()
}

// CurrentTimeStep returns the last timestep of the environment
func (g *Goal) CurrentTimeStep() ts.TimeStep {
	return g.currentStep
}

// Unwrapped returns the environment that the Goal wrapper wraps
func (g *Goal) Unwrapped() environment.Environment {
	return g.Environment
}

// Layout returns the layout of the vectorized observations the
// environment emits
func (g *Goal) Layout() goal.Layout {
	return g.layout
}

// IsSuccess returns whether an achieved goal satisfies a desired goal
func (g *Goal) IsSuccess(achieved, desired mat.Vector) bool {
	return g.task.IsSuccess(achieved, desired)
}

// GoalSpec describes the space of goals
func (g *Goal) GoalSpec() environment.Spec {
	return g.task.GoalSpec()
}

// DesiredGoal returns the desired goal of the current episode
func (g *Goal) DesiredGoal() *mat.VecDense {
	return g.desiredGoal
}

// ObservationSpec describes the vectorized goal-conditioned
// observations the environment emits
func (g *Goal) ObservationSpec() environment.Spec {
	baseSpec := g.Environment.ObservationSpec()
	goalSpec := g.task.GoalSpec()

	size := g.layout.TotalSize()
	shape := mat.NewVecDense(size, nil)
	lowerBound := mat.NewVecDense(size, nil)
	upperBound := mat.NewVecDense(size, nil)

	for i := 0; i < g.layout.ObservationSize; i++ {
		lowerBound.SetVec(i, baseSpec.LowerBound.AtVec(i))
		upperBound.SetVec(i, baseSpec.UpperBound.AtVec(i))
	}
	for i := 0; i < g.layout.GoalSize; i++ {
		for _, offset := range []int{g.layout.ObservationSize,
			g.layout.ObservationSize + g.layout.GoalSize} {
			lowerBound.SetVec(offset+i, goalSpec.LowerBound.AtVec(i))
			upperBound.SetVec(offset+i, goalSpec.UpperBound.AtVec(i))
		}
	}

	return environment.NewSpec(shape, environment.Observation, lowerBound,
		upperBound, baseSpec.Cardinality)
}

// GetReward returns the goal-conditioned reward for a transition
// between vectorized observations
func (g *Goal) GetReward(state, action, nextState mat.Vector) float64 {
	achieved := g.layout.AchievedGoal(nextState)
	desired := g.layout.DesiredGoal(nextState)

	if g.task.IsSuccess(achieved, desired) {
		return g.successReward
	}
	return g.defaultReward
}

// AtGoal returns whether the argument vectorized observation achieves
// its desired goal
func (g *Goal) AtGoal(state mat.Matrix) bool {
	rows, cols := state.Dims()
	if cols != 1 {
		panic(fmt.Sprintf("atGoal: expected a single column state, got %d "+
			"columns", cols))
	}

	vec := mat.NewVecDense(rows, nil)
	for i := 0; i < rows; i++ {
		vec.SetVec(i, state.At(i, 0))
	}

	achieved := g.layout.AchievedGoal(vec)
	desired := g.layout.DesiredGoal(vec)
	return g.task.IsSuccess(achieved, desired)
}

// Min returns the minimum attainable reward
func (g *Goal) Min() float64 {
	return math.Min(g.successReward, g.defaultReward)
}

// Max returns the maximum attainable reward
func (g *Goal) Max() float64 {
	return math.Max(g.successReward, g.defaultReward)
}

// RewardSpec describes the rewards the environment emits
func (g *Goal) RewardSpec() environment.Spec {
	shape := mat.NewVecDense(1, nil)
	lowerBound := mat.NewVecDense(1, []float64{g.Min()})
	upperBound := mat.NewVecDense(1, []float64{g.Max()})

	return environment.NewSpec(shape, environment.Reward, lowerBound,
		upperBound, environment.Continuous)
}
