// Package pointmass implements a kinematic point agent on a bounded
// 2D plane
package pointmass

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"

	env "github.com/samuelfneumann/gohindsight/environment"
	ts "github.com/samuelfneumann/gohindsight/timestep"
	"github.com/samuelfneumann/gohindsight/utils/floatutils"
)

// ObservationDims is the dimensionality of PointMass observations,
// which are the (x, y) position of the agent
const ObservationDims int = 2

// ActionDims is the dimensionality of PointMass actions, which are
// velocity commands along the x and y axes
const ActionDims int = 2

// MaxAction and MinAction bound each dimension of the action. Action
// dimensions outside these bounds are clipped to them.
const (
	MinAction float64 = -1.0
	MaxAction float64 = 1.0
)

// PointMass represents an environment where a point agent moves on a
// bounded 2D plane. Observations are the (x, y) position of the
// agent. Actions are 2-dimensional velocity commands, each dimension
// clipped to [MinAction, MaxAction] and scaled by the environment's
// speed. Positions are clipped to the plane's bounds.
//
// A PointMass has no goal structure of its own. Starting states,
// rewards, and episode ends are determined by its Task, and the
// environment is usually wrapped to be goal-conditioned.
type PointMass struct {
	env.Task
	xBounds r1.Interval
	yBounds r1.Interval
	speed   float64

	x, y float64

	discount    float64
	currentStep ts.TimeStep
}

// New creates a new PointMass on the plane xBounds by yBounds, with
// task t and discount factor discount. A full-magnitude action moves
// the agent speed units along an axis in one timestep.
func New(t env.Task, xBounds, yBounds r1.Interval, speed,
	discount float64) (env.Environment, ts.TimeStep, error) {
	if xBounds.Min >= xBounds.Max || yBounds.Min >= yBounds.Max {
		return nil, ts.TimeStep{}, fmt.Errorf("new: invalid plane bounds "+
			"[%v, %v] x [%v, %v]", xBounds.Min, xBounds.Max, yBounds.Min,
			yBounds.Max)
	}
	if speed <= 0 {
		return nil, ts.TimeStep{}, fmt.Errorf("new: speed must be "+
			"positive, got %v", speed)
	}

	p := &PointMass{
		Task:     t,
		xBounds:  xBounds,
		yBounds:  yBounds,
		speed:    speed,
		discount: discount,
	}

	step, err := p.Reset()
	if err != nil {
		return nil, ts.TimeStep{}, fmt.Errorf("new: %v", err)
	}

	return p, step, nil
}

// Reset resets the environment to a starting position sampled from
// its Task and returns the first timestep of the new episode
func (p *PointMass) Reset() (ts.TimeStep, error) {
	start := p.Start()
	if start.Len() != ObservationDims {
		return ts.TimeStep{}, fmt.Errorf("reset: starting states must be "+
			"(x, y) pairs, got length %d", start.Len())
	}

	p.x = floatutils.Clip(start.AtVec(0), p.xBounds.Min, p.xBounds.Max)
	p.y = floatutils.Clip(start.AtVec(1), p.yBounds.Min, p.yBounds.Max)

	step := ts.New(ts.First, 0, p.discount, p.position(), 0)
	p.currentStep = step

	return step, nil
}

// Step takes one environmental step given action a and returns the
// next timestep and whether it is the last in the episode
func (p *PointMass) Step(a *mat.VecDense) (ts.TimeStep, bool, error) {
	if a.Len() != ActionDims {
		return ts.TimeStep{}, true, fmt.Errorf("step: actions must have "+
			"%d dimensions, got %d", ActionDims, a.Len())
	}

	dx := floatutils.Clip(a.AtVec(0), MinAction, MaxAction) * p.speed
	dy := floatutils.Clip(a.AtVec(1), MinAction, MaxAction) * p.speed

	state := p.position()
	p.x = floatutils.Clip(p.x+dx, p.xBounds.Min, p.xBounds.Max)
	p.y = floatutils.Clip(p.y+dy, p.yBounds.Min, p.yBounds.Max)
	nextState := p.position()

	reward := p.GetReward(state, a, nextState)
	nextStep := ts.New(ts.Mid, reward, p.discount, nextState,
		p.currentStep.Number+1)

	last := p.End(&nextStep)
	p.currentStep = nextStep

	return nextStep, last, nil
}

// CurrentTimeStep returns the last timestep of the environment
func (p *PointMass) CurrentTimeStep() ts.TimeStep {
	return p.currentStep
}

// position returns the current position of the agent as a new vector
func (p *PointMass) position() *mat.VecDense {
	return mat.NewVecDense(ObservationDims, []float64{p.x, p.y})
}

// ActionSpec describes the actions of the environment
func (p *PointMass) ActionSpec() env.Spec {
	shape := mat.NewVecDense(ActionDims, nil)
	lowerBound := mat.NewVecDense(ActionDims, []float64{MinAction,
		MinAction})
	upperBound := mat.NewVecDense(ActionDims, []float64{MaxAction,
		MaxAction})

	return env.NewSpec(shape, env.Action, lowerBound, upperBound,
		env.Continuous)
}

// ObservationSpec describes the observations of the environment
func (p *PointMass) ObservationSpec() env.Spec {
	shape := mat.NewVecDense(ObservationDims, nil)
	lowerBound := mat.NewVecDense(ObservationDims, []float64{
		p.xBounds.Min,
		p.yBounds.Min,
	})
	upperBound := mat.NewVecDense(ObservationDims, []float64{
		p.xBounds.Max,
		p.yBounds.Max,
	})

	return env.NewSpec(shape, env.Observation, lowerBound, upperBound,
		env.Continuous)
}

// DiscountSpec describes the discounts of the environment
func (p *PointMass) DiscountSpec() env.Spec {
	shape := mat.NewVecDense(1, nil)
	bound := mat.NewVecDense(1, []float64{p.discount})

	return env.NewSpec(shape, env.Discount, bound, bound, env.Continuous)
}
