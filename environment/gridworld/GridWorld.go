// Package gridworld implements 2D gridworld environments
package gridworld

import (
	"fmt"

	"github.com/fogleman/gg"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	env "github.com/samuelfneumann/gohindsight/environment"
	ts "github.com/samuelfneumann/gohindsight/timestep"
)

// Actions available in every GridWorld
const (
	Left int = iota
	Right
	Up
	Down
)

const numActions int = 4

// GridWorld represents a gridworld environment. Observations are
// one-hot encodings of the agent's cell in a flattened r by c grid.
// Actions move the agent one cell left, right, up, or down. Actions
// that would move the agent off the grid leave its position
// unchanged.
//
// With probability slipProb the agent slips, and a uniformly random
// action is executed in place of the chosen one.
//
// A GridWorld has no goal structure of its own. Starting states,
// rewards, and episode ends are determined by its Task, and
// gridworlds are usually wrapped to be goal-conditioned, in which
// case the wrapper overrides rewards and episode ends.
type GridWorld struct {
	env.Task
	r, c     int
	slipProb float64

	x, y int // current agent cell, x indexing columns and y rows

	discount    float64
	currentStep ts.TimeStep
	rng         *rand.Rand
}

// New creates a new GridWorld with r rows and c columns, task t, slip
// probability slipProb, and discount factor discount
func New(t env.Task, r, c int, slipProb, discount float64,
	seed uint64) (env.Environment, ts.TimeStep, error) {
	if r <= 0 || c <= 0 {
		return nil, ts.TimeStep{}, fmt.Errorf("new: gridworld must have "+
			"positive dimensions, got %d x %d", r, c)
	}
	if slipProb < 0.0 || slipProb >= 1.0 {
		return nil, ts.TimeStep{}, fmt.Errorf("new: slip probability must "+
			"be in [0, 1), got %v", slipProb)
	}

	g := &GridWorld{
		Task:     t,
		r:        r,
		c:        c,
		slipProb: slipProb,
		discount: discount,
		rng:      rand.New(rand.NewSource(seed)),
	}

	step, err := g.Reset()
	if err != nil {
		return nil, ts.TimeStep{}, fmt.Errorf("new: %v", err)
	}

	return g, step, nil
}

// Reset resets the environment to a starting state sampled from its
// Task and returns the first timestep of the new episode
func (g *GridWorld) Reset() (ts.TimeStep, error) {
	start := g.Start()
	if start.Len() != 2 {
		return ts.TimeStep{}, fmt.Errorf("reset: starting states must be "+
			"(x, y) pairs, got length %d", start.Len())
	}

	x, y := int(start.AtVec(0)), int(start.AtVec(1))
	if x < 0 || x >= g.c || y < 0 || y >= g.r {
		return ts.TimeStep{}, fmt.Errorf("reset: starting cell (%d, %d) is "+
			"off the %d x %d grid", x, y, g.r, g.c)
	}
	g.x, g.y = x, y

	step := ts.New(ts.First, 0, g.discount, g.cToV(g.x, g.y), 0)
	g.currentStep = step

	return step, nil
}

// Step takes one environmental step given action a and returns the
// next timestep and whether it is the last in the episode
func (g *GridWorld) Step(a *mat.VecDense) (ts.TimeStep, bool, error) {
	if a.Len() != 1 {
		return ts.TimeStep{}, true, fmt.Errorf("step: actions must be "+
			"1-dimensional, got %d dimensions", a.Len())
	}

	direction := int(a.AtVec(0))
	if direction < Left || direction > Down {
		return ts.TimeStep{}, true, fmt.Errorf("step: no such action %d",
			direction)
	}

	if g.slipProb > 0.0 && g.rng.Float64() < g.slipProb {
		direction = g.rng.Intn(numActions)
	}

	x, y := g.x, g.y
	switch direction {
	case Left:
		if newX := x - 1; newX >= 0 {
			x = newX
		}

	case Right:
		if newX := x + 1; newX < g.c {
			x = newX
		}

	case Up:
		if newY := y + 1; newY < g.r {
			y = newY
		}

	case Down:
		if newY := y - 1; newY >= 0 {
			y = newY
		}
	}

	state := g.cToV(g.x, g.y)
	g.x, g.y = x, y
	nextState := g.cToV(x, y)

	reward := g.GetReward(state, a, nextState)
	nextStep := ts.New(ts.Mid, reward, g.discount, nextState,
		g.currentStep.Number+1)

	last := g.End(&nextStep)
	g.currentStep = nextStep

	return nextStep, last, nil
}

// CurrentTimeStep returns the last timestep of the environment
func (g *GridWorld) CurrentTimeStep() ts.TimeStep {
	return g.currentStep
}

// Dims gets the rows and columns of the GridWorld
func (g *GridWorld) Dims() (r, c int) {
	return g.r, g.c
}

// At checks the value at position (i, j) in the gridworld. A value of
// 1.0 indicates that the agent is at position (i, j).
func (g *GridWorld) At(i, j int) float64 {
	if j == g.x && i == g.y {
		return 1.0
	}
	return 0.0
}

// ActionSpec describes the actions of the environment
func (g *GridWorld) ActionSpec() env.Spec {
	shape := mat.NewVecDense(1, nil)
	lowerBound := mat.NewVecDense(1, []float64{float64(Left)})
	upperBound := mat.NewVecDense(1, []float64{float64(Down)})

	return env.NewSpec(shape, env.Action, lowerBound, upperBound,
		env.Discrete)
}

// ObservationSpec describes the one-hot observations of the
// environment
func (g *GridWorld) ObservationSpec() env.Spec {
	size := g.r * g.c
	shape := mat.NewVecDense(size, nil)
	lowerBound := mat.NewVecDense(size, nil)

	ones := make([]float64, size)
	for i := range ones {
		ones[i] = 1.0
	}
	upperBound := mat.NewVecDense(size, ones)

	return env.NewSpec(shape, env.Observation, lowerBound, upperBound,
		env.Discrete)
}

// DiscountSpec describes the discounts of the environment
func (g *GridWorld) DiscountSpec() env.Spec {
	shape := mat.NewVecDense(1, nil)
	bound := mat.NewVecDense(1, []float64{g.discount})

	return env.NewSpec(shape, env.Discount, bound, bound, env.Continuous)
}

// SaveImage renders the gridworld and saves it as a PNG image at
// path. The agent's cell is drawn filled, and row 0 is drawn at the
// bottom of the image.
func (g *GridWorld) SaveImage(path string) error {
	const cell = 40

	dc := gg.NewContext(g.c*cell, g.r*cell)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	dc.SetRGB(0.2, 0.4, 0.8)
	dc.DrawRectangle(float64(g.x*cell), float64((g.r-1-g.y)*cell), cell, cell)
	dc.Fill()

	dc.SetRGB(0.5, 0.5, 0.5)
	dc.SetLineWidth(1.0)
	for i := 0; i <= g.c; i++ {
		dc.DrawLine(float64(i*cell), 0, float64(i*cell), float64(g.r*cell))
	}
	for i := 0; i <= g.r; i++ {
		dc.DrawLine(0, float64(i*cell), float64(g.c*cell), float64(i*cell))
	}
	dc.Stroke()

	return dc.SavePNG(path)
}

// cToV returns the one-hot encoding of cell (x, y)
func (g *GridWorld) cToV(x, y int) *mat.VecDense {
	return cToV(x, y, g.r, g.c)
}

func cToV(x, y, r, c int) *mat.VecDense {
	vec := mat.NewVecDense(r*c, nil)
	vec.SetVec(cToInd(x, y, c), 1.0)
	return vec
}

// vToC converts a one-hot observation into the (x, y) coordinates of
// the cell it encodes
func vToC(v mat.Vector, r, c int) (x, y int, err error) {
	for i := 0; i < v.Len(); i++ {
		if v.AtVec(i) != 0.0 {
			y := i / c
			x := i - (y * c)
			return x, y, nil
		}
	}
	return -1, -1, fmt.Errorf("vToC: observation encodes no cell")
}

func cToInd(x, y, c int) int {
	return y*c + x
}
