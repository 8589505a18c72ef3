package gridworld

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/gohindsight/environment"
)

// SingleStart starts every episode at the same cell
type SingleStart struct {
	state *mat.VecDense
	r, c  int
}

// NewSingleStart returns a Starter which always starts episodes at
// cell (x, y) on an r by c grid
func NewSingleStart(x, y, r, c int) (environment.Starter, error) {
	if x < 0 || x >= c {
		return nil, fmt.Errorf("newSingleStart: x = %d not in [0, %d)", x, c)
	} else if y < 0 || y >= r {
		return nil, fmt.Errorf("newSingleStart: y = %d not in [0, %d)", y, r)
	}

	start := mat.NewVecDense(2, []float64{float64(x), float64(y)})
	return &SingleStart{start, r, c}, nil
}

// Start returns the starting cell as an (x, y) pair
func (s *SingleStart) Start() *mat.VecDense {
	out := mat.NewVecDense(2, nil)
	out.CloneFromVec(s.state)
	return out
}
