package expreplay

import (
	"fmt"

	"golang.org/x/exp/rand"

	"github.com/samuelfneumann/gohindsight/utils/intutils"
)

// SelectorType identifies a method of choosing the indices at which
// data is sampled or removed from an experience replay buffer
type SelectorType string

const (
	// Uniform selects indices independently and uniformly at random,
	// with replacement
	Uniform SelectorType = "Uniform"

	// Fifo selects the indices at which data was inserted earliest
	Fifo SelectorType = "Fifo"
)

// CreateSelector returns a Selector of the argument type which selects
// size indices at a time. An unknown SelectorType is a programmer
// error and panics.
func CreateSelector(t SelectorType, size int, seed uint64) Selector {
	switch t {
	case Uniform:
		return NewUniformSelector(size, seed)

	case Fifo:
		return NewFifoSelector(size)

	default:
		panic(fmt.Sprintf("createSelector: no such selector type: %v", t))
	}
}

// Selector implements functionality for choosing how data should be
// sampled and/or removed from an experience replay buffer
type Selector interface {
	// choose selects the indices at which data should be sampled or
	// removed from the experience replay buffer
	choose(c orderedSampler) []int

	// BatchSize returns the number of elements that will be selected
	BatchSize() int
}

// uniformSelector is a Selector which selects data from an experience
// replay buffer uniformly randomly
type uniformSelector struct {
	samples int
	rng     *rand.Rand
}

// NewUniformSelector returns a new Selector which selects data
// uniformly randomly from an experience replay buffer
func NewUniformSelector(samples int, seed uint64) Selector {
	source := rand.NewSource(seed)
	rng := rand.New(source)

	return &uniformSelector{samples: samples, rng: rng}
}

// BatchSize gets the number of samples in a batch drawn from the
// buffer
func (u *uniformSelector) BatchSize() int {
	return u.samples
}

// choose selects a number of indices at which to draw data from the
// buffer. Indices are drawn with replacement.
func (u *uniformSelector) choose(c orderedSampler) []int {
	selected := make([]int, u.BatchSize())
	from := c.sampleFrom()

	for i := 0; i < u.BatchSize(); i++ {
		selected[i] = from[u.rng.Intn(len(from))]
	}

	return selected
}

// fifoSelector is a Selector which selects data from an experience
// replay buffer as first-in-first-out.
type fifoSelector struct {
	samples int
}

// NewFifoSelector returns a new Selector which draws data from an
// experience replay buffer as FiFo.
func NewFifoSelector(samples int) Selector {
	return &fifoSelector{samples: samples}
}

// BatchSize gets the number of samples in a batch drawn from the
// buffer
func (f *fifoSelector) BatchSize() int {
	return f.samples
}

// choose selects a number of indices at which to draw data from the
// buffer, earliest insertions first
func (f *fifoSelector) choose(c orderedSampler) []int {
	size := intutils.Min(f.BatchSize(), c.Capacity())
	insertOrder := c.insertOrder(size)

	selected := make([]int, size)
	copy(selected, insertOrder)

	return selected
}
