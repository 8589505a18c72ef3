package expreplay

import (
	"fmt"
	"sync"

	"github.com/samuelfneumann/gohindsight/timestep"
	"github.com/samuelfneumann/gohindsight/utils/intutils"
)

// defaultCache implements a concrete ExperienceReplayer where
// elements are removed from the buffer in a FiFo manner and only a
// single element is removed from the cache at a time. This is the most
// common use of experience replay.
//
// The defaultCache is implemented to increase the efficiency of the
// cache struct when a FiFo Remover is used that removes only a single
// element from the cache at a time. In such cases, we can reduce the
// used RAM and increase the computational speed since we can take
// advantage of knowing the concrete type of the Remover.
type defaultCache struct {
	wait           sync.WaitGroup // Guards the following caches
	stateCache     []float64
	actionCache    []float64
	rewardCache    []float64
	discountCache  []float64
	nextStateCache []float64
	terminalCache  []float64

	// currentInUsePos is the next index to write to. Once the cache
	// has filled, it is also the index holding the oldest data, which
	// the next Add overwrites.
	currentInUsePos int
	isFull          bool

	// Outlines how data is sampled
	sampler Selector

	minCapacity int
	maxCapacity int
	featureSize int
	actionSize  int
}

// newDefaultCache returns a new defaultCache. The sampler
// parameter is a Selector which determines how data is sampled
// from the replay buffer. The featureSize and actionSize
// parameters define the size of the feature and action vectors.
// The minCapacity parameter determines the minimum number of samples
// that should be in the buffer before sampling is allowed.
// The maxCapacity parameter determines the maximum number of samples
// allowed in the buffer at any given time.
func newDefaultCache(sampler Selector, minCapacity, maxCapacity,
	featureSize, actionSize int) *defaultCache {
	stateCache := make([]float64, maxCapacity*featureSize)
	nextStateCache := make([]float64, maxCapacity*featureSize)

	actionCache := make([]float64, maxCapacity*actionSize)

	rewardCache := make([]float64, maxCapacity)
	discountCache := make([]float64, maxCapacity)
	terminalCache := make([]float64, maxCapacity)

	return &defaultCache{
		stateCache:     stateCache,
		actionCache:    actionCache,
		rewardCache:    rewardCache,
		discountCache:  discountCache,
		nextStateCache: nextStateCache,
		terminalCache:  terminalCache,

		currentInUsePos: 0,
		isFull:          false,

		sampler: sampler,

		minCapacity: minCapacity,
		maxCapacity: maxCapacity,
		featureSize: featureSize,
		actionSize:  actionSize,
	}
}

// String returns the string representation of the defaultCache
func (d *defaultCache) String() string {
	d.wait.Wait()

	baseStr := "Capacity: %v \nStates: %v \nActions: %v \nRewards: %v " +
		"\nDiscounts: %v \nNext States: %v \nTerminals: %v"
	return fmt.Sprintf(baseStr, d.Capacity(), d.stateCache, d.actionCache,
		d.rewardCache, d.discountCache, d.nextStateCache, d.terminalCache)
}

// BatchSize returns the number of samples sampled using Sample() -
// a.k.a the batch size
func (d *defaultCache) BatchSize() int {
	return d.sampler.BatchSize()
}

// insertOrder returns a slice of at most n indices which describes
// the order that the first n data were inserted into the buffer
func (d *defaultCache) insertOrder(n int) []int {
	d.wait.Wait()

	size := intutils.Min(n, d.Capacity())
	order := make([]int, size)

	// Before the cache fills, data is inserted at consecutive
	// indices starting from 0. Once full, the oldest data sits at
	// currentInUsePos and insertion order wraps around from there.
	start := 0
	if d.isFull {
		start = d.currentInUsePos
	}
	for i := 0; i < size; i++ {
		order[i] = (start + i) % d.MaxCapacity()
	}

	return order
}

// sampleFrom returns the slice of indices to sample from
func (d *defaultCache) sampleFrom() []int {
	d.wait.Wait()

	indices := make([]int, d.Capacity())
	for i := range indices {
		indices[i] = i
	}
	return indices
}

// Sample samples and returns a batch of transitions from the replay
// buffer. The returned values are the state, action, reward, discount,
// next state, and terminal indicator batches.
func (d *defaultCache) Sample() ([]float64, []float64, []float64,
	[]float64, []float64, []float64, error) {
	d.wait.Wait()

	if d.Capacity() == 0 {
		err := &ExpReplayError{
			Op:  "sample",
			Err: errEmptyCache,
		}
		return nil, nil, nil, nil, nil, nil, err
	}
	if d.Capacity() < d.MinCapacity() {
		err := &ExpReplayError{
			Op:  "sample",
			Err: errInsufficientData,
		}
		return nil, nil, nil, nil, nil, nil, err
	}

	indices := d.sampler.choose(d)

	// Create the state batches
	stateBatch := make([]float64, d.BatchSize()*d.featureSize)
	nextStateBatch := make([]float64, d.BatchSize()*d.featureSize)

	// Fill the state batches
	d.wait.Add(2 * len(indices))
	for i, index := range indices {
		batchStartInd := i * d.featureSize
		expStartInd := index * d.featureSize

		go func() {
			copyInto(stateBatch, batchStartInd, batchStartInd+d.featureSize,
				d.stateCache[expStartInd:expStartInd+d.featureSize])
			d.wait.Done()
		}()

		go func() {
			copyInto(nextStateBatch, batchStartInd,
				batchStartInd+d.featureSize,
				d.nextStateCache[expStartInd:expStartInd+d.featureSize],
			)
			d.wait.Done()
		}()
	}

	// Create and fill the action batch
	actionBatch := make([]float64, d.BatchSize()*d.actionSize)

	d.wait.Add(len(indices))
	for i, index := range indices {
		batchStartInd := i * d.actionSize
		expStartInd := index * d.actionSize

		go func() {
			copyInto(actionBatch, batchStartInd, batchStartInd+d.actionSize,
				d.actionCache[expStartInd:expStartInd+d.actionSize],
			)
			d.wait.Done()
		}()
	}

	rewardBatch := make([]float64, d.BatchSize())
	discountBatch := make([]float64, d.BatchSize())
	terminalBatch := make([]float64, d.BatchSize())
	for i, index := range indices {
		rewardBatch[i] = d.rewardCache[index]
		discountBatch[i] = d.discountCache[index]
		terminalBatch[i] = d.terminalCache[index]
	}

	d.wait.Wait()
	return stateBatch, actionBatch, rewardBatch, discountBatch,
		nextStateBatch, terminalBatch, nil
}

// Capacity returns the current number of elements in the defaultCache
// that are available for sampling
func (d *defaultCache) Capacity() int {
	if d.isFull {
		return d.MaxCapacity()
	}
	return d.currentInUsePos
}

// MaxCapacity returns the maximum number of elements that are allowed
// in the defaultCache
func (d *defaultCache) MaxCapacity() int {
	return d.maxCapacity
}

// MinCapacity returns the minimum number of elements required in the
// defaultCache before sampling is allowed
func (d *defaultCache) MinCapacity() int {
	return d.minCapacity
}

// Add adds a transition to the defaultCache, overwriting the oldest
// data once the defaultCache has filled
func (d *defaultCache) Add(t timestep.Transition) error {
	// Finish the last Add operation, then start
	d.wait.Wait()

	if t.State.Len() != d.featureSize || t.NextState.Len() != d.featureSize {
		return fmt.Errorf("add: invalid feature size \n\twant(%v)"+
			"\n\thave(%v)", d.featureSize, t.State.Len())
	}
	if t.Action.Len() != d.actionSize {
		return fmt.Errorf("add: invalid action size \n\twant(%v)"+
			"\n\thave(%v)", d.actionSize, t.Action.Len())
	}

	index := d.currentInUsePos
	if !d.isFull && index+1 == d.MaxCapacity() {
		d.isFull = true
	}

	// Copy states
	d.wait.Add(3)
	stateInd := index * d.featureSize
	go func() {
		copyInto(d.stateCache, stateInd, stateInd+d.featureSize,
			t.State.RawVector().Data)
		d.wait.Done()
	}()
	go func() {
		copyInto(d.nextStateCache, stateInd, stateInd+d.featureSize,
			t.NextState.RawVector().Data)
		d.wait.Done()
	}()

	// Copy actions
	actionInd := index * d.actionSize
	go func() {
		copyInto(d.actionCache, actionInd, actionInd+d.actionSize,
			t.Action.RawVector().Data)
		d.wait.Done()
	}()

	d.rewardCache[index] = t.Reward
	d.discountCache[index] = t.Discount
	d.terminalCache[index] = terminalFlag(t.Terminal)

	d.currentInUsePos = (d.currentInUsePos + 1) % d.MaxCapacity()
	return nil
}

// copyInto copies src into dest[start:end] and returns the number of
// elements copied
func copyInto(dest []float64, start, end int, src []float64) int {
	return copy(dest[start:end], src)
}
