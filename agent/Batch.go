package agent

// Batch is a batch of transitions sampled from a replay buffer. Each
// field holds one channel of the batch in row major order, so that
// row i of every channel belongs to the same transition. Terminals
// hold 1.0 where the transition ended its episode at a terminal state
// and 0.0 otherwise.
type Batch struct {
	States     []float64
	Actions    []float64
	Rewards    []float64
	Discounts  []float64
	NextStates []float64
	Terminals  []float64

	Size int // Number of transitions in the batch
}

// Diagnostics holds named scalar measurements describing a single
// training update, e.g. losses or gradient norms. Training loops
// aggregate Diagnostics over an episode before reporting them.
type Diagnostics map[string]float64
