package policy

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/samuelfneumann/gohindsight/agent"
	"github.com/samuelfneumann/gohindsight/environment"
	"github.com/samuelfneumann/gohindsight/network"
	"github.com/samuelfneumann/gohindsight/timestep"
	"github.com/samuelfneumann/gohindsight/utils/floatutils"
)

// CategoricalMLP implements a categorical policy over a discrete
// action space, parameterized by an MLP. The network predicts one
// logit per action; action probabilities are the softmax of the
// logits.
//
// In training mode, SelectAction samples an action from the softmax
// distribution. In evaluation mode, SelectAction returns an action of
// maximal probability, breaking ties randomly.
type CategoricalMLP struct {
	net network.NeuralNet
	vm  G.VM

	actions    *G.Node // One-hot input actions for LogPdfOf
	logPdfNode *G.Node
	logPdfVal  G.Value

	logProbs    *G.Node // Log probability of every action per state
	logProbsVal G.Value
	probs       *G.Node
	probsVal    G.Value
	entropyNode *G.Node
	entropyVal  G.Value

	batchSize  int
	numActions int
	seed       uint64

	source rand.Source
	rng    *rand.Rand

	eval bool
}

// NewCategoricalMLP returns a new CategoricalMLP policy selecting
// actions from the argument environment, which must have discrete
// actions. The neural network parameterization of the policy is
// defined by hiddenSizes, biases, and activations; a final linear
// layer predicting one logit per action is always added. The graph
// parameter g is populated with the policy network.
//
// Action selection with SelectAction requires batch = 1. Batch
// policies (batch > 1) compute log probabilities for batches of
// actions and are used for learning.
func NewCategoricalMLP(env environment.Environment, batch int,
	g *G.ExprGraph, hiddenSizes []int, biases []bool,
	activations []*network.Activation, init G.InitWFn,
	seed uint64) (*CategoricalMLP, error) {
	if env.ActionSpec().Cardinality == environment.Continuous {
		panic("newCategoricalMLP: softmax policy cannot be used with " +
			"continuous actions")
	}

	features := env.ObservationSpec().Shape.Len()
	numActions := int(env.ActionSpec().UpperBound.AtVec(0)) + 1

	net, err := network.NewMultiHeadMLP(features, batch, numActions, g,
		hiddenSizes, biases, init, activations)
	if err != nil {
		return nil, fmt.Errorf("newCategoricalMLP: could not create policy "+
			"network: %v", err)
	}

	p := &CategoricalMLP{
		net:        net,
		batchSize:  batch,
		numActions: numActions,
		seed:       seed,
	}
	p.build()

	return p, nil
}

// build adds the distribution and log probability nodes to the policy
// network's graph and prepares the policy's VM and action sampler.
// The VM is created here, before any loss is attached to the graph,
// so that running it computes the forward pass only.
func (c *CategoricalMLP) build() {
	logits := c.net.Prediction()[0]

	lse := logSumExp(logits, 1)
	c.logProbs = G.Must(G.BroadcastSub(logits, lse, nil, []byte{1}))
	c.probs = G.Must(G.Exp(c.logProbs))

	// Log probability of actions inputted with LogPdfOf
	c.actions = G.NewMatrix(
		c.net.Graph(),
		tensor.Float64,
		G.WithName("InputActions"),
		G.WithShape(c.batchSize, c.numActions),
		G.WithInit(G.Zeroes()),
	)
	logPdf := G.Must(G.HadamardProd(c.actions, c.logProbs))
	c.logPdfNode = G.Must(G.Sum(logPdf, 1))

	entropy := G.Must(G.HadamardProd(c.probs, c.logProbs))
	entropy = G.Must(G.Sum(entropy, 1))
	entropy = G.Must(G.Mean(entropy))
	c.entropyNode = G.Must(G.Neg(entropy))

	G.Read(c.logPdfNode, &c.logPdfVal)
	G.Read(c.logProbs, &c.logProbsVal)
	G.Read(c.probs, &c.probsVal)
	G.Read(c.entropyNode, &c.entropyVal)

	c.vm = G.NewTapeMachine(c.net.Graph())

	c.source = rand.NewSource(c.seed)
	c.rng = rand.New(c.source)
}

// logSumExp adds nodes to the computational graph of logits computing
// log(Σ exp(logits)) along the argument axis in a numerically stable
// way.
func logSumExp(logits *G.Node, along int) *G.Node {
	max := G.Must(G.Max(logits, along))

	exponent := G.Must(G.BroadcastSub(logits, max, nil, []byte{1}))
	exponent = G.Must(G.Exp(exponent))

	sum := G.Must(G.Sum(exponent, along))
	log := G.Must(G.Log(sum))

	return G.Must(G.Add(max, log))
}

// SelectAction selects and returns an action at the argument timestep
// t. In training mode the action is sampled from the policy's softmax
// distribution; in evaluation mode an action of maximal probability is
// returned, with ties broken randomly.
func (c *CategoricalMLP) SelectAction(t timestep.TimeStep) *mat.VecDense {
	if size := c.net.BatchSize(); size != 1 {
		panic(fmt.Sprintf("selectAction: action selection can only be done "+
			"with a policy with batch size 1 \n\twant(1) \n\thave(%v)", size))
	}

	obs := t.Observation.RawVector().Data
	if err := c.net.SetInput(obs); err != nil {
		panic(fmt.Sprintf("selectAction: cannot set input: %v", err))
	}
	if err := c.vm.RunAll(); err != nil {
		panic(fmt.Sprintf("selectAction: could not run policy VM: %v", err))
	}
	defer c.vm.Reset()

	probs := make([]float64, c.numActions)
	copy(probs, c.probsVal.Data().([]float64))

	if c.eval {
		_, indices := floatutils.MaxSlice(probs)
		action := float64(indices[c.rng.Intn(len(indices))])
		return mat.NewVecDense(1, []float64{action})
	}

	dist := distuv.NewCategorical(probs, c.source)
	return mat.NewVecDense(1, []float64{dist.Rand()})
}

// Entropy returns the mean entropy of the action distributions
// computed by the most recent run of the policy's graph.
func (c *CategoricalMLP) Entropy() float64 {
	return c.entropyVal.Data().(float64)
}

// LogPdfOf sets the state and action inputs of the policy's
// computational graph to the argument states and action indices so
// that when a VM of the policy is run, the log probability of actions
// a taken in states s will be computed and stored in the policy's
// associated log PDF node, which is returned. Running the VM is left
// to the caller, whose loss function generally consumes the node.
func (c *CategoricalMLP) LogPdfOf(s, a []float64) (*G.Node, error) {
	if err := c.net.SetInput(s); err != nil {
		return nil, fmt.Errorf("logPdfOf: could not set state input: %v", err)
	}

	oneHot := make([]float64, 0, c.batchSize*c.numActions)
	for i := range a {
		row := make([]float64, c.numActions)
		row[int(a[i])] = 1.0
		oneHot = append(oneHot, row...)
	}
	actionsTensor := tensor.NewDense(tensor.Float64,
		[]int{c.batchSize, c.numActions},
		tensor.WithBacking(oneHot),
	)
	if err := G.Let(c.actions, actionsTensor); err != nil {
		return nil, fmt.Errorf("logPdfOf: could not set actions: %v", err)
	}

	return c.logPdfNode, nil
}

// LogPdfNode returns the node that will hold the log probability
// of actions when the computational graph is run.
func (c *CategoricalMLP) LogPdfNode() *G.Node {
	return c.logPdfNode
}

// LogPdfVal returns the value of the node returned by LogPdfNode()
func (c *CategoricalMLP) LogPdfVal() G.Value {
	return c.logPdfVal
}

// LogProbsNode returns the node holding the log probability of every
// action in each input state.
func (c *CategoricalMLP) LogProbsNode() *G.Node {
	return c.logProbs
}

// LogProbsVal returns the value of the node returned by LogProbsNode()
func (c *CategoricalMLP) LogProbsVal() G.Value {
	return c.logProbsVal
}

// ProbsNode returns the node holding the probability of every action
// in each input state.
func (c *CategoricalMLP) ProbsNode() *G.Node {
	return c.probs
}

// ProbsVal returns the value of the node returned by ProbsNode()
func (c *CategoricalMLP) ProbsVal() G.Value {
	return c.probsVal
}

// Clone clones a CategoricalMLP
func (c *CategoricalMLP) Clone() (agent.NNPolicy, error) {
	return c.CloneWithBatch(c.batchSize)
}

// CloneWithBatch clones a CategoricalMLP with a new batch size. The
// clone's network lives on a fresh graph and holds a copy of the
// source's weights.
func (c *CategoricalMLP) CloneWithBatch(batch int) (agent.NNPolicy, error) {
	net, err := c.net.CloneWithBatch(batch)
	if err != nil {
		return nil, fmt.Errorf("clonewithbatch: could not clone policy "+
			"network: %v", err)
	}

	p := &CategoricalMLP{
		net:        net,
		batchSize:  batch,
		numActions: c.numActions,
		seed:       c.seed,
		eval:       c.eval,
	}
	p.build()

	return p, nil
}

// Eval sets the policy to evaluation mode
func (c *CategoricalMLP) Eval() { c.eval = true }

// Train sets the policy to training mode
func (c *CategoricalMLP) Train() { c.eval = false }

// IsEval returns whether the policy is in evaluation mode
func (c *CategoricalMLP) IsEval() bool { return c.eval }

// Network returns the network of the CategoricalMLP
func (c *CategoricalMLP) Network() network.NeuralNet {
	return c.net
}

// Close cleans up the policy's VM
func (c *CategoricalMLP) Close() error {
	return c.vm.Close()
}
