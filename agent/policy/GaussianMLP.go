// Package policy implements the policy parameterizations used by
// agents to select actions.
package policy

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/samuelfneumann/gohindsight/agent"
	"github.com/samuelfneumann/gohindsight/environment"
	"github.com/samuelfneumann/gohindsight/network"
	"github.com/samuelfneumann/gohindsight/timestep"
	"github.com/samuelfneumann/gohindsight/utils/floatutils"
	"github.com/samuelfneumann/gohindsight/utils/tensorutils"
)

// For stability, the standard deviation of the Gaussian distribution
// should be offset from 0.
const stdOffset float64 = 1e-4

// squashEps keeps the tanh squashing correction finite when a squashed
// action sits on the boundary of its interval.
const squashEps float64 = 1e-6

// GaussianMLP implements a Gaussian policy parameterized by a single
// MLP. For each action dimension the network predicts two values: the
// mean of the action distribution and a presquashed standard
// deviation, which is passed through a sigmoid and offset from 0.
//
// Given a network prediction of the mean μ and standard deviation σ of
// the Gaussian policy, actions are selected by sampling from the
// standard normal ɛ ~ N(0, 1) and computing action := μ + σ * ɛ
// similar to the reparameterization trick. Environments are expected
// to squash these unbounded actions into their legal action intervals
// through tanh, so the log probability of an action includes the
// change of variables correction for the squashing.
//
// Given a number of continuous actions in a number of states, the
// GaussianMLP can calculate the log probability of selecting each of
// these actions in each corresponding state. This is useful for
// constructing policy gradients.
type GaussianMLP struct {
	net network.NeuralNet
	vm  G.VM

	actions    *G.Node
	logPdfNode *G.Node
	logPdfVal  G.Value

	meanVal   G.Value
	stddevVal G.Value

	normal     distmv.Rander
	actionDims int
	batchSize  int
	seed       uint64

	entropy float64
	eval    bool
}

// NewGaussianMLP returns a new GaussianMLP policy. The Gaussian policy
// will select actions from the argument environment. The neural
// network parameterization of the policy is defined by hiddenSizes,
// biases, and activations; a final linear layer predicting the mean
// and presquashed standard deviation per action dimension is always
// added. The graph parameter g is populated with the policy network.
//
// The policy can be a batch policy when batch > 1. In such a case, the
// log probability of actions can be computed for a batch of actions
// with LogPdfOf and fresh actions can be drawn for a batch of states
// with SampleBatch, but actions cannot be selected on each timestep
// with SelectAction. Only when batch = 1 can actions be selected at
// each timestep.
//
// The init parameter determines the weight initialization scheme for
// the neural net and the seed parameter determines the seed of the
// policy's action sampler.
func NewGaussianMLP(env environment.Environment, batch int,
	g *G.ExprGraph, hiddenSizes []int, biases []bool,
	activations []*network.Activation, init G.InitWFn,
	seed uint64) (*GaussianMLP, error) {
	if env.ActionSpec().Cardinality != environment.Continuous {
		panic("newGaussianMLP: actions must be continuous")
	}

	features := env.ObservationSpec().Shape.Len()
	actionDims := env.ActionSpec().Shape.Len()

	net, err := network.NewMultiHeadMLP(features, batch, 2*actionDims, g,
		hiddenSizes, biases, init, activations)
	if err != nil {
		return nil, fmt.Errorf("newGaussianMLP: could not create policy "+
			"network: %v", err)
	}

	p := &GaussianMLP{
		net:        net,
		actionDims: actionDims,
		batchSize:  batch,
		seed:       seed,
	}
	p.build()

	return p, nil
}

// build adds the distribution and log probability nodes to the policy
// network's graph and prepares the policy's VM and action sampler.
// The VM is created here, before any loss is attached to the graph,
// so that running it computes the forward pass only.
func (g *GaussianMLP) build() {
	pred := g.net.Prediction()[0]

	mean := G.Must(G.Slice(pred, nil,
		tensorutils.NewSlice(0, g.actionDims, 1)))
	presquashed := G.Must(G.Slice(pred, nil,
		tensorutils.NewSlice(g.actionDims, 2*g.actionDims, 1)))
	std := G.Must(G.Sigmoid(presquashed))
	std = G.Must(G.Add(std, G.NewConstant(stdOffset)))

	// Calculate log probability of input actions
	g.actions = G.NewMatrix(
		g.net.Graph(),
		tensor.Float64,
		G.WithName("InputActions"),
		G.WithShape(g.batchSize, g.actionDims),
		G.WithInit(G.Zeroes()),
	)
	g.logPdfNode = logPdf(mean, std, g.actions)

	G.Read(g.logPdfNode, &g.logPdfVal)
	G.Read(mean, &g.meanVal)
	G.Read(std, &g.stddevVal)

	g.vm = G.NewTapeMachine(g.net.Graph())

	// Create standard normal for action selection
	means := make([]float64, g.actionDims)
	stds := mat.NewDiagDense(g.actionDims, floatutils.Ones(g.actionDims))
	source := rand.NewSource(g.seed)
	normal, ok := distmv.NewNormal(means, stds, source)
	if !ok {
		panic("newGaussianMLP: could not create standard normal for " +
			"action selection")
	}
	g.normal = normal
}

// logPdf adds nodes to the computational graph of mean, std, and
// actions for computing the log probability of the actions under a
// diagonal Gaussian with the argument mean and standard deviation.
// Since environments squash actions through tanh before applying them,
// the density includes the change of variables correction
// Σ log(1 - tanh²(action)).
func logPdf(mean, std, actions *G.Node) *G.Node {
	graph := mean.Graph()
	if graph != std.Graph() || graph != actions.Graph() {
		panic("logPdf: all nodes must share the same graph")
	}

	negativeHalf := G.NewConstant(-0.5)

	// Log density of the diagonal Gaussian, summed over action
	// dimensions
	exponent := G.Must(G.Sub(actions, mean))
	exponent = G.Must(G.HadamardDiv(exponent, std))
	exponent = G.Must(G.Square(exponent))
	exponent = G.Must(G.HadamardProd(negativeHalf, exponent))

	terms := G.Must(G.Add(
		G.Must(G.Log(std)),
		G.NewConstant(math.Log(math.Pow(2*math.Pi, 0.5))),
	))
	logProb := G.Must(G.Sub(exponent, terms))
	logProb = G.Must(G.Sum(logProb, 1))

	// Squashing correction
	squashed := G.Must(G.Square(G.Must(G.Tanh(actions))))
	correction := G.Must(G.Sub(G.NewConstant(1.0), squashed))
	correction = G.Must(G.Add(correction, G.NewConstant(squashEps)))
	correction = G.Must(G.Log(correction))
	correction = G.Must(G.Sum(correction, 1))

	return G.Must(G.Sub(logProb, correction))
}

// SelectAction selects and returns an action at the argument timestep
// t. In training mode the action is sampled from the policy's
// distribution; in evaluation mode the maximum likelihood action is
// returned.
func (g *GaussianMLP) SelectAction(t timestep.TimeStep) *mat.VecDense {
	if size := g.net.BatchSize(); size != 1 {
		panic(fmt.Sprintf("selectAction: action selection can only be done "+
			"with a policy with batch size 1 \n\twant(1) \n\thave(%v)", size))
	}

	obs := t.Observation.RawVector().Data
	if err := g.net.SetInput(obs); err != nil {
		panic(fmt.Sprintf("selectAction: cannot set input: %v", err))
	}
	if err := g.vm.RunAll(); err != nil {
		panic(fmt.Sprintf("selectAction: could not run policy VM: %v", err))
	}
	defer g.vm.Reset()

	mean := make([]float64, g.actionDims)
	copy(mean, g.meanVal.Data().([]float64))
	action := mat.NewVecDense(g.actionDims, mean)
	if g.eval {
		return action
	}

	stddev := make([]float64, g.actionDims)
	copy(stddev, g.stddevVal.Data().([]float64))

	scaledEps := mat.NewVecDense(g.actionDims, g.normal.Rand(nil))
	scaledEps.MulElemVec(scaledEps, mat.NewVecDense(g.actionDims, stddev))
	action.AddVec(action, scaledEps)

	return action
}

// SampleBatch draws one fresh action for each of the argument states,
// which should hold BatchSize() observation vectors in row major
// order. The actions are returned in row major order, along with the
// log probability of each action under the policy. The gradient does
// not flow through this sampling.
func (g *GaussianMLP) SampleBatch(states []float64) ([]float64, []float64,
	error) {
	if err := g.net.SetInput(states); err != nil {
		return nil, nil, fmt.Errorf("samplebatch: could not set state "+
			"input: %v", err)
	}
	if err := g.vm.RunAll(); err != nil {
		return nil, nil, fmt.Errorf("samplebatch: could not run policy "+
			"VM: %v", err)
	}
	defer g.vm.Reset()

	mean := g.meanVal.Data().([]float64)
	stddev := g.stddevVal.Data().([]float64)

	actions := make([]float64, len(mean))
	logProb := make([]float64, g.batchSize)
	entropy := 0.0
	for i := 0; i < g.batchSize; i++ {
		eps := g.normal.Rand(nil)
		for j := 0; j < g.actionDims; j++ {
			k := i*g.actionDims + j
			actions[k] = mean[k] + stddev[k]*eps[j]

			logProb[i] -= 0.5*eps[j]*eps[j] + math.Log(stddev[k]) +
				0.5*math.Log(2.0*math.Pi)

			tanh := math.Tanh(actions[k])
			logProb[i] -= math.Log(1.0 - tanh*tanh + squashEps)

			entropy += 0.5*math.Log(2.0*math.Pi*math.E) + math.Log(stddev[k])
		}
	}
	g.entropy = entropy / float64(g.batchSize)

	return actions, logProb, nil
}

// Entropy returns the mean entropy of the action distributions
// produced by the most recent call to SampleBatch.
func (g *GaussianMLP) Entropy() float64 {
	return g.entropy
}

// LogPdfOf sets the state and action inputs of the policy's
// computational graph to the argument states and actions (s and a
// respectively) so that when a VM of the policy is run, the log
// probability of actions a taken in states s will be computed and
// stored in the policy's associated log PDF node, which is returned.
//
// The reason this function does not return the log PDF of actions is
// because this would require running the policy's VM, which does
// not contain any loss function. The log PDF of actions is generally
// needed in loss functions, and a separate, external VM will be needed
// to calculate the loss of the policy using the log PDF and update
// the weights accordingly.
func (g *GaussianMLP) LogPdfOf(s, a []float64) (*G.Node, error) {
	if err := g.net.SetInput(s); err != nil {
		return nil, fmt.Errorf("logPdfOf: could not set state input: %v", err)
	}

	actionsTensor := tensor.NewDense(tensor.Float64,
		[]int{g.batchSize, g.actionDims},
		tensor.WithBacking(a),
	)
	if err := G.Let(g.actions, actionsTensor); err != nil {
		return nil, fmt.Errorf("logPdfOf: could not set actions: %v", err)
	}

	return g.logPdfNode, nil
}

// LogPdfNode returns the node that will hold the log probability
// of actions when the computational graph is run.
func (g *GaussianMLP) LogPdfNode() *G.Node {
	return g.logPdfNode
}

// LogPdfVal returns the value of the node returned by LogPdfNode()
func (g *GaussianMLP) LogPdfVal() G.Value {
	return g.logPdfVal
}

// Clone clones a GaussianMLP
func (g *GaussianMLP) Clone() (agent.NNPolicy, error) {
	return g.CloneWithBatch(g.batchSize)
}

// CloneWithBatch clones a GaussianMLP with a new batch size. The
// clone's network lives on a fresh graph and holds a copy of the
// source's weights.
func (g *GaussianMLP) CloneWithBatch(batch int) (agent.NNPolicy, error) {
	net, err := g.net.CloneWithBatch(batch)
	if err != nil {
		return nil, fmt.Errorf("clonewithbatch: could not clone policy "+
			"network: %v", err)
	}

	p := &GaussianMLP{
		net:        net,
		actionDims: g.actionDims,
		batchSize:  batch,
		seed:       g.seed,
		eval:       g.eval,
	}
	p.build()

	return p, nil
}

// Eval sets the policy to evaluation mode
func (g *GaussianMLP) Eval() { g.eval = true }

// Train sets the policy to training mode
func (g *GaussianMLP) Train() { g.eval = false }

// IsEval returns whether the policy is in evaluation mode
func (g *GaussianMLP) IsEval() bool { return g.eval }

// Network returns the network of the GaussianMLP
func (g *GaussianMLP) Network() network.NeuralNet {
	return g.net
}

// Close cleans up the policy's VM
func (g *GaussianMLP) Close() error {
	return g.vm.Close()
}
