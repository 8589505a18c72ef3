// Package sac implements the soft actor-critic algorithm on
// continuous and discrete action spaces. The implementation follows
// the original formulation of Haarnoja, Zhou, Abbeel, and Levine
// (2018), which learns a state value critic, an action value critic,
// and a stochastic policy, with a target state value critic updated
// by polyak averaging.
//
// Agents in this package do not gather their own experience. An
// external training loop records transitions, replays them, and hands
// sampled batches to TrainStep.
package sac

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/samuelfneumann/gohindsight/agent"
	"github.com/samuelfneumann/gohindsight/agent/policy"
	"github.com/samuelfneumann/gohindsight/environment"
	"github.com/samuelfneumann/gohindsight/network"
	"github.com/samuelfneumann/gohindsight/timestep"
)

// Diagnostic names reported by TrainStep
const (
	EntropyKey    string = "entropy"
	VLossKey      string = "V loss"
	QLossKey      string = "Q loss"
	PolicyLossKey string = "pi loss"
	VGradKey      string = "V grad"
	QGradKey      string = "Q grad"
	PolicyGradKey string = "pi grad"
)

// Policy is the strategy learned by a continuous-action SAC. Beyond
// computing the log probability of stored actions, the policy must be
// able to draw fresh actions for a batch of states, since the value
// function and policy updates are computed at actions sampled from the
// current policy rather than at replayed actions.
type Policy interface {
	agent.LogPdfOfer

	// SampleBatch draws one fresh action for each of a batch of
	// states, returning the actions and their log probabilities in
	// row major order
	SampleBatch(states []float64) ([]float64, []float64, error)

	// Entropy returns the mean entropy of the action distributions
	// from the most recent SampleBatch
	Entropy() float64
}

// SAC implements the soft actor-critic algorithm for continuous
// action spaces with a Gaussian policy.
//
// The action value critic is updated toward r + γ(1-t)V̄(s'), where V̄
// is the target state value critic and t indicates a terminal
// transition. The state value critic is updated
// toward Q(s, ã) - α log π(ã | s) at fresh actions ã ~ π(· | s). The
// policy is updated with the likelihood ratio gradient estimator: its
// loss is the mean of log π(ã | s) scaled by the per-sample weights
// α log π(ã | s) - Q(s, ã) + V(s), which are treated as constants.
type SAC struct {
	// Policy
	behaviour     agent.NNPolicy // Batch size 1, selects actions
	trainPolicy   Policy         // Policy struct that is learned
	policyWeights *G.Node
	policyLossVal G.Value
	policyVM      G.VM
	policySolver  G.Solver

	// Action value critic: Q(s, a)
	qNet       network.NeuralNet
	qForwardVM G.VM // Compiled before the loss, forward pass only
	qTargets   *G.Node
	qLossVal   G.Value
	qVM        G.VM
	qSolver    G.Solver

	// State value critic: V(s)
	vNet       network.NeuralNet
	vForwardVM G.VM
	vTargets   *G.Node
	vLossVal   G.Value
	vVM        G.VM
	vSolver    G.Solver

	// Target state value critic: V̄(s)
	targetVNet network.NeuralNet
	targetVVM  G.VM

	alpha float64 // Entropy scale
	tau   float64 // Polyak averaging constant

	batchSize  int
	features   int
	actionDims int

	eval bool
}

// New returns a new continuous-action SAC agent acting in the argument
// environment, which must have continuous actions.
func New(env environment.Environment, c Config, seed uint64) (*SAC, error) {
	if env.ActionSpec().Cardinality != environment.Continuous {
		return nil, fmt.Errorf("new: gaussian SAC requires continuous " +
			"actions")
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	batchSize := c.BatchSize
	features := env.ObservationSpec().Shape.Len()
	actionDims := env.ActionSpec().Shape.Len()
	init := c.InitWFn.InitWFn()

	// Training policy, learned on batches of replayed states
	gPolicy := G.NewGraph()
	trainPolicy, err := policy.NewGaussianMLP(
		env,
		batchSize,
		gPolicy,
		c.PolicyLayers,
		c.PolicyBiases,
		c.PolicyActivations,
		init,
		seed,
	)
	if err != nil {
		return nil, fmt.Errorf("new: could not create training policy: %v",
			err)
	}

	// Behaviour policy for action selection on single timesteps
	behaviour, err := trainPolicy.CloneWithBatch(1)
	if err != nil {
		return nil, fmt.Errorf("new: could not create behaviour policy: %v",
			err)
	}

	// Policy loss: mean of log π(ã|s) scaled by input weights
	policyWeights := G.NewVector(
		gPolicy,
		tensor.Float64,
		G.WithName("ActionWeights"),
		G.WithShape(batchSize),
	)
	policyLoss := G.Must(G.HadamardProd(trainPolicy.LogPdfNode(),
		policyWeights))
	policyLoss = G.Must(G.Mean(policyLoss))

	var policyLossVal G.Value
	G.Read(policyLoss, &policyLossVal)

	_, err = G.Grad(policyLoss, trainPolicy.Network().Learnables()...)
	if err != nil {
		return nil, fmt.Errorf("new: could not compute policy gradient: %v",
			err)
	}
	policyVM := G.NewTapeMachine(
		gPolicy,
		G.BindDualValues(trainPolicy.Network().Learnables()...),
	)

	// Action value critic over concatenated state-action inputs
	gQ := G.NewGraph()
	qNet, err := network.NewMultiHeadMLP(features+actionDims, batchSize, 1,
		gQ, c.CriticLayers, c.CriticBiases, init, c.CriticActivations)
	if err != nil {
		return nil, fmt.Errorf("new: could not create action value "+
			"critic: %v", err)
	}
	qForwardVM := G.NewTapeMachine(gQ)

	qTargets := G.NewMatrix(
		gQ,
		tensor.Float64,
		G.WithShape(qNet.Prediction()[0].Shape()...),
		G.WithName("QUpdateTarget"),
	)
	qLoss := G.Must(G.Sub(qNet.Prediction()[0], qTargets))
	qLoss = G.Must(G.Square(qLoss))
	qLoss = G.Must(G.Mean(qLoss))

	var qLossVal G.Value
	G.Read(qLoss, &qLossVal)

	_, err = G.Grad(qLoss, qNet.Learnables()...)
	if err != nil {
		return nil, fmt.Errorf("new: could not compute action value critic "+
			"gradient: %v", err)
	}
	qVM := G.NewTapeMachine(gQ, G.BindDualValues(qNet.Learnables()...))

	// State value critic
	gV := G.NewGraph()
	vNet, err := network.NewMultiHeadMLP(features, batchSize, 1, gV,
		c.CriticLayers, c.CriticBiases, init, c.CriticActivations)
	if err != nil {
		return nil, fmt.Errorf("new: could not create state value "+
			"critic: %v", err)
	}
	vForwardVM := G.NewTapeMachine(gV)

	vTargets := G.NewMatrix(
		gV,
		tensor.Float64,
		G.WithShape(vNet.Prediction()[0].Shape()...),
		G.WithName("VUpdateTarget"),
	)
	vLoss := G.Must(G.Sub(vNet.Prediction()[0], vTargets))
	vLoss = G.Must(G.Square(vLoss))
	vLoss = G.Must(G.Mean(vLoss))

	var vLossVal G.Value
	G.Read(vLoss, &vLossVal)

	_, err = G.Grad(vLoss, vNet.Learnables()...)
	if err != nil {
		return nil, fmt.Errorf("new: could not compute state value critic "+
			"gradient: %v", err)
	}
	vVM := G.NewTapeMachine(gV, G.BindDualValues(vNet.Learnables()...))

	// Target state value critic, updated by polyak averaging
	targetVNet, err := vNet.Clone()
	if err != nil {
		return nil, fmt.Errorf("new: could not create target state value "+
			"critic: %v", err)
	}
	targetVVM := G.NewTapeMachine(targetVNet.Graph())

	return &SAC{
		behaviour:     behaviour,
		trainPolicy:   trainPolicy,
		policyWeights: policyWeights,
		policyLossVal: policyLossVal,
		policyVM:      policyVM,
		policySolver:  c.PolicySolver,

		qNet:       qNet,
		qForwardVM: qForwardVM,
		qTargets:   qTargets,
		qLossVal:   qLossVal,
		qVM:        qVM,
		qSolver:    c.QSolver,

		vNet:       vNet,
		vForwardVM: vForwardVM,
		vTargets:   vTargets,
		vLossVal:   vLossVal,
		vVM:        vVM,
		vSolver:    c.VSolver,

		targetVNet: targetVNet,
		targetVVM:  targetVVM,

		alpha: c.Alpha,
		tau:   c.Tau,

		batchSize:  batchSize,
		features:   features,
		actionDims: actionDims,
	}, nil
}

// SelectAction returns an action at the argument timestep, depending
// on whether the agent is in training or evaluation mode.
func (s *SAC) SelectAction(t timestep.TimeStep) *mat.VecDense {
	return s.behaviour.SelectAction(t)
}

// TrainStep performs one gradient update of the state value critic,
// the action value critic, and the policy on the argument batch of
// transitions, returning the diagnostics of the update. All update
// targets are computed from the weights in place when TrainStep is
// called.
func (s *SAC) TrainStep(b agent.Batch) (agent.Diagnostics, error) {
	if b.Size != s.batchSize {
		return nil, fmt.Errorf("trainstep: invalid batch size "+
			"\n\twant(%v) \n\thave(%v)", s.batchSize, b.Size)
	}

	// Action value update target: r + γ(1-t)V̄(s')
	if err := s.targetVNet.SetInput(b.NextStates); err != nil {
		return nil, fmt.Errorf("trainstep: could not set target critic "+
			"input: %v", err)
	}
	if err := s.targetVVM.RunAll(); err != nil {
		return nil, fmt.Errorf("trainstep: could not run target critic: %v",
			err)
	}
	nextStateValues := make([]float64, s.batchSize)
	copy(nextStateValues, s.targetVNet.Output()[0].Data().([]float64))
	s.targetVVM.Reset()

	// Terminal transitions do not bootstrap, including transitions
	// relabelled as terminal in hindsight
	qTarget := make([]float64, s.batchSize)
	for i := range qTarget {
		qTarget[i] = b.Rewards[i] +
			b.Discounts[i]*(1.0-b.Terminals[i])*nextStateValues[i]
	}

	// Fresh actions ã ~ π(·|s) from the current policy
	sampled, logProb, err := s.trainPolicy.SampleBatch(b.States)
	if err != nil {
		return nil, fmt.Errorf("trainstep: could not sample policy "+
			"actions: %v", err)
	}

	// Q(s, ã) and V(s) under the current weights
	sampledQ, err := s.qValues(b.States, sampled)
	if err != nil {
		return nil, fmt.Errorf("trainstep: %v", err)
	}
	stateValues, err := s.stateValues(b.States)
	if err != nil {
		return nil, fmt.Errorf("trainstep: %v", err)
	}

	// State value critic step: V(s) → Q(s, ã) - α log π(ã|s)
	vTarget := make([]float64, s.batchSize)
	for i := range vTarget {
		vTarget[i] = sampledQ[i] - s.alpha*logProb[i]
	}
	if err := s.vNet.SetInput(b.States); err != nil {
		return nil, fmt.Errorf("trainstep: could not set state value critic "+
			"input: %v", err)
	}
	err = G.Let(s.vTargets, tensor.NewDense(
		tensor.Float64,
		s.vTargets.Shape(),
		tensor.WithBacking(vTarget),
	))
	if err != nil {
		return nil, fmt.Errorf("trainstep: could not set state value critic "+
			"target: %v", err)
	}
	if err := s.vVM.RunAll(); err != nil {
		return nil, fmt.Errorf("trainstep: could not run state value critic "+
			"update: %v", err)
	}
	vLoss := s.vLossVal.Data().(float64)
	vGrad := gradNorm(s.vNet.Learnables())
	if err := s.vSolver.Step(s.vNet.Model()); err != nil {
		return nil, fmt.Errorf("trainstep: could not step state value critic "+
			"solver: %v", err)
	}
	s.vVM.Reset()

	// Action value critic step on the replayed actions
	if err := s.setQInput(b.States, b.Actions); err != nil {
		return nil, fmt.Errorf("trainstep: %v", err)
	}
	err = G.Let(s.qTargets, tensor.NewDense(
		tensor.Float64,
		s.qTargets.Shape(),
		tensor.WithBacking(qTarget),
	))
	if err != nil {
		return nil, fmt.Errorf("trainstep: could not set action value critic "+
			"target: %v", err)
	}
	if err := s.qVM.RunAll(); err != nil {
		return nil, fmt.Errorf("trainstep: could not run action value critic "+
			"update: %v", err)
	}
	qLoss := s.qLossVal.Data().(float64)
	qGrad := gradNorm(s.qNet.Learnables())
	if err := s.qSolver.Step(s.qNet.Model()); err != nil {
		return nil, fmt.Errorf("trainstep: could not step action value "+
			"critic solver: %v", err)
	}
	s.qVM.Reset()

	// Policy step at the sampled actions, weighting each log
	// probability by α log π(ã|s) - Q(s, ã) + V(s)
	weights := make([]float64, s.batchSize)
	for i := range weights {
		weights[i] = s.alpha*logProb[i] - sampledQ[i] + stateValues[i]
	}
	if _, err := s.trainPolicy.LogPdfOf(b.States, sampled); err != nil {
		return nil, fmt.Errorf("trainstep: could not set policy inputs: %v",
			err)
	}
	err = G.Let(s.policyWeights, tensor.NewDense(
		tensor.Float64,
		s.policyWeights.Shape(),
		tensor.WithBacking(weights),
	))
	if err != nil {
		return nil, fmt.Errorf("trainstep: could not set policy weights: %v",
			err)
	}
	if err := s.policyVM.RunAll(); err != nil {
		return nil, fmt.Errorf("trainstep: could not run policy update: %v",
			err)
	}
	policyLoss := s.policyLossVal.Data().(float64)
	policyGrad := gradNorm(s.trainPolicy.Network().Learnables())
	err = s.policySolver.Step(s.trainPolicy.Network().Model())
	if err != nil {
		return nil, fmt.Errorf("trainstep: could not step policy solver: %v",
			err)
	}
	s.policyVM.Reset()

	// Move the target critic toward the learned critic and refresh the
	// behaviour policy weights
	if err := s.targetVNet.Polyak(s.vNet, s.tau); err != nil {
		return nil, fmt.Errorf("trainstep: could not update target state "+
			"value critic: %v", err)
	}
	if err := s.behaviour.Network().Set(s.trainPolicy.Network()); err != nil {
		return nil, fmt.Errorf("trainstep: could not update behaviour "+
			"policy: %v", err)
	}

	return agent.Diagnostics{
		EntropyKey:    s.trainPolicy.Entropy(),
		VLossKey:      vLoss,
		QLossKey:      qLoss,
		PolicyLossKey: policyLoss,
		VGradKey:      vGrad,
		QGradKey:      qGrad,
		PolicyGradKey: policyGrad,
	}, nil
}

// qValues runs the action value critic forward on a batch of states
// and actions, returning Q(s, a) for each pair.
func (s *SAC) qValues(states, actions []float64) ([]float64, error) {
	if err := s.setQInput(states, actions); err != nil {
		return nil, err
	}
	if err := s.qForwardVM.RunAll(); err != nil {
		return nil, fmt.Errorf("qvalues: could not run action value "+
			"critic: %v", err)
	}
	defer s.qForwardVM.Reset()

	q := make([]float64, s.batchSize)
	copy(q, s.qNet.Output()[0].Data().([]float64))
	return q, nil
}

// setQInput sets the input of the action value critic to the
// concatenation of each state with its corresponding action.
func (s *SAC) setQInput(states, actions []float64) error {
	in := make([]float64, 0, len(states)+len(actions))
	for i := 0; i < s.batchSize; i++ {
		in = append(in, states[i*s.features:(i+1)*s.features]...)
		in = append(in, actions[i*s.actionDims:(i+1)*s.actionDims]...)
	}
	if err := s.qNet.SetInput(in); err != nil {
		return fmt.Errorf("setqinput: could not set action value critic "+
			"input: %v", err)
	}
	return nil
}

// stateValues runs the state value critic forward on a batch of
// states, returning V(s) for each.
func (s *SAC) stateValues(states []float64) ([]float64, error) {
	if err := s.vNet.SetInput(states); err != nil {
		return nil, fmt.Errorf("statevalues: could not set state value "+
			"critic input: %v", err)
	}
	if err := s.vForwardVM.RunAll(); err != nil {
		return nil, fmt.Errorf("statevalues: could not run state value "+
			"critic: %v", err)
	}
	defer s.vForwardVM.Reset()

	v := make([]float64, s.batchSize)
	copy(v, s.vNet.Output()[0].Data().([]float64))
	return v, nil
}

// Eval sets the agent into evaluation mode
func (s *SAC) Eval() {
	s.eval = true
	s.behaviour.Eval()
}

// Train sets the agent into training mode
func (s *SAC) Train() {
	s.eval = false
	s.behaviour.Train()
}

// IsEval returns whether the agent is in evaluation mode
func (s *SAC) IsEval() bool { return s.eval }

// Network returns the network of the agent's behaviour policy, e.g.
// for checkpointing
func (s *SAC) Network() network.NeuralNet {
	return s.behaviour.Network()
}

// Close cleans up the agent's resources
func (s *SAC) Close() error {
	var err error
	vms := []G.VM{s.policyVM, s.qForwardVM, s.qVM, s.vForwardVM, s.vVM,
		s.targetVVM}
	for _, vm := range vms {
		if cerr := vm.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	if cerr := s.trainPolicy.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if cerr := s.behaviour.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// gradNorm returns the L2 norm of the most recently computed gradient
// of the argument learnable nodes.
func gradNorm(learnables G.Nodes) float64 {
	norm := 0.0
	for _, node := range learnables {
		grad, err := node.Grad()
		if err != nil {
			panic(fmt.Sprintf("gradnorm: could not get gradient of %v: %v",
				node.Name(), err))
		}

		switch data := grad.Data().(type) {
		case []float64:
			for _, g := range data {
				norm += g * g
			}
		case float64:
			norm += data * data
		}
	}
	return math.Sqrt(norm)
}
