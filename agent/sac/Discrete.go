package sac

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/samuelfneumann/gohindsight/agent"
	"github.com/samuelfneumann/gohindsight/agent/policy"
	"github.com/samuelfneumann/gohindsight/environment"
	"github.com/samuelfneumann/gohindsight/network"
	"github.com/samuelfneumann/gohindsight/timestep"
)

// DiscretePolicy is the strategy learned by a discrete-action SAC.
// The policy must expose the graph nodes computing the probability and
// log probability of every action in the input states, so that the
// agent can take exact expectations over actions instead of sampling.
type DiscretePolicy interface {
	agent.NNPolicy

	// LogProbsNode returns the node holding the log probability of
	// every action in each input state, and LogProbsVal its value
	// after a graph run
	LogProbsNode() *G.Node
	LogProbsVal() G.Value

	// ProbsNode returns the node holding the probability of every
	// action in each input state, and ProbsVal its value after a
	// graph run
	ProbsNode() *G.Node
	ProbsVal() G.Value

	// Entropy returns the mean entropy of the action distributions
	// from the most recent graph run
	Entropy() float64
}

// Discrete implements the soft actor-critic algorithm for discrete
// action spaces with a categorical policy.
//
// Since the action space is enumerable, the expectations over actions
// in the state value target and the policy objective are computed
// exactly from the policy's action probabilities rather than
// estimated from sampled actions. The action value critic predicts
// one value per action, and its update indexes the predicted values
// with one-hot encodings of the replayed actions.
type Discrete struct {
	// Policy
	behaviour     agent.NNPolicy // Batch size 1, selects actions
	trainPolicy   DiscretePolicy // Policy struct that is learned
	actionValues  *G.Node        // Q(s, ·) input to the policy loss
	policyLossVal G.Value
	policyVM      G.VM
	policySolver  G.Solver

	// Action value critic: one head per action
	qNet            network.NeuralNet
	qForwardVM      G.VM // Compiled before the loss, forward pass only
	selectedActions *G.Node
	qTargets        *G.Node
	qLossVal        G.Value
	qVM             G.VM
	qSolver         G.Solver

	// State value critic: V(s)
	vNet     network.NeuralNet
	vTargets *G.Node
	vLossVal G.Value
	vVM      G.VM
	vSolver  G.Solver

	// Target state value critic: V̄(s)
	targetVNet network.NeuralNet
	targetVVM  G.VM

	alpha float64
	tau   float64

	batchSize  int
	features   int
	numActions int

	eval bool
}

// NewDiscrete returns a new discrete-action SAC agent acting in the
// argument environment, which must have one-dimensional discrete
// actions enumerated from 0.
func NewDiscrete(env environment.Environment, c Config,
	seed uint64) (*Discrete, error) {
	if env.ActionSpec().Cardinality != environment.Discrete {
		return nil, fmt.Errorf("newDiscrete: categorical SAC requires " +
			"discrete actions")
	}
	if env.ActionSpec().LowerBound.Len() > 1 {
		return nil, fmt.Errorf("newDiscrete: actions must be 1-dimensional")
	}
	if env.ActionSpec().LowerBound.AtVec(0) != 0.0 {
		return nil, fmt.Errorf("newDiscrete: actions must be enumerated " +
			"starting from 0")
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("newDiscrete: %v", err)
	}

	batchSize := c.BatchSize
	features := env.ObservationSpec().Shape.Len()
	numActions := int(env.ActionSpec().UpperBound.AtVec(0)) + 1
	init := c.InitWFn.InitWFn()

	// Training policy, learned on batches of replayed states
	gPolicy := G.NewGraph()
	trainPolicy, err := policy.NewCategoricalMLP(
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
		return nil, fmt.Errorf("newDiscrete: could not create training "+
			"policy: %v", err)
	}

	// Behaviour policy for action selection on single timesteps
	behaviour, err := trainPolicy.CloneWithBatch(1)
	if err != nil {
		return nil, fmt.Errorf("newDiscrete: could not create behaviour "+
			"policy: %v", err)
	}

	// Policy loss: mean over states of Σ_a π(a|s)(α log π(a|s) - Q(s, a))
	actionValues := G.NewMatrix(
		gPolicy,
		tensor.Float64,
		G.WithName("ActionValues"),
		G.WithShape(batchSize, numActions),
	)
	scaledLogProbs := G.Must(G.HadamardProd(G.NewConstant(c.Alpha),
		trainPolicy.LogProbsNode()))
	policyLoss := G.Must(G.Sub(scaledLogProbs, actionValues))
	policyLoss = G.Must(G.HadamardProd(trainPolicy.ProbsNode(), policyLoss))
	policyLoss = G.Must(G.Sum(policyLoss, 1))
	policyLoss = G.Must(G.Mean(policyLoss))

	var policyLossVal G.Value
	G.Read(policyLoss, &policyLossVal)

	_, err = G.Grad(policyLoss, trainPolicy.Network().Learnables()...)
	if err != nil {
		return nil, fmt.Errorf("newDiscrete: could not compute policy "+
			"gradient: %v", err)
	}
	policyVM := G.NewTapeMachine(
		gPolicy,
		G.BindDualValues(trainPolicy.Network().Learnables()...),
	)

	// Action value critic predicting one value per action
	gQ := G.NewGraph()
	qNet, err := network.NewMultiHeadMLP(features, batchSize, numActions,
		gQ, c.CriticLayers, c.CriticBiases, init, c.CriticActivations)
	if err != nil {
		return nil, fmt.Errorf("newDiscrete: could not create action value "+
			"critic: %v", err)
	}
	qForwardVM := G.NewTapeMachine(gQ)

	// The critic update adjusts only the head of the action taken on
	// each replayed transition
	selectedActions := G.NewMatrix(
		gQ,
		tensor.Float64,
		G.WithName("ActionSelected"),
		G.WithShape(batchSize, numActions),
	)
	qTargets := G.NewVector(
		gQ,
		tensor.Float64,
		G.WithName("QUpdateTarget"),
		G.WithShape(batchSize),
	)
	selectedQ := G.Must(G.HadamardProd(qNet.Prediction()[0],
		selectedActions))
	selectedQ = G.Must(G.Sum(selectedQ, 1))
	qLoss := G.Must(G.Sub(selectedQ, qTargets))
	qLoss = G.Must(G.Square(qLoss))
	qLoss = G.Must(G.Mean(qLoss))

	var qLossVal G.Value
	G.Read(qLoss, &qLossVal)

	_, err = G.Grad(qLoss, qNet.Learnables()...)
	if err != nil {
		return nil, fmt.Errorf("newDiscrete: could not compute action value "+
			"critic gradient: %v", err)
	}
	qVM := G.NewTapeMachine(gQ, G.BindDualValues(qNet.Learnables()...))

	// State value critic
	gV := G.NewGraph()
	vNet, err := network.NewMultiHeadMLP(features, batchSize, 1, gV,
		c.CriticLayers, c.CriticBiases, init, c.CriticActivations)
	if err != nil {
		return nil, fmt.Errorf("newDiscrete: could not create state value "+
			"critic: %v", err)
	}

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
		return nil, fmt.Errorf("newDiscrete: could not compute state value "+
			"critic gradient: %v", err)
	}
	vVM := G.NewTapeMachine(gV, G.BindDualValues(vNet.Learnables()...))

	// Target state value critic, updated by polyak averaging
	targetVNet, err := vNet.Clone()
	if err != nil {
		return nil, fmt.Errorf("newDiscrete: could not create target state "+
			"value critic: %v", err)
	}
	targetVVM := G.NewTapeMachine(targetVNet.Graph())

	return &Discrete{
		behaviour:     behaviour,
		trainPolicy:   trainPolicy,
		actionValues:  actionValues,
		policyLossVal: policyLossVal,
		policyVM:      policyVM,
		policySolver:  c.PolicySolver,

		qNet:            qNet,
		qForwardVM:      qForwardVM,
		selectedActions: selectedActions,
		qTargets:        qTargets,
		qLossVal:        qLossVal,
		qVM:             qVM,
		qSolver:         c.QSolver,

		vNet:     vNet,
		vTargets: vTargets,
		vLossVal: vLossVal,
		vVM:      vVM,
		vSolver:  c.VSolver,

		targetVNet: targetVNet,
		targetVVM:  targetVVM,

		alpha: c.Alpha,
		tau:   c.Tau,

		batchSize:  batchSize,
		features:   features,
		numActions: numActions,
	}, nil
}

// SelectAction returns an action at the argument timestep, depending
// on whether the agent is in training or evaluation mode.
func (d *Discrete) SelectAction(t timestep.TimeStep) *mat.VecDense {
	return d.behaviour.SelectAction(t)
}

// TrainStep performs one gradient update of the state value critic,
// the action value critic, and the policy on the argument batch of
// transitions, returning the diagnostics of the update. The batch
// holds the index of the action taken on each transition. All update
// targets are computed from the weights in place when TrainStep is
// called.
func (d *Discrete) TrainStep(b agent.Batch) (agent.Diagnostics, error) {
	if b.Size != d.batchSize {
		return nil, fmt.Errorf("trainstep: invalid batch size "+
			"\n\twant(%v) \n\thave(%v)", d.batchSize, b.Size)
	}

	// Action value update target: r + γ(1-t)V̄(s')
	if err := d.targetVNet.SetInput(b.NextStates); err != nil {
		return nil, fmt.Errorf("trainstep: could not set target critic "+
			"input: %v", err)
	}
	if err := d.targetVVM.RunAll(); err != nil {
		return nil, fmt.Errorf("trainstep: could not run target critic: %v",
			err)
	}
	nextStateValues := make([]float64, d.batchSize)
	copy(nextStateValues, d.targetVNet.Output()[0].Data().([]float64))
	d.targetVVM.Reset()

	// Terminal transitions do not bootstrap, including transitions
	// relabelled as terminal in hindsight
	qTarget := make([]float64, d.batchSize)
	for i := range qTarget {
		qTarget[i] = b.Rewards[i] +
			b.Discounts[i]*(1.0-b.Terminals[i])*nextStateValues[i]
	}

	// Q(s, ·) for every action under the current weights
	allQ, err := d.allActionValues(b.States)
	if err != nil {
		return nil, fmt.Errorf("trainstep: %v", err)
	}

	// Policy step. The run also computes the action probabilities
	// under the pre-update weights, which the state value target needs.
	if err := d.trainPolicy.Network().SetInput(b.States); err != nil {
		return nil, fmt.Errorf("trainstep: could not set policy input: %v",
			err)
	}
	err = G.Let(d.actionValues, tensor.NewDense(
		tensor.Float64,
		d.actionValues.Shape(),
		tensor.WithBacking(allQ),
	))
	if err != nil {
		return nil, fmt.Errorf("trainstep: could not set policy action "+
			"values: %v", err)
	}
	if err := d.policyVM.RunAll(); err != nil {
		return nil, fmt.Errorf("trainstep: could not run policy update: %v",
			err)
	}
	policyLoss := d.policyLossVal.Data().(float64)
	policyGrad := gradNorm(d.trainPolicy.Network().Learnables())
	entropy := d.trainPolicy.Entropy()

	probs := make([]float64, d.batchSize*d.numActions)
	copy(probs, d.trainPolicy.ProbsVal().Data().([]float64))
	logProbs := make([]float64, d.batchSize*d.numActions)
	copy(logProbs, d.trainPolicy.LogProbsVal().Data().([]float64))

	err = d.policySolver.Step(d.trainPolicy.Network().Model())
	if err != nil {
		return nil, fmt.Errorf("trainstep: could not step policy solver: %v",
			err)
	}
	d.policyVM.Reset()

	// State value critic step:
	// V(s) → Σ_a π(a|s)(Q(s, a) - α log π(a|s))
	vTarget := make([]float64, d.batchSize)
	for i := 0; i < d.batchSize; i++ {
		for a := 0; a < d.numActions; a++ {
			k := i*d.numActions + a
			vTarget[i] += probs[k] * (allQ[k] - d.alpha*logProbs[k])
		}
	}
	if err := d.vNet.SetInput(b.States); err != nil {
		return nil, fmt.Errorf("trainstep: could not set state value critic "+
			"input: %v", err)
	}
	err = G.Let(d.vTargets, tensor.NewDense(
		tensor.Float64,
		d.vTargets.Shape(),
		tensor.WithBacking(vTarget),
	))
	if err != nil {
		return nil, fmt.Errorf("trainstep: could not set state value critic "+
			"target: %v", err)
	}
	if err := d.vVM.RunAll(); err != nil {
		return nil, fmt.Errorf("trainstep: could not run state value critic "+
			"update: %v", err)
	}
	vLoss := d.vLossVal.Data().(float64)
	vGrad := gradNorm(d.vNet.Learnables())
	if err := d.vSolver.Step(d.vNet.Model()); err != nil {
		return nil, fmt.Errorf("trainstep: could not step state value critic "+
			"solver: %v", err)
	}
	d.vVM.Reset()

	// Action value critic step on the replayed action indices
	oneHot := make([]float64, 0, d.batchSize*d.numActions)
	for i := 0; i < d.batchSize; i++ {
		row := make([]float64, d.numActions)
		row[int(b.Actions[i])] = 1.0
		oneHot = append(oneHot, row...)
	}
	if err := d.qNet.SetInput(b.States); err != nil {
		return nil, fmt.Errorf("trainstep: could not set action value "+
			"critic input: %v", err)
	}
	err = G.Let(d.selectedActions, tensor.NewDense(
		tensor.Float64,
		d.selectedActions.Shape(),
		tensor.WithBacking(oneHot),
	))
	if err != nil {
		return nil, fmt.Errorf("trainstep: could not set selected "+
			"actions: %v", err)
	}
	err = G.Let(d.qTargets, tensor.NewDense(
		tensor.Float64,
		d.qTargets.Shape(),
		tensor.WithBacking(qTarget),
	))
	if err != nil {
		return nil, fmt.Errorf("trainstep: could not set action value "+
			"critic target: %v", err)
	}
	if err := d.qVM.RunAll(); err != nil {
		return nil, fmt.Errorf("trainstep: could not run action value "+
			"critic update: %v", err)
	}
	qLoss := d.qLossVal.Data().(float64)
	qGrad := gradNorm(d.qNet.Learnables())
	if err := d.qSolver.Step(d.qNet.Model()); err != nil {
		return nil, fmt.Errorf("trainstep: could not step action value "+
			"critic solver: %v", err)
	}
	d.qVM.Reset()

	// Move the target critic toward the learned critic and refresh the
	// behaviour policy weights
	if err := d.targetVNet.Polyak(d.vNet, d.tau); err != nil {
		return nil, fmt.Errorf("trainstep: could not update target state "+
			"value critic: %v", err)
	}
	if err := d.behaviour.Network().Set(d.trainPolicy.Network()); err != nil {
		return nil, fmt.Errorf("trainstep: could not update behaviour "+
			"policy: %v", err)
	}

	return agent.Diagnostics{
		EntropyKey:    entropy,
		VLossKey:      vLoss,
		QLossKey:      qLoss,
		PolicyLossKey: policyLoss,
		VGradKey:      vGrad,
		QGradKey:      qGrad,
		PolicyGradKey: policyGrad,
	}, nil
}

// allActionValues runs the action value critic forward on a batch of
// states, returning Q(s, a) for every action in every state in row
// major order.
func (d *Discrete) allActionValues(states []float64) ([]float64, error) {
	if err := d.qNet.SetInput(states); err != nil {
		return nil, fmt.Errorf("allactionvalues: could not set action value "+
			"critic input: %v", err)
	}
	if err := d.qForwardVM.RunAll(); err != nil {
		return nil, fmt.Errorf("allactionvalues: could not run action value "+
			"critic: %v", err)
	}
	defer d.qForwardVM.Reset()

	q := make([]float64, d.batchSize*d.numActions)
	copy(q, d.qNet.Output()[0].Data().([]float64))
	return q, nil
}

// Eval sets the agent into evaluation mode
func (d *Discrete) Eval() {
	d.eval = true
	d.behaviour.Eval()
}

// Train sets the agent into training mode
func (d *Discrete) Train() {
	d.eval = false
	d.behaviour.Train()
}

// IsEval returns whether the agent is in evaluation mode
func (d *Discrete) IsEval() bool { return d.eval }

// Network returns the network of the agent's behaviour policy, e.g.
// for checkpointing
func (d *Discrete) Network() network.NeuralNet {
	return d.behaviour.Network()
}

// Close cleans up the agent's resources
func (d *Discrete) Close() error {
	var err error
	vms := []G.VM{d.policyVM, d.qForwardVM, d.qVM, d.vVM, d.targetVVM}
	for _, vm := range vms {
		if cerr := vm.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	if cerr := d.trainPolicy.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if cerr := d.behaviour.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
