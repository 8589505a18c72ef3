package sac

import (
	"fmt"

	"github.com/samuelfneumann/gohindsight/agent"
	env "github.com/samuelfneumann/gohindsight/environment"
	"github.com/samuelfneumann/gohindsight/initwfn"
	"github.com/samuelfneumann/gohindsight/network"
	"github.com/samuelfneumann/gohindsight/solver"
)

func init() {
	// Register the Config type so that it can be typed using
	// agent.TypedConfig to help with serialization/deserialization.
	agent.Register(agent.GaussianSACMLP, Config{})
	agent.Register(agent.CategoricalSACMLP, Config{})
}

// Config implements a configuration for a SAC agent. The Policy field
// selects the policy parameterization and with it the action space
// flavour of the agent: a Gaussian policy learns on continuous action
// spaces and a categorical (softmax) policy on discrete ones. An empty
// Policy field denotes a Gaussian policy.
type Config struct {
	Policy agent.PolicyType

	// Policy network architecture
	PolicyLayers      []int
	PolicyBiases      []bool
	PolicyActivations []*network.Activation

	// Architecture shared by the state and action value critics
	CriticLayers      []int
	CriticBiases      []bool
	CriticActivations []*network.Activation

	// Initialization algorithm for all network weights
	InitWFn *initwfn.InitWFn

	PolicySolver *solver.Solver
	QSolver      *solver.Solver
	VSolver      *solver.Solver

	BatchSize int

	Tau   float64 // Polyak averaging constant for the target critic
	Alpha float64 // Entropy scale
}

// Type returns the type of the configuration
func (c Config) Type() agent.Type {
	if c.Policy == agent.Categorical {
		return agent.CategoricalSACMLP
	}
	return agent.GaussianSACMLP
}

// Validate checks a Config to ensure it is a valid configuration of a
// SAC agent.
func (c Config) Validate() error {
	if len(c.PolicyLayers) != len(c.PolicyBiases) {
		return fmt.Errorf("validate: invalid number of policy biases"+
			"\n\twant(%v)\n\thave(%v)", len(c.PolicyLayers),
			len(c.PolicyBiases))
	}
	if len(c.PolicyLayers) != len(c.PolicyActivations) {
		return fmt.Errorf("validate: invalid number of policy activations"+
			"\n\twant(%v)\n\thave(%v)", len(c.PolicyLayers),
			len(c.PolicyActivations))
	}

	if len(c.CriticLayers) != len(c.CriticBiases) {
		return fmt.Errorf("validate: invalid number of critic biases"+
			"\n\twant(%v)\n\thave(%v)", len(c.CriticLayers),
			len(c.CriticBiases))
	}
	if len(c.CriticLayers) != len(c.CriticActivations) {
		return fmt.Errorf("validate: invalid number of critic activations"+
			"\n\twant(%v)\n\thave(%v)", len(c.CriticLayers),
			len(c.CriticActivations))
	}

	if c.InitWFn == nil {
		return fmt.Errorf("validate: no weight initialization algorithm")
	}
	if c.PolicySolver == nil || c.QSolver == nil || c.VSolver == nil {
		return fmt.Errorf("validate: all solvers must be set")
	}

	if c.BatchSize < 1 {
		return fmt.Errorf("validate: batch size must be positive "+
			"\n\twant(>0) \n\thave(%v)", c.BatchSize)
	}
	if c.Tau <= 0 || c.Tau > 1 {
		return fmt.Errorf("validate: tau must be in (0, 1] \n\thave(%v)",
			c.Tau)
	}
	if c.Alpha < 0 {
		return fmt.Errorf("validate: alpha must be non-negative "+
			"\n\thave(%v)", c.Alpha)
	}

	return nil
}

// ValidAgent returns whether the argument agent is valid for the
// configuration. That is, whether Agent a can be constructed with
// Config c.
func (c Config) ValidAgent(a agent.Agent) bool {
	if c.Policy == agent.Categorical {
		_, ok := a.(*Discrete)
		return ok
	}
	_, ok := a.(*SAC)
	return ok
}

// CreateAgent creates a new SAC agent based on the configuration
func (c Config) CreateAgent(e env.Environment, seed uint64) (agent.Agent,
	error) {
	if c.Policy == agent.Categorical {
		return NewDiscrete(e, c, seed)
	}
	return New(e, c, seed)
}
