// Package experiment implements functionality for running an experiment
package experiment

import (
	"fmt"

	"github.com/samuelfneumann/gohindsight/agent"
	"github.com/samuelfneumann/gohindsight/environment/envconfig"
	"github.com/samuelfneumann/gohindsight/experiment/checkpointer"
	"github.com/samuelfneumann/gohindsight/experiment/tracker"
	"github.com/samuelfneumann/gohindsight/expreplay"
	"github.com/samuelfneumann/gohindsight/hindsight"
	ts "github.com/samuelfneumann/gohindsight/timestep"
)

// Interface Experiment outlines structs that can run experiments.
// Experiments step an agent through an environment episode by episode,
// tracking environment TimeSteps and caching each TimeStep in RAM to
// be later saved to disk. The Save() function will then take all
// cached data and save it to disk. This is usually performed after an
// experiment has been run. The Run() method will run all episodes
// until the maximum timestep limit is reached, or some other ending
// condition is reached. The RunEpisode() function will run a single
// episode, returning the finalized statistics of that episode.
//
// In order to save data, Experiments use Trackers. Trackers determine
// which data generated during the experiment is saved. Experiments
// will send each TimeStep to Trackers using the Tracker's Track()
// method. The Tracker then determines which data from the TimeStep it
// caches and saves. New Trackers can be registered with an Experiment
// through the constructor or through an Experiment's Register()
// function.
type Experiment interface {
	Run() error

	// RunEpisode runs a single episode, returning the episode's
	// statistics and whether or not the experiment's timestep limit
	// has been reached
	RunEpisode() (EpisodeStats, bool, error)

	// Tracks current timestep by sending it to Trackers
	track(ts.TimeStep)

	// Save all tracked data to disk
	Save()

	// Adds a new tracker.Tracker to the (possibly already running)
	// experiment. Useful if you want to track data only after a
	// specified event.
	Register(t tracker.Tracker)

	// Saves the current state of all serializable objects registered
	// with the experiment
	checkpoint(ts.TimeStep) error
}

type Type string

const (
	OnlineExp Type = "OnlineExperiment"
)

// Config represents a configuration of an experiment.
type Config struct {
	Type
	MaxSteps  uint
	EnvConf   envconfig.Config
	AgentConf agent.TypedConfig
	Buffer    expreplay.Config

	// Hindsight relabelling and training cadence. NGoals counts the
	// hindsight goals each finished trajectory is relabelled against.
	// RewardScale multiplies every reward as it enters the replay
	// buffer. NumTrainSteps counts the gradient updates per
	// environment step, and every EvalEvery'th episode is run as an
	// evaluation episode.
	NGoals        int
	RewardScale   float64
	NumTrainSteps int
	EvalEvery     int
}

// CreateExp creates the experiment described by the Config, wiring
// together the environment, agent, replay buffer, and hindsight
// relabeler that the experiment runs with.
func (c Config) CreateExp(seed uint64, t []tracker.Tracker,
	check []checkpointer.Checkpointer) (Experiment, error) {
	env, _, err := c.EnvConf.Create(seed)
	if err != nil {
		return nil, fmt.Errorf("createExp: could not create "+
			"environment: %v", err)
	}

	a, err := c.AgentConf.CreateAgent(env, seed)
	if err != nil {
		return nil, fmt.Errorf("createExp: could not create agent: %v", err)
	}

	features := env.ObservationSpec().Shape.Len()
	actionDims := env.ActionSpec().Shape.Len()
	buffer, err := c.Buffer.Create(features, actionDims, seed)
	if err != nil {
		return nil, fmt.Errorf("createExp: could not create replay "+
			"buffer: %v", err)
	}

	relabeler, err := hindsight.NewRelabeler(env, c.NGoals,
		c.EnvConf.SuccessReward, c.EnvConf.DefaultReward, seed)
	if err != nil {
		return nil, fmt.Errorf("createExp: could not create relabeler: %v",
			err)
	}

	switch c.Type {
	case OnlineExp:
		return NewOnline(env, a, c.MaxSteps, buffer, relabeler,
			c.RewardScale, c.NumTrainSteps, c.EvalEvery, t, check)
	}

	panic(fmt.Sprintf("createExp: no such experiment type %v", c.Type))
}
