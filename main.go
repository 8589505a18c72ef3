package main

import (
	"fmt"

	"github.com/aunum/log"

	"github.com/samuelfneumann/gohindsight/agent"
	"github.com/samuelfneumann/gohindsight/agent/sac"
	"github.com/samuelfneumann/gohindsight/environment/envconfig"
	"github.com/samuelfneumann/gohindsight/experiment"
	"github.com/samuelfneumann/gohindsight/experiment/checkpointer"
	"github.com/samuelfneumann/gohindsight/experiment/tracker"
	"github.com/samuelfneumann/gohindsight/experiment/trackers"
	"github.com/samuelfneumann/gohindsight/expreplay"
	"github.com/samuelfneumann/gohindsight/hindsight"
	"github.com/samuelfneumann/gohindsight/initwfn"
	"github.com/samuelfneumann/gohindsight/network"
	"github.com/samuelfneumann/gohindsight/solver"
)

func main() {
	var seed uint64 = 192382
	batchSize := 32

	// Goal-conditioned gridworld: episodes start at the bottom-left
	// cell and chase a goal cell drawn at random each episode
	envConf := envconfig.Config{
		Environment:   envconfig.Gridworld,
		Rows:          5,
		Cols:          5,
		SlipProb:      0.0,
		EpisodeCutoff: 50,
		Discount:      0.99,
		SuccessReward: 1.0,
		DefaultReward: 0.0,
	}
	env, _, err := envConf.Create(seed)
	if err != nil {
		log.Fatalf("could not create environment: %v", err)
	}

	// Soft actor-critic with a categorical policy
	init, err := initwfn.NewGlorotU(1.0)
	if err != nil {
		log.Fatalf("could not create weight initializer: %v", err)
	}
	policySolver, err := solver.NewDefaultAdam(3e-4, batchSize)
	if err != nil {
		log.Fatalf("could not create policy solver: %v", err)
	}
	qSolver, err := solver.NewDefaultAdam(3e-4, batchSize)
	if err != nil {
		log.Fatalf("could not create action value solver: %v", err)
	}
	vSolver, err := solver.NewDefaultAdam(3e-4, batchSize)
	if err != nil {
		log.Fatalf("could not create state value solver: %v", err)
	}

	conf := agent.NewTypedConfig(sac.Config{
		Policy:       agent.Categorical,
		PolicyLayers: []int{64, 64},
		PolicyBiases: []bool{true, true},
		PolicyActivations: []*network.Activation{
			network.ReLU(),
			network.ReLU(),
		},
		CriticLayers: []int{64, 64},
		CriticBiases: []bool{true, true},
		CriticActivations: []*network.Activation{
			network.ReLU(),
			network.ReLU(),
		},
		InitWFn:      init,
		PolicySolver: policySolver,
		QSolver:      qSolver,
		VSolver:      vSolver,
		BatchSize:    batchSize,
		Tau:          0.005,
		Alpha:        1.0,
	})
	a, err := conf.CreateAgent(env, seed)
	if err != nil {
		log.Fatalf("could not create agent: %v", err)
	}

	// Replay buffer and hindsight relabeler
	bufConf := expreplay.Config{
		RemoveMethod:      expreplay.Fifo,
		SampleMethod:      expreplay.Uniform,
		RemoveSize:        1,
		SampleSize:        batchSize,
		MaxReplayCapacity: 100_000,
		MinReplayCapacity: batchSize,
	}
	buffer, err := bufConf.Create(env.ObservationSpec().Shape.Len(),
		env.ActionSpec().Shape.Len(), seed)
	if err != nil {
		log.Fatalf("could not create replay buffer: %v", err)
	}

	relabeler, err := hindsight.NewRelabeler(env, 4, envConf.SuccessReward,
		envConf.DefaultReward, seed)
	if err != nil {
		log.Fatalf("could not create relabeler: %v", err)
	}

	// Track episodic returns and success rates, and checkpoint the
	// policy network every 100 episodes
	track := []tracker.Tracker{
		trackers.NewReturn("./return.bin"),
		trackers.NewSuccessRate("./success.bin"),
	}
	check := []checkpointer.Checkpointer{
		checkpointer.NewNStep(100,
			a.(*sac.Discrete).Network().(checkpointer.Serializable),
			checkpointer.FilenameEnumerator(0, "./policy", ".bin")),
	}

	e, err := experiment.NewOnline(env, a, 100_000, buffer, relabeler,
		1.0, 4, 10, track, check)
	if err != nil {
		log.Fatalf("could not create experiment: %v", err)
	}

	if err := e.Run(); err != nil {
		log.Fatalf("experiment failed: %v", err)
	}
	e.Save()

	successes := tracker.LoadData("./success.bin")
	fmt.Println(successes[len(successes)-10:])
}
