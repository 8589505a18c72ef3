package experiment_test

import (
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/gohindsight/agent"
	"github.com/samuelfneumann/gohindsight/environment/envconfig"
	"github.com/samuelfneumann/gohindsight/experiment"
	"github.com/samuelfneumann/gohindsight/expreplay"
	"github.com/samuelfneumann/gohindsight/hindsight"
	ts "github.com/samuelfneumann/gohindsight/timestep"
)

const (
	gridSize      int  = 3
	episodeCutoff uint = 5
	numActions    int  = 4
)

// stubAgent is a minimal agent for driving the online experiment in
// tests. It cycles through the legal actions and records how it was
// used.
type stubAgent struct {
	nextAction int
	trainSteps int
	batches    []agent.Batch
	eval       bool
}

func (s *stubAgent) SelectAction(ts.TimeStep) *mat.VecDense {
	action := float64(s.nextAction % numActions)
	s.nextAction++
	return mat.NewVecDense(1, []float64{action})
}

func (s *stubAgent) TrainStep(b agent.Batch) (agent.Diagnostics, error) {
	s.trainSteps++
	s.batches = append(s.batches, b)
	return agent.Diagnostics{"loss": 2.0}, nil
}

func (s *stubAgent) Eval()        { s.eval = true }
func (s *stubAgent) Train()       { s.eval = false }
func (s *stubAgent) IsEval() bool { return s.eval }

// countingTracker counts how many timesteps it was sent
type countingTracker struct {
	tracked int
	saved   int
}

func (c *countingTracker) Track(ts.TimeStep) { c.tracked++ }
func (c *countingTracker) Save()             { c.saved++ }

// newTestExperiment returns an online experiment on a small
// goal-conditioned gridworld, driven by a stub agent
func newTestExperiment(t *testing.T, maxSteps uint, rewardScale float64,
	numTrainSteps, evalEvery, nGoals, batchSize int) (*experiment.Online,
	*stubAgent, expreplay.ExperienceReplayer) {
	t.Helper()

	var seed uint64 = 14

	env, _, err := envconfig.CreateGridworld(gridSize, gridSize, 0.0,
		episodeCutoff, 0.99, 1.0, 0.0, seed)
	if err != nil {
		t.Fatalf("could not create environment: %v", err)
	}

	conf := expreplay.Config{
		RemoveMethod:      expreplay.Fifo,
		SampleMethod:      expreplay.Uniform,
		RemoveSize:        1,
		SampleSize:        batchSize,
		MaxReplayCapacity: 1000,
		MinReplayCapacity: batchSize,
	}
	buffer, err := conf.Create(env.ObservationSpec().Shape.Len(), 1, seed)
	if err != nil {
		t.Fatalf("could not create replay buffer: %v", err)
	}

	relabeler, err := hindsight.NewRelabeler(env, nGoals, 1.0, 0.0, seed)
	if err != nil {
		t.Fatalf("could not create relabeler: %v", err)
	}

	a := &stubAgent{}
	exp, err := experiment.NewOnline(env, a, maxSteps, buffer, relabeler,
		rewardScale, numTrainSteps, evalEvery, nil, nil)
	if err != nil {
		t.Fatalf("could not create experiment: %v", err)
	}

	return exp, a, buffer
}

// TestOnlineRewardScaling checks that every reward entering the
// replay buffer, on the original and the relabelled path alike, was
// scaled exactly once.
func TestOnlineRewardScaling(t *testing.T) {
	rewardScale := 2.0
	exp, a, _ := newTestExperiment(t, 40, rewardScale, 1, 0, 2, 2)

	for i := 0; i < 4; i++ {
		if _, _, err := exp.RunEpisode(); err != nil {
			t.Fatalf("could not run episode: %v", err)
		}
	}

	if len(a.batches) == 0 {
		t.Fatal("agent was never trained")
	}

	// The goal-conditioned gridworld emits rewards of 0 or 1, so
	// every sampled reward must be 0 or rewardScale exactly
	for _, batch := range a.batches {
		for _, reward := range batch.Rewards {
			if reward != 0.0 && reward != rewardScale {
				t.Errorf("reward scaled incorrectly \n\twant(0 or %v) "+
					"\n\thave(%v)", rewardScale, reward)
			}
		}
		if batch.Size != 2 {
			t.Errorf("wrong batch size \n\twant(2) \n\thave(%v)", batch.Size)
		}
	}
}

// TestOnlineEvalEpisodes checks the evaluation episode cadence: every
// evalEvery'th episode runs in evaluation mode, writes nothing to the
// replay buffer, and performs no training updates.
func TestOnlineEvalEpisodes(t *testing.T) {
	evalEvery := 2
	exp, a, buffer := newTestExperiment(t, 40, 1.0, 1, evalEvery, 1, 2)

	for i := 0; i < 4; i++ {
		capacityBefore := buffer.Capacity()
		trainStepsBefore := a.trainSteps

		stats, _, err := exp.RunEpisode()
		if err != nil {
			t.Fatalf("could not run episode: %v", err)
		}

		wantEval := i%evalEvery == evalEvery-1
		if stats.Eval != wantEval {
			t.Errorf("episode %d eval flag \n\twant(%v) \n\thave(%v)",
				i, wantEval, stats.Eval)
		}
		if stats.Episode != i {
			t.Errorf("wrong episode number \n\twant(%v) \n\thave(%v)",
				i, stats.Episode)
		}

		if wantEval {
			if buffer.Capacity() != capacityBefore {
				t.Errorf("evaluation episode wrote to the replay buffer "+
					"\n\twant(%v) \n\thave(%v)", capacityBefore,
					buffer.Capacity())
			}
			if a.trainSteps != trainStepsBefore {
				t.Errorf("evaluation episode trained the agent "+
					"\n\twant(%v) \n\thave(%v)", trainStepsBefore,
					a.trainSteps)
			}
			if !a.IsEval() {
				t.Error("agent not in evaluation mode during evaluation " +
					"episode")
			}
		} else if buffer.Capacity() <= capacityBefore+stats.Timesteps {
			// A training episode adds each of its transitions plus at
			// least one relabelled transition
			t.Errorf("training episode did not flush relabelled "+
				"experience \n\twant(> %v) \n\thave(%v)",
				capacityBefore+stats.Timesteps, buffer.Capacity())
		}
	}
}

// TestOnlineEpisodeStats checks the per-episode statistics: timestep
// counts, returns, success flags, and diagnostics averaged over the
// episode's timesteps.
func TestOnlineEpisodeStats(t *testing.T) {
	exp, a, _ := newTestExperiment(t, 40, 1.0, 2, 0, 1, 2)

	tracker := &countingTracker{}
	exp.Register(tracker)

	for i := 0; i < 3; i++ {
		trainStepsBefore := a.trainSteps
		trackedBefore := tracker.tracked

		stats, _, err := exp.RunEpisode()
		if err != nil {
			t.Fatalf("could not run episode: %v", err)
		}

		if stats.Timesteps < 1 || stats.Timesteps > int(episodeCutoff) {
			t.Errorf("impossible episode length \n\twant(1 to %v) "+
				"\n\thave(%v)", episodeCutoff, stats.Timesteps)
		}

		// Every timestep is tracked, including the episode's first
		if got := tracker.tracked - trackedBefore; got != stats.Timesteps+1 {
			t.Errorf("wrong number of tracked timesteps \n\twant(%v) "+
				"\n\thave(%v)", stats.Timesteps+1, got)
		}

		// Goal rewards are 1 on success and 0 otherwise, and success
		// ends the episode, so the return determines the success flag
		if stats.Success != (stats.Return > 0) {
			t.Errorf("success flag disagrees with return %v: %v",
				stats.Return, stats.Success)
		}
		if (stats.DiscountedReturn > 0) != (stats.Return > 0) {
			t.Errorf("discounted return %v disagrees with return %v",
				stats.DiscountedReturn, stats.Return)
		}

		// Diagnostics are summed over the episode's updates and
		// averaged over its timesteps
		episodeTrainSteps := a.trainSteps - trainStepsBefore
		want := 2.0 * float64(episodeTrainSteps) / float64(stats.Timesteps)
		if have := stats.Diagnostics["loss"]; have != want {
			t.Errorf("wrong averaged diagnostic \n\twant(%v) \n\thave(%v)",
				want, have)
		}
	}

	exp.Save()
	if tracker.saved != 1 {
		t.Errorf("wrong number of tracker saves \n\twant(1) \n\thave(%v)",
			tracker.saved)
	}
}

// TestOnlineMaxSteps checks that the experiment stops exactly at its
// timestep limit, cutting the final episode off mid-episode if needed.
func TestOnlineMaxSteps(t *testing.T) {
	maxSteps := uint(3)
	exp, _, _ := newTestExperiment(t, maxSteps, 1.0, 0, 0, 1, 2)

	total := 0
	done := false
	for i := 0; i < 10 && !done; i++ {
		var stats experiment.EpisodeStats
		var err error

		stats, done, err = exp.RunEpisode()
		if err != nil {
			t.Fatalf("could not run episode: %v", err)
		}
		total += stats.Timesteps
	}

	if !done {
		t.Fatal("experiment never reported reaching its timestep limit")
	}
	if total != int(maxSteps) {
		t.Errorf("wrong total number of timesteps \n\twant(%v) "+
			"\n\thave(%v)", maxSteps, total)
	}
}
