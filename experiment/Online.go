package experiment

import (
	"fmt"
	"math"

	"github.com/aunum/log"
	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/gohindsight/agent"
	env "github.com/samuelfneumann/gohindsight/environment"
	"github.com/samuelfneumann/gohindsight/experiment/checkpointer"
	"github.com/samuelfneumann/gohindsight/experiment/tracker"
	"github.com/samuelfneumann/gohindsight/expreplay"
	"github.com/samuelfneumann/gohindsight/hindsight"
	ts "github.com/samuelfneumann/gohindsight/timestep"
	"github.com/samuelfneumann/gohindsight/utils/progressbar"
)

// progressWidth is the character width of the progress bar Run prints
const progressWidth int = 65

// Online is an Experiment that trains an agent online with hindsight
// experience replay.
//
// Each episode, the agent acts in the environment while the raw
// transitions it generates are recorded. Transitions also enter the
// replay buffer as they happen, with rewards scaled by a fixed reward
// scale, and once the buffer holds enough samples the agent is updated
// a fixed number of times per environment step. When the episode
// finishes, the recorded trajectory is relabelled against goals that
// were achieved in hindsight and the relabelled trajectories are
// flushed into the replay buffer, rewards scaled the same way.
//
// Every evalEvery'th episode is an evaluation episode: the agent acts
// greedily and neither the replay buffer nor the agent's weights are
// touched. Evaluation episodes still count against the experiment's
// timestep limit.
type Online struct {
	env.Environment
	agent.Agent
	maxSteps     uint
	currentSteps uint
	episodes     int

	buffer    expreplay.ExperienceReplayer
	recorder  *hindsight.Recorder
	relabeler *hindsight.Relabeler

	rewardScale   float64
	numTrainSteps int
	evalEvery     int

	// Continuous actions are squashed through tanh and rescaled to
	// the environment's action bounds before being sent to the
	// environment. The raw actions are what get recorded and replayed.
	squash      bool
	actionScale *mat.VecDense
	actionShift *mat.VecDense

	trackers      []tracker.Tracker
	checkpointers []checkpointer.Checkpointer
}

// NewOnline creates and returns a new online experiment on a given
// environment with a given agent. The maxSteps parameter determines
// how many environment steps the experiment is run for, counting
// evaluation episodes. Rewards are multiplied by rewardScale on every
// path into the replay buffer, numTrainSteps agent updates are
// attempted per environment step, and every evalEvery'th episode is
// run as an evaluation episode, with evalEvery = 0 disabling
// evaluation episodes altogether. The t parameter is a slice of
// tracker.Tracker which determine what data is saved.
func NewOnline(e env.Environment, a agent.Agent, maxSteps uint,
	buffer expreplay.ExperienceReplayer, relabeler *hindsight.Relabeler,
	rewardScale float64, numTrainSteps, evalEvery int,
	t []tracker.Tracker, c []checkpointer.Checkpointer) (*Online, error) {
	if rewardScale <= 0 {
		return nil, fmt.Errorf("newOnline: reward scale must be positive, "+
			"got %v", rewardScale)
	}
	if numTrainSteps < 0 {
		return nil, fmt.Errorf("newOnline: training steps per environment "+
			"step must be non-negative, got %d", numTrainSteps)
	}
	if evalEvery < 0 {
		return nil, fmt.Errorf("newOnline: evaluation period must be "+
			"non-negative, got %d", evalEvery)
	}

	o := &Online{
		Environment:   e,
		Agent:         a,
		maxSteps:      maxSteps,
		buffer:        buffer,
		recorder:      hindsight.NewRecorder(),
		relabeler:     relabeler,
		rewardScale:   rewardScale,
		numTrainSteps: numTrainSteps,
		evalEvery:     evalEvery,
		trackers:      t,
		checkpointers: c,
	}

	if spec := e.ActionSpec(); spec.Cardinality == env.Continuous {
		dims := spec.LowerBound.Len()
		o.squash = true
		o.actionScale = mat.NewVecDense(dims, nil)
		o.actionShift = mat.NewVecDense(dims, nil)
		for i := 0; i < dims; i++ {
			upper := spec.UpperBound.AtVec(i)
			lower := spec.LowerBound.AtVec(i)
			o.actionScale.SetVec(i, (upper-lower)/2.0)
			o.actionShift.SetVec(i, (upper+lower)/2.0)
		}
	}

	return o, nil
}

// Register registers a tracker.Tracker with an Experiment so that data
// generated during the experiment can be tracked and saved
func (o *Online) Register(t tracker.Tracker) {
	o.trackers = append(o.trackers, t)
}

// RunEpisode runs a single episode of the experiment. It returns the
// episode's finalized statistics and whether or not the max timestep
// limit has been reached.
func (o *Online) RunEpisode() (EpisodeStats, bool, error) {
	eval := o.evalEvery > 0 && o.episodes%o.evalEvery == o.evalEvery-1
	if eval {
		o.Agent.Eval()
	} else {
		o.Agent.Train()
	}
	stats := newEpisodeStats(o.episodes, eval)

	step, err := o.Environment.Reset()
	if err != nil {
		return EpisodeStats{}, false, fmt.Errorf("runEpisode: could not "+
			"reset environment: %v", err)
	}
	o.track(step)

	for !step.Last() && o.currentSteps < o.maxSteps {
		o.currentSteps++

		// Select action, step in environment
		action := o.Agent.SelectAction(step)
		next, _, err := o.Environment.Step(o.envAction(action))
		if err != nil {
			return EpisodeStats{}, false, fmt.Errorf("runEpisode: could "+
				"not step environment: %v", err)
		}

		stats.observe(next)
		o.track(next)

		transition := ts.NewTransition(step, action, next)
		o.recorder.Record(transition)

		// Evaluation episodes write no experience and update no
		// weights
		if !eval {
			scaled := transition
			scaled.Reward *= o.rewardScale
			if err := o.buffer.Add(scaled); err != nil {
				return EpisodeStats{}, false, fmt.Errorf("runEpisode: "+
					"could not add transition to replay buffer: %v", err)
			}

			for i := 0; i < o.numTrainSteps; i++ {
				diagnostics, err := o.trainStep()
				if err != nil {
					return EpisodeStats{}, false, err
				}
				if diagnostics == nil {
					// Not enough samples in the buffer yet
					break
				}
				stats.accumulate(diagnostics)
			}
		}

		step = next
	}

	discounted := o.discountedReturn()
	if !eval {
		if err := o.flush(); err != nil {
			return EpisodeStats{}, false, err
		}
	}
	o.recorder.Clear()

	if err := o.checkpoint(step); err != nil {
		return EpisodeStats{}, false, err
	}

	stats.finalize(step, discounted)
	o.episodes++

	// Return whether or not the max timestep limit has been reached
	return stats, o.currentSteps >= o.maxSteps, nil
}

// Run runs the entire experiment for all timesteps, logging the
// statistics of each episode as it finishes
func (o *Online) Run() error {
	bar := progressbar.NewManualProgressBar(progressWidth, int(o.maxSteps))

	for {
		stats, done, err := o.RunEpisode()
		if err != nil {
			return fmt.Errorf("run: %v", err)
		}

		mode := "TRAIN"
		if stats.Eval {
			mode = "EVAL"
		}
		log.Infof("(%v) Episode %d Time Steps: %d Reward: %v", mode,
			stats.Episode, stats.Timesteps, stats.Return)
		if len(stats.Diagnostics) != 0 {
			log.Infof("\tDiagnostics: %v", stats.Diagnostics)
		}

		for i := 0; i < stats.Timesteps; i++ {
			bar.Increment()
		}
		bar.Display()

		if done {
			return nil
		}
	}
}

// Save saves all the data cached by the Trackers to disk
func (o *Online) Save() {
	for _, t := range o.trackers {
		t.Save()
	}
}

// track tracks the current timestep by caching its data in each
// Tracker
func (o *Online) track(step ts.TimeStep) {
	for _, t := range o.trackers {
		t.Track(step)
	}
}

// checkpoint checkpoints all serializable objects registered with the
// experiment. It is called once per episode, at the episode boundary.
func (o *Online) checkpoint(step ts.TimeStep) error {
	for _, c := range o.checkpointers {
		if err := c.Checkpoint(step); err != nil {
			return fmt.Errorf("checkpoint: %v", err)
		}
	}
	return nil
}

// trainStep samples a batch of experience from the replay buffer and
// performs a single gradient update with it. If the buffer does not
// yet hold enough samples, no update is performed and a nil
// Diagnostics is returned.
func (o *Online) trainStep() (agent.Diagnostics, error) {
	states, actions, rewards, discounts, nextStates, terminals, err :=
		o.buffer.Sample()
	if err != nil {
		if expreplay.IsInsufficientData(err) || expreplay.IsEmptyBuffer(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("trainStep: could not sample replay "+
			"buffer: %v", err)
	}

	batch := agent.Batch{
		States:     states,
		Actions:    actions,
		Rewards:    rewards,
		Discounts:  discounts,
		NextStates: nextStates,
		Terminals:  terminals,
		Size:       o.buffer.BatchSize(),
	}

	diagnostics, err := o.Agent.TrainStep(batch)
	if err != nil {
		return nil, fmt.Errorf("trainStep: could not update agent: %v", err)
	}

	return diagnostics, nil
}

// flush relabels the recorded trajectory against hindsight goals and
// extends the replay buffer with the relabelled trajectories. Rewards
// are scaled on their way into the buffer, exactly as on the original
// experience path.
func (o *Online) flush() error {
	if o.recorder.Len() == 0 {
		return nil
	}

	trajectories, err := o.relabeler.Trajectories(o.recorder.Steps())
	if err != nil {
		return fmt.Errorf("flush: could not relabel trajectory: %v", err)
	}

	for _, trajectory := range trajectories {
		for i := range trajectory {
			trajectory[i].Reward *= o.rewardScale
		}
		if err := expreplay.Extend(o.buffer, trajectory); err != nil {
			return fmt.Errorf("flush: could not extend replay buffer: %v",
				err)
		}
	}

	return nil
}

// discountedReturn walks the recorded trajectory backwards and returns
// the discounted return from the episode's first timestep
func (o *Online) discountedReturn() float64 {
	returns := hindsight.NewReturns(o.recorder.Steps())

	value := 0.0
	for {
		_, v, ok := returns.Next()
		if !ok {
			return value
		}
		value = v
	}
}

// envAction converts an agent's action into the action sent to the
// environment. Continuous actions are squashed through tanh and
// rescaled to the environment's action bounds. Discrete actions pass
// through unchanged.
func (o *Online) envAction(action *mat.VecDense) *mat.VecDense {
	if !o.squash {
		return action
	}

	squashed := mat.NewVecDense(action.Len(), nil)
	for i := 0; i < action.Len(); i++ {
		squashed.SetVec(i, math.Tanh(action.AtVec(i))*
			o.actionScale.AtVec(i)+o.actionShift.AtVec(i))
	}
	return squashed
}
