package experiment

import (
	"github.com/samuelfneumann/gohindsight/agent"
	ts "github.com/samuelfneumann/gohindsight/timestep"
)

// EpisodeStats accumulates the measurements of a single episode of an
// experiment. An EpisodeStats is created when an episode starts, fed
// each environment step and each training update as they happen, and
// finalized when the episode ends. Experiments return the finalized
// statistics from their episode-running methods, so no counters
// outlive the episode they measure.
type EpisodeStats struct {
	// Episode is the index of the episode within the experiment,
	// starting at 0
	Episode int

	// Timesteps is the number of environment steps the episode took
	Timesteps int

	// Return is the undiscounted sum of rewards over the episode
	Return float64

	// DiscountedReturn is the discounted return from the episode's
	// first timestep
	DiscountedReturn float64

	// Eval indicates whether the episode was an evaluation episode
	Eval bool

	// Success indicates whether the episode ended at its goal rather
	// than being cut off
	Success bool

	// Diagnostics holds the agent's training diagnostics summed over
	// the episode's updates and, once the episode is finalized,
	// averaged over the episode's timesteps
	Diagnostics agent.Diagnostics
}

// newEpisodeStats returns an empty accumulator for the argument
// episode
func newEpisodeStats(episode int, eval bool) EpisodeStats {
	return EpisodeStats{
		Episode:     episode,
		Eval:        eval,
		Diagnostics: make(agent.Diagnostics),
	}
}

// observe records a single environment step
func (e *EpisodeStats) observe(step ts.TimeStep) {
	e.Timesteps++
	e.Return += step.Reward
}

// accumulate sums the diagnostics of a single training update into
// the episode's diagnostics
func (e *EpisodeStats) accumulate(d agent.Diagnostics) {
	for key, value := range d {
		e.Diagnostics[key] += value
	}
}

// finalize completes the episode's statistics given the episode's
// last timestep and the discounted return of the episode
func (e *EpisodeStats) finalize(last ts.TimeStep, discountedReturn float64) {
	e.Success = last.TerminalEnd()
	e.DiscountedReturn = discountedReturn

	if e.Timesteps == 0 {
		return
	}
	for key := range e.Diagnostics {
		e.Diagnostics[key] /= float64(e.Timesteps)
	}
}
