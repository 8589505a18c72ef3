package trackers

import (
	"encoding/gob"
	"os"

	"github.com/aunum/log"

	"github.com/samuelfneumann/gohindsight/experiment/tracker"
	ts "github.com/samuelfneumann/gohindsight/timestep"
)

// SuccessRate tracks and saves whether each episode in an experiment
// ended in success. An episode is successful when its last timestep
// ends the episode terminally, at a goal, rather than by being cut
// off at a step limit. Each episode is recorded as a 1 for success or
// a 0 for failure, so that a moving average over the saved data gives
// the success rate over the experiment.
//
// Note that an episode must finish for this Tracker to save its data.
// If the last episode in an experiment does not finish, that episode
// will not be recorded.
type SuccessRate struct {
	successes []float64
	filename  string
}

// NewSuccessRate returns a new SuccessRate Tracker which will save
// its data at the specified location filename
func NewSuccessRate(filename string) tracker.Tracker {
	return &SuccessRate{filename: filename}
}

// Track caches whether the episode ended in success if the argument
// timestep is the last in its episode. On all other timesteps, Track
// does nothing.
func (s *SuccessRate) Track(step ts.TimeStep) {
	if !step.Last() {
		return
	}

	if step.TerminalEnd() {
		s.successes = append(s.successes, 1.0)
	} else {
		s.successes = append(s.successes, 0.0)
	}
}

// Save saves the data tracked by the SuccessRate Tracker to disk.
func (s *SuccessRate) Save() {
	file, err := os.Create(s.filename)
	if err != nil {
		log.Fatalf("could not open save file: %v", err)
	}
	defer file.Close()

	en := gob.NewEncoder(file)
	if err = en.Encode(s.successes); err != nil {
		log.Fatalf("could not encode success rate data: %v", err)
	}
}
