package hindsight_test

import (
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/gohindsight/environment"
	"github.com/samuelfneumann/gohindsight/environment/gridworld"
	"github.com/samuelfneumann/gohindsight/environment/wrappers"
	"github.com/samuelfneumann/gohindsight/goal"
	"github.com/samuelfneumann/gohindsight/hindsight"
	ts "github.com/samuelfneumann/gohindsight/timestep"
)

const (
	rows int = 3
	cols int = 3

	successReward float64 = 1.0
	defaultReward float64 = 0.0
)

// newTestEnv returns a goal-conditioned 3x3 gridworld and the layout
// of its observations
func newTestEnv(t *testing.T) (environment.Environment, goal.Layout) {
	t.Helper()

	starter, err := gridworld.NewSingleStart(0, 0, rows, cols)
	if err != nil {
		t.Fatalf("could not create starter: %v", err)
	}

	task := gridworld.NewExplore(starter, 50)
	grid, _, err := gridworld.New(task, rows, cols, 0.0, 0.99, 14)
	if err != nil {
		t.Fatalf("could not create gridworld: %v", err)
	}

	goals := gridworld.NewCellGoals(rows, cols, 14)
	conditioned, _, err := wrappers.NewGoal(grid, goals, successReward,
		defaultReward)
	if err != nil {
		t.Fatalf("could not create goal-conditioned environment: %v", err)
	}

	return conditioned, conditioned.Layout()
}

// vectorize returns the vectorized goal-conditioned observation of an
// agent at cell (x, y) desiring to reach cell desired
func vectorize(cell [2]int, desired [2]float64) *mat.VecDense {
	base := mat.NewVecDense(rows*cols, nil)
	base.SetVec(cell[1]*cols+cell[0], 1.0)

	achieved := mat.NewVecDense(2, []float64{
		float64(cell[0]),
		float64(cell[1]),
	})
	desiredGoal := mat.NewVecDense(2, []float64{desired[0], desired[1]})

	return goal.NewObservation(base, achieved, desiredGoal).Vectorize()
}

// transition returns a transition between cells from and to with the
// argument desired goal
func transition(from, to [2]int, desired [2]float64) ts.Transition {
	return ts.Transition{
		State:     vectorize(from, desired),
		Action:    mat.NewVecDense(1, []float64{float64(gridworld.Right)}),
		Reward:    defaultReward,
		Discount:  0.99,
		NextState: vectorize(to, desired),
		Terminal:  false,
	}
}

// trajectory returns a trajectory visiting each of the argument cells
// in order, desiring to reach cell desired
func trajectory(cells [][2]int, desired [2]float64) []ts.Transition {
	steps := make([]ts.Transition, len(cells)-1)
	for i := range steps {
		steps[i] = transition(cells[i], cells[i+1], desired)
	}
	return steps
}

func TestRelabelFinalAnchor(t *testing.T) {
	env, layout := newTestEnv(t)

	relabeler, err := hindsight.NewRelabeler(env, 1, successReward,
		defaultReward, 19)
	if err != nil {
		t.Fatalf("could not create relabeler: %v", err)
	}

	// The agent walks right along the bottom row but desired the
	// top-right cell, so the original episode never succeeds
	desired := [2]float64{2.0, 2.0}
	cells := [][2]int{{0, 0}, {1, 0}, {2, 0}, {2, 1}}
	steps := trajectory(cells, desired)

	relabelled, err := relabeler.Relabel(steps, len(steps)-1)
	if err != nil {
		t.Fatalf("could not relabel: %v", err)
	}

	if len(relabelled) != len(steps) {
		t.Fatalf("got %d relabelled steps, want %d", len(relabelled),
			len(steps))
	}

	// The achieved goal at the final next state becomes the desired
	// goal of every relabelled step
	anchorGoal := layout.AchievedGoal(steps[len(steps)-1].NextState)
	for i, step := range relabelled {
		if !mat.Equal(layout.DesiredGoal(step.State), anchorGoal) {
			t.Errorf("step %d state was not relabelled to the anchor goal", i)
		}
		if !mat.Equal(layout.DesiredGoal(step.NextState), anchorGoal) {
			t.Errorf("step %d next state was not relabelled to the anchor "+
				"goal", i)
		}
	}

	for i, step := range relabelled[:len(relabelled)-1] {
		if step.Terminal {
			t.Errorf("step %d terminal before the anchor goal was achieved",
				i)
		}
		if step.Reward != defaultReward {
			t.Errorf("step %d got reward %v, want %v", i, step.Reward,
				defaultReward)
		}
	}

	last := relabelled[len(relabelled)-1]
	if !last.Terminal {
		t.Error("the anchor step should be terminal after relabelling")
	}
	if last.Reward != successReward {
		t.Errorf("the anchor step got reward %v, want %v", last.Reward,
			successReward)
	}
}

func TestRelabelDoesNotModifyTrajectory(t *testing.T) {
	env, layout := newTestEnv(t)

	relabeler, err := hindsight.NewRelabeler(env, 1, successReward,
		defaultReward, 19)
	if err != nil {
		t.Fatalf("could not create relabeler: %v", err)
	}

	desired := [2]float64{2.0, 2.0}
	steps := trajectory([][2]int{{0, 0}, {1, 0}, {2, 0}}, desired)

	if _, err := relabeler.Relabel(steps, len(steps)-1); err != nil {
		t.Fatalf("could not relabel: %v", err)
	}

	want := mat.NewVecDense(2, []float64{desired[0], desired[1]})
	for i, step := range steps {
		if !mat.Equal(layout.DesiredGoal(step.State), want) {
			t.Errorf("step %d of the argument trajectory was modified", i)
		}
		if step.Reward != defaultReward {
			t.Errorf("step %d reward of the argument trajectory was "+
				"modified", i)
		}
		if step.Terminal {
			t.Errorf("step %d terminal of the argument trajectory was "+
				"modified", i)
		}
	}
}

func TestRelabelEarlierAnchor(t *testing.T) {
	env, layout := newTestEnv(t)

	relabeler, err := hindsight.NewRelabeler(env, 1, successReward,
		defaultReward, 19)
	if err != nil {
		t.Fatalf("could not create relabeler: %v", err)
	}

	desired := [2]float64{2.0, 2.0}
	steps := trajectory([][2]int{{0, 0}, {1, 0}, {2, 0}, {2, 1}}, desired)

	// Relabelling against the first transition keeps exactly one
	// step: the goal is achieved immediately
	relabelled, err := relabeler.Relabel(steps, 0)
	if err != nil {
		t.Fatalf("could not relabel: %v", err)
	}

	if len(relabelled) != 1 {
		t.Fatalf("got %d relabelled steps, want 1", len(relabelled))
	}
	if !relabelled[0].Terminal {
		t.Error("achieving the anchor goal should be terminal")
	}
	if relabelled[0].Reward != successReward {
		t.Errorf("got reward %v, want %v", relabelled[0].Reward,
			successReward)
	}

	// No information from transitions after the anchor may appear:
	// the relabelled goal is the anchor's achieved goal, not a later
	// one
	anchorGoal := layout.AchievedGoal(steps[0].NextState)
	if !mat.Equal(layout.DesiredGoal(relabelled[0].NextState), anchorGoal) {
		t.Error("relabelled goal should be the anchor's achieved goal")
	}
}

func TestRelabelTruncatesAtFirstSuccess(t *testing.T) {
	env, _ := newTestEnv(t)

	relabeler, err := hindsight.NewRelabeler(env, 1, successReward,
		defaultReward, 19)
	if err != nil {
		t.Fatalf("could not create relabeler: %v", err)
	}

	// The agent revisits cell (1, 0), so relabelling against the
	// final transition succeeds already at the first step and the
	// rest of the trajectory is dropped
	desired := [2]float64{2.0, 2.0}
	cells := [][2]int{{0, 0}, {1, 0}, {0, 0}, {1, 0}}
	steps := trajectory(cells, desired)

	relabelled, err := relabeler.Relabel(steps, len(steps)-1)
	if err != nil {
		t.Fatalf("could not relabel: %v", err)
	}

	if len(relabelled) != 1 {
		t.Fatalf("got %d relabelled steps, want 1", len(relabelled))
	}
	if !relabelled[0].Terminal {
		t.Error("first achievement of the relabelled goal should be " +
			"terminal")
	}
	if relabelled[0].Reward != successReward {
		t.Errorf("got reward %v, want %v", relabelled[0].Reward,
			successReward)
	}
}

func TestRelabelEmptyTrajectory(t *testing.T) {
	env, _ := newTestEnv(t)

	relabeler, err := hindsight.NewRelabeler(env, 4, successReward,
		defaultReward, 19)
	if err != nil {
		t.Fatalf("could not create relabeler: %v", err)
	}

	relabelled, err := relabeler.Relabel(nil, 0)
	if err != nil {
		t.Errorf("relabelling an empty trajectory should not error: %v", err)
	}
	if len(relabelled) != 0 {
		t.Errorf("got %d relabelled steps from an empty trajectory, want 0",
			len(relabelled))
	}

	trajectories, err := relabeler.Trajectories(nil)
	if err != nil {
		t.Errorf("an empty trajectory should produce no trajectories "+
			"without error: %v", err)
	}
	if len(trajectories) != 0 {
		t.Errorf("got %d trajectories from an empty trajectory, want 0",
			len(trajectories))
	}
}

func TestRelabelAnchorOutOfRange(t *testing.T) {
	env, _ := newTestEnv(t)

	relabeler, err := hindsight.NewRelabeler(env, 1, successReward,
		defaultReward, 19)
	if err != nil {
		t.Fatalf("could not create relabeler: %v", err)
	}

	desired := [2]float64{2.0, 2.0}
	steps := trajectory([][2]int{{0, 0}, {1, 0}}, desired)

	if _, err := relabeler.Relabel(steps, len(steps)); err == nil {
		t.Error("expected an error for an out-of-range anchor")
	}
	if _, err := relabeler.Relabel(steps, -1); err == nil {
		t.Error("expected an error for a negative anchor")
	}
}

func TestTrajectories(t *testing.T) {
	env, layout := newTestEnv(t)

	nGoals := 4
	relabeler, err := hindsight.NewRelabeler(env, nGoals, successReward,
		defaultReward, 19)
	if err != nil {
		t.Fatalf("could not create relabeler: %v", err)
	}

	desired := [2]float64{2.0, 2.0}
	cells := [][2]int{{0, 0}, {1, 0}, {2, 0}, {2, 1}, {1, 1}, {0, 1}}
	steps := trajectory(cells, desired)

	trajectories, err := relabeler.Trajectories(steps)
	if err != nil {
		t.Fatalf("could not relabel: %v", err)
	}

	if len(trajectories) != nGoals {
		t.Fatalf("got %d trajectories, want %d", len(trajectories), nGoals)
	}

	// The first trajectory is anchored at the true final transition
	final := trajectories[0]
	finalGoal := layout.AchievedGoal(steps[len(steps)-1].NextState)
	if !mat.Equal(layout.DesiredGoal(final[0].State), finalGoal) {
		t.Error("first trajectory should be relabelled against the final " +
			"transition")
	}

	for i, trajectory := range trajectories {
		if len(trajectory) == 0 {
			t.Errorf("trajectory %d is empty", i)
			continue
		}
		if len(trajectory) > len(steps) {
			t.Errorf("trajectory %d longer than the episode", i)
		}

		last := trajectory[len(trajectory)-1]
		if !last.Terminal {
			t.Errorf("trajectory %d does not end at a terminal transition", i)
		}
		if last.Reward != successReward {
			t.Errorf("trajectory %d ends with reward %v, want %v", i,
				last.Reward, successReward)
		}
	}
}

func TestNewRelabelerRequiresGoalConditioning(t *testing.T) {
	starter, err := gridworld.NewSingleStart(0, 0, rows, cols)
	if err != nil {
		t.Fatalf("could not create starter: %v", err)
	}

	task := gridworld.NewExplore(starter, 50)
	grid, _, err := gridworld.New(task, rows, cols, 0.0, 0.99, 14)
	if err != nil {
		t.Fatalf("could not create gridworld: %v", err)
	}

	if _, err := hindsight.NewRelabeler(grid, 1, successReward,
		defaultReward, 19); !goal.IsNotConditioned(err) {
		t.Errorf("expected a not-conditioned error, got %v", err)
	}
}

func TestNewRelabelerFindsWrappedGoalConditioning(t *testing.T) {
	env, _ := newTestEnv(t)

	// The goal-conditioned environment is found even when it is not
	// the outermost wrapper
	limited, _, err := wrappers.NewTimeLimit(env, 10)
	if err != nil {
		t.Fatalf("could not create time limit: %v", err)
	}

	if _, err := hindsight.NewRelabeler(limited, 1, successReward,
		defaultReward, 19); err != nil {
		t.Errorf("relabeler should find the goal-conditioned environment "+
			"through wrappers: %v", err)
	}
}
