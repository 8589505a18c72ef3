package expreplay_test

import (
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/gohindsight/expreplay"
	ts "github.com/samuelfneumann/gohindsight/timestep"
)

const (
	featureSize int = 4
	actionSize  int = 2
)

// testTransition returns a transition whose state, action, reward,
// and next state are all determined by the value v so that tests can
// check that sampled batches stay aligned across channels
func testTransition(v float64, terminal bool) ts.Transition {
	state := make([]float64, featureSize)
	nextState := make([]float64, featureSize)
	for i := range state {
		state[i] = v
		nextState[i] = v + 0.5
	}

	return ts.Transition{
		State:     mat.NewVecDense(featureSize, state),
		Action:    mat.NewVecDense(actionSize, []float64{v, -v}),
		Reward:    v,
		Discount:  0.5,
		NextState: mat.NewVecDense(featureSize, nextState),
		Terminal:  terminal,
	}
}

func newBuffer(t *testing.T, minCapacity, maxCapacity,
	batchSize int) expreplay.ExperienceReplayer {
	t.Helper()

	config := expreplay.Config{
		RemoveMethod:      expreplay.Fifo,
		SampleMethod:      expreplay.Uniform,
		RemoveSize:        1,
		SampleSize:        batchSize,
		MaxReplayCapacity: maxCapacity,
		MinReplayCapacity: minCapacity,
	}

	buffer, err := config.Create(featureSize, actionSize, 37)
	if err != nil {
		t.Fatalf("could not create buffer: %v", err)
	}
	return buffer
}

func TestCapacityInvariant(t *testing.T) {
	maxCapacity := 3
	buffer := newBuffer(t, 1, maxCapacity, 2)

	for i := 0; i < 10; i++ {
		if err := buffer.Add(testTransition(float64(i), false)); err != nil {
			t.Fatalf("could not add transition %d: %v", i, err)
		}

		if buffer.Capacity() > maxCapacity {
			t.Fatalf("capacity %d exceeds maximum %d after %d adds",
				buffer.Capacity(), maxCapacity, i+1)
		}
	}

	if buffer.Capacity() != maxCapacity {
		t.Errorf("got capacity %d, want %d", buffer.Capacity(), maxCapacity)
	}
}

func TestOldestEvictedFirst(t *testing.T) {
	// Fill a 3-element buffer with 5 transitions so that the two
	// oldest are evicted
	buffer := newBuffer(t, 1, 3, 2)
	for i := 0; i < 5; i++ {
		if err := buffer.Add(testTransition(float64(i), false)); err != nil {
			t.Fatalf("could not add transition %d: %v", i, err)
		}
	}

	for draw := 0; draw < 100; draw++ {
		states, _, _, _, _, _, err := buffer.Sample()
		if err != nil {
			t.Fatalf("could not sample: %v", err)
		}

		for i := 0; i < buffer.BatchSize(); i++ {
			v := states[i*featureSize]
			if v < 2.0 {
				t.Fatalf("sampled evicted transition %v", v)
			}
		}
	}
}

func TestSampleWellFormed(t *testing.T) {
	batchSize := 5
	buffer := newBuffer(t, batchSize, 20, batchSize)

	for i := 0; i < 10; i++ {
		terminal := i%2 == 0
		if err := buffer.Add(testTransition(float64(i),
			terminal)); err != nil {
			t.Fatalf("could not add transition %d: %v", i, err)
		}
	}

	states, actions, rewards, discounts, nextStates,
		terminals, err := buffer.Sample()
	if err != nil {
		t.Fatalf("could not sample: %v", err)
	}

	if len(states) != batchSize*featureSize {
		t.Errorf("got %d state elements, want %d", len(states),
			batchSize*featureSize)
	}
	if len(nextStates) != batchSize*featureSize {
		t.Errorf("got %d next state elements, want %d", len(nextStates),
			batchSize*featureSize)
	}
	if len(actions) != batchSize*actionSize {
		t.Errorf("got %d action elements, want %d", len(actions),
			batchSize*actionSize)
	}
	if len(rewards) != batchSize || len(discounts) != batchSize ||
		len(terminals) != batchSize {
		t.Fatalf("got %d rewards, %d discounts, %d terminals, want %d each",
			len(rewards), len(discounts), len(terminals), batchSize)
	}

	// Every row of the batch must refer to a single stored transition
	// across all channels
	for i := 0; i < batchSize; i++ {
		v := states[i*featureSize]

		for j := 1; j < featureSize; j++ {
			if states[i*featureSize+j] != v {
				t.Errorf("row %d: state channel misaligned", i)
			}
		}
		if nextStates[i*featureSize] != v+0.5 {
			t.Errorf("row %d: next state %v does not match state %v", i,
				nextStates[i*featureSize], v)
		}
		if actions[i*actionSize] != v || actions[i*actionSize+1] != -v {
			t.Errorf("row %d: action channel misaligned", i)
		}
		if rewards[i] != v {
			t.Errorf("row %d: reward %v does not match state %v", i,
				rewards[i], v)
		}
		if discounts[i] != 0.5 {
			t.Errorf("row %d: got discount %v, want 0.5", i, discounts[i])
		}

		wantTerminal := 0.0
		if int(v)%2 == 0 {
			wantTerminal = 1.0
		}
		if terminals[i] != wantTerminal {
			t.Errorf("row %d: got terminal %v, want %v", i, terminals[i],
				wantTerminal)
		}
	}
}

func TestSampleInsufficientData(t *testing.T) {
	buffer := newBuffer(t, 3, 10, 2)

	_, _, _, _, _, _, err := buffer.Sample()
	if !expreplay.IsEmptyBuffer(err) {
		t.Errorf("expected an empty buffer error, got %v", err)
	}

	if err := buffer.Add(testTransition(0.0, false)); err != nil {
		t.Fatalf("could not add transition: %v", err)
	}

	_, _, _, _, _, _, err = buffer.Sample()
	if !expreplay.IsInsufficientData(err) {
		t.Errorf("expected an insufficient data error, got %v", err)
	}

	if err := buffer.Add(testTransition(1.0, false)); err != nil {
		t.Fatalf("could not add transition: %v", err)
	}
	if err := buffer.Add(testTransition(2.0, false)); err != nil {
		t.Fatalf("could not add transition: %v", err)
	}

	if _, _, _, _, _, _, err := buffer.Sample(); err != nil {
		t.Errorf("sampling at minimum capacity should not error: %v", err)
	}
}

func TestExtend(t *testing.T) {
	buffer := newBuffer(t, 1, 10, 2)

	trajectory := []ts.Transition{
		testTransition(0.0, false),
		testTransition(1.0, false),
		testTransition(2.0, true),
	}
	if err := expreplay.Extend(buffer, trajectory); err != nil {
		t.Fatalf("could not extend: %v", err)
	}

	if buffer.Capacity() != len(trajectory) {
		t.Errorf("got capacity %d after extend, want %d", buffer.Capacity(),
			len(trajectory))
	}
}

func TestAddInvalidShapes(t *testing.T) {
	buffer := newBuffer(t, 1, 10, 2)

	badState := ts.Transition{
		State:     mat.NewVecDense(featureSize+1, nil),
		Action:    mat.NewVecDense(actionSize, nil),
		NextState: mat.NewVecDense(featureSize+1, nil),
	}
	if err := buffer.Add(badState); err == nil {
		t.Error("expected an error adding a transition with invalid " +
			"feature size")
	}

	badAction := ts.Transition{
		State:     mat.NewVecDense(featureSize, nil),
		Action:    mat.NewVecDense(actionSize+1, nil),
		NextState: mat.NewVecDense(featureSize, nil),
	}
	if err := buffer.Add(badAction); err == nil {
		t.Error("expected an error adding a transition with invalid " +
			"action size")
	}

	if buffer.Capacity() != 0 {
		t.Errorf("invalid transitions changed the capacity to %d",
			buffer.Capacity())
	}
}

func TestGeneralCacheEviction(t *testing.T) {
	// A FiFo remover which removes more than one element at a time
	// exercises the general cache rather than its FiFo fast path
	remover := expreplay.NewFifoSelector(2)
	sampler := expreplay.NewUniformSelector(3, 37)

	buffer, err := expreplay.New(remover, sampler, 1, 4, featureSize,
		actionSize)
	if err != nil {
		t.Fatalf("could not create buffer: %v", err)
	}

	for i := 0; i < 5; i++ {
		if err := buffer.Add(testTransition(float64(i), false)); err != nil {
			t.Fatalf("could not add transition %d: %v", i, err)
		}
	}

	// Adding to the full buffer removed the two oldest transitions
	if buffer.Capacity() != 3 {
		t.Fatalf("got capacity %d, want 3", buffer.Capacity())
	}

	for draw := 0; draw < 100; draw++ {
		states, _, _, _, _, _, err := buffer.Sample()
		if err != nil {
			t.Fatalf("could not sample: %v", err)
		}

		for i := 0; i < buffer.BatchSize(); i++ {
			if v := states[i*featureSize]; v < 2.0 {
				t.Fatalf("sampled evicted transition %v", v)
			}
		}
	}
}

func TestOnlineBuffer(t *testing.T) {
	buffer := newBuffer(t, 1, 1, 1)

	if err := buffer.Add(testTransition(1.0, false)); err != nil {
		t.Fatalf("could not add transition: %v", err)
	}
	if err := buffer.Add(testTransition(2.0, true)); err != nil {
		t.Fatalf("could not add transition: %v", err)
	}

	states, _, rewards, _, _, terminals, err := buffer.Sample()
	if err != nil {
		t.Fatalf("could not sample: %v", err)
	}

	if states[0] != 2.0 || rewards[0] != 2.0 {
		t.Errorf("online buffer should hold only the latest transition, "+
			"got state %v", states[0])
	}
	if terminals[0] != 1.0 {
		t.Errorf("got terminal %v, want 1", terminals[0])
	}
}

func TestNewInvalidArguments(t *testing.T) {
	sampler := expreplay.NewUniformSelector(10, 37)
	remover := expreplay.NewFifoSelector(1)

	if _, err := expreplay.New(remover, sampler, 0, 10, featureSize,
		actionSize); err == nil {
		t.Error("expected an error for non-positive minimum capacity")
	}

	if _, err := expreplay.New(remover, sampler, 1, 5, featureSize,
		actionSize); err == nil {
		t.Error("expected an error for batch size exceeding maximum " +
			"capacity")
	}
}
