package hindsight_test

import (
	"math"
	"testing"

	"github.com/samuelfneumann/gohindsight/hindsight"
	ts "github.com/samuelfneumann/gohindsight/timestep"
)

const tolerance float64 = 1e-12

func TestReturns(t *testing.T) {
	desired := [2]float64{2.0, 2.0}
	steps := trajectory([][2]int{{0, 0}, {1, 0}, {2, 0}, {2, 1}}, desired)
	steps[0].Reward = 1.0
	steps[1].Reward = 2.0
	steps[2].Reward = 3.0
	for i := range steps {
		steps[i].Discount = 0.5
	}

	// Walking backwards: G_2 = 3, G_1 = 2 + 0.5*3, G_0 = 1 + 0.5*G_1
	want := []float64{2.75, 3.5, 3.0}

	returns := hindsight.NewReturns(steps)
	for i := len(steps) - 1; i >= 0; i-- {
		step, value, ok := returns.Next()
		if !ok {
			t.Fatalf("iteration ended early at step %d", i)
		}
		if step.Reward != steps[i].Reward {
			t.Errorf("got step with reward %v, want %v", step.Reward,
				steps[i].Reward)
		}
		if math.Abs(value-want[i]) > tolerance {
			t.Errorf("step %d: got return %v, want %v", i, value, want[i])
		}
	}

	if _, _, ok := returns.Next(); ok {
		t.Error("iteration should end after the first step")
	}
}

func TestReturnsReset(t *testing.T) {
	desired := [2]float64{2.0, 2.0}
	steps := trajectory([][2]int{{0, 0}, {1, 0}, {2, 0}}, desired)
	steps[0].Reward = 1.0
	steps[1].Reward = 1.0

	returns := hindsight.NewReturns(steps)
	var first []float64
	for {
		_, value, ok := returns.Next()
		if !ok {
			break
		}
		first = append(first, value)
	}

	returns.Reset()
	var second []float64
	for {
		_, value, ok := returns.Next()
		if !ok {
			break
		}
		second = append(second, value)
	}

	if len(first) != len(second) {
		t.Fatalf("got %d returns after reset, want %d", len(second),
			len(first))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("return %d differs after reset: got %v, want %v", i,
				second[i], first[i])
		}
	}
}

func TestReturnsEmpty(t *testing.T) {
	returns := hindsight.NewReturns([]ts.Transition{})
	if _, _, ok := returns.Next(); ok {
		t.Error("iterating an empty trajectory should end immediately")
	}
}
