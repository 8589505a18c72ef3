package hindsight_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/gohindsight/hindsight"
)

func TestRecorder(t *testing.T) {
	require := require.New(t)

	recorder := hindsight.NewRecorder()
	require.Zero(recorder.Len())
	require.Empty(recorder.Steps())

	desired := [2]float64{2.0, 2.0}
	steps := trajectory([][2]int{{0, 0}, {1, 0}, {2, 0}, {2, 1}}, desired)
	for _, step := range steps {
		recorder.Record(step)
	}
	require.Equal(len(steps), recorder.Len())

	// Steps are returned in the order they were recorded
	recorded := recorder.Steps()
	require.Len(recorded, len(steps))
	for i := range steps {
		require.True(mat.Equal(steps[i].State, recorded[i].State))
		require.True(mat.Equal(steps[i].NextState, recorded[i].NextState))
		require.Equal(steps[i].Reward, recorded[i].Reward)
		require.Equal(steps[i].Terminal, recorded[i].Terminal)
	}

	recorder.Clear()
	require.Zero(recorder.Len())
	require.Empty(recorder.Steps())

	// Recording continues normally after clearing
	recorder.Record(steps[0])
	require.Equal(1, recorder.Len())
}

func TestRecorderStepsCopies(t *testing.T) {
	require := require.New(t)

	recorder := hindsight.NewRecorder()
	desired := [2]float64{2.0, 2.0}
	steps := trajectory([][2]int{{0, 0}, {1, 0}}, desired)
	for _, step := range steps {
		recorder.Record(step)
	}

	// Mutating a returned slice does not affect the recorder
	recorded := recorder.Steps()
	recorded[0] = recorded[1]

	fresh := recorder.Steps()
	require.True(mat.Equal(steps[0].State, fresh[0].State))
}
