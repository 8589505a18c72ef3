package checkpointer_test

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"testing"

	"github.com/samuelfneumann/gohindsight/experiment/checkpointer"
	ts "github.com/samuelfneumann/gohindsight/timestep"
)

// vault is a Serializable holding a single value
type vault struct {
	value float64
}

func (v *vault) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v.value); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v *vault) GobDecode(data []byte) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(&v.value)
}

// load decodes the vault checkpointed in the argument file
func load(t *testing.T, filename string) *vault {
	t.Helper()

	file, err := os.Open(filename)
	if err != nil {
		t.Fatalf("could not open checkpoint file: %v", err)
	}
	defer file.Close()

	loaded := &vault{}
	if err := gob.NewDecoder(file).Decode(loaded); err != nil {
		t.Fatalf("could not decode checkpoint: %v", err)
	}
	return loaded
}

// TestNStepCheckpoint checks that an nStep checkpointer saves its
// object on every n'th call, in enumerated files, capturing the
// object's state at the time of each checkpoint.
func TestNStepCheckpoint(t *testing.T) {
	dir := t.TempDir()
	prefix := dir + "/check"
	filename := func(i int) string {
		return fmt.Sprintf("%v%v.bin", prefix, i)
	}

	object := &vault{value: 1.0}
	n := checkpointer.NewNStep(2, object,
		checkpointer.FilenameEnumerator(0, prefix, ".bin"))

	for call := 1; call <= 2; call++ {
		if err := n.Checkpoint(ts.TimeStep{}); err != nil {
			t.Fatalf("could not checkpoint: %v", err)
		}
	}

	object.value = 3.5
	for call := 3; call <= 4; call++ {
		if err := n.Checkpoint(ts.TimeStep{}); err != nil {
			t.Fatalf("could not checkpoint: %v", err)
		}
	}

	if have := load(t, filename(1)).value; have != 1.0 {
		t.Errorf("wrong first checkpoint \n\twant(%v) \n\thave(%v)",
			1.0, have)
	}
	if have := load(t, filename(2)).value; have != 3.5 {
		t.Errorf("wrong second checkpoint \n\twant(%v) \n\thave(%v)",
			3.5, have)
	}

	// Only every second call produces a checkpoint
	if _, err := os.Stat(filename(3)); err == nil {
		t.Error("checkpoint written off the checkpointing interval")
	}
}
