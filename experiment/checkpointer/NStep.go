package checkpointer

import (
	"encoding/gob"
	"fmt"
	"os"

	ts "github.com/samuelfneumann/gohindsight/timestep"
)

// nStep implements checkpointing every N calls
type nStep struct {
	interval int
	calls    int
	object   Serializable // Object to save

	// filename returns the string filename of the file to save the object
	// in.
	//
	// If each serialized object should be saved in a separate file with
	// each file having an incremented number as a suffix (e.g.
	// file1.bin, file2.bin, ..., fileK.bin), then simply use the
	// static function FilenameEnumerator, which will return a function
	// that will enumerate filenames.
	//
	// Otherwise, if each serialized object should be saved in a
	// separate file, but the filename does not matter, use the
	// static function FileTimer to generate the required naming
	// function. For example:
	//
	// n := NewNStep(10, object, FileTimer("filename", "bin"))
	filename func() string
}

// NewNStep returns a checkpointer that checkpoints on every n'th call
// to its Checkpoint method. Experiments decide the checkpointing
// cadence by where they place those calls, conventionally once per
// episode boundary.
func NewNStep(n int, object Serializable,
	filename func() string) Checkpointer {
	return &nStep{
		interval: n,
		object:   object,
		filename: filename,
	}
}

// Checkpoint saves the Checkpointer's tracked object by gob-encoding
// it to the next file produced by the Checkpointer's naming function
func (n *nStep) Checkpoint(ts.TimeStep) error {
	n.calls++
	if n.calls%n.interval != 0 {
		return nil
	}

	file, err := os.Create(n.filename())
	if err != nil {
		return fmt.Errorf("checkpoint: could not create checkpoint "+
			"file: %v", err)
	}
	defer file.Close()

	if err := gob.NewEncoder(file).Encode(n.object); err != nil {
		return fmt.Errorf("checkpoint: could not encode object: %v", err)
	}

	return nil
}
