package anymt

import (
	"fmt"
	"io/ioutil"
	"math"
	"path/filepath"
	"strconv"

	"github.com/unixpickle/anyseg"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

// CheckpointExt is the extension of saved networks.
const CheckpointExt = ".net"

// A Checkpointer saves student snapshots.
type Checkpointer struct {
	Dir   string
	Model string
}

// IterPath returns the path of the snapshot taken at an
// iteration with a validation score.
func (c *Checkpointer) IterPath(iter int, score float64) string {
	rounded := strconv.FormatFloat(math.Round(score*1e4)/1e4, 'f', -1, 64)
	return filepath.Join(c.Dir, fmt.Sprintf("iter_%d_dice_%s%s", iter, rounded, CheckpointExt))
}

// BestPath returns the path of the best snapshot, which is
// overwritten on every improvement.
func (c *Checkpointer) BestPath() string {
	return filepath.Join(c.Dir, c.Model+"_best_model"+CheckpointExt)
}

// Save writes the network to both snapshot paths.
// It returns the first error.
func (c *Checkpointer) Save(m anyseg.Segmenter, iter int, score float64) error {
	data, err := serializer.SerializeWithType(m)
	if err != nil {
		return essentials.AddCtx("save checkpoint", err)
	}
	for _, path := range []string{c.IterPath(iter, score), c.BestPath()} {
		if err := ioutil.WriteFile(path, data, 0644); err != nil {
			return essentials.AddCtx("save checkpoint", err)
		}
	}
	return nil
}

// LoadCheckpoint reads a network saved by a Checkpointer.
func LoadCheckpoint(path string) (anyseg.Segmenter, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, essentials.AddCtx("load checkpoint", err)
	}
	obj, err := serializer.DeserializeWithType(data)
	if err != nil {
		return nil, essentials.AddCtx("load checkpoint", err)
	}
	m, ok := obj.(anyseg.Segmenter)
	if !ok {
		return nil, fmt.Errorf("load checkpoint: %T is not a segmenter", obj)
	}
	return m, nil
}
