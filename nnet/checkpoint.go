package nnet

import (
	"encoding/gob"
	"fmt"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Checkpoint holds everything needed to resume a training run: the config
// with the current weights and momentum state synced into the layer
// descriptors plus the stats history.
type Checkpoint struct {
	Epoch int
	Conf  Config
	Stats []Stats
}

func checkpointFile(dir string, epoch int) string {
	return path.Join(dir, fmt.Sprintf("net-epoch-%d.dat", epoch))
}

// SaveCheckpoint syncs the network weights into the config and writes a
// checkpoint file under the run directory.
func SaveCheckpoint(net *Network, stats []Stats) error {
	net.SyncConfig()
	dir := net.RunDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	f, err := os.Create(checkpointFile(dir, net.Epoch))
	if err != nil {
		return err
	}
	defer f.Close()
	cp := Checkpoint{Epoch: net.Epoch, Conf: net.Config, Stats: stats}
	return gob.NewEncoder(f).Encode(&cp)
}

// LoadCheckpoint reads the checkpoint for the given epoch from dir.
func LoadCheckpoint(dir string, epoch int) (cp Checkpoint, err error) {
	f, err := os.Open(checkpointFile(dir, epoch))
	if err != nil {
		return cp, err
	}
	defer f.Close()
	err = gob.NewDecoder(f).Decode(&cp)
	return cp, err
}

// LatestCheckpoint returns the highest epoch with a checkpoint file in dir,
// or 0 if there are none.
func LatestCheckpoint(dir string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	var epochs []int
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, "net-epoch-") && strings.HasSuffix(name, ".dat") {
			if n, err := strconv.Atoi(name[10 : len(name)-4]); err == nil {
				epochs = append(epochs, n)
			}
		}
	}
	if len(epochs) == 0 {
		return 0
	}
	sort.Ints(epochs)
	return epochs[len(epochs)-1]
}

// Export strips the trained network for deployment, see Strip, and saves
// the inference time config with weights to the given file under DataDir.
func Export(net *Network, name string) error {
	net.SyncConfig()
	conf := net.Config
	conf.Layers = Strip(conf.Layers)
	return conf.Save(name)
}

// checkpointSaver decorates a Tester to save a checkpoint every SaveEvery
// epochs and on completion.
type checkpointSaver struct {
	Tester
	base *TestBase
}

// NewCheckpointSaver wraps the tester so training state is persisted as the
// run progresses.
func NewCheckpointSaver(test Tester, base *TestBase) Tester {
	return checkpointSaver{Tester: test, base: base}
}

func (t checkpointSaver) Test(net *Network, epoch int, loss float64, start time.Time) bool {
	done := t.Tester.Test(net, epoch, loss, start)
	if done || (net.SaveEvery > 0 && epoch%net.SaveEvery == 0) {
		if err := SaveCheckpoint(net, t.base.Stats); err != nil {
			fmt.Println("error saving checkpoint:", err)
		}
	}
	return done
}
