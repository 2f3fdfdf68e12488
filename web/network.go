// Package web has a web based interface for network training and visualisation.
package web

import (
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/LinyanCui/mvcnn/nnet"
)

// Network wraps a model and its associated training and test data so the
// page handlers can drive training runs. All exported methods must be
// called with the lock held.
type Network struct {
	*nnet.Network
	Model     string
	Data      map[string]nnet.Data
	base      *nnet.TestBase
	trainData *nnet.Dataset
	conn      *websocket.Conn
	rng       *rand.Rand
	testRng   *rand.Rand
	running   bool
	stop      bool
	sync.Mutex
}

// Create a new network and load config and data given the model name.
func NewNetwork(model string) (*Network, error) {
	n := &Network{Model: model, base: nnet.NewTestBase()}
	log.Println("load model:", model)
	conf, err := nnet.LoadConfig(model + ".net")
	if err != nil {
		return nil, err
	}
	if err := n.Init(conf); err != nil {
		return nil, err
	}
	return n, nil
}

// Initialise the network and datasets from the given config.
func (n *Network) Init(conf nnet.Config) error {
	log.Printf("init network: dataSet=%s views=%d\n", conf.DataSet, conf.Views)
	var err error
	if n.Data, err = nnet.LoadData(conf.DataSet); err != nil {
		return err
	}
	n.rng = nnet.NewRng(conf.RandSeed)
	n.testRng = nnet.NewRng(conf.RandSeed)
	n.trainData = nnet.NewDataset(n.Data["train"], conf.TrainBatch, conf.MaxSamples, n.rng)
	n.Network, err = nnet.New(conf, n.trainData.BatchSize, n.Data["train"].Shape(), n.rng)
	if err != nil {
		return err
	}
	if _, err = n.base.Init(conf, n.Data, n.testRng); err != nil {
		return err
	}
	n.base.Predict()
	if n.DebugLevel >= 1 {
		fmt.Println(n.Network)
	}
	return nil
}

// Initialise for a new training run.
func (n *Network) Start(conf nnet.Config) error {
	if err := n.Init(conf); err != nil {
		return err
	}
	n.base.Reset()
	log.Println("init weights")
	n.InitWeights()
	n.Epoch = 0
	return nil
}

// Perform a training run in the background. If restart is set weights and
// stats are reset first, else training continues from the current epoch.
func (n *Network) Train(restart bool) error {
	log.Printf("train %s: restart=%v\n", n.Model, restart)
	if restart {
		// pick up any config edits saved since the last run
		conf, err := nnet.LoadConfig(n.Model + ".net")
		if err != nil {
			return err
		}
		if err := n.Start(conf); err != nil {
			return err
		}
	}
	if n.Epoch >= n.MaxEpoch {
		return nil
	}
	n.running = true
	n.stop = false
	go func() {
		start := time.Now()
		done := false
		for !done {
			n.Lock()
			if n.stop || n.Epoch >= n.MaxEpoch {
				n.running = false
				n.Unlock()
				return
			}
			epoch := n.Epoch + 1
			loss := nnet.TrainEpoch(n.Network, n.trainData, epoch)
			n.Epoch = epoch
			done = n.base.Test(n.Network, epoch, loss, start)
			if done || (n.SaveEvery > 0 && epoch%n.SaveEvery == 0) {
				if err := nnet.SaveCheckpoint(n.Network, n.base.Stats); err != nil {
					log.Println("error saving checkpoint:", err)
				}
			}
			if done {
				n.running = false
			}
			n.notify()
			n.Unlock()
		}
	}()
	return nil
}

// push stats update to the connected websocket client
func (n *Network) notify() {
	if n.conn == nil {
		return
	}
	msg := struct {
		Epoch   int
		Running bool
	}{Epoch: n.Epoch, Running: n.running}
	if err := n.conn.WriteJSON(msg); err != nil {
		log.Println("websocket write error:", err)
		n.conn = nil
	}
}
