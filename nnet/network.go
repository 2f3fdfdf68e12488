// Package nnet contains routines for constructing, training and testing
// multi-view convolutional neural network models.
package nnet

import (
	"fmt"
	"math"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/LinyanCui/mvcnn/num"
)

// Network type represents a multilayer neural network model. The instance
// axis of the input enumerates (object, view) pairs with all views of each
// object contiguous, so a batch of b objects holds b*views images.
type Network struct {
	Config
	Layers    []Layer
	Epoch     int
	classes   []int32
	inputGrad *num.Array
	inShape   []int
	rng       *rand.Rand
}

// New function creates a new network from the layer configuration. The
// batch size counts objects: the input shape is scaled by the number of
// views per object. Construction fails if any layer configuration is
// invalid, e.g. a view pool stride which does not divide the batch.
func New(conf Config, batchSize int, inShape []int, rng *rand.Rand) (*Network, error) {
	if len(inShape) != 3 {
		return nil, fmt.Errorf("network: expect (h, w, c) input shape, have %v", inShape)
	}
	n := &Network{Config: conf, rng: rng}
	n.inShape = []int{inShape[0], inShape[1], inShape[2], batchSize * conf.views()}
	shape := n.inShape
	for i, l := range conf.Layers {
		layer := l.Unmarshal()
		if err := layer.Init(shape, rng); err != nil {
			return nil, fmt.Errorf("layer %d (%s): %w", i, l.Type, err)
		}
		n.Layers = append(n.Layers, layer)
		shape = layer.OutShape(shape)
	}
	return n, nil
}

// Initialise network weights from a normal distribution. Weights for each
// layer are scaled by 1/sqrt(nin). Layers loaded with pretrained weights
// are left as they are.
func (n *Network) InitWeights() {
	shape := n.inShape
	for _, layer := range n.Layers {
		if l, ok := layer.(ParamLayer); ok {
			if w, _ := l.Params(); num.Sum(w) == 0 {
				nin := num.Prod(shape[:3])
				l.InitParams(float32(1/math.Sqrt(float64(nin))), n.rng)
			}
		}
		shape = layer.OutShape(shape)
	}
}

// SyncConfig writes the current layer state, trained weights included, back
// into the config so it can be persisted. Layer names are preserved.
func (n *Network) SyncConfig() {
	for i, layer := range n.Layers {
		cfg := layer.Marshal()
		cfg.Name = n.Config.Layers[i].Name
		n.Config.Layers[i] = cfg
	}
}

// Copy weights and bias arrays to destination net
func (n *Network) CopyTo(net *Network) {
	for i, layer := range n.Layers {
		if l, ok := layer.(ParamLayer); ok {
			W, B := l.Params()
			net.Layers[i].(ParamLayer).SetParams(W, B)
		}
	}
}

// Accessor for output layer
func (n *Network) OutLayer() OutputLayer {
	return n.Layers[len(n.Layers)-1].(OutputLayer)
}

// Feed forward the input to get the predicted output
func (n *Network) Fprop(input *num.Array, train bool) *num.Array {
	pred := input
	for i, layer := range n.Layers {
		if n.DebugLevel >= 2 && pred != nil {
			fmt.Printf("layer %d input\n%s\n", i, pred)
		}
		pred = layer.Fprop(pred, train)
	}
	return pred
}

// Predict output given input data, writing the predicted class per object
// into classes.
func (n *Network) Predict(input *num.Array, classes []int32) *num.Array {
	yPred := n.Fprop(input, false)
	num.Unhot(yPred, classes)
	return yPred
}

// Calculate the classification error on the dataset. If pred is not nil
// then it is filled with the predicted class per object.
func (n *Network) Error(dset *Dataset, pred []int32) float64 {
	if n.classes == nil || len(n.classes) != dset.BatchSize {
		n.classes = make([]int32, dset.BatchSize)
	}
	errors := 0
	dset.Rewind()
	for batch := 0; batch < dset.Batches; batch++ {
		x, y, _ := dset.NextBatch()
		n.Predict(x, n.classes)
		for i, label := range y {
			if n.classes[i] != label {
				errors++
			}
		}
		if pred != nil {
			copy(pred[batch*dset.BatchSize:], n.classes[:len(y)])
		}
		if n.DebugLevel >= 2 || (n.DebugLevel >= 1 && batch == 0) {
			fmt.Printf("batch %d labels=%v pred=%v\n", batch, y, n.classes[:len(y)])
		}
	}
	return float64(errors) / float64(dset.Samples)
}

// Print network description
func (n *Network) String() string {
	s := make([]string, len(n.Layers))
	shape := n.inShape
	for i, layer := range n.Layers {
		name := n.Config.Layers[i].Name
		s[i] = fmt.Sprintf("%2d: %-10s %-30s %v", i, name, layer.ToString(), shape)
		shape = layer.OutShape(shape)
	}
	return fmt.Sprintf("%s\n== Network ==\n%s", n.Config, strings.Join(s, "\n"))
}

// Seed returns the given seed, or one taken from the clock if seed <= 0.
func Seed(seed int64) int64 {
	if seed <= 0 {
		seed = time.Now().UTC().UnixNano()
		fmt.Println("random seed =", seed)
	}
	return seed
}

// NewRng returns a random number generator seeded with Seed.
func NewRng(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(Seed(seed)))
}

// Exit in case of error
func CheckErr(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
