package nnet

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/LinyanCui/mvcnn/num"
	"github.com/LinyanCui/mvcnn/stats"
)

const emaEpochs = 10

// Training statistics for one epoch
type Stats struct {
	Epoch     int
	Values    []float64
	BestSince int
	Elapsed   time.Duration
}

func StatsHeaders(d map[string]Data) []string {
	h := []string{"loss"}
	for _, key := range DataTypes {
		if _, ok := d[key]; ok {
			h = append(h, key+" error")
			if key == "valid" {
				h = append(h, "valid avg")
			}
		}
	}
	return h
}

func (s Stats) Format() []string {
	str := []string{fmt.Sprintf("%7.4f", s.Values[0])}
	for _, v := range s.Values[1:] {
		str = append(str, fmt.Sprintf("%6.2f%%", v*100))
	}
	return str
}

// Tester interface to evaluate the performance after each epoch, Test
// method returns true if training should stop.
type Tester interface {
	Test(net *Network, epoch int, loss float64, start time.Time) bool
}

// Tester which evaluates the loss and error for each of the data sets and
// updates the stats.
type TestBase struct {
	Net     *Network
	Data    map[string]*Dataset
	Pred    map[string][]int32
	Stats   []Stats
	Headers []string
	Samples int
	predict bool
}

// Create a new base class which implements the Tester interface.
func NewTestBase() *TestBase {
	return &TestBase{Stats: []Stats{}}
}

// Initialise the test datasets and the test network.
func (t *TestBase) Init(conf Config, data map[string]Data, rng *rand.Rand) (*TestBase, error) {
	t.Data = make(map[string]*Dataset)
	t.Headers = StatsHeaders(data)
	t.Samples = data["train"].Len()
	if conf.MaxSamples > 0 && t.Samples > conf.MaxSamples {
		t.Samples = conf.MaxSamples
	}
	for key, d := range data {
		t.Data[key] = NewDataset(d, conf.TestBatch, t.Samples, rng)
	}
	var err error
	t.Net, err = New(conf, t.Data["train"].BatchSize, data["train"].Shape(), rng)
	return t, err
}

// Generate the predicted results when test is next run.
func (t *TestBase) Predict() *TestBase {
	t.predict = true
	t.Pred = make(map[string][]int32)
	for key, dset := range t.Data {
		t.Pred[key] = make([]int32, dset.Batches*dset.BatchSize)
	}
	return t
}

// Reset stats prior to new run
func (t *TestBase) Reset() {
	t.Stats = t.Stats[:0]
}

// Test performance of the network, called from the Train function on
// completion of each epoch.
func (t *TestBase) Test(net *Network, epoch int, loss float64, start time.Time) bool {
	net.CopyTo(t.Net)
	s := Stats{Epoch: epoch, Values: []float64{loss}, BestSince: -1}
	for _, key := range DataTypes {
		dset, ok := t.Data[key]
		if !ok {
			continue
		}
		if dset.Samples < dset.Len() {
			dset.Shuffle()
		}
		var pred []int32
		if t.predict {
			pred = t.Pred[key]
		}
		errVal := t.Net.Error(dset, pred)
		s.Values = append(s.Values, errVal)
		if key == "valid" {
			// average validation error over recent epochs, column position
			// depends on which datasets are loaded
			avgIx := len(s.Values)
			avgVal := 0.0
			if epoch > 1 {
				avgVal = t.Stats[epoch-2].Values[avgIx]
			}
			avgVal = stats.EMA(avgVal).Add(errVal, emaEpochs)
			s.Values = append(s.Values, avgVal)
			// number of epochs since average validation error improved
			for ep := epoch - 1; ep >= 1; ep-- {
				if t.Stats[ep-1].Values[avgIx] > avgVal {
					s.BestSince = epoch - ep - 1
					break
				}
			}
		}
	}
	s.Elapsed = time.Since(start)
	t.Stats = append(t.Stats, s)
	return epoch >= net.MaxEpoch || loss <= net.MinLoss ||
		(net.StopAfter > 0 && s.BestSince >= net.StopAfter)
}

type testLogger struct {
	*TestBase
}

// Create a new tester which logs stats to stdout.
func NewTestLogger(base *TestBase) Tester {
	return testLogger{TestBase: base}
}

func (t testLogger) Test(net *Network, epoch int, loss float64, start time.Time) bool {
	done := t.TestBase.Test(net, epoch, loss, start)
	s := t.Stats[len(t.Stats)-1]
	if done || net.LogEvery == 0 || epoch%net.LogEvery == 0 {
		msg := fmt.Sprintf("epoch %3d:", epoch)
		for i, val := range s.Format() {
			msg += fmt.Sprintf("  %s =%s", t.Headers[i], val)
		}
		if s.BestSince >= 0 {
			msg += fmt.Sprintf(" [%d]", s.BestSince)
		}
		fmt.Println(msg)
	}
	if done {
		fmt.Printf("run time: %s\n", s.Elapsed.Round(10*time.Millisecond))
	}
	return done
}

// Train the network on the given training set by updating the weights.
// Training resumes from net.Epoch, zero for a fresh run.
func Train(net *Network, dset *Dataset, test Tester) {
	done := false
	start := time.Now()
	for epoch := net.Epoch + 1; epoch <= net.MaxEpoch && !done; epoch++ {
		loss := TrainEpoch(net, dset, epoch)
		net.Epoch = epoch
		done = test.Test(net, epoch, loss, start)
	}
}

// Perform one training epoch on the dataset, returns the average loss
// prior to updating the weights.
func TrainEpoch(net *Network, dset *Dataset, epoch int) float64 {
	eta := float32(net.LearningRate(epoch))
	lambda := float32(net.Lambda)
	momentum := float32(net.Momentum)
	if net.inputGrad == nil {
		net.inputGrad = num.NewArray(len(dset.Classes()), dset.BatchSize)
	}
	if net.Shuffle {
		dset.Shuffle()
	}
	loss := 0.0
	dset.NextEpoch()
	for batch := 0; batch < dset.Batches; batch++ {
		x, y, yOneHot := dset.NextBatch()
		yPred := net.Fprop(x, true)
		loss += float64(net.OutLayer().Loss(yOneHot, yPred))
		// gradient at the output is the difference to the target
		num.Copy(net.inputGrad, yPred)
		num.Axpy(-1, yOneHot, net.inputGrad)
		grad := net.inputGrad
		for i := len(net.Layers) - 1; i >= 0; i-- {
			grad = net.Layers[i].Bprop(grad)
		}
		for _, layer := range net.Layers {
			if l, ok := layer.(ParamLayer); ok {
				l.UpdateParams(eta, lambda, momentum, len(y))
			}
		}
		if net.DebugLevel >= 2 || (net.DebugLevel == 1 && batch == 0) {
			fmt.Printf("== train batch %d == loss=%.4f\n", batch, loss)
		}
	}
	return loss / float64(dset.Samples)
}
