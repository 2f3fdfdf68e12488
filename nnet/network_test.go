package nnet

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/LinyanCui/mvcnn/num"
)

func TestNetworkShapes(t *testing.T) {
	conf := Config{Views: 2}.AddLayers(
		Named("fc", Conv{Nfeats: 3, Size: 1}),
		Named("viewpool", ViewPool{Stride: 2, Method: PoolMax}),
		Named("loss", SoftmaxLoss{}),
	)
	rng := NewRng(1)
	net, err := New(conf, 2, []int{1, 1, 2}, rng)
	assert.NoError(t, err)
	net.InitWeights()

	// 2 objects of 2 views each
	input := num.NewArray(1, 1, 2, 4)
	for i := range input.Data {
		input.Data[i] = float32(i) * 0.1
	}
	yPred := net.Fprop(input, false)
	assert.Equal(t, []int{3, 2}, yPred.Dims())
}

func TestNetworkViewPoolMismatch(t *testing.T) {
	conf := Config{Views: 3}.AddLayers(
		Named("fc", Conv{Nfeats: 3, Size: 1}),
		Named("viewpool", ViewPool{Stride: 2, Method: PoolMax}),
		Named("loss", SoftmaxLoss{}),
	)
	// 3 views per object with stride 2 leaves 9 instances which do not divide
	_, err := New(conf, 3, []int{1, 1, 2}, NewRng(1))
	var verr ViewCountError
	assert.ErrorAs(t, err, &verr)
}

func sepData() Data {
	inputs := []float32{
		1, 0,
		0.9, 0.1,
		0, 1,
		0.1, 0.9,
	}
	return NewData([]string{"a", "b"}, []int{1, 1, 2}, 1, []int32{0, 0, 1, 1}, inputs)
}

func TestNetworkTrain(t *testing.T) {
	conf := Config{
		Eta:        0.5,
		MaxEpoch:   50,
		TrainBatch: 4,
		TestBatch:  4,
	}.AddLayers(
		Named("fc", Conv{Nfeats: 2, Size: 1}),
		Named("loss", SoftmaxLoss{}),
	)
	rng := NewRng(42)
	dset := NewDataset(sepData(), conf.TrainBatch, 0, rng)
	net, err := New(conf, dset.BatchSize, []int{1, 1, 2}, rng)
	assert.NoError(t, err)
	net.InitWeights()

	first := TrainEpoch(net, dset, 1)
	var last float64
	for epoch := 2; epoch <= conf.MaxEpoch; epoch++ {
		last = TrainEpoch(net, dset, epoch)
	}
	assert.Less(t, last, first)
	assert.Equal(t, 0.0, net.Error(dset, nil))
}

func TestNetworkSyncConfig(t *testing.T) {
	conf := Config{}.AddLayers(
		Named("fc", Conv{Nfeats: 2, Size: 1}),
		Named("loss", SoftmaxLoss{}),
	)
	net, err := New(conf, 2, []int{1, 1, 2}, NewRng(1))
	assert.NoError(t, err)
	net.InitWeights()
	net.SyncConfig()

	var cfg Conv
	unmarshal(net.Config.Layers[0].Data, &cfg)
	assert.Equal(t, "fc", net.Config.Layers[0].Name)
	assert.Equal(t, 2*2, len(cfg.Filters))
	assert.NotEqual(t, float32(0), num.Sum(num.NewArrayData(cfg.Filters, 4)))

	// a network built from the synced config starts from the same weights
	net2, err := New(net.Config, 2, []int{1, 1, 2}, NewRng(99))
	assert.NoError(t, err)
	net2.InitWeights()
	var cfg2 Conv
	net2.SyncConfig()
	unmarshal(net2.Config.Layers[0].Data, &cfg2)
	assert.Equal(t, cfg.Filters, cfg2.Filters)
}
