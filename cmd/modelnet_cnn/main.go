// Model definitions for the modelnet shape classifier. The base network is
// pretrained on single view images, convert them with: modelnet -views 1
// -out modelnet1, then train -export modelnet_cnn_pre modelnet_cnn. The fine
// tuned multi view variant is derived from the exported net with:
// train -base modelnet_cnn_pre -after relu7 modelnet_mv.
package main

import (
	"fmt"

	"github.com/LinyanCui/mvcnn/nnet"
)

func main() {
	base := nnet.Config{
		Model:      "modelnet_cnn",
		DataSet:    "modelnet1",
		Eta:        0.01,
		Lambda:     0.0005,
		Momentum:   0.9,
		MaxEpoch:   30,
		TrainBatch: 64,
		TestBatch:  64,
		LogEvery:   1,
		SaveEvery:  5,
		Shuffle:    true,
	}.AddLayers(
		nnet.Named("conv1", nnet.Conv{Nfeats: 32, Size: 5, Stride: 2}),
		nnet.Named("relu1", nnet.Activation{Atype: "relu"}),
		nnet.Named("norm1", nnet.Normalize{Depth: 5, Kappa: 2, Alpha: 1e-4, Beta: 0.75}),
		nnet.Named("pool1", nnet.MaxPool{Size: 2}),
		nnet.Named("conv2", nnet.Conv{Nfeats: 64, Size: 3, Pad: 1}),
		nnet.Named("relu2", nnet.Activation{Atype: "relu"}),
		nnet.Named("pool2", nnet.MaxPool{Size: 2}),
		nnet.Named("conv3", nnet.Conv{Nfeats: 128, Size: 3, Pad: 1}),
		nnet.Named("relu3", nnet.Activation{Atype: "relu"}),
		nnet.Named("pool3", nnet.MaxPool{Size: 2}),
		// fully connected stage: convs whose output is 1x1 spatially
		nnet.Named("fc7", nnet.Conv{Nfeats: 256, Size: 3}),
		nnet.Named("relu7", nnet.Activation{Atype: "relu"}),
		nnet.Named("fc8", nnet.Conv{Nfeats: 40, Size: 1}),
		nnet.Named("loss", nnet.SoftmaxLoss{}),
	)
	fmt.Println(base)
	err := base.SaveDefault("modelnet_cnn")
	nnet.CheckErr(err)

	// fine tuning run over 12 views per shape: the layer stack is derived
	// from the pretrained base by the train command
	mv := nnet.Config{
		Model:       "modelnet_mv",
		DataSet:     "modelnet",
		Views:       12,
		Eta:         0.001,
		EtaSchedule: []float64{0.001, 0.001, 0.0005, 0.0005, 0.0001},
		Lambda:      0.0005,
		Momentum:    0.9,
		MaxEpoch:    20,
		TrainBatch:  8,
		TestBatch:   8,
		LogEvery:    1,
		SaveEvery:   5,
		Shuffle:     true,
	}
	fmt.Println(mv)
	err = mv.SaveDefault("modelnet_mv")
	nnet.CheckErr(err)
}
