package main

import (
	"flag"
	"fmt"
	"os"

	exprand "golang.org/x/exp/rand"

	"github.com/LinyanCui/mvcnn/nnet"
)

func predict(net *nnet.Network, dset *nnet.Dataset) {
	x, y, _ := dset.NextBatch()
	classes := make([]int32, len(y))
	yPred := net.Predict(x, classes)
	fmt.Print("predict:", yPred)
	fmt.Println("classes:", classes)
	fmt.Println("labels: ", y)
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: train [opts] <model>")
		os.Exit(1)
	}
	model := os.Args[len(os.Args)-1]
	fmt.Println("load model:", model)
	conf, err := nnet.LoadConfig(model + ".net")
	nnet.CheckErr(err)

	// override config settings from command line
	flag.Float64Var(&conf.Eta, "eta", conf.Eta, "learning rate")
	flag.Float64Var(&conf.Lambda, "lambda", conf.Lambda, "weight decay parameter")
	flag.Int64Var(&conf.RandSeed, "seed", conf.RandSeed, "random number seed")
	flag.IntVar(&conf.MaxEpoch, "epochs", conf.MaxEpoch, "max epochs")
	flag.IntVar(&conf.MaxSamples, "samples", conf.MaxSamples, "max samples")
	flag.IntVar(&conf.TrainBatch, "batch", conf.TrainBatch, "train batch size")
	flag.IntVar(&conf.TestBatch, "testbatch", conf.TestBatch, "test batch size")
	flag.IntVar(&conf.DebugLevel, "debug", conf.DebugLevel, "debug logging level")
	base := flag.String("base", "", "fine tune from this pretrained model")
	after := flag.String("after", "", "insert view pooling after this layer when fine tuning")
	method := flag.String("method", nnet.PoolMax, "view pooling method: max or avg")
	dropout := flag.Float64("dropout", 0.5, "dropout rate for the fine tuned fc layers")
	scale := flag.Float64("scale", 0.01, "weight scale for the new classifier")
	resume := flag.Bool("resume", false, "resume from the latest checkpoint")
	export := flag.String("export", "", "export stripped network to this model name after training")
	flag.Parse()

	// load training and test data
	data, err := nnet.LoadData(conf.DataSet)
	nnet.CheckErr(err)
	classes := data["train"].Classes()

	var stats []nnet.Stats
	epoch := 0
	if *resume {
		if epoch = nnet.LatestCheckpoint(conf.RunDir()); epoch > 0 {
			fmt.Println("resume from checkpoint at epoch", epoch)
			cp, err := nnet.LoadCheckpoint(conf.RunDir(), epoch)
			nnet.CheckErr(err)
			conf.Layers = cp.Conf.Layers
			stats = cp.Stats
		}
	} else if *base != "" {
		// derive the fine tuning network from the pretrained layer stack
		pre, err := nnet.LoadConfig(*base + ".net")
		nnet.CheckErr(err)
		src := exprand.NewSource(uint64(nnet.Seed(conf.RandSeed)))
		layers, err := nnet.ReplaceClassifier(pre.Layers, len(classes), *scale, src)
		nnet.CheckErr(err)
		layers, err = nnet.InsertDropout(layers, *dropout)
		nnet.CheckErr(err)
		if conf.Views > 1 {
			layers, err = nnet.InsertViewPool(layers, *after,
				nnet.ViewPool{Stride: conf.Views, Method: *method})
			nnet.CheckErr(err)
		}
		conf.Layers = layers
	}

	rng := nnet.NewRng(conf.RandSeed)
	trainData := nnet.NewDataset(data["train"], conf.TrainBatch, conf.MaxSamples, rng)

	// initialise weights, layers carrying pretrained values are kept
	net, err := nnet.New(conf, trainData.BatchSize, data["train"].Shape(), rng)
	nnet.CheckErr(err)
	fmt.Println(net)
	net.InitWeights()
	net.Epoch = epoch
	if conf.DebugLevel >= 1 {
		trainData.Rewind()
		fmt.Println("== Before ==")
		predict(net, trainData)
	}

	// train the network
	testBase, err := nnet.NewTestBase().Init(conf, data, nnet.NewRng(conf.RandSeed))
	nnet.CheckErr(err)
	testBase.Stats = stats
	tester := nnet.NewCheckpointSaver(nnet.NewTestLogger(testBase), testBase)
	nnet.Train(net, trainData, tester)

	if conf.DebugLevel >= 1 {
		trainData.Rewind()
		fmt.Println("== After ==")
		predict(net, trainData)
	}
	if *export != "" {
		err = nnet.Export(net, *export+".net")
		nnet.CheckErr(err)
	}
}
