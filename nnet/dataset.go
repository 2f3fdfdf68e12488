package nnet

import (
	"encoding/gob"
	"fmt"
	"math/rand"
	"os"
	"path"
	"sync"

	"github.com/LinyanCui/mvcnn/num"
)

// DataTypes are the dataset splits which may be present for a model.
var DataTypes = []string{"train", "test", "valid"}

func init() {
	gob.Register(data{})
}

// Data interface type represents the raw data for a training or test set.
// Indexing is per object: an object owns Views() consecutive images which
// must stay contiguous on the instance axis, a requirement of the view
// pooling layer. Plain image sets have a single view per object.
type Data interface {
	Len() int
	Views() int
	Classes() []string
	Shape() []int
	Label(index []int, label []int32)
	Input(index []int, buf []float32)
}

// Dataset type encapsulates a set of training, test or validation data.
// The next batch is loaded in the background into a double buffer while the
// current one is being processed.
type Dataset struct {
	Data
	Samples   int
	BatchSize int
	Batches   int
	x         [2]*num.Array
	y         [2][]int32
	y1H       [2]*num.Array
	count     [2]int
	indexes   []int
	buf       int
	batch     int
	epoch     int
	rng       *rand.Rand
	sync.WaitGroup
}

// Create a new Dataset struct, allocate buffers and set the batch size,
// which counts objects, and maxSamples limit.
func NewDataset(data Data, batchSize, maxSamples int, rng *rand.Rand) *Dataset {
	d := &Dataset{Data: data, Samples: data.Len(), rng: rng}
	if maxSamples > 0 && d.Samples > maxSamples {
		d.Samples = maxSamples
	}
	if batchSize == 0 || batchSize > d.Samples {
		d.BatchSize = d.Samples
	} else {
		d.BatchSize = batchSize
	}
	d.Batches = d.Samples / d.BatchSize
	if d.Samples%d.BatchSize != 0 {
		d.Batches++
	}
	shape := data.Shape()
	for i := range d.x {
		d.x[i] = num.NewArray(shape[0], shape[1], shape[2], d.BatchSize*data.Views())
		d.y[i] = make([]int32, d.BatchSize)
		d.y1H[i] = num.NewArray(len(d.Classes()), d.BatchSize)
	}
	d.indexes = make([]int, d.Samples)
	for i := range d.indexes {
		d.indexes[i] = i
	}
	return d
}

// kick off load of next batch of data in background
func (d *Dataset) loadBatch() {
	d.Add(1)
	buf, batch := d.buf, d.batch
	go func() {
		start := batch * d.BatchSize
		end := start + d.BatchSize
		if end > d.Samples {
			end = d.Samples
		}
		index := d.indexes[start:end]
		d.Input(index, d.x[buf].Data)
		d.Label(index, d.y[buf])
		d.count[buf] = len(index)
		num.Onehot(d.y[buf], d.y1H[buf], len(d.Classes()))
		d.Done()
	}()
}

// Get next batch of data. The label slice has one entry per object in the
// batch and may be shorter than BatchSize for the final batch.
func (d *Dataset) NextBatch() (x *num.Array, y []int32, yOneHot *num.Array) {
	d.Wait()
	x, y, yOneHot = d.x[d.buf], d.y[d.buf][:d.count[d.buf]], d.y1H[d.buf]
	d.batch = (d.batch + 1) % d.Batches
	d.buf = (d.buf + 1) % 2
	d.loadBatch()
	return
}

// Rewind to start of data
func (d *Dataset) Rewind() {
	d.Wait()
	d.epoch = 0
	d.batch = 0
	d.loadBatch()
}

// Called at start of each epoch
func (d *Dataset) NextEpoch() {
	d.Wait()
	d.epoch++
	d.batch = 0
	d.loadBatch()
}

// Shuffle the objects in the data set: views remain grouped per object.
func (d *Dataset) Shuffle() {
	d.indexes = d.rng.Perm(d.Samples)
}

// Load data from disk given the model name.
func LoadData(model string) (d map[string]Data, err error) {
	var data Data
	d = make(map[string]Data)
	for _, key := range DataTypes {
		name := model + "_" + key
		if FileExists(name + ".dat") {
			if data, err = LoadDataFile(name); err != nil {
				return
			}
			d[key] = data
		}
	}
	return d, nil
}

// Decode data from file in gob format under DataDir
func LoadDataFile(name string) (Data, error) {
	filePath := path.Join(DataDir, name+".dat")
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	fmt.Printf("loading data from %s.dat:\t", name)
	var d Data
	if err = gob.NewDecoder(f).Decode(&d); err != nil {
		return nil, err
	}
	fmt.Println(append(d.Shape(), d.Views(), d.Len()))
	return d, nil
}

// Encode in gob format and save to file under DataDir
func SaveDataFile(d Data, name string) error {
	if err := os.MkdirAll(DataDir, 0755); err != nil {
		return err
	}
	filePath := path.Join(DataDir, name+".dat")
	f, err := os.Create(filePath)
	if err != nil {
		return err
	}
	defer f.Close()
	fmt.Println("saving data to", name+".dat")
	return gob.NewEncoder(f).Encode(&d)
}

// Check if file exists under DataDir
func FileExists(name string) bool {
	_, err := os.Stat(path.Join(DataDir, name))
	return err == nil
}

type data struct {
	Class  []string
	Dims   []int
	NView  int
	Labels []int32
	Inputs []float32
}

// NewData function creates a new data set which implements the Data
// interface from raw inputs: all views of each object stored consecutively.
func NewData(classes []string, shape []int, views int, labels []int32, inputs []float32) Data {
	if views < 1 {
		views = 1
	}
	return data{Class: classes, Dims: shape, NView: views, Labels: labels, Inputs: inputs}
}

func (d data) Len() int { return len(d.Labels) }

func (d data) Views() int { return d.NView }

func (d data) Classes() []string { return d.Class }

func (d data) Shape() []int { return d.Dims }

func (d data) Label(index []int, label []int32) {
	for i, ix := range index {
		label[i] = d.Labels[ix]
	}
}

func (d data) Input(index []int, buf []float32) {
	nfeat := num.Prod(d.Dims) * d.NView
	for i, ix := range index {
		copy(buf[i*nfeat:], d.Inputs[ix*nfeat:(ix+1)*nfeat])
	}
}
