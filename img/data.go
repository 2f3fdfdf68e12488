package img

import (
	"encoding/gob"
	"fmt"
	"math/rand"
)

func init() {
	gob.Register(&Data{})
}

// Data type stores a set of labelled images together with the normalization
// settings used to convert them to network input. Each object owns NView
// consecutive images, so len(Images) = NView*len(Labels). It implements the
// nnet.Data interface with the transform applied when each batch is loaded.
type Data struct {
	Class  []string
	Norm   Normalization
	NView  int
	Labels []int32
	Images []Image
	trans  *Transformer
}

// NewData creates a new image data set. Images for each object must be
// stored consecutively in view order.
func NewData(classes []string, norm Normalization, views int, labels []int32, images []Image) (*Data, error) {
	if views < 1 {
		views = 1
	}
	if len(images) != views*len(labels) {
		return nil, fmt.Errorf("img: have %d images, expecting %d views for each of %d objects",
			len(images), views, len(labels))
	}
	return &Data{Class: classes, Norm: norm, NView: views, Labels: labels, Images: images}, nil
}

// SetTrans sets the transformer applied when input batches are extracted.
// If augment is set then random crops and horizontal flips are used.
func (d *Data) SetTrans(augment bool, rng *rand.Rand) {
	d.trans = NewTransformer(d.Norm, augment, rng)
}

func (d *Data) Len() int { return len(d.Labels) }

func (d *Data) Views() int { return d.NView }

func (d *Data) Classes() []string { return d.Class }

func (d *Data) Shape() []int { return d.Norm.Shape() }

func (d *Data) Label(index []int, label []int32) {
	for i, ix := range index {
		label[i] = d.Labels[ix]
	}
}

func (d *Data) Input(index []int, buf []float32) {
	t := d.trans
	if t == nil {
		t = NewTransformer(d.Norm, false, nil)
	}
	size := d.Norm.Height * d.Norm.Width * d.Norm.Channels
	for i, ix := range index {
		for v := 0; v < d.NView; v++ {
			pos := (i*d.NView + v) * size
			t.Transform(d.Images[ix*d.NView+v], buf[pos:pos+size])
		}
	}
}

// Image returns the raw image for the given object and view.
func (d *Data) Image(index, view int) Image {
	return d.Images[index*d.NView+view]
}
