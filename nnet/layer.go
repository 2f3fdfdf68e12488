package nnet

import (
	"encoding/json"
	"fmt"
	"math/rand"

	"github.com/LinyanCui/mvcnn/num"
)

// Layer interface type represents one layer of the neural net. Activations
// are 4 dimensional column major arrays of shape (h, w, c, instance).
type Layer interface {
	Init(inShape []int, rng *rand.Rand) error
	OutShape(inShape []int) []int
	Fprop(in *num.Array, train bool) *num.Array
	Bprop(grad *num.Array) *num.Array
	Marshal() LayerConfig
	ToString() string
}

// ParamLayer is a layer with weight and bias parameters
type ParamLayer interface {
	Layer
	InitParams(scale float32, rng *rand.Rand)
	Params() (W, B *num.Array)
	ParamGrads() (dW, dB *num.Array)
	SetParams(W, B *num.Array)
	UpdateParams(eta, lambda, momentum float32, batch int)
}

// OutputLayer is the final layer in the stack
type OutputLayer interface {
	Layer
	Loss(yOneHot, yPred *num.Array) float32
}

// Layer configuration details. Type is the discriminant used to select the
// concrete layer and Name is an optional label which edits can anchor on.
type LayerConfig struct {
	Type string
	Name string          `json:",omitempty"`
	Data json.RawMessage `json:",omitempty"`
}

type ConfigLayer interface {
	Marshal() LayerConfig
}

// Named attaches a name to a marshalled layer config.
func Named(name string, l ConfigLayer) LayerConfig {
	cfg := l.Marshal()
	cfg.Name = name
	return cfg
}

// Unmarshal JSON data and construct new layer
func (l LayerConfig) Unmarshal() Layer {
	switch l.Type {
	case "conv":
		cfg := new(Conv)
		return cfg.unmarshal(l.Data)
	case "activation":
		cfg := new(Activation)
		return cfg.unmarshal(l.Data)
	case "maxPool":
		cfg := new(MaxPool)
		return cfg.unmarshal(l.Data)
	case "normalize":
		cfg := new(Normalize)
		return cfg.unmarshal(l.Data)
	case "dropout":
		cfg := new(Dropout)
		return cfg.unmarshal(l.Data)
	case "viewPool":
		cfg := new(ViewPool)
		return cfg.unmarshal(l.Data)
	case "softmax":
		return &softmax{}
	case "softmaxloss":
		return &softmaxLoss{}
	default:
		panic("invalid layer type: " + l.Type)
	}
}

func (l LayerConfig) String() string {
	s := l.Unmarshal().ToString()
	if l.Name != "" {
		s = l.Name + ": " + s
	}
	return s
}

// Convolutional layer, implements ParamLayer interface. A fully connected
// layer is a conv whose filter size matches its input size so the output is
// 1x1 spatially. Filters are stored (size, size, cin, nfeats) column major.
// LRMult and WDMult scale the learning rate and weight decay per parameter
// group (weights, bias). VFilters and VBias are the momentum accumulators:
// they are training state and are stripped when the network is exported.
type Conv struct {
	Nfeats   int
	Size     int
	Stride   int
	Pad      int
	LRMult   [2]float64
	WDMult   [2]float64
	Filters  []float32  `json:",omitempty"`
	Bias     []float32  `json:",omitempty"`
	VFilters []float32  `json:",omitempty"`
	VBias    []float32  `json:",omitempty"`
}

func (c Conv) Marshal() LayerConfig {
	if c.Stride == 0 {
		c.Stride = 1
	}
	return LayerConfig{Type: "conv", Data: marshal(c)}
}

func (c Conv) ToString() string {
	return fmt.Sprintf("conv{Nfeats:%d Size:%d Stride:%d Pad:%d}", c.Nfeats, c.Size, c.Stride, c.Pad)
}

func (c *Conv) unmarshal(data json.RawMessage) Layer {
	unmarshal(data, c)
	return &conv{Conv: *c}
}

// Sigmoid, tanh or relu activation layer.
type Activation struct {
	Atype string
}

func (c Activation) Marshal() LayerConfig {
	return LayerConfig{Type: "activation", Data: marshal(c)}
}

func (c Activation) ToString() string {
	return fmt.Sprintf("activation %+v", c)
}

func (c *Activation) unmarshal(data json.RawMessage) Layer {
	unmarshal(data, c)
	layer := &activation{Activation: *c}
	switch c.Atype {
	case "sigmoid":
		layer.activ = num.Sigmoid
		layer.deriv = num.SigmoidD
	case "tanh":
		layer.activ = num.Tanh
		layer.deriv = num.TanhD
	case "relu":
		layer.activ = num.Relu
		layer.deriv = num.ReluD
	default:
		panic(fmt.Sprintf("activation type %s invalid", c.Atype))
	}
	return layer
}

// Max pooling layer, should follow conv layer.
type MaxPool struct {
	Size   int
	Stride int
	Pad    int
}

func (c MaxPool) Marshal() LayerConfig {
	if c.Stride == 0 {
		c.Stride = c.Size
	}
	return LayerConfig{Type: "maxPool", Data: marshal(c)}
}

func (c MaxPool) ToString() string {
	return fmt.Sprintf("maxPool %+v", c)
}

func (c *MaxPool) unmarshal(data json.RawMessage) Layer {
	unmarshal(data, c)
	return &maxPool{MaxPool: *c}
}

// Local response normalisation across channels.
type Normalize struct {
	Depth int
	Kappa float64
	Alpha float64
	Beta  float64
}

func (c Normalize) Marshal() LayerConfig {
	return LayerConfig{Type: "normalize", Data: marshal(c)}
}

func (c Normalize) ToString() string {
	return fmt.Sprintf("normalize %+v", c)
}

func (c *Normalize) unmarshal(data json.RawMessage) Layer {
	unmarshal(data, c)
	return &normalize{Normalize: *c}
}

// Dropout layer: in training masks activations with probability Rate and
// rescales survivors so no scaling is needed at inference time.
type Dropout struct {
	Rate float64
}

func (c Dropout) Marshal() LayerConfig {
	if c.Rate == 0 {
		c.Rate = 0.5
	}
	return LayerConfig{Type: "dropout", Data: marshal(c)}
}

func (c Dropout) ToString() string {
	return fmt.Sprintf("dropout %+v", c)
}

func (c *Dropout) unmarshal(data json.RawMessage) Layer {
	unmarshal(data, c)
	return &dropout{Dropout: *c}
}

// SoftmaxLoss output layer used in training.
type SoftmaxLoss struct{}

func (c SoftmaxLoss) Marshal() LayerConfig {
	return LayerConfig{Type: "softmaxloss"}
}

// Softmax output layer used for inference: same activation as SoftmaxLoss
// but without the loss calculation.
type Softmax struct{}

func (c Softmax) Marshal() LayerConfig {
	return LayerConfig{Type: "softmax"}
}

// convolutional layer implementation
type conv struct {
	Conv
	geom   *num.Conv2D
	w, b   *num.Array
	dw, db *num.Array
	vw, vb *num.Array
	src    *num.Array
	dst    *num.Array
	dsrc   *num.Array
}

func (l *conv) Init(inShape []int, rng *rand.Rand) error {
	if len(inShape) != 4 {
		panic("Conv: expect 4 dimensional input")
	}
	if l.Stride == 0 {
		l.Stride = 1
	}
	if l.LRMult == [2]float64{} {
		l.LRMult = [2]float64{1, 1}
	}
	if l.WDMult == [2]float64{} {
		l.WDMult = [2]float64{1, 1}
	}
	h, w, c, n := inShape[0], inShape[1], inShape[2], inShape[3]
	l.geom = num.NewConv2D(h, w, c, l.Nfeats, l.Size, l.Stride, l.Pad)
	nweights := l.Size * l.Size * c * l.Nfeats
	if l.Filters == nil {
		l.Filters = make([]float32, nweights)
		l.Bias = make([]float32, l.Nfeats)
	} else if len(l.Filters) != nweights || len(l.Bias) != l.Nfeats {
		return fmt.Errorf("conv: have %d weights, layer needs %d for input %v", len(l.Filters), nweights, inShape)
	}
	if l.VFilters == nil {
		l.VFilters = make([]float32, nweights)
		l.VBias = make([]float32, l.Nfeats)
	}
	fshape := l.geom.FilterShape()
	l.w = num.NewArrayData(l.Filters, fshape...)
	l.b = num.NewArrayData(l.Bias, l.Nfeats)
	l.vw = num.NewArrayData(l.VFilters, fshape...)
	l.vb = num.NewArrayData(l.VBias, l.Nfeats)
	l.dw = num.NewArrayLike(l.w)
	l.db = num.NewArrayLike(l.b)
	l.dst = num.NewArray(l.geom.OutShape(n)...)
	l.dsrc = num.NewArray(inShape...)
	return nil
}

func (l *conv) OutShape(inShape []int) []int {
	stride := l.Stride
	if stride == 0 {
		stride = 1
	}
	outh := (inShape[0]+2*l.Pad-l.Size)/stride + 1
	outw := (inShape[1]+2*l.Pad-l.Size)/stride + 1
	return []int{outh, outw, l.Nfeats, inShape[3]}
}

func (l *conv) Fprop(in *num.Array, train bool) *num.Array {
	l.src = in
	l.geom.Fprop(in, l.w, l.b, l.dst)
	return l.dst
}

func (l *conv) Bprop(grad *num.Array) *num.Array {
	l.geom.Bprop(l.src, l.w, grad, l.dsrc, l.dw, l.db)
	return l.dsrc
}

func (l *conv) InitParams(scale float32, rng *rand.Rand) {
	for i := range l.Filters {
		l.Filters[i] = float32(rng.NormFloat64()) * scale
	}
	for i := range l.Bias {
		l.Bias[i] = 0
	}
	for i := range l.VFilters {
		l.VFilters[i] = 0
	}
	for i := range l.VBias {
		l.VBias[i] = 0
	}
}

func (l *conv) Params() (W, B *num.Array) { return l.w, l.b }

func (l *conv) SetParams(W, B *num.Array) {
	num.Copy(l.w, W)
	num.Copy(l.b, B)
}

func (l *conv) ParamGrads() (dW, dB *num.Array) { return l.dw, l.db }

// SGD with momentum: v <- mom*v - eta*(grad/batch + lambda*w), w <- w + v
func (l *conv) UpdateParams(eta, lambda, momentum float32, batch int) {
	etaW := eta * float32(l.LRMult[0])
	etaB := eta * float32(l.LRMult[1])
	num.Scale(momentum, l.vw)
	num.Axpy(-etaW/float32(batch), l.dw, l.vw)
	if lambda != 0 {
		num.Axpy(-etaW*lambda*float32(l.WDMult[0]), l.w, l.vw)
	}
	num.Axpy(1, l.vw, l.w)
	num.Scale(momentum, l.vb)
	num.Axpy(-etaB/float32(batch), l.db, l.vb)
	if lambda != 0 {
		num.Axpy(-etaB*lambda*float32(l.WDMult[1]), l.b, l.vb)
	}
	num.Axpy(1, l.vb, l.b)
}

// activation layer implementation
type activation struct {
	Activation
	activ func(x, y *num.Array)
	deriv func(x, grad, y *num.Array)
	src   *num.Array
	dst   *num.Array
	dsrc  *num.Array
	loss  *num.Array
}

func (l *activation) Init(inShape []int, rng *rand.Rand) error {
	l.dst = num.NewArray(inShape...)
	l.dsrc = num.NewArray(inShape...)
	l.loss = num.NewArray(inShape...)
	return nil
}

// Loss is the total squared error, used when an activation is the output layer.
func (l *activation) Loss(yOneHot, yPred *num.Array) float32 {
	num.QuadraticLoss(yOneHot, yPred, l.loss)
	return num.Sum(l.loss)
}

func (l *activation) OutShape(inShape []int) []int { return inShape }

func (l *activation) Fprop(in *num.Array, train bool) *num.Array {
	l.src = in
	l.activ(in, l.dst)
	return l.dst
}

func (l *activation) Bprop(grad *num.Array) *num.Array {
	l.deriv(l.src, grad, l.dsrc)
	return l.dsrc
}

// pool layer implementation
type maxPool struct {
	MaxPool
	geom *num.MaxPool2D
	dst  *num.Array
	dsrc *num.Array
}

func (l *maxPool) Init(inShape []int, rng *rand.Rand) error {
	if len(inShape) != 4 {
		panic("MaxPool: expect 4 dimensional input")
	}
	if l.Stride == 0 {
		l.Stride = l.Size
	}
	l.geom = num.NewMaxPool2D(inShape[0], inShape[1], inShape[2], l.Size, l.Stride, l.Pad)
	l.dst = num.NewArray(l.geom.OutShape(inShape[3])...)
	l.dsrc = num.NewArray(inShape...)
	return nil
}

func (l *maxPool) OutShape(inShape []int) []int {
	stride := l.Stride
	if stride == 0 {
		stride = l.Size
	}
	outh := (inShape[0]+2*l.Pad-l.Size)/stride + 1
	outw := (inShape[1]+2*l.Pad-l.Size)/stride + 1
	return []int{outh, outw, inShape[2], inShape[3]}
}

func (l *maxPool) Fprop(in *num.Array, train bool) *num.Array {
	l.geom.Fprop(in, l.dst)
	return l.dst
}

func (l *maxPool) Bprop(grad *num.Array) *num.Array {
	l.geom.Bprop(grad, l.dsrc)
	return l.dsrc
}

// local response normalization layer implementation
type normalize struct {
	Normalize
	geom *num.LRN
	src  *num.Array
	dst  *num.Array
	dsrc *num.Array
}

func (l *normalize) Init(inShape []int, rng *rand.Rand) error {
	if len(inShape) != 4 {
		panic("Normalize: expect 4 dimensional input")
	}
	l.geom = num.NewLRN(inShape[0], inShape[1], inShape[2], l.Depth,
		float32(l.Kappa), float32(l.Alpha), float32(l.Beta))
	l.dst = num.NewArray(inShape...)
	l.dsrc = num.NewArray(inShape...)
	return nil
}

func (l *normalize) OutShape(inShape []int) []int { return inShape }

func (l *normalize) Fprop(in *num.Array, train bool) *num.Array {
	l.src = in
	l.geom.Fprop(in, l.dst)
	return l.dst
}

func (l *normalize) Bprop(grad *num.Array) *num.Array {
	l.geom.Bprop(l.src, grad, l.dsrc)
	return l.dsrc
}

// dropout layer implementation
type dropout struct {
	Dropout
	rng  *rand.Rand
	mask []float32
	dst  *num.Array
	dsrc *num.Array
}

func (l *dropout) Init(inShape []int, rng *rand.Rand) error {
	if l.Rate == 0 {
		l.Rate = 0.5
	}
	l.rng = rng
	l.mask = make([]float32, num.Prod(inShape))
	l.dst = num.NewArray(inShape...)
	l.dsrc = num.NewArray(inShape...)
	return nil
}

func (l *dropout) OutShape(inShape []int) []int { return inShape }

func (l *dropout) Fprop(in *num.Array, train bool) *num.Array {
	if !train {
		return in
	}
	scale := float32(1 / (1 - l.Rate))
	for i := range l.mask {
		if l.rng.Float64() < l.Rate {
			l.mask[i] = 0
		} else {
			l.mask[i] = scale
		}
	}
	for i, v := range in.Data {
		l.dst.Data[i] = v * l.mask[i]
	}
	return l.dst
}

func (l *dropout) Bprop(grad *num.Array) *num.Array {
	for i, g := range grad.Data {
		l.dsrc.Data[i] = g * l.mask[i]
	}
	return l.dsrc
}

// softmax output layers: input is (1, 1, classes, n) or (classes, n) and
// output is a (classes, n) matrix of probabilities per instance.
type softmaxBase struct {
	src  *num.Array
	dst  *num.Array
	loss *num.Array
}

func (l *softmaxBase) Init(inShape []int, rng *rand.Rand) error {
	classes := num.Prod(inShape[:len(inShape)-1])
	n := inShape[len(inShape)-1]
	l.dst = num.NewArray(classes, n)
	l.loss = num.NewArray(classes, n)
	return nil
}

func (l *softmaxBase) OutShape(inShape []int) []int {
	return []int{num.Prod(inShape[:len(inShape)-1]), inShape[len(inShape)-1]}
}

func (l *softmaxBase) Fprop(in *num.Array, train bool) *num.Array {
	l.src = in
	dims := in.Dims()
	num.Softmax(in.Reshape(-1, dims[len(dims)-1]), l.dst)
	return l.dst
}

func (l *softmaxBase) Bprop(grad *num.Array) *num.Array {
	return grad.Reshape(l.src.Dims()...)
}

type softmaxLoss struct {
	softmaxBase
}

func (l *softmaxLoss) Marshal() LayerConfig { return SoftmaxLoss{}.Marshal() }

func (l *softmaxLoss) ToString() string { return "softmaxloss" }

// Loss is the total cross entropy loss over the batch.
func (l *softmaxLoss) Loss(yOneHot, yPred *num.Array) float32 {
	num.SoftmaxLoss(yOneHot, yPred, l.loss)
	return num.Sum(l.loss)
}

type softmax struct {
	softmaxBase
}

func (l *softmax) Marshal() LayerConfig { return Softmax{}.Marshal() }

func (l *softmax) ToString() string { return "softmax" }

func marshal(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}

func unmarshal(data json.RawMessage, v interface{}) {
	err := json.Unmarshal(data, v)
	if err != nil {
		panic(err)
	}
}
