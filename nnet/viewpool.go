package nnet

import (
	"encoding/json"
	"fmt"
	"math/rand"

	"github.com/LinyanCui/mvcnn/num"
)

// Pooling methods for the view pooling layer.
const (
	PoolMax = "max"
	PoolAvg = "avg"
)

// ViewPool layer config. Collapses each group of Stride consecutive
// instance slices, the renderings of one object, into a single slice.
// It carries no parameters so the surrounding network treats it like any
// other stateless layer.
type ViewPool struct {
	Stride int
	Method string
}

func (c ViewPool) Marshal() LayerConfig {
	if c.Method == "" {
		c.Method = PoolMax
	}
	return LayerConfig{Type: "viewPool", Data: marshal(c)}
}

func (c ViewPool) ToString() string {
	return fmt.Sprintf("viewPool %+v", c)
}

func (c *ViewPool) unmarshal(data json.RawMessage) Layer {
	unmarshal(data, c)
	return &viewPool{ViewPool: *c}
}

// ViewPoolOp is the pooling operator itself. Forward and Backward are pure
// functions: the caller retains the forward input and supplies it again for
// the backward pass.
type ViewPoolOp struct {
	Stride int
	Method string
}

func (op ViewPoolOp) check(in *num.Array) error {
	dims := in.Dims()
	if len(dims) != 4 {
		panic(fmt.Sprintf("view pool: expect 4 dimensional input, have %v", dims))
	}
	if op.Stride < 1 || dims[3]%op.Stride != 0 {
		return ViewCountError{Views: dims[3], Stride: op.Stride}
	}
	if op.Method != PoolMax && op.Method != PoolAvg {
		return MethodError{Method: op.Method}
	}
	return nil
}

// Forward reduces in, shaped (h, w, c, n), to (h, w, c, n/stride) taking
// the elementwise max or mean over each group of stride view slices.
func (op ViewPoolOp) Forward(in *num.Array) (*num.Array, error) {
	if err := op.check(in); err != nil {
		return nil, err
	}
	dims := in.Dims()
	slice := num.Prod(dims[:3])
	groups := dims[3] / op.Stride
	out := num.NewArray(dims[0], dims[1], dims[2], groups)
	for g := 0; g < groups; g++ {
		dst := out.Data[g*slice : (g+1)*slice]
		copy(dst, in.Data[g*op.Stride*slice:])
		for v := 1; v < op.Stride; v++ {
			src := in.Data[(g*op.Stride+v)*slice:]
			if op.Method == PoolMax {
				for i := range dst {
					if src[i] > dst[i] {
						dst[i] = src[i]
					}
				}
			} else {
				for i := range dst {
					dst[i] += src[i]
				}
			}
		}
		if op.Method == PoolAvg {
			scale := 1 / float32(op.Stride)
			for i := range dst {
				dst[i] *= scale
			}
		}
	}
	return out, nil
}

// Backward distributes grad, shaped like the forward output, back over the
// view slices of in, the original forward input. For avg each view gets an
// even share. For max the view which held the maximum gets the whole
// gradient: ties go to the first view in scan order.
func (op ViewPoolOp) Backward(in, grad *num.Array) (*num.Array, error) {
	if err := op.check(in); err != nil {
		return nil, err
	}
	dims := in.Dims()
	slice := num.Prod(dims[:3])
	groups := dims[3] / op.Stride
	gdims := grad.Dims()
	if len(gdims) != 4 || !num.SameShape(gdims[:3], dims[:3]) || gdims[3] != groups {
		panic(fmt.Sprintf("view pool: gradient shape %v does not match %d pooled groups of %v", gdims, groups, dims[:3]))
	}
	dsrc := num.NewArrayLike(in)
	for g := 0; g < groups; g++ {
		gslice := grad.Data[g*slice : (g+1)*slice]
		if op.Method == PoolAvg {
			scale := 1 / float32(op.Stride)
			for v := 0; v < op.Stride; v++ {
				dst := dsrc.Data[(g*op.Stride+v)*slice:]
				for i, gv := range gslice {
					dst[i] = gv * scale
				}
			}
		} else {
			for i, gv := range gslice {
				best := in.Data[g*op.Stride*slice+i]
				bestView := 0
				for v := 1; v < op.Stride; v++ {
					if val := in.Data[(g*op.Stride+v)*slice+i]; val > best {
						best, bestView = val, v
					}
				}
				dsrc.Data[(g*op.Stride+bestView)*slice+i] = gv
			}
		}
	}
	return dsrc, nil
}

// view pooling layer implementation
type viewPool struct {
	ViewPool
	src *num.Array
}

func (l *viewPool) Init(inShape []int, rng *rand.Rand) error {
	if l.Method == "" {
		l.Method = PoolMax
	}
	if len(inShape) != 4 {
		panic("ViewPool: expect 4 dimensional input")
	}
	if l.Stride < 1 || inShape[3]%l.Stride != 0 {
		return ViewCountError{Views: inShape[3], Stride: l.Stride}
	}
	if l.Method != PoolMax && l.Method != PoolAvg {
		return MethodError{Method: l.Method}
	}
	return nil
}

func (l *viewPool) OutShape(inShape []int) []int {
	return []int{inShape[0], inShape[1], inShape[2], inShape[3] / l.Stride}
}

func (l *viewPool) op() ViewPoolOp {
	return ViewPoolOp{Stride: l.Stride, Method: l.Method}
}

func (l *viewPool) Fprop(in *num.Array, train bool) *num.Array {
	l.src = in
	out, err := l.op().Forward(in)
	if err != nil {
		// Init validated the configuration so this is unreachable on a
		// correctly constructed network
		panic(err)
	}
	return out
}

func (l *viewPool) Bprop(grad *num.Array) *num.Array {
	dsrc, err := l.op().Backward(l.src, grad)
	if err != nil {
		panic(err)
	}
	return dsrc
}
