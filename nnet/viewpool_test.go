package nnet

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/LinyanCui/mvcnn/num"
)

// 4 views of 2x2x1, each view filled with a constant value
func viewInput(vals ...float32) *num.Array {
	in := num.NewArray(2, 2, 1, len(vals))
	for v, val := range vals {
		for i := 0; i < 4; i++ {
			in.Data[v*4+i] = val
		}
	}
	return in
}

func TestViewPoolShape(t *testing.T) {
	op := ViewPoolOp{Stride: 2, Method: PoolMax}
	out, err := op.Forward(viewInput(1, 5, 3, 2))
	assert.NoError(t, err)
	assert.Equal(t, []int{2, 2, 1, 2}, out.Dims())
}

func TestViewPoolMax(t *testing.T) {
	op := ViewPoolOp{Stride: 2, Method: PoolMax}
	in := viewInput(1, 5, 3, 2)
	out, err := op.Forward(in)
	assert.NoError(t, err)
	// groups (1,5) and (3,2) reduce to 5 and 3
	expect := viewInput(5, 3)
	assert.Equal(t, expect.Data, out.Data)

	grad := viewInput(1, 1)
	dsrc, err := op.Backward(in, grad)
	assert.NoError(t, err)
	// the view holding the max gets the whole gradient
	assert.Equal(t, viewInput(0, 1, 1, 0).Data, dsrc.Data)
}

func TestViewPoolAvg(t *testing.T) {
	op := ViewPoolOp{Stride: 2, Method: PoolAvg}
	in := viewInput(1, 5, 3, 2)
	out, err := op.Forward(in)
	assert.NoError(t, err)
	assert.Equal(t, viewInput(3, 2.5).Data, out.Data)

	grad := viewInput(1, 2)
	dsrc, err := op.Backward(in, grad)
	assert.NoError(t, err)
	// each view gets an even share
	assert.Equal(t, viewInput(0.5, 0.5, 1, 1).Data, dsrc.Data)
	// per element the shares sum back to the upstream gradient
	for g := 0; g < 2; g++ {
		for i := 0; i < 4; i++ {
			sum := dsrc.Data[g*8+i] + dsrc.Data[g*8+4+i]
			assert.Equal(t, grad.Data[g*4+i], sum)
		}
	}
}

func TestViewPoolTieBreak(t *testing.T) {
	op := ViewPoolOp{Stride: 3, Method: PoolMax}
	in := viewInput(7, 7, 2)
	grad := viewInput(1)
	dsrc, err := op.Backward(in, grad)
	assert.NoError(t, err)
	// equal maxima route to the first view in scan order
	assert.Equal(t, viewInput(1, 0, 0).Data, dsrc.Data)
}

func TestViewPoolMixedElements(t *testing.T) {
	op := ViewPoolOp{Stride: 2, Method: PoolMax}
	in := num.NewArrayData([]float32{
		1, 8, 3, 4, // view 0
		5, 2, 7, 4, // view 1
	}, 2, 2, 1, 2)
	out, err := op.Forward(in)
	assert.NoError(t, err)
	assert.Equal(t, []float32{5, 8, 7, 4}, out.Data)

	grad := num.NewArrayData([]float32{10, 20, 30, 40}, 2, 2, 1, 1)
	dsrc, err := op.Backward(in, grad)
	assert.NoError(t, err)
	// element 3 is a tie so the first view wins
	assert.Equal(t, []float32{0, 20, 0, 40, 10, 0, 30, 0}, dsrc.Data)
}

func TestViewPoolCountMismatch(t *testing.T) {
	op := ViewPoolOp{Stride: 3, Method: PoolMax}
	in := num.NewArray(2, 2, 1, 10)
	_, err := op.Forward(in)
	var verr ViewCountError
	assert.ErrorAs(t, err, &verr)
	assert.Equal(t, 10, verr.Views)
	assert.Equal(t, 3, verr.Stride)
}

func TestViewPoolBadMethod(t *testing.T) {
	op := ViewPoolOp{Stride: 2, Method: "median"}
	_, err := op.Forward(num.NewArray(2, 2, 1, 4))
	var merr MethodError
	assert.ErrorAs(t, err, &merr)
	assert.Equal(t, "median", merr.Method)
}

func TestViewPoolLayer(t *testing.T) {
	cfg := ViewPool{Stride: 4}.Marshal()
	assert.Equal(t, "viewPool", cfg.Type)
	layer := cfg.Unmarshal()
	err := layer.Init([]int{2, 2, 1, 8}, nil)
	assert.NoError(t, err)
	assert.Equal(t, []int{2, 2, 1, 2}, layer.OutShape([]int{2, 2, 1, 8}))

	// stride must divide the instance count
	layer = cfg.Unmarshal()
	err = layer.Init([]int{2, 2, 1, 10}, nil)
	var verr ViewCountError
	assert.ErrorAs(t, err, &verr)
}
