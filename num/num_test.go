package num

import (
	"math"
	"reflect"
	"testing"
)

func TestArray(t *testing.T) {
	x := NewArray(6)
	if dim := x.Dims(); !reflect.DeepEqual(dim, []int{6}) {
		t.Error("dims invalid: got", dim)
	}
	x = x.Reshape(2, 3)
	if dim := x.Dims(); !reflect.DeepEqual(dim, []int{2, 3}) {
		t.Error("dims invalid: got", dim)
	}
	x.Set(9, 0, 0)
	x.Set(6, 1, 0)
	x.Set(8, 0, 1)
	x.Set(5, 1, 1)
	x.Set(7, 0, 2)
	x.Set(4, 1, 2)
	expect := []float32{9, 6, 8, 5, 7, 4}
	if !reflect.DeepEqual(x.Data, expect) {
		t.Error("got", x.Data, "expect", expect)
	}
	y := x.Reshape(3, -1)
	if dim := y.Dims(); !reflect.DeepEqual(dim, []int{3, 2}) {
		t.Error("reshape -1 dims invalid: got", dim)
	}
	if v := y.At(2, 1); v != 4 {
		t.Error("got", v, "expect 4")
	}
	if v := y.At(1, 1); v != 7 {
		t.Error("got", v, "expect 7")
	}
}

func TestOnehot(t *testing.T) {
	labels := []int32{1, 0, 2}
	y := NewArray(3, 3)
	Onehot(labels, y, 3)
	expect := []float32{0, 1, 0, 1, 0, 0, 0, 0, 1}
	if !reflect.DeepEqual(y.Data, expect) {
		t.Error("got", y.Data, "expect", expect)
	}
	res := make([]int32, 3)
	Unhot(y, res)
	if !reflect.DeepEqual(res, labels) {
		t.Error("got", res, "expect", labels)
	}
}

func TestGemm(t *testing.T) {
	// A = [[1 2 3] [4 5 6]]  B = [[7 8] [9 10] [11 12]]
	mA := NewArrayData([]float32{1, 4, 2, 5, 3, 6}, 2, 3)
	mB := NewArrayData([]float32{7, 9, 11, 8, 10, 12}, 3, 2)
	mC := NewArray(2, 2)
	Gemm(1, 0, mA, mB, mC, NoTrans, NoTrans)
	expect := []float32{58, 139, 64, 154}
	if !reflect.DeepEqual(mC.Data, expect) {
		t.Error("got", mC.Data, "expect", expect)
	}
	// A . A^T = [[14 32] [32 77]]
	Gemm(1, 0, mA, mA, mC, NoTrans, Trans)
	expect = []float32{14, 32, 32, 77}
	if !reflect.DeepEqual(mC.Data, expect) {
		t.Error("got", mC.Data, "expect", expect)
	}
	// beta accumulates
	Gemm(1, 1, mA, mA, mC, NoTrans, Trans)
	expect = []float32{28, 64, 64, 154}
	if !reflect.DeepEqual(mC.Data, expect) {
		t.Error("got", mC.Data, "expect", expect)
	}
}

func TestGemv(t *testing.T) {
	mA := NewArrayData([]float32{1, 4, 2, 5, 3, 6}, 2, 3)
	x := NewArrayData([]float32{1, 1, 1}, 3)
	y := NewArray(2)
	Gemv(1, 0, mA, x, y, NoTrans)
	expect := []float32{6, 15}
	if !reflect.DeepEqual(y.Data, expect) {
		t.Error("got", y.Data, "expect", expect)
	}
}

func TestSoftmax(t *testing.T) {
	x := NewArrayData([]float32{1, 2, 3, 0, 0, 0}, 3, 2)
	y := NewArray(3, 2)
	Softmax(x, y)
	for n := 0; n < 2; n++ {
		var sum float32
		for i := 0; i < 3; i++ {
			sum += y.At(i, n)
		}
		if math.Abs(float64(sum-1)) > 1e-6 {
			t.Error("column", n, "sums to", sum)
		}
	}
	if y.At(2, 0) <= y.At(1, 0) || y.At(1, 0) <= y.At(0, 0) {
		t.Error("softmax not monotonic:", y)
	}
	third := float32(1.0 / 3.0)
	for i := 0; i < 3; i++ {
		if math.Abs(float64(y.At(i, 1)-third)) > 1e-6 {
			t.Error("uniform column: got", y.At(i, 1))
		}
	}
}

func TestSoftmaxLoss(t *testing.T) {
	yOneHot := NewArrayData([]float32{0, 1, 0}, 3, 1)
	yPred := NewArrayData([]float32{0.25, 0.5, 0.25}, 3, 1)
	res := NewArray(3, 1)
	SoftmaxLoss(yOneHot, yPred, res)
	loss := Sum(res)
	expect := float32(math.Log(2))
	if math.Abs(float64(loss-expect)) > 1e-6 {
		t.Error("got", loss, "expect", expect)
	}
}
