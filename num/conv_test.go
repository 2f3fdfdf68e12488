package num

import (
	"reflect"
	"testing"
)

// 3x3 single channel input with values 1..9 in column major order
func convInput() *Array {
	return NewArrayData([]float32{1, 2, 3, 4, 5, 6, 7, 8, 9}, 3, 3, 1, 1)
}

func TestConv2DFprop(t *testing.T) {
	conv := NewConv2D(3, 3, 1, 1, 2, 1, 0)
	if shape := conv.OutShape(1); !reflect.DeepEqual(shape, []int{2, 2, 1, 1}) {
		t.Fatal("out shape: got", shape)
	}
	filters := NewArrayData([]float32{1, 1, 1, 1}, 2, 2, 1, 1)
	bias := NewArrayData([]float32{1}, 1)
	dst := NewArray(2, 2, 1, 1)
	conv.Fprop(convInput(), filters, bias, dst)
	expect := []float32{13, 17, 25, 29}
	if !reflect.DeepEqual(dst.Data, expect) {
		t.Error("got", dst.Data, "expect", expect)
	}
}

func TestConv2DBprop(t *testing.T) {
	conv := NewConv2D(3, 3, 1, 1, 2, 1, 0)
	src := convInput()
	filters := NewArrayData([]float32{1, 1, 1, 1}, 2, 2, 1, 1)
	grad := NewArrayData([]float32{1, 1, 1, 1}, 2, 2, 1, 1)
	dsrc := NewArray(3, 3, 1, 1)
	dFilters := NewArray(2, 2, 1, 1)
	dBias := NewArray(1)
	conv.Bprop(src, filters, grad, dsrc, dFilters, dBias)
	if dBias.Data[0] != 4 {
		t.Error("dBias: got", dBias.Data)
	}
	expect := []float32{12, 16, 24, 28}
	if !reflect.DeepEqual(dFilters.Data, expect) {
		t.Error("dFilters: got", dFilters.Data, "expect", expect)
	}
	// each input element receives one gradient per window covering it
	expect = []float32{1, 2, 1, 2, 4, 2, 1, 2, 1}
	if !reflect.DeepEqual(dsrc.Data, expect) {
		t.Error("dsrc: got", dsrc.Data, "expect", expect)
	}
}

func TestConv2DPad(t *testing.T) {
	conv := NewConv2D(3, 3, 1, 1, 3, 1, 1)
	if shape := conv.OutShape(1); !reflect.DeepEqual(shape, []int{3, 3, 1, 1}) {
		t.Fatal("out shape: got", shape)
	}
	// identity filter: center tap only
	filters := NewArray(3, 3, 1, 1)
	filters.Set(1, 1, 1, 0, 0)
	bias := NewArray(1)
	dst := NewArray(3, 3, 1, 1)
	src := convInput()
	conv.Fprop(src, filters, bias, dst)
	if !reflect.DeepEqual(dst.Data, src.Data) {
		t.Error("got", dst.Data, "expect", src.Data)
	}
}

func TestMaxPool2D(t *testing.T) {
	pool := NewMaxPool2D(4, 4, 1, 2, 2, 0)
	if shape := pool.OutShape(1); !reflect.DeepEqual(shape, []int{2, 2, 1, 1}) {
		t.Fatal("out shape: got", shape)
	}
	src := NewArray(4, 4, 1, 1)
	for i := range src.Data {
		src.Data[i] = float32(i)
	}
	dst := NewArray(2, 2, 1, 1)
	pool.Fprop(src, dst)
	expect := []float32{5, 7, 13, 15}
	if !reflect.DeepEqual(dst.Data, expect) {
		t.Error("got", dst.Data, "expect", expect)
	}
	grad := NewArrayData([]float32{1, 2, 3, 4}, 2, 2, 1, 1)
	dsrc := NewArray(4, 4, 1, 1)
	pool.Bprop(grad, dsrc)
	dexpect := make([]float32, 16)
	dexpect[5], dexpect[7], dexpect[13], dexpect[15] = 1, 2, 3, 4
	if !reflect.DeepEqual(dsrc.Data, dexpect) {
		t.Error("dsrc: got", dsrc.Data, "expect", dexpect)
	}
}
