package num

import (
	"fmt"
	"strings"
)

// Parameters for array printing
var (
	PrintThreshold = 12
	PrintEdgeitems = 4
)

// Array is an n dimensional tensor of float32 values similar to a numpy
// ndarray. Data is stored in column major order: the first dimension varies
// fastest. Activations flowing through the network are 4 dimensional with
// shape (height, width, channels, instance) so that each instance slice is
// contiguous in memory.
type Array struct {
	Data []float32
	dims []int
}

// NewArray allocates a zeroed array with the given shape.
func NewArray(dims ...int) *Array {
	return &Array{Data: make([]float32, Prod(dims)), dims: append([]int{}, dims...)}
}

// NewArrayLike allocates a zeroed array with the same shape as a.
func NewArrayLike(a *Array) *Array {
	return NewArray(a.dims...)
}

// NewArrayData wraps an existing slice without copying it. The slice length
// must match the product of the dimensions.
func NewArrayData(data []float32, dims ...int) *Array {
	if len(data) != Prod(dims) {
		panic(fmt.Sprintf("NewArrayData: have %d values for shape %v", len(data), dims))
	}
	return &Array{Data: data, dims: append([]int{}, dims...)}
}

// Dims returns the shape of the array.
func (a *Array) Dims() []int { return a.dims }

// Size is the total number of elements.
func (a *Array) Size() int { return len(a.Data) }

// Reshape returns a view on the same data with a different shape. A single
// dimension may be -1 in which case it is inferred from the others.
func (a *Array) Reshape(dims ...int) *Array {
	shape := append([]int{}, dims...)
	for i, dim := range shape {
		if dim == -1 {
			other := 1
			for j, d := range shape {
				if j != i {
					if d == -1 {
						panic("Reshape: can only have single -1 value")
					}
					other *= d
				}
			}
			shape[i] = len(a.Data) / other
		}
	}
	if Prod(shape) != len(a.Data) {
		panic(fmt.Sprintf("Reshape: cannot reshape %v to %v", a.dims, dims))
	}
	return &Array{Data: a.Data, dims: shape}
}

// Clone returns a deep copy of the array.
func (a *Array) Clone() *Array {
	b := NewArray(a.dims...)
	copy(b.Data, a.Data)
	return b
}

// At returns the element at the given indices.
func (a *Array) At(ix ...int) float32 {
	return a.Data[a.offset(ix)]
}

// Set updates the element at the given indices.
func (a *Array) Set(val float32, ix ...int) {
	a.Data[a.offset(ix)] = val
}

func (a *Array) offset(ix []int) int {
	if len(ix) != len(a.dims) {
		panic(fmt.Sprintf("Array: have %d indices for shape %v", len(ix), a.dims))
	}
	pos, stride := 0, 1
	for i, x := range ix {
		if x < 0 || x >= a.dims[i] {
			panic(fmt.Sprintf("Array: index %v out of range for shape %v", ix, a.dims))
		}
		pos += x * stride
		stride *= a.dims[i]
	}
	return pos
}

// String returns a formatted representation, eliding the middle of large arrays.
func (a *Array) String() string {
	n := len(a.Data)
	var items []string
	if n <= PrintThreshold {
		items = make([]string, n)
		for i, v := range a.Data {
			items[i] = fmt.Sprintf("%.4g", v)
		}
	} else {
		for i := 0; i < PrintEdgeitems; i++ {
			items = append(items, fmt.Sprintf("%.4g", a.Data[i]))
		}
		items = append(items, "...")
		for i := n - PrintEdgeitems; i < n; i++ {
			items = append(items, fmt.Sprintf("%.4g", a.Data[i]))
		}
	}
	return fmt.Sprintf("%v[%s]", a.dims, strings.Join(items, " "))
}

// Prod is the product of the given dimensions, 1 for an empty list.
func Prod(dims []int) int {
	n := 1
	for _, d := range dims {
		n *= d
	}
	return n
}

// SameShape tests if the two shapes are identical.
func SameShape(xd, yd []int) bool {
	if len(xd) != len(yd) {
		return false
	}
	for i := range xd {
		if xd[i] != yd[i] {
			return false
		}
	}
	return true
}
