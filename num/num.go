// Package num contains numeric Array processing routines such as optimised
// matrix multiplication. Arrays are column major and BLAS calls are routed
// through gonum.
package num

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
)

// TransType flag indicates if matrix is transposed
type TransType int

const (
	NoTrans TransType = iota
	Trans
)

// Fill array with a scalar value
func Fill(a *Array, scalar float32) {
	for i := range a.Data {
		a.Data[i] = scalar
	}
}

// Copy from src to dst which must be the same shape.
func Copy(dst, src *Array) {
	if !SameShape(dst.dims, src.dims) {
		panic(fmt.Sprintf("Copy: cannot copy from %v to %v shape", src.dims, dst.dims))
	}
	copy(dst.Data, src.Data)
}

// Scale array: x <- alpha*x
func Scale(alpha float32, x *Array) {
	blas32.Scal(alpha, vec(x))
}

// Array addition and scaling: y <- alpha*x + y
func Axpy(alpha float32, x, y *Array) {
	if !SameShape(x.dims, y.dims) {
		panic("Axpy: arrays must be same shape")
	}
	blas32.Axpy(alpha, vec(x), vec(y))
}

// Sum returns the scalar sum of the values in the array.
func Sum(a *Array) float32 {
	var total float32
	for _, v := range a.Data {
		total += v
	}
	return total
}

// Onehot expands labels into a (classes, batch) one hot array.
func Onehot(labels []int32, y *Array, classes int) {
	ydim := y.Dims()
	if len(ydim) != 2 || ydim[0] != classes || ydim[1] != len(labels) {
		panic("Onehot: invalid array shape")
	}
	for i := range y.Data {
		y.Data[i] = 0
	}
	for i, label := range labels {
		y.Data[i*classes+int(label)] = 1
	}
}

// Unhot converts a (classes, batch) array of scores back to predicted labels.
func Unhot(y *Array, labels []int32) {
	ydim := y.Dims()
	if len(ydim) != 2 || ydim[1] != len(labels) {
		panic("Unhot: invalid array shape")
	}
	classes := ydim[0]
	for i := range labels {
		col := y.Data[i*classes : (i+1)*classes]
		best := 0
		for j, v := range col {
			if v > col[best] {
				best = j
			}
		}
		labels[i] = int32(best)
	}
}

// Gemv: matrix vector multiplication y <- alpha*dot(mA,x) + beta*y
func Gemv(alpha, beta float32, mA, x, y *Array, aTrans TransType) {
	adim := mA.Dims()
	if len(adim) != 2 {
		panic("Gemv: must have matrix input")
	}
	// column major A viewed as row major is the transpose, so flip the op
	t := blas.Trans
	if aTrans == Trans {
		t = blas.NoTrans
	}
	blas32.Gemv(t, alpha, general(mA), vec(x), beta, vec(y))
}

// Gemm: matrix matrix multiplication mC <- alpha*dot(mA, mB) + beta*mC
// where all matrices are column major and may optionally be transposed.
func Gemm(alpha, beta float32, mA, mB, mC *Array, aTrans, bTrans TransType) {
	adim, bdim, cdim := mA.Dims(), mB.Dims(), mC.Dims()
	if len(adim) != 2 || len(bdim) != 2 || len(cdim) != 2 {
		panic("Gemm: must have 2 dimensional arrays")
	}
	m, k := adim[0], adim[1]
	if aTrans == Trans {
		m, k = k, m
	}
	k2, n := bdim[0], bdim[1]
	if bTrans == Trans {
		k2, n = n, k2
	}
	if k2 != k {
		panic(fmt.Sprintf("Gemm: invalid input shape %v x %v", adim, bdim))
	}
	if cdim[0] != m || cdim[1] != n {
		panic(fmt.Sprintf("Gemm: invalid output shape %v expecting [%d %d]", cdim, m, n))
	}
	// Column major C = op(A).op(B) is row major C' = op(B)'.op(A)' where X'
	// is X reinterpreted as its row major transpose, keeping the same flags.
	blas32.Gemm(trans(bTrans), trans(aTrans), alpha, general(mB), general(mA), beta, general(mC))
}

// Sigmoid activation function: y = 1/(1+e**(-x))
func Sigmoid(x, y *Array) {
	unaryFunc(x, y, func(v float32) float32 {
		return float32(1 / (1 + math.Exp(-float64(v))))
	})
}

// SigmoidD is the gradient of the sigmoid: y = grad * s(x) * (1-s(x))
func SigmoidD(x, grad, y *Array) {
	binaryFunc(x, grad, y, func(v, g float32) float32 {
		s := float32(1 / (1 + math.Exp(-float64(v))))
		return g * s * (1 - s)
	})
}

// Tanh activation function: y = tanh(x)
func Tanh(x, y *Array) {
	unaryFunc(x, y, func(v float32) float32 {
		return float32(math.Tanh(float64(v)))
	})
}

func TanhD(x, grad, y *Array) {
	binaryFunc(x, grad, y, func(v, g float32) float32 {
		t := float32(math.Tanh(float64(v)))
		return g * (1 - t*t)
	})
}

// Relu rectified linear activation function: y = max(x, 0)
func Relu(x, y *Array) {
	unaryFunc(x, y, func(v float32) float32 {
		if v > 0 {
			return v
		}
		return 0
	})
}

func ReluD(x, grad, y *Array) {
	binaryFunc(x, grad, y, func(v, g float32) float32 {
		if v > 0 {
			return g
		}
		return 0
	})
}

// Softmax activation per column of a (classes, batch) shaped array.
func Softmax(x, res *Array) {
	xdim, rdim := x.Dims(), res.Dims()
	if len(xdim) != 2 || !SameShape(xdim, rdim) {
		panic("Softmax: arrays must be 2d and same shape")
	}
	classes, batch := xdim[0], xdim[1]
	for n := 0; n < batch; n++ {
		xcol := x.Data[n*classes : (n+1)*classes]
		rcol := res.Data[n*classes : (n+1)*classes]
		max := xcol[0]
		for _, v := range xcol[1:] {
			if v > max {
				max = v
			}
		}
		var sum float32
		for i, v := range xcol {
			e := float32(math.Exp(float64(v - max)))
			rcol[i] = e
			sum += e
		}
		for i := range rcol {
			rcol[i] /= sum
		}
	}
}

// SoftmaxLoss is the per sample cross entropy loss -sum(y*log(p)) where
// yOneHot is the target distribution and yPred the predicted probabilities.
func SoftmaxLoss(yOneHot, yPred, res *Array) {
	binaryFunc(yOneHot, yPred, res, func(y, p float32) float32 {
		if y == 0 {
			return 0
		}
		return -y * float32(math.Log(float64(p)+1e-20))
	})
}

// QuadraticLoss: res = (x-y)**2
func QuadraticLoss(x, y, res *Array) {
	binaryFunc(x, y, res, func(a, b float32) float32 {
		return (a - b) * (a - b)
	})
}

func unaryFunc(x, y *Array, f func(float32) float32) {
	if !SameShape(x.dims, y.dims) {
		panic("unaryFunc: arrays must be same shape")
	}
	for i, v := range x.Data {
		y.Data[i] = f(v)
	}
}

func binaryFunc(x, y, z *Array, f func(a, b float32) float32) {
	if !SameShape(x.dims, z.dims) || !SameShape(y.dims, z.dims) {
		panic("binaryFunc: arrays must be same shape")
	}
	for i := range z.Data {
		z.Data[i] = f(x.Data[i], y.Data[i])
	}
}

func vec(a *Array) blas32.Vector {
	return blas32.Vector{N: len(a.Data), Data: a.Data, Inc: 1}
}

// general reinterprets a column major (m, n) array as the row major (n, m)
// transpose which is what gonum expects.
func general(a *Array) blas32.General {
	d := a.Dims()
	return blas32.General{Rows: d[1], Cols: d[0], Stride: d[0], Data: a.Data}
}

func trans(t TransType) blas.Transpose {
	if t == Trans {
		return blas.Trans
	}
	return blas.NoTrans
}
