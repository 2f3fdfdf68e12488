package num

import "fmt"

// Conv2D performs 2d convolution over a 4d (h, w, c, n) input using im2col
// so that the inner loop is a single matrix multiply per instance.
// Filters are stored (size, size, cin, cout) column major.
type Conv2D struct {
	h, w, c    int
	nfeats     int
	size       int
	stride     int
	pad        int
	outh, outw int
	cols       *Array
	dcols      *Array
}

// NewConv2D sets up the geometry for the given input shape.
func NewConv2D(h, w, c, nfeats, size, stride, pad int) *Conv2D {
	if stride < 1 {
		stride = 1
	}
	outh := (h+2*pad-size)/stride + 1
	outw := (w+2*pad-size)/stride + 1
	if outh < 1 || outw < 1 {
		panic(fmt.Sprintf("Conv2D: filter size %d does not fit %dx%d input with pad %d", size, h, w, pad))
	}
	return &Conv2D{
		h: h, w: w, c: c, nfeats: nfeats, size: size, stride: stride, pad: pad,
		outh: outh, outw: outw,
		cols:  NewArray(outh*outw, size*size*c),
		dcols: NewArray(outh*outw, size*size*c),
	}
}

// OutShape is the output shape for a batch of n instances.
func (l *Conv2D) OutShape(n int) []int {
	return []int{l.outh, l.outw, l.nfeats, n}
}

// FilterShape is the shape of the filter weight tensor.
func (l *Conv2D) FilterShape() []int {
	return []int{l.size, l.size, l.c, l.nfeats}
}

// Fprop convolves src (h, w, c, n) with the filters and adds the bias,
// writing the result to dst (outh, outw, nfeats, n).
func (l *Conv2D) Fprop(src, filters, bias, dst *Array) {
	n := src.Dims()[3]
	in := l.h * l.w * l.c
	out := l.outh * l.outw * l.nfeats
	fmat := filters.Reshape(l.size*l.size*l.c, l.nfeats)
	for i := 0; i < n; i++ {
		l.im2col(src.Data[i*in : (i+1)*in])
		dmat := NewArrayData(dst.Data[i*out:(i+1)*out], l.outh*l.outw, l.nfeats)
		Gemm(1, 0, l.cols, fmat, dmat, NoTrans, NoTrans)
	}
	// bias is per output channel
	plane := l.outh * l.outw
	for i := 0; i < n; i++ {
		for c := 0; c < l.nfeats; c++ {
			b := bias.Data[c]
			off := i*out + c*plane
			for p := 0; p < plane; p++ {
				dst.Data[off+p] += b
			}
		}
	}
}

// Bprop computes the input gradient dsrc and accumulates the filter and bias
// gradients given the output gradient. src must be the forward input.
func (l *Conv2D) Bprop(src, filters, grad, dsrc, dFilters, dBias *Array) {
	n := src.Dims()[3]
	in := l.h * l.w * l.c
	out := l.outh * l.outw * l.nfeats
	plane := l.outh * l.outw
	fmat := filters.Reshape(l.size*l.size*l.c, l.nfeats)
	dfmat := dFilters.Reshape(l.size*l.size*l.c, l.nfeats)
	Fill(dFilters, 0)
	Fill(dBias, 0)
	if dsrc != nil {
		Fill(dsrc, 0)
	}
	for i := 0; i < n; i++ {
		gmat := NewArrayData(grad.Data[i*out:(i+1)*out], plane, l.nfeats)
		l.im2col(src.Data[i*in : (i+1)*in])
		// dW += cols^T . grad
		Gemm(1, 1, l.cols, gmat, dfmat, Trans, NoTrans)
		// dcols = grad . W^T
		if dsrc != nil {
			Gemm(1, 0, gmat, fmat, l.dcols, NoTrans, Trans)
			l.col2im(dsrc.Data[i*in : (i+1)*in])
		}
		for c := 0; c < l.nfeats; c++ {
			var sum float32
			for p := 0; p < plane; p++ {
				sum += grad.Data[i*out+c*plane+p]
			}
			dBias.Data[c] += sum
		}
	}
}

// unroll one instance into the cols matrix: row p = output position,
// column q = position within the filter window
func (l *Conv2D) im2col(src []float32) {
	cols := l.cols.Data
	rows := l.outh * l.outw
	for c := 0; c < l.c; c++ {
		for fw := 0; fw < l.size; fw++ {
			for fh := 0; fh < l.size; fh++ {
				q := fh + l.size*(fw+l.size*c)
				for ow := 0; ow < l.outw; ow++ {
					w := ow*l.stride - l.pad + fw
					for oh := 0; oh < l.outh; oh++ {
						h := oh*l.stride - l.pad + fh
						p := oh + l.outh*ow
						if h >= 0 && h < l.h && w >= 0 && w < l.w {
							cols[p+rows*q] = src[h+l.h*(w+l.w*c)]
						} else {
							cols[p+rows*q] = 0
						}
					}
				}
			}
		}
	}
}

// scatter the cols gradient matrix back to the input layout, accumulating
// where filter windows overlap
func (l *Conv2D) col2im(dst []float32) {
	cols := l.dcols.Data
	rows := l.outh * l.outw
	for c := 0; c < l.c; c++ {
		for fw := 0; fw < l.size; fw++ {
			for fh := 0; fh < l.size; fh++ {
				q := fh + l.size*(fw+l.size*c)
				for ow := 0; ow < l.outw; ow++ {
					w := ow*l.stride - l.pad + fw
					if w < 0 || w >= l.w {
						continue
					}
					for oh := 0; oh < l.outh; oh++ {
						h := oh*l.stride - l.pad + fh
						if h < 0 || h >= l.h {
							continue
						}
						p := oh + l.outh*ow
						dst[h+l.h*(w+l.w*c)] += cols[p+rows*q]
					}
				}
			}
		}
	}
}
