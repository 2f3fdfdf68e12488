package num

// MaxPool2D is spatial max pooling over a 4d (h, w, c, n) input. The index
// of the winning element in each window is recorded during Fprop so that
// Bprop can route the gradient back to it.
type MaxPool2D struct {
	h, w, c    int
	size       int
	stride     int
	pad        int
	outh, outw int
	switches   []int
}

func NewMaxPool2D(h, w, c, size, stride, pad int) *MaxPool2D {
	if stride < 1 {
		stride = size
	}
	outh := (h+2*pad-size)/stride + 1
	outw := (w+2*pad-size)/stride + 1
	return &MaxPool2D{h: h, w: w, c: c, size: size, stride: stride, pad: pad, outh: outh, outw: outw}
}

func (l *MaxPool2D) OutShape(n int) []int {
	return []int{l.outh, l.outw, l.c, n}
}

// Fprop writes the max over each pooling window to dst (outh, outw, c, n).
func (l *MaxPool2D) Fprop(src, dst *Array) {
	n := src.Dims()[3]
	in := l.h * l.w * l.c
	out := l.outh * l.outw * l.c
	if len(l.switches) != out*n {
		l.switches = make([]int, out*n)
	}
	for i := 0; i < n; i++ {
		sdata := src.Data[i*in : (i+1)*in]
		for c := 0; c < l.c; c++ {
			for ow := 0; ow < l.outw; ow++ {
				for oh := 0; oh < l.outh; oh++ {
					best, bestIx := float32(0), -1
					for fw := 0; fw < l.size; fw++ {
						w := ow*l.stride - l.pad + fw
						if w < 0 || w >= l.w {
							continue
						}
						for fh := 0; fh < l.size; fh++ {
							h := oh*l.stride - l.pad + fh
							if h < 0 || h >= l.h {
								continue
							}
							ix := h + l.h*(w+l.w*c)
							if bestIx < 0 || sdata[ix] > best {
								best, bestIx = sdata[ix], ix
							}
						}
					}
					p := oh + l.outh*(ow+l.outw*c)
					dst.Data[i*out+p] = best
					l.switches[i*out+p] = bestIx
				}
			}
		}
	}
}

// Bprop routes each output gradient back to the element which was the
// maximum in the forward pass.
func (l *MaxPool2D) Bprop(grad, dsrc *Array) {
	n := grad.Dims()[3]
	in := l.h * l.w * l.c
	out := l.outh * l.outw * l.c
	Fill(dsrc, 0)
	for i := 0; i < n; i++ {
		for p := 0; p < out; p++ {
			if ix := l.switches[i*out+p]; ix >= 0 {
				dsrc.Data[i*in+ix] += grad.Data[i*out+p]
			}
		}
	}
}
