package num

import "math"

// LRN is local response normalisation across channels as used by the
// imagenet style networks: y = x * (k + alpha*s)^-beta where s is the sum
// of squares over a window of depth channels centred on the current one.
type LRN struct {
	h, w, c int
	depth   int
	k       float32
	alpha   float32
	beta    float32
	scale   []float32
}

func NewLRN(h, w, c, depth int, k, alpha, beta float32) *LRN {
	return &LRN{h: h, w: w, c: c, depth: depth, k: k, alpha: alpha, beta: beta}
}

func (l *LRN) window(c int) (lo, hi int) {
	lo = c - (l.depth-1)/2
	hi = lo + l.depth
	if lo < 0 {
		lo = 0
	}
	if hi > l.c {
		hi = l.c
	}
	return
}

// Fprop normalises src (h, w, c, n) into dst, caching the per element scale
// factor for the backward pass.
func (l *LRN) Fprop(src, dst *Array) {
	n := src.Dims()[3]
	plane := l.h * l.w
	in := plane * l.c
	if len(l.scale) != in*n {
		l.scale = make([]float32, in*n)
	}
	for i := 0; i < n; i++ {
		for c := 0; c < l.c; c++ {
			lo, hi := l.window(c)
			for p := 0; p < plane; p++ {
				var sum float32
				for j := lo; j < hi; j++ {
					v := src.Data[i*in+j*plane+p]
					sum += v * v
				}
				ix := i*in + c*plane + p
				sc := float32(math.Pow(float64(l.k+l.alpha*sum), float64(-l.beta)))
				l.scale[ix] = sc
				dst.Data[ix] = src.Data[ix] * sc
			}
		}
	}
}

// Bprop computes the input gradient. Each input feeds both its own output
// and the outputs of the channels whose window contains it.
func (l *LRN) Bprop(src, grad, dsrc *Array) {
	n := src.Dims()[3]
	plane := l.h * l.w
	in := plane * l.c
	for i := 0; i < n; i++ {
		for c := 0; c < l.c; c++ {
			lo, hi := l.window(c)
			for p := 0; p < plane; p++ {
				ix := i*in + c*plane + p
				acc := grad.Data[ix] * l.scale[ix]
				// cross channel term
				var cross float32
				for j := lo; j < hi; j++ {
					jx := i*in + j*plane + p
					sc := l.scale[jx]
					norm := float32(math.Pow(float64(sc), float64((l.beta+1)/l.beta)))
					cross += grad.Data[jx] * src.Data[jx] * norm
				}
				dsrc.Data[ix] = acc - 2*l.alpha*l.beta*src.Data[ix]*cross
			}
		}
	}
}
