package img

import (
	"fmt"
	"math/rand"
)

// Normalization describes how raw images are converted to network input.
// The same settings are stored with the model so deployment applies an
// identical preprocessing step.
type Normalization struct {
	Height        int
	Width         int
	Channels      int
	Interpolation string `json:",omitempty"`
	BorderH       int    `json:",omitempty"`
	BorderW       int    `json:",omitempty"`
	KeepAspect    bool   `json:",omitempty"`
	AverageImage  []float32
}

// Shape returns the input dimensions as (height, width, channels).
func (n Normalization) Shape() []int {
	return []int{n.Height, n.Width, n.Channels}
}

func (n Normalization) String() string {
	s := fmt.Sprintf("%dx%dx%d", n.Height, n.Width, n.Channels)
	if n.BorderH > 0 || n.BorderW > 0 {
		s += fmt.Sprintf(" border=%d,%d", n.BorderH, n.BorderW)
	}
	if n.KeepAspect {
		s += " keepAspect"
	}
	return s
}

// Transformer applies the normalization step to source images. If Augment
// is set then crop positions are randomised and images may be flipped
// horizontally, else a centered crop is used.
type Transformer struct {
	Norm    Normalization
	Augment bool
	Rng     *rand.Rand
}

func NewTransformer(norm Normalization, augment bool, rng *rand.Rand) *Transformer {
	return &Transformer{Norm: norm, Augment: augment, Rng: rng}
}

// Transform scales and crops the source image to the normalized size and
// writes the pixels to buf, which must hold Height*Width*Channels values.
// The average image, if set, is subtracted from the result.
func (t *Transformer) Transform(src Image, buf []float32) {
	n := t.Norm
	size := n.Height * n.Width * n.Channels
	if len(buf) < size {
		panic(fmt.Sprintf("img: Transform buffer too small: have %d need %d", len(buf), size))
	}
	scaled := Resize(src, n.Width+n.BorderW, n.Height+n.BorderH, n.KeepAspect)
	xoff := (scaled.Width() - n.Width) / 2
	yoff := (scaled.Height() - n.Height) / 2
	flip := false
	if t.Augment && t.Rng != nil {
		if scaled.Width() > n.Width {
			xoff = t.Rng.Intn(scaled.Width() - n.Width + 1)
		}
		if scaled.Height() > n.Height {
			yoff = t.Rng.Intn(scaled.Height() - n.Height + 1)
		}
		flip = t.Rng.Intn(2) == 1
	}
	for ch := 0; ch < n.Channels; ch++ {
		pix := scaled.Pixels(ch)
		out := buf[ch*n.Height*n.Width:]
		for x := 0; x < n.Width; x++ {
			sx := x + xoff
			if flip {
				sx = scaled.Width() - 1 - (x + xoff)
			}
			copy(out[x*n.Height:(x+1)*n.Height], pix[sx*scaled.Height()+yoff:])
		}
	}
	if len(n.AverageImage) == size {
		for i, v := range n.AverageImage {
			buf[i] -= v
		}
	}
}

// Resize scales the image to the given size using bilinear interpolation.
// If keepAspect is set the aspect ratio is preserved by scaling so the
// shorter relative side matches and the other overshoots.
func Resize(src Image, width, height int, keepAspect bool) Image {
	if src.Width() == width && src.Height() == height {
		return src
	}
	sx := float64(src.Width()) / float64(width)
	sy := float64(src.Height()) / float64(height)
	if keepAspect {
		s := sx
		if sy < sx {
			s = sy
		}
		width = int(float64(src.Width())/s + 0.5)
		height = int(float64(src.Height())/s + 0.5)
		sx, sy = s, s
	}
	dst := New(src, width, height)
	for ch := 0; ch < src.Channels(); ch++ {
		spix := src.Pixels(ch)
		dpix := dst.Pixels(ch)
		for x := 0; x < width; x++ {
			fx := (float64(x)+0.5)*sx - 0.5
			x0, dx := split(fx, src.Width())
			for y := 0; y < height; y++ {
				fy := (float64(y)+0.5)*sy - 0.5
				y0, dy := split(fy, src.Height())
				p00 := spix[y0+x0*src.Height()]
				p01 := spix[y0+1+x0*src.Height()]
				p10 := spix[y0+(x0+1)*src.Height()]
				p11 := spix[y0+1+(x0+1)*src.Height()]
				dpix[y+x*height] = lerp(lerp(p00, p01, dy), lerp(p10, p11, dy), dx)
			}
		}
	}
	return dst
}

// split returns the base index and fraction for interpolation, clamped so
// that base+1 stays in range.
func split(f float64, size int) (int, float32) {
	if f < 0 {
		return 0, 0
	}
	i := int(f)
	if i >= size-1 {
		return size - 2, 1
	}
	return i, float32(f - float64(i))
}

func lerp(a, b, t float32) float32 {
	return a + (b-a)*t
}

// MeanImage returns the per-pixel average over a set of equally sized images.
func MeanImage(images []Image) []float32 {
	if len(images) == 0 {
		return nil
	}
	m := images[0]
	mean := make([]float32, m.Height()*m.Width()*m.Channels())
	for _, img := range images {
		pos := 0
		for ch := 0; ch < img.Channels(); ch++ {
			for _, v := range img.Pixels(ch) {
				mean[pos] += v
				pos++
			}
		}
	}
	scale := 1 / float32(len(images))
	for i := range mean {
		mean[i] *= scale
	}
	return mean
}
