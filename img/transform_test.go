package img

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func constImage(w, h int, val float32) *GrayImage {
	m := NewGray(w, h)
	for i := range m.Pix {
		m.Pix[i] = val
	}
	return m
}

func TestResize(t *testing.T) {
	src := constImage(8, 8, 0.5)
	// same size is a no-op
	assert.Equal(t, Image(src), Resize(src, 8, 8, false))

	dst := Resize(src, 4, 6, false)
	assert.Equal(t, 4, dst.Width())
	assert.Equal(t, 6, dst.Height())
	for _, v := range dst.Pixels(0) {
		assert.InDelta(t, 0.5, v, 1e-6)
	}
}

func TestResizeKeepAspect(t *testing.T) {
	src := constImage(16, 8, 1)
	dst := Resize(src, 8, 8, true)
	// the wider side overshoots so an 8x8 crop is always covered
	assert.Equal(t, 8, dst.Height())
	assert.Equal(t, 16, dst.Width())
}

func TestResizeBilinear(t *testing.T) {
	// left half 0, right half 1: the upscaled middle interpolates
	src := NewGray(2, 2)
	src.Pix[2], src.Pix[3] = 1, 1
	dst := Resize(src, 4, 4, false)
	pix := dst.Pixels(0)
	for y := 0; y < 4; y++ {
		assert.Equal(t, float32(0), pix[y])
		assert.Equal(t, float32(1), pix[y+12])
		assert.InDelta(t, 0.25, pix[y+4], 1e-6)
		assert.InDelta(t, 0.75, pix[y+8], 1e-6)
	}
}

func TestTransform(t *testing.T) {
	norm := Normalization{Height: 4, Width: 4, Channels: 1, Interpolation: "bilinear"}
	trans := NewTransformer(norm, false, nil)
	buf := make([]float32, 16)
	trans.Transform(constImage(8, 8, 0.5), buf)
	for _, v := range buf {
		assert.InDelta(t, 0.5, v, 1e-6)
	}

	// mean image is subtracted after scaling
	norm.AverageImage = make([]float32, 16)
	for i := range norm.AverageImage {
		norm.AverageImage[i] = 0.5
	}
	trans = NewTransformer(norm, false, nil)
	trans.Transform(constImage(8, 8, 0.5), buf)
	for _, v := range buf {
		assert.InDelta(t, 0, v, 1e-6)
	}
}

func TestTransformCrop(t *testing.T) {
	// 6x6 image with a distinct 4x4 center, cropped without scaling
	src := constImage(6, 6, 1)
	for x := 1; x < 5; x++ {
		for y := 1; y < 5; y++ {
			src.Pix[y+x*6] = 2
		}
	}
	norm := Normalization{Height: 4, Width: 4, Channels: 1, BorderH: 2, BorderW: 2}
	trans := NewTransformer(norm, false, nil)
	buf := make([]float32, 16)
	trans.Transform(src, buf)
	for _, v := range buf {
		assert.Equal(t, float32(2), v)
	}
}

func TestMeanImage(t *testing.T) {
	mean := MeanImage([]Image{constImage(2, 2, 1), constImage(2, 2, 3)})
	assert.Equal(t, []float32{2, 2, 2, 2}, mean)
}

func TestData(t *testing.T) {
	norm := Normalization{Height: 2, Width: 2, Channels: 1}
	images := []Image{
		constImage(2, 2, 1), constImage(2, 2, 2),
		constImage(2, 2, 3), constImage(2, 2, 4),
	}
	d, err := NewData([]string{"a", "b"}, norm, 2, []int32{0, 1}, images)
	assert.NoError(t, err)
	assert.Equal(t, 2, d.Len())
	assert.Equal(t, 2, d.Views())
	assert.Equal(t, []int{2, 2, 1}, d.Shape())

	buf := make([]float32, 8)
	d.Input([]int{1}, buf)
	assert.Equal(t, []float32{3, 3, 3, 3, 4, 4, 4, 4}, buf)

	labels := make([]int32, 1)
	d.Label([]int{1}, labels)
	assert.Equal(t, int32(1), labels[0])

	_, err = NewData([]string{"a"}, norm, 2, []int32{0}, images[:3])
	assert.Error(t, err)
}
