// Package img contains routines for manipulating sets of images.
package img

import (
	"encoding/gob"
	"image"
	"image/color"
	"image/draw"
)

func init() {
	gob.Register(&GrayImage{})
	gob.Register(&RGBImage{})
}

var (
	GrayModel = color.ModelFunc(grayModel)
	RGBModel  = color.ModelFunc(rgbModel)
)

// Gray color stores a float in range 0-1
type Gray struct {
	Y float32
}

func (c Gray) RGBA() (r, g, b, a uint32) {
	y := clampu(c.Y, 0, 1)
	return y, y, y, 0xffff
}

func grayModel(c color.Color) color.Color {
	if _, ok := c.(Gray); ok {
		return c
	}
	r, g, b, _ := c.RGBA()
	return Gray{Y: 0.299*float32(r)/0xffff + 0.587*float32(g)/0xffff + 0.114*float32(b)/0xffff}
}

// RGB color is stored as a float for each channel with values in range 0-1
type RGB struct {
	R, G, B float32
}

func (c RGB) RGBA() (r, g, b, a uint32) {
	return clampu(c.R, 0, 1), clampu(c.G, 0, 1), clampu(c.B, 0, 1), 0xffff
}

func rgbModel(c color.Color) color.Color {
	if _, ok := c.(RGB); ok {
		return c
	}
	r, g, b, _ := c.RGBA()
	return RGB{R: float32(r) / 0xffff, G: float32(g) / 0xffff, B: float32(b) / 0xffff}
}

// Image interface type with additional methods to access the raw pixel
// data. Pixels are float32 values in column major order per channel, the
// same layout the network input arrays use.
type Image interface {
	draw.Image
	Pixels(ch int) []float32
	Channels() int
	Height() int
	Width() int
}

// New creates an empty image with the same channel count as src.
func New(src Image, width, height int) Image {
	if src.Channels() == 1 {
		return NewGray(width, height)
	}
	return NewRGB(width, height)
}

// Decode converts a standard library image into the given number of
// channels, 1 for grayscale or 3 for RGB.
func Decode(src image.Image, channels int) Image {
	b := src.Bounds()
	var dst Image
	if channels == 1 {
		dst = NewGray(b.Dx(), b.Dy())
	} else {
		dst = NewRGB(b.Dx(), b.Dy())
	}
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}

// GrayImage type stores the image data as float32 values in column major order.
type GrayImage struct {
	Pix []float32
	H   int
	W   int
}

func NewGray(width, height int) *GrayImage {
	return &GrayImage{Pix: make([]float32, height*width), H: height, W: width}
}

func (m *GrayImage) Channels() int { return 1 }

func (m *GrayImage) Height() int { return m.H }

func (m *GrayImage) Width() int { return m.W }

func (m *GrayImage) Pixels(ch int) []float32 { return m.Pix }

func (m *GrayImage) ColorModel() color.Model { return GrayModel }

func (m *GrayImage) Bounds() image.Rectangle { return image.Rect(0, 0, m.W, m.H) }

func (m *GrayImage) At(x, y int) color.Color {
	return Gray{Y: m.Pix[y+x*m.H]}
}

func (m *GrayImage) Set(x, y int, c color.Color) {
	m.Pix[y+x*m.H] = grayModel(c).(Gray).Y
}

// RGBImage type stores the image data as float32 values in column major
// order with the channels stored one after the other.
type RGBImage struct {
	Pix []float32
	H   int
	W   int
}

func NewRGB(width, height int) *RGBImage {
	return &RGBImage{Pix: make([]float32, 3*height*width), H: height, W: width}
}

func (m *RGBImage) Channels() int { return 3 }

func (m *RGBImage) Height() int { return m.H }

func (m *RGBImage) Width() int { return m.W }

func (m *RGBImage) Pixels(ch int) []float32 {
	n := m.H * m.W
	return m.Pix[ch*n : (ch+1)*n]
}

func (m *RGBImage) ColorModel() color.Model { return RGBModel }

func (m *RGBImage) Bounds() image.Rectangle { return image.Rect(0, 0, m.W, m.H) }

func (m *RGBImage) At(x, y int) color.Color {
	n := m.H * m.W
	pos := y + x*m.H
	return RGB{R: m.Pix[pos], G: m.Pix[pos+n], B: m.Pix[pos+2*n]}
}

func (m *RGBImage) Set(x, y int, c color.Color) {
	n := m.H * m.W
	pos := y + x*m.H
	col := rgbModel(c).(RGB)
	m.Pix[pos], m.Pix[pos+n], m.Pix[pos+2*n] = col.R, col.G, col.B
}

func clampu(x, xmin, xmax float32) uint32 {
	if x < xmin {
		x = xmin
	}
	if x > xmax {
		x = xmax
	}
	return uint32(x * 0xffff)
}
