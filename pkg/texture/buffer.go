package texture

import (
	"fmt"
	"image"
	"image/color"
)

// RGB is a pixel with normalized float channels, nominally in [0, 1].
type RGB struct {
	R, G, B float64
}

// Sub returns the channel-wise difference c - o.
func (c RGB) Sub(o RGB) RGB {
	return RGB{c.R - o.R, c.G - o.G, c.B - o.B}
}

// Abs returns the channel-wise absolute value.
func (c RGB) Abs() RGB {
	return RGB{abs(c.R), abs(c.G), abs(c.B)}
}

// Lum projects the pixel onto Rec. 709 relative luminance.
func (c RGB) Lum() float64 {
	return 0.2126*c.R + 0.7152*c.G + 0.0722*c.B
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// Buffer is a row-major grid of RGB pixels.
type Buffer struct {
	width  int
	height int
	pix    []RGB
}

// NewBuffer creates a zeroed (black) buffer with the given dimensions.
func NewBuffer(width, height int) *Buffer {
	if width < 0 || height < 0 {
		panic(fmt.Sprintf("texture: negative buffer size %dx%d", width, height))
	}
	return &Buffer{
		width:  width,
		height: height,
		pix:    make([]RGB, width*height),
	}
}

// Filled creates a buffer where every pixel is c.
func Filled(width, height int, c RGB) *Buffer {
	b := NewBuffer(width, height)
	for i := range b.pix {
		b.pix[i] = c
	}
	return b
}

// Width returns the width of the buffer.
func (b *Buffer) Width() int {
	return b.width
}

// Height returns the height of the buffer.
func (b *Buffer) Height() int {
	return b.height
}

// Bounds returns the buffer rectangle, anchored at the origin.
func (b *Buffer) Bounds() image.Rectangle {
	return image.Rect(0, 0, b.width, b.height)
}

// Pixel returns the pixel at (x, y). Out-of-range coordinates panic.
func (b *Buffer) Pixel(x, y int) RGB {
	return b.pix[b.offset(x, y)]
}

// SetPixel stores c at (x, y). Out-of-range coordinates panic.
func (b *Buffer) SetPixel(x, y int, c RGB) {
	b.pix[b.offset(x, y)] = c
}

func (b *Buffer) offset(x, y int) int {
	if x < 0 || y < 0 || x >= b.width || y >= b.height {
		panic(fmt.Sprintf("texture: pixel (%d,%d) outside %dx%d buffer", x, y, b.width, b.height))
	}
	return y*b.width + x
}

// View returns a read-only window of size w x h whose top-left corner is at
// (x, y). The window must lie inside the buffer.
func (b *Buffer) View(x, y, w, h int) View {
	r := image.Rect(x, y, x+w, y+h)
	if w < 0 || h < 0 || !r.In(b.Bounds()) {
		panic(fmt.Sprintf("texture: view %v outside %dx%d buffer", r, b.width, b.height))
	}
	return View{buf: b, x0: x, y0: y, w: w, h: h}
}

// Crop copies the top-left w x h region into a new buffer.
func (b *Buffer) Crop(w, h int) *Buffer {
	if w > b.width || h > b.height {
		panic(fmt.Sprintf("texture: crop %dx%d larger than %dx%d buffer", w, h, b.width, b.height))
	}
	out := NewBuffer(w, h)
	for y := 0; y < h; y++ {
		copy(out.pix[y*w:(y+1)*w], b.pix[y*b.width:y*b.width+w])
	}
	return out
}

// Clone returns a deep copy of the buffer.
func (b *Buffer) Clone() *Buffer {
	out := &Buffer{width: b.width, height: b.height, pix: make([]RGB, len(b.pix))}
	copy(out.pix, b.pix)
	return out
}

// View is a non-owning rectangular window into a Buffer. A View never copies
// pixel data; it is only valid while the underlying buffer keeps its size.
type View struct {
	buf    *Buffer
	x0, y0 int
	w, h   int
}

// Width returns the width of the view.
func (v View) Width() int { return v.w }

// Height returns the height of the view.
func (v View) Height() int { return v.h }

// Origin returns the top-left corner of the view in buffer coordinates.
func (v View) Origin() image.Point { return image.Pt(v.x0, v.y0) }

// Pixel returns the pixel at view-relative coordinates (x, y).
func (v View) Pixel(x, y int) RGB {
	if x < 0 || y < 0 || x >= v.w || y >= v.h {
		panic(fmt.Sprintf("texture: pixel (%d,%d) outside %dx%d view", x, y, v.w, v.h))
	}
	return v.buf.Pixel(v.x0+x, v.y0+y)
}

// FromImage converts any image into a Buffer with channels normalized to
// [0, 1]. Alpha is discarded.
func FromImage(img image.Image) *Buffer {
	bounds := img.Bounds()
	b := NewBuffer(bounds.Dx(), bounds.Dy())
	for y := 0; y < b.height; y++ {
		for x := 0; x < b.width; x++ {
			c := color.NRGBAModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.NRGBA)
			b.pix[y*b.width+x] = RGB{
				R: float64(c.R) / 255,
				G: float64(c.G) / 255,
				B: float64(c.B) / 255,
			}
		}
	}
	return b
}

// ToImage converts the buffer into an opaque 8-bit RGBA image.
func (b *Buffer) ToImage() *image.RGBA {
	img := image.NewRGBA(b.Bounds())
	for y := 0; y < b.height; y++ {
		for x := 0; x < b.width; x++ {
			c := b.pix[y*b.width+x]
			i := img.PixOffset(x, y)
			img.Pix[i] = to8(c.R)
			img.Pix[i+1] = to8(c.G)
			img.Pix[i+2] = to8(c.B)
			img.Pix[i+3] = 255
		}
	}
	return img
}

func to8(v float64) uint8 {
	v = v*255 + 0.5
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v)
}
