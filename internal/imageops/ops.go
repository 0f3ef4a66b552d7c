package imageops

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/anthonynsimon/bild/convolution"
	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
)

// Sigma bounds accepted by Blur and Sharpen.
const (
	MinSigma = 0.3
	MaxSigma = 1000
)

// fastSigma stands in for the mild 3x3 box blur used when no sigma is given.
const fastSigma = 0.5

// Blur applies a gaussian blur. A nil sigma is a mild fast blur.
func (img *Image) Blur(sigma *float64) error {
	s := fastSigma
	if sigma != nil {
		if *sigma < MinSigma || *sigma > MaxSigma {
			return fmt.Errorf("blur sigma %v outside [%v, %v]", *sigma, MinSigma, MaxSigma)
		}
		s = *sigma
	}
	img.apply(func(f *image.NRGBA) *image.NRGBA { return imaging.Blur(f, s) })
	return nil
}

// Sharpen applies an unsharp mask. A nil sigma is a mild fast sharpen.
func (img *Image) Sharpen(sigma *float64) error {
	s := 1.0
	if sigma != nil {
		if *sigma < 0.000001 || *sigma > 10 {
			return fmt.Errorf("sharpen sigma %v outside [0.000001, 10]", *sigma)
		}
		s = *sigma
	}
	img.apply(func(f *image.NRGBA) *image.NRGBA { return imaging.Sharpen(f, s) })
	return nil
}

// Flip mirrors the image vertically.
func (img *Image) Flip() {
	img.apply(func(f *image.NRGBA) *image.NRGBA { return imaging.FlipV(f) })
}

// Flop mirrors the image horizontally.
func (img *Image) Flop() {
	img.apply(func(f *image.NRGBA) *image.NRGBA { return imaging.FlipH(f) })
}

// Grayscale removes colour.
func (img *Image) Grayscale() {
	img.apply(func(f *image.NRGBA) *image.NRGBA { return imaging.Grayscale(f) })
}

// Negate inverts the colour channels. Alpha is kept.
func (img *Image) Negate() {
	img.apply(func(f *image.NRGBA) *image.NRGBA { return imaging.Invert(f) })
}

// Normalize stretches luminance so the 1st and 99th percentiles span the
// full range.
func (img *Image) Normalize() {
	img.apply(func(f *image.NRGBA) *image.NRGBA {
		hist := imaging.Histogram(f)
		lo, hi := percentile(hist, 0.01), percentile(hist, 0.99)
		if hi <= lo {
			return f
		}
		scale := 255 / float64(hi-lo)
		return imaging.AdjustFunc(f, func(c color.NRGBA) color.NRGBA {
			stretch := func(v uint8) uint8 {
				return clamp8((float64(v) - float64(lo)) * scale)
			}
			return color.NRGBA{R: stretch(c.R), G: stretch(c.G), B: stretch(c.B), A: c.A}
		})
	})
}

func percentile(hist [256]float64, p float64) int {
	var sum float64
	for i, v := range hist {
		sum += v
		if sum >= p {
			return i
		}
	}
	return 255
}

// Tint keeps each pixel's lightness and replaces its chroma with that of c.
func (img *Image) Tint(c color.NRGBA) {
	tint, _ := colorful.MakeColor(color.NRGBA{R: c.R, G: c.G, B: c.B, A: 255})
	_, ta, tb := tint.Lab()
	img.apply(func(f *image.NRGBA) *image.NRGBA {
		return imaging.AdjustFunc(f, func(px color.NRGBA) color.NRGBA {
			src := colorful.Color{R: float64(px.R) / 255, G: float64(px.G) / 255, B: float64(px.B) / 255}
			l, _, _ := src.Lab()
			r, g, b := colorful.Lab(l, ta, tb).Clamped().RGB255()
			return color.NRGBA{R: r, G: g, B: b, A: px.A}
		})
	})
}

// ConvolveOptions describes a custom kernel. Scale defaults to the kernel
// sum, or 1 when the sum is zero.
type ConvolveOptions struct {
	Width  int
	Height int
	Kernel []float64
	Scale  *float64
	Offset float64
}

// Convolve applies a custom kernel to the colour channels.
func (img *Image) Convolve(opts ConvolveOptions) error {
	if opts.Width < 3 || opts.Width > 1001 || opts.Height < 3 || opts.Height > 1001 {
		return fmt.Errorf("convolve kernel %dx%d outside 3..1001", opts.Width, opts.Height)
	}
	if len(opts.Kernel) != opts.Width*opts.Height {
		return fmt.Errorf("convolve kernel has %d values, want %d", len(opts.Kernel), opts.Width*opts.Height)
	}
	scale := 0.0
	if opts.Scale != nil {
		scale = *opts.Scale
	} else {
		for _, v := range opts.Kernel {
			scale += v
		}
	}
	if scale == 0 {
		scale = 1
	}
	k := convolution.NewKernel(opts.Width, opts.Height)
	for i, v := range opts.Kernel {
		k.Matrix[i] = v / scale
	}
	bo := &convolution.Options{Bias: opts.Offset, Wrap: false, KeepAlpha: true}
	img.apply(func(f *image.NRGBA) *image.NRGBA {
		return imaging.Clone(convolution.Convolve(f, k, bo))
	})
	return nil
}

// Rotate turns the image clockwise by angle degrees. Right angles are
// lossless; other angles expand the canvas and fill with black.
func (img *Image) Rotate(angle float64) {
	a := math.Mod(angle, 360)
	if a < 0 {
		a += 360
	}
	img.apply(func(f *image.NRGBA) *image.NRGBA {
		switch a {
		case 0:
			return f
		case 90:
			return imaging.Rotate270(f)
		case 180:
			return imaging.Rotate180(f)
		case 270:
			return imaging.Rotate90(f)
		}
		return imaging.Rotate(f, -a, color.Black)
	})
}

// Flatten merges the alpha channel onto bg.
func (img *Image) Flatten(bg color.NRGBA) {
	bg.A = 255
	img.apply(func(f *image.NRGBA) *image.NRGBA {
		b := f.Bounds()
		return imaging.Overlay(imaging.New(b.Dx(), b.Dy(), bg), f, image.Point{}, 1)
	})
}

// trimThreshold is the per-channel difference from the corner colour below
// which a pixel counts as background.
const trimThreshold = 10

// Trim removes edges that match the top-left pixel. An image that is all
// background is left as is.
func (img *Image) Trim() {
	ref := img.frames[0]
	bg := ref.NRGBAAt(ref.Rect.Min.X, ref.Rect.Min.Y)
	var box image.Rectangle
	for y := ref.Rect.Min.Y; y < ref.Rect.Max.Y; y++ {
		for x := ref.Rect.Min.X; x < ref.Rect.Max.X; x++ {
			if differs(ref.NRGBAAt(x, y), bg) {
				box = box.Union(image.Rect(x, y, x+1, y+1))
			}
		}
	}
	if box.Empty() || box == ref.Rect {
		return
	}
	box = box.Sub(ref.Rect.Min)
	img.apply(func(f *image.NRGBA) *image.NRGBA { return imaging.Crop(f, box) })
}

func differs(a, b color.NRGBA) bool {
	d := func(x, y uint8) bool { return math.Abs(float64(x)-float64(y)) > trimThreshold }
	if a.A == 0 && b.A == 0 {
		return false
	}
	return d(a.R, b.R) || d(a.G, b.G) || d(a.B, b.B) || d(a.A, b.A)
}

// MultiplyAlpha scales every alpha value by factor, clamped to [0, 1].
func (img *Image) MultiplyAlpha(factor float64) {
	factor = math.Max(0, math.Min(1, factor))
	img.apply(func(f *image.NRGBA) *image.NRGBA {
		out := imaging.Clone(f)
		for i := 3; i < len(out.Pix); i += 4 {
			out.Pix[i] = uint8(math.Round(float64(out.Pix[i]) * factor))
		}
		return out
	})
}

func clamp8(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	}
	return uint8(v + 0.5)
}
