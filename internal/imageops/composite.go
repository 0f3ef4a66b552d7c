package imageops

import (
	"image"
	"image/draw"

	"github.com/disintegration/imaging"
	"golang.org/x/image/vector"
)

// Blend modes for Layer.
const (
	BlendOver   = "over"
	BlendDestIn = "dest-in"
)

// Layer is an image composited on top of the working image. A nil Left
// or Top centres the layer on that axis.
type Layer struct {
	Source image.Image
	Left   *int
	Top    *int
	Blend  string
}

// Composite queues layers. They are applied in order after every other
// operation, when the image is next encoded or rebuilt.
func (img *Image) Composite(layers ...Layer) {
	img.pending = append(img.pending, layers...)
}

func (img *Image) flush() {
	if len(img.pending) == 0 {
		return
	}
	layers := img.pending
	img.pending = nil
	img.apply(func(f *image.NRGBA) *image.NRGBA {
		for _, l := range layers {
			f = composite(f, l)
		}
		return f
	})
}

func composite(dst *image.NRGBA, l Layer) *image.NRGBA {
	db, sb := dst.Bounds(), l.Source.Bounds()
	pt := image.Point{
		X: axis(l.Left, db.Dx(), sb.Dx()),
		Y: axis(l.Top, db.Dy(), sb.Dy()),
	}
	if l.Blend == BlendDestIn {
		return destIn(dst, l.Source, pt)
	}
	return imaging.Overlay(dst, l.Source, pt, 1)
}

func axis(v *int, outer, inner int) int {
	if v != nil {
		return *v
	}
	return (outer - inner) / 2
}

// destIn keeps dst only where src is opaque. Pixels outside src become
// transparent.
func destIn(dst *image.NRGBA, src image.Image, pt image.Point) *image.NRGBA {
	mask := imaging.Clone(src)
	out := imaging.Clone(dst)
	b := out.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			i := out.PixOffset(x, y) + 3
			p := image.Pt(x-pt.X, y-pt.Y)
			if !p.In(mask.Rect) {
				out.Pix[i] = 0
				continue
			}
			a := mask.Pix[mask.PixOffset(p.X, p.Y)+3]
			out.Pix[i] = uint8((uint32(out.Pix[i])*uint32(a) + 127) / 255)
		}
	}
	return out
}

// kappa places cubic control points so four curves approximate an ellipse.
const kappa = 0.5522847498

// EllipseMask returns a width x height canvas that is opaque inside the
// ellipse centred at (cx, cy) with radii rx and ry, and transparent
// elsewhere.
func EllipseMask(width, height int, cx, cy, rx, ry float64) *image.NRGBA {
	z := vector.NewRasterizer(width, height)
	x, y := float32(cx), float32(cy)
	a, b := float32(rx), float32(ry)
	ka, kb := float32(kappa*rx), float32(kappa*ry)

	z.MoveTo(x+a, y)
	z.CubeTo(x+a, y+kb, x+ka, y+b, x, y+b)
	z.CubeTo(x-ka, y+b, x-a, y+kb, x-a, y)
	z.CubeTo(x-a, y-kb, x-ka, y-b, x, y-b)
	z.CubeTo(x+ka, y-b, x+a, y-kb, x+a, y)
	z.ClosePath()

	alpha := image.NewAlpha(image.Rect(0, 0, width, height))
	z.Draw(alpha, alpha.Bounds(), image.Opaque, image.Point{})

	out := image.NewNRGBA(alpha.Bounds())
	draw.Draw(out, out.Bounds(), image.Black, image.Point{}, draw.Src)
	for i, a := range alpha.Pix {
		out.Pix[i*4+3] = a
	}
	return out
}
