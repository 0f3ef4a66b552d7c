// Package imageops is the image-processing capability behind the edit
// engine: decoding, per-operation transforms and encoding. Every operation
// applies to all frames of an animated image.
package imageops

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/gif"

	"github.com/disintegration/imaging"
	"github.com/evanoberholster/imagemeta"
	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// ErrUnsupportedSource is returned for data no registered decoder accepts.
var ErrUnsupportedSource = errors.New("unsupported source image")

// Options controls Load.
type Options struct {
	// Animated keeps every frame of a GIF. Otherwise only the first frame
	// is decoded.
	Animated bool
	// AutoOrient applies the EXIF orientation tag to the pixels.
	AutoOrient bool
}

// Image is a working image handle.
type Image struct {
	frames    []*image.NRGBA
	delays    []int
	loopCount int

	sourceFormat string
	format       string
	quality      map[string]Quality
	effort       *int
	orientation  int

	pending []Layer
}

// Metadata describes the current state of an Image.
type Metadata struct {
	Width       int
	Height      int
	Format      string
	Frames      int
	Orientation int
}

// Load decodes data.
func Load(data []byte, opts Options) (*Image, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedSource, err)
	}
	log.Debug().Str("format", format).Int("width", cfg.Width).Int("height", cfg.Height).Msg("Decoding image")

	img := &Image{sourceFormat: format, format: format, quality: map[string]Quality{}}
	if format == "gif" && opts.Animated {
		if err := img.decodeGIF(data); err != nil {
			return nil, err
		}
	} else {
		decoded, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", format, err)
		}
		img.frames = []*image.NRGBA{imaging.Clone(decoded)}
	}

	img.orientation = readOrientation(data)
	if opts.AutoOrient && img.orientation > 1 {
		img.apply(func(f *image.NRGBA) *image.NRGBA { return orient(f, img.orientation) })
	}
	return img, nil
}

func (img *Image) decodeGIF(data []byte) error {
	g, err := gif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("decode gif: %w", err)
	}
	bounds := image.Rect(0, 0, g.Config.Width, g.Config.Height)
	canvas := image.NewNRGBA(bounds)
	for i, frame := range g.Image {
		var previous *image.NRGBA
		if i < len(g.Disposal) && g.Disposal[i] == gif.DisposalPrevious {
			previous = imaging.Clone(canvas)
		}
		draw.Draw(canvas, frame.Bounds(), frame, frame.Bounds().Min, draw.Over)
		img.frames = append(img.frames, imaging.Clone(canvas))
		img.delays = append(img.delays, g.Delay[i])

		if i < len(g.Disposal) {
			switch g.Disposal[i] {
			case gif.DisposalBackground:
				draw.Draw(canvas, frame.Bounds(), image.Transparent, image.Point{}, draw.Src)
			case gif.DisposalPrevious:
				canvas = previous
			}
		}
	}
	img.loopCount = g.LoopCount
	return nil
}

// readOrientation returns the EXIF orientation, or 0 when there is none.
func readOrientation(data []byte) int {
	exif, err := imagemeta.Decode(bytes.NewReader(data))
	if err != nil {
		return 0
	}
	o := int(exif.Orientation)
	if o < 1 || o > 8 {
		return 0
	}
	return o
}

func orient(f *image.NRGBA, o int) *image.NRGBA {
	switch o {
	case 2:
		return imaging.FlipH(f)
	case 3:
		return imaging.Rotate180(f)
	case 4:
		return imaging.FlipV(f)
	case 5:
		return imaging.Transpose(f)
	case 6:
		return imaging.Rotate270(f)
	case 7:
		return imaging.Transverse(f)
	case 8:
		return imaging.Rotate90(f)
	}
	return f
}

// FromImage wraps a decoded image. format is the encoding used by Buffer
// until ToFormat is called.
func FromImage(src image.Image, format string) *Image {
	return &Image{
		frames:       []*image.NRGBA{imaging.Clone(src)},
		sourceFormat: format,
		format:       format,
		quality:      map[string]Quality{},
	}
}

// Metadata reports the current size and output format.
func (img *Image) Metadata() Metadata {
	b := img.frames[0].Bounds()
	return Metadata{
		Width:       b.Dx(),
		Height:      b.Dy(),
		Format:      img.format,
		Frames:      len(img.frames),
		Orientation: img.orientation,
	}
}

// Width returns the current width.
func (img *Image) Width() int { return img.frames[0].Bounds().Dx() }

// Height returns the current height.
func (img *Image) Height() int { return img.frames[0].Bounds().Dy() }

// SourceFormat is the format the image was decoded from.
func (img *Image) SourceFormat() string { return img.sourceFormat }

// Animated reports whether the image has more than one frame.
func (img *Image) Animated() bool { return len(img.frames) > 1 }

// Frame returns the first frame with pending composites applied.
func (img *Image) Frame() *image.NRGBA {
	img.flush()
	return img.frames[0]
}

// Clone returns an independent copy.
func (img *Image) Clone() *Image {
	out := *img
	out.frames = make([]*image.NRGBA, len(img.frames))
	for i, f := range img.frames {
		out.frames[i] = imaging.Clone(f)
	}
	out.delays = append([]int(nil), img.delays...)
	out.quality = make(map[string]Quality, len(img.quality))
	for k, v := range img.quality {
		out.quality[k] = v
	}
	out.pending = append([]Layer(nil), img.pending...)
	return &out
}

// Rebuild applies pending composites and returns a new handle on the
// result. Encoder settings carry over; orientation metadata does not.
func (img *Image) Rebuild() *Image {
	img.flush()
	out := img.Clone()
	out.pending = nil
	out.orientation = 0
	return out
}

func (img *Image) apply(fn func(*image.NRGBA) *image.NRGBA) {
	for i, f := range img.frames {
		img.frames[i] = fn(f)
	}
}
