package imageops

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/color/palette"
	"image/gif"
	"image/jpeg"
	"image/png"
	"math"

	"github.com/chai2010/webp"
	"github.com/rs/zerolog/log"
	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"
)

// DefaultQuality is the lossy encoder quality when none is configured.
const DefaultQuality = 80

// ErrUnsupportedOutput is returned when no encoder exists for a format.
var ErrUnsupportedOutput = errors.New("unsupported output format")

// Quality holds per-format encoder options.
type Quality struct {
	Quality     *float64
	Lossless    *bool
	Progressive *bool
}

// ToFormat sets the output encoding.
func (img *Image) ToFormat(format string) {
	if format == "jpg" {
		format = "jpeg"
	}
	img.format = format
}

// SetQuality records encoder options for format and switches the output
// to it.
func (img *Image) SetQuality(format string, q Quality) {
	img.ToFormat(format)
	img.quality[img.format] = q
}

// WebP switches the output to WebP with the given effort. The encoder has
// no effort setting, so effort is recorded but does not change the output.
func (img *Image) WebP(effort int) {
	img.ToFormat("webp")
	img.effort = &effort
}

// Effort returns the WebP effort set by WebP, or nil.
func (img *Image) Effort() *int { return img.effort }

// Buffer encodes the image in its output format.
func (img *Image) Buffer() ([]byte, error) {
	img.flush()
	return img.encode(img.format)
}

// ClassificationBuffer encodes the image for an analysis service that
// accepts only JPEG and PNG. The output format is left unchanged.
func (img *Image) ClassificationBuffer() ([]byte, error) {
	img.flush()
	format := img.format
	if format != "jpeg" && format != "png" {
		format = "png"
	}
	return img.encode(format)
}

func (img *Image) encode(format string) ([]byte, error) {
	var (
		buf bytes.Buffer
		err error
	)
	q := img.quality[format]
	frame := img.frames[0]
	switch format {
	case "jpeg":
		err = jpeg.Encode(&buf, frame, &jpeg.Options{Quality: qualityValue(q)})
	case "png":
		enc := png.Encoder{CompressionLevel: png.DefaultCompression}
		err = enc.Encode(&buf, frame)
	case "webp":
		opts := &webp.Options{Quality: float32(qualityValue(q))}
		if q.Lossless != nil {
			opts.Lossless = *q.Lossless
		}
		err = webp.Encode(&buf, frame, opts)
	case "tiff":
		err = tiff.Encode(&buf, frame, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
	case "bmp":
		err = bmp.Encode(&buf, frame)
	case "gif":
		err = gif.EncodeAll(&buf, img.paletted())
	case "raw":
		buf.Write(frame.Pix)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedOutput, format)
	}
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", format, err)
	}
	log.Debug().Str("format", format).Int("bytes", buf.Len()).Int("frames", len(img.frames)).Msg("Encoded image")
	return buf.Bytes(), nil
}

func qualityValue(q Quality) int {
	if q.Quality == nil {
		return DefaultQuality
	}
	return int(math.Max(1, math.Min(100, math.Round(*q.Quality))))
}

// gifPalette is web-safe plus a transparent entry.
var gifPalette = append(color.Palette{color.Transparent}, palette.WebSafe...)

// paletted quantizes every frame. Frames are full canvases, so each one
// clears the previous before drawing.
func (img *Image) paletted() *gif.GIF {
	out := &gif.GIF{LoopCount: img.loopCount}
	for i, f := range img.frames {
		p := image.NewPaletted(f.Bounds(), gifPalette)
		draw.FloydSteinberg.Draw(p, f.Bounds(), f, f.Bounds().Min)
		out.Image = append(out.Image, p)
		delay := 0
		if i < len(img.delays) {
			delay = img.delays[i]
		}
		out.Delay = append(out.Delay, delay)
		out.Disposal = append(out.Disposal, gif.DisposalBackground)
	}
	return out
}
