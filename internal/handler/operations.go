package handler

import (
	"image/color"

	"github.com/rs/zerolog/log"

	"github.com/fpang/image-handler/internal/apierror"
	colorpkg "github.com/fpang/image-handler/internal/color"
	"github.com/fpang/image-handler/internal/edits"
	"github.com/fpang/image-handler/internal/imageops"
	"github.com/fpang/image-handler/internal/request"
)

// formatTypes maps output formats to encoder names.
var formatTypes = map[edits.Format]string{
	edits.FormatJPG:  "jpg",
	edits.FormatJPEG: "jpeg",
	edits.FormatPNG:  "png",
	edits.FormatWebP: "webp",
	edits.FormatTIFF: "tiff",
	edits.FormatHEIF: "heif",
	edits.FormatRaw:  "raw",
	edits.FormatGIF:  "gif",
}

// ConvertImageFormatType returns the encoder name for f. heif maps to a
// name but has no encoder; rendering to it fails with
// UnsupportedOutputImageFormat.
func ConvertImageFormatType(f edits.Format) (string, error) {
	if name, ok := formatTypes[f]; ok {
		return name, nil
	}
	return "", apierror.UnsupportedOutputImageFormat(string(f))
}

// modifyImageOutput selects the encoder for the requested output format.
func modifyImageOutput(img *imageops.Image, desc *request.Descriptor) error {
	if desc.OutputFormat == "" {
		return nil
	}
	if desc.OutputFormat == edits.FormatWebP && desc.Effort != nil {
		img.WebP(*desc.Effort)
		return nil
	}
	name, err := ConvertImageFormatType(desc.OutputFormat)
	if err != nil {
		return err
	}
	img.ToFormat(name)
	return nil
}

// applyOperation forwards a plain edit to the image library. Disabled
// toggles and unknown keys are ignored.
func applyOperation(img *imageops.Image, e edits.Edit) error {
	var err error
	switch e := e.(type) {
	case *edits.Toggle:
		if !e.Enabled {
			return nil
		}
		switch e.Name {
		case edits.OpFlip:
			img.Flip()
		case edits.OpFlop:
			img.Flop()
		case edits.OpGrayscale, edits.OpGreyscale:
			img.Grayscale()
		case edits.OpNegate:
			img.Negate()
		case edits.OpNormalize, edits.OpNormalise:
			img.Normalize()
		}
	case *edits.Tint:
		img.Tint(nrgba(e.Color))
	case *edits.Blur:
		if e.Sigma == nil && !e.Enabled {
			return nil
		}
		err = img.Blur(e.Sigma)
	case *edits.Sharpen:
		if e.Sigma == nil && !e.Enabled {
			return nil
		}
		err = img.Sharpen(e.Sigma)
	case *edits.Convolve:
		opts := imageops.ConvolveOptions{Width: e.Width, Height: e.Height, Kernel: e.Kernel, Scale: e.Scale}
		if e.Offset != nil {
			opts.Offset = *e.Offset
		}
		err = img.Convolve(opts)
	case *edits.Rotate:
		if e.Angle != nil {
			img.Rotate(*e.Angle)
		}
	case *edits.Flatten:
		bg := color.NRGBA{A: 255}
		if e.Background != nil {
			bg = nrgba(*e.Background)
		}
		img.Flatten(bg)
	case *edits.ToFormat:
		name, ferr := ConvertImageFormatType(e.Format)
		if ferr != nil {
			return ferr
		}
		img.ToFormat(name)
	case *edits.Quality:
		img.SetQuality(string(e.Format), imageops.Quality{
			Quality:     e.Quality,
			Lossless:    e.Lossless,
			Progressive: e.Progressive,
		})
	default:
		log.Debug().Str("edit", string(e.Op())).Msg("Ignoring edit with no matching operation")
	}
	if err != nil {
		return apierror.ImageProcessingFailed(string(e.Op()), err)
	}
	return nil
}

func nrgba(c colorpkg.RGBA) color.NRGBA {
	r, g, b, a := c.NRGBA()
	return color.NRGBA{R: r, G: g, B: b, A: a}
}
