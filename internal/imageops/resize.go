package imageops

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"

	"github.com/disintegration/imaging"
)

// Fit modes.
const (
	FitCover   = "cover"
	FitContain = "contain"
	FitFill    = "fill"
	FitInside  = "inside"
	FitOutside = "outside"
)

// ResizeOptions configures Resize. A zero Width or Height is derived from
// the other dimension using the aspect ratio.
type ResizeOptions struct {
	Width              int
	Height             int
	Fit                string
	Position           string
	Background         color.NRGBA
	WithoutEnlargement bool
	WithoutReduction   bool
}

// ErrOutOfBounds is returned by Extract when the region does not lie
// inside the image.
var ErrOutOfBounds = errors.New("extract area out of bounds")

// Resize scales the image. With neither dimension set it is a no-op.
func (img *Image) Resize(opts ResizeOptions) error {
	if opts.Width < 0 || opts.Height < 0 {
		return fmt.Errorf("invalid resize %dx%d", opts.Width, opts.Height)
	}
	if opts.Width == 0 && opts.Height == 0 {
		return nil
	}
	srcW, srcH := img.Width(), img.Height()
	fit := opts.Fit
	if fit == "" {
		fit = FitCover
	}

	targetW, targetH := opts.Width, opts.Height
	if targetW == 0 || targetH == 0 {
		// One dimension given: every fit degenerates to aspect-preserving.
		targetW, targetH = scaleToBox(srcW, srcH, opts.Width, opts.Height)
		fit = FitFill
	}

	outW, outH := targetW, targetH
	switch fit {
	case FitInside, FitContain:
		outW, outH = containDims(srcW, srcH, targetW, targetH)
	case FitOutside:
		outW, outH = coverDims(srcW, srcH, targetW, targetH)
	}
	if opts.WithoutEnlargement && (outW > srcW || outH > srcH) {
		if fit != FitFill && fit != FitCover {
			return nil
		}
		targetW, targetH = min(targetW, srcW), min(targetH, srcH)
	}
	if opts.WithoutReduction && (outW < srcW || outH < srcH) {
		if fit != FitFill && fit != FitCover {
			return nil
		}
		targetW, targetH = max(targetW, srcW), max(targetH, srcH)
	}

	anchor := parseAnchor(opts.Position)
	switch fit {
	case FitFill:
		img.apply(func(f *image.NRGBA) *image.NRGBA {
			return imaging.Resize(f, targetW, targetH, imaging.Lanczos)
		})
	case FitCover:
		img.apply(func(f *image.NRGBA) *image.NRGBA {
			return imaging.Fill(f, targetW, targetH, anchor, imaging.Lanczos)
		})
	case FitInside, FitOutside:
		img.apply(func(f *image.NRGBA) *image.NRGBA {
			return imaging.Resize(f, outW, outH, imaging.Lanczos)
		})
	case FitContain:
		img.apply(func(f *image.NRGBA) *image.NRGBA {
			scaled := imaging.Resize(f, outW, outH, imaging.Lanczos)
			canvas := imaging.New(targetW, targetH, opts.Background)
			return imaging.PasteCenter(canvas, scaled)
		})
	default:
		return fmt.Errorf("unknown fit %q", opts.Fit)
	}
	return nil
}

// Extract crops to the region at (left, top) of the given size.
func (img *Image) Extract(left, top, width, height int) error {
	r := image.Rect(left, top, left+width, top+height)
	bounds := img.frames[0].Bounds()
	if width <= 0 || height <= 0 || left < 0 || top < 0 || !r.In(bounds) {
		return fmt.Errorf("%w: %v not within %v", ErrOutOfBounds, r, bounds)
	}
	img.apply(func(f *image.NRGBA) *image.NRGBA { return imaging.Crop(f, r) })
	return nil
}

func scaleToBox(srcW, srcH, w, h int) (int, int) {
	switch {
	case w > 0:
		return w, max(1, int(math.Round(float64(srcH)*float64(w)/float64(srcW))))
	case h > 0:
		return max(1, int(math.Round(float64(srcW)*float64(h)/float64(srcH)))), h
	}
	return srcW, srcH
}

// containDims is the largest size with the source aspect ratio that fits
// inside w x h.
func containDims(srcW, srcH, w, h int) (int, int) {
	scale := math.Min(float64(w)/float64(srcW), float64(h)/float64(srcH))
	return max(1, int(math.Round(float64(srcW)*scale))), max(1, int(math.Round(float64(srcH)*scale)))
}

// coverDims is the smallest size with the source aspect ratio that covers
// w x h.
func coverDims(srcW, srcH, w, h int) (int, int) {
	scale := math.Max(float64(w)/float64(srcW), float64(h)/float64(srcH))
	return max(1, int(math.Round(float64(srcW)*scale))), max(1, int(math.Round(float64(srcH)*scale)))
}

var anchors = map[string]imaging.Anchor{
	"centre":       imaging.Center,
	"center":       imaging.Center,
	"top":          imaging.Top,
	"north":        imaging.Top,
	"bottom":       imaging.Bottom,
	"south":        imaging.Bottom,
	"left":         imaging.Left,
	"west":         imaging.Left,
	"right":        imaging.Right,
	"east":         imaging.Right,
	"left top":     imaging.TopLeft,
	"top left":     imaging.TopLeft,
	"northwest":    imaging.TopLeft,
	"right top":    imaging.TopRight,
	"top right":    imaging.TopRight,
	"northeast":    imaging.TopRight,
	"left bottom":  imaging.BottomLeft,
	"bottom left":  imaging.BottomLeft,
	"southwest":    imaging.BottomLeft,
	"right bottom": imaging.BottomRight,
	"bottom right": imaging.BottomRight,
	"southeast":    imaging.BottomRight,
}

func parseAnchor(position string) imaging.Anchor {
	if a, ok := anchors[strings.ToLower(strings.TrimSpace(position))]; ok {
		return a
	}
	return imaging.Center
}
