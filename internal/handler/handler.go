// Package handler applies a decoded edit set to the original image and
// produces the base64 payload returned to the caller.
package handler

import (
	"context"
	"encoding/base64"
	"errors"
	"image/color"
	"math"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"

	"github.com/fpang/image-handler/internal/apierror"
	"github.com/fpang/image-handler/internal/classify"
	"github.com/fpang/image-handler/internal/edits"
	"github.com/fpang/image-handler/internal/imageops"
	"github.com/fpang/image-handler/internal/request"
	"github.com/fpang/image-handler/internal/storage"
)

// PayloadLimit is the largest base64 payload the platform can return.
const PayloadLimit = 6 * 1024 * 1024

// skippedOnAnimation are edits that cannot be applied to every frame.
var skippedOnAnimation = map[edits.Op]bool{
	edits.OpRotate:            true,
	edits.OpSmartCrop:         true,
	edits.OpRoundCrop:         true,
	edits.OpContentModeration: true,
}

// ImageHandler renders image requests.
type ImageHandler struct {
	store      storage.BlobStore
	classifier classify.Classifier
}

// New creates an ImageHandler. classifier may be nil when smart crop and
// content moderation are not used.
func New(store storage.BlobStore, classifier classify.Classifier) *ImageHandler {
	return &ImageHandler{store: store, classifier: classifier}
}

// Process renders desc and returns the image as base64.
func (h *ImageHandler) Process(ctx context.Context, desc *request.Descriptor) (string, error) {
	var (
		out []byte
		err error
	)
	switch {
	case desc.Edits.Len() > 0:
		out, err = h.render(ctx, desc)
	case desc.OutputFormat != "":
		out, err = h.convert(desc)
	default:
		out = desc.OriginalImage
	}
	if err != nil {
		return "", err
	}

	encoded := base64.StdEncoding.EncodeToString(out)
	if len(encoded) > PayloadLimit {
		log.Warn().Int("size", len(encoded)).Str("key", desc.Key).Msg("Rendered image exceeds payload limit")
		return "", apierror.TooLargeImage()
	}
	return encoded, nil
}

func (h *ImageHandler) render(ctx context.Context, desc *request.Descriptor) ([]byte, error) {
	set := desc.Edits.Clone()
	img, err := instantiate(desc, !set.StripsMetadata())
	if err != nil {
		return nil, err
	}
	animated := img.Animated()

	img, err = h.ApplyEdits(ctx, img, set, animated)
	if err != nil {
		return nil, err
	}
	if err := modifyImageOutput(img, desc); err != nil {
		return nil, err
	}
	return encode(img)
}

func (h *ImageHandler) convert(desc *request.Descriptor) ([]byte, error) {
	img, err := instantiate(desc, true)
	if err != nil {
		return nil, err
	}
	if err := modifyImageOutput(img, desc); err != nil {
		return nil, err
	}
	return encode(img)
}

// instantiate decodes the original, keeping every GIF frame. autoOrient
// is false when the edits ask for metadata to be dropped.
func instantiate(desc *request.Descriptor, autoOrient bool) (*imageops.Image, error) {
	img, err := imageops.Load(desc.OriginalImage, imageops.Options{
		Animated:   true,
		AutoOrient: autoOrient,
	})
	if errors.Is(err, imageops.ErrUnsupportedSource) {
		// ContentType already names the output, so sniff the source.
		apiErr := apierror.UnsupportedSourceImageFormat(mimetype.Detect(desc.OriginalImage).String())
		apiErr.Err = err
		return nil, apiErr
	}
	if err != nil {
		return nil, apierror.ImageProcessingFailed("decode", err)
	}
	return img, nil
}

func encode(img *imageops.Image) ([]byte, error) {
	out, err := img.Buffer()
	if errors.Is(err, imageops.ErrUnsupportedOutput) {
		return nil, apierror.UnsupportedOutputImageFormat(img.Metadata().Format)
	}
	if err != nil {
		return nil, apierror.ImageProcessingFailed("encode", err)
	}
	return out, nil
}

// ApplyEdits runs set against img. Resize is normalised first; every key
// is then applied in set order. Round crop replaces the working handle, so
// the returned image must be used in place of img.
func (h *ImageHandler) ApplyEdits(ctx context.Context, img *imageops.Image, set *edits.Set, animated bool) (*imageops.Image, error) {
	normalizeResize(img, set)

	resized := false
	for _, op := range set.Keys() {
		if animated && skippedOnAnimation[op] {
			log.Debug().Str("edit", string(op)).Msg("Skipping edit on animated image")
			continue
		}
		var err error
		switch e := set.Get(op).(type) {
		case *edits.Overlay:
			err = h.applyOverlay(ctx, img, e, set.Resize(), resized)
		case *edits.SmartCrop:
			err = h.applySmartCrop(ctx, img, e)
		case *edits.RoundCrop:
			img = applyRoundCrop(img, e)
		case *edits.ContentModeration:
			err = h.applyContentModeration(ctx, img, e)
		case *edits.Crop:
			if xerr := img.Extract(e.Left, e.Top, e.Width, e.Height); xerr != nil {
				err = apierror.AreaOutOfBounds(xerr)
			}
		case *edits.Resize:
			err = applyResize(img, e)
			resized = true
		default:
			err = applyOperation(img, e)
		}
		if err != nil {
			return nil, err
		}
	}
	return img, nil
}

// normalizeResize rounds explicit dimensions and resolves a ratio into
// width and height. Without a resize edit it adds an inside fit with no
// dimensions, which leaves the image as is.
func normalizeResize(img *imageops.Image, set *edits.Set) {
	r := set.Resize()
	if r == nil {
		set.Put(&edits.Resize{Fit: edits.FitInside})
		return
	}
	if r.Width != nil {
		r.Width = edits.Float(jsRound(*r.Width))
	}
	if r.Height != nil {
		r.Height = edits.Float(jsRound(*r.Height))
	}
	if r.Ratio != nil && *r.Ratio != 0 {
		w, h := float64(img.Width()), float64(img.Height())
		if r.Width != nil && r.Height != nil {
			w, h = *r.Width, *r.Height
		}
		r.Width = edits.Float(jsRound(w * *r.Ratio))
		r.Height = edits.Float(jsRound(h * *r.Ratio))
		r.Ratio = nil
		if r.Fit == "" {
			r.Fit = edits.FitInside
		}
	}
}

// jsRound rounds halves towards positive infinity.
func jsRound(v float64) float64 {
	return math.Floor(v + 0.5)
}

func resizeOptions(r *edits.Resize) imageops.ResizeOptions {
	opts := imageops.ResizeOptions{
		Fit:        string(r.Fit),
		Position:   r.Position,
		Background: color.NRGBA{A: 255},
	}
	if r.Width != nil {
		opts.Width = int(*r.Width)
	}
	if r.Height != nil {
		opts.Height = int(*r.Height)
	}
	if r.Background != nil {
		opts.Background = nrgba(*r.Background)
	}
	if r.WithoutEnlargement != nil {
		opts.WithoutEnlargement = *r.WithoutEnlargement
	}
	if r.WithoutReduction != nil {
		opts.WithoutReduction = *r.WithoutReduction
	}
	return opts
}

func applyResize(img *imageops.Image, r *edits.Resize) error {
	if err := img.Resize(resizeOptions(r)); err != nil {
		return apierror.ImageProcessingFailed(string(edits.OpResize), err)
	}
	return nil
}
