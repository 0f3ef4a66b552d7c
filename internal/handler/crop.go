package handler

import (
	"context"
	"math"
	"slices"

	"github.com/rs/zerolog/log"

	"github.com/fpang/image-handler/internal/apierror"
	"github.com/fpang/image-handler/internal/classify"
	"github.com/fpang/image-handler/internal/edits"
	"github.com/fpang/image-handler/internal/imageops"
)

// Content moderation defaults.
const (
	DefaultMinConfidence  = 75.0
	DefaultModerationBlur = 50.0
)

// CropArea is a pixel region to extract.
type CropArea struct {
	Left   int
	Top    int
	Width  int
	Height int
}

// HandleBounds clamps every field of b to [0, 1] and shrinks the box so it
// does not extend past the right or bottom edge.
func HandleBounds(b classify.BoundingBox) classify.BoundingBox {
	clamp := func(v float64) float64 { return math.Max(0, math.Min(1, v)) }
	out := classify.BoundingBox{
		Left:   clamp(b.Left),
		Top:    clamp(b.Top),
		Width:  clamp(b.Width),
		Height: clamp(b.Height),
	}
	if out.Left+out.Width > 1 {
		out.Width = 1 - out.Left
	}
	if out.Top+out.Height > 1 {
		out.Height = 1 - out.Top
	}
	return out
}

// SelectFace returns the clamped box of the face at index. With no faces
// the whole image is selected.
func SelectFace(faces []classify.BoundingBox, index int) (classify.BoundingBox, error) {
	if len(faces) == 0 {
		return classify.BoundingBox{Left: 0, Top: 0, Width: 1, Height: 1}, nil
	}
	if index < 0 || index >= len(faces) {
		return classify.BoundingBox{}, apierror.FaceIndexOutOfRange()
	}
	return HandleBounds(faces[index]), nil
}

// GetCropArea converts a fractional box plus padding into a pixel region
// of a width x height image. The origin is clamped to the image and the
// size to what remains past it.
func GetCropArea(b classify.BoundingBox, padding, width, height int) CropArea {
	pad := float64(padding)
	w, h := float64(width), float64(height)
	area := CropArea{
		Left:   int(math.Floor(b.Left*w - pad)),
		Top:    int(math.Floor(b.Top*h - pad)),
		Width:  int(math.Floor(b.Width*w + pad*2)),
		Height: int(math.Floor(b.Height*h + pad*2)),
	}
	area.Left = max(area.Left, 0)
	area.Top = max(area.Top, 0)
	area.Width = min(area.Width, width-area.Left)
	area.Height = min(area.Height, height-area.Top)
	return area
}

func (h *ImageHandler) applySmartCrop(ctx context.Context, img *imageops.Image, sc *edits.SmartCrop) error {
	faceIndex, padding := 0, 0
	if sc.FaceIndex != nil {
		faceIndex = *sc.FaceIndex
	}
	if sc.Padding != nil {
		padding = *sc.Padding
	}
	if h.classifier == nil {
		return apierror.InternalError()
	}

	buf, err := img.ClassificationBuffer()
	if err != nil {
		return apierror.ImageProcessingFailed(string(edits.OpSmartCrop), err)
	}
	faces, err := h.classifier.DetectFaces(ctx, buf)
	if err != nil {
		return apierror.Wrap(err, 0, "")
	}
	box, err := SelectFace(faces, faceIndex)
	if err != nil {
		return err
	}
	area := GetCropArea(box, padding, img.Width(), img.Height())
	log.Debug().
		Int("faces", len(faces)).
		Int("left", area.Left).
		Int("top", area.Top).
		Int("width", area.Width).
		Int("height", area.Height).
		Msg("Smart crop area")
	if err := img.Extract(area.Left, area.Top, area.Width, area.Height); err != nil {
		return apierror.PaddingOutOfBounds(err)
	}
	return nil
}

// RoundCropGeometry returns the ellipse centre and radii for a round crop
// of a width x height image. A parameter that is missing or not positive
// falls back to the centre, or to half the shorter side for the radii.
func RoundCropGeometry(rc *edits.RoundCrop, width, height int) (cx, cy, rx, ry float64) {
	w, h := float64(width), float64(height)
	half := math.Min(w, h) / 2
	pick := func(v *float64, fallback float64) float64 {
		if v != nil && *v > 0 {
			return *v
		}
		return fallback
	}
	return pick(rc.Left, w/2), pick(rc.Top, h/2), pick(rc.Rx, half), pick(rc.Ry, half)
}

// applyRoundCrop masks the image with an ellipse and returns a new handle
// trimmed to the visible area.
func applyRoundCrop(img *imageops.Image, rc *edits.RoundCrop) *imageops.Image {
	w, h := img.Width(), img.Height()
	cx, cy, rx, ry := RoundCropGeometry(rc, w, h)
	img.Composite(imageops.Layer{
		Source: imageops.EllipseMask(w, h, cx, cy, rx, ry),
		Blend:  imageops.BlendDestIn,
	})
	next := img.Rebuild()
	next.Trim()
	return next
}

// ShouldBlur reports whether moderation labels call for a blur. With an
// allow-list only listed label names count.
func ShouldBlur(found []classify.Label, allow []string) bool {
	if allow == nil {
		return len(found) > 0
	}
	for _, l := range found {
		if slices.Contains(allow, l.Name) {
			return true
		}
	}
	return false
}

func (h *ImageHandler) applyContentModeration(ctx context.Context, img *imageops.Image, cm *edits.ContentModeration) error {
	if h.classifier == nil {
		return apierror.InternalError()
	}
	minConfidence := DefaultMinConfidence
	if cm.MinConfidence != nil {
		minConfidence = *cm.MinConfidence
	}

	buf, err := img.ClassificationBuffer()
	if err != nil {
		return apierror.ImageProcessingFailed(string(edits.OpContentModeration), err)
	}
	labels, err := h.classifier.DetectModerationLabels(ctx, buf, minConfidence)
	if err != nil {
		return apierror.Wrap(err, 0, "")
	}

	blur := DefaultModerationBlur
	if cm.Blur != nil {
		blur = math.Ceil(*cm.Blur)
	}
	if blur < imageops.MinSigma || blur > imageops.MaxSigma || !ShouldBlur(labels, cm.ModerationLabels) {
		return nil
	}
	log.Debug().Int("labels", len(labels)).Float64("sigma", blur).Msg("Blurring moderated image")
	if err := img.Blur(&blur); err != nil {
		return apierror.ImageProcessingFailed(string(edits.OpContentModeration), err)
	}
	return nil
}
