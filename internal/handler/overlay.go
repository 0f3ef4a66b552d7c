package handler

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/fpang/image-handler/internal/apierror"
	"github.com/fpang/image-handler/internal/edits"
	"github.com/fpang/image-handler/internal/imageops"
)

// zeroToHundred matches the integer percentages accepted for overlay
// ratios and alpha.
var zeroToHundred = regexp.MustCompile(`^(100|[1-9]?\d)$`)

// CalcOverlaySizeOption resolves an overlay offset token against the
// image and overlay size along one axis. A "p" suffix is a percentage of
// imageSize; negative values count back from the far edge. The second
// result is false when token is nil or not a number.
func CalcOverlaySizeOption(token *string, imageSize, overlaySize int) (int, bool) {
	if token == nil {
		return 0, false
	}
	s := *token
	if strings.HasSuffix(s, "p") {
		pct, ok := parseIntPrefix(strings.Replace(s, "p", "", 1))
		if !ok {
			return 0, false
		}
		offset := floorDiv(imageSize*pct, 100)
		if pct < 0 {
			return imageSize + offset - overlaySize, true
		}
		return offset, true
	}
	v, ok := parseIntPrefix(s)
	if !ok {
		return 0, false
	}
	if v < 0 {
		return imageSize + v - overlaySize, true
	}
	return v, true
}

// parseIntPrefix reads a leading base-10 integer, ignoring leading
// whitespace and anything after the digits.
func parseIntPrefix(s string) (int, bool) {
	s = strings.TrimLeft(s, " \t\n\r")
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	start := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == start {
		return 0, false
	}
	v, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return v, true
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// percentage returns the token as an integer in 0..100.
func percentage(t *edits.Token) (int, bool) {
	if t == nil || !zeroToHundred.MatchString(t.String()) {
		return 0, false
	}
	v, err := strconv.Atoi(t.String())
	return v, err == nil
}

func tokenString(t *edits.Token) *string {
	if t == nil {
		return nil
	}
	s := t.String()
	return &s
}

// applyOverlay fetches the overlay, scales and fades it, and queues it for
// compositing. Geometry is measured against the resized image when a
// resize is still to come.
func (h *ImageHandler) applyOverlay(ctx context.Context, img *imageops.Image, o *edits.Overlay, resize *edits.Resize, resized bool) error {
	baseW, baseH := img.Width(), img.Height()
	if resize != nil && !resized {
		probe := img.Clone()
		if err := probe.Resize(resizeOptions(resize)); err != nil {
			return apierror.ImageProcessingFailed(string(edits.OpResize), err)
		}
		baseW, baseH = probe.Width(), probe.Height()
	}

	obj, err := h.store.Get(ctx, o.Bucket, o.Key)
	if err != nil {
		return apierror.Wrap(err, 0, "")
	}
	overlay, err := imageops.Load(obj.Body, imageops.Options{AutoOrient: true})
	if err != nil {
		return apierror.ImageProcessingFailed(string(edits.OpOverlayWith), err)
	}

	fit := imageops.ResizeOptions{Fit: imageops.FitInside}
	if pct, ok := percentage(o.WRatio); ok {
		fit.Width = baseW * pct / 100
	}
	if pct, ok := percentage(o.HRatio); ok {
		fit.Height = baseH * pct / 100
	}
	if err := overlay.Resize(fit); err != nil {
		return apierror.ImageProcessingFailed(string(edits.OpOverlayWith), err)
	}
	alpha, _ := percentage(o.Alpha)
	overlay.MultiplyAlpha(1 - float64(alpha)/100)

	layer := imageops.Layer{Source: overlay.Frame(), Blend: imageops.BlendOver}
	if left, ok := CalcOverlaySizeOption(tokenString(o.Options.Left), baseW, overlay.Width()); ok {
		layer.Left = &left
	}
	if top, ok := CalcOverlaySizeOption(tokenString(o.Options.Top), baseH, overlay.Height()); ok {
		layer.Top = &top
	}
	log.Debug().
		Str("bucket", o.Bucket).
		Str("key", o.Key).
		Int("width", overlay.Width()).
		Int("height", overlay.Height()).
		Msg("Queued overlay")
	img.Composite(layer)
	return nil
}
