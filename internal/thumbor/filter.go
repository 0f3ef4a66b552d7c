package thumbor

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/fpang/image-handler/internal/color"
	"github.com/fpang/image-handler/internal/edits"
)

var (
	filterCallPattern = regexp.MustCompile(`:(.+)\((.*)\)`)
	nonAlnumPattern   = regexp.MustCompile(`[^0-9a-zA-Z]`)
	jpgPattern        = regexp.MustCompile(`(?i)jpg`)
	whitespacePattern = regexp.MustCompile(`\s+`)
	positionPattern   = regexp.MustCompile(`^(100|[1-9]?\d|-(100|[1-9]\d?))p$`)
	acceptedToFormats = []edits.Format{edits.FormatHEIC, edits.FormatHEIF, edits.FormatJPEG, edits.FormatPNG, edits.FormatRaw, edits.FormatTIFF, edits.FormatWebP, edits.FormatGIF}
)

// MapFilter applies one filters:name(args) token to prior and returns the
// result. prior is never modified. Unsupported filters, and filters whose
// arguments are not numbers where numbers are required, return a copy of
// prior unchanged.
func MapFilter(filter, fileFormat string, prior *edits.Set) *edits.Set {
	out := prior.Clone()
	m := filterCallPattern.FindStringSubmatch(filter)
	if m == nil {
		return out
	}
	name, value := m[1], m[2]

	switch name {
	case "autojpg":
		out.Put(&edits.ToFormat{Format: edits.FormatJPEG})
	case "background_color":
		if c, err := color.Parse(value); err == nil {
			out.Put(&edits.Flatten{Background: &c})
		}
	case "blur":
		mapBlur(value, out)
	case "convolution":
		mapConvolution(value, out)
	case "equalize":
		out.Put(&edits.Toggle{Name: edits.OpNormalize, Enabled: true})
	case "fill":
		if c, err := color.Parse(value); err == nil {
			r := resizeOf(out)
			r.Fit = edits.FitContain
			r.Background = &c
			out.Put(r)
		}
	case "format":
		f := edits.Format(jpgPattern.ReplaceAllString(nonAlnumPattern.ReplaceAllString(value, ""), "jpeg"))
		for _, accepted := range acceptedToFormats {
			if f == accepted {
				out.Put(&edits.ToFormat{Format: f})
				break
			}
		}
	case "grayscale":
		out.Put(&edits.Toggle{Name: edits.OpGrayscale, Enabled: true})
	case "no_upscale":
		r := resizeOf(out)
		r.WithoutEnlargement = edits.Bool(true)
		out.Put(r)
	case "proportion":
		mapProportion(value, out)
	case "quality":
		mapQuality(value, fileFormat, out)
	case "rgb":
		mapRGB(value, out)
	case "rotate":
		if n := jsNumber(value); !math.IsNaN(n) {
			out.Put(&edits.Rotate{Angle: edits.Float(n)})
		}
	case "sharpen":
		parts := strings.Split(value, ",")
		if len(parts) > 1 {
			if sigma := jsNumber(parts[1]); !math.IsNaN(sigma) {
				out.Put(&edits.Sharpen{Sigma: edits.Float(1 + sigma/2), Enabled: true})
			}
		}
	case "stretch":
		r := resizeOf(out)
		if r.Fit != edits.FitInside {
			r.Fit = edits.FitFill
		}
		out.Put(r)
	case "strip_exif", "strip_icc":
		out.Put(&edits.Rotate{})
	case "upscale":
		r := resizeOf(out)
		r.Fit = edits.FitInside
		out.Put(r)
	case "watermark":
		mapWatermark(value, out)
	}
	return out
}

// resizeOf returns a copy of the resize edit in s, or an empty one.
func resizeOf(s *edits.Set) *edits.Resize {
	if r := s.Resize(); r != nil {
		c := *r
		return &c
	}
	return &edits.Resize{}
}

func mapBlur(value string, out *edits.Set) {
	parts := strings.Split(value, ",")
	args := make([]float64, len(parts))
	for i, p := range parts {
		if p == "" {
			args[i] = math.NaN()
			continue
		}
		args[i] = jsNumber(p)
	}
	sigma := math.NaN()
	if len(args) > 1 {
		sigma = args[1]
	}
	if math.IsNaN(sigma) {
		sigma = args[0] / 2
	}
	if math.IsNaN(sigma) {
		return
	}
	out.Put(&edits.Blur{Sigma: edits.Float(sigma), Enabled: true})
}

func mapConvolution(value string, out *edits.Set) {
	values := strings.Split(value, ",")
	if len(values) < 2 {
		return
	}
	entries := strings.Split(values[0], ";")
	kernel := make([]float64, len(entries))
	for i, e := range entries {
		kernel[i] = jsNumber(e)
		if math.IsNaN(kernel[i]) {
			return
		}
	}
	width := jsNumber(values[1])
	if math.IsNaN(width) || width <= 0 || width != math.Trunc(width) {
		return
	}
	out.Put(&edits.Convolve{
		Width:  int(width),
		Height: int(math.Ceil(float64(len(kernel)) / width)),
		Kernel: kernel,
	})
}

func mapProportion(value string, out *edits.Set) {
	ratio := jsNumber(value)
	if math.IsNaN(ratio) {
		return
	}
	r := resizeOf(out)
	if r.Width != nil && *r.Width != 0 && r.Height != nil && *r.Height != 0 {
		r.Width = edits.Float(*r.Width * ratio)
		r.Height = edits.Float(*r.Height * ratio)
	} else {
		r.Ratio = edits.Float(ratio)
	}
	out.Put(r)
}

// mapQuality targets the original file's format first and toFormat second.
func mapQuality(value, fileFormat string, out *edits.Set) {
	target, ok := qualityFormat(edits.Format(fileFormat))
	if !ok {
		target, ok = qualityFormat(out.Format())
	}
	if !ok {
		return
	}
	q := jsNumber(value)
	if math.IsNaN(q) {
		return
	}
	out.Put(&edits.Quality{Format: target, Quality: edits.Float(q)})
}

func qualityFormat(f edits.Format) (edits.Format, bool) {
	switch f {
	case edits.FormatJPG, edits.FormatJPEG:
		return edits.FormatJPEG, true
	case edits.FormatPNG, edits.FormatWebP, edits.FormatTIFF, edits.FormatHEIF, edits.FormatGIF:
		return f, true
	}
	return "", false
}

func mapRGB(value string, out *edits.Set) {
	parts := strings.Split(value, ",")
	if len(parts) < 3 {
		return
	}
	var channels [3]float64
	for i := range channels {
		pct := jsNumber(parts[i])
		if math.IsNaN(pct) {
			return
		}
		channels[i] = 255 * (pct / 100)
	}
	out.Put(&edits.Tint{Color: color.RGBA{R: channels[0], G: channels[1], B: channels[2]}})
}

func mapWatermark(value string, out *edits.Set) {
	args := strings.Split(whitespacePattern.ReplaceAllString(value, ""), ",")
	arg := func(i int) *edits.Token {
		if i < len(args) {
			return edits.TokenOf(args[i])
		}
		return nil
	}
	overlay := &edits.Overlay{
		Bucket: arg(0).String(),
		Key:    arg(1).String(),
		Alpha:  arg(4),
		WRatio: arg(5),
		HRatio: arg(6),
	}
	if x := arg(2); x != nil && validPosition(string(*x)) {
		overlay.Options.Left = x
	}
	if y := arg(3); y != nil && validPosition(string(*y)) {
		overlay.Options.Top = y
	}
	out.Put(overlay)
}

func validPosition(v string) bool {
	return positionPattern.MatchString(v) || !math.IsNaN(jsNumber(v))
}

// jsNumber converts a filter argument to a number. Surrounding whitespace
// is ignored, an empty string is zero and anything unparseable is NaN.
func jsNumber(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if strings.EqualFold(s, "nan") || strings.Contains(strings.ToLower(s), "inf") {
		return math.NaN()
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return n
}
