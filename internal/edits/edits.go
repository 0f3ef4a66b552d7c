// Package edits holds the canonical edit set shared by the request decoder
// and the image handler: an ordered mapping from operation name to a typed
// parameter record.
package edits

import (
	"github.com/fpang/image-handler/internal/color"
)

// Op names an edit operation.
type Op string

const (
	OpResize            Op = "resize"
	OpCrop              Op = "crop"
	OpSmartCrop         Op = "smartCrop"
	OpRoundCrop         Op = "roundCrop"
	OpOverlayWith       Op = "overlayWith"
	OpContentModeration Op = "contentModeration"
	OpFlip              Op = "flip"
	OpFlop              Op = "flop"
	OpGrayscale         Op = "grayscale"
	OpGreyscale         Op = "greyscale"
	OpNegate            Op = "negate"
	OpNormalize         Op = "normalize"
	OpNormalise         Op = "normalise"
	OpTint              Op = "tint"
	OpBlur              Op = "blur"
	OpSharpen           Op = "sharpen"
	OpConvolve          Op = "convolve"
	OpRotate            Op = "rotate"
	OpToFormat          Op = "toFormat"
	OpFlatten           Op = "flatten"
	OpJPEG              Op = "jpeg"
	OpPNG               Op = "png"
	OpWebP              Op = "webp"
	OpTIFF              Op = "tiff"
	OpHEIF              Op = "heif"
	OpGIF               Op = "gif"
)

// Format is an image format name as used in requests.
type Format string

const (
	FormatJPG  Format = "jpg"
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
	FormatWebP Format = "webp"
	FormatTIFF Format = "tiff"
	FormatHEIF Format = "heif"
	FormatHEIC Format = "heic"
	FormatRaw  Format = "raw"
	FormatGIF  Format = "gif"
)

// QualityFormats are the formats that accept a per-format quality block.
var QualityFormats = []Format{FormatJPEG, FormatPNG, FormatWebP, FormatTIFF, FormatHEIF, FormatGIF}

// IsQualityFormat reports whether f has a quality block.
func IsQualityFormat(f Format) bool {
	for _, q := range QualityFormats {
		if q == f {
			return true
		}
	}
	return false
}

// Fit is a resize fit mode.
type Fit string

const (
	FitCover   Fit = "cover"
	FitContain Fit = "contain"
	FitFill    Fit = "fill"
	FitInside  Fit = "inside"
	FitOutside Fit = "outside"
)

// Edit is one operation's parameters.
type Edit interface {
	Op() Op
}

// Resize. Width and Height nil mean auto, never zero.
type Resize struct {
	Width              *float64    `json:"width,omitempty"`
	Height             *float64    `json:"height,omitempty"`
	Fit                Fit         `json:"fit,omitempty"`
	Position           string      `json:"position,omitempty"`
	Background         *color.RGBA `json:"background,omitempty"`
	WithoutEnlargement *bool       `json:"withoutEnlargement,omitempty"`
	WithoutReduction   *bool       `json:"withoutReduction,omitempty"`
	Ratio              *float64    `json:"ratio,omitempty"`
}

func (*Resize) Op() Op { return OpResize }

// Crop is a pixel region. Zero is a valid coordinate.
type Crop struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (*Crop) Op() Op { return OpCrop }

// SmartCrop crops around a detected face.
type SmartCrop struct {
	FaceIndex *int `json:"faceIndex,omitempty"`
	Padding   *int `json:"padding,omitempty"`
}

func (*SmartCrop) Op() Op { return OpSmartCrop }

// RoundCrop masks the image with an ellipse. A nil or negative field
// falls back to the image-derived default.
type RoundCrop struct {
	Top  *float64 `json:"top,omitempty"`
	Left *float64 `json:"left,omitempty"`
	Rx   *float64 `json:"rx,omitempty"`
	Ry   *float64 `json:"ry,omitempty"`
}

func (*RoundCrop) Op() Op { return OpRoundCrop }

// Overlay composites another stored image on top. Ratio, alpha and
// position values are kept as raw tokens and validated when applied.
type Overlay struct {
	Bucket  string         `json:"bucket"`
	Key     string         `json:"key"`
	Alpha   *Token         `json:"alpha,omitempty"`
	WRatio  *Token         `json:"wRatio,omitempty"`
	HRatio  *Token         `json:"hRatio,omitempty"`
	Options OverlayOptions `json:"options"`
}

// OverlayOptions positions an overlay. Tokens are absolute pixels, a
// percentage with a "p" suffix, or negative offsets from the far edge.
type OverlayOptions struct {
	Left *Token `json:"left,omitempty"`
	Top  *Token `json:"top,omitempty"`
}

func (*Overlay) Op() Op { return OpOverlayWith }

// ContentModeration blurs the image when the classifier reports labels.
type ContentModeration struct {
	MinConfidence    *float64 `json:"minConfidence,omitempty"`
	Blur             *float64 `json:"blur,omitempty"`
	ModerationLabels []string `json:"moderationLabels,omitempty"`
}

func (*ContentModeration) Op() Op { return OpContentModeration }

// Toggle is a parameterless operation such as flip or grayscale.
type Toggle struct {
	Name    Op
	Enabled bool
}

func (t *Toggle) Op() Op { return t.Name }

// Tint recolours the image.
type Tint struct {
	Color color.RGBA
}

func (*Tint) Op() Op { return OpTint }

// Blur. A nil Sigma with Enabled set is a mild fast blur.
type Blur struct {
	Sigma   *float64
	Enabled bool
}

func (*Blur) Op() Op { return OpBlur }

// Sharpen. A nil Sigma with Enabled set is a mild fast sharpen.
type Sharpen struct {
	Sigma   *float64
	Enabled bool
}

func (*Sharpen) Op() Op { return OpSharpen }

// Convolve applies a custom kernel.
type Convolve struct {
	Width  int       `json:"width"`
	Height int       `json:"height"`
	Kernel []float64 `json:"kernel"`
	Scale  *float64  `json:"scale,omitempty"`
	Offset *float64  `json:"offset,omitempty"`
}

func (*Convolve) Op() Op { return OpConvolve }

// Rotate. A nil Angle is the explicit null sentinel: drop metadata and do
// not auto-orient.
type Rotate struct {
	Angle *float64
}

func (*Rotate) Op() Op { return OpRotate }

// ToFormat names the requested output format.
type ToFormat struct {
	Format Format
}

func (*ToFormat) Op() Op { return OpToFormat }

// Flatten merges alpha onto a background.
type Flatten struct {
	Background *color.RGBA `json:"background,omitempty"`
}

func (*Flatten) Op() Op { return OpFlatten }

// Quality is a per-format encoder options block keyed by format name.
type Quality struct {
	Format      Format   `json:"-"`
	Quality     *float64 `json:"quality,omitempty"`
	Lossless    *bool    `json:"lossless,omitempty"`
	Progressive *bool    `json:"progressive,omitempty"`
}

func (q *Quality) Op() Op { return Op(q.Format) }

// Unknown keeps a key outside the vocabulary, or a known key whose value
// has an unusable shape. The handler ignores it.
type Unknown struct {
	Name Op
	Raw  []byte
}

func (u *Unknown) Op() Op { return u.Name }

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }
