// Package color parses the color tokens accepted by image requests.
package color

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/colornames"

	"github.com/fpang/image-handler/internal/apierror"
)

// RGBA is a color as carried in edit parameters. R, G and B are 0..255,
// Alpha is 0..1.
type RGBA struct {
	R     float64  `json:"r"`
	G     float64  `json:"g"`
	B     float64  `json:"b"`
	Alpha *float64 `json:"alpha,omitempty"`
}

var hexPattern = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// HexToRGBA converts "#rgb" or "#rrggbb" to an RGBA with the given alpha.
func HexToRGBA(hex string, alpha float64) (RGBA, error) {
	if !hexPattern.MatchString(hex) {
		return RGBA{}, apierror.InvalidColor(hex)
	}
	c, err := colorful.Hex(expand(hex))
	if err != nil {
		return RGBA{}, apierror.InvalidColor(hex)
	}
	r, g, b := c.RGB255()
	a := alpha
	return RGBA{R: float64(r), G: float64(g), B: float64(b), Alpha: &a}, nil
}

// expand doubles each digit of a 3-digit hex color.
func expand(hex string) string {
	if len(hex) != 4 {
		return hex
	}
	var sb strings.Builder
	sb.WriteByte('#')
	for i := 1; i < 4; i++ {
		sb.WriteByte(hex[i])
		sb.WriteByte(hex[i])
	}
	return sb.String()
}

var legacyHexPattern = regexp.MustCompile(`^[0-9a-fA-F]{3,8}$`)

// Parse resolves a legacy color token: a CSS color name, or hex digits
// without the leading '#'. Four and eight digit forms carry an alpha digit
// pair, which is dropped.
func Parse(token string) (RGBA, error) {
	name := strings.ToLower(strings.TrimSpace(token))
	if c, ok := colornames.Map[name]; ok {
		return RGBA{R: float64(c.R), G: float64(c.G), B: float64(c.B)}, nil
	}
	if !legacyHexPattern.MatchString(name) {
		return RGBA{}, apierror.InvalidColor(token)
	}
	switch len(name) {
	case 4:
		name = name[:3]
	case 8:
		name = name[:6]
	case 3, 6:
	default:
		return RGBA{}, apierror.InvalidColor(token)
	}
	c, err := HexToRGBA("#"+name, 1)
	if err != nil {
		return RGBA{}, err
	}
	c.Alpha = nil
	return c, nil
}

// String renders the color as #rrggbb.
func (c RGBA) String() string {
	return fmt.Sprintf("#%02x%02x%02x", clamp8(c.R), clamp8(c.G), clamp8(c.B))
}

// NRGBA returns the 8-bit representation used when painting.
func (c RGBA) NRGBA() (r, g, b, a uint8) {
	a = 255
	if c.Alpha != nil {
		a = clamp8(*c.Alpha * 255)
	}
	return clamp8(c.R), clamp8(c.G), clamp8(c.B), a
}

func clamp8(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(v + 0.5)
	}
}
