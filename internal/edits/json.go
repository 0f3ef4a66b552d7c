package edits

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/fpang/image-handler/internal/color"
)

// Token is a raw request value that may arrive as a JSON string or number.
type Token string

// TokenOf returns a token pointer for s.
func TokenOf(s string) *Token {
	t := Token(s)
	return &t
}

func (t *Token) String() string {
	if t == nil {
		return ""
	}
	return string(*t)
}

func (t *Token) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*t = Token(s)
		return nil
	}
	*t = Token(bytes.TrimSpace(b))
	return nil
}

func (t Token) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(t))
}

// UnmarshalJSON decodes an edits object, keeping key order. Values are
// taken as given: a key whose value does not fit its operation is kept as
// Unknown rather than failing the request.
func (s *Set) UnmarshalJSON(b []byte) error {
	*s = Set{items: make(map[Op]Edit)}
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("edits: expected object, got %v", tok)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("edits: unexpected key %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("edits: decode %s: %w", key, err)
		}
		s.Put(decodeEdit(Op(key), raw))
	}
	_, err = dec.Token()
	return err
}

// MarshalJSON encodes the set as an object in iteration order.
func (s *Set) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, op := range s.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, _ := json.Marshal(string(op))
		buf.Write(k)
		buf.WriteByte(':')
		v, err := json.Marshal(s.Get(op))
		if err != nil {
			return nil, fmt.Errorf("edits: encode %s: %w", op, err)
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (t *Toggle) MarshalJSON() ([]byte, error) { return json.Marshal(t.Enabled) }

func (t *Tint) MarshalJSON() ([]byte, error) { return json.Marshal(t.Color) }

func (b *Blur) MarshalJSON() ([]byte, error) {
	if b.Sigma != nil {
		return json.Marshal(*b.Sigma)
	}
	return json.Marshal(b.Enabled)
}

func (s *Sharpen) MarshalJSON() ([]byte, error) {
	if s.Sigma != nil {
		return json.Marshal(*s.Sigma)
	}
	return json.Marshal(s.Enabled)
}

func (r *Rotate) MarshalJSON() ([]byte, error) {
	if r.Angle == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*r.Angle)
}

func (t *ToFormat) MarshalJSON() ([]byte, error) { return json.Marshal(string(t.Format)) }

func (u *Unknown) MarshalJSON() ([]byte, error) {
	if len(u.Raw) == 0 {
		return []byte("null"), nil
	}
	return u.Raw, nil
}

func decodeEdit(op Op, raw json.RawMessage) Edit {
	unknown := &Unknown{Name: op, Raw: append([]byte(nil), raw...)}
	isObject := len(raw) > 0 && raw[0] == '{'
	isTrue := string(raw) == "true"

	switch op {
	case OpResize:
		if !isObject {
			return unknown
		}
		if r, ok := decodeResize(raw); ok {
			return r
		}
	case OpCrop:
		if !isObject {
			return unknown
		}
		var v map[string]json.RawMessage
		if json.Unmarshal(raw, &v) != nil {
			return unknown
		}
		c := &Crop{}
		for name, dst := range map[string]*int{"left": &c.Left, "top": &c.Top, "width": &c.Width, "height": &c.Height} {
			if n, ok := number(v[name]); ok {
				*dst = roundInt(n)
			}
		}
		return c
	case OpSmartCrop:
		if isTrue {
			return &SmartCrop{}
		}
		if !isObject {
			return unknown
		}
		var v map[string]json.RawMessage
		if json.Unmarshal(raw, &v) != nil {
			return unknown
		}
		c := &SmartCrop{}
		if n, ok := number(v["faceIndex"]); ok {
			c.FaceIndex = Int(int(n))
		}
		if n, ok := number(v["padding"]); ok {
			c.Padding = Int(int(n))
		}
		return c
	case OpRoundCrop:
		if isTrue {
			return &RoundCrop{}
		}
		if !isObject {
			return unknown
		}
		var v map[string]json.RawMessage
		if json.Unmarshal(raw, &v) != nil {
			return unknown
		}
		return &RoundCrop{
			Top:  optNumber(v["top"]),
			Left: optNumber(v["left"]),
			Rx:   optNumber(v["rx"]),
			Ry:   optNumber(v["ry"]),
		}
	case OpOverlayWith:
		if !isObject {
			return unknown
		}
		var o Overlay
		if json.Unmarshal(raw, &o) != nil {
			return unknown
		}
		return &o
	case OpContentModeration:
		if isTrue {
			return &ContentModeration{}
		}
		if !isObject {
			return unknown
		}
		var v map[string]json.RawMessage
		if json.Unmarshal(raw, &v) != nil {
			return unknown
		}
		c := &ContentModeration{
			MinConfidence: optNumber(v["minConfidence"]),
			Blur:          optNumber(v["blur"]),
		}
		if l, ok := v["moderationLabels"]; ok {
			_ = json.Unmarshal(l, &c.ModerationLabels)
		}
		return c
	case OpFlip, OpFlop, OpGrayscale, OpGreyscale, OpNegate, OpNormalize, OpNormalise:
		enabled := true
		if b, ok := boolean(raw); ok {
			enabled = b
		}
		return &Toggle{Name: op, Enabled: enabled}
	case OpTint:
		if c, ok := decodeColor(raw); ok {
			return &Tint{Color: *c}
		}
	case OpBlur:
		sigma, enabled, ok := sigmaValue(raw)
		if ok {
			return &Blur{Sigma: sigma, Enabled: enabled}
		}
	case OpSharpen:
		if isObject {
			var v map[string]json.RawMessage
			if json.Unmarshal(raw, &v) == nil {
				return &Sharpen{Sigma: optNumber(v["sigma"]), Enabled: true}
			}
			return unknown
		}
		sigma, enabled, ok := sigmaValue(raw)
		if ok {
			return &Sharpen{Sigma: sigma, Enabled: enabled}
		}
	case OpConvolve:
		if !isObject {
			return unknown
		}
		var c Convolve
		if json.Unmarshal(raw, &c) != nil {
			return unknown
		}
		return &c
	case OpRotate:
		if string(raw) == "null" {
			return &Rotate{}
		}
		if n, ok := number(raw); ok {
			return &Rotate{Angle: Float(n)}
		}
	case OpToFormat:
		var f string
		if json.Unmarshal(raw, &f) == nil && f != "" {
			return &ToFormat{Format: Format(strings.ToLower(f))}
		}
	case OpFlatten:
		if isTrue {
			return &Flatten{}
		}
		if !isObject {
			return unknown
		}
		var v map[string]json.RawMessage
		if json.Unmarshal(raw, &v) != nil {
			return unknown
		}
		f := &Flatten{}
		if bg, ok := v["background"]; ok {
			if c, ok := decodeColor(bg); ok {
				f.Background = c
			}
		}
		return f
	case OpJPEG, OpPNG, OpWebP, OpTIFF, OpHEIF, OpGIF:
		if isTrue {
			return &Quality{Format: Format(op)}
		}
		if !isObject {
			return unknown
		}
		var v map[string]json.RawMessage
		if json.Unmarshal(raw, &v) != nil {
			return unknown
		}
		q := &Quality{Format: Format(op), Quality: optNumber(v["quality"])}
		if b, ok := boolean(v["lossless"]); ok {
			q.Lossless = Bool(b)
		}
		if b, ok := boolean(v["progressive"]); ok {
			q.Progressive = Bool(b)
		}
		return q
	}
	return unknown
}

func decodeResize(raw json.RawMessage) (*Resize, bool) {
	var v map[string]json.RawMessage
	if json.Unmarshal(raw, &v) != nil {
		return nil, false
	}
	r := &Resize{}
	if n, ok := number(v["width"]); ok && n != 0 {
		r.Width = Float(n)
	}
	if n, ok := number(v["height"]); ok && n != 0 {
		r.Height = Float(n)
	}
	var s string
	if json.Unmarshal(v["fit"], &s) == nil {
		r.Fit = Fit(s)
	}
	if json.Unmarshal(v["position"], &s) == nil {
		r.Position = s
	}
	if bg, ok := v["background"]; ok {
		if c, ok := decodeColor(bg); ok {
			r.Background = c
		}
	}
	if b, ok := boolean(v["withoutEnlargement"]); ok {
		r.WithoutEnlargement = Bool(b)
	}
	if b, ok := boolean(v["withoutReduction"]); ok {
		r.WithoutReduction = Bool(b)
	}
	r.Ratio = optNumber(v["ratio"])
	return r, true
}

// sigmaValue decodes the blur/sharpen argument: a number, a boolean, or
// null for the default.
func sigmaValue(raw json.RawMessage) (*float64, bool, bool) {
	if string(raw) == "null" {
		return nil, true, true
	}
	if b, ok := boolean(raw); ok {
		return nil, b, true
	}
	if n, ok := number(raw); ok {
		return Float(n), true, true
	}
	return nil, false, false
}

// boolean accepts only the literals true and false.
func boolean(raw json.RawMessage) (bool, bool) {
	switch string(bytes.TrimSpace(raw)) {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	return false, false
}

// number accepts a JSON number or a numeric string.
func number(raw json.RawMessage) (float64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func optNumber(raw json.RawMessage) *float64 {
	if n, ok := number(raw); ok {
		return Float(n)
	}
	return nil
}

func decodeColor(raw json.RawMessage) (*color.RGBA, bool) {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		var (
			c   color.RGBA
			err error
		)
		if strings.HasPrefix(s, "#") {
			c, err = color.HexToRGBA(s, 1)
		} else {
			c, err = color.Parse(s)
		}
		if err != nil {
			return nil, false
		}
		return &c, true
	}
	var v map[string]json.RawMessage
	if json.Unmarshal(raw, &v) != nil {
		return nil, false
	}
	c := &color.RGBA{}
	c.R, _ = number(v["r"])
	c.G, _ = number(v["g"])
	c.B, _ = number(v["b"])
	c.Alpha = optNumber(v["alpha"])
	return c, true
}

func roundInt(f float64) int {
	if f < 0 {
		return -int(-f + 0.5)
	}
	return int(f + 0.5)
}
