package color

import (
	"fmt"
	"testing"

	"github.com/fpang/image-handler/internal/apierror"
)

func TestHexToRGBA(t *testing.T) {
	tests := []struct {
		hex     string
		alpha   float64
		r, g, b float64
	}{
		{"#000000", 1, 0, 0, 0},
		{"#ffffff", 0.5, 255, 255, 255},
		{"#FF8000", 1, 255, 128, 0},
		{"#abc", 1, 0xaa, 0xbb, 0xcc},
		{"#0a1", 0, 0x00, 0xaa, 0x11},
	}
	for _, tt := range tests {
		t.Run(tt.hex, func(t *testing.T) {
			got, err := HexToRGBA(tt.hex, tt.alpha)
			if err != nil {
				t.Fatalf("HexToRGBA(%q) error = %v", tt.hex, err)
			}
			if got.R != tt.r || got.G != tt.g || got.B != tt.b {
				t.Errorf("HexToRGBA(%q) = (%v,%v,%v), want (%v,%v,%v)", tt.hex, got.R, got.G, got.B, tt.r, tt.g, tt.b)
			}
			if got.Alpha == nil || *got.Alpha != tt.alpha {
				t.Errorf("HexToRGBA(%q) alpha = %v, want %v", tt.hex, got.Alpha, tt.alpha)
			}
		})
	}
}

func TestHexToRGBA_RoundTripsEveryChannelPair(t *testing.T) {
	for v := 0; v < 256; v += 17 {
		hex := fmt.Sprintf("#%02x%02x%02x", v, 255-v, v/2)
		got, err := HexToRGBA(hex, 1)
		if err != nil {
			t.Fatalf("HexToRGBA(%q) error = %v", hex, err)
		}
		if got.String() != hex {
			t.Errorf("HexToRGBA(%q).String() = %q", hex, got.String())
		}
	}
}

func TestHexToRGBA_ShortFormEqualsLongForm(t *testing.T) {
	short, err := HexToRGBA("#abc", 1)
	if err != nil {
		t.Fatal(err)
	}
	long, err := HexToRGBA("#aabbcc", 1)
	if err != nil {
		t.Fatal(err)
	}
	if short.String() != long.String() {
		t.Errorf("#abc = %s, #aabbcc = %s", short, long)
	}
}

func TestHexToRGBA_Invalid(t *testing.T) {
	for _, hex := range []string{"", "fff", "#ff", "#ffff", "#fffffff", "#ggg", "#12345z", "red"} {
		_, err := HexToRGBA(hex, 1)
		if !apierror.HasCode(err, apierror.CodeInvalidColor) {
			t.Errorf("HexToRGBA(%q) error = %v, want %s", hex, err, apierror.CodeInvalidColor)
		}
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		token   string
		r, g, b float64
	}{
		{"black", 0, 0, 0},
		{"White", 255, 255, 255},
		{"ffff", 255, 255, 255},
		{"ff0000", 255, 0, 0},
		{"00ff0080", 0, 255, 0},
		{"abc", 0xaa, 0xbb, 0xcc},
	}
	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			got, err := Parse(tt.token)
			if err != nil {
				t.Fatalf("Parse(%q) error = %v", tt.token, err)
			}
			if got.R != tt.r || got.G != tt.g || got.B != tt.b {
				t.Errorf("Parse(%q) = (%v,%v,%v), want (%v,%v,%v)", tt.token, got.R, got.G, got.B, tt.r, tt.g, tt.b)
			}
			if got.Alpha != nil {
				t.Errorf("Parse(%q) alpha = %v, want nil", tt.token, *got.Alpha)
			}
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, token := range []string{"", "notacolor", "12345", "ff"} {
		if _, err := Parse(token); err == nil {
			t.Errorf("Parse(%q) error = nil, want error", token)
		}
	}
}
