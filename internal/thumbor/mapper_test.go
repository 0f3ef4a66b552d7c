package thumbor

import (
	"encoding/json"
	"testing"

	"github.com/fpang/image-handler/internal/edits"
)

func mustJSON(t *testing.T, s *edits.Set) string {
	t.Helper()
	b, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	return string(b)
}

func TestMapPathToEdits(t *testing.T) {
	tests := []struct {
		name string
		path string
		want string
	}{
		{
			name: "crop",
			path: "/10x0:100x200/test-image-001.jpg",
			want: `{"crop":{"left":10,"top":0,"width":90,"height":200}}`,
		},
		{
			name: "malformed crop is ignored",
			path: "/abc:0:10x200/test-image-001.jpg",
			want: `{}`,
		},
		{
			name: "crop and resize",
			path: "/10x0:100x200/10x20/test-image-001.jpg",
			want: `{"crop":{"left":10,"top":0,"width":90,"height":200},"resize":{"width":10,"height":20}}`,
		},
		{
			name: "zero width is auto",
			path: "/0x300/test-image-001.jpg",
			want: `{"resize":{"height":300,"fit":"inside"}}`,
		},
		{
			name: "zero height is auto",
			path: "/300x0/test-image-001.jpg",
			want: `{"resize":{"width":300,"fit":"inside"}}`,
		},
		{
			name: "only the first dimension segment is used",
			path: "/100x200/filters:grayscale()/300x400/image.jpg",
			want: `{"resize":{"width":100,"height":200},"grayscale":true}`,
		},
		{
			name: "fit-in with dimensions and filter",
			path: "/fit-in/200x300/filters:grayscale()/test-image-001.jpg",
			want: `{"resize":{"width":200,"height":300,"fit":"inside"},"grayscale":true}`,
		},
		{
			name: "format then quality on extensionless file",
			path: "/filters:format(jpeg)/filters:quality(50)/image_without_extension",
			want: `{"toFormat":"jpeg","jpeg":{"quality":50}}`,
		},
		{
			name: "quality then format on extensionless file",
			path: "/filters:quality(50)/filters:format(jpeg)/image_without_extension",
			want: `{"toFormat":"jpeg","jpeg":{"quality":50}}`,
		},
		{
			name: "extension wins over format for quality",
			path: "/filters:quality(50)/filters:format(jpeg)/image_without_extension.png",
			want: `{"toFormat":"jpeg","png":{"quality":50}}`,
		},
		{
			name: "filters are applied in lexical order",
			path: "/filters:stretch()/filters:fill(fff)/image.jpg",
			want: `{"resize":{"fit":"fill","background":{"r":255,"g":255,"b":255}}}`,
		},
		{
			name: "no edits",
			path: "/test-image-001.jpg",
			want: `{}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mustJSON(t, MapPathToEdits(tt.path)); got != tt.want {
				t.Errorf("MapPathToEdits(%q) = %s, want %s", tt.path, got, tt.want)
			}
		})
	}
}

func TestMapCrop(t *testing.T) {
	got := MapCrop("/10x0:100x200/test-image-001.jpg")
	c, ok := got.Get(edits.OpCrop).(*edits.Crop)
	if !ok {
		t.Fatalf("MapCrop() = %s, want crop", mustJSON(t, got))
	}
	want := edits.Crop{Left: 10, Top: 0, Width: 90, Height: 200}
	if *c != want {
		t.Errorf("MapCrop() = %+v, want %+v", *c, want)
	}
	if n := MapCrop("/test-image-001.jpg").Len(); n != 0 {
		t.Errorf("MapCrop(no token).Len() = %d, want 0", n)
	}
}

func TestMapFitIn(t *testing.T) {
	if got := mustJSON(t, MapFitIn("/fit-in/test.jpg")); got != `{"resize":{"fit":"inside"}}` {
		t.Errorf("MapFitIn() = %s", got)
	}
	if got := MapFitIn("/test.jpg").Len(); got != 0 {
		t.Errorf("MapFitIn(no token).Len() = %d, want 0", got)
	}
}
