package request

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/fpang/image-handler/internal/apierror"
	"github.com/fpang/image-handler/internal/config"
	"github.com/fpang/image-handler/internal/edits"
	"github.com/fpang/image-handler/internal/storage"
)

const acceptWithWebP = "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,image/apng,*/*;q=0.8,application/signed-exchange;v=b3"

func TestGetOutputFormat(t *testing.T) {
	tests := []struct {
		name   string
		auto   bool
		accept string
		want   edits.Format
	}{
		{"accept includes webp", true, acceptWithWebP, edits.FormatWebP},
		{"accept without webp", true, "text/html,image/apng,*/*;q=0.8", ""},
		{"auto webp disabled", false, acceptWithWebP, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := Event{Path: "/image.jpg", Headers: map[string]string{"accept": tt.accept}}
			if got := GetOutputFormat(config.Config{AutoWebP: tt.auto}, ev, TypeThumbor); got != tt.want {
				t.Errorf("GetOutputFormat() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDetermineOutputFormat(t *testing.T) {
	tests := []struct {
		name       string
		doc        string
		edits      *edits.Set
		wantFormat edits.Format
		wantEffort *int
	}{
		{"toFormat wins", `{"key":"k","outputFormat":"jpeg"}`, edits.New(&edits.ToFormat{Format: edits.FormatPNG}), edits.FormatPNG, nil},
		{"outputFormat field", `{"key":"k","outputFormat":"png"}`, edits.New(), edits.FormatPNG, nil},
		{"webp effort", `{"key":"k","outputFormat":"webp","effort":3}`, edits.New(), edits.FormatWebP, edits.Int(3)},
		{"webp effort not a number", `{"key":"k","outputFormat":"webp","effort":"invalid"}`, edits.New(), edits.FormatWebP, edits.Int(4)},
		{"webp effort at upper bound", `{"key":"k","outputFormat":"webp","effort":6}`, edits.New(), edits.FormatWebP, edits.Int(6)},
		{"webp effort too large", `{"key":"k","outputFormat":"webp","effort":7}`, edits.New(), edits.FormatWebP, edits.Int(4)},
		{"webp effort negative", `{"key":"k","outputFormat":"webp","effort":-1}`, edits.New(), edits.FormatWebP, edits.Int(4)},
		{"webp effort truncated", `{"key":"k","outputFormat":"webp","effort":2.378}`, edits.New(), edits.FormatWebP, edits.Int(2)},
		{"effort ignored for png", `{"key":"k","outputFormat":"png","effort":2}`, edits.New(), edits.FormatPNG, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDecoder(config.Config{})
			desc := &Descriptor{RequestType: TypeDefault, Edits: tt.edits}
			d.DetermineOutputFormat(desc, Event{Path: encodePath(t, tt.doc)})
			if desc.OutputFormat != tt.wantFormat {
				t.Errorf("OutputFormat = %q, want %q", desc.OutputFormat, tt.wantFormat)
			}
			switch {
			case tt.wantEffort == nil && desc.Effort != nil:
				t.Errorf("Effort = %d, want nil", *desc.Effort)
			case tt.wantEffort != nil && (desc.Effort == nil || *desc.Effort != *tt.wantEffort):
				t.Errorf("Effort = %v, want %d", desc.Effort, *tt.wantEffort)
			}
		})
	}
}

func TestFixQuality(t *testing.T) {
	tests := []struct {
		name        string
		requestType Type
		format      edits.Format
		want        string
	}{
		{"renamed to output format", TypeThumbor, edits.FormatJPEG, `{"jpeg":{"quality":80}}`},
		{"unsupported output format", TypeThumbor, "pdf", `{"png":{"quality":80}}`},
		{"same format", TypeThumbor, edits.FormatPNG, `{"png":{"quality":80}}`},
		{"default request", TypeDefault, edits.FormatJPEG, `{"png":{"quality":80}}`},
		{"no output format", TypeCustom, "", `{"png":{"quality":80}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			desc := &Descriptor{
				RequestType:  tt.requestType,
				OutputFormat: tt.format,
				Edits:        edits.New(&edits.Quality{Format: edits.FormatPNG, Quality: edits.Float(80)}),
			}
			FixQuality(desc)
			if got := editsJSON(t, desc); got != tt.want {
				t.Errorf("edits = %s, want %s", got, tt.want)
			}
			if tt.format != "" && desc.ContentType != "image/"+string(tt.format) {
				t.Errorf("ContentType = %q", desc.ContentType)
			}
		})
	}
}

func TestInferImageType(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"png", []byte{0x89, 0x50, 0x4e, 0x47}, ContentTypePNG},
		{"jpeg db", []byte{0xff, 0xd8, 0xff, 0xdb}, ContentTypeJPEG},
		{"jpeg e0", []byte{0xff, 0xd8, 0xff, 0xe0}, ContentTypeJPEG},
		{"jpeg ee", []byte{0xff, 0xd8, 0xff, 0xee, 0, 0, 0, 0}, ContentTypeJPEG},
		{"jpeg e1", []byte{0xff, 0xd8, 0xff, 0xe1}, ContentTypeJPEG},
		{"webp", []byte{0x52, 0x49, 0x46, 0x46}, ContentTypeWebP},
		{"tiff le", []byte{0x49, 0x49, 0x2a, 0x00}, ContentTypeTIFF},
		{"tiff be", []byte{0x4d, 0x4d, 0x00, 0x2a}, ContentTypeTIFF},
		{"gif", []byte{0x47, 0x49, 0x46, 0x38}, ContentTypeGIF},
		{"svg", []byte(`<svg xmlns="http://www.w3.org/2000/svg" width="1" height="1"></svg>`), ContentTypeSVG},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := InferImageType(tt.data)
			if err != nil {
				t.Fatalf("InferImageType() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("InferImageType() = %q, want %q", got, tt.want)
			}
		})
	}

	_, err := InferImageType([]byte{0, 0, 0, 0, 0, 0, 0})
	apiErr, ok := apierror.As(err)
	if !ok || apiErr.Status != 500 || apiErr.Code != apierror.CodeRequestTypeError {
		t.Errorf("InferImageType() error = %v, want 500 RequestTypeError", err)
	}
}

func TestSetupOriginal(t *testing.T) {
	d := NewDecoder(config.Config{SourceBuckets: "b"})
	modified := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	desc := &Descriptor{RequestType: TypeThumbor, Edits: edits.New()}
	obj := &storage.Object{
		Body:         []byte{0x89, 0x50, 0x4e, 0x47},
		ContentType:  "binary/octet-stream",
		LastModified: &modified,
	}
	if err := d.SetupOriginal(desc, Event{Path: "/image"}, obj); err != nil {
		t.Fatalf("SetupOriginal() error = %v", err)
	}
	if desc.ContentType != ContentTypePNG {
		t.Errorf("ContentType = %q", desc.ContentType)
	}
	if desc.CacheControl != DefaultCacheControl {
		t.Errorf("CacheControl = %q", desc.CacheControl)
	}
	if desc.LastModified != "Tue, 02 Jan 2024 03:04:05 GMT" {
		t.Errorf("LastModified = %q", desc.LastModified)
	}
	if desc.Expires != "" || desc.OutputFormat != "" {
		t.Errorf("Expires = %q, OutputFormat = %q", desc.Expires, desc.OutputFormat)
	}
}

func TestSetupOriginal_SVG(t *testing.T) {
	d := NewDecoder(config.Config{AutoWebP: true})
	svg := &storage.Object{Body: []byte("<svg/>"), ContentType: ContentTypeSVG, CacheControl: "no-cache"}
	ev := Event{Path: "/image.svg", Headers: map[string]string{"Accept": acceptWithWebP}}

	edited := &Descriptor{RequestType: TypeThumbor, Edits: edits.New(&edits.Toggle{Name: edits.OpGrayscale, Enabled: true})}
	if err := d.SetupOriginal(edited, ev, svg); err != nil {
		t.Fatalf("SetupOriginal() error = %v", err)
	}
	if edited.OutputFormat != edits.FormatWebP || edited.ContentType != "image/webp" {
		t.Errorf("edited svg: OutputFormat = %q, ContentType = %q", edited.OutputFormat, edited.ContentType)
	}
	if edited.CacheControl != "no-cache" {
		t.Errorf("CacheControl = %q", edited.CacheControl)
	}

	plain := &Descriptor{RequestType: TypeThumbor, Edits: edits.New()}
	if err := d.SetupOriginal(plain, ev, svg); err != nil {
		t.Fatalf("SetupOriginal() error = %v", err)
	}
	if plain.OutputFormat != "" || plain.ContentType != ContentTypeSVG {
		t.Errorf("plain svg: OutputFormat = %q, ContentType = %q", plain.OutputFormat, plain.ContentType)
	}
}

func TestParseEffortNull(t *testing.T) {
	if got := parseEffort(json.RawMessage("null")); got != nil {
		t.Errorf("parseEffort(null) = %d, want nil", *got)
	}
}
