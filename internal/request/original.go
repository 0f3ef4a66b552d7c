package request

import (
	"bytes"
	"net/http"

	"github.com/gabriel-vasile/mimetype"

	"github.com/fpang/image-handler/internal/apierror"
	"github.com/fpang/image-handler/internal/edits"
	"github.com/fpang/image-handler/internal/storage"
)

// Content types the handler can read.
const (
	ContentTypeJPEG = "image/jpeg"
	ContentTypePNG  = "image/png"
	ContentTypeWebP = "image/webp"
	ContentTypeTIFF = "image/tiff"
	ContentTypeGIF  = "image/gif"
	ContentTypeSVG  = "image/svg+xml"
)

// DefaultCacheControl is sent when the original carries none.
const DefaultCacheControl = "max-age=31536000,public"

var signatures = []struct {
	magic       []byte
	contentType string
}{
	{[]byte{0x89, 0x50, 0x4e, 0x47}, ContentTypePNG},
	{[]byte{0xff, 0xd8, 0xff, 0xdb}, ContentTypeJPEG},
	{[]byte{0xff, 0xd8, 0xff, 0xe0}, ContentTypeJPEG},
	{[]byte{0xff, 0xd8, 0xff, 0xee}, ContentTypeJPEG},
	{[]byte{0xff, 0xd8, 0xff, 0xe1}, ContentTypeJPEG},
	{[]byte{0x52, 0x49, 0x46, 0x46}, ContentTypeWebP},
	{[]byte{0x49, 0x49, 0x2a, 0x00}, ContentTypeTIFF},
	{[]byte{0x4d, 0x4d, 0x00, 0x2a}, ContentTypeTIFF},
	{[]byte{0x47, 0x49, 0x46, 0x38}, ContentTypeGIF},
}

var sniffable = []string{ContentTypeJPEG, ContentTypePNG, ContentTypeWebP, ContentTypeTIFF, ContentTypeGIF, ContentTypeSVG}

// InferImageType guesses the content type of an original stored without a
// usable one.
func InferImageType(data []byte) (string, error) {
	for _, sig := range signatures {
		if bytes.HasPrefix(data, sig.magic) {
			return sig.contentType, nil
		}
	}
	detected := mimetype.Detect(data)
	for _, ct := range sniffable {
		if detected.Is(ct) {
			return ct, nil
		}
	}
	return "", apierror.CannotInferImageType()
}

// SetupOriginal records the fetched original on desc and settles the
// output format and content type.
func (d *Decoder) SetupOriginal(desc *Descriptor, ev Event, obj *storage.Object) error {
	desc.OriginalImage = obj.Body

	desc.ContentType = obj.ContentType
	if desc.ContentType == "" || desc.ContentType == "binary/octet-stream" || desc.ContentType == "application/octet-stream" {
		ct, err := InferImageType(obj.Body)
		if err != nil {
			return err
		}
		desc.ContentType = ct
	}

	desc.CacheControl = obj.CacheControl
	if desc.CacheControl == "" {
		desc.CacheControl = DefaultCacheControl
	}
	if obj.Expires != nil {
		desc.Expires = obj.Expires.UTC().Format(http.TimeFormat)
	}
	if obj.LastModified != nil {
		desc.LastModified = obj.LastModified.UTC().Format(http.TimeFormat)
	}

	// Edited SVG has to be rasterised to something.
	isSVG := desc.ContentType == ContentTypeSVG
	if isSVG && desc.Edits.Len() > 0 && desc.Edits.Format() == "" {
		desc.OutputFormat = edits.FormatPNG
	}
	if !isSVG || desc.Edits.Format() != "" || desc.OutputFormat != "" {
		d.DetermineOutputFormat(desc, ev)
	}
	FixQuality(desc)
	return nil
}
