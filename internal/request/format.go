package request

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/fpang/image-handler/internal/config"
	"github.com/fpang/image-handler/internal/edits"
)

// DefaultWebPEffort is used when a requested effort is unusable.
const DefaultWebPEffort = 4

// maxWebPEffort matches libwebp's method range 0..6. Larger values fall
// back to DefaultWebPEffort.
const maxWebPEffort = 6

// GetOutputFormat negotiates webp from the Accept header when auto-webp is
// on; otherwise a Default request's outputFormat field is used. An empty
// result means no explicit format.
func GetOutputFormat(cfg config.Config, ev Event, requestType Type) edits.Format {
	if cfg.AutoWebP && strings.Contains(ev.Header("Accept"), "image/webp") {
		return edits.FormatWebP
	}
	if requestType == TypeDefault {
		if req, err := DecodeRequest(ev); err == nil {
			return req.OutputFormat
		}
	}
	return ""
}

// DetermineOutputFormat sets desc.OutputFormat, preferring edits.toFormat,
// and the webp effort of a Default request.
func (d *Decoder) DetermineOutputFormat(desc *Descriptor, ev Event) {
	outputFormat := GetOutputFormat(d.cfg, ev, desc.RequestType)

	if outputFormat == edits.FormatWebP && desc.RequestType == TypeDefault {
		if req, err := DecodeRequest(ev); err == nil && len(req.Effort) > 0 {
			desc.Effort = parseEffort(req.Effort)
		}
	}

	if f := desc.Edits.Format(); f != "" {
		desc.OutputFormat = f
	} else if outputFormat != "" {
		desc.OutputFormat = outputFormat
	}
}

// parseEffort truncates the requested effort toward zero. Values outside
// 0..6 and non-numbers fall back to DefaultWebPEffort. JSON null is absent.
func parseEffort(raw json.RawMessage) *int {
	if string(raw) == "null" {
		return nil
	}
	effort := DefaultWebPEffort
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		var s string
		if json.Unmarshal(raw, &s) == nil {
			if n, perr := strconv.ParseFloat(strings.TrimSpace(s), 64); perr == nil {
				v, err = n, nil
			}
		}
		if err != nil {
			return &effort
		}
	}
	if t := math.Trunc(v); t >= 0 && t <= maxWebPEffort {
		effort = int(t)
	}
	return &effort
}

// FixQuality sets the response content type from the output format and,
// for legacy requests, renames a quality block keyed by another format to
// the output format.
func FixQuality(desc *Descriptor) {
	if desc.OutputFormat == "" {
		return
	}
	desc.ContentType = "image/" + string(desc.OutputFormat)

	if desc.RequestType != TypeThumbor && desc.RequestType != TypeCustom {
		return
	}
	if !edits.IsQualityFormat(desc.OutputFormat) {
		return
	}
	for _, op := range desc.Edits.Keys() {
		if !edits.IsQualityFormat(edits.Format(op)) {
			continue
		}
		if edits.Format(op) != desc.OutputFormat {
			desc.Edits.Rename(op, edits.Op(desc.OutputFormat))
		}
		return
	}
}
