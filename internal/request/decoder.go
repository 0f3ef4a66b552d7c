package request

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/fpang/image-handler/internal/apierror"
	"github.com/fpang/image-handler/internal/config"
	"github.com/fpang/image-handler/internal/edits"
	"github.com/fpang/image-handler/internal/thumbor"
)

var (
	base64Pattern    = regexp.MustCompile(`^(/?)([0-9a-zA-Z+/]{4})*(([0-9a-zA-Z+/]{2}==)|([0-9a-zA-Z+/]{3}=))?$`)
	extensionPattern = regexp.MustCompile(`(?i)\.(jpg|jpeg|png|webp|tiff|tif|svg|gif)$`)
	legacyPattern    = regexp.MustCompile(`filters:|/\d+x\d+/|\d+x\d+:\d+x\d+|fit-in`)
	cropSegment      = regexp.MustCompile(`^\d+x\d+:\d+x\d+$`)
	sizeSegment      = regexp.MustCompile(`^\d+x\d+$`)
	fitInSegment     = regexp.MustCompile(`^fit-in$`)
	watermarkPattern = regexp.MustCompile(`filters:watermark\(.*\)`)
	filterPattern    = regexp.MustCompile(`filters:[^/]+`)
)

// Request is the JSON document carried by a Default request.
type Request struct {
	Bucket       *string           `json:"bucket,omitempty"`
	Key          string            `json:"key"`
	Edits        json.RawMessage   `json:"edits,omitempty"`
	OutputFormat edits.Format      `json:"outputFormat,omitempty"`
	Effort       json.RawMessage   `json:"effort,omitempty"`
	Headers      map[string]string `json:"-"`
}

// UnmarshalJSON accepts header values of any JSON type and keeps
// non-strings as their literal text.
func (r *Request) UnmarshalJSON(b []byte) error {
	type plain Request
	var aux struct {
		plain
		Headers map[string]json.RawMessage `json:"headers,omitempty"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*r = Request(aux.plain)
	if aux.Headers != nil {
		r.Headers = make(map[string]string, len(aux.Headers))
		for k, raw := range aux.Headers {
			var s string
			if err := json.Unmarshal(raw, &s); err != nil {
				s = string(raw)
			}
			r.Headers[k] = s
		}
	}
	return nil
}

// MarshalJSON is the inverse of UnmarshalJSON.
func (r Request) MarshalJSON() ([]byte, error) {
	type plain Request
	return json.Marshal(struct {
		plain
		Headers map[string]string `json:"headers,omitempty"`
	}{plain(r), r.Headers})
}

// Encode renders r as a Default request path.
func (r Request) Encode() (string, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	return "/" + base64.StdEncoding.EncodeToString(b), nil
}

// Decoder turns events into descriptors using a fixed configuration.
type Decoder struct {
	cfg        config.Config
	rewriter   *thumbor.Rewriter
	rewriteErr error
}

// NewDecoder compiles the rewrite expression once. A bad expression is
// reported by every Custom request rather than at construction, so the
// other dialects keep working.
func NewDecoder(cfg config.Config) *Decoder {
	d := &Decoder{cfg: cfg}
	if cfg.HasRewrite() {
		d.rewriter, d.rewriteErr = thumbor.NewRewriter(cfg.RewriteMatchPattern, cfg.RewriteSubstitution)
		if d.rewriteErr != nil {
			log.Warn().Err(d.rewriteErr).Str("pattern", cfg.RewriteMatchPattern).Msg("Invalid rewrite pattern")
		}
	}
	return d
}

// Decode resolves the dialect, bucket, key, edits and header overrides of
// ev. Output format and quality fix-ups need the original image and happen
// in SetupOriginal.
func (d *Decoder) Decode(ev Event) (*Descriptor, error) {
	requestType, err := d.ParseRequestType(ev)
	if err != nil {
		return nil, err
	}
	desc := &Descriptor{RequestType: requestType}

	if desc.Bucket, err = d.ParseImageBucket(ev, requestType); err != nil {
		return nil, err
	}
	if desc.Key, err = d.ParseImageKey(ev, requestType); err != nil {
		return nil, err
	}
	if desc.Edits, err = d.ParseImageEdits(ev, requestType); err != nil {
		return nil, err
	}
	if desc.Headers, err = d.ParseImageHeaders(ev, requestType); err != nil {
		return nil, err
	}

	log.Debug().
		Str("requestType", string(desc.RequestType)).
		Str("bucket", desc.Bucket).
		Str("key", desc.Key).
		Int("edits", desc.Edits.Len()).
		Msg("Request decoded")
	return desc, nil
}

// ParseRequestType picks the dialect of ev.
func (d *Decoder) ParseRequestType(ev Event) (Type, error) {
	if ev.Path == "" {
		return "", apierror.CannotReadPath()
	}
	if _, err := DecodeRequest(ev); err == nil {
		return TypeDefault, nil
	}
	log.Debug().Str("path", ev.Path).Msg("Path is not base64 encoded")

	if d.cfg.HasRewrite() {
		return TypeCustom, nil
	}
	if extensionPattern.MatchString(ev.Path) || legacyPattern.MatchString(ev.Path) {
		return TypeThumbor, nil
	}
	if base64Pattern.MatchString(ev.Path) {
		_, err := DecodeRequest(ev)
		return "", err
	}
	return "", apierror.RequestTypeError()
}

// ParseImageBucket returns the bucket named in a Default request, or the
// first allowed bucket otherwise.
func (d *Decoder) ParseImageBucket(ev Event, requestType Type) (string, error) {
	switch requestType {
	case TypeDefault:
		req, err := DecodeRequest(ev)
		if err != nil {
			return "", err
		}
		allowed, err := GetAllowedSourceBuckets(d.cfg)
		if err != nil {
			return "", err
		}
		if req.Bucket == nil {
			return allowed[0], nil
		}
		if !bucketAllowed(*req.Bucket, allowed) {
			return "", apierror.CannotAccessBucket()
		}
		return *req.Bucket, nil
	case TypeThumbor, TypeCustom:
		allowed, err := GetAllowedSourceBuckets(d.cfg)
		if err != nil {
			return "", err
		}
		return allowed[0], nil
	}
	return "", apierror.CannotFindBucket()
}

// bucketAllowed matches name against each entry literally, then as an
// anchored regular expression.
func bucketAllowed(name string, allowed []string) bool {
	for _, a := range allowed {
		if a == name {
			return true
		}
	}
	for _, a := range allowed {
		re, err := regexp.Compile(`^(?:` + a + `)$`)
		if err == nil && re.MatchString(name) {
			return true
		}
	}
	return false
}

// ParseImageKey returns the object key. For legacy paths every crop, size,
// filter and fit-in segment is removed and the remainder URL-decoded.
func (d *Decoder) ParseImageKey(ev Event, requestType Type) (string, error) {
	switch requestType {
	case TypeDefault:
		req, err := DecodeRequest(ev)
		if err != nil {
			return "", err
		}
		if req.Key == "" {
			return "", apierror.CannotFindImage()
		}
		return req.Key, nil
	case TypeThumbor, TypeCustom:
		path, err := d.legacyPath(ev, requestType)
		if err != nil {
			return "", err
		}
		return legacyKey(path)
	}
	return "", apierror.CannotFindImage()
}

func legacyKey(path string) (string, error) {
	path = dropSegments(path, cropSegment)
	path = dropSegments(path, sizeSegment)
	if loc := watermarkPattern.FindStringIndex(path); loc != nil {
		path = path[:loc[0]] + path[loc[1]:]
	}
	path = filterPattern.ReplaceAllLiteralString(path, "")
	path = dropSegments(path, fitInSegment)
	path = strings.TrimLeft(path, "/")

	key, err := url.PathUnescape(path)
	if err != nil || key == "" {
		return "", apierror.CannotFindImage()
	}
	return key, nil
}

// dropSegments removes every interior path segment matching re. The first
// segment (before any slash) and the last (the file name) are kept.
func dropSegments(path string, re *regexp.Regexp) string {
	parts := strings.Split(path, "/")
	out := parts[:1]
	for i := 1; i < len(parts); i++ {
		if i < len(parts)-1 && re.MatchString(parts[i]) {
			continue
		}
		out = append(out, parts[i])
	}
	return strings.Join(out, "/")
}

// legacyPath returns the path a legacy request is mapped from, applying the
// rewrite for Custom requests.
func (d *Decoder) legacyPath(ev Event, requestType Type) (string, error) {
	if requestType != TypeCustom {
		return ev.Path, nil
	}
	if d.rewriter == nil || d.rewriteErr != nil {
		return thumbor.ParseCustomPath(ev.Path, d.cfg.RewriteMatchPattern, d.cfg.RewriteSubstitution)
	}
	return d.rewriter.Rewrite(ev.Path), nil
}

// ParseImageEdits returns the edit set of the request.
func (d *Decoder) ParseImageEdits(ev Event, requestType Type) (*edits.Set, error) {
	switch requestType {
	case TypeDefault:
		req, err := DecodeRequest(ev)
		if err != nil {
			return nil, err
		}
		set := edits.New()
		if len(req.Edits) == 0 {
			return set, nil
		}
		if err := json.Unmarshal(req.Edits, set); err != nil {
			return nil, apierror.CannotParseEdits(err)
		}
		return set, nil
	case TypeThumbor, TypeCustom:
		path, err := d.legacyPath(ev, requestType)
		if err != nil {
			return nil, err
		}
		return thumbor.MapPathToEdits(path), nil
	}
	return nil, apierror.CannotParseEdits(fmt.Errorf("unknown request type %q", requestType))
}

// ParseImageHeaders returns the header overrides of a Default request.
// Legacy dialects never carry any.
func (d *Decoder) ParseImageHeaders(ev Event, requestType Type) (map[string]string, error) {
	if requestType != TypeDefault {
		return nil, nil
	}
	req, err := DecodeRequest(ev)
	if err != nil {
		return nil, err
	}
	if len(req.Headers) == 0 {
		return nil, nil
	}
	return req.Headers, nil
}

// DecodeRequest base64-decodes the path of a Default request. Padding is
// optional and both the standard and URL-safe alphabets are accepted.
func DecodeRequest(ev Event) (*Request, error) {
	if ev.Path == "" {
		return nil, apierror.CannotReadPath()
	}
	encoded := strings.TrimRight(strings.TrimPrefix(ev.Path, "/"), "=")

	var lastErr error
	for _, enc := range []*base64.Encoding{base64.RawStdEncoding, base64.RawURLEncoding} {
		raw, err := enc.DecodeString(encoded)
		if err != nil {
			lastErr = err
			continue
		}
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 || raw[0] != '{' {
			lastErr = fmt.Errorf("decoded path is not a JSON object")
			continue
		}
		var req Request
		if err := json.Unmarshal(raw, &req); err != nil {
			lastErr = err
			continue
		}
		return &req, nil
	}
	return nil, apierror.CannotDecodeRequest(lastErr)
}

// GetAllowedSourceBuckets splits the configured allow-list.
func GetAllowedSourceBuckets(cfg config.Config) ([]string, error) {
	var out []string
	for _, b := range strings.Split(cfg.SourceBuckets, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	if len(out) == 0 {
		return nil, apierror.NoSourceBuckets()
	}
	return out, nil
}
