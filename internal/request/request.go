// Package request decodes an incoming image request into a Descriptor. It
// recognises three dialects: a base64-encoded JSON document, a legacy
// Thumbor-style URL path and a legacy path rewritten by a configured
// expression before mapping.
package request

import (
	"strings"

	"github.com/fpang/image-handler/internal/edits"
)

// Type is the request dialect.
type Type string

const (
	TypeDefault Type = "Default"
	TypeThumbor Type = "Thumbor"
	TypeCustom  Type = "Custom"
)

// Event is the transport-level request as delivered by API Gateway, an ALB
// or the local HTTP server.
type Event struct {
	Path                  string            `json:"path"`
	Headers               map[string]string `json:"headers,omitempty"`
	QueryStringParameters map[string]string `json:"queryStringParameters,omitempty"`
	// ALB is set when the event came through an Application Load Balancer.
	ALB bool `json:"-"`
}

// Header returns the value of the named header, ignoring case.
func (e Event) Header(name string) string {
	if v, ok := e.Headers[name]; ok {
		return v
	}
	for k, v := range e.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// Descriptor is the dialect-independent form of a request.
type Descriptor struct {
	RequestType  Type              `json:"requestType"`
	Bucket       string            `json:"bucket"`
	Key          string            `json:"key"`
	Edits        *edits.Set        `json:"edits,omitempty"`
	OutputFormat edits.Format      `json:"outputFormat,omitempty"`
	Effort       *int              `json:"effort,omitempty"`
	Headers      map[string]string `json:"headers,omitempty"`

	// Filled from the fetched original by SetupOriginal.
	ContentType   string `json:"contentType,omitempty"`
	CacheControl  string `json:"cacheControl,omitempty"`
	Expires       string `json:"expires,omitempty"`
	LastModified  string `json:"lastModified,omitempty"`
	OriginalImage []byte `json:"-"`
}
