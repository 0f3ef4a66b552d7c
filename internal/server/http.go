package server

import (
	"encoding/base64"
	"net/http"
	"time"

	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/zerolog/log"

	"github.com/fpang/image-handler/internal/request"
)

// ServeHTTP adapts a plain HTTP request into an Event and writes the
// Response back.
func (s *Service) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	resp := s.Handle(r.Context(), EventFromHTTP(r))

	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	body := []byte(resp.Body)
	if resp.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(resp.Body)
		if err != nil {
			log.Error().Err(err).Msg("Failed to decode response body")
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		body = decoded
	}
	w.WriteHeader(resp.StatusCode)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := w.Write(body); err != nil {
		log.Debug().Err(err).Msg("Client went away")
	}
}

// EventFromHTTP builds an Event from r, keeping the first value of each
// header and query parameter.
func EventFromHTTP(r *http.Request) request.Event {
	ev := request.Event{
		Path:                  r.URL.Path,
		Headers:               make(map[string]string, len(r.Header)),
		QueryStringParameters: make(map[string]string),
	}
	for k, v := range r.Header {
		if len(v) > 0 {
			ev.Headers[k] = v[0]
		}
	}
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			ev.QueryStringParameters[k] = v[0]
		}
	}
	return ev
}

// Handler wraps the service with gzip for JSON error bodies and request
// logging.
func (s *Service) Handler() http.Handler {
	return withLogging(gzhttp.GzipHandler(s))
}

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}
