// Package server is the request envelope around the image handler: it
// validates, decodes, fetches and renders one event and shapes the response
// the way API Gateway and an ALB expect it.
package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fpang/image-handler/internal/apierror"
	"github.com/fpang/image-handler/internal/config"
	"github.com/fpang/image-handler/internal/metrics"
	"github.com/fpang/image-handler/internal/request"
	"github.com/fpang/image-handler/internal/signature"
	"github.com/fpang/image-handler/internal/storage"
)

// FallbackCacheControl is sent with the default fallback image.
const FallbackCacheControl = "max-age=31536000,public"

// Response is the proxy-integration result.
type Response struct {
	StatusCode      int               `json:"statusCode"`
	Headers         map[string]string `json:"headers"`
	Body            string            `json:"body"`
	IsBase64Encoded bool              `json:"isBase64Encoded"`
}

// Decoder turns an event into a descriptor.
type Decoder interface {
	Decode(ev request.Event) (*request.Descriptor, error)
	SetupOriginal(desc *request.Descriptor, ev request.Event, obj *storage.Object) error
}

// Processor renders a descriptor to a base64 body.
type Processor interface {
	Process(ctx context.Context, desc *request.Descriptor) (string, error)
}

// Validator checks the signature of a request path.
type Validator interface {
	Validate(ctx context.Context, path, signature string) error
}

// Service handles image requests.
type Service struct {
	cfg       config.Config
	decoder   Decoder
	store     storage.BlobStore
	processor Processor
	validator Validator
	metrics   io.Writer
}

// New creates a Service. validator may be nil when signing is disabled.
func New(cfg config.Config, decoder Decoder, store storage.BlobStore, processor Processor, validator Validator) *Service {
	return &Service{
		cfg:       cfg,
		decoder:   decoder,
		store:     store,
		processor: processor,
		validator: validator,
		metrics:   os.Stdout,
	}
}

// WithMetrics redirects the per-request EMF documents. A nil writer turns
// them off.
func (s *Service) WithMetrics(w io.Writer) *Service {
	s.metrics = w
	return s
}

// Handle processes one event.
func (s *Service) Handle(ctx context.Context, ev request.Event) Response {
	start := time.Now()
	logger := log.With().Str("requestId", requestID(ctx)).Str("path", ev.Path).Logger()
	ctx = logger.WithContext(ctx)

	requestType := ""
	resp, err := s.serve(ctx, ev, &requestType)
	if err != nil {
		resp = s.failure(ctx, ev, err)
	}

	if s.metrics != nil {
		rec := metrics.Request{
			RequestType: requestType,
			StatusCode:  resp.StatusCode,
			Latency:     time.Since(start),
			OutputBytes: len(resp.Body),
		}
		if apiErr, ok := apierror.As(err); ok {
			rec.ErrorCode = apiErr.Code
		} else if err != nil {
			rec.ErrorCode = apierror.CodeInternalError
		}
		metrics.RecordRequest(s.metrics, rec)
	}
	return resp
}

func (s *Service) serve(ctx context.Context, ev request.Event, requestType *string) (Response, error) {
	logger := zerolog.Ctx(ctx)

	if s.cfg.EnableSignature && s.validator != nil {
		if err := s.validator.Validate(ctx, ev.Path, ev.QueryStringParameters[signature.QueryParameter]); err != nil {
			return Response{}, err
		}
	}

	desc, err := s.decoder.Decode(ev)
	if err != nil {
		return Response{}, err
	}
	*requestType = string(desc.RequestType)
	logger.UpdateContext(func(c zerolog.Context) zerolog.Context {
		return c.Str("requestType", *requestType).Str("bucket", desc.Bucket).Str("key", desc.Key)
	})

	obj, err := s.store.Get(ctx, desc.Bucket, desc.Key)
	if err != nil {
		return Response{}, err
	}
	if err := s.decoder.SetupOriginal(desc, ev, obj); err != nil {
		return Response{}, err
	}

	body, err := s.processor.Process(ctx, desc)
	if err != nil {
		return Response{}, err
	}

	headers := s.responseHeaders(false, ev.ALB)
	headers["Content-Type"] = desc.ContentType
	if desc.Expires != "" {
		headers["Expires"] = desc.Expires
	}
	if desc.LastModified != "" {
		headers["Last-Modified"] = desc.LastModified
	}
	headers["Cache-Control"] = desc.CacheControl
	for k, v := range desc.Headers {
		headers[k] = v
	}

	logger.Info().Int("bytes", len(body)).Msg("Image processed")
	return Response{
		StatusCode:      http.StatusOK,
		Headers:         headers,
		Body:            body,
		IsBase64Encoded: true,
	}, nil
}

// failure turns err into the fallback image or a JSON error body.
func (s *Service) failure(ctx context.Context, ev request.Event, err error) Response {
	logger := zerolog.Ctx(ctx)
	apiErr, ok := apierror.As(err)
	if !ok {
		logger.Error().Err(err).Msg("Unexpected error")
		apiErr = apierror.InternalError()
	} else {
		logger.Warn().Err(err).Int("status", apiErr.Status).Str("code", apiErr.Code).Msg("Request failed")
	}

	if s.cfg.EnableDefaultFallbackImage && s.cfg.DefaultFallbackImageBucket != "" && s.cfg.DefaultFallbackImageKey != "" {
		resp, fbErr := s.fallback(ctx, ev, apiErr.Status)
		if fbErr == nil {
			return resp
		}
		logger.Error().Err(fbErr).
			Str("bucket", s.cfg.DefaultFallbackImageBucket).
			Str("key", s.cfg.DefaultFallbackImageKey).
			Msg("Default fallback image unavailable")
	}

	body, _ := json.Marshal(apiErr)
	return Response{
		StatusCode: apiErr.Status,
		Headers:    s.responseHeaders(true, ev.ALB),
		Body:       string(body),
	}
}

func (s *Service) fallback(ctx context.Context, ev request.Event, status int) (Response, error) {
	obj, err := s.store.Get(ctx, s.cfg.DefaultFallbackImageBucket, s.cfg.DefaultFallbackImageKey)
	if err != nil {
		return Response{}, err
	}
	headers := s.responseHeaders(false, ev.ALB)
	headers["Content-Type"] = obj.ContentType
	if obj.LastModified != nil {
		headers["Last-Modified"] = obj.LastModified.UTC().Format(http.TimeFormat)
	}
	headers["Cache-Control"] = FallbackCacheControl
	return Response{
		StatusCode:      status,
		Headers:         headers,
		Body:            base64.StdEncoding.EncodeToString(obj.Body),
		IsBase64Encoded: true,
	}, nil
}

func (s *Service) responseHeaders(isError, isALB bool) map[string]string {
	headers := map[string]string{
		"Access-Control-Allow-Methods": "GET",
		"Access-Control-Allow-Headers": "Content-Type, Authorization",
	}
	if !isALB {
		headers["Access-Control-Allow-Credentials"] = strconv.FormatBool(true)
	}
	if s.cfg.CORSEnabled {
		headers["Access-Control-Allow-Origin"] = s.cfg.CORSOrigin
	}
	if isError {
		headers["Content-Type"] = "application/json"
	}
	return headers
}

func requestID(ctx context.Context) string {
	if lc, ok := lambdacontext.FromContext(ctx); ok && lc.AwsRequestID != "" {
		return lc.AwsRequestID
	}
	return uuid.NewString()
}
