// Package main provides the Lambda entry point for the image handler.
//
// The function sits behind API Gateway (REST proxy integration) or an
// Application Load Balancer. Each invocation decodes one image request,
// fetches the original from the blob store, applies the edits and returns
// the rendered image base64-encoded.
//
// Memory: 1024 MB
// Timeout: 30 seconds
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog/log"

	"github.com/fpang/image-handler/internal/classify"
	"github.com/fpang/image-handler/internal/config"
	"github.com/fpang/image-handler/internal/lambdaboot"
	"github.com/fpang/image-handler/internal/logging"
	"github.com/fpang/image-handler/internal/request"
	"github.com/fpang/image-handler/internal/server"
)

// commitHash is set at build time with -ldflags "-X main.commitHash=...".
var commitHash string

var (
	service   *server.Service
	coldStart = true
)

func init() {
	initStart := time.Now()
	logging.Init()

	cfg := config.FromEnv()
	clients := lambdaboot.InitAWS(cfg.Storage.Region)
	store := lambdaboot.InitStore(clients, cfg.Storage)
	secrets := lambdaboot.InitSecrets(clients.SSM, cfg)
	service = lambdaboot.NewService(cfg, store, classify.NewRekognition(clients.Config), secrets)

	lambdaboot.StartupLog("image-handler-lambda", cfg, initStart).
		CommitHash(commitHash).
		Log()
}

// toEvent reads either an API Gateway proxy request or an ALB target group
// request; both carry path, headers and query parameters under the same keys.
func toEvent(raw json.RawMessage) (request.Event, error) {
	var alb events.ALBTargetGroupRequest
	if err := json.Unmarshal(raw, &alb); err != nil {
		return request.Event{}, fmt.Errorf("decode event: %w", err)
	}
	if alb.RequestContext.ELB.TargetGroupArn != "" {
		return request.Event{
			Path:                  alb.Path,
			Headers:               alb.Headers,
			QueryStringParameters: alb.QueryStringParameters,
			ALB:                   true,
		}, nil
	}

	var apigw events.APIGatewayProxyRequest
	if err := json.Unmarshal(raw, &apigw); err != nil {
		return request.Event{}, fmt.Errorf("decode event: %w", err)
	}
	return request.Event{
		Path:                  apigw.Path,
		Headers:               apigw.Headers,
		QueryStringParameters: apigw.QueryStringParameters,
	}, nil
}

func handler(ctx context.Context, raw json.RawMessage) (server.Response, error) {
	if coldStart {
		coldStart = false
		log.Info().Str("function", "image-handler-lambda").Msg("Cold start, first invocation")
	}
	ev, err := toEvent(raw)
	if err != nil {
		log.Error().Err(err).Msg("Unreadable event")
		return server.Response{}, err
	}
	return service.Handle(ctx, ev), nil
}

func main() {
	lambda.Start(handler)
}
