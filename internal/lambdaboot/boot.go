// Package lambdaboot builds the image handler's collaborators at cold start.
//
// The Lambda entry point and the local server both need the same set: AWS
// config, a blob store, the Rekognition classifier, the signing secret and
// a startup log. Each helper here fatals on misconfiguration so init()
// stays a short composition.
package lambdaboot

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"

	"github.com/fpang/image-handler/internal/classify"
	"github.com/fpang/image-handler/internal/config"
	"github.com/fpang/image-handler/internal/handler"
	"github.com/fpang/image-handler/internal/logging"
	"github.com/fpang/image-handler/internal/request"
	"github.com/fpang/image-handler/internal/server"
	"github.com/fpang/image-handler/internal/signature"
	"github.com/fpang/image-handler/internal/storage"
)

// SecretField is the key read from the JSON document in SECRETS_PARAM.
const SecretField = "SECRET_KEY"

// AWSClients holds the core AWS SDK clients.
type AWSClients struct {
	Config aws.Config
	SSM    *ssm.Client
}

// InitAWS loads the default AWS config and returns it along with common clients.
func InitAWS(region string) AWSClients {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load AWS config")
	}
	log.Debug().Str("region", cfg.Region).Msg("AWS config loaded")
	return AWSClients{
		Config: cfg,
		SSM:    ssm.NewFromConfig(cfg),
	}
}

// InitStore builds the blob store for cfg. The S3 backend reuses the
// already-loaded AWS config.
func InitStore(clients AWSClients, cfg config.Storage) storage.BlobStore {
	if cfg.Backend == config.BackendS3 || cfg.Backend == "" {
		return storage.NewS3StoreFromClient(s3.NewFromConfig(clients.Config))
	}
	store, err := storage.New(context.Background(), cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Backend).Msg("Failed to create blob store")
	}
	return store
}

// InitSecrets returns the signing secret provider, or nil when signing is
// off. A SECRET_KEY set directly in the environment takes precedence over
// the SSM parameter.
func InitSecrets(ssmClient signature.SSMAPI, cfg config.Config) signature.SecretProvider {
	if !cfg.EnableSignature {
		return nil
	}
	if cfg.SecretKey != "" {
		return signature.StaticSecret(cfg.SecretKey)
	}
	if cfg.SecretsParam == "" {
		log.Fatal().Msg("ENABLE_SIGNATURE requires SECRETS_PARAM or SECRET_KEY")
	}
	return signature.NewSSMSecretProvider(ssmClient, cfg.SecretsParam, SecretField)
}

// NewService wires the decoder, handler and validator over store.
func NewService(cfg config.Config, store storage.BlobStore, classifier classify.Classifier, secrets signature.SecretProvider) *server.Service {
	var validator server.Validator
	if secrets != nil {
		validator = signature.NewValidator(secrets)
	}
	return server.New(cfg, request.NewDecoder(cfg), store, handler.New(store, classifier), validator)
}

// StartupLog is a convenience wrapper for the startup logger.
func StartupLog(name string, cfg config.Config, initStart time.Time) *logging.StartupLogger {
	buckets, err := request.GetAllowedSourceBuckets(cfg)
	if err != nil {
		log.Warn().Err(err).Msg("No source buckets configured")
	}
	l := logging.NewStartupLogger(name).
		InitDuration(time.Since(initStart)).
		SourceBuckets(buckets).
		Feature("autoWebP", cfg.AutoWebP).
		Feature("signature", cfg.EnableSignature).
		Feature("cors", cfg.CORSEnabled).
		Feature("defaultFallbackImage", cfg.EnableDefaultFallbackImage).
		Feature("rewrite", cfg.HasRewrite()).
		Config("storageBackend", cfg.Storage.Backend)
	if cfg.SecretsParam != "" {
		l.SSMParam("secrets", cfg.SecretsParam)
	}
	return l
}
