// Package config loads the handler configuration from the environment once
// per process. The resulting record is passed explicitly to the decoder and
// the service; nothing below this package reads the environment.
package config

import (
	"os"
	"strings"
)

// Storage backends.
const (
	BackendS3    = "s3"
	BackendMinio = "minio"
	BackendLocal = "local"
)

// Config is the process configuration.
type Config struct {
	// SourceBuckets is the raw comma-separated allow-list.
	SourceBuckets string
	AutoWebP      bool

	RewriteMatchPattern string
	RewriteSubstitution string

	EnableSignature bool
	SecretsParam    string
	SecretKey       string

	CORSEnabled bool
	CORSOrigin  string

	EnableDefaultFallbackImage bool
	DefaultFallbackImageBucket string
	DefaultFallbackImageKey    string

	Storage Storage
}

// Storage selects and configures the blob store.
type Storage struct {
	Backend   string
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Region    string
	Root      string
}

// HasRewrite reports whether both halves of the custom rewrite are set.
func (c Config) HasRewrite() bool {
	return c.RewriteMatchPattern != "" && c.RewriteSubstitution != ""
}

// FromEnv reads the configuration from the process environment.
func FromEnv() Config {
	return Load(os.Getenv)
}

// Load reads the configuration through getenv.
func Load(getenv func(string) string) Config {
	get := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}
	return Config{
		SourceBuckets:              getenv("SOURCE_BUCKETS"),
		AutoWebP:                   yes(getenv("AUTO_WEBP")),
		RewriteMatchPattern:        getenv("REWRITE_MATCH_PATTERN"),
		RewriteSubstitution:        getenv("REWRITE_SUBSTITUTION"),
		EnableSignature:            yes(getenv("ENABLE_SIGNATURE")),
		SecretsParam:               get("SECRETS_PARAM", ""),
		SecretKey:                  get("SECRET_KEY", ""),
		CORSEnabled:                yes(getenv("CORS_ENABLED")),
		CORSOrigin:                 getenv("CORS_ORIGIN"),
		EnableDefaultFallbackImage: yes(getenv("ENABLE_DEFAULT_FALLBACK_IMAGE")),
		DefaultFallbackImageBucket: get("DEFAULT_FALLBACK_IMAGE_BUCKET", ""),
		DefaultFallbackImageKey:    get("DEFAULT_FALLBACK_IMAGE_KEY", ""),
		Storage: Storage{
			Backend:   strings.ToLower(get("STORAGE_BACKEND", BackendS3)),
			Endpoint:  get("STORAGE_ENDPOINT", ""),
			AccessKey: get("STORAGE_ACCESS_KEY", ""),
			SecretKey: get("STORAGE_SECRET_KEY", ""),
			UseSSL:    get("STORAGE_USE_SSL", "true") == "true",
			Region:    get("AWS_REGION", ""),
			Root:      get("STORAGE_ROOT", "."),
		},
	}
}

// yes matches the "Yes" flag convention of the deployment templates.
func yes(v string) bool {
	return strings.TrimSpace(v) == "Yes"
}
