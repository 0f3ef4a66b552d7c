// Package signature validates the HMAC signature carried by image request
// URLs when signing is enabled.
package signature

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/fpang/image-handler/internal/apierror"
)

// QueryParameter is the query-string key holding the signature.
const QueryParameter = "signature"

// SecretProvider returns the signing secret.
type SecretProvider interface {
	Secret(ctx context.Context) (string, error)
}

// StaticSecret is a SecretProvider for a secret known up front.
type StaticSecret string

func (s StaticSecret) Secret(context.Context) (string, error) { return string(s), nil }

// Sign returns the hex HMAC-SHA256 of path under secret.
func Sign(secret, path string) string {
	return hex.EncodeToString(mac(secret, path))
}

// Validator checks request signatures.
type Validator struct {
	secrets SecretProvider
}

// NewValidator creates a Validator.
func NewValidator(secrets SecretProvider) *Validator {
	return &Validator{secrets: secrets}
}

// Validate checks that signature is the HMAC of path.
func (v *Validator) Validate(ctx context.Context, path, signature string) error {
	if signature == "" {
		return apierror.New(http.StatusBadRequest, apierror.CodeAuthorizationQueryParameters,
			"Query-string requires the signature parameter.")
	}
	secret, err := v.secrets.Secret(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load signing secret")
		return &apierror.Error{
			Status:  http.StatusInternalServerError,
			Code:    apierror.CodeSignatureValidationFailure,
			Message: "Signature validation failed.",
			Err:     err,
		}
	}

	received, err := hex.DecodeString(signature)
	if err != nil || !hmac.Equal(received, mac(secret, path)) {
		log.Warn().Str("path", path).Msg("Signature does not match")
		return apierror.New(http.StatusForbidden, apierror.CodeSignatureDoesNotMatch,
			"Signature does not match.")
	}
	return nil
}

func mac(secret, path string) []byte {
	m := hmac.New(sha256.New, []byte(secret))
	m.Write([]byte(path))
	return m.Sum(nil)
}
