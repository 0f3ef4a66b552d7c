package signature

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"
)

// SSMAPI is the subset of the SSM client used here.
type SSMAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// SSMSecretProvider reads a JSON document from a SecureString parameter
// and returns one of its fields. The first successful read is cached for
// the life of the process.
type SSMSecretProvider struct {
	client SSMAPI
	param  string
	field  string

	mu     sync.Mutex
	secret string
}

// NewSSMSecretProvider creates a provider for field of the JSON document
// stored at param.
func NewSSMSecretProvider(client SSMAPI, param, field string) *SSMSecretProvider {
	return &SSMSecretProvider{client: client, param: param, field: field}
}

// Secret returns the cached secret, fetching it on first use.
func (p *SSMSecretProvider) Secret(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.secret != "" {
		return p.secret, nil
	}

	start := time.Now()
	out, err := p.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(p.param),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("get parameter %s: %w", p.param, err)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return "", fmt.Errorf("parameter %s has no value", p.param)
	}

	var doc map[string]string
	if err := json.Unmarshal([]byte(*out.Parameter.Value), &doc); err != nil {
		return "", fmt.Errorf("parameter %s is not a JSON object: %w", p.param, err)
	}
	secret := doc[p.field]
	if secret == "" {
		return "", fmt.Errorf("parameter %s has no %q field", p.param, p.field)
	}
	p.secret = secret
	log.Debug().Str("param", p.param).Dur("elapsed", time.Since(start)).Msg("Signing secret loaded from SSM")
	return secret, nil
}
