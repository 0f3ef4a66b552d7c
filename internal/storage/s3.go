package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// S3Store reads objects from Amazon S3.
type S3Store struct {
	client *s3.Client
}

// NewS3Store loads the default AWS configuration and creates a client.
func NewS3Store(ctx context.Context, region string) (*S3Store, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return NewS3StoreFromClient(s3.NewFromConfig(cfg)), nil
}

// NewS3StoreFromClient wraps an existing client.
func NewS3StoreFromClient(client *s3.Client) *S3Store {
	return &S3Store{client: client}
}

// Get downloads bucket/key into memory.
func (s *S3Store) Get(ctx context.Context, bucket, key string) (*Object, error) {
	log.Debug().Str("bucket", bucket).Str("key", key).Msg("Downloading from S3")
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, mapS3Error(key, err)
	}
	defer result.Body.Close()

	body, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, mapS3Error(key, fmt.Errorf("read body: %w", err))
	}
	return &Object{
		Body:         body,
		ContentType:  aws.ToString(result.ContentType),
		CacheControl: aws.ToString(result.CacheControl),
		Expires:      parseHTTPTime(aws.ToString(result.ExpiresString)),
		LastModified: result.LastModified,
	}, nil
}

func parseHTTPTime(v string) *time.Time {
	if v == "" {
		return nil
	}
	t, err := http.ParseTime(v)
	if err != nil {
		log.Debug().Str("value", v).Msg("Ignoring unparseable Expires header")
		return nil
	}
	return &t
}
