package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"

	"github.com/ocabr/observatory/internal/config"
	"github.com/ocabr/observatory/internal/domain"
)

// S3API is the subset of the S3 client the store uses.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Store keeps archives in an S3 bucket. MinIO and other compatible
// stores work through the endpoint and path-style settings.
type S3Store struct {
	client S3API
	bucket string
	logger zerolog.Logger
}

// NewS3Store builds a store from the artifact S3 settings.
func NewS3Store(ctx context.Context, cfg config.S3Config, logger zerolog.Logger) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return NewS3StoreWithClient(client, cfg.Bucket, logger), nil
}

// NewS3StoreWithClient wraps an already configured client, for tests.
func NewS3StoreWithClient(client S3API, bucket string, logger zerolog.Logger) *S3Store {
	return &S3Store{
		client: client,
		bucket: bucket,
		logger: logger.With().Str("component", "artifact-s3").Logger(),
	}
}

// Save uploads the archive and returns its object key.
func (s *S3Store) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(name),
		Body:        r,
		ContentType: aws.String("application/zip"),
	})
	if err != nil {
		return "", fmt.Errorf("uploading artifact %s: %w", name, err)
	}
	s.logger.Debug().Str("bucket", s.bucket).Str("key", name).Msg("artifact uploaded")
	return name, nil
}

// Open streams an uploaded archive.
func (s *S3Store) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return nil, domain.NewNotFoundError("artifact", path)
	}
	if err != nil {
		return nil, fmt.Errorf("fetching artifact %s: %w", path, err)
	}
	return out.Body, nil
}

// Delete removes an uploaded archive. S3 treats a missing key as
// success, matching the Store contract.
func (s *S3Store) Delete(ctx context.Context, path string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		return fmt.Errorf("deleting artifact %s: %w", path, err)
	}
	return nil
}

// NewStore selects the backend from configuration.
func NewStore(ctx context.Context, cfg config.ArtifactsConfig, logger zerolog.Logger) (Store, error) {
	switch cfg.Backend {
	case "s3":
		return NewS3Store(ctx, cfg.S3, logger)
	case "", "local":
		return NewLocalStore(cfg.MediaRoot, logger)
	default:
		return nil, fmt.Errorf("unknown artifact backend %q", cfg.Backend)
	}
}
