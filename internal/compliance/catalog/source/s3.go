package source

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"docbridge/internal/compliance/models"
	"docbridge/pkg/platform/sentinel"
)

// ObjectGetter is the slice of the S3 API S3Source needs.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Config configures an S3-compatible requirements object.
// Endpoint is optional; set it for R2, MinIO and similar stores.
type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	Key       string
}

// S3Source reads a JSON or YAML requirements document from object storage.
type S3Source struct {
	client ObjectGetter
	bucket string
	key    string
}

// NewS3Source builds an S3Source with a client from cfg.
func NewS3Source(ctx context.Context, cfg S3Config) (*S3Source, error) {
	region := cfg.Region
	if region == "" {
		region = "auto"
	}
	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3SourceWithClient(client, cfg.Bucket, cfg.Key), nil
}

// NewS3SourceWithClient builds an S3Source around an existing client.
func NewS3SourceWithClient(client ObjectGetter, bucket, key string) *S3Source {
	return &S3Source{client: client, bucket: bucket, key: key}
}

func (s *S3Source) Name() string { return "s3://" + s.bucket + "/" + s.key }

func (s *S3Source) Fetch(ctx context.Context) ([]models.JurisdictionRequirement, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, fmt.Errorf("requirements object %s: %w", s.key, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("s3 get object: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read requirements object: %w", err)
	}
	return Decode(data, FormatFor(s.key))
}
