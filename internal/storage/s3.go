package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"folio/internal/config"
	"folio/internal/observability"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Options configures an S3 or S3-compatible bucket.
type S3Options struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	// PublicURL is the base URL objects are served from. Derived from the
	// bucket and region when empty.
	PublicURL string
}

// S3Store implements AssetStore for AWS S3 and S3-compatible services.
type S3Store struct {
	client    *s3.Client
	bucket    string
	publicURL string
}

// NewS3Store creates an S3 store. Static credentials are used when given,
// otherwise the default AWS credential chain.
func NewS3Store(ctx context.Context, opts S3Options) (*S3Store, error) {
	if opts.Bucket == "" {
		return nil, errors.New("asset bucket is required")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(opts.Region)}
	if opts.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Store{
		client:    client,
		bucket:    opts.Bucket,
		publicURL: publicURL(opts),
	}, nil
}

func publicURL(opts S3Options) string {
	switch {
	case opts.PublicURL != "":
		return strings.TrimRight(opts.PublicURL, "/")
	case opts.Endpoint != "":
		return strings.TrimRight(opts.Endpoint, "/") + "/" + opts.Bucket
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", opts.Bucket, opts.Region)
	}
}

// Upload puts body under key.
func (s *S3Store) Upload(ctx context.Context, key string, body []byte, contentType string) (Object, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	observability.AssetOperations.WithLabelValues("upload", observability.Result(err)).Inc()
	if err != nil {
		return Object{}, fmt.Errorf("failed to put object: %w", err)
	}
	return Object{FileID: key, URL: s.publicURL + "/" + key}, nil
}

// Delete removes an object. Deleting a missing key succeeds.
func (s *S3Store) Delete(ctx context.Context, fileID string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(fileID),
	})
	observability.AssetOperations.WithLabelValues("delete", observability.Result(err)).Inc()
	if err != nil {
		slog.ErrorContext(ctx, "asset delete failed", "file_id", fileID, "error", err)
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// FromConfig picks S3 when a bucket is configured. Without one, production
// refuses to start and other modes fall back to a MemoryStore.
func FromConfig(ctx context.Context, cfg *config.Config) (AssetStore, error) {
	if cfg.AssetBucket == "" {
		if cfg.IsProduction() {
			return nil, errors.New("ASSET_BUCKET is required in production")
		}
		slog.Warn("ASSET_BUCKET not set, assets are kept in memory")
		return NewMemoryStore("http://localhost:" + cfg.Port + "/assets"), nil
	}
	return NewS3Store(ctx, S3Options{
		Bucket:    cfg.AssetBucket,
		Region:    cfg.AssetRegion,
		Endpoint:  cfg.AssetEndpoint,
		AccessKey: cfg.AssetAccessKey,
		SecretKey: cfg.AssetSecretKey,
		PublicURL: cfg.AssetPublicURL,
	})
}
