package artifact

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	aws_config "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3Options configures the S3 client. Empty fields fall back to the AWS
// default chain (environment, shared config, instance role).
type S3Options struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// S3Store keeps artifacts as objects under bucket/prefix.
type S3Store struct {
	client     *s3.Client
	downloader *manager.Downloader
	uploader   *manager.Uploader
	bucket     string
	prefix     string
}

var _ Store = (*S3Store)(nil)

// NewS3Store connects to S3 (or an S3-compatible endpoint such as MinIO).
func NewS3Store(ctx context.Context, bucket, prefix string, opts S3Options) (*S3Store, error) {
	client, err := initializeS3Client(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &S3Store{
		client:     client,
		downloader: manager.NewDownloader(client),
		uploader:   manager.NewUploader(client),
		bucket:     bucket,
		prefix:     prefix,
	}, nil
}

func createS3Config(ctx context.Context, s3Endpoint, s3Region string, creds aws.CredentialsProvider) (aws.Config, error) {
	opts := []func(*aws_config.LoadOptions) error{}

	if s3Endpoint != "" {
		resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) { // nolint:staticcheck
			return aws.Endpoint{ // nolint:staticcheck
				PartitionID:       "aws",
				URL:               s3Endpoint,
				SigningRegion:     s3Region,
				HostnameImmutable: true, // required by MinIO
			}, nil
		})
		opts = append(opts, aws_config.WithEndpointResolverWithOptions(resolver)) // nolint:staticcheck
	}

	if s3Region != "" {
		opts = append(opts, aws_config.WithRegion(s3Region))
	}

	if creds != nil {
		opts = append(opts, aws_config.WithCredentialsProvider(creds))
	}

	return aws_config.LoadDefaultConfig(ctx, opts...)
}

func initializeS3Client(ctx context.Context, opts S3Options) (*s3.Client, error) {
	var creds aws.CredentialsProvider
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		creds = credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, "")
	}

	awsCfg, err := createS3Config(ctx, opts.Endpoint, opts.Region, creds)
	if err != nil {
		return nil, fmt.Errorf("failed to create aws config: %w", err)
	}

	// Public buckets are readable without credentials.
	if _, err := awsCfg.Credentials.Retrieve(ctx); err != nil {
		awsCfg, err = createS3Config(ctx, opts.Endpoint, opts.Region, aws.AnonymousCredentials{})
		if err != nil {
			return nil, fmt.Errorf("failed to create aws config with anonymous credentials: %w", err)
		}
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
	}), nil
}

// Location returns the s3:// URL of the store.
func (s *S3Store) Location() string {
	return "s3://" + path.Join(s.bucket, s.prefix)
}

func (s *S3Store) key(name string) string {
	return path.Join(s.prefix, name)
}

// EnsureBucket creates the bucket if it does not exist yet.
func (s *S3Store) EnsureBucket(ctx context.Context) error {
	_, err := s.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		var existErr *types.BucketAlreadyExists
		var ownedErr *types.BucketAlreadyOwnedByYou
		if errors.As(err, &existErr) || errors.As(err, &ownedErr) {
			return nil
		}
		return fmt.Errorf("failed to create bucket %s: %w", s.bucket, err)
	}
	slog.Info("bucket created", "bucket", s.bucket)
	return nil
}

// Get downloads an artifact into memory.
func (s *S3Store) Get(ctx context.Context, name string) ([]byte, error) {
	buf := manager.NewWriteAtBuffer(nil)
	_, err := s.downloader.Download(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s not found in %s", ErrPreconditionMissing, name, s.Location())
		}
		return nil, fmt.Errorf("failed to download s3://%s/%s: %w", s.bucket, s.key(name), err)
	}
	return buf.Bytes(), nil
}

// Exists reports whether an artifact object is present.
func (s *S3Store) Exists(ctx context.Context, name string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat s3://%s/%s: %w", s.bucket, s.key(name), err)
	}
	return true, nil
}

// Commit deletes the marker object and then uploads every entry in order.
// Single-object PUTs are atomic, so the marker appears only after the
// preceding entries are visible.
func (s *S3Store) Commit(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	marker := s.key(entries[len(entries)-1].Name)
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(marker),
	}); err != nil && !isNotFound(err) {
		return fmt.Errorf("%w: failed to delete s3://%s/%s: %w", ErrPersistence, s.bucket, marker, err)
	}

	for _, e := range entries {
		key := s.key(e.Name)
		if _, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
			Body:   bytes.NewReader(e.Data),
		}); err != nil {
			return fmt.Errorf("%w: failed to upload s3://%s/%s: %w", ErrPersistence, s.bucket, key, err)
		}
		slog.Debug("artifact uploaded", "bucket", s.bucket, "key", key, "bytes", len(e.Data))
	}
	return nil
}

func isNotFound(err error) bool {
	var noKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noKey) || errors.As(err, &notFound) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "404":
			return true
		}
	}
	return false
}
