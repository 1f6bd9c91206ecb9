package objectstore

import (
	"context"
	"errors"
	"fmt"
	"granulemigration/internal/application/common/slogger"
	"granulemigration/internal/config"
	"granulemigration/internal/port/outbound"
	"io"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const errorLogContentType = "application/json"

// objectPutter is the part of *minio.Client the store needs.
type objectPutter interface {
	PutObject(
		ctx context.Context,
		bucketName, objectName string,
		reader io.Reader,
		objectSize int64,
		opts minio.PutObjectOptions,
	) (minio.UploadInfo, error)
}

// S3ErrorLogStore uploads error logs to an S3 compatible bucket.
type S3ErrorLogStore struct {
	client objectPutter
	bucket string
}

var _ outbound.ErrorLogStore = (*S3ErrorLogStore)(nil)

// NewS3ErrorLogStore creates a store for cfg.Bucket on cfg.Endpoint.
func NewS3ErrorLogStore(cfg config.ErrorLogConfig) (*S3ErrorLogStore, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("error log bucket is required")
	}
	if cfg.Endpoint == "" {
		return nil, errors.New("error log endpoint is required")
	}

	endpoint, secure, err := parseEndpoint(cfg.Endpoint, cfg.UseSSL)
	if err != nil {
		return nil, err
	}

	opts := &minio.Options{
		Secure: secure,
		Region: cfg.Region,
	}
	if cfg.AccessKey != "" {
		opts.Creds = credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, "")
	} else {
		opts.Creds = credentials.NewEnvAWS()
	}

	client, err := minio.New(endpoint, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create object store client: %w", err)
	}
	return &S3ErrorLogStore{client: client, bucket: cfg.Bucket}, nil
}

// parseEndpoint accepts either host:port or a URL whose scheme decides TLS.
func parseEndpoint(endpoint string, useSSL bool) (string, bool, error) {
	if !strings.Contains(endpoint, "://") {
		return endpoint, useSSL, nil
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", false, fmt.Errorf("invalid error log endpoint: %w", err)
	}
	if u.Host == "" {
		return "", false, fmt.Errorf("invalid error log endpoint %q", endpoint)
	}
	return u.Host, u.Scheme == "https", nil
}

// Upload implements outbound.ErrorLogStore.
func (s *S3ErrorLogStore) Upload(ctx context.Context, key string, body io.Reader, size int64) (string, error) {
	if key == "" {
		return "", errors.New("object key is required")
	}
	info, err := s.client.PutObject(ctx, s.bucket, key, body, size, minio.PutObjectOptions{
		ContentType: errorLogContentType,
	})
	if err != nil {
		return "", classifyError(s.bucket, key, err)
	}

	location := fmt.Sprintf("s3://%s/%s", s.bucket, key)
	slogger.Info(ctx, "Error log uploaded", slogger.Fields2("location", location, "size", info.Size))
	return location, nil
}

func classifyError(bucket, key string, err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchBucket":
		return fmt.Errorf("error log bucket %q does not exist: %w", bucket, err)
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
		return fmt.Errorf("error log upload to %q not permitted: %w", bucket, err)
	}
	return fmt.Errorf("upload s3://%s/%s: %w", bucket, key, err)
}
