package objectstore

import (
	"context"
	"errors"
	"granulemigration/internal/config"
	"io"
	"strings"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePutter struct {
	bucket, key string
	body        string
	size        int64
	opts        minio.PutObjectOptions
	err         error
}

func (f *fakePutter) PutObject(
	_ context.Context,
	bucketName, objectName string,
	reader io.Reader,
	objectSize int64,
	opts minio.PutObjectOptions,
) (minio.UploadInfo, error) {
	if f.err != nil {
		return minio.UploadInfo{}, f.err
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	f.bucket, f.key, f.body, f.size, f.opts = bucketName, objectName, string(data), objectSize, opts
	return minio.UploadInfo{Bucket: bucketName, Key: objectName, Size: int64(len(data))}, nil
}

func TestS3ErrorLogStore_Upload(t *testing.T) {
	putter := &fakePutter{}
	store := &S3ErrorLogStore{client: putter, bucket: "internal"}
	body := `{"errors":["boom"]}`

	location, err := store.Upload(context.Background(), "stack/data-migration2-granulesAndFiles-errors-1.json",
		strings.NewReader(body), int64(len(body)))
	require.NoError(t, err)

	assert.Equal(t, "s3://internal/stack/data-migration2-granulesAndFiles-errors-1.json", location)
	assert.Equal(t, "internal", putter.bucket)
	assert.Equal(t, body, putter.body)
	assert.Equal(t, int64(len(body)), putter.size)
	assert.Equal(t, "application/json", putter.opts.ContentType)
}

func TestS3ErrorLogStore_UploadErrors(t *testing.T) {
	t.Run("empty key", func(t *testing.T) {
		store := &S3ErrorLogStore{client: &fakePutter{}, bucket: "internal"}
		_, err := store.Upload(context.Background(), "", strings.NewReader("{}"), 2)
		assert.Error(t, err)
	})

	tests := []struct {
		name    string
		err     error
		message string
	}{
		{"missing bucket", minio.ErrorResponse{Code: "NoSuchBucket", Message: "gone"}, "does not exist"},
		{"access denied", minio.ErrorResponse{Code: "AccessDenied", Message: "no"}, "not permitted"},
		{"transport", errors.New("connection refused"), "upload s3://internal/k"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &S3ErrorLogStore{client: &fakePutter{err: tt.err}, bucket: "internal"}
			_, err := store.Upload(context.Background(), "k", strings.NewReader("{}"), 2)
			require.Error(t, err)
			assert.ErrorContains(t, err, tt.message)
			assert.Contains(t, err.Error(), tt.err.Error())
		})
	}
}

func TestNewS3ErrorLogStore(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.ErrorLogConfig
		wantErr bool
	}{
		{"host and port", config.ErrorLogConfig{Endpoint: "localhost:9000", Bucket: "b", AccessKey: "a", SecretKey: "s"}, false},
		{"https url", config.ErrorLogConfig{Endpoint: "https://s3.us-east-1.amazonaws.com", Bucket: "b"}, false},
		{"missing bucket", config.ErrorLogConfig{Endpoint: "localhost:9000"}, true},
		{"missing endpoint", config.ErrorLogConfig{Bucket: "b"}, true},
		{"url without host", config.ErrorLogConfig{Endpoint: "http://", Bucket: "b"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := NewS3ErrorLogStore(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.cfg.Bucket, store.bucket)
		})
	}
}

func TestParseEndpoint(t *testing.T) {
	host, secure, err := parseEndpoint("http://minio:9000", true)
	require.NoError(t, err)
	assert.Equal(t, "minio:9000", host)
	assert.False(t, secure)

	host, secure, err = parseEndpoint("minio:9000", true)
	require.NoError(t, err)
	assert.Equal(t, "minio:9000", host)
	assert.True(t, secure)
}
