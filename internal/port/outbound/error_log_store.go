package outbound

import (
	"context"
	"io"
)

// ErrorLogStore persists a closed error log to durable object storage.
type ErrorLogStore interface {
	// Upload stores size bytes read from body under key and returns the
	// resulting location (for example "s3://bucket/key").
	Upload(ctx context.Context, key string, body io.Reader, size int64) (string, error)
}
