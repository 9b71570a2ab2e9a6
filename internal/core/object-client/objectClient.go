package objectclient

import (
	"context"
)

// ObjectClient defines interactions with S3 or any object storage. Objects
// are addressed by an opaque locator key inside a fixed per-process bucket.
type ObjectClient interface {
	UploadFile(ctx context.Context, key string, data []byte, contentType string) error
	DownloadFile(ctx context.Context, key string) ([]byte, error)
	DeleteFile(ctx context.Context, key string) error
}
