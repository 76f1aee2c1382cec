// Package storage uploads generated files (bulk upload results, exports).
package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/jafarshop/opsapi/internal/config"
)

// Content types of the files we generate
const (
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	ContentTypePDF  = "application/pdf"
)

// Uploader stores an object and returns its public URL. An empty URL means uploads are disabled.
type Uploader interface {
	Upload(ctx context.Context, objectName string, data []byte, contentType string) (string, error)
}

// GCSUploader writes to a Google Cloud Storage bucket
type GCSUploader struct {
	client *storage.Client
	bucket string
	logger *zap.Logger
}

func NewGCSUploader(ctx context.Context, cfg config.GCSConfig, logger *zap.Logger) (*GCSUploader, error) {
	var opts []option.ClientOption
	if strings.TrimSpace(cfg.CredentialsJSON) != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &GCSUploader{client: client, bucket: cfg.Bucket, logger: logger}, nil
}

func (u *GCSUploader) Upload(ctx context.Context, objectName string, data []byte, contentType string) (string, error) {
	wc := u.client.Bucket(u.bucket).Object(objectName).NewWriter(ctx)
	wc.ContentType = contentType
	if _, err := wc.Write(data); err != nil {
		_ = wc.Close()
		return "", fmt.Errorf("failed to upload %s: %w", objectName, err)
	}
	if err := wc.Close(); err != nil {
		return "", fmt.Errorf("failed to close writer for %s: %w", objectName, err)
	}
	u.logger.Info("Uploaded object", zap.String("bucket", u.bucket), zap.String("object", objectName), zap.Int("bytes", len(data)))
	return PublicURL(u.bucket, objectName), nil
}

func (u *GCSUploader) Close() error {
	return u.client.Close()
}

// PublicURL is the storage.googleapis.com URL of an object
func PublicURL(bucket, objectName string) string {
	return (&url.URL{Scheme: "https", Host: "storage.googleapis.com", Path: "/" + bucket + "/" + objectName}).String()
}

// Noop discards uploads
type Noop struct{}

func (Noop) Upload(context.Context, string, []byte, string) (string, error) { return "", nil }
