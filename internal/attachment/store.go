// Package attachment uploads binary attachments to S3-compatible object
// storage and rewrites document image references to their public URLs.
package attachment

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Uploader stores an object under key and returns its public URL.
type Uploader interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
}

// StoreConfig holds the object storage connection settings.
type StoreConfig struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	// PublicBaseURL, when set, prefixes object keys in returned URLs.
	PublicBaseURL string
}

// ObjectStore is an Uploader backed by minio-go.
type ObjectStore struct {
	client *minio.Client
	cfg    StoreConfig
}

// NewObjectStore creates a client for the configured endpoint. No request is
// made until the first upload.
func NewObjectStore(cfg StoreConfig) (*ObjectStore, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("attachment: endpoint and bucket are required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("attachment: new client: %w", err)
	}
	return &ObjectStore{client: client, cfg: cfg}, nil
}

// Put uploads r under key.
func (o *ObjectStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	_, err := o.client.PutObject(ctx, o.cfg.Bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("attachment: put %s: %w", key, err)
	}
	return o.URL(key), nil
}

// URL returns the public URL of key.
func (o *ObjectStore) URL(key string) string {
	escaped := (&url.URL{Path: key}).EscapedPath()
	if o.cfg.PublicBaseURL != "" {
		return strings.TrimSuffix(o.cfg.PublicBaseURL, "/") + "/" + escaped
	}
	scheme := "http"
	if o.cfg.UseSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s.%s/%s", scheme, o.cfg.Bucket, o.cfg.Endpoint, escaped)
}
