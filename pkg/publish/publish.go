// Package publish uploads exported descriptors to S3-compatible object
// storage so other repositories' release jobs can fetch a shared config.
package publish

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/Promptonauts/releasepipe/pkg/config"
	"github.com/Promptonauts/releasepipe/pkg/descriptor"
)

var ErrDisabled = errors.New("object store publishing is not configured")

// ObjectClient is the subset of *minio.Client the publisher needs.
type ObjectClient interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucket, object string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

type Publisher struct {
	client ObjectClient
	bucket string
	prefix string
	region string
}

func NewMinIOClient(cfg config.ObjectStore) (*minio.Client, error) {
	if !cfg.Enabled() {
		return nil, ErrDisabled
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return minio.New(cfg.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Region:    cfg.Region,
		Transport: newTransport(),
	})
}

func New(client ObjectClient, cfg config.ObjectStore) *Publisher {
	return &Publisher{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		region: cfg.Region,
	}
}

// FromConfig builds a publisher backed by a real MinIO client.
func FromConfig(cfg config.ObjectStore) (*Publisher, error) {
	client, err := NewMinIOClient(cfg)
	if err != nil {
		return nil, err
	}
	return New(client, cfg), nil
}

func (p *Publisher) EnsureBucket(ctx context.Context) error {
	exists, err := p.client.BucketExists(ctx, p.bucket)
	if err != nil {
		return fmt.Errorf("bucket exists %s: %w", p.bucket, err)
	}
	if exists {
		return nil
	}
	if err := p.client.MakeBucket(ctx, p.bucket, minio.MakeBucketOptions{Region: p.region}); err != nil {
		return fmt.Errorf("make bucket %s: %w", p.bucket, err)
	}
	return nil
}

// ObjectKey is where a descriptor named name is stored in the given format.
func (p *Publisher) ObjectKey(name string, format descriptor.Format) string {
	return path.Join(p.prefix, name, format.FileName())
}

// Publish uploads data under the descriptor's key and returns that key.
func (p *Publisher) Publish(ctx context.Context, name string, format descriptor.Format, data []byte) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.Contains(name, "/") {
		return "", fmt.Errorf("invalid descriptor name %q", name)
	}
	key := p.ObjectKey(name, format)
	_, err := p.client.PutObject(ctx, p.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: format.ContentType(),
		UserMetadata: map[string]string{
			"descriptor": name,
		},
	})
	if err != nil {
		return "", fmt.Errorf("put %s/%s: %w", p.bucket, key, err)
	}
	return key, nil
}

func newTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          20,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
