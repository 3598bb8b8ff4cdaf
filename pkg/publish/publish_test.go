package publish

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/minio/minio-go/v7"

	"github.com/Promptonauts/releasepipe/pkg/config"
	"github.com/Promptonauts/releasepipe/pkg/descriptor"
)

type fakeClient struct {
	buckets map[string]bool
	objects map[string][]byte
	types   map[string]string
	putErr  error
}

func newFakeClient() *fakeClient {
	return &fakeClient{buckets: map[string]bool{}, objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeClient) BucketExists(_ context.Context, bucket string) (bool, error) {
	return f.buckets[bucket], nil
}

func (f *fakeClient) MakeBucket(_ context.Context, bucket string, _ minio.MakeBucketOptions) error {
	f.buckets[bucket] = true
	return nil
}

func (f *fakeClient) PutObject(_ context.Context, bucket, object string, reader io.Reader, _ int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	if f.putErr != nil {
		return minio.UploadInfo{}, f.putErr
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	f.objects[bucket+"/"+object] = data
	f.types[bucket+"/"+object] = opts.ContentType
	return minio.UploadInfo{Bucket: bucket, Key: object, Size: int64(len(data))}, nil
}

func TestPublish(t *testing.T) {
	client := newFakeClient()
	p := New(client, config.ObjectStore{Bucket: "configs", Prefix: "/shared/", Region: "us-east-1"})
	ctx := context.Background()

	if err := p.EnsureBucket(ctx); err != nil {
		t.Fatalf("ensure bucket: %v", err)
	}
	if !client.buckets["configs"] {
		t.Fatalf("expected bucket to be created")
	}

	key, err := p.Publish(ctx, "default", descriptor.FormatJS, []byte("export default {};\n"))
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if key != "shared/default/release.config.js" {
		t.Fatalf("unexpected key %q", key)
	}
	if string(client.objects["configs/"+key]) != "export default {};\n" {
		t.Fatalf("unexpected object body")
	}
	if client.types["configs/"+key] != "text/javascript" {
		t.Fatalf("unexpected content type %q", client.types["configs/"+key])
	}
}

func TestPublishRejectsBadName(t *testing.T) {
	p := New(newFakeClient(), config.ObjectStore{Bucket: "configs"})
	if _, err := p.Publish(context.Background(), "a/b", descriptor.FormatJSON, []byte("{}")); err == nil {
		t.Fatalf("expected slash in name to fail")
	}
}

func TestPublishWrapsClientError(t *testing.T) {
	client := newFakeClient()
	client.putErr = errors.New("boom")
	p := New(client, config.ObjectStore{Bucket: "configs"})
	_, err := p.Publish(context.Background(), "default", descriptor.FormatJSON, []byte("{}"))
	if !errors.Is(err, client.putErr) {
		t.Fatalf("expected wrapped client error, got %v", err)
	}
}

func TestFromConfigDisabled(t *testing.T) {
	if _, err := FromConfig(config.ObjectStore{}); !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
}
