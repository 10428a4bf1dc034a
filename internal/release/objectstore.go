package release

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/vk/pipewright/internal/ctxlog"
)

// metadataObject is the last object written for a release; a release is
// visible if and only if this object exists.
const metadataObject = "release.json"

// ObjectStoreConfig configures the object-store release endpoint.
type ObjectStoreConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// Validate checks the required endpoint fields.
func (c ObjectStoreConfig) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("object store endpoint is required")
	}
	if c.Bucket == "" {
		return fmt.Errorf("object store bucket is required")
	}
	return nil
}

// ObjectStore publishes releases to an S3-compatible object store: assets
// under releases/<tag>/assets/, then the metadata object last, so a release
// never becomes visible with files missing.
type ObjectStore struct {
	client *minio.Client
	bucket string
}

// NewObjectStore creates the endpoint client and ensures the bucket exists.
func NewObjectStore(ctx context.Context, cfg ObjectStoreConfig) (*ObjectStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Region:    cfg.Region,
		Transport: newTransport(),
	})
	if err != nil {
		return nil, fmt.Errorf("creating object store client: %w", err)
	}
	if err := ensureBucket(ctx, client, cfg.Bucket, cfg.Region); err != nil {
		return nil, fmt.Errorf("ensure release bucket: %w", err)
	}
	return &ObjectStore{client: client, bucket: cfg.Bucket}, nil
}

func ensureBucket(ctx context.Context, client *minio.Client, bucket, region string) error {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region})
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
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

func (o *ObjectStore) prefix(tag string) string {
	return "releases/" + tag + "/"
}

// Exists reports whether the metadata object for the tag is present.
func (o *ObjectStore) Exists(ctx context.Context, tag string) (bool, error) {
	_, err := o.client.StatObject(ctx, o.bucket, o.prefix(tag)+metadataObject, minio.StatObjectOptions{})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Create uploads all asset files and writes the metadata object last. On
// any error, including cancellation, uploaded assets are removed so that no
// partially-created release is left behind.
func (o *ObjectStore) Create(ctx context.Context, rel Release, files []File) (string, error) {
	return o.put(ctx, rel, files)
}

// Update overwrites the assets and metadata of an existing release, then
// removes asset objects the new file set no longer references so an
// updated release does not keep orphaned old assets around.
func (o *ObjectStore) Update(ctx context.Context, rel Release, files []File) (string, error) {
	id, err := o.put(ctx, rel, files)
	if err != nil {
		return "", err
	}
	o.removeStaleAssets(ctx, rel.Tag, files)
	return id, nil
}

// removeStaleAssets deletes assets under the tag's prefix that files does
// not name. The metadata object already lists the new set, so stale assets
// are unreachable either way; removal is best-effort.
func (o *ObjectStore) removeStaleAssets(ctx context.Context, tag string, files []File) {
	logger := ctxlog.FromContext(ctx).With("tag", tag, "bucket", o.bucket)
	prefix := o.prefix(tag) + "assets/"

	var existing []string
	for obj := range o.client.ListObjects(ctx, o.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			logger.Warn("Failed to list release assets for cleanup.", "error", obj.Err)
			return
		}
		existing = append(existing, obj.Key)
	}
	for _, key := range staleAssetKeys(prefix, existing, files) {
		if err := o.client.RemoveObject(ctx, o.bucket, key, minio.RemoveObjectOptions{}); err != nil {
			logger.Warn("Failed to remove stale release asset.", "key", key, "error", err)
		}
	}
}

// staleAssetKeys returns the keys among existing that the file set no
// longer references.
func staleAssetKeys(prefix string, existing []string, files []File) []string {
	keep := make(map[string]struct{}, len(files))
	for _, f := range files {
		keep[prefix+f.Name] = struct{}{}
	}
	var stale []string
	for _, key := range existing {
		if _, ok := keep[key]; !ok {
			stale = append(stale, key)
		}
	}
	return stale
}

func (o *ObjectStore) put(ctx context.Context, rel Release, files []File) (string, error) {
	logger := ctxlog.FromContext(ctx).With("tag", rel.Tag, "bucket", o.bucket)

	if rel.ID == "" {
		rel.ID = uuid.NewString()
	}
	prefix := o.prefix(rel.Tag)

	var uploaded []string
	cleanup := func() {
		// Best-effort: use a fresh context so cleanup still runs after
		// the publish context was cancelled.
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		for _, key := range uploaded {
			if err := o.client.RemoveObject(cleanupCtx, o.bucket, key, minio.RemoveObjectOptions{}); err != nil {
				logger.Warn("Failed to remove staged release asset.", "key", key, "error", err)
			}
		}
	}

	for _, f := range files {
		key := prefix + "assets/" + f.Name
		if _, err := o.client.FPutObject(ctx, o.bucket, key, f.Path, minio.PutObjectOptions{}); err != nil {
			cleanup()
			return "", fmt.Errorf("uploading asset %q: %w", f.Name, err)
		}
		uploaded = append(uploaded, key)
	}

	meta, err := json.Marshal(rel)
	if err != nil {
		cleanup()
		return "", fmt.Errorf("encoding release metadata: %w", err)
	}
	_, err = o.client.PutObject(ctx, o.bucket, prefix+metadataObject,
		bytes.NewReader(meta), int64(len(meta)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		cleanup()
		return "", fmt.Errorf("writing release metadata: %w", err)
	}

	logger.Info("Release objects written.", "release_id", rel.ID, "assets", len(files))
	return rel.ID, nil
}

var _ Endpoint = (*ObjectStore)(nil)
