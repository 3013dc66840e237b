// Package miniobackend persists snapshots as JSON objects in an S3
// compatible bucket through the official MinIO client.
package miniobackend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/goliatone/go-stores/pkg/persist"
	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Config holds the connection settings.
type Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	Region          string
	Bucket          string
	// Prefix is prepended to every object key.
	Prefix string
}

// Backend stores each Ref as the object "<prefix><namespace>/<id>.json".
type Backend struct {
	client *minio.Client
	cfg    Config

	bucketOnce sync.Once
	bucketErr  error
	// mu serialises the read-check-write of Save within this process.
	mu sync.Mutex
}

// New connects a backend with static credentials.
func New(cfg Config) (*Backend, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("miniobackend: bucket is required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("miniobackend: create client: %w", err)
	}
	return &Backend{client: client, cfg: cfg}, nil
}

// ObjectKey returns the object name used for ref.
func (b *Backend) ObjectKey(ref persist.Ref) (string, error) {
	return objectKey(b.cfg.Prefix, ref)
}

func (b *Backend) Load(ctx context.Context, ref persist.Ref) (persist.Snapshot, persist.Meta, bool, error) {
	key, err := b.ObjectKey(ref)
	if err != nil {
		return nil, persist.Meta{}, false, err
	}
	raw, found, err := b.get(ctx, key)
	if err != nil || !found {
		return nil, persist.Meta{}, false, err
	}
	snapshot, meta, err := persist.DecodeRecord(raw)
	if err != nil {
		return nil, persist.Meta{}, false, err
	}
	return snapshot, meta, true, nil
}

func (b *Backend) Save(ctx context.Context, ref persist.Ref, snapshot persist.Snapshot, meta persist.Meta) (persist.Meta, error) {
	key, err := b.ObjectKey(ref)
	if err != nil {
		return persist.Meta{}, err
	}
	if err := b.ensureBucket(ctx); err != nil {
		return persist.Meta{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	var stored persist.Meta
	raw, found, err := b.get(ctx, key)
	if err != nil {
		return persist.Meta{}, err
	}
	if found {
		if _, stored, err = persist.DecodeRecord(raw); err != nil {
			return persist.Meta{}, err
		}
	}
	next, err := persist.NextMeta(stored, found, meta)
	if err != nil {
		return persist.Meta{}, err
	}
	body, err := persist.EncodeRecord(snapshot, next)
	if err != nil {
		return persist.Meta{}, err
	}
	_, err = b.client.PutObject(ctx, b.cfg.Bucket, key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return persist.Meta{}, fmt.Errorf("miniobackend: put %q: %w", key, err)
	}
	return next, nil
}

func (b *Backend) get(ctx context.Context, key string) ([]byte, bool, error) {
	reader, err := b.client.GetObject(ctx, b.cfg.Bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, false, fmt.Errorf("miniobackend: get %q: %w", key, err)
	}
	defer reader.Close()
	raw, err := io.ReadAll(reader)
	if err != nil {
		if isNotFound(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("miniobackend: read %q: %w", key, err)
	}
	return raw, true, nil
}

func (b *Backend) ensureBucket(ctx context.Context) error {
	b.bucketOnce.Do(func() {
		exists, err := b.client.BucketExists(ctx, b.cfg.Bucket)
		if err != nil {
			b.bucketErr = fmt.Errorf("miniobackend: check bucket %q: %w", b.cfg.Bucket, err)
			return
		}
		if exists {
			return
		}
		if err := b.client.MakeBucket(ctx, b.cfg.Bucket, minio.MakeBucketOptions{Region: b.cfg.Region}); err != nil {
			b.bucketErr = fmt.Errorf("miniobackend: create bucket %q: %w", b.cfg.Bucket, err)
		}
	})
	return b.bucketErr
}

func objectKey(prefix string, ref persist.Ref) (string, error) {
	id, err := ref.Identifier()
	if err != nil {
		return "", err
	}
	if ref.ID == "" {
		id += "/_"
	}
	return prefix + id + ".json", nil
}

func isNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound
}
