package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/lifecycle"
)

// expiresMetaKey is the object user-metadata key carrying the expiry
// instant, RFC 3339 encoded.
const expiresMetaKey = "Expires-At"

// Config holds MinIO connection settings.
type Config struct {
	Endpoint        string `mapstructure:"endpoint"` // e.g. "minio:9000" or "localhost:9000"
	AccessKeyID     string `mapstructure:"accesskeyid"`
	SecretAccessKey string `mapstructure:"secretaccesskey"`
	Bucket          string `mapstructure:"bucket"`
	UseSSL          bool   `mapstructure:"usessl"`
}

// Minio implements Store on a single MinIO/S3 bucket.
//
// S3 has no per-object TTL API, so this adapter owns the TTL contract: the
// expiry lives in object user metadata, reads treat a past-expiry object as
// absent (and fire a best-effort remove), and a bucket lifecycle rule
// installed at startup physically removes aged objects as a backstop.
type Minio struct {
	mc     *minio.Client
	bucket string
}

// NewMinio creates the blob store client, ensuring the bucket and its
// lifecycle backstop exist. maxTTL bounds how long any object can live and
// sizes the lifecycle rule.
func NewMinio(ctx context.Context, cfg Config, maxTTL time.Duration) (*Minio, error) {
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	s := &Minio{mc: mc, bucket: cfg.Bucket}

	exists, err := mc.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("bucket exists: %w", err)
	}
	if !exists {
		if err := mc.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("make bucket: %w", err)
		}
	}

	// Anything older than the maximum TTL is expired by definition; the read
	// path hides fresher expirations until this rule catches up.
	days := int64(maxTTL/(24*time.Hour)) + 1
	lc := lifecycle.NewConfiguration()
	lc.Rules = []lifecycle.Rule{{
		ID:         "ttl-backstop",
		Status:     "Enabled",
		Expiration: lifecycle.Expiration{Days: lifecycle.ExpirationDays(days)},
	}}
	if err := mc.SetBucketLifecycle(ctx, cfg.Bucket, lc); err != nil {
		return nil, fmt.Errorf("set bucket lifecycle: %w", err)
	}
	return s, nil
}

func (s *Minio) Put(ctx context.Context, id string, data []byte, opts PutOptions) error {
	_, err := s.mc.PutObject(ctx, s.bucket, id, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: opts.ContentType,
		UserMetadata: map[string]string{
			expiresMetaKey: time.Now().Add(opts.TTL).UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

func (s *Minio) Get(ctx context.Context, id string) (*Object, error) {
	obj, err := s.mc.GetObject(ctx, s.bucket, id, minio.GetObjectOptions{})
	if err != nil {
		return nil, mapMinioErr(err)
	}
	defer obj.Close()

	info, err := obj.Stat()
	if err != nil {
		return nil, mapMinioErr(err)
	}
	expires, live := s.checkExpiry(ctx, id, info)
	if !live {
		return nil, ErrNotFound
	}
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read object: %w", err)
	}
	return &Object{
		Data:        data,
		ContentType: info.ContentType,
		Size:        info.Size,
		Expires:     expires,
	}, nil
}

func (s *Minio) Stat(ctx context.Context, id string) (*Object, error) {
	info, err := s.mc.StatObject(ctx, s.bucket, id, minio.StatObjectOptions{})
	if err != nil {
		return nil, mapMinioErr(err)
	}
	expires, live := s.checkExpiry(ctx, id, info)
	if !live {
		return nil, ErrNotFound
	}
	return &Object{
		ContentType: info.ContentType,
		Size:        info.Size,
		Expires:     expires,
	}, nil
}

func (s *Minio) Delete(ctx context.Context, id string) error {
	if err := s.mc.RemoveObject(ctx, s.bucket, id, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object: %w", err)
	}
	return nil
}

// checkExpiry reads the expiry from object metadata and reports whether the
// object is still live. Expired objects are removed best-effort; the
// lifecycle rule catches anything this misses.
func (s *Minio) checkExpiry(ctx context.Context, id string, info minio.ObjectInfo) (time.Time, bool) {
	raw := info.UserMetadata[expiresMetaKey]
	if raw == "" {
		raw = info.Metadata.Get("X-Amz-Meta-" + expiresMetaKey)
	}
	if raw == "" {
		// Legacy object without expiry metadata; treat as live.
		return time.Time{}, true
	}
	expires, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, true
	}
	if !expires.After(time.Now()) {
		_ = s.mc.RemoveObject(ctx, s.bucket, id, minio.RemoveObjectOptions{})
		return expires, false
	}
	return expires, true
}

func mapMinioErr(err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" {
		return ErrNotFound
	}
	return err
}
