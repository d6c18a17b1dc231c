package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// compile-time check that *MinIOStore implements Store
var _ Store = (*MinIOStore)(nil)

// MinIOConfig holds the connection settings for an S3-compatible bucket.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Region    string
	URLExpiry time.Duration
}

// MinIOStore keeps blobs as objects in a single bucket and hands out
// presigned GET URLs.
type MinIOStore struct {
	client *minio.Client
	bucket string
	expiry time.Duration
}

// NewMinIOStore connects and makes sure the bucket exists.
func NewMinIOStore(ctx context.Context, cfg MinIOConfig) (*MinIOStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("blob: creating minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("blob: checking bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("blob: creating bucket %s: %w", cfg.Bucket, err)
		}
	}

	if err := seedDefaultAvatar(ctx, client, cfg.Bucket); err != nil {
		return nil, err
	}

	expiry := cfg.URLExpiry
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}

	return &MinIOStore{client: client, bucket: cfg.Bucket, expiry: expiry}, nil
}

// objectSeeder is the part of *minio.Client that seedDefaultAvatar needs.
type objectSeeder interface {
	StatObject(ctx context.Context, bucket, object string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	PutObject(ctx context.Context, bucket, object string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// seedDefaultAvatar uploads the embedded placeholder when the bucket lacks
// it. An existing object is left alone so operators can replace it.
func seedDefaultAvatar(ctx context.Context, c objectSeeder, bucket string) error {
	_, err := c.StatObject(ctx, bucket, string(DefaultAvatar), minio.StatObjectOptions{})
	if err == nil {
		return nil
	}
	if minio.ToErrorResponse(err).Code != "NoSuchKey" {
		return fmt.Errorf("blob: checking default avatar: %w", err)
	}

	_, err = c.PutObject(ctx, bucket, string(DefaultAvatar), bytes.NewReader(defaultAvatarPNG),
		int64(len(defaultAvatarPNG)), minio.PutObjectOptions{ContentType: "image/png"})
	if err != nil {
		return fmt.Errorf("blob: uploading default avatar: %w", err)
	}
	return nil
}

// Put uploads data under a fresh object name.
func (s *MinIOStore) Put(ctx context.Context, ext string, data []byte) (Ref, error) {
	ref := newRef(ext)

	contentType := mime.TypeByExtension("." + ext)
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := s.client.PutObject(ctx, s.bucket, string(ref), bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{
			ContentType: contentType,
			UserMetadata: map[string]string{
				"uploaded-at": time.Now().UTC().Format(time.RFC3339),
			},
		})
	if err != nil {
		return "", fmt.Errorf("blob: uploading %s to minio: %w", ref, err)
	}

	return ref, nil
}

// URL presigns a GET for the object.
func (s *MinIOStore) URL(ctx context.Context, ref Ref) (string, error) {
	if err := validRef(ref); err != nil {
		return "", err
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucket, string(ref), s.expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("blob: presigning %s: %w", ref, err)
	}
	return u.String(), nil
}

// Delete removes the object. DefaultAvatar is never deleted.
func (s *MinIOStore) Delete(ctx context.Context, ref Ref) error {
	if ref == DefaultAvatar {
		return nil
	}
	if err := validRef(ref); err != nil {
		return err
	}
	err := s.client.RemoveObject(ctx, s.bucket, string(ref), minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("blob: deleting %s from minio: %w", ref, err)
	}
	return nil
}
