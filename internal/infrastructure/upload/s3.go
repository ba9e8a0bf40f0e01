// Package upload pushes run artifacts to S3-compatible object storage.
package upload

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Uploader copies local artifact files into a bucket, keyed by run
// timestamp so earlier artifacts are never overwritten.
type Uploader struct {
	client *minio.Client
	bucket string
	prefix string
}

// New connects to the given S3-compatible endpoint.
func New(endpoint, accessKey, secretKey, bucket, prefix string, useSSL bool) (*Uploader, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to object storage: %w", err)
	}
	return &Uploader{client: client, bucket: bucket, prefix: prefix}, nil
}

// Upload stores a local file under <prefix>/<timestamp>/<basename> and
// returns the object key.
func (u *Uploader) Upload(ctx context.Context, localPath string) (string, error) {
	exists, err := u.client.BucketExists(ctx, u.bucket)
	if err != nil {
		return "", fmt.Errorf("failed to check bucket %q: %w", u.bucket, err)
	}
	if !exists {
		return "", fmt.Errorf("bucket %q does not exist", u.bucket)
	}

	key := path.Join(u.prefix, time.Now().UTC().Format("2006-01-02T15-04-05Z"), filepath.Base(localPath))
	_, err = u.client.FPutObject(ctx, u.bucket, key, localPath, minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", localPath, err)
	}
	return key, nil
}
