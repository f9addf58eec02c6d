package s3blob

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Archiver uploads ledger snapshots after each trading cycle so the
// full order history survives host loss. Ledger files are small (one
// row per order attempt), so a single PutObject per upload is enough.
type Archiver struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewArchiver creates an Archiver writing under the given key prefix,
// e.g. "ledgers".
func NewArchiver(c *Client, prefix string) *Archiver {
	return &Archiver{
		client: c.S3(),
		bucket: c.Bucket(),
		prefix: prefix,
	}
}

// Put uploads arbitrary data to the bucket under the archiver's prefix.
func (a *Archiver) Put(ctx context.Context, key string, data io.Reader, contentType string) error {
	fullKey := path.Join(a.prefix, key)

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(fullKey),
		Body:        data,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("s3blob: put object %s: %w", fullKey, err)
	}
	return nil
}

// ArchiveFile uploads a local file, keyed by its base name and the
// cycle suffix: "<prefix>/<suffix>/<basename>".
func (a *Archiver) ArchiveFile(ctx context.Context, filePath string, suffix int64) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("s3blob: open %s: %w", filePath, err)
	}
	defer f.Close()

	key := path.Join(fmt.Sprintf("%d", suffix), path.Base(filePath))
	return a.Put(ctx, key, f, "text/csv")
}

// timestampKey builds an upload key for ad hoc snapshots.
func timestampKey(base string, at time.Time) string {
	return at.UTC().Format("20060102-150405") + "-" + base
}

// ArchiveSnapshot uploads a local file under a timestamped key rather
// than a cycle suffix.
func (a *Archiver) ArchiveSnapshot(ctx context.Context, filePath string, at time.Time) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("s3blob: open %s: %w", filePath, err)
	}
	defer f.Close()

	return a.Put(ctx, timestampKey(path.Base(filePath), at), f, "text/csv")
}
