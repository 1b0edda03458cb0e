/*
Package storage keeps the media files attached to messages in an S3-compatible bucket.

BlobStore is implemented by the S3 client used in production and by an in-memory store
used by the fakes and the tests.
*/
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrObjectNotFound is returned by Stat for missing keys.
var ErrObjectNotFound = errors.New("object not found")

// ObjectInfo is the metadata of a stored object.
type ObjectInfo struct {
	Key         string
	ContentType string
	Size        int64
}

// BlobStore stores message media.
type BlobStore interface {
	// Upload writes body under key.
	Upload(ctx context.Context, key string, body io.Reader, contentType string) error

	// PresignDownload returns a URL granting read access to key for ttl.
	PresignDownload(ctx context.Context, key string, ttl time.Duration) (string, error)

	// Stat returns the metadata of key, or ErrObjectNotFound.
	Stat(ctx context.Context, key string) (ObjectInfo, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
