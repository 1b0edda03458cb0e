package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/higgyo/app-dam/internal/domain"
	"github.com/higgyo/app-dam/internal/pkg/errs"
)

const (
	// MaxMediaSizeMB is the maximum allowed attachment size in megabytes.
	MaxMediaSizeMB = 25

	// MaxMediaSize is the maximum allowed attachment size in bytes.
	MaxMediaSize = MaxMediaSizeMB * 1024 * 1024

	// DefaultExtension is used when neither the URI nor the content reveal a file type.
	DefaultExtension = "jpg"

	// DefaultSignedURLTTL is how long a presigned download stays valid.
	DefaultSignedURLTTL = time.Hour
)

// ValidateMediaSize checks that an attachment is non-empty and within MaxMediaSize.
func ValidateMediaSize(size int) *errs.CustomError {
	if size <= 0 || size > MaxMediaSize {
		return errs.NewError(errs.ErrMediaTooLarge)
	}
	return nil
}

// MediaObject describes where an attachment is stored.
type MediaObject struct {
	Key         string
	ContentType string
}

// NewMediaObject names the object for an attachment uploaded by ownerID at the given time
// as "<owner>_<unix millis>.<ext>". The extension comes from the local URI when it ends in
// a short suffix, otherwise from the sniffed content.
func NewMediaObject(ownerID string, at time.Time, uri string, data []byte) MediaObject {
	detected := mimetype.Detect(data)

	ext := extensionFromURI(uri)
	if ext == "" {
		ext = strings.TrimPrefix(detected.Extension(), ".")
	}
	if ext == "" {
		ext = DefaultExtension
	}

	contentType := detected.String()
	if detected.Is("application/octet-stream") || detected.Is("text/plain") {
		contentType = contentTypeForExtension(ext)
	}

	return MediaObject{
		Key:         fmt.Sprintf("%s_%d.%s", ownerID, at.UnixMilli(), ext),
		ContentType: contentType,
	}
}

func extensionFromURI(uri string) string {
	if i := strings.IndexAny(uri, "?#"); i >= 0 {
		uri = uri[:i]
	}

	dot := strings.LastIndex(uri, ".")
	if dot < 0 || dot < strings.LastIndex(uri, "/") {
		return ""
	}

	ext := strings.ToLower(uri[dot+1:])
	if len(ext) == 0 || len(ext) > 4 {
		return ""
	}
	for _, r := range ext {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}

func contentTypeForExtension(ext string) string {
	switch ext {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png", "gif", "webp", "heic":
		return "image/" + ext
	case "mp4", "webm":
		return "video/" + ext
	case "mov":
		return "video/quicktime"
	default:
		return "application/octet-stream"
	}
}

// UploadMedia validates and stores media on behalf of ownerID and returns the object key
// that goes into the message's file URL.
func UploadMedia(ctx context.Context, store BlobStore, ownerID string, media domain.Media, at time.Time) (string, error) {
	if ownerID == "" {
		return "", errs.NewError(errs.ErrUploadUnauthenticated)
	}
	if customErr := ValidateMediaSize(len(media.Data)); customErr != nil {
		return "", customErr
	}

	obj := NewMediaObject(ownerID, at, media.URI, media.Data)
	if err := store.Upload(ctx, obj.Key, bytes.NewReader(media.Data), obj.ContentType); err != nil {
		return "", errs.Wrap(errs.ErrUploadFailed, err)
	}
	return obj.Key, nil
}

// SignedURL checks that key exists and presigns a download for ttl.
func SignedURL(ctx context.Context, store BlobStore, key string, ttl time.Duration) (string, error) {
	if key == "" {
		return "", errs.NewError(errs.ErrMediaNotFound)
	}
	if ttl <= 0 {
		ttl = DefaultSignedURLTTL
	}

	if _, err := store.Stat(ctx, key); err != nil {
		if errors.Is(err, ErrObjectNotFound) {
			return "", errs.NewError(errs.ErrMediaNotFound)
		}
		return "", errs.Wrap(errs.ErrPersistence, err)
	}

	url, err := store.PresignDownload(ctx, key, ttl)
	if err != nil {
		return "", errs.Wrap(errs.ErrPersistence, err)
	}
	return url, nil
}
