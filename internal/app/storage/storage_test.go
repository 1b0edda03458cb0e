package storage

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/higgyo/app-dam/internal/domain"
	"github.com/higgyo/app-dam/internal/pkg/errs"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

func TestNewMediaObject(t *testing.T) {
	at := time.UnixMilli(1700000000123)

	t.Run("should take the extension from the uri", func(t *testing.T) {
		req := require.New(t)

		obj := NewMediaObject("user-1", at, "file:///cache/Camera/photo.PNG", pngHeader)

		req.Equal("user-1_1700000000123.png", obj.Key)
		req.Equal("image/png", obj.ContentType)
	})

	t.Run("should sniff the extension when the uri has a long suffix", func(t *testing.T) {
		req := require.New(t)

		obj := NewMediaObject("user-1", at, "content://media/external/images.thumbnail", pngHeader)

		req.Equal("user-1_1700000000123.png", obj.Key)
	})

	t.Run("should fall back to jpg for unknown content", func(t *testing.T) {
		req := require.New(t)

		obj := NewMediaObject("user-1", at, "content://media/42", []byte{0x00, 0x01, 0x02})

		req.True(strings.HasSuffix(obj.Key, ".jpg"), obj.Key)
		req.Equal("image/jpeg", obj.ContentType)
	})

	t.Run("should ignore a dot in a parent directory", func(t *testing.T) {
		require.Equal(t, "", extensionFromURI("/data/app.v2/blob"))
	})
}

func TestValidateMediaSize(t *testing.T) {
	req := require.New(t)

	req.Nil(ValidateMediaSize(1))
	req.Equal(errs.ErrMediaTooLarge, ValidateMediaSize(0).Code)
	req.Equal(errs.ErrMediaTooLarge, ValidateMediaSize(MaxMediaSize+1).Code)
}

func TestMemory(t *testing.T) {
	ctx := context.Background()

	t.Run("should store, stat and delete objects", func(t *testing.T) {
		req := require.New(t)
		store := NewMemory("app-dam")

		req.NoError(store.Upload(ctx, "a.png", bytes.NewReader(pngHeader), "image/png"))

		info, err := store.Stat(ctx, "a.png")
		req.NoError(err)
		req.Equal("image/png", info.ContentType)
		req.EqualValues(len(pngHeader), info.Size)

		data, ok := store.Get("a.png")
		req.True(ok)
		req.Equal(pngHeader, data)

		req.NoError(store.Delete(ctx, "a.png"))
		req.NoError(store.Delete(ctx, "a.png"))
		_, err = store.Stat(ctx, "a.png")
		req.ErrorIs(err, ErrObjectNotFound)
	})

	t.Run("should presign with an expiry", func(t *testing.T) {
		req := require.New(t)
		store := NewMemory("app-dam")
		store.now = func() time.Time { return time.Unix(1000, 0) }

		url, err := store.PresignDownload(ctx, "a.png", time.Minute)

		req.NoError(err)
		req.Equal("memory://app-dam/a.png?expires=1060", url)
	})

	t.Run("should fail uploads on demand", func(t *testing.T) {
		req := require.New(t)
		store := NewMemory("app-dam")
		store.FailUploads = true

		req.Error(store.Upload(ctx, "a.png", bytes.NewReader(pngHeader), "image/png"))
		req.Zero(store.Len())
	})
}

func TestUploadMedia(t *testing.T) {
	ctx := context.Background()
	at := time.UnixMilli(1700000000123)
	media := domain.Media{URI: "file:///tmp/pic.png", Data: pngHeader}

	t.Run("should store the media under the owner key", func(t *testing.T) {
		req := require.New(t)
		store := NewMemory("app-dam")

		key, err := UploadMedia(ctx, store, "user-1", media, at)

		req.NoError(err)
		req.Equal("user-1_1700000000123.png", key)
		_, ok := store.Get(key)
		req.True(ok)
	})

	t.Run("should reject an anonymous owner", func(t *testing.T) {
		req := require.New(t)

		_, err := UploadMedia(ctx, NewMemory("app-dam"), "", media, at)

		req.Equal(errs.ErrUploadUnauthenticated, errs.CodeOf(err))
		req.True(errs.IsKind(err, errs.KindUpload))
	})

	t.Run("should report store failures as upload errors", func(t *testing.T) {
		req := require.New(t)
		store := NewMemory("app-dam")
		store.FailUploads = true

		_, err := UploadMedia(ctx, store, "user-1", media, at)

		req.Equal(errs.ErrUploadFailed, errs.CodeOf(err))
	})
}

func TestSignedURL(t *testing.T) {
	ctx := context.Background()
	req := require.New(t)
	store := NewMemory("app-dam")
	req.NoError(store.Upload(ctx, "a.png", bytes.NewReader(pngHeader), "image/png"))

	url, err := SignedURL(ctx, store, "a.png", 0)
	req.NoError(err)
	req.Contains(url, "memory://app-dam/a.png?expires=")

	_, err = SignedURL(ctx, store, "missing.png", time.Minute)
	req.Equal(errs.ErrMediaNotFound, errs.CodeOf(err))
}
