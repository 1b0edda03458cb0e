package backend

import (
	"context"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func setupBadger(t *testing.T) *BadgerTokenStore {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewBadgerTokenStore(db)
}

func TestTokenStores(t *testing.T) {
	ctx := context.Background()
	stores := map[string]func(t *testing.T) TokenStore{
		"memory": func(*testing.T) TokenStore { return NewMemoryTokenStore() },
		"badger": func(t *testing.T) TokenStore { return setupBadger(t) },
	}

	for name, open := range stores {
		t.Run("should round trip and clear with the "+name+" store", func(t *testing.T) {
			req := require.New(t)
			store := open(t)

			empty, err := store.Load(ctx)
			req.NoError(err)
			req.Nil(empty)

			session := Session{
				AccessToken: testToken,
				TokenType:   "bearer",
				ExpiresAt:   time.Now().Add(time.Hour).Unix(),
				User:        alice,
			}
			req.NoError(store.Save(ctx, session))

			loaded, err := store.Load(ctx)
			req.NoError(err)
			req.Equal(session, *loaded)

			req.NoError(store.Clear(ctx))
			req.NoError(store.Clear(ctx))
			loaded, err = store.Load(ctx)
			req.NoError(err)
			req.Nil(loaded)
		})
	}
}

func TestBadgerTokenStore_ExpiredSave(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := setupBadger(t)
	req.NoError(store.Save(ctx, Session{AccessToken: "fresh", ExpiresAt: time.Now().Add(time.Hour).Unix()}))

	req.NoError(store.Save(ctx, Session{AccessToken: "stale", ExpiresAt: time.Now().Add(-time.Hour).Unix()}))

	loaded, err := store.Load(ctx)
	req.NoError(err)
	req.Nil(loaded)
}

func TestBadgerTokenStore_Reopen(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	dir := t.TempDir()

	store, err := OpenBadgerTokenStore(dir)
	req.NoError(err)
	req.NoError(store.Save(ctx, Session{AccessToken: testToken, User: alice}))
	req.NoError(store.Close())

	reopened, err := OpenBadgerTokenStore(dir)
	req.NoError(err)
	defer reopened.Close()

	loaded, err := reopened.Load(ctx)
	req.NoError(err)
	req.Equal(testToken, loaded.AccessToken)
}
