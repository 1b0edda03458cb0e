package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// TokenStore persists the signed-in session between runs.
type TokenStore interface {
	// Load returns the stored session, or nil when there is none.
	Load(ctx context.Context) (*Session, error)
	Save(ctx context.Context, s Session) error
	// Clear removes the stored session. Clearing an empty store is not an error.
	Clear(ctx context.Context) error
}

// MemoryTokenStore keeps the session in process memory.
type MemoryTokenStore struct {
	mu      sync.Mutex
	session *Session
}

var _ TokenStore = (*MemoryTokenStore)(nil)

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{}
}

func (m *MemoryTokenStore) Load(context.Context) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		return nil, nil
	}
	s := *m.session
	return &s, nil
}

func (m *MemoryTokenStore) Save(_ context.Context, s Session) error {
	m.mu.Lock()
	m.session = &s
	m.mu.Unlock()
	return nil
}

func (m *MemoryTokenStore) Clear(context.Context) error {
	m.mu.Lock()
	m.session = nil
	m.mu.Unlock()
	return nil
}

var sessionKey = []byte("session:current")

// BadgerTokenStore keeps the session in a badger database so it survives restarts.
// Entries expire with the token.
type BadgerTokenStore struct {
	db  *badger.DB
	now func() time.Time
}

var _ TokenStore = (*BadgerTokenStore)(nil)

// OpenBadgerTokenStore opens (or creates) the database under dir.
func OpenBadgerTokenStore(dir string) (*BadgerTokenStore, error) {
	db, err := badger.Open(badger.DefaultOptions(dir).WithLoggingLevel(badger.ERROR))
	if err != nil {
		return nil, fmt.Errorf("failed to open session store at %s: %w", dir, err)
	}
	return NewBadgerTokenStore(db), nil
}

func NewBadgerTokenStore(db *badger.DB) *BadgerTokenStore {
	return &BadgerTokenStore{db: db, now: time.Now}
}

func (b *BadgerTokenStore) Load(context.Context) (*Session, error) {
	var s Session

	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(sessionKey)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &s)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	return &s, nil
}

func (b *BadgerTokenStore) Save(_ context.Context, s Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}

	entry := badger.NewEntry(sessionKey, data)
	if s.ExpiresAt > 0 {
		ttl := time.Unix(s.ExpiresAt, 0).Sub(b.now())
		if ttl <= 0 {
			return b.Clear(context.Background())
		}
		entry = entry.WithTTL(ttl)
	}

	return b.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(entry)
	})
}

func (b *BadgerTokenStore) Clear(context.Context) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(sessionKey)
	})
}

// Close closes the underlying database.
func (b *BadgerTokenStore) Close() error {
	return b.db.Close()
}
