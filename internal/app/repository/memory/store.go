/*
Package memory implements the repository contracts on an in-process Store.

The Store plays the part of the whole backend: accounts with argon2id hashes, rooms,
memberships, message rows, a blob bucket and a change feed. Repositories built on the same
Store see the same data, which is what the use case tests and the offline CLI mode rely on.
*/
package memory

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/higgyo/app-dam/internal/app/chat"
	"github.com/higgyo/app-dam/internal/app/feed"
	"github.com/higgyo/app-dam/internal/app/storage"
)

const defaultBucket = "app-dam"

type userRecord struct {
	id           string
	name         string
	email        string
	passwordHash string
	latitude     *float64
	longitude    *float64
}

type roomRecord struct {
	id           string
	name         string
	code         string
	passwordHash string
	creatorID    string
}

// Store holds the state shared by the memory repositories.
type Store struct {
	mu            sync.RWMutex
	users         []userRecord
	rooms         map[string]roomRecord
	members       map[string][]string
	messages      []chat.MessageRecord
	seq           int64
	currentUserID string

	feed  *feed.Memory
	blobs *storage.Memory
	now   func() time.Time
}

func NewStore() *Store {
	return &Store{
		rooms:   make(map[string]roomRecord),
		members: make(map[string][]string),
		feed:    feed.NewMemory(),
		blobs:   storage.NewMemory(defaultBucket),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Feed is the change feed the store publishes message inserts on.
func (s *Store) Feed() *feed.Memory { return s.feed }

// Blobs is the bucket media uploads land in.
func (s *Store) Blobs() *storage.Memory { return s.blobs }

// CurrentUserID returns the id of the signed-in user, or "".
func (s *Store) CurrentUserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentUserID
}

// InsertMessage appends rec the way the messages table would: it fills the id and the
// creation time when missing, assigns the next seq and publishes the insert.
func (s *Store) InsertMessage(rec chat.MessageRecord) (chat.MessageRecord, error) {
	s.mu.Lock()
	if _, ok := s.rooms[rec.RoomID]; !ok {
		s.mu.Unlock()
		return chat.MessageRecord{}, fmt.Errorf("insert or update on table \"messages\" violates foreign key constraint: room %q", rec.RoomID)
	}
	if !s.userExistsLocked(rec.SenderID) {
		s.mu.Unlock()
		return chat.MessageRecord{}, fmt.Errorf("insert or update on table \"messages\" violates foreign key constraint: user %q", rec.SenderID)
	}

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now()
	}
	s.seq++
	rec.Seq = s.seq
	s.messages = append(s.messages, rec)
	s.mu.Unlock()

	if err := s.feed.Publish(chat.MessagesTable, rec); err != nil {
		return chat.MessageRecord{}, fmt.Errorf("failed to publish message insert: %w", err)
	}
	return rec, nil
}

func (s *Store) userExistsLocked(id string) bool {
	return s.userIndexLocked(id) >= 0
}

func (s *Store) userIndexLocked(id string) int {
	_, i, _ := lo.FindIndexOf(s.users, func(u userRecord) bool { return u.id == id })
	return i
}

func (s *Store) userIndexByEmailLocked(email string) int {
	_, i, _ := lo.FindIndexOf(s.users, func(u userRecord) bool { return strings.EqualFold(u.email, email) })
	return i
}

func (s *Store) roomByCodeLocked(code string) (roomRecord, bool) {
	for _, r := range s.rooms {
		if r.code == code {
			return r, true
		}
	}
	return roomRecord{}, false
}
