package handler

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/higgyo/app-dam/internal/app/db"
)

// fakeStore mimics the constraints of the real schema: unique emails, unique room codes
// and idempotent memberships.
type fakeStore struct {
	mu      sync.Mutex
	users   map[string]db.UserRow
	rooms   map[string]db.RoomRow
	members map[[2]string]struct{}

	roomCollisions int
}

var _ Store = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:   make(map[string]db.UserRow),
		rooms:   make(map[string]db.RoomRow),
		members: make(map[[2]string]struct{}),
	}
}

func uniqueViolation(constraint string) error {
	return &pgconn.PgError{Code: "23505", ConstraintName: constraint}
}

func (f *fakeStore) CreateUser(_ context.Context, arg db.CreateUserParams) (db.UserRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, u := range f.users {
		if strings.EqualFold(u.Email, arg.Email) {
			return db.UserRow{}, uniqueViolation("users_email_key")
		}
	}

	now := time.Now()
	row := db.UserRow{
		ID:           uuid.NewString(),
		Name:         arg.Name,
		Email:        arg.Email,
		PasswordHash: arg.PasswordHash,
		Latitude:     arg.Latitude,
		Longitude:    arg.Longitude,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	f.users[row.ID] = row
	return row, nil
}

func (f *fakeStore) GetUserByID(_ context.Context, id string) (db.UserRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	row, ok := f.users[id]
	if !ok {
		return db.UserRow{}, pgx.ErrNoRows
	}
	return row, nil
}

func (f *fakeStore) GetUserByEmail(_ context.Context, email string) (db.UserRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, u := range f.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return db.UserRow{}, pgx.ErrNoRows
}

func (f *fakeStore) CreateRoom(_ context.Context, arg db.CreateRoomParams) (db.RoomRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.roomCollisions > 0 {
		f.roomCollisions--
		return db.RoomRow{}, uniqueViolation("rooms_code_key")
	}
	if _, taken := f.rooms[arg.Code]; taken {
		return db.RoomRow{}, uniqueViolation("rooms_code_key")
	}

	row := db.RoomRow{
		ID:           uuid.NewString(),
		Name:         arg.Name,
		Code:         arg.Code,
		PasswordHash: arg.PasswordHash,
		CreatorID:    arg.CreatorID,
		CreatedAt:    time.Now(),
	}
	f.rooms[row.Code] = row
	return row, nil
}

func (f *fakeStore) GetRoomByCode(_ context.Context, code string) (db.RoomRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	row, ok := f.rooms[code]
	if !ok {
		return db.RoomRow{}, pgx.ErrNoRows
	}
	return row, nil
}

func (f *fakeStore) AddRoomMember(_ context.Context, roomID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.members[[2]string{roomID, userID}] = struct{}{}
	return nil
}

func (f *fakeStore) IsRoomMember(_ context.Context, roomID, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.members[[2]string{roomID, userID}]
	return ok, nil
}

// failRoomCreates makes the next n CreateRoom calls collide on the join code.
func (f *fakeStore) failRoomCreates(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roomCollisions = n
}

func (f *fakeStore) memberCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.members)
}
