package postgres

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/higgyo/app-dam/internal/app/backend"
	"github.com/higgyo/app-dam/internal/app/db"
	"github.com/higgyo/app-dam/internal/pkg/errs"
)

// fakeAuth answers like the functions service for a fixed account.
type fakeAuth struct {
	userID  string
	invoked []string
	room    backend.RoomInfo
	err     error
}

func (f *fakeAuth) CurrentUserID(context.Context) (string, error) {
	if f.userID == "" {
		return "", errs.NewError(errs.ErrUnauthorized)
	}
	return f.userID, nil
}

func (f *fakeAuth) SignUp(_ context.Context, in backend.SignUpRequest) (backend.UserInfo, error) {
	if f.err != nil {
		return backend.UserInfo{}, f.err
	}
	return backend.UserInfo{ID: "user-new", Name: in.Name, Email: in.Email}, nil
}

func (f *fakeAuth) SignIn(_ context.Context, email, _ string) (backend.Session, error) {
	if f.err != nil {
		return backend.Session{}, f.err
	}
	f.userID = "user-1"
	return backend.Session{AccessToken: "t", User: backend.UserInfo{ID: "user-1", Name: "Alice", Email: email}}, nil
}

func (f *fakeAuth) SignOut(context.Context) error {
	f.userID = ""
	return f.err
}

func (f *fakeAuth) User(context.Context) (*backend.UserInfo, error) {
	if f.userID == "" {
		return nil, nil
	}
	return &backend.UserInfo{ID: f.userID, Name: "Alice", Email: "a@b.com"}, nil
}

func (f *fakeAuth) Invoke(_ context.Context, name string, _, out any) error {
	f.invoked = append(f.invoked, name)
	if f.err != nil {
		return f.err
	}
	if room, ok := out.(*backend.RoomInfo); ok {
		*room = f.room
	}
	return nil
}

// fakeRows is a users, rooms and messages table good enough for the mapping paths.
type fakeRows struct {
	mu       sync.Mutex
	users    map[string]db.UserRow
	rooms    []db.RoomRow
	messages []db.MessageRow
	seq      int64
	failNext error
}

func newFakeRows() *fakeRows {
	return &fakeRows{users: make(map[string]db.UserRow)}
}

func (f *fakeRows) UpsertUser(_ context.Context, arg db.CreateUserParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for id, u := range f.users {
		if id != arg.ID && u.Email == arg.Email {
			return &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"}
		}
	}
	hash := arg.PasswordHash
	if hash == "" {
		hash = f.users[arg.ID].PasswordHash
	}
	f.users[arg.ID] = db.UserRow{
		ID: arg.ID, Name: arg.Name, Email: arg.Email, PasswordHash: hash,
		Latitude: arg.Latitude, Longitude: arg.Longitude,
	}
	return nil
}

func (f *fakeRows) GetUserByID(_ context.Context, id string) (db.UserRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.users[id]
	if !ok {
		return db.UserRow{}, pgx.ErrNoRows
	}
	return u, nil
}

func (f *fakeRows) GetUserByEmail(_ context.Context, email string) (db.UserRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return db.UserRow{}, pgx.ErrNoRows
}

func (f *fakeRows) UpdateUser(_ context.Context, arg db.UpdateUserParams) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.users[arg.ID]
	if !ok {
		return 0, nil
	}
	u.Name, u.Email, u.Latitude, u.Longitude = arg.Name, arg.Email, arg.Latitude, arg.Longitude
	if arg.PasswordHash != nil {
		u.PasswordHash = *arg.PasswordHash
	}
	f.users[arg.ID] = u
	return 1, nil
}

func (f *fakeRows) DeleteUser(_ context.Context, id string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.users[id]; !ok {
		return 0, nil
	}
	delete(f.users, id)
	return 1, nil
}

func (f *fakeRows) ListRoomsForUser(context.Context, string) ([]db.RoomRow, error) {
	return f.rooms, nil
}

func (f *fakeRows) InsertMessage(_ context.Context, arg db.InsertMessageParams) (db.MessageRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return db.MessageRow{}, err
	}
	f.seq++
	row := db.MessageRow{
		ID: uuid.NewString(), Seq: f.seq, RoomID: arg.RoomID, SenderID: arg.SenderID,
		Content: arg.Content, Type: arg.Type, FileURL: arg.FileURL, CreatedAt: time.Now().UTC(),
	}
	f.messages = append(f.messages, row)
	return row, nil
}

func (f *fakeRows) ListMessagesByRoom(_ context.Context, roomID string) ([]db.MessageRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return nil, err
	}
	var out []db.MessageRow
	for _, m := range f.messages {
		if m.RoomID == roomID {
			out = append(out, m)
		}
	}
	return out, nil
}

var errConnRefused = errors.New("dial tcp 127.0.0.1:5432: connect: connection refused")
