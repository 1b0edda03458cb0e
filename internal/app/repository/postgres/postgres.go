/*
Package postgres implements the repository contracts against the production backend.

Authentication and room membership go through the functions service (backend.Client), rows
are read and written with pgx, media lives in the S3 bucket, and live messages arrive
through a feed.Feed.
*/
package postgres

import (
	"context"

	"github.com/higgyo/app-dam/internal/app/backend"
	"github.com/higgyo/app-dam/internal/app/db"
)

// Identity resolves the signed-in caller.
type Identity interface {
	// CurrentUserID fails with an auth error when nobody is signed in.
	CurrentUserID(ctx context.Context) (string, error)
}

// AuthClient is the part of backend.Client the repositories use.
type AuthClient interface {
	Identity
	SignUp(ctx context.Context, in backend.SignUpRequest) (backend.UserInfo, error)
	SignIn(ctx context.Context, email, password string) (backend.Session, error)
	SignOut(ctx context.Context) error
	User(ctx context.Context) (*backend.UserInfo, error)
	Invoke(ctx context.Context, name string, in, out any) error
}

var _ AuthClient = (*backend.Client)(nil)

// UserStore is the users table.
type UserStore interface {
	UpsertUser(ctx context.Context, arg db.CreateUserParams) error
	GetUserByID(ctx context.Context, id string) (db.UserRow, error)
	GetUserByEmail(ctx context.Context, email string) (db.UserRow, error)
	UpdateUser(ctx context.Context, arg db.UpdateUserParams) (int64, error)
	DeleteUser(ctx context.Context, id string) (int64, error)
}

// RoomStore is the read side of rooms and memberships.
type RoomStore interface {
	ListRoomsForUser(ctx context.Context, userID string) ([]db.RoomRow, error)
}

// MessageStore is the messages table.
type MessageStore interface {
	InsertMessage(ctx context.Context, arg db.InsertMessageParams) (db.MessageRow, error)
	ListMessagesByRoom(ctx context.Context, roomID string) ([]db.MessageRow, error)
}

var (
	_ UserStore    = (*db.Queries)(nil)
	_ RoomStore    = (*db.Queries)(nil)
	_ MessageStore = (*db.Queries)(nil)
)
