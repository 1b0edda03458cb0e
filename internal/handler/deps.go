package handler

import (
	"context"

	"github.com/higgyo/app-dam/internal/app/db"
	"github.com/higgyo/app-dam/internal/app/gateway"
	"github.com/higgyo/app-dam/internal/configs"
)

// Store is the slice of db.Queries the functions service needs.
type Store interface {
	CreateUser(ctx context.Context, arg db.CreateUserParams) (db.UserRow, error)
	GetUserByID(ctx context.Context, id string) (db.UserRow, error)
	GetUserByEmail(ctx context.Context, email string) (db.UserRow, error)
	CreateRoom(ctx context.Context, arg db.CreateRoomParams) (db.RoomRow, error)
	GetRoomByCode(ctx context.Context, code string) (db.RoomRow, error)
	AddRoomMember(ctx context.Context, roomID, userID string) error
	IsRoomMember(ctx context.Context, roomID, userID string) (bool, error)
}

var _ Store = (*db.Queries)(nil)

type AppDeps struct {
	Config *configs.ServerConfig
	Store  Store
	// Gateway serves the realtime websocket. The route is not mounted when nil.
	Gateway *gateway.Gateway
}
