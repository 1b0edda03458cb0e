package postgres

import (
	"context"

	"github.com/higgyo/app-dam/internal/app/backend"
	"github.com/higgyo/app-dam/internal/app/db"
	"github.com/higgyo/app-dam/internal/domain"
	"github.com/higgyo/app-dam/internal/pkg/errs"
	"github.com/higgyo/app-dam/internal/pkg/randx"
)

// RoomRepository creates and joins rooms through the functions service, which owns the
// room password hashes, and lists memberships straight from the database.
type RoomRepository struct {
	auth  AuthClient
	rooms RoomStore
}

var _ domain.RoomRepository = (*RoomRepository)(nil)

func NewRoomRepository(auth AuthClient, rooms RoomStore) *RoomRepository {
	return &RoomRepository{auth: auth, rooms: rooms}
}

func (r *RoomRepository) CreateRoom(ctx context.Context, name string, pw domain.Password) (domain.Room, error) {
	if _, err := domain.NewRoom(domain.RoomParams{Name: name}); err != nil {
		return domain.Room{}, err
	}

	var info backend.RoomInfo
	err := r.auth.Invoke(ctx, backend.FunctionCreateRoom, backend.CreateRoomRequest{Name: name, Password: pw.Value()}, &info)
	if err != nil {
		return domain.Room{}, err
	}

	return domain.NewRoom(domain.RoomParams{
		ID:        info.ID,
		Name:      info.Name,
		Password:  &pw,
		Code:      info.Code,
		CreatorID: info.CreatorID,
	})
}

func (r *RoomRepository) EnterRoom(ctx context.Context, code string, pw domain.Password) (domain.Room, error) {
	if !randx.IsValidRoomCode(code) {
		return domain.Room{}, errs.NewError(errs.ErrRoomAccessDenied)
	}

	var info backend.RoomInfo
	err := r.auth.Invoke(ctx, backend.FunctionEnterRoom, backend.EnterRoomRequest{Code: code, Password: pw.Value()}, &info)
	if err != nil {
		return domain.Room{}, err
	}

	return roomFromInfo(info)
}

func (r *RoomRepository) GetRoomsList(ctx context.Context) ([]domain.Room, error) {
	userID, err := r.auth.CurrentUserID(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := r.rooms.ListRoomsForUser(ctx, userID)
	if err != nil {
		return nil, errs.Wrap(errs.ErrPersistence, err)
	}

	rooms := make([]domain.Room, 0, len(rows))
	for _, row := range rows {
		room, err := roomFromRow(row)
		if err != nil {
			return nil, errs.Wrap(errs.ErrPersistence, err)
		}
		rooms = append(rooms, room)
	}
	return rooms, nil
}

func roomFromInfo(info backend.RoomInfo) (domain.Room, error) {
	return domain.NewRoom(domain.RoomParams{
		ID:        info.ID,
		Name:      info.Name,
		Code:      info.Code,
		CreatorID: info.CreatorID,
	})
}

func roomFromRow(row db.RoomRow) (domain.Room, error) {
	return domain.NewRoom(domain.RoomParams{
		ID:        row.ID,
		Name:      row.Name,
		Code:      row.Code,
		CreatorID: row.CreatorID,
	})
}
