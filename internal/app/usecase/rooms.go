package usecase

import (
	"context"

	"github.com/higgyo/app-dam/internal/domain"
	"github.com/higgyo/app-dam/internal/pkg/validate"
)

type CreateRoomParams struct {
	Name     string `validate:"required,max=100"`
	Password string `validate:"required"`
}

type EnterRoomParams struct {
	Code     string `validate:"required"`
	Password string `validate:"required"`
}

type Rooms struct {
	repo domain.RoomRepository
}

func NewRooms(repo domain.RoomRepository) *Rooms {
	return &Rooms{repo: repo}
}

func (r *Rooms) Create(ctx context.Context, p CreateRoomParams) (domain.Room, error) {
	if customErr := validate.Struct(p); customErr != nil {
		return domain.Room{}, customErr
	}
	pw, err := domain.NewPassword(p.Password)
	if err != nil {
		return domain.Room{}, err
	}
	return r.repo.CreateRoom(ctx, p.Name, pw)
}

func (r *Rooms) Enter(ctx context.Context, p EnterRoomParams) (domain.Room, error) {
	if customErr := validate.Struct(p); customErr != nil {
		return domain.Room{}, customErr
	}
	pw, err := domain.NewPassword(p.Password)
	if err != nil {
		return domain.Room{}, err
	}
	return r.repo.EnterRoom(ctx, p.Code, pw)
}

func (r *Rooms) List(ctx context.Context) ([]domain.Room, error) {
	return r.repo.GetRoomsList(ctx)
}
