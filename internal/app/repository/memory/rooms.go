package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/higgyo/app-dam/internal/domain"
	"github.com/higgyo/app-dam/internal/pkg/auth/password"
	"github.com/higgyo/app-dam/internal/pkg/errs"
	"github.com/higgyo/app-dam/internal/pkg/randx"
)

// maxCodeAttempts bounds the retries when a minted join code is already taken.
const maxCodeAttempts = 5

// RoomRepository is the in-memory domain.RoomRepository. The caller is the store's
// current user.
type RoomRepository struct {
	store *Store
}

var _ domain.RoomRepository = (*RoomRepository)(nil)

func NewRoomRepository(store *Store) *RoomRepository {
	return &RoomRepository{store: store}
}

func (r *RoomRepository) CreateRoom(_ context.Context, name string, pw domain.Password) (domain.Room, error) {
	callerID := r.store.CurrentUserID()
	if callerID == "" {
		return domain.Room{}, errs.NewError(errs.ErrUnauthorized)
	}

	room, err := domain.NewRoom(domain.RoomParams{Name: name, Password: &pw, CreatorID: callerID})
	if err != nil {
		return domain.Room{}, err
	}

	hash, err := password.Hash(pw.Value())
	if err != nil {
		return domain.Room{}, errs.Wrap(errs.ErrPersistence, err)
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	code, err := r.mintCodeLocked()
	if err != nil {
		return domain.Room{}, err
	}

	rec := roomRecord{
		id:           room.ID(),
		name:         room.Name(),
		code:         code,
		passwordHash: hash,
		creatorID:    callerID,
	}
	r.store.rooms[rec.id] = rec
	r.store.members[rec.id] = append(r.store.members[rec.id], callerID)

	return domain.NewRoom(domain.RoomParams{
		ID:        rec.id,
		Name:      rec.name,
		Password:  &pw,
		Code:      rec.code,
		CreatorID: rec.creatorID,
	})
}

// EnterRoom adds the caller to the room behind code. An unknown code and a wrong password
// fail the same way so codes cannot be discovered.
func (r *RoomRepository) EnterRoom(_ context.Context, code string, pw domain.Password) (domain.Room, error) {
	callerID := r.store.CurrentUserID()
	if callerID == "" {
		return domain.Room{}, errs.NewError(errs.ErrUnauthorized)
	}

	r.store.mu.RLock()
	rec, ok := r.store.roomByCodeLocked(code)
	r.store.mu.RUnlock()
	if !ok {
		return domain.Room{}, errs.NewError(errs.ErrRoomAccessDenied)
	}
	if match, err := password.Verify(pw.Value(), rec.passwordHash); err != nil || !match {
		return domain.Room{}, errs.NewError(errs.ErrRoomAccessDenied)
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.rooms[rec.id]; !ok {
		return domain.Room{}, errs.NewError(errs.ErrRoomAccessDenied)
	}
	if !lo.Contains(r.store.members[rec.id], callerID) {
		r.store.members[rec.id] = append(r.store.members[rec.id], callerID)
	}

	return rec.toDomain()
}

// GetRoomsList returns the rooms the caller belongs to, by name.
func (r *RoomRepository) GetRoomsList(context.Context) ([]domain.Room, error) {
	callerID := r.store.CurrentUserID()
	if callerID == "" {
		return nil, errs.NewError(errs.ErrUnauthorized)
	}

	r.store.mu.RLock()
	records := lo.Filter(lo.Values(r.store.rooms), func(rec roomRecord, _ int) bool {
		return lo.Contains(r.store.members[rec.id], callerID)
	})
	r.store.mu.RUnlock()

	sort.Slice(records, func(i, j int) bool {
		if records[i].name != records[j].name {
			return records[i].name < records[j].name
		}
		return records[i].id < records[j].id
	})

	rooms := make([]domain.Room, 0, len(records))
	for _, rec := range records {
		room, err := rec.toDomain()
		if err != nil {
			return nil, errs.Wrap(errs.ErrPersistence, err)
		}
		rooms = append(rooms, room)
	}
	return rooms, nil
}

func (r *RoomRepository) mintCodeLocked() (string, error) {
	for range maxCodeAttempts {
		code, err := randx.RoomCode()
		if err != nil {
			return "", errs.Wrap(errs.ErrUnknown, err)
		}
		if _, taken := r.store.roomByCodeLocked(code); !taken {
			return code, nil
		}
	}
	return "", errs.NewError(errs.ErrRoomCodeExists)
}

func (rec roomRecord) toDomain() (domain.Room, error) {
	return domain.NewRoom(domain.RoomParams{
		ID:        rec.id,
		Name:      rec.name,
		Code:      rec.code,
		CreatorID: rec.creatorID,
	})
}

// AddRoom inserts a room directly, bypassing the caller checks. The returned room carries
// the generated id and code.
func (s *Store) AddRoom(name, plainPassword, creatorID string) (domain.Room, error) {
	hash, err := password.Hash(plainPassword)
	if err != nil {
		return domain.Room{}, err
	}

	code, err := randx.RoomCode()
	if err != nil {
		return domain.Room{}, err
	}

	rec := roomRecord{id: uuid.NewString(), name: name, code: code, passwordHash: hash, creatorID: creatorID}

	s.mu.Lock()
	s.rooms[rec.id] = rec
	if creatorID != "" {
		s.members[rec.id] = append(s.members[rec.id], creatorID)
	}
	s.mu.Unlock()

	return rec.toDomain()
}
