package domain

import (
	"strings"

	"github.com/google/uuid"

	"github.com/higgyo/app-dam/internal/pkg/errs"
)

// RoomParams carries the fields of a Room. Rooms read back from the backend have no
// password; the backend keeps only its hash.
type RoomParams struct {
	ID        string
	Name      string
	Password  *Password
	Code      string
	CreatorID string
}

// Room is a named, password protected conversation joined through its short code.
type Room struct {
	id        string
	name      string
	password  *Password
	code      string
	creatorID string
}

// NewRoom builds a Room, generating a UUIDv4 when p.ID is empty.
func NewRoom(p RoomParams) (Room, error) {
	if strings.TrimSpace(p.Name) == "" {
		return Room{}, errs.NewError(errs.ErrNameRequired)
	}

	id := p.ID
	if id == "" {
		id = uuid.NewString()
	}

	return Room{
		id:        id,
		name:      p.Name,
		password:  p.Password,
		code:      p.Code,
		creatorID: p.CreatorID,
	}, nil
}

func (r Room) ID() string { return r.id }
func (r Room) Name() string { return r.name }
func (r Room) Code() string { return r.code }
func (r Room) CreatorID() string { return r.creatorID }

func (r Room) Password() (Password, bool) {
	if r.password == nil {
		return Password{}, false
	}
	return *r.password, true
}
