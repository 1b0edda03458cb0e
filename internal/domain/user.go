package domain

import (
	"strings"

	"github.com/google/uuid"

	"github.com/higgyo/app-dam/internal/pkg/errs"
)

// UserParams carries the fields of a User. An empty ID makes NewUser mint one.
type UserParams struct {
	ID       string
	Name     string
	Email    Email
	Password *Password
	Location *GeoLocation
}

// User is a registered participant. The password is only present transiently, between
// the moment the user typed it and the backend call that consumes it.
type User struct {
	id       string
	name     string
	email    Email
	password *Password
	location *GeoLocation
}

// NewUser builds a User, reusing p.ID when set and generating a UUIDv4 otherwise.
func NewUser(p UserParams) (User, error) {
	if strings.TrimSpace(p.Name) == "" {
		return User{}, errs.NewError(errs.ErrNameRequired)
	}
	if p.Email.IsZero() {
		return User{}, errs.NewError(errs.ErrInvalidEmail)
	}

	id := p.ID
	if id == "" {
		id = uuid.NewString()
	}

	return User{
		id:       id,
		name:     p.Name,
		email:    p.Email,
		password: p.Password,
		location: p.Location,
	}, nil
}

func (u User) ID() string { return u.id }
func (u User) Name() string { return u.name }
func (u User) Email() Email { return u.email }

// Password returns the transient password, if the user carries one.
func (u User) Password() (Password, bool) {
	if u.password == nil {
		return Password{}, false
	}
	return *u.password, true
}

// Location returns the last known location, if any.
func (u User) Location() (GeoLocation, bool) {
	if u.location == nil {
		return GeoLocation{}, false
	}
	return *u.location, true
}

// Params returns the fields of u, ready to be altered and fed back into NewUser.
func (u User) Params() UserParams {
	return UserParams{
		ID:       u.id,
		Name:     u.name,
		Email:    u.email,
		Password: u.password,
		Location: u.location,
	}
}

// WithoutPassword returns a copy of u that no longer carries the transient password.
func (u User) WithoutPassword() User {
	u.password = nil
	return u
}
