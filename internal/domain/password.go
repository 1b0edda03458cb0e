package domain

import (
	"unicode/utf8"

	"github.com/higgyo/app-dam/internal/pkg/errs"
)

// MinPasswordLength is the only strength rule applied to passwords.
const MinPasswordLength = 8

// Password is a plain-text password of acceptable length. It only lives client-side
// and is hashed by the backend.
type Password struct {
	value string
}

// NewPassword validates raw and wraps it. Length is counted in characters.
func NewPassword(raw string) (Password, error) {
	if utf8.RuneCountInString(raw) < MinPasswordLength {
		return Password{}, errs.NewError(errs.ErrInvalidPassword)
	}
	return Password{value: raw}, nil
}

func (p Password) Value() string {
	return p.value
}

// String masks the value so passwords never end up in logs.
func (p Password) String() string {
	return "********"
}
