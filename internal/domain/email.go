/*
Package domain holds the entities, value objects and repository contracts of the chat core.

Value objects validate themselves at construction and never change afterwards. Entities are
built through a single factory each and expose read-only accessors. Nothing in this package
performs I/O.
*/
package domain

import (
	"regexp"

	"github.com/higgyo/app-dam/internal/pkg/errs"
)

var emailPattern = regexp.MustCompile(`^[\w\-.]+@([\w-]+\.)+[\w-]{2,4}$`)

// Email is a syntactically valid e-mail address.
type Email struct {
	value string
}

// NewEmail validates raw and wraps it.
func NewEmail(raw string) (Email, error) {
	if !emailPattern.MatchString(raw) {
		return Email{}, errs.NewError(errs.ErrInvalidEmail)
	}
	return Email{value: raw}, nil
}

func (e Email) Value() string {
	return e.value
}

func (e Email) String() string {
	return e.value
}

// IsZero reports whether e was never constructed.
func (e Email) IsZero() bool {
	return e.value == ""
}
