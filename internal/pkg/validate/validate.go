/*
Package validate checks tagged input structs with go-playground/validator and reports the
first failure as an application error.
*/
package validate

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/higgyo/app-dam/internal/pkg/errs"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// fieldCodes maps struct field names to the error code reported when they fail.
var fieldCodes = map[string]int{
	"Name":     errs.ErrNameRequired,
	"Email":    errs.ErrInvalidEmail,
	"Password": errs.ErrInvalidPassword,
	"RoomID":   errs.ErrRoomIDRequired,
	"SenderID": errs.ErrSenderIDRequired,
	"Code":     errs.ErrRoomCodeInvalid,
	"Type":     errs.ErrInvalidMessageType,
}

// Struct validates s. Failures on fields without a dedicated code become ErrInvalidParams.
func Struct(s any) *errs.CustomError {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return errs.Wrap(errs.ErrInvalidParams, err)
	}

	fe := fieldErrs[0]
	code, ok := fieldCodes[fe.StructField()]
	if !ok {
		return errs.Wrap(errs.ErrInvalidParams, fe)
	}
	if code == errs.ErrInvalidMessageType {
		return errs.NewError(code, fmt.Sprint(fe.Value()))
	}
	return errs.NewError(code)
}
