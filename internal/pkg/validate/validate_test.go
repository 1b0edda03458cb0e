package validate

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/higgyo/app-dam/internal/pkg/errs"
)

type sample struct {
	Name   string `validate:"required,max=10"`
	Type   string `validate:"omitempty,oneof=text image video"`
	Limit  int    `validate:"gte=0"`
	RoomID string `validate:"required"`
}

func TestStruct(t *testing.T) {
	t.Run("should accept valid input", func(t *testing.T) {
		require.Nil(t, Struct(sample{Name: "Praia", RoomID: "r1"}))
	})

	t.Run("should report the dedicated code of the failing field", func(t *testing.T) {
		req := require.New(t)

		err := Struct(sample{RoomID: "r1"})

		req.Equal(errs.ErrNameRequired, err.Code)
		req.Equal(errs.KindValidation, err.Kind)
	})

	t.Run("should format the message type", func(t *testing.T) {
		err := Struct(sample{Name: "x", RoomID: "r1", Type: "audio"})
		require.Equal(t, "Tipo de mensagem inválido: audio", err.Message)
	})

	t.Run("should fall back to invalid params", func(t *testing.T) {
		err := Struct(sample{Name: "x", RoomID: "r1", Limit: -1})
		require.Equal(t, errs.ErrInvalidParams, err.Code)
	})
}
