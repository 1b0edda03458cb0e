package randx

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoomCode(t *testing.T) {
	t.Run("should produce valid codes", func(t *testing.T) {
		req := require.New(t)

		for range 200 {
			code, err := RoomCode()
			req.NoError(err)
			req.True(IsValidRoomCode(code), code)
		}
	})

	t.Run("should not repeat itself across a small sample", func(t *testing.T) {
		seen := make(map[string]struct{})
		for range 500 {
			code, err := RoomCode()
			require.NoError(t, err)
			seen[code] = struct{}{}
		}
		require.Greater(t, len(seen), 495)
	})
}

func TestIsValidRoomCode(t *testing.T) {
	req := require.New(t)

	req.True(IsValidRoomCode("aZ09xY"))
	req.False(IsValidRoomCode("aZ09x"))
	req.False(IsValidRoomCode("aZ09xY1"))
	req.False(IsValidRoomCode("aZ-9xY"))
	req.False(IsValidRoomCode(""))
}
