/*
Package randx generates the short, human-shareable join codes of rooms.

Codes are RoomCodeLength characters drawn from the Base62 alphabet with crypto/rand.
*/
package randx

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

const (
	// Base62Chars defines the character set used for Base62 encoding (0-9, A-Z, a-z).
	Base62Chars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	// Base62Len is the number of characters in the Base62 character set.
	Base62Len = int64(len(Base62Chars))

	// RoomCodeLength is the fixed length of a room join code.
	RoomCodeLength = 6
)

// RoomCode returns a random Base62 join code of RoomCodeLength characters.
func RoomCode() (string, error) {
	return base62(RoomCodeLength)
}

// IsValidRoomCode reports whether code has the shape of a join code.
func IsValidRoomCode(code string) bool {
	if len(code) != RoomCodeLength {
		return false
	}

	for _, char := range code {
		if !strings.ContainsRune(Base62Chars, char) {
			return false
		}
	}

	return true
}

func base62(length int) (string, error) {
	result := make([]byte, length)

	for i := range length {
		num, err := rand.Int(rand.Reader, big.NewInt(Base62Len))
		if err != nil {
			return "", fmt.Errorf("failed to generate random base62 character: %w", err)
		}
		result[i] = Base62Chars[num.Int64()]
	}

	return string(result), nil
}
