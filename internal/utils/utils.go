package utils

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/scythe504/spyroom-backend/internal"
)

// =============================================================================
// ROOM CODES
// =============================================================================

const (
	roomCodeLetters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	roomCodeDigits  = "0123456789"

	MaxNameLength = 20
)

// GenerateRoomCode returns 3 uppercase letters followed by 3 digits, each
// drawn uniformly. Collisions are not checked.
func GenerateRoomCode() (string, error) {
	letters, err := gonanoid.Generate(roomCodeLetters, internal.RoomCodeLetters)
	if err != nil {
		return "", fmt.Errorf("generate room code letters: %w", err)
	}
	digits, err := gonanoid.Generate(roomCodeDigits, internal.RoomCodeDigits)
	if err != nil {
		return "", fmt.Errorf("generate room code digits: %w", err)
	}
	return letters + digits, nil
}

// NormalizeRoomCode upper-cases and trims user input.
func NormalizeRoomCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsValidRoomCode checks the AAA000 shape.
func IsValidRoomCode(code string) bool {
	if len(code) != internal.RoomCodeLetters+internal.RoomCodeDigits {
		return false
	}
	for i := 0; i < len(code); i++ {
		c := code[i]
		if i < internal.RoomCodeLetters {
			if c < 'A' || c > 'Z' {
				return false
			}
			continue
		}
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// =============================================================================
// PLAYER NAMES
// =============================================================================

// NormalizeName trims and collapses inner whitespace. Names are room keys,
// so two spellings that only differ in spacing must map to one player.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}

// IsValidName accepts 1..MaxNameLength printable runes.
func IsValidName(name string) bool {
	n := utf8.RuneCountInString(name)
	if n == 0 || n > MaxNameLength {
		return false
	}
	for _, r := range name {
		if !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}
