package game

import (
	"errors"
	"strings"

	"github.com/scythe504/spyroom-backend/internal/catalog"
)

var (
	// Lifecycle
	ErrAuthenticationRequired = errors.New("authentication required")
	ErrRoomNotFound           = errors.New("room not found")
	ErrRoomFull               = errors.New("room is full")
	ErrRoomAlreadyStarted     = errors.New("game has already started")
	ErrNotInRoom              = errors.New("not in a room")
	ErrInvalidCapacity        = errors.New("max players must be between 2 and 8")
	ErrInvalidName            = errors.New("invalid player name")
	ErrNameTaken              = errors.New("name already taken in this room")
	ErrUnknownLocationSet     = catalog.ErrUnknownSet
	ErrPremiumRequired        = catalog.ErrPremiumRequired

	// Store
	ErrWriteFailure   = errors.New("write failed")
	ErrDecodeFailure  = errors.New("room document could not be decoded")
	ErrNoFreeRoomCode = errors.New("no free room code")

	// Game rules
	ErrNotHost          = errors.New("only the host can do that")
	ErrInvalidPhase     = errors.New("not allowed in the current phase")
	ErrNotReady         = errors.New("not every player is ready")
	ErrNotEnoughPlayers = errors.New("not enough players")
	ErrInvalidVote      = errors.New("invalid vote")
	ErrNotSpy           = errors.New("only the spy can guess the location")
	ErrAlreadyGuessed   = errors.New("the spy has already guessed")
)

// User-visible notices that are not errors.
const (
	NoticeNotEnoughPlayers = "The game was cancelled because there are not enough players left."
	NoticeCancelledByHost  = "The host cancelled the game."
	NoticeRoomClosed       = "The room has been closed."
)

// UserMessage maps an engine error to the text shown to the player.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRoomFull), errors.Is(err, ErrRoomAlreadyStarted):
		return "Room is full or game has already started"
	case errors.Is(err, ErrRoomNotFound):
		return "Room not found"
	case errors.Is(err, ErrAuthenticationRequired):
		return "Still signing in, please try again in a moment"
	case errors.Is(err, ErrNotEnoughPlayers):
		return "At least 2 players are needed to play"
	case errors.Is(err, ErrWriteFailure), errors.Is(err, ErrDecodeFailure):
		return "Network error, please try again"
	case errors.Is(err, ErrNoFreeRoomCode):
		return "Could not create a room, please try again"
	case errors.Is(err, ErrInvalidCapacity), errors.Is(err, ErrInvalidName),
		errors.Is(err, ErrNameTaken), errors.Is(err, ErrUnknownLocationSet),
		errors.Is(err, ErrPremiumRequired), errors.Is(err, ErrNotHost),
		errors.Is(err, ErrInvalidPhase), errors.Is(err, ErrNotReady),
		errors.Is(err, ErrInvalidVote), errors.Is(err, ErrNotSpy),
		errors.Is(err, ErrAlreadyGuessed), errors.Is(err, ErrNotInRoom):
		return capitalize(rootCause(err).Error())
	}
	return "Something went wrong"
}

func rootCause(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
