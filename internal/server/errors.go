package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/scythe504/spyroom-backend/internal/game"
)

var (
	errMissingSession = errors.New("missing or unknown session")
	errBadRequest     = errors.New("malformed request body")
	errWrongRoom      = errors.New("session is not in this room")
)

// StatusError carries the HTTP status an error should be answered with.
type StatusError struct {
	Code int
	Err  error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%d: %v", e.Code, e.Err)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

func withStatus(code int, err error) error {
	return &StatusError{Code: code, Err: err}
}

// statusFor maps transport and engine errors to a response status.
func statusFor(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	switch {
	case errors.Is(err, game.ErrAuthenticationRequired):
		return http.StatusUnauthorized
	case errors.Is(err, game.ErrRoomNotFound):
		return http.StatusNotFound
	case errors.Is(err, game.ErrNotHost), errors.Is(err, game.ErrNotSpy),
		errors.Is(err, game.ErrPremiumRequired), errors.Is(err, game.ErrNotInRoom):
		return http.StatusForbidden
	case errors.Is(err, game.ErrRoomFull), errors.Is(err, game.ErrRoomAlreadyStarted),
		errors.Is(err, game.ErrNameTaken), errors.Is(err, game.ErrInvalidPhase),
		errors.Is(err, game.ErrNotReady), errors.Is(err, game.ErrNotEnoughPlayers),
		errors.Is(err, game.ErrAlreadyGuessed):
		return http.StatusConflict
	case errors.Is(err, game.ErrInvalidCapacity), errors.Is(err, game.ErrInvalidName),
		errors.Is(err, game.ErrInvalidVote), errors.Is(err, game.ErrUnknownLocationSet):
		return http.StatusBadRequest
	case errors.Is(err, game.ErrWriteFailure), errors.Is(err, game.ErrDecodeFailure),
		errors.Is(err, game.ErrNoFreeRoomCode):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// messageFor is the text sent to the client for err.
func messageFor(err error) string {
	var se *StatusError
	if errors.As(err, &se) {
		switch {
		case errors.Is(se.Err, errMissingSession), errors.Is(se.Err, errBadRequest), errors.Is(se.Err, errWrongRoom):
			return se.Err.Error()
		}
	}
	return game.UserMessage(err)
}
