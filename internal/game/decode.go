package game

import (
	"encoding/json"
	"fmt"

	"github.com/scythe504/spyroom-backend/internal"
	"github.com/scythe504/spyroom-backend/internal/store"
)

// DecodeRoom turns a snapshot into a Room. A missing document is
// ErrRoomNotFound, anything that does not look like a room ErrDecodeFailure.
func DecodeRoom(snap store.Snapshot) (*internal.Room, error) {
	if !snap.Exists {
		return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, snap.Code)
	}
	var room internal.Room
	if err := json.Unmarshal(snap.Data, &room); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecodeFailure, err)
	}
	if !room.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrDecodeFailure, room.Status)
	}
	if room.Id == "" {
		room.Id = snap.Code
	}
	return &room, nil
}

// pruneReady drops flags of players no longer in the room.
func pruneReady(room *internal.Room) map[string]bool {
	out := make(map[string]bool, len(room.Players))
	for _, p := range room.Players {
		if ready, ok := room.ReadyPlayers[p.Name]; ok {
			out[p.Name] = ready
		}
	}
	return out
}

// pruneVotes keeps votes whose voter and accused are both still present
// and distinct.
func pruneVotes(room *internal.Room) map[string]string {
	out := make(map[string]string, len(room.Votes))
	for voter, accused := range room.Votes {
		if voter != accused && room.HasPlayer(voter) && room.HasPlayer(accused) {
			out[voter] = accused
		}
	}
	return out
}
