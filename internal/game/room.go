package game

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/scythe504/spyroom-backend/internal"
	"github.com/scythe504/spyroom-backend/internal/store"
	"github.com/scythe504/spyroom-backend/internal/utils"
)

// =============================================================================
// ROOM LIFECYCLE
// =============================================================================

const createAttempts = 5

// Create makes a new room hosted by this client's session and enters it.
func (c *Client) Create(ctx context.Context, hostName string, capacity int, locationSet string) (*internal.Room, error) {
	// 1. Identity and input
	sessionID, err := c.sessionID()
	if err != nil {
		return nil, err
	}
	hostName = utils.NormalizeName(hostName)
	if !utils.IsValidName(hostName) {
		return nil, ErrInvalidName
	}
	if capacity < internal.MinPlayersPerRoom || capacity > internal.MaxPlayersPerRoom {
		return nil, ErrInvalidCapacity
	}

	// 2. Catalog and secret location
	set, err := c.catalogs.Resolve(locationSet, c.entitlements)
	if err != nil {
		return nil, err
	}
	location := set.Pick(c.rng)

	// 3. Room code, skipping codes that are already live
	code, err := c.freeRoomCode(ctx)
	if err != nil {
		return nil, err
	}

	room := &internal.Room{
		Id:         code,
		HostId:     sessionID,
		HostName:   hostName,
		Location:   location,
		MaxPlayers: capacity,
		Players: []internal.Player{{
			Name:      hostName,
			IsPremium: c.entitlements.IsPremiumEntitled(),
		}},
		Status:              internal.PhaseWaiting,
		CreatedAt:           internal.EpochSeconds(c.clock.ServerNow()),
		ReadyPlayers:        map[string]bool{hostName: false},
		SelectedLocationSet: set.ID,
	}

	// 4. Whole-document write
	if err := c.store.Set(ctx, code, room); err != nil {
		log.Printf("[Create] room=%s: write failed: %v", code, err)
		return nil, fmt.Errorf("%w: %w", ErrWriteFailure, err)
	}
	c.enter(code, hostName)

	log.Printf("[Create] room=%s: created by %s (max=%d, set=%s)", code, hostName, capacity, set.ID)
	return room, nil
}

func (c *Client) freeRoomCode(ctx context.Context) (string, error) {
	for range createAttempts {
		code, err := c.newCode()
		if err != nil {
			return "", err
		}
		snap, err := c.store.Get(ctx, code)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrWriteFailure, err)
		}
		if !snap.Exists {
			return code, nil
		}
		log.Printf("[Create] room=%s: code already in use, drawing another", code)
	}
	return "", ErrNoFreeRoomCode
}

// Join adds playerName to the room. Capacity, phase and name checks run
// inside the store transaction, so two concurrent joiners cannot both take
// the last seat.
func (c *Client) Join(ctx context.Context, code, playerName string) (*internal.Room, error) {
	code = utils.NormalizeRoomCode(code)
	if !utils.IsValidRoomCode(code) {
		return nil, ErrRoomNotFound
	}
	playerName = utils.NormalizeName(playerName)
	if !utils.IsValidName(playerName) {
		return nil, ErrInvalidName
	}
	premium := c.entitlements.IsPremiumEntitled()

	room, err := c.mutateRoom(ctx, code, func(room *internal.Room) (store.Mutation, error) {
		switch {
		case room.IsFull():
			return store.Mutation{}, ErrRoomFull
		case room.Status != internal.PhaseWaiting:
			return store.Mutation{}, ErrRoomAlreadyStarted
		case room.HasPlayer(playerName):
			return store.Mutation{}, ErrNameTaken
		}

		players := append(room.Players, internal.Player{Name: playerName, IsPremium: premium})
		room.Players = players
		ready := pruneReady(room)
		ready[playerName] = false

		return store.Mutation{Set: map[string]any{
			internal.FieldPlayers:      players,
			internal.FieldReadyPlayers: ready,
		}}, nil
	})
	if err != nil {
		log.Printf("[Join] room=%s: %s rejected: %v", code, playerName, err)
		return nil, err
	}
	if room == nil {
		return nil, ErrRoomNotFound
	}
	c.enter(code, playerName)

	log.Printf("[Join] room=%s: player %s joined (%d/%d)", code, playerName, room.PlayerCount(), room.MaxPlayers)
	return room, nil
}

// Leave removes this client from its room. The last player out deletes the
// room. Leaving always succeeds from the caller's point of view, failures
// are only logged.
func (c *Client) Leave(ctx context.Context) {
	code, name, err := c.current()
	if err != nil {
		return
	}
	defer c.forget(code)

	_, err = c.mutateRoom(ctx, code, func(room *internal.Room) (store.Mutation, error) {
		i := room.IndexOf(name)
		if i < 0 {
			return store.Mutation{}, nil
		}
		room.Players = append(room.Players[:i:i], room.Players[i+1:]...)
		if len(room.Players) == 0 {
			return store.Mutation{Delete: true}, nil
		}

		fields := map[string]any{
			internal.FieldPlayers:      room.Players,
			internal.FieldReadyPlayers: pruneReady(room),
		}
		if len(room.Votes) > 0 {
			fields[internal.FieldVotes] = pruneVotes(room)
		}
		if room.Status == internal.PhasePlaying && len(room.Players) < internal.MinPlayersToStart {
			fields[internal.FieldStatus] = internal.PhaseCancelled
		}
		return store.Mutation{Set: fields}, nil
	})
	switch {
	case err == nil:
		log.Printf("[Leave] room=%s: player %s left", code, name)
	case errors.Is(err, ErrRoomNotFound):
		log.Printf("[Leave] room=%s: already gone", code)
	default:
		log.Printf("[Leave] room=%s: player %s leave failed: %v", code, name, err)
	}
}

// closeIfEmpty deletes the room only if nobody is in it at the moment of
// the write, so a player who joined after the empty snapshot keeps the room.
func (c *Client) closeIfEmpty(ctx context.Context, code string) (bool, error) {
	deleted := false
	_, err := c.store.Transact(ctx, code, func(snap store.Snapshot) (store.Mutation, error) {
		deleted = false
		if !snap.Exists {
			return store.Mutation{}, nil
		}
		room, err := DecodeRoom(snap)
		if err != nil {
			return store.Mutation{}, err
		}
		if room.PlayerCount() > 0 {
			return store.Mutation{}, nil
		}
		deleted = true
		return store.Mutation{Delete: true}, nil
	})
	if err != nil {
		if errors.Is(err, ErrDecodeFailure) {
			return false, err
		}
		return false, fmt.Errorf("%w: %w", ErrWriteFailure, err)
	}
	if deleted {
		log.Printf("[closeIfEmpty] room=%s: empty, deleted", code)
	}
	return deleted, nil
}

// closeRoom deletes the room document unconditionally. Deleting a room that
// is already gone is fine.
func (c *Client) closeRoom(ctx context.Context, code string) error {
	if err := c.store.Delete(ctx, code); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailure, err)
	}
	log.Printf("[closeRoom] room=%s: deleted", code)
	return nil
}
