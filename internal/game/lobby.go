package game

import (
	"context"
	"log"

	"github.com/scythe504/spyroom-backend/internal"
	"github.com/scythe504/spyroom-backend/internal/store"
)

// =============================================================================
// READY-CHECK
// =============================================================================

// AllReady is true when every non-host player is ready. The host is
// implicitly ready; a stored host flag is kept but never required.
func AllReady(room *internal.Room) bool {
	for _, p := range room.Players {
		if p.Name == room.HostName {
			continue
		}
		if !room.ReadyPlayers[p.Name] {
			return false
		}
	}
	return true
}

// ToggleReady flips this player's ready flag.
func (c *Client) ToggleReady(ctx context.Context) (*internal.Room, error) {
	return c.setReady(ctx, func(current bool) bool { return !current })
}

// MarkReady sets this player's ready flag; calling it twice is harmless.
func (c *Client) MarkReady(ctx context.Context) (*internal.Room, error) {
	return c.setReady(ctx, func(bool) bool { return true })
}

func (c *Client) setReady(ctx context.Context, next func(current bool) bool) (*internal.Room, error) {
	code, name, err := c.current()
	if err != nil {
		return nil, err
	}

	room, err := c.mutateRoom(ctx, code, func(room *internal.Room) (store.Mutation, error) {
		if room.Status != internal.PhaseWaiting {
			return store.Mutation{}, ErrInvalidPhase
		}
		if !room.HasPlayer(name) {
			return store.Mutation{}, ErrNotInRoom
		}
		ready := pruneReady(room)
		ready[name] = next(ready[name])
		return store.Mutation{Set: map[string]any{internal.FieldReadyPlayers: ready}}, nil
	})
	if err != nil {
		return nil, err
	}
	if room == nil {
		return nil, ErrRoomNotFound
	}
	log.Printf("[setReady] room=%s: player %s ready=%v", code, name, room.ReadyPlayers[name])

	// Ready-check convergence starts the round without a host click.
	if room.PlayerCount() >= internal.MinPlayersToStart && AllReady(room) {
		if started, err := c.startRound(ctx, code, false); err != nil {
			log.Printf("[setReady] room=%s: auto start failed: %v", code, err)
		} else if started != nil {
			room = started
		}
	}
	return room, nil
}

// =============================================================================
// ROUND START / RESTART
// =============================================================================

// StartGame is the host's explicit start.
func (c *Client) StartGame(ctx context.Context) (*internal.Room, error) {
	code, _, err := c.current()
	if err != nil {
		return nil, err
	}
	return c.startRound(ctx, code, true)
}

// startRound assigns roles and moves waiting to playing. Without
// requireHost it is the ready-check auto-advance any client may perform.
func (c *Client) startRound(ctx context.Context, code string, requireHost bool) (*internal.Room, error) {
	room, err := c.mutateRoom(ctx, code, func(room *internal.Room) (store.Mutation, error) {
		if requireHost {
			if err := c.requireHost(room); err != nil {
				return store.Mutation{}, err
			}
		}
		if room.Status != internal.PhaseWaiting {
			if requireHost {
				return store.Mutation{}, ErrInvalidPhase
			}
			// Someone else already started it.
			return store.Mutation{}, nil
		}
		if room.PlayerCount() < internal.MinPlayersToStart {
			return store.Mutation{}, ErrNotEnoughPlayers
		}
		if !AllReady(room) {
			return store.Mutation{}, ErrNotReady
		}

		players, err := AssignRoles(room.Players, room.Location, c.rng)
		if err != nil {
			return store.Mutation{}, err
		}
		return store.Mutation{Set: map[string]any{
			internal.FieldStatus:                internal.PhasePlaying,
			internal.FieldPlayers:               players,
			internal.FieldGameStartAt:           store.ServerTimestamp,
			internal.FieldGameDurationSeconds:   internal.GameDurationSeconds,
			internal.FieldVotingStartAt:         nil,
			internal.FieldVotingDurationSeconds: nil,
			internal.FieldVotes:                 nil,
			internal.FieldSpyGuess:              nil,
			internal.FieldVotingResult:          nil,
		}}, nil
	})
	if err != nil {
		log.Printf("[startRound] room=%s: %v", code, err)
		return nil, err
	}
	if room == nil {
		return nil, ErrRoomNotFound
	}
	log.Printf("[startRound] room=%s: round started with %d players", code, room.PlayerCount())
	return room, nil
}

// Restart returns the room to a clean waiting state with a fresh location
// from the room's own catalog.
func (c *Client) Restart(ctx context.Context) (*internal.Room, error) {
	code, _, err := c.current()
	if err != nil {
		return nil, err
	}

	room, err := c.mutateRoom(ctx, code, func(room *internal.Room) (store.Mutation, error) {
		if err := c.requireHost(room); err != nil {
			return store.Mutation{}, err
		}

		location := room.Location
		if set, ok := c.catalogs.Get(room.SelectedLocationSet); ok && len(set.Locations) > 0 {
			location = set.Pick(c.rng)
		} else {
			log.Printf("[Restart] room=%s: unknown location set %q, keeping location", code, room.SelectedLocationSet)
		}

		players := make([]internal.Player, len(room.Players))
		for i, p := range room.Players {
			p.ResetRoundState()
			players[i] = p
		}
		return store.Mutation{Set: map[string]any{
			internal.FieldStatus:                internal.PhaseWaiting,
			internal.FieldPlayers:               players,
			internal.FieldLocation:              location,
			internal.FieldReadyPlayers:          nil,
			internal.FieldGameStartAt:           nil,
			internal.FieldGameDurationSeconds:   nil,
			internal.FieldVotingStartAt:         nil,
			internal.FieldVotingDurationSeconds: nil,
			internal.FieldVotes:                 nil,
			internal.FieldSpyGuess:              nil,
			internal.FieldVotingResult:          nil,
		}}, nil
	})
	if err != nil {
		return nil, err
	}
	if room == nil {
		return nil, ErrRoomNotFound
	}
	log.Printf("[Restart] room=%s: back to waiting", code)
	return room, nil
}
