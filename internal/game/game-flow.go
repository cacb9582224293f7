package game

import (
	"context"
	"log"

	"github.com/scythe504/spyroom-backend/internal"
	"github.com/scythe504/spyroom-backend/internal/store"
)

// =============================================================================
// GAME FLOW - PHASE TRANSITIONS
// =============================================================================
//
// Every transition runs inside a store transaction guarded on the expected
// current status. A transition that already happened is a no-op, so several
// clients racing on the same timer all end up with one write.

// StartVoting moves playing to voting. Host only.
func (c *Client) StartVoting(ctx context.Context) (*internal.Room, error) {
	code, _, err := c.current()
	if err != nil {
		return nil, err
	}
	return c.startVoting(ctx, code)
}

func (c *Client) startVoting(ctx context.Context, code string) (*internal.Room, error) {
	room, err := c.mutateRoom(ctx, code, func(room *internal.Room) (store.Mutation, error) {
		if err := c.requireHost(room); err != nil {
			return store.Mutation{}, err
		}
		switch room.Status {
		case internal.PhaseVoting, internal.PhaseFinished:
			return store.Mutation{}, nil
		case internal.PhasePlaying:
		default:
			return store.Mutation{}, ErrInvalidPhase
		}
		return store.Mutation{Set: map[string]any{
			internal.FieldStatus:                internal.PhaseVoting,
			internal.FieldVotingStartAt:         store.ServerTimestamp,
			internal.FieldVotingDurationSeconds: internal.VotingDurationSeconds,
			internal.FieldVotes:                 map[string]string{},
			internal.FieldSpyGuess:              nil,
			internal.FieldVotingResult:          nil,
		}}, nil
	})
	if err != nil {
		log.Printf("[startVoting] room=%s: %v", code, err)
		return nil, err
	}
	if room == nil {
		return nil, ErrRoomNotFound
	}
	log.Printf("[startVoting] room=%s: voting open for %ds", code, internal.VotingDurationSeconds)
	return room, nil
}

// EndVotingAndReveal closes voting and publishes the result. Host only.
func (c *Client) EndVotingAndReveal(ctx context.Context) (*internal.Room, error) {
	code, _, err := c.current()
	if err != nil {
		return nil, err
	}
	return c.finishVoting(ctx, code, true)
}

// finishVoting tallies and writes votingResult together with
// status=finished. Without hostRequest it is the early termination any
// client may run, which only fires once everyone has voted and the spy has
// guessed or skipped.
func (c *Client) finishVoting(ctx context.Context, code string, hostRequest bool) (*internal.Room, error) {
	room, err := c.mutateRoom(ctx, code, func(room *internal.Room) (store.Mutation, error) {
		if hostRequest {
			if err := c.requireHost(room); err != nil {
				return store.Mutation{}, err
			}
		}
		switch room.Status {
		case internal.PhaseFinished:
			return store.Mutation{}, nil
		case internal.PhaseVoting:
		default:
			if hostRequest {
				return store.Mutation{}, ErrInvalidPhase
			}
			return store.Mutation{}, nil
		}
		if !hostRequest && !ShouldEndVotingEarly(room) {
			return store.Mutation{}, nil
		}

		return store.Mutation{Set: map[string]any{
			internal.FieldVotingResult: ResolveOutcome(room),
			internal.FieldStatus:       internal.PhaseFinished,
		}}, nil
	})
	if err != nil {
		log.Printf("[finishVoting] room=%s: %v", code, err)
		return nil, err
	}
	if room == nil {
		return nil, ErrRoomNotFound
	}
	if room.VotingResult != nil {
		log.Printf("[finishVoting] room=%s: most voted=%s spy=%s caught=%v tie=%v spyWins=%v",
			code, room.VotingResult.MostVotedPlayer, room.VotingResult.SpyName,
			room.VotingResult.SpyCaught, room.VotingResult.IsTie, room.VotingResult.SpyWins)
	}
	return room, nil
}

// CancelGame lets the host abort a running round.
func (c *Client) CancelGame(ctx context.Context) (*internal.Room, error) {
	code, _, err := c.current()
	if err != nil {
		return nil, err
	}
	room, err := c.mutateRoom(ctx, code, func(room *internal.Room) (store.Mutation, error) {
		if err := c.requireHost(room); err != nil {
			return store.Mutation{}, err
		}
		switch room.Status {
		case internal.PhaseCancelled:
			return store.Mutation{}, nil
		case internal.PhasePlaying, internal.PhaseVoting:
		default:
			return store.Mutation{}, ErrInvalidPhase
		}
		return store.Mutation{Set: map[string]any{internal.FieldStatus: internal.PhaseCancelled}}, nil
	})
	if err != nil {
		return nil, err
	}
	if room == nil {
		return nil, ErrRoomNotFound
	}
	log.Printf("[CancelGame] room=%s: cancelled by host", code)
	return room, nil
}

// cancelForLowPlayers ends a round that no longer has enough players and
// reports whether it did. Any client that notices may run it.
func (c *Client) cancelForLowPlayers(ctx context.Context, code string) (bool, error) {
	cancelled := false
	_, err := c.mutateRoom(ctx, code, func(room *internal.Room) (store.Mutation, error) {
		cancelled = false
		if room.Status != internal.PhasePlaying || room.PlayerCount() >= internal.MinPlayersToStart {
			return store.Mutation{}, nil
		}
		cancelled = true
		return store.Mutation{Set: map[string]any{internal.FieldStatus: internal.PhaseCancelled}}, nil
	})
	if err != nil {
		return false, err
	}
	if cancelled {
		log.Printf("[cancelForLowPlayers] room=%s: not enough players, round cancelled", code)
	}
	return cancelled, nil
}

// CloseRoom deletes the room for everyone. Host only.
func (c *Client) CloseRoom(ctx context.Context) error {
	code, _, err := c.current()
	if err != nil {
		return err
	}
	room, err := c.loadRoom(ctx, code)
	if err != nil {
		return err
	}
	if err := c.requireHost(room); err != nil {
		return err
	}
	if err := c.closeRoom(ctx, code); err != nil {
		return err
	}
	c.forget(code)
	return nil
}
