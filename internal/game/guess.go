package game

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/scythe504/spyroom-backend/internal"
	"github.com/scythe504/spyroom-backend/internal/store"
)

// =============================================================================
// VOTES AND THE SPY'S GUESS
// =============================================================================

// CastVote records this player's accusation. A later vote replaces an
// earlier one. The first vote that gives a majority shortens the remaining
// voting time to ShortVotingDurationSeconds. It never lengthens it.
func (c *Client) CastVote(ctx context.Context, accused string) (*internal.Room, error) {
	code, voter, err := c.current()
	if err != nil {
		return nil, err
	}
	accused = strings.TrimSpace(accused)

	compressed := false
	room, err := c.mutateRoom(ctx, code, func(room *internal.Room) (store.Mutation, error) {
		if room.Status != internal.PhaseVoting {
			return store.Mutation{}, ErrInvalidPhase
		}
		if !room.HasPlayer(voter) {
			return store.Mutation{}, ErrNotInRoom
		}
		if accused == voter || !room.HasPlayer(accused) {
			return store.Mutation{}, ErrInvalidVote
		}

		hadMajority := MajorityVoted(room)
		votes := pruneVotes(room)
		votes[voter] = accused
		room.Votes = votes

		fields := map[string]any{internal.FieldVotes: votes}
		if !hadMajority && MajorityVoted(room) && c.shouldCompress(room) {
			fields[internal.FieldVotingDurationSeconds] = internal.ShortVotingDurationSeconds
			fields[internal.FieldVotingStartAt] = store.ServerTimestamp
			compressed = true
		}
		return store.Mutation{Set: fields}, nil
	})
	if err != nil {
		return nil, err
	}
	if room == nil {
		return nil, ErrRoomNotFound
	}

	log.Printf("[CastVote] room=%s: %s voted for %s (%d/%d)", code, voter, accused, len(room.Votes), room.PlayerCount())
	if compressed {
		log.Printf("[CastVote] room=%s: majority reached, voting ends in %ds", code, internal.ShortVotingDurationSeconds)
	}
	return c.maybeEndEarly(ctx, code, room), nil
}

// shouldCompress is true while more than the short window is left.
func (c *Client) shouldCompress(room *internal.Room) bool {
	if room.VotingDurationSeconds != nil && *room.VotingDurationSeconds <= internal.ShortVotingDurationSeconds {
		return false
	}
	remaining, ok := Remaining(room.VotingStartAt, room.VotingDurationSeconds, c.clock.ServerNow())
	return !ok || remaining > internal.ShortVotingDurationSeconds*time.Second
}

// SubmitSpyGuess records the spy's location guess. An empty guess is an
// explicit skip. The spy gets one guess per round.
func (c *Client) SubmitSpyGuess(ctx context.Context, guess string) (*internal.Room, error) {
	code, name, err := c.current()
	if err != nil {
		return nil, err
	}
	guess = strings.TrimSpace(guess)

	room, err := c.mutateRoom(ctx, code, func(room *internal.Room) (store.Mutation, error) {
		if room.Status != internal.PhaseVoting {
			return store.Mutation{}, ErrInvalidPhase
		}
		p := room.PlayerByName(name)
		if p == nil {
			return store.Mutation{}, ErrNotInRoom
		}
		if !p.IsSpy() {
			return store.Mutation{}, ErrNotSpy
		}
		if room.HasGuessed() {
			return store.Mutation{}, ErrAlreadyGuessed
		}
		return store.Mutation{Set: map[string]any{internal.FieldSpyGuess: guess}}, nil
	})
	if err != nil {
		return nil, err
	}
	if room == nil {
		return nil, ErrRoomNotFound
	}

	if guess == "" {
		log.Printf("[SubmitSpyGuess] room=%s: spy skipped the guess", code)
	} else {
		log.Printf("[SubmitSpyGuess] room=%s: spy guessed", code)
	}
	return c.maybeEndEarly(ctx, code, room), nil
}

// maybeEndEarly runs the early termination right after the write that
// completed the conditions. The watch loop's poll covers everything else.
func (c *Client) maybeEndEarly(ctx context.Context, code string, room *internal.Room) *internal.Room {
	if !ShouldEndVotingEarly(room) {
		return room
	}
	finished, err := c.finishVoting(ctx, code, false)
	if err != nil {
		log.Printf("[maybeEndEarly] room=%s: %v", code, err)
		return room
	}
	return finished
}
