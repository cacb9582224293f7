package game

import (
	"strings"

	"github.com/scythe504/spyroom-backend/internal"
)

// Tally counts votes per accused. The most voted name is the one with the
// highest count; on a tie the lexicographically smallest tied name is
// reported and isTie is set. No votes yields internal.NoOneVoted.
func Tally(votes map[string]string) (mostVoted string, counts map[string]int, isTie bool) {
	counts = make(map[string]int, len(votes))
	for _, accused := range votes {
		counts[accused]++
	}

	mostVoted = internal.NoOneVoted
	best := 0
	for name, n := range counts {
		switch {
		case n > best:
			mostVoted, best, isTie = name, n, false
		case n == best:
			isTie = true
			if name < mostVoted {
				mostVoted = name
			}
		}
	}
	return mostVoted, counts, isTie
}

// SpyGuessCorrect compares a guess with the secret location, ignoring case.
// A missing guess or an explicit skip is unknown (nil).
func SpyGuessCorrect(guess *string, location internal.Location) *bool {
	if guess == nil {
		return nil
	}
	g := strings.TrimSpace(*guess)
	if g == "" {
		return nil
	}
	correct := strings.EqualFold(g, location.NameKey)
	return &correct
}

// SpyWins resolves the round. A caught spy still wins with a correct guess;
// an uncaught spy wins regardless.
func SpyWins(spyCaught bool, guessCorrect *bool) bool {
	return !spyCaught || (guessCorrect != nil && *guessCorrect)
}

// ResolveOutcome computes the voting result of a room. Votes of players
// who left, or against players who left, are not counted. A tie never
// catches the spy.
func ResolveOutcome(room *internal.Room) internal.VotingResult {
	mostVoted, counts, isTie := Tally(pruneVotes(room))

	spyName := ""
	if spy := room.Spy(); spy != nil {
		spyName = spy.Name
	}
	spyCaught := spyName != "" && !isTie && mostVoted == spyName
	guessCorrect := SpyGuessCorrect(room.SpyGuess, room.Location)

	return internal.VotingResult{
		MostVotedPlayer: mostVoted,
		SpyName:         spyName,
		SpyCaught:       spyCaught,
		VoteCounts:      counts,
		SpyGuessCorrect: guessCorrect,
		IsTie:           isTie,
		SpyWins:         SpyWins(spyCaught, guessCorrect),
	}
}

// MajorityVoted reports whether more than half of the players have voted.
func MajorityVoted(room *internal.Room) bool {
	n := room.PlayerCount()
	return n > 0 && len(pruneVotes(room)) >= n/2+1
}

// ShouldEndVotingEarly is true once every non-spy player has voted and the
// spy has guessed or skipped. The spy's own vote is optional.
func ShouldEndVotingEarly(room *internal.Room) bool {
	if room.Status != internal.PhaseVoting || !room.HasGuessed() {
		return false
	}
	spy := room.Spy()
	if spy == nil {
		return false
	}
	votes := pruneVotes(room)
	for _, p := range room.Players {
		if p.Name == spy.Name {
			continue
		}
		if _, voted := votes[p.Name]; !voted {
			return false
		}
	}
	return true
}
