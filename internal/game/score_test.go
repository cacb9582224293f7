package game

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/scythe504/spyroom-backend/internal"
)

func TestTally(t *testing.T) {
	tests := []struct {
		name      string
		votes     map[string]string
		mostVoted string
		counts    map[string]int
		isTie     bool
	}{
		{
			name:      "clear winner",
			votes:     map[string]string{"A": "X", "B": "X", "C": "Y"},
			mostVoted: "X",
			counts:    map[string]int{"X": 2, "Y": 1},
		},
		{
			name:      "two way tie picks smallest name",
			votes:     map[string]string{"A": "Y", "B": "X"},
			mostVoted: "X",
			counts:    map[string]int{"X": 1, "Y": 1},
			isTie:     true,
		},
		{
			name:      "higher count breaks an earlier tie",
			votes:     map[string]string{"A": "X", "B": "Y", "C": "Z", "D": "Z"},
			mostVoted: "Z",
			counts:    map[string]int{"X": 1, "Y": 1, "Z": 2},
		},
		{
			name:      "no votes",
			votes:     nil,
			mostVoted: internal.NoOneVoted,
			counts:    map[string]int{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mostVoted, counts, isTie := Tally(tt.votes)
			assert.Equal(t, tt.mostVoted, mostVoted)
			assert.Equal(t, tt.counts, counts)
			assert.Equal(t, tt.isTie, isTie)
		})
	}
}

func votingRoom(spy string, votes map[string]string, guess *string) *internal.Room {
	room := &internal.Room{
		Status:   internal.PhaseVoting,
		Location: internal.Location{NameKey: "location.bank", Roles: []string{"role.teller"}},
		Votes:    votes,
		SpyGuess: guess,
	}
	for _, name := range []string{"A", "B", "C", "X", "Y"} {
		p := internal.Player{Name: name, Role: internal.RolePlayer, PlayerLocationRole: "role.teller"}
		if name == spy {
			p.Role = internal.RoleSpy
			p.PlayerLocationRole = ""
		}
		room.Players = append(room.Players, p)
	}
	return room
}

func TestResolveOutcomeCatchesSpy(t *testing.T) {
	room := votingRoom("X", map[string]string{"A": "X", "B": "X", "C": "Y"}, nil)
	res := ResolveOutcome(room)

	assert.Equal(t, "X", res.MostVotedPlayer)
	assert.Equal(t, "X", res.SpyName)
	assert.Equal(t, map[string]int{"X": 2, "Y": 1}, res.VoteCounts)
	assert.False(t, res.IsTie)
	assert.True(t, res.SpyCaught)
	assert.Nil(t, res.SpyGuessCorrect)
	assert.False(t, res.SpyWins)
}

func TestResolveOutcomeTieNeverCatches(t *testing.T) {
	for _, spy := range []string{"X", "Y"} {
		room := votingRoom(spy, map[string]string{"A": "X", "B": "Y"}, nil)
		res := ResolveOutcome(room)
		assert.True(t, res.IsTie, "spy=%s", spy)
		assert.False(t, res.SpyCaught, "spy=%s", spy)
		assert.True(t, res.SpyWins, "spy=%s", spy)
	}
}

func TestResolveOutcomeIgnoresDepartedPlayers(t *testing.T) {
	room := votingRoom("X", map[string]string{"A": "X", "Gone": "Y", "B": "Gone"}, nil)
	res := ResolveOutcome(room)
	assert.Equal(t, map[string]int{"X": 1}, res.VoteCounts)
	assert.True(t, res.SpyCaught)
}

func TestWinConditionTable(t *testing.T) {
	correct, incorrect := "LOCATION.BANK", "location.beach"
	tests := []struct {
		name     string
		votes    map[string]string
		guess    *string
		caught   bool
		spyWins  bool
		guessHit *bool
	}{
		{"not caught, correct guess", map[string]string{"A": "Y", "B": "Y"}, &correct, false, true, ptr(true)},
		{"not caught, wrong guess", map[string]string{"A": "Y", "B": "Y"}, &incorrect, false, true, ptr(false)},
		{"caught, correct guess", map[string]string{"A": "X", "B": "X"}, &correct, true, true, ptr(true)},
		{"caught, wrong guess", map[string]string{"A": "X", "B": "X"}, &incorrect, true, false, ptr(false)},
		{"caught, skipped guess", map[string]string{"A": "X", "B": "X"}, ptr(""), true, false, nil},
		{"caught, no guess", map[string]string{"A": "X", "B": "X"}, nil, true, false, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ResolveOutcome(votingRoom("X", tt.votes, tt.guess))
			assert.Equal(t, tt.caught, res.SpyCaught)
			assert.Equal(t, tt.spyWins, res.SpyWins)
			assert.Equal(t, tt.guessHit, res.SpyGuessCorrect)
		})
	}
}

func TestCorrectGuessNeverHurtsSpy(t *testing.T) {
	for _, caught := range []bool{true, false} {
		withCorrect := SpyWins(caught, ptr(true))
		for _, other := range []*bool{nil, ptr(false)} {
			if SpyWins(caught, other) {
				assert.True(t, withCorrect)
			}
		}
	}
}

func TestMajorityVoted(t *testing.T) {
	room := votingRoom("X", map[string]string{"A": "X", "B": "X"}, nil)
	assert.False(t, MajorityVoted(room), "2 of 5")
	room.Votes["C"] = "Y"
	assert.True(t, MajorityVoted(room), "3 of 5")
}

func TestShouldEndVotingEarly(t *testing.T) {
	allButSpy := map[string]string{"A": "X", "B": "X", "C": "X", "Y": "X"}

	assert.False(t, ShouldEndVotingEarly(votingRoom("X", allButSpy, nil)), "spy has not guessed")
	assert.True(t, ShouldEndVotingEarly(votingRoom("X", allButSpy, ptr(""))), "skip counts")
	assert.True(t, ShouldEndVotingEarly(votingRoom("X", allButSpy, ptr("location.bank"))))

	missing := map[string]string{"A": "X", "B": "X", "C": "X"}
	assert.False(t, ShouldEndVotingEarly(votingRoom("X", missing, ptr(""))), "Y has not voted")

	finished := votingRoom("X", allButSpy, ptr(""))
	finished.Status = internal.PhaseFinished
	assert.False(t, ShouldEndVotingEarly(finished))
}
