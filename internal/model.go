package internal

import "time"

const (
	GameDurationSeconds        = 510
	VotingDurationSeconds      = 60
	ShortVotingDurationSeconds = 10
	RevealingPhaseDuration     = 3 * time.Second
	MaxPlayersPerRoom          = 8
	MinPlayersPerRoom          = 2
	MinPlayersToStart          = 2
	RoomCodeLetters            = 3
	RoomCodeDigits             = 3

	// NoOneVoted is the mostVotedPlayer of a round without any votes.
	NoOneVoted = "No one"
)

type GamePhase string

const (
	PhaseWaiting   GamePhase = "waiting"
	PhaseRevealing GamePhase = "revealing"
	PhasePlaying   GamePhase = "playing"
	PhaseVoting    GamePhase = "voting"
	PhaseFinished  GamePhase = "finished"
	PhaseCancelled GamePhase = "cancelled"
)

// Valid reports whether p is one of the stored phases.
func (p GamePhase) Valid() bool {
	switch p {
	case PhaseWaiting, PhaseRevealing, PhasePlaying, PhaseVoting, PhaseFinished, PhaseCancelled:
		return true
	}
	return false
}

type PlayerRole string

const (
	RoleNone   PlayerRole = ""
	RolePlayer PlayerRole = "player"
	RoleSpy    PlayerRole = "spy"
)

// Location is the secret place of a round. Roles is drawn from with
// replacement, its order carries no meaning.
type Location struct {
	NameKey string   `json:"nameKey"`
	Roles   []string `json:"roles"`
}

type Player struct {
	Name               string     `json:"name"`
	Role               PlayerRole `json:"role,omitempty"`
	PlayerLocationRole string     `json:"playerLocationRole,omitempty"`
	IsPremium          bool       `json:"isPremium,omitempty"`
}

type VotingResult struct {
	MostVotedPlayer string         `json:"mostVotedPlayer"`
	SpyName         string         `json:"spyName"`
	SpyCaught       bool           `json:"spyCaught"`
	VoteCounts      map[string]int `json:"voteCounts"`
	SpyGuessCorrect *bool          `json:"spyGuessCorrect,omitempty"`
	IsTie           bool           `json:"isTie"`
	SpyWins         bool           `json:"spyWins"`
}

// Room is the shared room document. Field names follow the stored schema,
// every client reads and writes the same JSON.
type Room struct {
	Id         string    `json:"id"`
	HostId     string    `json:"hostId"`
	HostName   string    `json:"hostName"`
	Location   Location  `json:"location"`
	MaxPlayers int       `json:"maxPlayers"`
	Players    []Player  `json:"players"`
	Status     GamePhase `json:"status"`
	CreatedAt  Epoch     `json:"createdAt"`

	// Ready-check
	ReadyPlayers map[string]bool `json:"readyPlayers,omitempty"`

	// Timers
	GameStartAt           *Epoch `json:"gameStartAt,omitempty"`
	GameDurationSeconds   *int   `json:"gameDurationSeconds,omitempty"`
	VotingStartAt         *Epoch `json:"votingStartAt,omitempty"`
	VotingDurationSeconds *int   `json:"votingDurationSeconds,omitempty"`

	// Voting
	Votes        map[string]string `json:"votes,omitempty"`
	VotingResult *VotingResult     `json:"votingResult,omitempty"`
	SpyGuess     *string           `json:"spyGuess,omitempty"`

	SelectedLocationSet string `json:"selectedLocationSet"`
}

// Room document field names used by partial writes.
const (
	FieldPlayers               = "players"
	FieldStatus                = "status"
	FieldLocation              = "location"
	FieldReadyPlayers          = "readyPlayers"
	FieldGameStartAt           = "gameStartAt"
	FieldGameDurationSeconds   = "gameDurationSeconds"
	FieldVotingStartAt         = "votingStartAt"
	FieldVotingDurationSeconds = "votingDurationSeconds"
	FieldVotes                 = "votes"
	FieldVotingResult          = "votingResult"
	FieldSpyGuess              = "spyGuess"
)
