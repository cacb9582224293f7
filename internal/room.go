package internal

import "maps"

// Methods (Room Struct)

func (r *Room) PlayerCount() int {
	return len(r.Players)
}

func (r *Room) IndexOf(name string) int {
	for i := range r.Players {
		if r.Players[i].Name == name {
			return i
		}
	}
	return -1
}

func (r *Room) HasPlayer(name string) bool {
	return r.IndexOf(name) >= 0
}

func (r *Room) PlayerByName(name string) *Player {
	if i := r.IndexOf(name); i >= 0 {
		return &r.Players[i]
	}
	return nil
}

func (r *Room) PlayerNames() []string {
	names := make([]string, 0, len(r.Players))
	for _, p := range r.Players {
		names = append(names, p.Name)
	}
	return names
}

// IsHostSession reports whether sessionID is the room creator's identity.
func (r *Room) IsHostSession(sessionID string) bool {
	return sessionID != "" && r.HostId == sessionID
}

// Spy returns the player holding the spy role, nil before role assignment.
func (r *Room) Spy() *Player {
	for i := range r.Players {
		if r.Players[i].IsSpy() {
			return &r.Players[i]
		}
	}
	return nil
}

func (r *Room) IsFull() bool {
	return len(r.Players) >= r.MaxPlayers
}

// HasGuessed reports whether the spy guessed or explicitly skipped.
func (r *Room) HasGuessed() bool {
	return r.SpyGuess != nil
}

// Clone returns a deep copy so snapshots handed to readers stay immutable.
func (r *Room) Clone() *Room {
	if r == nil {
		return nil
	}
	c := *r
	c.Location.Roles = append([]string(nil), r.Location.Roles...)
	c.Players = append([]Player(nil), r.Players...)
	c.ReadyPlayers = maps.Clone(r.ReadyPlayers)
	c.Votes = maps.Clone(r.Votes)
	c.GameStartAt = clonePtr(r.GameStartAt)
	c.GameDurationSeconds = clonePtr(r.GameDurationSeconds)
	c.VotingStartAt = clonePtr(r.VotingStartAt)
	c.VotingDurationSeconds = clonePtr(r.VotingDurationSeconds)
	c.SpyGuess = clonePtr(r.SpyGuess)
	if r.VotingResult != nil {
		vr := *r.VotingResult
		vr.VoteCounts = maps.Clone(r.VotingResult.VoteCounts)
		vr.SpyGuessCorrect = clonePtr(r.VotingResult.SpyGuessCorrect)
		c.VotingResult = &vr
	}
	return &c
}

// RedactFor returns the room as the named viewer may see it. The host's
// session id is never shown. Until the round is finished other players'
// roles are hidden and the spy does not see the location; the spy's guess
// is only visible to the spy.
func (r *Room) RedactFor(viewer string) *Room {
	c := r.Clone()
	if c == nil {
		return nil
	}
	c.HostId = ""
	if c.Status == PhaseFinished {
		return c
	}

	me := c.PlayerByName(viewer)
	for i := range c.Players {
		if c.Players[i].Name != viewer {
			c.Players[i] = c.Players[i].ToPublicPlayer()
		}
	}
	if me == nil || me.IsSpy() || c.Status == PhaseWaiting {
		c.Location = Location{}
	}
	if me == nil || !me.IsSpy() {
		c.SpyGuess = nil
	}
	return c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
