package internal

func (p *Player) IsSpy() bool {
	return p.Role == RoleSpy
}

// ResetRoundState clears everything a round assigned to the player.
func (p *Player) ResetRoundState() {
	p.Role = RoleNone
	p.PlayerLocationRole = ""
}

// ToPublicPlayer returns the player as other participants may see it:
// name and premium badge only.
func (p Player) ToPublicPlayer() Player {
	return Player{
		Name:      p.Name,
		IsPremium: p.IsPremium,
	}
}
