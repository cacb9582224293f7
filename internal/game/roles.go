package game

import (
	"fmt"

	"github.com/scythe504/spyroom-backend/internal"
	"github.com/scythe504/spyroom-backend/internal/catalog"
)

// AssignRoles returns a copy of players with exactly one spy chosen
// uniformly. Every other player gets a location role drawn with replacement.
func AssignRoles(players []internal.Player, location internal.Location, rng catalog.IntN) ([]internal.Player, error) {
	if len(players) < internal.MinPlayersToStart {
		return nil, ErrNotEnoughPlayers
	}
	if len(location.Roles) == 0 {
		return nil, fmt.Errorf("location %q has no roles", location.NameKey)
	}

	out := make([]internal.Player, len(players))
	spy := rng.IntN(len(players))
	for i, p := range players {
		p.ResetRoundState()
		if i == spy {
			p.Role = internal.RoleSpy
		} else {
			p.Role = internal.RolePlayer
			p.PlayerLocationRole = location.Roles[rng.IntN(len(location.Roles))]
		}
		out[i] = p
	}
	return out, nil
}
