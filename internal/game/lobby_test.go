package game

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scythe504/spyroom-backend/internal"
)

func TestAllReady(t *testing.T) {
	room := &internal.Room{
		HostName: "Host",
		Players:  []internal.Player{{Name: "Host"}, {Name: "A"}, {Name: "B"}},
	}
	assert.False(t, AllReady(room), "absent map")

	room.ReadyPlayers = map[string]bool{"A": true}
	assert.False(t, AllReady(room))

	room.ReadyPlayers["B"] = true
	assert.True(t, AllReady(room), "host flag is not required")

	room.ReadyPlayers["Host"] = false
	assert.True(t, AllReady(room))
}

func TestToggleAndMarkReady(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	host, guests, code := h.lobby(3)

	_, err := guests[0].ToggleReady(ctx)
	require.NoError(t, err)
	assert.True(t, h.room(code).ReadyPlayers["P1"])

	_, err = guests[0].ToggleReady(ctx)
	require.NoError(t, err)
	assert.False(t, h.room(code).ReadyPlayers["P1"])

	_, err = guests[0].MarkReady(ctx)
	require.NoError(t, err)
	_, err = guests[0].MarkReady(ctx)
	require.NoError(t, err)
	assert.True(t, h.room(code).ReadyPlayers["P1"])

	// the host may store a flag too
	_, err = host.ToggleReady(ctx)
	require.NoError(t, err)
	assert.True(t, h.room(code).ReadyPlayers["Host"])
	assert.Equal(t, internal.PhaseWaiting, h.room(code).Status)
}

func TestReadyCheckAutoStarts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, guests, code := h.lobby(3)

	_, err := guests[0].MarkReady(ctx)
	require.NoError(t, err)
	assert.Equal(t, internal.PhaseWaiting, h.room(code).Status)

	room, err := guests[1].MarkReady(ctx)
	require.NoError(t, err)
	assert.Equal(t, internal.PhasePlaying, room.Status)

	stored := h.room(code)
	assert.Equal(t, internal.PhasePlaying, stored.Status)
	require.NotNil(t, stored.GameStartAt)
	assert.True(t, stored.GameStartAt.IsMillis())
	assert.Equal(t, h.now.Now().UnixMilli(), stored.GameStartAt.Time().UnixMilli())
	require.NotNil(t, stored.GameDurationSeconds)
	assert.Equal(t, internal.GameDurationSeconds, *stored.GameDurationSeconds)
	assert.NotNil(t, stored.Spy())
}

func TestStartGameGuards(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	host, guests, _ := h.lobby(1)
	_, err := host.StartGame(ctx)
	assert.ErrorIs(t, err, ErrNotEnoughPlayers)

	h2 := newHarness(t)
	host, guests, _ = h2.lobby(3)
	_, err = guests[0].StartGame(ctx)
	assert.ErrorIs(t, err, ErrNotHost)

	_, err = host.StartGame(ctx)
	assert.ErrorIs(t, err, ErrNotReady)

	_, err = guests[0].MarkReady(ctx)
	require.NoError(t, err)
	_, err = guests[1].MarkReady(ctx)
	require.NoError(t, err)

	// ready-check already started the round
	_, err = host.StartGame(ctx)
	assert.ErrorIs(t, err, ErrInvalidPhase)
}

func TestHostStartGame(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	host, guests, code := h.lobby(2)

	// readying directly in the store skips the auto-advance
	require.NoError(t, h.store.Update(ctx, code, map[string]any{
		internal.FieldReadyPlayers: map[string]bool{"Host": false, guests[0].PlayerName(): true},
	}))
	room, err := host.StartGame(ctx)
	require.NoError(t, err)
	assert.Equal(t, internal.PhasePlaying, room.Status)
}

func TestRestartFromAnyPhase(t *testing.T) {
	setups := map[string]func(h *harness) (*Client, string){
		"playing": func(h *harness) (*Client, string) {
			host, _, code := h.playing(3)
			return host, code
		},
		"voting": func(h *harness) (*Client, string) {
			host, _, code := h.voting(3)
			return host, code
		},
		"finished": func(h *harness) (*Client, string) {
			host, _, code := h.voting(3)
			_, err := host.EndVotingAndReveal(context.Background())
			require.NoError(h.t, err)
			return host, code
		},
		"cancelled": func(h *harness) (*Client, string) {
			host, _, code := h.playing(3)
			_, err := host.CancelGame(context.Background())
			require.NoError(h.t, err)
			return host, code
		},
	}

	for name, setup := range setups {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t)
			host, code := setup(h)

			room, err := host.Restart(context.Background())
			require.NoError(t, err)

			for _, r := range []*internal.Room{room, h.room(code)} {
				assert.Equal(t, internal.PhaseWaiting, r.Status)
				assert.Empty(t, r.ReadyPlayers)
				for _, p := range r.Players {
					assert.Equal(t, internal.RoleNone, p.Role)
					assert.Empty(t, p.PlayerLocationRole)
				}
				assert.Nil(t, r.GameStartAt)
				assert.Nil(t, r.GameDurationSeconds)
				assert.Nil(t, r.VotingStartAt)
				assert.Nil(t, r.VotingDurationSeconds)
				assert.Empty(t, r.Votes)
				assert.Nil(t, r.SpyGuess)
				assert.Nil(t, r.VotingResult)
				assert.Equal(t, 3, r.PlayerCount())
				assert.NotEmpty(t, r.Location.NameKey)
			}

			// restarting twice changes nothing observable
			again, err := host.Restart(context.Background())
			require.NoError(t, err)
			assert.Equal(t, internal.PhaseWaiting, again.Status)
			assert.Empty(t, again.ReadyPlayers)
		})
	}
}

func TestRestartIsHostOnly(t *testing.T) {
	h := newHarness(t)
	_, guests, _ := h.playing(2)
	_, err := guests[0].Restart(context.Background())
	assert.ErrorIs(t, err, ErrNotHost)
}

func TestRestartDrawsFromRoomCatalog(t *testing.T) {
	h := newHarness(t)
	host, _, code := h.playing(2)

	allowed := map[string]bool{"location.bank": true, "location.beach": true, "location.school": true}
	for range 10 {
		_, err := host.Restart(context.Background())
		require.NoError(t, err)
		assert.True(t, allowed[h.room(code).Location.NameKey])
	}
}
