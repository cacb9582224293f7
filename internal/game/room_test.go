package game

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scythe504/spyroom-backend/internal"
	"github.com/scythe504/spyroom-backend/internal/catalog"
	"github.com/scythe504/spyroom-backend/internal/identity"
	"github.com/scythe504/spyroom-backend/internal/utils"
)

func TestCreate(t *testing.T) {
	h := newHarness(t)
	host := h.client("host-session")

	room, err := host.Create(context.Background(), "  Alice ", 4, "test")
	require.NoError(t, err)

	assert.True(t, utils.IsValidRoomCode(room.Id))
	assert.Equal(t, room.Id, host.RoomCode())
	assert.Equal(t, "Alice", host.PlayerName())

	stored := h.room(room.Id)
	assert.Equal(t, "host-session", stored.HostId)
	assert.Equal(t, "Alice", stored.HostName)
	assert.Equal(t, 4, stored.MaxPlayers)
	assert.Equal(t, internal.PhaseWaiting, stored.Status)
	assert.Equal(t, []string{"Alice"}, stored.PlayerNames())
	assert.Equal(t, map[string]bool{"Alice": false}, stored.ReadyPlayers)
	assert.Equal(t, "test", stored.SelectedLocationSet)
	assert.NotEmpty(t, stored.Location.NameKey)
	assert.False(t, stored.CreatedAt.IsMillis(), "createdAt is stored in seconds")
	assert.True(t, host.IsHost(stored))
}

func TestCreateValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	anon := NewClient(h.store, identity.Anonymous{}, h.reg)
	_, err := anon.Create(ctx, "Alice", 4, "test")
	assert.ErrorIs(t, err, ErrAuthenticationRequired)

	c := h.client("s")
	_, err = c.Create(ctx, "Alice", 1, "test")
	assert.ErrorIs(t, err, ErrInvalidCapacity)
	_, err = c.Create(ctx, "Alice", 9, "test")
	assert.ErrorIs(t, err, ErrInvalidCapacity)
	_, err = c.Create(ctx, "   ", 4, "test")
	assert.ErrorIs(t, err, ErrInvalidName)
	_, err = c.Create(ctx, "Alice", 4, "missing")
	assert.ErrorIs(t, err, ErrUnknownLocationSet)
	_, err = c.Create(ctx, "Alice", 4, "gold")
	assert.ErrorIs(t, err, ErrPremiumRequired)

	premium := h.client("p", WithEntitlements(catalog.Entitled(true)))
	room, err := premium.Create(ctx, "Alice", 4, "gold")
	require.NoError(t, err)
	assert.Equal(t, "location.casino", room.Location.NameKey)
	assert.True(t, room.Players[0].IsPremium)
}

func TestJoin(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, _, code := h.lobby(1)

	bob := h.client("bob")
	room, err := bob.Join(ctx, " "+strings.ToLower(code)+" ", "Bob")
	require.NoError(t, err)
	assert.Equal(t, []string{"Host", "Bob"}, room.PlayerNames())
	assert.Equal(t, map[string]bool{"Host": false, "Bob": false}, h.room(code).ReadyPlayers)
	assert.Equal(t, code, bob.RoomCode())
	assert.False(t, bob.IsHost(room))

	_, err = h.client("other").Join(ctx, code, "Bob")
	assert.ErrorIs(t, err, ErrNameTaken)

	_, err = h.client("other").Join(ctx, "ZZZ999", "Carol")
	assert.ErrorIs(t, err, ErrRoomNotFound)

	_, err = h.client("other").Join(ctx, "nope", "Carol")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestJoinCapacityBoundary(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	host := h.client("host")
	room, err := host.Create(ctx, "Host", 4, "test")
	require.NoError(t, err)
	guests := make([]*Client, 0, 3)
	for i := 1; i <= 3; i++ {
		g := h.client(fmt.Sprintf("g%d", i))
		_, err := g.Join(ctx, room.Id, fmt.Sprintf("P%d", i))
		require.NoError(t, err)
		guests = append(guests, g)
	}

	fifth := h.client("fifth")
	_, err = fifth.Join(ctx, room.Id, "Fifth")
	assert.ErrorIs(t, err, ErrRoomFull)
	assert.Equal(t, "Room is full or game has already started", UserMessage(err))
	assert.Empty(t, fifth.RoomCode())

	guests[0].Leave(ctx)
	_, err = fifth.Join(ctx, room.Id, "Fifth")
	require.NoError(t, err)
	assert.Equal(t, 4, h.room(room.Id).PlayerCount())
}

func TestJoinAfterStart(t *testing.T) {
	h := newHarness(t)
	_, _, code := h.playing(2)

	_, err := h.client("late").Join(context.Background(), code, "Late")
	assert.ErrorIs(t, err, ErrRoomAlreadyStarted)
}

func TestConcurrentJoinsNeverExceedCapacity(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	host := h.client("host")
	room, err := host.Create(ctx, "Host", 5, "test")
	require.NoError(t, err)

	clients := make([]*Client, 20)
	for i := range clients {
		clients[i] = h.client(fmt.Sprintf("s%d", i))
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	joined, full := 0, 0
	for i, c := range clients {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Join(ctx, room.Id, fmt.Sprintf("N%d", i))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				joined++
			case assert.ErrorIs(t, err, ErrRoomFull):
				full++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 4, joined)
	assert.Equal(t, 16, full)
	stored := h.room(room.Id)
	assert.Equal(t, 5, stored.PlayerCount())
	assert.Len(t, stored.ReadyPlayers, 5)
}

func TestLeavePrunesState(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	host, guests, code := h.voting(4)

	names := byName(host, guests)
	room := h.room(code)
	leaver := guests[0].PlayerName()
	for name, c := range names {
		if name == leaver {
			continue
		}
		_, err := c.CastVote(ctx, leaver)
		require.NoError(t, err)
	}
	_, err := guests[0].CastVote(ctx, host.PlayerName())
	require.NoError(t, err)
	require.Equal(t, internal.PhaseVoting, h.room(code).Status, "spy %s has not guessed", room.Spy().Name)

	guests[0].Leave(ctx)
	after := h.room(code)
	assert.False(t, after.HasPlayer(leaver))
	assert.NotContains(t, after.ReadyPlayers, leaver)
	assert.Empty(t, after.Votes, "votes by and against the leaver are dropped")
	assert.Empty(t, guests[0].RoomCode())
}

func TestLeaveDuringRoundCancelsWhenAlone(t *testing.T) {
	h := newHarness(t)
	_, guests, code := h.playing(2)

	guests[0].Leave(context.Background())
	room := h.room(code)
	assert.Equal(t, internal.PhaseCancelled, room.Status)
	assert.Equal(t, 1, room.PlayerCount())
}

func TestLastLeaveDeletesRoom(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	host, guests, code := h.lobby(2)

	guests[0].Leave(ctx)
	assert.True(t, h.exists(code))
	host.Leave(ctx)
	assert.False(t, h.exists(code))

	// leaving twice or after the room is gone is silent
	host.Leave(ctx)
	require.NoError(t, host.closeRoom(ctx, code))
}

func TestCreateGivesUpWhenCodesCollide(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sameCode := WithCodeGenerator(func() (string, error) { return "ABC234", nil })

	first := h.client("first", sameCode)
	_, err := first.Create(ctx, "Alice", 4, "test")
	require.NoError(t, err)

	second := h.client("second", sameCode)
	_, err = second.Create(ctx, "Bob", 4, "test")
	assert.ErrorIs(t, err, ErrNoFreeRoomCode)
	assert.Empty(t, second.RoomCode())

	live := h.room("ABC234")
	assert.Equal(t, "Alice", live.HostName, "live room is not overwritten")
	assert.Equal(t, []string{"Alice"}, live.PlayerNames())
}

func TestCloseIfEmptyKeepsLateJoiner(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	host, _, code := h.lobby(1)

	// everyone left, but a new player joins before the close lands
	require.NoError(t, h.store.Update(ctx, code, map[string]any{internal.FieldPlayers: []internal.Player{}}))
	late := h.client("late-session")
	_, err := late.Join(ctx, code, "Late")
	require.NoError(t, err)

	require.NoError(t, host.react(ctx, code, ReactAutoClose))
	require.True(t, h.exists(code))
	assert.Equal(t, []string{"Late"}, h.room(code).PlayerNames())

	require.NoError(t, h.store.Update(ctx, code, map[string]any{internal.FieldPlayers: []internal.Player{}}))
	deleted, err := host.closeIfEmpty(ctx, code)
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.False(t, h.exists(code))

	deleted, err = host.closeIfEmpty(ctx, code)
	require.NoError(t, err)
	assert.False(t, deleted)
}
