package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scythe504/spyroom-backend/internal"
)

func TestClockOffset(t *testing.T) {
	local := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewClock(func() time.Time { return local })

	assert.Equal(t, local, c.ServerNow())
	c.SetOffset(-2 * time.Second)
	assert.Equal(t, -2*time.Second, c.Offset())
	assert.Equal(t, local.Add(-2*time.Second), c.ServerNow())
	assert.Equal(t, local, c.LocalNow())
}

func TestRemainingBothUnits(t *testing.T) {
	start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	now := start.Add(20 * time.Second)
	duration := 60

	for name, epoch := range map[string]internal.Epoch{
		"millis":  internal.EpochMillis(start),
		"seconds": internal.EpochSeconds(start),
	} {
		remaining, ok := Remaining(&epoch, &duration, now)
		require.True(t, ok, name)
		assert.Equal(t, 40*time.Second, remaining, name)
	}

	ms := internal.EpochMillis(start)
	remaining, ok := Remaining(&ms, &duration, start.Add(2*time.Minute))
	require.True(t, ok)
	assert.Zero(t, remaining, "floored at zero")

	_, ok = Remaining(nil, &duration, now)
	assert.False(t, ok)
	_, ok = Remaining(&ms, nil, now)
	assert.False(t, ok)
}

func TestClientsWithSkewAgree(t *testing.T) {
	server := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	start := internal.EpochMillis(server.Add(-100 * time.Second))
	duration := internal.GameDurationSeconds

	// two devices whose clocks are off in opposite directions
	fast := NewClock(func() time.Time { return server.Add(7 * time.Second) })
	fast.SetOffset(-7 * time.Second)
	slow := NewClock(func() time.Time { return server.Add(-4 * time.Second) })
	slow.SetOffset(4 * time.Second)

	a, _ := Remaining(&start, &duration, fast.ServerNow())
	b, _ := Remaining(&start, &duration, slow.ServerNow())
	assert.Equal(t, a, b)
	assert.Equal(t, 410*time.Second, a)
}

func TestPhaseRemainingAndRevealing(t *testing.T) {
	start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	gameStart := internal.EpochMillis(start)
	room := &internal.Room{
		Status:              internal.PhasePlaying,
		GameStartAt:         &gameStart,
		GameDurationSeconds: ptr(internal.GameDurationSeconds),
	}

	remaining, ok := PhaseRemaining(room, start.Add(time.Second))
	require.True(t, ok)
	assert.Equal(t, 509*time.Second, remaining)
	assert.True(t, IsRevealing(room, start.Add(time.Second)))
	assert.False(t, IsRevealing(room, start.Add(internal.RevealingPhaseDuration)))

	room.Status = internal.PhaseVoting
	_, ok = PhaseRemaining(room, start)
	assert.False(t, ok, "voting timer not set")
	assert.False(t, IsRevealing(room, start.Add(time.Second)))

	room.Status = internal.PhaseWaiting
	_, ok = PhaseRemaining(room, start)
	assert.False(t, ok)
}

func TestCountdownDriftCorrection(t *testing.T) {
	var cd Countdown
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	got, corrected := cd.Tick(t0, 60*time.Second, true)
	assert.Equal(t, 60*time.Second, got)
	assert.True(t, corrected, "first tick adopts the authoritative value")

	// one local second later, authority agrees within tolerance
	got, corrected = cd.Tick(t0.Add(time.Second), 59*time.Second+800*time.Millisecond, true)
	assert.Equal(t, 59*time.Second, got)
	assert.False(t, corrected)

	// device was suspended: local estimate is far off
	got, corrected = cd.Tick(t0.Add(2*time.Second), 30*time.Second, true)
	assert.Equal(t, 30*time.Second, got)
	assert.True(t, corrected)

	got, corrected = cd.Tick(t0.Add(3*time.Second), 0, false)
	assert.Zero(t, got)
	assert.False(t, corrected)
}
