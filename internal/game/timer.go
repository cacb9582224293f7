package game

import (
	"sync"
	"time"

	"github.com/scythe504/spyroom-backend/internal"
)

// =============================================================================
// CLOCK SYNC
// =============================================================================

// DriftTolerance is how far a locally ticking countdown may drift from the
// authoritative value before it is snapped back.
const DriftTolerance = 1500 * time.Millisecond

// Clock is the local clock corrected by the last known server offset.
type Clock struct {
	now    func() time.Time
	offset time.Duration
	mu     sync.RWMutex
}

func NewClock(now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}
	return &Clock{now: now}
}

func (c *Clock) SetOffset(offset time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offset = offset
}

func (c *Clock) Offset() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.offset
}

// LocalNow is the uncorrected device time.
func (c *Clock) LocalNow() time.Time {
	return c.now()
}

// ServerNow is local time plus the server offset.
func (c *Clock) ServerNow() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now().Add(c.offset)
}

// Remaining is duration minus the time elapsed since startAt, floored at
// zero. ok is false when either value is unset.
func Remaining(startAt *internal.Epoch, durationSeconds *int, serverNow time.Time) (time.Duration, bool) {
	if startAt == nil || durationSeconds == nil {
		return 0, false
	}
	end := startAt.Time().Add(time.Duration(*durationSeconds) * time.Second)
	return max(end.Sub(serverNow), 0), true
}

// PhaseRemaining picks the timer that belongs to the room's phase.
func PhaseRemaining(room *internal.Room, serverNow time.Time) (time.Duration, bool) {
	if room == nil {
		return 0, false
	}
	switch room.Status {
	case internal.PhasePlaying:
		return Remaining(room.GameStartAt, room.GameDurationSeconds, serverNow)
	case internal.PhaseVoting:
		return Remaining(room.VotingStartAt, room.VotingDurationSeconds, serverNow)
	}
	return 0, false
}

// IsRevealing reports the short "get ready" window right after the round
// started. It is derived locally and never stored.
func IsRevealing(room *internal.Room, serverNow time.Time) bool {
	if room == nil || room.Status != internal.PhasePlaying || room.GameStartAt == nil {
		return false
	}
	elapsed := serverNow.Sub(room.GameStartAt.Time())
	return elapsed >= 0 && elapsed < internal.RevealingPhaseDuration
}

// Countdown is the locally ticking estimate shown between snapshots.
type Countdown struct {
	estimate time.Duration
	lastTick time.Time
	active   bool
}

// Tick advances the estimate by the local time since the previous tick and
// compares it with the authoritative remaining time. Small drift is kept so
// the display does not jitter; anything beyond DriftTolerance is corrected.
func (cd *Countdown) Tick(localNow time.Time, authoritative time.Duration, active bool) (remaining time.Duration, corrected bool) {
	if !active {
		*cd = Countdown{}
		return 0, false
	}
	if !cd.active {
		*cd = Countdown{estimate: authoritative, lastTick: localNow, active: true}
		return authoritative, true
	}

	cd.estimate = max(cd.estimate-localNow.Sub(cd.lastTick), 0)
	cd.lastTick = localNow

	drift := cd.estimate - authoritative
	if drift > DriftTolerance || drift < -DriftTolerance {
		cd.estimate = authoritative
		return authoritative, true
	}
	return cd.estimate, false
}
