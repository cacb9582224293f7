package game

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/scythe504/spyroom-backend/internal"
	"github.com/scythe504/spyroom-backend/internal/store"
)

// View is what one client knows about its room at one instant. Views are
// values; Room must be treated as read-only.
type View struct {
	Code string
	Me   string
	// Loaded is false until the first snapshot arrived.
	Loaded bool
	// Exists is false once the room document is gone.
	Exists bool
	Room   *internal.Room
	// Changed is set when this view carries a new room snapshot rather
	// than a timer refresh.
	Changed bool
	IsHost  bool

	ServerNow        time.Time
	TimeRemaining    time.Duration
	DisplayRemaining time.Duration
	TimerActive      bool
	Revealing        bool
	Notice           string
}

// Derive folds a snapshot (or, with snap nil, just the passage of time)
// into the previous view. A snapshot that cannot be decoded is logged and
// ignored; only a confirmed missing document clears the room.
func Derive(prev View, snap *store.Snapshot, serverNow time.Time, sessionID string) View {
	v := prev
	v.Changed = false
	v.ServerNow = serverNow

	if snap != nil {
		v.Loaded = true
		if !snap.Exists {
			v.Exists = false
			v.Room = nil
			v.IsHost = false
			v.Changed = true
			v.Notice = NoticeRoomClosed
		} else if room, err := DecodeRoom(*snap); err != nil {
			log.Printf("[Derive] room=%s: ignoring snapshot: %v", snap.Code, err)
		} else {
			v.Exists = true
			v.Room = room
			v.Changed = true
			v.IsHost = room.IsHostSession(sessionID)
			v.Notice = noticeFor(room)
		}
	}

	v.TimeRemaining, v.TimerActive = PhaseRemaining(v.Room, serverNow)
	v.Revealing = IsRevealing(v.Room, serverNow)
	return v
}

func noticeFor(room *internal.Room) string {
	if room.Status != internal.PhaseCancelled {
		return ""
	}
	if room.PlayerCount() < internal.MinPlayersToStart {
		return NoticeNotEnoughPlayers
	}
	return NoticeCancelledByHost
}

// Phase is the phase to display, with the local revealing window on top
// of playing.
func (v View) Phase() internal.GamePhase {
	if v.Room == nil {
		return ""
	}
	if v.Revealing {
		return internal.PhaseRevealing
	}
	return v.Room.Status
}

type Reaction int

const (
	ReactAutoClose Reaction = iota + 1
	ReactCancelRound
	ReactAutoStart
	ReactStartVoting
	ReactEndVoting
	ReactEndVotingEarly
)

func (r Reaction) String() string {
	switch r {
	case ReactAutoClose:
		return "auto_close"
	case ReactCancelRound:
		return "cancel_round"
	case ReactAutoStart:
		return "auto_start"
	case ReactStartVoting:
		return "start_voting"
	case ReactEndVoting:
		return "end_voting"
	case ReactEndVotingEarly:
		return "end_voting_early"
	}
	return fmt.Sprintf("reaction(%d)", int(r))
}

// Reactions lists the writes a client should attempt after observing v.
// Timer expiry is only acted upon by the host.
func Reactions(v View) []Reaction {
	room := v.Room
	if !v.Exists || room == nil {
		return nil
	}
	if room.PlayerCount() == 0 {
		return []Reaction{ReactAutoClose}
	}

	expired := v.TimerActive && v.TimeRemaining <= 0
	switch room.Status {
	case internal.PhaseWaiting:
		if room.PlayerCount() >= internal.MinPlayersToStart && AllReady(room) {
			return []Reaction{ReactAutoStart}
		}
	case internal.PhasePlaying:
		if room.PlayerCount() < internal.MinPlayersToStart {
			return []Reaction{ReactCancelRound}
		}
		if v.IsHost && expired {
			return []Reaction{ReactStartVoting}
		}
	case internal.PhaseVoting:
		if ShouldEndVotingEarly(room) {
			return []Reaction{ReactEndVotingEarly}
		}
		if v.IsHost && expired {
			return []Reaction{ReactEndVoting}
		}
	}
	return nil
}

// =============================================================================
// WATCH LOOP
// =============================================================================

// Watch subscribes to this client's room and returns a stream of views.
// One goroutine folds store snapshots, clock offset updates and a local
// ticker into views and runs the resulting reactions. The channel always
// holds the latest view; it is closed when ctx ends or the room is gone.
func (c *Client) Watch(ctx context.Context) (<-chan View, error) {
	code, me, err := c.current()
	if err != nil {
		return nil, err
	}
	sessionID, _ := c.sessionID()

	ctx, cancel := context.WithCancel(ctx)
	snaps, err := c.store.Subscribe(ctx, code)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %w", ErrWriteFailure, err)
	}
	offsets, err := c.store.ObserveOffset(ctx)
	if err != nil {
		log.Printf("[Watch] room=%s: clock offset unavailable, using local clock: %v", code, err)
		offsets = nil
	}

	out := make(chan View, 1)
	go func() {
		defer cancel()
		defer close(out)
		c.watchLoop(ctx, View{Code: code, Me: me}, sessionID, snaps, offsets, out)
	}()
	return out, nil
}

func (c *Client) watchLoop(ctx context.Context, view View, sessionID string, snaps <-chan store.Snapshot, offsets <-chan time.Duration, out chan View) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	var countdown Countdown
	generation := 0
	done := make(map[string]bool)

	for {
		var snap *store.Snapshot
		select {
		case <-ctx.Done():
			return
		case s, ok := <-snaps:
			if !ok {
				return
			}
			snap = &s
		case offset, ok := <-offsets:
			if !ok {
				offsets = nil
				continue
			}
			c.clock.SetOffset(offset)
		case <-ticker.C:
		}

		view = Derive(view, snap, c.clock.ServerNow(), sessionID)
		if !view.Loaded {
			continue
		}
		view.DisplayRemaining, _ = countdown.Tick(c.clock.LocalNow(), view.TimeRemaining, view.TimerActive)

		if !view.Exists {
			log.Printf("[Watch] room=%s: room no longer exists", view.Code)
			c.forget(view.Code)
			sendLatest(out, view)
			return
		}
		sendLatest(out, view)
		if view.Changed {
			generation++
			clear(done)
		}

		for _, r := range Reactions(view) {
			key := fmt.Sprintf("%d/%s", generation, r)
			if done[key] {
				continue
			}
			if err := c.react(ctx, view.Code, r); err != nil {
				log.Printf("[Watch] room=%s: %s failed: %v", view.Code, r, err)
				continue
			}
			done[key] = true
		}
	}
}

func (c *Client) react(ctx context.Context, code string, r Reaction) error {
	var err error
	switch r {
	case ReactAutoClose:
		_, err = c.closeIfEmpty(ctx, code)
	case ReactCancelRound:
		_, err = c.cancelForLowPlayers(ctx, code)
	case ReactAutoStart:
		_, err = c.startRound(ctx, code, false)
	case ReactStartVoting:
		_, err = c.startVoting(ctx, code)
	case ReactEndVoting:
		_, err = c.finishVoting(ctx, code, true)
	case ReactEndVotingEarly:
		_, err = c.finishVoting(ctx, code, false)
	}
	return err
}

// sendLatest replaces an unread view instead of blocking the loop.
func sendLatest(ch chan View, v View) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
