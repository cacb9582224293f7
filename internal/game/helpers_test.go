package game

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/scythe504/spyroom-backend/internal"
	"github.com/scythe504/spyroom-backend/internal/catalog"
	"github.com/scythe504/spyroom-backend/internal/identity"
	"github.com/scythe504/spyroom-backend/internal/store"
)

type fakeNow struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeNow) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeNow) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.t = f.t.Add(d)
}

func testRegistry() *catalog.Registry {
	return catalog.NewRegistry(
		catalog.Set{ID: "test", NameKey: "catalog.test", Locations: []internal.Location{
			{NameKey: "location.bank", Roles: []string{"role.teller", "role.manager", "role.guard"}},
			{NameKey: "location.beach", Roles: []string{"role.lifeguard", "role.surfer"}},
			{NameKey: "location.school", Roles: []string{"role.teacher", "role.student"}},
		}},
		catalog.Set{ID: "gold", NameKey: "catalog.gold", Premium: true, Locations: []internal.Location{
			{NameKey: "location.casino", Roles: []string{"role.dealer"}},
		}},
	)
}

type harness struct {
	t     *testing.T
	store *store.MemoryStore
	reg   *catalog.Registry
	now   *fakeNow
	seed  uint64
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		t:     t,
		store: store.NewMemoryStore(),
		reg:   testRegistry(),
		now:   &fakeNow{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)},
	}
	h.store.SetClock(h.now.Now)
	t.Cleanup(h.store.Close)
	return h
}

func (h *harness) client(session string, opts ...Option) *Client {
	h.seed++
	base := []Option{
		WithRandSource(rand.NewPCG(h.seed, 42)),
		WithClock(h.now.Now),
		WithPollInterval(5 * time.Millisecond),
	}
	return NewClient(h.store, identity.Static(session), h.reg, append(base, opts...)...)
}

func (h *harness) room(code string) *internal.Room {
	h.t.Helper()
	snap, err := h.store.Get(context.Background(), code)
	require.NoError(h.t, err)
	room, err := DecodeRoom(snap)
	require.NoError(h.t, err)
	return room
}

func (h *harness) exists(code string) bool {
	h.t.Helper()
	snap, err := h.store.Get(context.Background(), code)
	require.NoError(h.t, err)
	return snap.Exists
}

// lobby creates a room with n players: the host and n-1 guests named P1..Pn-1.
func (h *harness) lobby(n int) (*Client, []*Client, string) {
	h.t.Helper()
	ctx := context.Background()
	host := h.client("host-session")
	room, err := host.Create(ctx, "Host", internal.MaxPlayersPerRoom, "test")
	require.NoError(h.t, err)

	guests := make([]*Client, 0, n-1)
	for i := 1; i < n; i++ {
		g := h.client(fmt.Sprintf("guest-%d", i))
		_, err := g.Join(ctx, room.Id, fmt.Sprintf("P%d", i))
		require.NoError(h.t, err)
		guests = append(guests, g)
	}
	return host, guests, room.Id
}

// playing readies every guest, which auto-starts the round.
func (h *harness) playing(n int) (*Client, []*Client, string) {
	h.t.Helper()
	host, guests, code := h.lobby(n)
	for _, g := range guests {
		_, err := g.MarkReady(context.Background())
		require.NoError(h.t, err)
	}
	require.Equal(h.t, internal.PhasePlaying, h.room(code).Status)
	return host, guests, code
}

func (h *harness) voting(n int) (*Client, []*Client, string) {
	h.t.Helper()
	host, guests, code := h.playing(n)
	_, err := host.StartVoting(context.Background())
	require.NoError(h.t, err)
	return host, guests, code
}

// byName maps player names to clients so tests can find the spy.
func byName(host *Client, guests []*Client) map[string]*Client {
	out := map[string]*Client{host.PlayerName(): host}
	for _, g := range guests {
		out[g.PlayerName()] = g
	}
	return out
}

func ptr[T any](v T) *T {
	return &v
}
