package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/scythe504/spyroom-backend/internal"
	"github.com/scythe504/spyroom-backend/internal/catalog"
	"github.com/scythe504/spyroom-backend/internal/identity"
	"github.com/scythe504/spyroom-backend/internal/store"
	"github.com/scythe504/spyroom-backend/internal/utils"
)

const DefaultPollInterval = 500 * time.Millisecond

// Client is one participant's handle on the engine. It is bound to a
// session identity and remembers which room it is in and under what name.
// All shared state lives in the store; a Client only keeps local bookkeeping.
type Client struct {
	store        store.Store
	identity     identity.Provider
	catalogs     *catalog.Registry
	entitlements catalog.Entitlements
	rng          *lockedRand
	clock        *Clock
	pollInterval time.Duration
	newCode      func() (string, error)

	mu         sync.Mutex
	roomCode   string
	playerName string
}

type Option func(*Client)

// WithRandSource makes role and location draws reproducible.
func WithRandSource(src rand.Source) Option {
	return func(c *Client) { c.rng = &lockedRand{r: rand.New(src)} }
}

func WithEntitlements(e catalog.Entitlements) Option {
	return func(c *Client) {
		if e != nil {
			c.entitlements = e
		}
	}
}

// WithClock replaces the local clock used for countdowns.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.clock = NewClock(now) }
}

// WithPollInterval sets how often Watch re-derives timers between snapshots.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithCodeGenerator replaces the room code source.
func WithCodeGenerator(gen func() (string, error)) Option {
	return func(c *Client) {
		if gen != nil {
			c.newCode = gen
		}
	}
}

func NewClient(st store.Store, id identity.Provider, catalogs *catalog.Registry, opts ...Option) *Client {
	c := &Client{
		store:        st,
		identity:     id,
		catalogs:     catalogs,
		entitlements: catalog.Entitled(false),
		rng:          &lockedRand{r: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))},
		clock:        NewClock(time.Now),
		pollInterval: DefaultPollInterval,
		newCode:      utils.GenerateRoomCode,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RoomCode is the room this client is in, empty when it is in none.
func (c *Client) RoomCode() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomCode
}

func (c *Client) PlayerName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playerName
}

func (c *Client) Clock() *Clock {
	return c.clock
}

func (c *Client) sessionID() (string, error) {
	if c.identity == nil {
		return "", ErrAuthenticationRequired
	}
	id, ok := c.identity.CurrentSessionID()
	if !ok || id == "" {
		return "", ErrAuthenticationRequired
	}
	return id, nil
}

// current returns the room and name this client acts as.
func (c *Client) current() (string, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.roomCode == "" {
		return "", "", ErrNotInRoom
	}
	return c.roomCode, c.playerName, nil
}

func (c *Client) enter(code, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roomCode = code
	c.playerName = name
}

// forget clears local room state, but only if it still points at code.
func (c *Client) forget(code string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.roomCode == code {
		c.roomCode = ""
		c.playerName = ""
	}
}

// mutateRoom decodes the room inside a store transaction and writes
// whatever fn returns. Rule errors from fn come back unchanged, store
// errors as ErrWriteFailure. A nil room means the document is gone.
func (c *Client) mutateRoom(ctx context.Context, code string, fn func(room *internal.Room) (store.Mutation, error)) (*internal.Room, error) {
	var ruleErr error
	snap, err := c.store.Transact(ctx, code, func(s store.Snapshot) (store.Mutation, error) {
		room, err := DecodeRoom(s)
		if err != nil {
			ruleErr = err
			return store.Mutation{}, err
		}
		m, err := fn(room)
		if err != nil {
			ruleErr = err
		}
		return m, err
	})
	if ruleErr != nil {
		return nil, ruleErr
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWriteFailure, err)
	}
	if !snap.Exists {
		return nil, nil
	}
	return DecodeRoom(snap)
}

// loadRoom reads the room once.
func (c *Client) loadRoom(ctx context.Context, code string) (*internal.Room, error) {
	snap, err := c.store.Get(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWriteFailure, err)
	}
	return DecodeRoom(snap)
}

// Room reads the current room of this client.
func (c *Client) Room(ctx context.Context) (*internal.Room, error) {
	code, _, err := c.current()
	if err != nil {
		return nil, err
	}
	room, err := c.loadRoom(ctx, code)
	if errors.Is(err, ErrRoomNotFound) {
		c.forget(code)
	}
	return room, err
}

// PeekRoom reads any room by code without joining it.
func (c *Client) PeekRoom(ctx context.Context, code string) (*internal.Room, error) {
	return c.loadRoom(ctx, code)
}

// requireHost checks the caller's session against the room's hostId.
func (c *Client) requireHost(room *internal.Room) error {
	id, err := c.sessionID()
	if err != nil {
		return err
	}
	if !room.IsHostSession(id) {
		return ErrNotHost
	}
	return nil
}

// IsHost reports whether this client created room.
func (c *Client) IsHost(room *internal.Room) bool {
	return room != nil && c.requireHost(room) == nil
}

type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (l *lockedRand) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.IntN(n)
}
