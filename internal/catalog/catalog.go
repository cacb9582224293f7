package catalog

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"slices"

	"github.com/scythe504/spyroom-backend/internal"
	"github.com/scythe504/spyroom-backend/internal/utils"
)

const (
	Standard = "standard"
	Extended = "extended"
)

var (
	ErrUnknownSet      = errors.New("unknown location set")
	ErrPremiumRequired = errors.New("location set requires premium")
)

//go:embed data/*.csv
var dataFS embed.FS

// Set is a named collection of locations a room draws its secret place from.
type Set struct {
	ID        string              `json:"id"`
	NameKey   string              `json:"nameKey"`
	Premium   bool                `json:"premium"`
	Locations []internal.Location `json:"locations"`
}

// Entitlements answers whether the current user may use premium sets.
// The engine only ever reads it.
type Entitlements interface {
	IsPremiumEntitled() bool
}

// Entitled is a fixed entitlement answer.
type Entitled bool

func (e Entitled) IsPremiumEntitled() bool {
	return bool(e)
}

// IntN is the random source used to draw a location.
type IntN interface {
	IntN(n int) int
}

// Pick draws one location uniformly.
func (s Set) Pick(rng IntN) internal.Location {
	loc := s.Locations[rng.IntN(len(s.Locations))]
	loc.Roles = slices.Clone(loc.Roles)
	return loc
}

// Registry holds the known sets in display order.
type Registry struct {
	sets  map[string]Set
	order []string
}

func NewRegistry(sets ...Set) *Registry {
	r := &Registry{sets: make(map[string]Set, len(sets))}
	for _, s := range sets {
		if _, dup := r.sets[s.ID]; !dup {
			r.order = append(r.order, s.ID)
		}
		r.sets[s.ID] = s
	}
	return r
}

// Default loads the embedded standard (free) and extended (premium) sets.
func Default() (*Registry, error) {
	standard, err := load(Standard, false)
	if err != nil {
		return nil, err
	}
	extended, err := load(Extended, true)
	if err != nil {
		return nil, err
	}
	return NewRegistry(standard, extended), nil
}

func load(id string, premium bool) (Set, error) {
	raw, err := dataFS.ReadFile("data/" + id + ".csv")
	if err != nil {
		return Set{}, fmt.Errorf("read catalog %s: %w", id, err)
	}
	locations, err := utils.ReadLocationsCSV(bytes.NewReader(raw))
	if err != nil {
		return Set{}, fmt.Errorf("load catalog %s: %w", id, err)
	}
	return Set{
		ID:        id,
		NameKey:   "catalog." + id,
		Premium:   premium,
		Locations: locations,
	}, nil
}

func (r *Registry) Get(id string) (Set, bool) {
	s, ok := r.sets[id]
	return s, ok
}

// Resolve returns the set if it exists and the caller may use it.
func (r *Registry) Resolve(id string, ent Entitlements) (Set, error) {
	s, ok := r.sets[id]
	if !ok || len(s.Locations) == 0 {
		return Set{}, fmt.Errorf("%w: %q", ErrUnknownSet, id)
	}
	if s.Premium && (ent == nil || !ent.IsPremiumEntitled()) {
		return Set{}, fmt.Errorf("%w: %q", ErrPremiumRequired, id)
	}
	return s, nil
}

// Available lists the sets the caller may pick, in registry order.
func (r *Registry) Available(ent Entitlements) []Set {
	out := make([]Set, 0, len(r.order))
	for _, id := range r.order {
		s := r.sets[id]
		if s.Premium && (ent == nil || !ent.IsPremiumEntitled()) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// All lists every set, locked or not.
func (r *Registry) All() []Set {
	out := make([]Set, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.sets[id])
	}
	return out
}
