// Package venue tracks the fixed set of capacity-bounded locations players
// join. Venues are created once at process start from an embedded template
// and live for the lifetime of the process.
package venue

import (
	_ "embed"
	"errors"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed venues.yaml
var venuesYAML []byte

var (
	// ErrNotFound is returned when a venue id does not exist.
	ErrNotFound = errors.New("venue not found")
	// ErrFull is returned when a venue is at capacity.
	ErrFull = errors.New("venue is full")
)

// Venue is one location. Occupants are ordered by join time.
type Venue struct {
	ID        string   `yaml:"id" json:"id"`
	Name      string   `yaml:"name" json:"name"`
	Capacity  int      `yaml:"capacity" json:"maxPlayers"`
	occupants []string
}

// Snapshot is the externally visible view of a venue.
type Snapshot struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Capacity       int    `json:"maxPlayers"`
	CurrentPlayers int    `json:"currentPlayers"`
}

// Registry holds every venue. Occupancy is mutated by the game engine's
// event loop and read concurrently by the HTTP surface, hence the lock.
type Registry struct {
	mu     sync.RWMutex
	venues map[string]*Venue
	order  []string
}

type templateFile struct {
	Venues []Venue `yaml:"venues"`
}

// NewRegistry builds the registry from the embedded template.
func NewRegistry() (*Registry, error) {
	return newFromTemplate(venuesYAML)
}

func newFromTemplate(data []byte) (*Registry, error) {
	var file templateFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse venue template: %w", err)
	}
	if len(file.Venues) == 0 {
		return nil, fmt.Errorf("venue template is empty")
	}

	r := &Registry{venues: make(map[string]*Venue, len(file.Venues))}
	for i := range file.Venues {
		v := file.Venues[i]
		if v.ID == "" || v.Capacity <= 0 {
			return nil, fmt.Errorf("venue %q: missing id or non-positive capacity", v.ID)
		}
		if _, dup := r.venues[v.ID]; dup {
			return nil, fmt.Errorf("duplicate venue id %q", v.ID)
		}
		r.venues[v.ID] = &v
		r.order = append(r.order, v.ID)
	}
	return r, nil
}

// DefaultID returns the first venue of the template, used when a join
// carries no venue.
func (r *Registry) DefaultID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.order[0]
}

// Exists reports whether the venue id is known.
func (r *Registry) Exists(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.venues[id]
	return ok
}

// Join records an occupant. Returns ErrNotFound or ErrFull on failure.
// Joining a venue you already occupy is a no-op.
func (r *Registry) Join(id, occupantID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.venues[id]
	if !ok {
		return ErrNotFound
	}
	for _, o := range v.occupants {
		if o == occupantID {
			return nil
		}
	}
	if len(v.occupants) >= v.Capacity {
		return ErrFull
	}
	v.occupants = append(v.occupants, occupantID)
	return nil
}

// Leave removes an occupant. Unknown venue or occupant is a no-op.
func (r *Registry) Leave(id, occupantID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.venues[id]
	if !ok {
		return
	}
	for i, o := range v.occupants {
		if o == occupantID {
			v.occupants = append(v.occupants[:i], v.occupants[i+1:]...)
			return
		}
	}
}

// Occupancy returns the current occupant count for a venue.
func (r *Registry) Occupancy(id string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if v, ok := r.venues[id]; ok {
		return len(v.occupants)
	}
	return 0
}

// Snapshot returns every venue with its occupancy, in template order.
func (r *Registry) Snapshot() []Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Snapshot, 0, len(r.order))
	for _, id := range r.order {
		v := r.venues[id]
		out = append(out, Snapshot{
			ID:             v.ID,
			Name:           v.Name,
			Capacity:       v.Capacity,
			CurrentPlayers: len(v.occupants),
		})
	}
	return out
}
