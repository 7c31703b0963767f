package instance

import (
	"sort"
	"sync"
)

// Player is one connected player as reported by the server console.
type Player struct {
	Name string `json:"name"`
	UUID string `json:"uuid,omitempty"`
}

// PlayerRegistry is the per-instance set of currently connected players.
// It is mutated only from classified join/leave signals and cleared wholesale
// when the instance stops.
type PlayerRegistry struct {
	mu      sync.Mutex
	players map[string]Player
}

// NewPlayerRegistry returns an empty registry.
func NewPlayerRegistry() *PlayerRegistry {
	return &PlayerRegistry{players: make(map[string]Player)}
}

// Add records a player as connected. Re-adding an existing name overwrites
// the entry; the console can replay a join after a hiccup.
func (r *PlayerRegistry) Add(p Player) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.players[p.Name] = p
}

// Remove drops a player by name. Removing an unknown name is a no-op.
func (r *PlayerRegistry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.players, name)
}

// Clear empties the registry.
func (r *PlayerRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.players = make(map[string]Player)
}

// List returns the connected players sorted by name.
func (r *PlayerRegistry) List() []Player {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Player, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Count returns the number of connected players.
func (r *PlayerRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players)
}
