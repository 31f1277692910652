package host

import (
	"maps"
	"sync"
)

// WorldState holds the session and world data the application shell loads
// for the current project. It implements sandbox.WorldData; plugin reads get
// copies so interpreted code can never mutate host state.
type WorldState struct {
	mu        sync.RWMutex
	session   map[string]any
	world     map[string]any
	npcs      []map[string]any
	locations []map[string]any
}

// NewWorldState creates an empty world state.
func NewWorldState() *WorldState {
	return &WorldState{
		session: make(map[string]any),
		world:   make(map[string]any),
	}
}

// SetSession replaces the session state.
func (w *WorldState) SetSession(s map[string]any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.session = s
}

// SetWorld replaces the world state.
func (w *WorldState) SetWorld(s map[string]any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.world = s
}

// SetNPCs replaces the NPC records.
func (w *WorldState) SetNPCs(npcs []map[string]any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.npcs = npcs
}

// SetLocations replaces the location records.
func (w *WorldState) SetLocations(locs []map[string]any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.locations = locs
}

func (w *WorldState) Session() map[string]any {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return maps.Clone(w.session)
}

func (w *WorldState) World() map[string]any {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return maps.Clone(w.world)
}

func (w *WorldState) NPCs() []map[string]any {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return cloneRecords(w.npcs)
}

func (w *WorldState) Locations() []map[string]any {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return cloneRecords(w.locations)
}

func cloneRecords(in []map[string]any) []map[string]any {
	out := make([]map[string]any, len(in))
	for i, rec := range in {
		out[i] = maps.Clone(rec)
	}
	return out
}
