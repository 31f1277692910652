// Package catalog holds the authoritative in-memory collection of all
// currently known descriptors, independent of whether they are active.
package catalog

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/GoCodeAlone/atelier/descriptor"
)

// EventKind describes what changed in the catalog.
type EventKind string

const (
	EventRegistered       EventKind = "registered"
	EventUnregistered     EventKind = "unregistered"
	EventActivationChange EventKind = "activation-change"
)

// Event is delivered to subscribers after every catalog mutation.
type Event struct {
	Kind   EventKind                  `json:"kind"`
	ID     string                     `json:"id"`
	Family descriptor.Family          `json:"family"`
	State  descriptor.ActivationState `json:"state,omitempty"`
}

// Listener receives catalog change events. Listeners must not rely on any
// ordering relative to other listeners.
type Listener func(Event)

// Catalog is the single source of truth for what plugins/panels exist right
// now. It is safe for concurrent use. Stored descriptors are never mutated
// in place by callers; activation state changes go through SetActivationState
// and everything else requires re-registration.
type Catalog struct {
	mu       sync.RWMutex
	logger   *slog.Logger
	byID     map[string]*descriptor.Descriptor
	byFamily map[descriptor.Family]map[string]*descriptor.Descriptor
	subs     map[int]Listener
	nextSub  int
}

// New creates an empty catalog.
func New(logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{
		logger:   logger,
		byID:     make(map[string]*descriptor.Descriptor),
		byFamily: make(map[descriptor.Family]map[string]*descriptor.Descriptor),
		subs:     make(map[int]Listener),
	}
}

// Register inserts or replaces a descriptor by id. Family-specific validation
// errors reject the descriptor; validation warnings are logged and accepted.
// Changing an existing descriptor's family is rejected: unregister first.
func (c *Catalog) Register(d descriptor.Descriptor) error {
	if err := c.validate(&d); err != nil {
		return err
	}

	// canDisable=false descriptors are always active.
	if !d.CanDisable {
		d.ActivationState = descriptor.StateActive
	}
	if d.ActivationState == "" {
		d.ActivationState = descriptor.StateActive
	}

	c.mu.Lock()
	if existing, ok := c.byID[d.ID]; ok && existing.Family != d.Family {
		c.mu.Unlock()
		return fmt.Errorf("catalog: descriptor %q is registered with family %q; unregister before re-registering as %q",
			d.ID, existing.Family, d.Family)
	}

	stored := d
	c.byID[d.ID] = &stored
	fam := c.byFamily[d.Family]
	if fam == nil {
		fam = make(map[string]*descriptor.Descriptor)
		c.byFamily[d.Family] = fam
	}
	fam[d.ID] = &stored
	c.mu.Unlock()

	c.logger.Info("Descriptor registered", "id", d.ID, "family", d.Family, "origin", d.Origin)
	c.notify(Event{Kind: EventRegistered, ID: d.ID, Family: d.Family, State: stored.ActivationState})
	return nil
}

// Unregister removes a descriptor. Removing an unknown id is a no-op, not an
// error, and fires no notification.
func (c *Catalog) Unregister(id string) {
	c.mu.Lock()
	d, ok := c.byID[id]
	if !ok {
		c.mu.Unlock()
		return
	}
	delete(c.byID, id)
	if fam := c.byFamily[d.Family]; fam != nil {
		delete(fam, id)
		if len(fam) == 0 {
			delete(c.byFamily, d.Family)
		}
	}
	c.mu.Unlock()

	c.logger.Info("Descriptor unregistered", "id", id, "family", d.Family)
	c.notify(Event{Kind: EventUnregistered, ID: id, Family: d.Family})
}

// Get returns a copy of the descriptor with the given id.
func (c *Catalog) Get(id string) (descriptor.Descriptor, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.byID[id]
	if !ok {
		return descriptor.Descriptor{}, false
	}
	return *d, true
}

// GetAll returns copies of all descriptors sorted by id.
func (c *Catalog) GetAll() []descriptor.Descriptor {
	c.mu.RLock()
	out := make([]descriptor.Descriptor, 0, len(c.byID))
	for _, d := range c.byID {
		out = append(out, *d)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// GetByFamily returns copies of all descriptors in one family sorted by id.
func (c *Catalog) GetByFamily(f descriptor.Family) []descriptor.Descriptor {
	c.mu.RLock()
	fam := c.byFamily[f]
	out := make([]descriptor.Descriptor, 0, len(fam))
	for _, d := range fam {
		out = append(out, *d)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Count returns the number of registered descriptors.
func (c *Catalog) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byID)
}

// SetActivationState is the low-level activation setter used by the
// activation manager. Callers elsewhere should use the manager's typed
// operations, which also enforce the canDisable invariant. Returns false if
// the id is unknown. A notification fires only when the state actually
// changes.
func (c *Catalog) SetActivationState(id string, state descriptor.ActivationState) bool {
	c.mu.Lock()
	d, ok := c.byID[id]
	if !ok {
		c.mu.Unlock()
		return false
	}
	if d.ActivationState == state {
		c.mu.Unlock()
		return true
	}
	d.ActivationState = state
	fam := d.Family
	c.mu.Unlock()

	c.notify(Event{Kind: EventActivationChange, ID: id, Family: fam, State: state})
	return true
}

// Subscribe registers a listener invoked after every register/unregister/
// activation-state change. The returned function removes the listener.
func (c *Catalog) Subscribe(fn Listener) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// notify delivers one event to every subscriber. A panicking listener is
// isolated so the remaining listeners still run.
func (c *Catalog) notify(ev Event) {
	c.mu.RLock()
	listeners := make([]Listener, 0, len(c.subs))
	for _, fn := range c.subs {
		listeners = append(listeners, fn)
	}
	c.mu.RUnlock()

	for _, fn := range listeners {
		c.safeNotify(fn, ev)
	}
}

func (c *Catalog) safeNotify(fn Listener, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Catalog listener panicked", "event", ev.Kind, "id", ev.ID, "panic", r)
		}
	}()
	fn(ev)
}
