// Package activation governs the active/inactive lifecycle of catalog
// descriptors and keeps it reconciled with the durable user-preference store.
package activation

import (
	"context"
	"log/slog"

	"github.com/GoCodeAlone/atelier/catalog"
	"github.com/GoCodeAlone/atelier/descriptor"
	"github.com/GoCodeAlone/atelier/store"
)

// prefKeyPrefix namespaces activation preferences in the shared KV store.
const prefKeyPrefix = "plugin.enabled."

// SandboxLifecycle is implemented by the sandbox runtime. Activation of
// ui-plugin descriptors triggers code execution side effects through it; for
// every other family activation is a pure metadata flag.
type SandboxLifecycle interface {
	Enable(ctx context.Context, id string) error
	Disable(ctx context.Context, id string) error
}

// Manager applies activation transitions to the catalog, enforces the
// canDisable invariant, and persists user preferences after every successful
// transition.
//
// All operations are query-shaped: unknown ids and refused transitions return
// false rather than an error, because UI click handlers call these inside
// event callbacks and must not crash the view.
type Manager struct {
	catalog *catalog.Catalog
	prefs   store.KV
	sandbox SandboxLifecycle
	logger  *slog.Logger
}

// NewManager creates an activation manager. The sandbox may be nil when no
// ui-plugin runtime is wired (e.g. tests of pure metadata activation).
func NewManager(cat *catalog.Catalog, prefs store.KV, sandbox SandboxLifecycle, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{catalog: cat, prefs: prefs, sandbox: sandbox, logger: logger}
}

// InitialState returns the activation state a descriptor should carry at
// registration time: always active for non-disableable descriptors, otherwise
// the persisted user preference, defaulting to active when none exists.
func (m *Manager) InitialState(d descriptor.Descriptor) descriptor.ActivationState {
	if !d.CanDisable {
		return descriptor.StateActive
	}
	v, ok, err := m.prefs.Get(prefKeyPrefix + d.ID)
	if err != nil {
		m.logger.Warn("Failed to read activation preference", "id", d.ID, "error", err)
		return descriptor.StateActive
	}
	if ok && v == "false" {
		return descriptor.StateInactive
	}
	return descriptor.StateActive
}

// GetActivationState returns the current state for id.
func (m *Manager) GetActivationState(id string) (descriptor.ActivationState, bool) {
	d, ok := m.catalog.Get(id)
	if !ok {
		return "", false
	}
	return d.ActivationState, true
}

// Activate sets a descriptor active. Returns true on success, including the
// no-op case where it is already active; false if the id is unknown.
func (m *Manager) Activate(ctx context.Context, id string) bool {
	d, ok := m.catalog.Get(id)
	if !ok {
		return false
	}
	if d.ActivationState == descriptor.StateActive {
		return true
	}

	m.catalog.SetActivationState(id, descriptor.StateActive)
	m.persist(id, true)
	m.runSandboxHook(ctx, d, true)
	return true
}

// Deactivate sets a descriptor inactive. Refuses with false when
// canDisable=false: that is a hard invariant, not a soft warning.
func (m *Manager) Deactivate(ctx context.Context, id string) bool {
	d, ok := m.catalog.Get(id)
	if !ok {
		return false
	}
	if !d.CanDisable {
		m.logger.Warn("Refusing to deactivate non-disableable descriptor", "id", id)
		return false
	}
	if d.ActivationState == descriptor.StateInactive {
		return true
	}

	m.catalog.SetActivationState(id, descriptor.StateInactive)
	m.persist(id, false)
	m.runSandboxHook(ctx, d, false)
	return true
}

// Toggle deactivates an active descriptor and activates an inactive one.
func (m *Manager) Toggle(ctx context.Context, id string) bool {
	d, ok := m.catalog.Get(id)
	if !ok {
		return false
	}
	if d.ActivationState == descriptor.StateActive {
		return m.Deactivate(ctx, id)
	}
	return m.Activate(ctx, id)
}

// ActivateFamily activates every descriptor in a family. Individual refusals
// are skipped, not batch failures. Returns the number of descriptors for
// which the transition succeeded.
func (m *Manager) ActivateFamily(ctx context.Context, f descriptor.Family) int {
	n := 0
	for _, d := range m.catalog.GetByFamily(f) {
		if m.Activate(ctx, d.ID) {
			n++
		}
	}
	return n
}

// DeactivateFamily deactivates every descriptor in a family, skipping
// descriptors that refuse the transition.
func (m *Manager) DeactivateFamily(ctx context.Context, f descriptor.Family) int {
	n := 0
	for _, d := range m.catalog.GetByFamily(f) {
		if m.Deactivate(ctx, d.ID) {
			n++
		}
	}
	return n
}

// ActivateUserPlugins activates every ui-plugin descriptor.
func (m *Manager) ActivateUserPlugins(ctx context.Context) int {
	return m.ActivateFamily(ctx, descriptor.FamilyUIPlugin)
}

// DeactivateUserPlugins deactivates every ui-plugin descriptor.
func (m *Manager) DeactivateUserPlugins(ctx context.Context) int {
	return m.DeactivateFamily(ctx, descriptor.FamilyUIPlugin)
}

// Reconcile applies persisted preferences to every disableable descriptor in
// the catalog. It writes state through the catalog's low-level setter rather
// than Activate/Deactivate so that bootstrap does not re-persist what was
// just read.
func (m *Manager) Reconcile(ctx context.Context) {
	for _, d := range m.catalog.GetAll() {
		if !d.CanDisable {
			continue
		}
		want := m.InitialState(d)
		if d.ActivationState == want {
			continue
		}
		m.catalog.SetActivationState(d.ID, want)
		m.runSandboxHook(ctx, d, want == descriptor.StateActive)
	}
}

// persist writes the user preference after a successful transition. A store
// failure is logged, never propagated: the in-memory state already changed
// and the UI must keep working.
func (m *Manager) persist(id string, enabled bool) {
	v := "false"
	if enabled {
		v = "true"
	}
	if err := m.prefs.Set(prefKeyPrefix+id, v); err != nil {
		m.logger.Error("Failed to persist activation preference", "id", id, "error", err)
	}
}

// runSandboxHook invokes the sandbox lifecycle for ui-plugin descriptors.
// Sandbox failures are logged and surfaced through the runtime's own error
// state; the metadata transition stands either way.
func (m *Manager) runSandboxHook(ctx context.Context, d descriptor.Descriptor, enable bool) {
	if m.sandbox == nil || d.Family != descriptor.FamilyUIPlugin {
		return
	}
	var err error
	if enable {
		err = m.sandbox.Enable(ctx, d.ID)
	} else {
		err = m.sandbox.Disable(ctx, d.ID)
	}
	if err != nil {
		m.logger.Error("Sandbox lifecycle hook failed", "id", d.ID, "enable", enable, "error", err)
	}
}
