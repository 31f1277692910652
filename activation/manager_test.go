package activation

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/GoCodeAlone/atelier/catalog"
	"github.com/GoCodeAlone/atelier/descriptor"
	"github.com/GoCodeAlone/atelier/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func toolDescriptor(id string, canDisable bool) descriptor.Descriptor {
	return descriptor.Descriptor{
		ID:              id,
		Family:          descriptor.FamilyWorldTool,
		Origin:          descriptor.OriginPluginDir,
		Name:            "Tool " + id,
		ActivationState: descriptor.StateActive,
		CanDisable:      canDisable,
	}
}

func newTestManager(t *testing.T) (*Manager, *catalog.Catalog, *store.MemoryStore) {
	t.Helper()
	cat := catalog.New(testLogger())
	prefs := store.NewMemory()
	return NewManager(cat, prefs, nil, testLogger()), cat, prefs
}

func TestActivateUnknownID(t *testing.T) {
	m, _, _ := newTestManager(t)
	if m.Activate(context.Background(), "ghost") {
		t.Error("Activate(unknown) should return false")
	}
	if m.Deactivate(context.Background(), "ghost") {
		t.Error("Deactivate(unknown) should return false")
	}
	if m.Toggle(context.Background(), "ghost") {
		t.Error("Toggle(unknown) should return false")
	}
}

func TestDeactivateAndActivate(t *testing.T) {
	m, cat, prefs := newTestManager(t)
	ctx := context.Background()
	_ = cat.Register(toolDescriptor("brush", true))

	if !m.Deactivate(ctx, "brush") {
		t.Fatal("Deactivate should succeed for disableable descriptor")
	}
	if st, _ := m.GetActivationState("brush"); st != descriptor.StateInactive {
		t.Errorf("state = %q, want inactive", st)
	}
	if v, ok, _ := prefs.Get("plugin.enabled.brush"); !ok || v != "false" {
		t.Errorf("preference not persisted: %q, %v", v, ok)
	}

	if !m.Activate(ctx, "brush") {
		t.Fatal("Activate should succeed")
	}
	if v, _, _ := prefs.Get("plugin.enabled.brush"); v != "true" {
		t.Errorf("preference after activate = %q", v)
	}
}

func TestActivateAlreadyActiveIsNoOpSuccess(t *testing.T) {
	m, cat, prefs := newTestManager(t)
	_ = cat.Register(toolDescriptor("brush", true))

	if !m.Activate(context.Background(), "brush") {
		t.Error("Activate on already-active descriptor should return success")
	}
	// No-op transitions do not re-persist.
	if _, ok, _ := prefs.Get("plugin.enabled.brush"); ok {
		t.Error("no-op activate should not write a preference")
	}
}

func TestDeactivateRefusedForNonDisableable(t *testing.T) {
	m, cat, _ := newTestManager(t)
	ctx := context.Background()
	_ = cat.Register(toolDescriptor("core", false))

	if m.Deactivate(ctx, "core") {
		t.Error("Deactivate must refuse when canDisable=false")
	}
	if st, _ := m.GetActivationState("core"); st != descriptor.StateActive {
		t.Error("state must remain active after refused deactivation")
	}
}

func TestToggle(t *testing.T) {
	m, cat, _ := newTestManager(t)
	ctx := context.Background()
	_ = cat.Register(toolDescriptor("brush", true))

	if !m.Toggle(ctx, "brush") {
		t.Fatal("Toggle should succeed")
	}
	if st, _ := m.GetActivationState("brush"); st != descriptor.StateInactive {
		t.Error("first toggle should deactivate")
	}
	if !m.Toggle(ctx, "brush") {
		t.Fatal("Toggle should succeed")
	}
	if st, _ := m.GetActivationState("brush"); st != descriptor.StateActive {
		t.Error("second toggle should activate")
	}
}

func TestDeactivateFamilySkipsRefusals(t *testing.T) {
	m, cat, _ := newTestManager(t)
	ctx := context.Background()
	_ = cat.Register(toolDescriptor("a", true))
	_ = cat.Register(toolDescriptor("b", false))
	_ = cat.Register(toolDescriptor("c", true))

	n := m.DeactivateFamily(ctx, descriptor.FamilyWorldTool)
	if n != 2 {
		t.Errorf("DeactivateFamily = %d, want 2", n)
	}
	if st, _ := m.GetActivationState("b"); st != descriptor.StateActive {
		t.Error("non-disableable descriptor must stay active in bulk deactivation")
	}
}

func TestUserPluginBulkOps(t *testing.T) {
	m, cat, _ := newTestManager(t)
	ctx := context.Background()

	up := descriptor.Descriptor{
		ID: "sketcher", Family: descriptor.FamilyUIPlugin,
		Origin: descriptor.OriginUIBundle, Name: "Sketcher", CanDisable: true,
		Extensions: descriptor.Extensions{UIPlugin: &descriptor.UIPluginExt{BundleKey: "bundle.sketcher"}},
	}
	_ = cat.Register(up)
	_ = cat.Register(toolDescriptor("unrelated", true))

	if n := m.DeactivateUserPlugins(ctx); n != 1 {
		t.Errorf("DeactivateUserPlugins = %d, want 1", n)
	}
	if st, _ := m.GetActivationState("unrelated"); st != descriptor.StateActive {
		t.Error("non-ui-plugin descriptors must be untouched")
	}
	if n := m.ActivateUserPlugins(ctx); n != 1 {
		t.Errorf("ActivateUserPlugins = %d, want 1", n)
	}
}

func TestInitialStateReadsPreference(t *testing.T) {
	m, _, prefs := newTestManager(t)

	d := toolDescriptor("brush", true)
	if st := m.InitialState(d); st != descriptor.StateActive {
		t.Errorf("absent preference should default active, got %q", st)
	}

	_ = prefs.Set("plugin.enabled.brush", "false")
	if st := m.InitialState(d); st != descriptor.StateInactive {
		t.Errorf("persisted false should yield inactive, got %q", st)
	}

	core := toolDescriptor("core", false)
	_ = prefs.Set("plugin.enabled.core", "false")
	if st := m.InitialState(core); st != descriptor.StateActive {
		t.Error("non-disableable descriptors are always active regardless of preference")
	}
}

func TestReconcileAppliesPersistedPreferences(t *testing.T) {
	m, cat, prefs := newTestManager(t)
	_ = prefs.Set("plugin.enabled.plugin-a", "false")

	_ = cat.Register(toolDescriptor("plugin-a", true))
	_ = cat.Register(toolDescriptor("plugin-b", true))

	m.Reconcile(context.Background())

	if st, _ := m.GetActivationState("plugin-a"); st != descriptor.StateInactive {
		t.Errorf("plugin-a = %q, want inactive after reconciliation", st)
	}
	if st, _ := m.GetActivationState("plugin-b"); st != descriptor.StateActive {
		t.Errorf("plugin-b = %q, want active", st)
	}
}

func TestReconcileDoesNotRePersist(t *testing.T) {
	m, cat, prefs := newTestManager(t)
	_ = prefs.Set("plugin.enabled.plugin-a", "false")
	_ = cat.Register(toolDescriptor("plugin-a", true))

	// Track writes after setup.
	before, _ := prefs.Keys("")
	m.Reconcile(context.Background())
	after, _ := prefs.Keys("")

	if len(after) != len(before) {
		t.Error("Reconcile must not write preferences during bootstrap")
	}
}

type fakeSandbox struct {
	enabled  []string
	disabled []string
	err      error
}

func (f *fakeSandbox) Enable(_ context.Context, id string) error {
	f.enabled = append(f.enabled, id)
	return f.err
}

func (f *fakeSandbox) Disable(_ context.Context, id string) error {
	f.disabled = append(f.disabled, id)
	return f.err
}

func TestSandboxHookOnlyForUIPlugins(t *testing.T) {
	cat := catalog.New(testLogger())
	sb := &fakeSandbox{}
	m := NewManager(cat, store.NewMemory(), sb, testLogger())
	ctx := context.Background()

	up := descriptor.Descriptor{
		ID: "sketcher", Family: descriptor.FamilyUIPlugin,
		Origin: descriptor.OriginUIBundle, Name: "Sketcher", CanDisable: true,
		Extensions: descriptor.Extensions{UIPlugin: &descriptor.UIPluginExt{BundleKey: "bundle.sketcher"}},
	}
	_ = cat.Register(up)
	_ = cat.Register(toolDescriptor("brush", true))

	m.Deactivate(ctx, "sketcher")
	m.Deactivate(ctx, "brush")
	m.Activate(ctx, "sketcher")

	if len(sb.disabled) != 1 || sb.disabled[0] != "sketcher" {
		t.Errorf("sandbox.Disable calls = %v", sb.disabled)
	}
	if len(sb.enabled) != 1 || sb.enabled[0] != "sketcher" {
		t.Errorf("sandbox.Enable calls = %v", sb.enabled)
	}
}
