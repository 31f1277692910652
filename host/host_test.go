package host

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/GoCodeAlone/atelier/config"
	"github.com/GoCodeAlone/atelier/descriptor"
	"github.com/GoCodeAlone/atelier/sandbox"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const overlayPluginSrc = `package plugin

func OnEnable(api map[string]any) error {
	add := api["addOverlay"].(func(string, map[string]any) error)
	return add("hud", map[string]any{"text": "session clock"})
}
`

func overlayManifest(id string) sandbox.Manifest {
	return sandbox.Manifest{
		ID:          id,
		Name:        "Overlay " + id,
		Version:     "1.0.0",
		Permissions: []sandbox.Permission{sandbox.PermUIOverlay},
	}
}

func writePluginDir(t *testing.T, root, id, family string) {
	t.Helper()
	dir := filepath.Join(root, id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	m := descriptor.BundleManifest{ID: id, Family: family, Name: id}
	data, _ := json.Marshal(m)
	if err := os.WriteFile(filepath.Join(dir, "plugin.json"), data, 0644); err != nil {
		t.Fatal(err)
	}
}

func TestBootstrapDiscoversPluginDirs(t *testing.T) {
	dir := t.TempDir()
	writePluginDir(t, dir, "terrain-brush", "tool")
	writePluginDir(t, dir, "sky-editor", "helper")

	cfg := config.Default()
	cfg.PluginDirs = []string{dir}
	h := NewInMemory(cfg, testLogger())
	defer func() { _ = h.Close() }()

	res, err := h.Bootstrap(context.Background())
	if err != nil {
		t.Fatalf("Bootstrap error: %v", err)
	}
	if res.Registered != 2 || res.Failed != 0 {
		t.Errorf("result = %+v", res)
	}

	d, ok := h.Catalog.Get("terrain-brush")
	if !ok {
		t.Fatal("terrain-brush should be registered")
	}
	if d.Origin != descriptor.OriginPluginDir || d.ActivationState != descriptor.StateActive {
		t.Errorf("descriptor = %+v", d)
	}
}

func TestBootstrapRestoresInstalledUserPlugins(t *testing.T) {
	cfg := config.Default()
	h := NewInMemory(cfg, testLogger())
	defer func() { _ = h.Close() }()

	// Install through one host, then boot a second host over the same stores
	// to simulate a restart.
	if err := h.InstallUserPlugin(context.Background(), overlayManifest("clock"), overlayPluginSrc); err != nil {
		t.Fatalf("InstallUserPlugin error: %v", err)
	}

	h2 := newHost(cfg, testLogger(), h.prefs, h.bundles, h.pluginState)
	defer func() { _ = h2.Close() }()
	if _, err := h2.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap error: %v", err)
	}

	d, ok := h2.Catalog.Get("clock")
	if !ok {
		t.Fatal("installed plugin should survive restart")
	}
	if d.Family != descriptor.FamilyUIPlugin || d.ActivationState != descriptor.StateActive {
		t.Errorf("descriptor = %+v", d)
	}
	if state, _ := h2.Sandbox.State("clock"); state != sandbox.StateEnabled {
		t.Errorf("sandbox state = %q, want enabled", state)
	}
}

func TestBootstrapKeepsDisabledUserPluginDisabled(t *testing.T) {
	cfg := config.Default()
	h := NewInMemory(cfg, testLogger())
	defer func() { _ = h.Close() }()

	ctx := context.Background()
	if err := h.InstallUserPlugin(ctx, overlayManifest("clock"), overlayPluginSrc); err != nil {
		t.Fatal(err)
	}
	if !h.Activation.Deactivate(ctx, "clock") {
		t.Fatal("deactivate should succeed")
	}

	h2 := newHost(cfg, testLogger(), h.prefs, h.bundles, h.pluginState)
	defer func() { _ = h2.Close() }()
	if _, err := h2.Bootstrap(ctx); err != nil {
		t.Fatal(err)
	}

	d, _ := h2.Catalog.Get("clock")
	if d.ActivationState != descriptor.StateInactive {
		t.Errorf("state = %q, want inactive", d.ActivationState)
	}
	if state, _ := h2.Sandbox.State("clock"); state != sandbox.StateDisabled {
		t.Errorf("sandbox state = %q, want disabled", state)
	}
}

func TestInstallUserPluginInjectsUI(t *testing.T) {
	h := NewInMemory(config.Default(), testLogger())
	defer func() { _ = h.Close() }()

	if err := h.InstallUserPlugin(context.Background(), overlayManifest("clock"), overlayPluginSrc); err != nil {
		t.Fatalf("InstallUserPlugin error: %v", err)
	}

	els := h.UI.Elements()
	if len(els) != 1 || els[0].ID != "clock:hud" {
		t.Fatalf("elements = %+v", els)
	}
}

func TestUninstallUserPluginRemovesEverything(t *testing.T) {
	h := NewInMemory(config.Default(), testLogger())
	defer func() { _ = h.Close() }()

	ctx := context.Background()
	if err := h.InstallUserPlugin(ctx, overlayManifest("clock"), overlayPluginSrc); err != nil {
		t.Fatal(err)
	}
	if err := h.UninstallUserPlugin(ctx, "clock"); err != nil {
		t.Fatalf("UninstallUserPlugin error: %v", err)
	}

	if _, ok := h.Catalog.Get("clock"); ok {
		t.Error("descriptor should be gone after uninstall")
	}
	if len(h.UI.Elements()) != 0 {
		t.Error("UI elements should be cleaned up after uninstall")
	}
}

func TestInstallUserPluginRollsBackOnRegisterConflict(t *testing.T) {
	h := NewInMemory(config.Default(), testLogger())
	defer func() { _ = h.Close() }()

	// An existing descriptor with the same id but a different family makes
	// catalog registration fail after the sandbox install succeeded.
	existing := descriptor.Descriptor{
		ID:              "clock",
		Family:          descriptor.FamilyWorldTool,
		Origin:          descriptor.OriginPluginDir,
		Name:            "clock",
		ActivationState: descriptor.StateActive,
		CanDisable:      true,
	}
	if err := h.Catalog.Register(existing); err != nil {
		t.Fatal(err)
	}

	err := h.InstallUserPlugin(context.Background(), overlayManifest("clock"), overlayPluginSrc)
	if err == nil {
		t.Fatal("install should fail when registration is rejected")
	}

	if got := h.Sandbox.Installed(); len(got) != 0 {
		t.Errorf("sandbox should hold no plugins after rollback, got %+v", got)
	}
	if _, ok, _ := h.bundles.Get(sandbox.BundleKey("clock")); ok {
		t.Error("persisted bundle should be deleted on rollback")
	}
	if d, _ := h.Catalog.Get("clock"); d.Family != descriptor.FamilyWorldTool {
		t.Errorf("existing descriptor should be untouched, got %+v", d)
	}
}

func TestUIRegistryRemoveByPrefix(t *testing.T) {
	u := NewUIRegistry()
	_ = u.AddOverlay("a:hud", nil)
	_ = u.AddMenuItem("a:menu", "Menu")
	_ = u.AddOverlay("b:hud", nil)

	u.RemoveByIDPrefix("a:")

	els := u.Elements()
	if len(els) != 1 || els[0].ID != "b:hud" {
		t.Errorf("elements = %+v", els)
	}
}

func TestUIRegistryRejectsDuplicateElement(t *testing.T) {
	u := NewUIRegistry()
	if err := u.AddOverlay("a:hud", nil); err != nil {
		t.Fatal(err)
	}
	if err := u.AddOverlay("a:hud", nil); err == nil {
		t.Error("duplicate element id should be rejected")
	}
	// Theme styles replace instead.
	_ = u.SetThemeStyle("a:theme", "body {}")
	if err := u.SetThemeStyle("a:theme", "body { color: red }"); err != nil {
		t.Errorf("theme replace should succeed: %v", err)
	}
}
