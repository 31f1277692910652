package discovery

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/GoCodeAlone/atelier/catalog"
	"github.com/GoCodeAlone/atelier/descriptor"
)

func TestWatcherReloadsChangedPlugin(t *testing.T) {
	dir := t.TempDir()
	cat := catalog.New(testLogger())

	w := NewWatcher([]string{dir}, cat, alwaysActive{}, testLogger(),
		WithDebounce(50*time.Millisecond))
	if err := w.Start(); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	defer func() { _ = w.Stop() }()

	// Scaffold a new dev plugin while the watcher runs.
	pluginDir := filepath.Join(dir, "my-tool")
	if err := os.MkdirAll(pluginDir, 0755); err != nil {
		t.Fatal(err)
	}
	m := descriptor.BundleManifest{ID: "my-tool", Family: "tool", Name: "My Tool"}
	data, _ := json.Marshal(m)
	if err := os.WriteFile(filepath.Join(pluginDir, manifestFile), data, 0644); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(5 * time.Second)
	for {
		if d, ok := cat.Get("my-tool"); ok {
			if d.Origin != descriptor.OriginDevProject {
				t.Errorf("Origin = %q, want dev-project", d.Origin)
			}
			return
		}
		select {
		case <-deadline:
			t.Fatal("watcher did not register the new plugin in time")
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func TestWatcherStartStop(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "created-on-start")
	w := NewWatcher([]string{dir}, catalog.New(testLogger()), alwaysActive{}, testLogger())
	if err := w.Start(); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Error("Start should create missing dev-project directories")
	}
	if err := w.Stop(); err != nil {
		t.Errorf("Stop error: %v", err)
	}
}
