package discovery

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/GoCodeAlone/atelier/descriptor"
)

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets the debounce duration for file change events.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// Watcher monitors dev-project plugin directories for manifest and source
// changes and re-registers the affected plugin, giving local plugin authors
// a hot-reload loop. Each change re-runs the directory's Registration; the
// catalog's replace-by-id semantics make the reload idempotent.
type Watcher struct {
	dirs     []string
	cat      Registrar
	states   StateAssigner
	logger   *slog.Logger
	debounce time.Duration

	fsWatcher *fsnotify.Watcher
	done      chan struct{}
	wg        sync.WaitGroup

	mu      sync.Mutex
	pending map[string]time.Time
}

// NewWatcher creates a watcher over dev-project directories. Each directory
// is expected to contain plugin subdirectories in the same layout
// ScanPluginDir reads.
func NewWatcher(dirs []string, cat Registrar, states StateAssigner, logger *slog.Logger, opts ...WatcherOption) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	w := &Watcher{
		dirs:     dirs,
		cat:      cat,
		states:   states,
		logger:   logger,
		debounce: 500 * time.Millisecond,
		done:     make(chan struct{}),
		pending:  make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins watching. Directories are created if missing so a fresh dev
// project can be scaffolded while the host runs.
func (w *Watcher) Start() error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.fsWatcher = fsw

	for _, dir := range w.dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			_ = fsw.Close()
			return err
		}
		if err := w.addRecursive(dir); err != nil {
			_ = fsw.Close()
			return err
		}
		w.logger.Info("Watching dev-project directory", "dir", dir)
	}

	w.wg.Add(1)
	go w.loop()
	return nil
}

// Stop terminates the watcher.
func (w *Watcher) Stop() error {
	close(w.done)
	w.wg.Wait()
	if w.fsWatcher != nil {
		return w.fsWatcher.Close()
	}
	return nil
}

// addRecursive watches a directory and its immediate plugin subdirectories.
func (w *Watcher) addRecursive(dir string) error {
	if err := w.fsWatcher.Add(dir); err != nil {
		return err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			if err := w.fsWatcher.Add(filepath.Join(dir, entry.Name())); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Watcher error", "error", err)
		case <-ticker.C:
			w.flushPending()
		}
	}
}

// handleEvent records a pending reload for the plugin directory containing
// the changed file. New subdirectories get added to the watch set and marked
// pending themselves: a manifest written right after the directory was
// created lands before the watch exists and its own event is lost, so the
// directory's flush is the only thing that will pick it up.
func (w *Watcher) handleEvent(ev fsnotify.Event) {
	if ev.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			_ = w.fsWatcher.Add(ev.Name)
			w.markPending(ev.Name)
			return
		}
	}

	name := filepath.Base(ev.Name)
	if name != manifestFile && !strings.HasSuffix(name, ".go") && !strings.HasSuffix(name, ".json") {
		return
	}
	if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return
	}

	w.markPending(filepath.Dir(ev.Name))
}

func (w *Watcher) markPending(pluginDir string) {
	w.mu.Lock()
	w.pending[pluginDir] = time.Now()
	w.mu.Unlock()
}

// flushPending re-registers plugin directories whose last change is older
// than the debounce window.
func (w *Watcher) flushPending() {
	now := time.Now()

	w.mu.Lock()
	var ready []string
	for dir, last := range w.pending {
		if now.Sub(last) >= w.debounce {
			ready = append(ready, dir)
			delete(w.pending, dir)
		}
	}
	w.mu.Unlock()

	for _, dir := range ready {
		w.reload(dir)
	}
}

// reload re-runs the Registration for one plugin directory.
func (w *Watcher) reload(pluginDir string) {
	manifestPath := filepath.Join(pluginDir, manifestFile)
	if _, err := os.Stat(manifestPath); err != nil {
		// Directory was removed or never was a plugin; nothing to reload.
		return
	}

	reg := dirRegistration(filepath.Base(pluginDir), manifestPath, descriptor.OriginDevProject, w.cat, w.states, w.logger)
	if err := reg.Register(context.Background()); err != nil {
		w.logger.Error("Dev-project reload failed", "dir", pluginDir, "error", err)
		return
	}
	w.logger.Info("Dev-project plugin reloaded", "id", reg.ID, "dir", pluginDir)
}
