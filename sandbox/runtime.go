package sandbox

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"github.com/GoCodeAlone/atelier/store"
)

// State is one installed plugin's lifecycle state.
type State string

const (
	StateDisabled State = "disabled"
	StateEnabled  State = "enabled"
	StateError    State = "error"
	StateRemoved  State = "removed"
)

// defaultLoadTimeout bounds plugin code evaluation so a hung load cannot
// stall the enabling call chain indefinitely.
const defaultLoadTimeout = 10 * time.Second

// pluginEntry is the runtime's record of one installed plugin.
type pluginEntry struct {
	manifest  Manifest
	source    string
	state     State
	loadError string

	interpreter *interp.Interpreter
	onEnable    func(map[string]any) error
	onDisable   func() error
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithLoadTimeout overrides the deadline applied to plugin code evaluation.
func WithLoadTimeout(d time.Duration) Option {
	return func(r *Runtime) {
		r.loadTimeout = d
	}
}

// Runtime manages installed user plugins: persistence of their bundles,
// interpreted code execution, and the enable/disable/uninstall lifecycle.
//
// Plugin source follows a small convention:
//
//	package plugin
//
//	func OnEnable(api map[string]any) error { ... }
//	func OnDisable() error { ... }
//
// OnEnable receives the capability-gated API bindings; OnDisable is optional.
type Runtime struct {
	mu      sync.Mutex
	logger  *slog.Logger
	plugins map[string]*pluginEntry

	bundles store.KV
	data    WorldData
	ui      UISurface
	storage store.KV

	loadTimeout time.Duration

	// Host-side cleanup subscribers invoked when a plugin is disabled.
	disableCallbacks map[string][]func()
}

// NewRuntime creates a sandbox runtime over the given collaborators.
func NewRuntime(bundles store.KV, data WorldData, ui UISurface, storage store.KV, logger *slog.Logger, opts ...Option) *Runtime {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Runtime{
		logger:           logger,
		plugins:          make(map[string]*pluginEntry),
		bundles:          bundles,
		data:             data,
		ui:               ui,
		storage:          storage,
		loadTimeout:      defaultLoadTimeout,
		disableCallbacks: make(map[string][]func()),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Install validates a plugin's manifest and source, persists the bundle, and
// records the plugin as disabled. Enabling is a separate step driven by the
// activation manager.
func (r *Runtime) Install(m Manifest, source string) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if err := ValidateSource(source); err != nil {
		return fmt.Errorf("sandbox: plugin %q: %w", m.ID, err)
	}

	encoded, err := encodeBundle(Bundle{Manifest: m, Source: source})
	if err != nil {
		return err
	}
	if err := r.bundles.Set(BundleKey(m.ID), encoded); err != nil {
		return fmt.Errorf("sandbox: persist bundle %q: %w", m.ID, err)
	}

	r.mu.Lock()
	r.plugins[m.ID] = &pluginEntry{manifest: m, source: source, state: StateDisabled}
	r.mu.Unlock()

	r.logger.Info("Plugin installed", "plugin", m.ID, "version", m.Version)
	return nil
}

// LoadInstalled restores every persisted bundle into the runtime as a
// disabled plugin. A bundle that fails to decode is logged and skipped so
// one corrupt entry cannot block the rest of the session.
func (r *Runtime) LoadInstalled() error {
	keys, err := r.bundles.Keys(bundleKeyPrefix)
	if err != nil {
		return fmt.Errorf("sandbox: list installed bundles: %w", err)
	}

	for _, key := range keys {
		raw, ok, err := r.bundles.Get(key)
		if err != nil || !ok {
			r.logger.Warn("Failed to read installed bundle", "key", key, "error", err)
			continue
		}
		b, err := decodeBundle(raw)
		if err != nil {
			r.logger.Warn("Skipping corrupt bundle", "key", key, "error", err)
			continue
		}
		if err := b.Manifest.Validate(); err != nil {
			r.logger.Warn("Skipping bundle with invalid manifest", "key", key, "error", err)
			continue
		}

		r.mu.Lock()
		r.plugins[b.Manifest.ID] = &pluginEntry{manifest: b.Manifest, source: b.Source, state: StateDisabled}
		r.mu.Unlock()
	}
	return nil
}

// Installed returns the manifests of all installed plugins.
func (r *Runtime) Installed() []Manifest {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Manifest, 0, len(r.plugins))
	for _, p := range r.plugins {
		if p.state == StateRemoved {
			continue
		}
		out = append(out, p.manifest)
	}
	return out
}

// State returns the lifecycle state of a plugin.
func (r *Runtime) State(id string) (State, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.plugins[id]
	if !ok {
		return "", false
	}
	return p.state, true
}

// LoadError returns the captured failure message for a plugin in the error
// state.
func (r *Runtime) LoadError(id string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.plugins[id]; ok {
		return p.loadError
	}
	return ""
}

// Enable loads and runs a plugin's code. Enabling an already-enabled plugin
// is a no-op. A code-load failure transitions the plugin to the error state
// with the failure message captured; a later Enable re-attempts the load.
func (r *Runtime) Enable(ctx context.Context, id string) error {
	r.mu.Lock()
	p, ok := r.plugins[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("sandbox: plugin %q is not installed", id)
	}
	switch p.state {
	case StateEnabled:
		r.mu.Unlock()
		return nil
	case StateRemoved:
		r.mu.Unlock()
		return fmt.Errorf("sandbox: plugin %q has been uninstalled", id)
	}
	manifest := p.manifest
	source := p.source
	r.mu.Unlock()

	entryUpdate, err := r.load(ctx, manifest, source)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		p.state = StateError
		p.loadError = err.Error()
		r.logger.Error("Plugin enable failed", "plugin", id, "error", err)
		return err
	}
	p.interpreter = entryUpdate.interpreter
	p.onEnable = entryUpdate.onEnable
	p.onDisable = entryUpdate.onDisable
	p.state = StateEnabled
	p.loadError = ""
	r.logger.Info("Plugin enabled", "plugin", id)
	return nil
}

// load evaluates plugin source in a fresh interpreter under the load
// deadline, extracts the lifecycle hooks, and runs OnEnable.
func (r *Runtime) load(ctx context.Context, manifest Manifest, source string) (*pluginEntry, error) {
	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("sandbox: load stdlib symbols: %w", err)
	}

	if err := r.evalWithDeadline(ctx, i, source); err != nil {
		return nil, err
	}

	entry := &pluginEntry{interpreter: i}

	v, err := i.Eval("plugin.OnEnable")
	if err != nil {
		return nil, fmt.Errorf("sandbox: plugin %q does not define OnEnable: %w", manifest.ID, err)
	}
	onEnable, ok := v.Interface().(func(map[string]any) error)
	if !ok {
		return nil, fmt.Errorf("sandbox: plugin %q OnEnable has the wrong signature", manifest.ID)
	}
	entry.onEnable = onEnable

	// OnDisable is optional.
	if v, err := i.Eval("plugin.OnDisable"); err == nil {
		if fn, ok := v.Interface().(func() error); ok {
			entry.onDisable = fn
		}
	}

	api := NewAPI(manifest, r.data, r.ui, r.storage)
	if err := safeCallOnEnable(entry.onEnable, api.Bindings()); err != nil {
		return nil, fmt.Errorf("sandbox: plugin %q OnEnable: %w", manifest.ID, err)
	}
	return entry, nil
}

// evalWithDeadline runs interpreter evaluation bounded by the load timeout.
// On timeout the evaluation goroutine is abandoned; the interpreter is never
// handed to the plugin entry so nothing else touches it.
func (r *Runtime) evalWithDeadline(ctx context.Context, i *interp.Interpreter, source string) error {
	ctx, cancel := context.WithTimeout(ctx, r.loadTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- safeEval(i, source)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("sandbox: evaluate plugin source: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("sandbox: plugin code load exceeded %s", r.loadTimeout)
	}
}

// Disable tears a plugin down. The three stages — the plugin's own OnDisable
// hook, host-side disable callbacks, and UI cleanup by id prefix — each run
// in their own failure boundary: once initiated, deactivation is effectively
// unstoppable. Disabling an already-disabled plugin is a no-op.
func (r *Runtime) Disable(ctx context.Context, id string) error {
	r.mu.Lock()
	p, ok := r.plugins[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("sandbox: plugin %q is not installed", id)
	}
	if p.state != StateEnabled {
		r.mu.Unlock()
		return nil
	}
	onDisable := p.onDisable
	callbacks := append([]func(){}, r.disableCallbacks[id]...)
	p.state = StateDisabled
	p.interpreter = nil
	p.onEnable = nil
	p.onDisable = nil
	r.mu.Unlock()

	// Stage 1: the plugin's own lifecycle hook.
	if onDisable != nil {
		if err := safeCallOnDisable(onDisable); err != nil {
			r.logger.Warn("Plugin OnDisable failed (continuing teardown)", "plugin", id, "error", err)
		}
	}

	// Stage 2: host-side cleanup subscribers.
	for _, cb := range callbacks {
		safeCallback(cb, func(rec any) {
			r.logger.Warn("Disable callback panicked (continuing teardown)", "plugin", id, "panic", rec)
		})
	}

	// Stage 3: remove everything the plugin injected into the UI.
	r.removeUIElements(id)

	r.logger.Info("Plugin disabled", "plugin", id)
	return nil
}

func (r *Runtime) removeUIElements(id string) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Warn("UI cleanup panicked", "plugin", id, "panic", rec)
		}
	}()
	r.ui.RemoveByIDPrefix(id + ":")
}

// Uninstall removes a plugin entirely, force-disabling it first if it is
// currently enabled. Unlike the activation operations, uninstalling an
// unknown id is an error: it indicates a caller bug, not an expected UI flow.
func (r *Runtime) Uninstall(ctx context.Context, id string) error {
	r.mu.Lock()
	p, ok := r.plugins[id]
	if !ok || p.state == StateRemoved {
		r.mu.Unlock()
		return fmt.Errorf("sandbox: plugin %q is not installed", id)
	}
	enabled := p.state == StateEnabled
	r.mu.Unlock()

	if enabled {
		if err := r.Disable(ctx, id); err != nil {
			return err
		}
	}

	if err := r.bundles.Delete(BundleKey(id)); err != nil {
		r.logger.Error("Failed to delete plugin bundle", "plugin", id, "error", err)
	}

	r.mu.Lock()
	p.state = StateRemoved
	delete(r.disableCallbacks, id)
	r.mu.Unlock()

	r.logger.Info("Plugin uninstalled", "plugin", id)
	return nil
}

// OnDisable registers a host-side callback run whenever the plugin is
// disabled, after the plugin's own hook and before UI cleanup.
func (r *Runtime) OnDisable(id string, fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disableCallbacks[id] = append(r.disableCallbacks[id], fn)
}

// Safe call wrappers that recover from panics in interpreted code.

func safeEval(i *interp.Interpreter, source string) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic during evaluation: %v", rec)
		}
	}()
	_, err = i.Eval(source)
	return err
}

func safeCallOnEnable(fn func(map[string]any) error, api map[string]any) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in OnEnable: %v", rec)
		}
	}()
	return fn(api)
}

func safeCallOnDisable(fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in OnDisable: %v", rec)
		}
	}()
	return fn()
}

func safeCallback(fn func(), onPanic func(any)) {
	defer func() {
		if rec := recover(); rec != nil {
			onPanic(rec)
		}
	}()
	fn()
}
