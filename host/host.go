// Package host wires the catalog, activation manager, sandbox runtime, and
// discovery pipeline into one bootable application context and exposes the
// admin HTTP surface over it. Nothing in here is a process-wide singleton;
// tests construct as many hosts as they like.
package host

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/GoCodeAlone/atelier/activation"
	"github.com/GoCodeAlone/atelier/catalog"
	"github.com/GoCodeAlone/atelier/config"
	"github.com/GoCodeAlone/atelier/descriptor"
	"github.com/GoCodeAlone/atelier/discovery"
	"github.com/GoCodeAlone/atelier/sandbox"
	"github.com/GoCodeAlone/atelier/store"
)

// Host owns every subsystem of one running plugin host.
type Host struct {
	cfg    *config.HostConfig
	logger *slog.Logger
	db     *sql.DB

	Catalog    *catalog.Catalog
	Activation *activation.Manager
	Sandbox    *sandbox.Runtime
	World      *WorldState
	UI         *UIRegistry
	Metrics    *Metrics
	Events     *EventHub

	prefs       store.KV
	bundles     store.KV
	pluginState store.KV

	watcher *discovery.Watcher
	detach  []func()
}

// New builds a host from configuration: opens the database, creates the
// stores, and wires the subsystems. Discovery does not run until Bootstrap.
func New(cfg *config.HostConfig, logger *slog.Logger) (*Host, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	prefs, err := store.NewSQLite(db, "preferences")
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	bundles, err := store.NewSQLite(db, "bundles")
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	pluginState, err := store.NewSQLite(db, "plugin_state")
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	h := newHost(cfg, logger, prefs, bundles, pluginState)
	h.db = db
	return h, nil
}

// NewInMemory builds a host over memory-backed stores. Used by tests and by
// embedding callers that manage their own persistence.
func NewInMemory(cfg *config.HostConfig, logger *slog.Logger) *Host {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return newHost(cfg, logger, store.NewMemory(), store.NewMemory(), store.NewMemory())
}

func newHost(cfg *config.HostConfig, logger *slog.Logger, prefs, bundles, pluginState store.KV) *Host {
	h := &Host{
		cfg:         cfg,
		logger:      logger,
		prefs:       prefs,
		bundles:     bundles,
		pluginState: pluginState,
		World:       NewWorldState(),
		UI:          NewUIRegistry(),
		Metrics:     NewMetrics(),
		Events:      NewEventHub(logger),
	}

	h.Catalog = catalog.New(logger)
	h.Sandbox = sandbox.NewRuntime(bundles, h.World, h.UI, pluginState, logger,
		sandbox.WithLoadTimeout(cfg.SandboxLoadTimeout()))
	h.Activation = activation.NewManager(h.Catalog, prefs, h.Sandbox, logger)

	h.detach = append(h.detach, h.Metrics.Attach(h.Catalog))
	h.detach = append(h.detach, h.Events.Attach(h.Catalog))
	return h
}

// Bootstrap restores installed user plugins, runs discovery over every
// configured source, reconciles activation state with persisted preferences,
// loads the code of every active user plugin, and starts the dev-project
// watcher. Returns the discovery result for callers that want the accounting.
func (h *Host) Bootstrap(ctx context.Context) (discovery.Result, error) {
	if err := h.Sandbox.LoadInstalled(); err != nil {
		return discovery.Result{}, err
	}

	var regs []discovery.Registration

	for _, dir := range h.cfg.PluginDirs {
		found, err := discovery.ScanPluginDir(dir, descriptor.OriginPluginDir, h.Catalog, h.Activation, h.logger)
		if err != nil {
			h.logger.Warn("Skipping unreadable plugin directory", "dir", dir, "error", err)
			continue
		}
		regs = append(regs, found...)
	}
	for _, dir := range h.cfg.DevProjectDirs {
		found, err := discovery.ScanPluginDir(dir, descriptor.OriginDevProject, h.Catalog, h.Activation, h.logger)
		if err != nil {
			h.logger.Warn("Skipping unreadable dev-project directory", "dir", dir, "error", err)
			continue
		}
		regs = append(regs, found...)
	}

	bundleRegs, err := discovery.BundleRegistrations(h.bundles, h.Catalog, h.Activation, h.logger)
	if err != nil {
		return discovery.Result{}, err
	}
	regs = append(regs, bundleRegs...)
	regs = append(regs, h.userPluginRegistrations()...)

	pipeline := discovery.NewPipeline(discovery.Source(h.cfg.PreferredSource), h.cfg.StrictBootstrap, h.logger)
	res, err := pipeline.Run(ctx, regs)
	if err != nil {
		return res, err
	}

	h.Activation.Reconcile(ctx)
	h.enableActiveUserPlugins(ctx)

	if len(h.cfg.DevProjectDirs) > 0 {
		h.watcher = discovery.NewWatcher(h.cfg.DevProjectDirs, h.Catalog, h.Activation, h.logger)
		if err := h.watcher.Start(); err != nil {
			return res, fmt.Errorf("host: start dev-project watcher: %w", err)
		}
	}
	return res, nil
}

// userPluginRegistrations yields one Registration per installed sandbox
// plugin so user plugins flow through the same pipeline accounting as every
// other source.
func (h *Host) userPluginRegistrations() []discovery.Registration {
	var regs []discovery.Registration
	for _, m := range h.Sandbox.Installed() {
		manifest := m
		regs = append(regs, discovery.Registration{
			ID:     manifest.ID,
			Family: descriptor.FamilyUIPlugin,
			Origin: descriptor.OriginUIBundle,
			Source: discovery.SourceBundle,
			Label:  sandbox.BundleKey(manifest.ID),
			Register: func(ctx context.Context) error {
				d := uiPluginDescriptor(manifest)
				d.ActivationState = h.Activation.InitialState(d)
				return h.Catalog.Register(d)
			},
		})
	}
	return regs
}

// enableActiveUserPlugins loads plugin code for every ui-plugin descriptor
// that came up active. A load failure parks the plugin in the sandbox error
// state; the descriptor stays registered so the UI can show the failure.
func (h *Host) enableActiveUserPlugins(ctx context.Context) {
	for _, d := range h.Catalog.GetByFamily(descriptor.FamilyUIPlugin) {
		if d.ActivationState != descriptor.StateActive {
			continue
		}
		if err := h.Sandbox.Enable(ctx, d.ID); err != nil {
			h.Metrics.SandboxLoadFailure()
			h.logger.Error("Failed to enable user plugin at bootstrap", "plugin", d.ID, "error", err)
		}
	}
}

// uiPluginDescriptor derives the catalog descriptor for an installed user
// plugin from its sandbox manifest.
func uiPluginDescriptor(m sandbox.Manifest) descriptor.Descriptor {
	perms := make([]string, len(m.Permissions))
	for i, p := range m.Permissions {
		perms[i] = string(p)
	}
	return descriptor.Descriptor{
		ID:          m.ID,
		Family:      descriptor.FamilyUIPlugin,
		Origin:      descriptor.OriginUIBundle,
		Name:        m.Name,
		Description: m.Description,
		Version:     m.Version,
		Author:      m.Author,
		CanDisable:  true,
		Extensions: descriptor.Extensions{
			UIPlugin: &descriptor.UIPluginExt{
				BundleKey:   sandbox.BundleKey(m.ID),
				Permissions: perms,
			},
		},
	}
}

// InstallUserPlugin installs a user plugin and activates it unless a
// persisted preference says otherwise.
func (h *Host) InstallUserPlugin(ctx context.Context, m sandbox.Manifest, source string) error {
	if err := h.Sandbox.Install(m, source); err != nil {
		return err
	}

	d := uiPluginDescriptor(m)
	d.ActivationState = descriptor.StateInactive
	if err := h.Catalog.Register(d); err != nil {
		// Roll the sandbox install back so a rejected descriptor does not
		// leave a persisted bundle with no catalog entry.
		if uerr := h.Sandbox.Uninstall(ctx, m.ID); uerr != nil {
			h.logger.Error("Failed to roll back plugin install", "plugin", m.ID, "error", uerr)
		}
		return err
	}

	if h.Activation.InitialState(d) == descriptor.StateActive {
		h.Activation.Activate(ctx, m.ID)
		if state, _ := h.Sandbox.State(m.ID); state == sandbox.StateError {
			h.Metrics.SandboxLoadFailure()
		}
	}
	return nil
}

// UninstallUserPlugin removes a user plugin from the sandbox and the catalog.
func (h *Host) UninstallUserPlugin(ctx context.Context, id string) error {
	if err := h.Sandbox.Uninstall(ctx, id); err != nil {
		return err
	}
	h.Catalog.Unregister(id)
	return nil
}

// Close stops the watcher, detaches catalog subscribers, disconnects
// websocket clients, and closes the database.
func (h *Host) Close() error {
	if h.watcher != nil {
		if err := h.watcher.Stop(); err != nil {
			h.logger.Warn("Failed to stop dev-project watcher", "error", err)
		}
	}
	for _, fn := range h.detach {
		fn()
	}
	h.Events.Close()
	if h.db != nil {
		return h.db.Close()
	}
	return nil
}
