package sandbox

import (
	"fmt"

	"github.com/GoCodeAlone/atelier/store"
)

// WorldData exposes read-only host state to plugins. The host application
// supplies the implementation; the sandbox only gates access to it.
type WorldData interface {
	Session() map[string]any
	World() map[string]any
	NPCs() []map[string]any
	Locations() []map[string]any
}

// UISurface is the host-side UI integration point. Every element a plugin
// creates is keyed by an id the sandbox prefixes with the plugin id, so
// teardown can remove everything a plugin injected by prefix match.
type UISurface interface {
	AddOverlay(id string, content map[string]any) error
	AddMenuItem(id, label string) error
	SetThemeStyle(id, css string) error
	RemoveByIDPrefix(prefix string)
	ShowNotification(level, message string) error
}

// API is the capability-gated surface handed to one plugin's code. Every
// method consults the manifest's permission list before acting and fails
// closed with a descriptive error, so plugin authors get actionable feedback
// instead of silent no-ops.
type API struct {
	manifest Manifest
	data     WorldData
	ui       UISurface
	storage  store.KV
}

// NewAPI binds an API surface to one plugin's manifest.
func NewAPI(manifest Manifest, data WorldData, ui UISurface, storage store.KV) *API {
	return &API{manifest: manifest, data: data, ui: ui, storage: storage}
}

func (a *API) require(p Permission, method string) error {
	if !a.manifest.Has(p) {
		return fmt.Errorf("sandbox: plugin %q called %s without the %q permission", a.manifest.ID, method, p)
	}
	return nil
}

// elementID prefixes a plugin-chosen element id with the plugin id. The
// prefix is what disable-time UI cleanup matches on.
func (a *API) elementID(id string) string {
	return a.manifest.ID + ":" + id
}

// ReadSession returns the current session state.
func (a *API) ReadSession() (map[string]any, error) {
	if err := a.require(PermReadSession, "ReadSession"); err != nil {
		return nil, err
	}
	return a.data.Session(), nil
}

// ReadWorld returns the current world state.
func (a *API) ReadWorld() (map[string]any, error) {
	if err := a.require(PermReadWorld, "ReadWorld"); err != nil {
		return nil, err
	}
	return a.data.World(), nil
}

// ReadNPCs returns the world's NPC records.
func (a *API) ReadNPCs() ([]map[string]any, error) {
	if err := a.require(PermReadNPCs, "ReadNPCs"); err != nil {
		return nil, err
	}
	return a.data.NPCs(), nil
}

// ReadLocations returns the world's location records.
func (a *API) ReadLocations() ([]map[string]any, error) {
	if err := a.require(PermReadLocations, "ReadLocations"); err != nil {
		return nil, err
	}
	return a.data.Locations(), nil
}

// AddOverlay injects a UI overlay owned by this plugin.
func (a *API) AddOverlay(id string, content map[string]any) error {
	if err := a.require(PermUIOverlay, "AddOverlay"); err != nil {
		return err
	}
	return a.ui.AddOverlay(a.elementID(id), content)
}

// AddMenuItem injects a menu item owned by this plugin.
func (a *API) AddMenuItem(id, label string) error {
	if err := a.require(PermUIOverlay, "AddMenuItem"); err != nil {
		return err
	}
	return a.ui.AddMenuItem(a.elementID(id), label)
}

// SetTheme injects a theme style owned by this plugin.
func (a *API) SetTheme(css string) error {
	if err := a.require(PermUITheme, "SetTheme"); err != nil {
		return err
	}
	return a.ui.SetThemeStyle(a.elementID("theme"), css)
}

// ShowNotification surfaces a host notification on the plugin's behalf.
func (a *API) ShowNotification(level, message string) error {
	if err := a.require(PermNotifications, "ShowNotification"); err != nil {
		return err
	}
	return a.ui.ShowNotification(level, message)
}

// storageKey namespaces a plugin's storage under its own id so plugins
// cannot read or clobber each other's state.
func (a *API) storageKey(key string) string {
	return "pluginstate." + a.manifest.ID + "." + key
}

// StorageGet reads a value from the plugin's namespaced storage.
func (a *API) StorageGet(key string) (string, bool, error) {
	if err := a.require(PermStorage, "StorageGet"); err != nil {
		return "", false, err
	}
	return a.storage.Get(a.storageKey(key))
}

// StorageSet writes a value to the plugin's namespaced storage.
func (a *API) StorageSet(key, value string) error {
	if err := a.require(PermStorage, "StorageSet"); err != nil {
		return err
	}
	return a.storage.Set(a.storageKey(key), value)
}

// Bindings returns the API as a map of named closures. Interpreted plugin
// code receives this map in its OnEnable hook; the map keeps plugins free of
// any import on the host's packages.
func (a *API) Bindings() map[string]any {
	return map[string]any{
		"readSession":      a.ReadSession,
		"readWorld":        a.ReadWorld,
		"readNPCs":         a.ReadNPCs,
		"readLocations":    a.ReadLocations,
		"addOverlay":       a.AddOverlay,
		"addMenuItem":      a.AddMenuItem,
		"setTheme":         a.SetTheme,
		"showNotification": a.ShowNotification,
		"storageGet":       a.StorageGet,
		"storageSet":       a.StorageSet,
	}
}
