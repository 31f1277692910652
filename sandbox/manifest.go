// Package sandbox executes user-authored ui-plugin code in an isolated
// interpreter and mediates all host interaction through a capability-checked
// API surface.
package sandbox

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/GoCodeAlone/atelier/descriptor"
)

// Permission is one entry of the fixed capability vocabulary a plugin
// manifest may declare.
type Permission string

const (
	PermReadSession   Permission = "read:session"
	PermReadWorld     Permission = "read:world"
	PermReadNPCs      Permission = "read:npcs"
	PermReadLocations Permission = "read:locations"
	PermUIOverlay     Permission = "ui:overlay"
	PermUITheme       Permission = "ui:theme"
	PermStorage       Permission = "storage"
	PermNotifications Permission = "notifications"
)

var knownPermissions = map[Permission]bool{
	PermReadSession:   true,
	PermReadWorld:     true,
	PermReadNPCs:      true,
	PermReadLocations: true,
	PermUIOverlay:     true,
	PermUITheme:       true,
	PermStorage:       true,
	PermNotifications: true,
}

var pluginIDRe = regexp.MustCompile(`^[a-z0-9-]+$`)

// Manifest describes an installed user plugin: identity, display metadata,
// and the permissions its code is granted.
type Manifest struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Version     string       `json:"version"`
	Author      string       `json:"author,omitempty"`
	Description string       `json:"description,omitempty"`
	Permissions []Permission `json:"permissions,omitempty"`
}

// Validate rejects malformed ids, non-semver versions, and unknown permission
// strings. A plugin with an invalid manifest never enters the runtime.
func (m *Manifest) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("sandbox: manifest has no id (name %q)", m.Name)
	}
	if !pluginIDRe.MatchString(m.ID) {
		return fmt.Errorf("sandbox: plugin id %q must match ^[a-z0-9-]+$", m.ID)
	}
	if m.Name == "" {
		return fmt.Errorf("sandbox: plugin %q has no name", m.ID)
	}
	if m.Version == "" {
		return fmt.Errorf("sandbox: plugin %q has no version", m.ID)
	}
	if _, err := descriptor.ParseSemver(m.Version); err != nil {
		return fmt.Errorf("sandbox: plugin %q has invalid version %q: %w", m.ID, m.Version, err)
	}
	for _, p := range m.Permissions {
		if !knownPermissions[p] {
			return fmt.Errorf("sandbox: plugin %q declares unknown permission %q", m.ID, p)
		}
	}
	return nil
}

// Has reports whether the manifest declares a permission.
func (m *Manifest) Has(p Permission) bool {
	for _, have := range m.Permissions {
		if have == p {
			return true
		}
	}
	return false
}

// Bundle is the persisted form of an installed plugin: the manifest plus its
// source code, stored in the bundle store so the next session can reload it
// without re-fetching.
type Bundle struct {
	Manifest Manifest `json:"manifest"`
	Source   string   `json:"source"`
}

// bundleKeyPrefix namespaces plugin bundles in the shared KV store.
const bundleKeyPrefix = "bundle."

// BundleKey returns the store key for a plugin's persisted bundle.
func BundleKey(pluginID string) string {
	return bundleKeyPrefix + pluginID
}

func encodeBundle(b Bundle) (string, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return "", fmt.Errorf("sandbox: encode bundle %q: %w", b.Manifest.ID, err)
	}
	return string(data), nil
}

func decodeBundle(raw string) (Bundle, error) {
	var b Bundle
	if err := json.Unmarshal([]byte(raw), &b); err != nil {
		return Bundle{}, fmt.Errorf("sandbox: decode bundle: %w", err)
	}
	return b, nil
}
