package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/GoCodeAlone/atelier/descriptor"
	"github.com/GoCodeAlone/atelier/store"
)

// Registrar is the catalog surface discovery writes to.
type Registrar interface {
	Register(d descriptor.Descriptor) error
}

// StateAssigner decides a descriptor's initial activation state at
// registration time. The activation manager implements it.
type StateAssigner interface {
	InitialState(d descriptor.Descriptor) descriptor.ActivationState
}

// manifestFile is the per-plugin manifest each plugin directory carries.
const manifestFile = "plugin.json"

// uiBundleKeyPrefix namespaces downloaded ui-bundle manifests in the KV store.
const uiBundleKeyPrefix = "uibundle."

// UIBundleKey returns the store key for a downloaded bundle's manifest.
func UIBundleKey(id string) string {
	return uiBundleKeyPrefix + id
}

// ScanPluginDir enumerates a plugin directory tree: every subdirectory with
// a plugin.json manifest yields one Registration. Malformed manifests produce
// a Registration whose Register call fails, so the pipeline's partial-failure
// accounting sees them instead of them vanishing silently at scan time.
func ScanPluginDir(dir string, origin descriptor.Origin, cat Registrar, states StateAssigner, logger *slog.Logger) ([]Registration, error) {
	if logger == nil {
		logger = slog.Default()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("discovery: scan %s: %w", dir, err)
	}

	var regs []Registration
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		pluginDir := filepath.Join(dir, entry.Name())
		manifestPath := filepath.Join(pluginDir, manifestFile)
		if _, err := os.Stat(manifestPath); os.IsNotExist(err) {
			continue // not a plugin directory
		}

		regs = append(regs, dirRegistration(entry.Name(), manifestPath, origin, cat, states, logger))
	}
	return regs, nil
}

// dirRegistration builds the lazy Registration for one plugin directory. The
// id/family carried on the record come from a best-effort manifest peek; the
// authoritative parse happens inside Register.
func dirRegistration(dirName, manifestPath string, origin descriptor.Origin, cat Registrar, states StateAssigner, logger *slog.Logger) Registration {
	id := dirName
	var family descriptor.Family
	if m, err := readManifest(manifestPath); err == nil {
		if m.ID != "" {
			id = m.ID
		}
		if f, err := descriptor.NormalizeFamily(m.Family); err == nil {
			family = f
		}
	}

	return Registration{
		ID:     id,
		Family: family,
		Origin: origin,
		Source: SourceTree,
		Label:  manifestPath,
		Register: func(ctx context.Context) error {
			m, err := readManifest(manifestPath)
			if err != nil {
				return err
			}
			d, err := descriptor.FromBundleManifest(*m, origin, logger)
			if err != nil {
				return err
			}
			d.ActivationState = states.InitialState(d)
			return cat.Register(d)
		},
	}
}

func readManifest(path string) (*descriptor.BundleManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("discovery: read manifest %s: %w", path, err)
	}
	var m descriptor.BundleManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("discovery: parse manifest %s: %w", path, err)
	}
	return &m, nil
}

// BundleRegistrations enumerates downloaded ui-bundle manifests persisted in
// the bundle store. Each yields a Registration with Source 'bundle'.
func BundleRegistrations(bundleStore store.KV, cat Registrar, states StateAssigner, logger *slog.Logger) ([]Registration, error) {
	if logger == nil {
		logger = slog.Default()
	}
	keys, err := bundleStore.Keys(uiBundleKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("discovery: list bundles: %w", err)
	}

	var regs []Registration
	for _, key := range keys {
		raw, ok, err := bundleStore.Get(key)
		if err != nil || !ok {
			logger.Warn("Failed to read bundle manifest", "key", key, "error", err)
			continue
		}
		var m descriptor.BundleManifest
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			logger.Warn("Skipping corrupt bundle manifest", "key", key, "error", err)
			continue
		}

		id := m.ID
		if id == "" {
			id = strings.TrimPrefix(key, uiBundleKeyPrefix)
		}
		family, _ := descriptor.NormalizeFamily(m.Family)
		manifest := m

		regs = append(regs, Registration{
			ID:     id,
			Family: family,
			Origin: descriptor.OriginUIBundle,
			Source: SourceBundle,
			Label:  key,
			Register: func(ctx context.Context) error {
				d, err := descriptor.FromBundleManifest(manifest, descriptor.OriginUIBundle, logger)
				if err != nil {
					return err
				}
				d.ActivationState = states.InitialState(d)
				return cat.Register(d)
			},
		})
	}
	return regs, nil
}
