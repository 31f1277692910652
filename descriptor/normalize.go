package descriptor

import (
	"fmt"
	"log/slog"
)

// originSynonyms maps legacy origin spellings onto canonical values.
var originSynonyms = map[string]Origin{
	"builtin":     OriginBuiltin,
	"built-in":    OriginBuiltin,
	"plugin-dir":  OriginPluginDir,
	"plugins-dir": OriginPluginDir,
	"ui-bundle":   OriginUIBundle,
	"bundle":      OriginUIBundle,
	"dev-project": OriginDevProject,
	"dev":         OriginDevProject,
}

// NormalizeOrigin maps a raw origin string, including known legacy synonyms,
// to a canonical Origin. Unknown input logs a warning and falls back to the
// least-privileged origin rather than failing; availability wins over strict
// validation here.
func NormalizeOrigin(raw string, logger *slog.Logger) Origin {
	if o, ok := originSynonyms[raw]; ok {
		return o
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("Unknown descriptor origin, falling back to plugin-dir", "origin", raw)
	return OriginPluginDir
}

// bundleFamilies maps the small external bundle vocabulary onto the larger
// internal family set.
var bundleFamilies = map[string]Family{
	"scene":           FamilySceneView,
	"ui":              FamilyUIPlugin,
	"tool":            FamilyWorldTool,
	"panel":           FamilyPanel,
	"workspace-panel": FamilyPanel,
	"control-center":  FamilyControlCenter,
	"node":            FamilyNodeType,
	"helper":          FamilyHelper,
	"interaction":     FamilyInteraction,
	"renderer":        FamilyRenderer,
}

// NormalizeFamily maps an external bundle family onto the internal family
// set. Returns an error for vocabulary it does not recognize.
func NormalizeFamily(bundleFamily string) (Family, error) {
	if f, ok := bundleFamilies[bundleFamily]; ok {
		return f, nil
	}
	return "", fmt.Errorf("descriptor: unknown bundle family %q", bundleFamily)
}

// BundleFamilyFor is the reverse of NormalizeFamily. The mapping is lossy:
// many internal families have no bundle vocabulary, in which case ok is
// false rather than a guess.
func BundleFamilyFor(f Family) (string, bool) {
	switch f {
	case FamilySceneView:
		return "scene", true
	case FamilyUIPlugin:
		return "ui", true
	case FamilyWorldTool:
		return "tool", true
	case FamilyPanel:
		return "panel", true
	case FamilyControlCenter:
		return "control-center", true
	case FamilyNodeType:
		return "node", true
	case FamilyHelper:
		return "helper", true
	case FamilyInteraction:
		return "interaction", true
	case FamilyRenderer:
		return "renderer", true
	}
	return "", false
}

// BundleManifest is the manifest shape carried inside downloaded ui bundles
// and plugin-dir packages.
type BundleManifest struct {
	ID          string   `json:"id" yaml:"id"`
	Family      string   `json:"family" yaml:"family"`
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Version     string   `json:"version,omitempty" yaml:"version,omitempty"`
	Author      string   `json:"author,omitempty" yaml:"author,omitempty"`
	Category    string   `json:"category,omitempty" yaml:"category,omitempty"`
	Tags        []string `json:"tags,omitempty" yaml:"tags,omitempty"`

	Provides        []string `json:"provides,omitempty" yaml:"provides,omitempty"`
	ConsumesActions []string `json:"consumesActions,omitempty" yaml:"consumesActions,omitempty"`
	ConsumesState   []string `json:"consumesState,omitempty" yaml:"consumesState,omitempty"`

	CanDisable *bool `json:"canDisable,omitempty" yaml:"canDisable,omitempty"`

	Extensions Extensions `json:"extensions,omitempty" yaml:"extensions,omitempty"`
}

// FromBundleManifest converts a bundle manifest into a canonical descriptor.
// The origin is supplied by the discovery source that found the bundle.
func FromBundleManifest(m BundleManifest, origin Origin, logger *slog.Logger) (Descriptor, error) {
	if m.ID == "" {
		return Descriptor{}, fmt.Errorf("descriptor: bundle manifest %q has no id", m.Name)
	}
	if m.Name == "" {
		return Descriptor{}, fmt.Errorf("descriptor: bundle %q has no name", m.ID)
	}
	family, err := NormalizeFamily(m.Family)
	if err != nil {
		return Descriptor{}, fmt.Errorf("descriptor: bundle %q: %w", m.ID, err)
	}
	if m.Version != "" {
		if _, err := ParseSemver(m.Version); err != nil {
			return Descriptor{}, fmt.Errorf("descriptor: bundle %q has invalid version %q: %w", m.ID, m.Version, err)
		}
	}

	canDisable := DefaultCanDisable(origin)
	if m.CanDisable != nil {
		canDisable = *m.CanDisable
	}

	return Descriptor{
		ID:               m.ID,
		Family:           family,
		Origin:           origin,
		Name:             m.Name,
		Description:      m.Description,
		Version:          m.Version,
		Author:           m.Author,
		Category:         m.Category,
		Tags:             m.Tags,
		ActivationState:  StateActive,
		CanDisable:       canDisable,
		ProvidesFeatures: m.Provides,
		ConsumesActions:  m.ConsumesActions,
		ConsumesState:    m.ConsumesState,
		Extensions:       m.Extensions,
	}, nil
}

// NodeTypeDef is the legacy node-type definition shape used by graph tooling.
type NodeTypeDef struct {
	TypeName    string   `json:"typeName" yaml:"typeName"`
	DisplayName string   `json:"displayName" yaml:"displayName"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Category    string   `json:"category,omitempty" yaml:"category,omitempty"`
	Inputs      []string `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	Outputs     []string `json:"outputs,omitempty" yaml:"outputs,omitempty"`
}

// FromNodeType converts a node-type definition into a descriptor. Node types
// ship with the application, so the origin is builtin.
func FromNodeType(def NodeTypeDef) (Descriptor, error) {
	if def.TypeName == "" {
		return Descriptor{}, fmt.Errorf("descriptor: node-type definition %q has no typeName", def.DisplayName)
	}
	name := def.DisplayName
	if name == "" {
		name = def.TypeName
	}
	return Descriptor{
		ID:              "node-type." + def.TypeName,
		Family:          FamilyNodeType,
		Origin:          OriginBuiltin,
		Name:            name,
		Description:     def.Description,
		Category:        def.Category,
		ActivationState: StateActive,
		CanDisable:      DefaultCanDisable(OriginBuiltin),
		Extensions: Extensions{
			NodeType: &NodeTypeExt{
				TypeName: def.TypeName,
				Inputs:   def.Inputs,
				Outputs:  def.Outputs,
			},
		},
	}, nil
}

// HelperDef is the legacy scene-helper definition shape.
type HelperDef struct {
	HelperID    string `json:"helperId" yaml:"helperId"`
	Name        string `json:"name" yaml:"name"`
	Kind        string `json:"kind,omitempty" yaml:"kind,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// FromHelper converts a helper definition into a descriptor.
func FromHelper(def HelperDef) (Descriptor, error) {
	if def.HelperID == "" {
		return Descriptor{}, fmt.Errorf("descriptor: helper definition %q has no helperId", def.Name)
	}
	if def.Name == "" {
		return Descriptor{}, fmt.Errorf("descriptor: helper %q has no name", def.HelperID)
	}
	return Descriptor{
		ID:              "helper." + def.HelperID,
		Family:          FamilyHelper,
		Origin:          OriginBuiltin,
		Name:            def.Name,
		Description:     def.Description,
		ActivationState: StateActive,
		CanDisable:      DefaultCanDisable(OriginBuiltin),
		Extensions: Extensions{
			Helper: &HelperExt{HelperKind: def.Kind},
		},
	}, nil
}

// InteractionDef is the legacy interaction-plugin definition shape.
type InteractionDef struct {
	InteractionID string   `json:"interactionId" yaml:"interactionId"`
	Name          string   `json:"name" yaml:"name"`
	Trigger       string   `json:"trigger,omitempty" yaml:"trigger,omitempty"`
	Description   string   `json:"description,omitempty" yaml:"description,omitempty"`
	ConsumesState []string `json:"consumesState,omitempty" yaml:"consumesState,omitempty"`
}

// FromInteraction converts an interaction-plugin definition into a descriptor.
func FromInteraction(def InteractionDef) (Descriptor, error) {
	if def.InteractionID == "" {
		return Descriptor{}, fmt.Errorf("descriptor: interaction definition %q has no interactionId", def.Name)
	}
	if def.Name == "" {
		return Descriptor{}, fmt.Errorf("descriptor: interaction %q has no name", def.InteractionID)
	}
	return Descriptor{
		ID:              "interaction." + def.InteractionID,
		Family:          FamilyInteraction,
		Origin:          OriginBuiltin,
		Name:            def.Name,
		Description:     def.Description,
		ActivationState: StateActive,
		CanDisable:      DefaultCanDisable(OriginBuiltin),
		ConsumesState:   def.ConsumesState,
		Extensions: Extensions{
			Interaction: &InteractionExt{Trigger: def.Trigger},
		},
	}, nil
}
