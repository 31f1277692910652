// Package descriptor defines the canonical record describing one plugin,
// panel, or tool known to the catalog, and the normalization functions that
// map legacy source-specific shapes onto it.
package descriptor

// Family identifies what kind of extensible thing a descriptor represents.
// The set is closed; registration rejects unknown values.
type Family string

const (
	FamilyPanel         Family = "panel"
	FamilyControlCenter Family = "control-center"
	FamilySceneView     Family = "scene-view"
	FamilyNodeType      Family = "node-type"
	FamilyHelper        Family = "helper"
	FamilyInteraction   Family = "interaction"
	FamilyGalleryTool   Family = "gallery-tool"
	FamilyWorldTool     Family = "world-tool"
	FamilyUIPlugin      Family = "ui-plugin"
	FamilyGenerationUI  Family = "generation-ui"
	FamilyDockWidget    Family = "dock-widget"
	FamilyGizmoSurface  Family = "gizmo-surface"
	FamilyRenderer      Family = "renderer"
	FamilyDevTool       Family = "dev-tool"
	FamilyGraphEditor   Family = "graph-editor"
)

var knownFamilies = map[Family]bool{
	FamilyPanel:         true,
	FamilyControlCenter: true,
	FamilySceneView:     true,
	FamilyNodeType:      true,
	FamilyHelper:        true,
	FamilyInteraction:   true,
	FamilyGalleryTool:   true,
	FamilyWorldTool:     true,
	FamilyUIPlugin:      true,
	FamilyGenerationUI:  true,
	FamilyDockWidget:    true,
	FamilyGizmoSurface:  true,
	FamilyRenderer:      true,
	FamilyDevTool:       true,
	FamilyGraphEditor:   true,
}

// KnownFamily reports whether f is a member of the closed family set.
func KnownFamily(f Family) bool {
	return knownFamilies[f]
}

// Origin identifies where a descriptor's code came from. It determines the
// default disable policy and trust level.
type Origin string

const (
	OriginBuiltin    Origin = "builtin"
	OriginPluginDir  Origin = "plugin-dir"
	OriginUIBundle   Origin = "ui-bundle"
	OriginDevProject Origin = "dev-project"
)

// ActivationState is whether a descriptor is currently enabled for use.
type ActivationState string

const (
	StateActive   ActivationState = "active"
	StateInactive ActivationState = "inactive"
)

// WorkspacePanelExt carries panel-family extension fields.
type WorkspacePanelExt struct {
	PanelID     string `json:"panelId" yaml:"panelId"`
	DefaultDock string `json:"defaultDock,omitempty" yaml:"defaultDock,omitempty"`
}

// SceneViewExt carries scene-view-family extension fields.
type SceneViewExt struct {
	SceneViewID string   `json:"sceneViewId" yaml:"sceneViewId"`
	Surfaces    []string `json:"surfaces,omitempty" yaml:"surfaces,omitempty"`
}

// ControlCenterExt carries control-center-family extension fields.
type ControlCenterExt struct {
	ControlCenterID string `json:"controlCenterId" yaml:"controlCenterId"`
	Section         string `json:"section,omitempty" yaml:"section,omitempty"`
}

// DockWidgetExt carries dock-widget-family extension fields.
type DockWidgetExt struct {
	WidgetID   string `json:"widgetId" yaml:"widgetId"`
	DockviewID string `json:"dockviewId" yaml:"dockviewId"`
}

// GizmoSurfaceExt carries gizmo-surface-family extension fields.
type GizmoSurfaceExt struct {
	GizmoSurfaceID string `json:"gizmoSurfaceId,omitempty" yaml:"gizmoSurfaceId,omitempty"`
}

// NodeTypeExt carries node-type-family extension fields.
type NodeTypeExt struct {
	TypeName string   `json:"typeName" yaml:"typeName"`
	Inputs   []string `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	Outputs  []string `json:"outputs,omitempty" yaml:"outputs,omitempty"`
}

// HelperExt carries helper-family extension fields.
type HelperExt struct {
	HelperKind string `json:"helperKind,omitempty" yaml:"helperKind,omitempty"`
}

// InteractionExt carries interaction-family extension fields.
type InteractionExt struct {
	Trigger string `json:"trigger,omitempty" yaml:"trigger,omitempty"`
}

// UIPluginExt carries ui-plugin-family extension fields. Descriptors of this
// family are backed by user-authored code executed in the sandbox runtime.
type UIPluginExt struct {
	BundleKey   string   `json:"bundleKey" yaml:"bundleKey"`
	Permissions []string `json:"permissions,omitempty" yaml:"permissions,omitempty"`
}

// Extensions is the family-keyed bag of strongly typed extra fields. Only the
// member matching the descriptor's Family is populated; catalog registration
// validates presence per family.
type Extensions struct {
	WorkspacePanel *WorkspacePanelExt `json:"workspacePanel,omitempty" yaml:"workspacePanel,omitempty"`
	SceneView      *SceneViewExt      `json:"sceneView,omitempty" yaml:"sceneView,omitempty"`
	ControlCenter  *ControlCenterExt  `json:"controlCenter,omitempty" yaml:"controlCenter,omitempty"`
	DockWidget     *DockWidgetExt     `json:"dockWidget,omitempty" yaml:"dockWidget,omitempty"`
	GizmoSurface   *GizmoSurfaceExt   `json:"gizmoSurface,omitempty" yaml:"gizmoSurface,omitempty"`
	NodeType       *NodeTypeExt       `json:"nodeType,omitempty" yaml:"nodeType,omitempty"`
	Helper         *HelperExt         `json:"helper,omitempty" yaml:"helper,omitempty"`
	Interaction    *InteractionExt    `json:"interaction,omitempty" yaml:"interaction,omitempty"`
	UIPlugin       *UIPluginExt       `json:"uiPlugin,omitempty" yaml:"uiPlugin,omitempty"`
}

// Descriptor is the canonical metadata record for one plugin/panel/tool,
// independent of the subsystem it originated from.
type Descriptor struct {
	ID     string `json:"id" yaml:"id"`
	Family Family `json:"family" yaml:"family"`
	Origin Origin `json:"origin" yaml:"origin"`

	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Version     string   `json:"version,omitempty" yaml:"version,omitempty"`
	Author      string   `json:"author,omitempty" yaml:"author,omitempty"`
	Category    string   `json:"category,omitempty" yaml:"category,omitempty"`
	Tags        []string `json:"tags,omitempty" yaml:"tags,omitempty"`

	// ActivationState is mutated only through the activation manager.
	ActivationState ActivationState `json:"activationState" yaml:"activationState"`

	// CanDisable is derived from Origin at registration time unless the
	// source shape overrides it. Builtins default to non-disableable.
	CanDisable bool `json:"canDisable" yaml:"canDisable"`

	// Soft dependency graph between descriptors. Not strictly validated;
	// used for UI filtering and impact analysis.
	ProvidesFeatures []string `json:"providesFeatures,omitempty" yaml:"providesFeatures,omitempty"`
	ConsumesFeatures []string `json:"consumesFeatures,omitempty" yaml:"consumesFeatures,omitempty"`
	ConsumesActions  []string `json:"consumesActions,omitempty" yaml:"consumesActions,omitempty"`
	ConsumesState    []string `json:"consumesState,omitempty" yaml:"consumesState,omitempty"`

	Extensions Extensions `json:"extensions" yaml:"extensions"`
}

// DefaultCanDisable returns the disable policy implied by an origin.
// Everything except builtins may be disabled by the user.
func DefaultCanDisable(o Origin) bool {
	return o != OriginBuiltin
}
