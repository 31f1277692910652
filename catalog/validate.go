package catalog

import (
	"fmt"

	"github.com/GoCodeAlone/atelier/descriptor"
)

// validate applies identity checks and the per-family required/recommended
// field tables. Required-field violations return an error and keep the
// descriptor out of the catalog; recommended-field gaps only log a warning,
// because downstream UI can render without them.
func (c *Catalog) validate(d *descriptor.Descriptor) error {
	if d.ID == "" {
		return fmt.Errorf("catalog: descriptor has no id (name %q)", d.Name)
	}
	if d.Name == "" {
		return fmt.Errorf("catalog: descriptor %q has no name", d.ID)
	}
	if !descriptor.KnownFamily(d.Family) {
		return fmt.Errorf("catalog: descriptor %q has unknown family %q", d.ID, d.Family)
	}

	switch d.Family {
	case descriptor.FamilySceneView:
		ext := d.Extensions.SceneView
		if ext == nil || ext.SceneViewID == "" {
			return fmt.Errorf("catalog: scene-view descriptor %q is missing extensions.sceneView.sceneViewId", d.ID)
		}
		if len(ext.Surfaces) == 0 {
			c.logger.Warn("Scene-view descriptor declares no surfaces", "id", d.ID)
		}

	case descriptor.FamilyControlCenter:
		ext := d.Extensions.ControlCenter
		if ext == nil || ext.ControlCenterID == "" {
			return fmt.Errorf("catalog: control-center descriptor %q is missing extensions.controlCenter.controlCenterId", d.ID)
		}

	case descriptor.FamilyDockWidget:
		ext := d.Extensions.DockWidget
		if ext == nil || ext.WidgetID == "" {
			return fmt.Errorf("catalog: dock-widget descriptor %q is missing extensions.dockWidget.widgetId", d.ID)
		}
		if ext.DockviewID == "" {
			return fmt.Errorf("catalog: dock-widget descriptor %q is missing extensions.dockWidget.dockviewId", d.ID)
		}

	case descriptor.FamilyPanel:
		ext := d.Extensions.WorkspacePanel
		if ext == nil || ext.PanelID == "" {
			return fmt.Errorf("catalog: panel descriptor %q is missing extensions.workspacePanel.panelId", d.ID)
		}

	case descriptor.FamilyGizmoSurface:
		ext := d.Extensions.GizmoSurface
		if ext == nil || ext.GizmoSurfaceID == "" {
			c.logger.Warn("Gizmo-surface descriptor declares no gizmoSurfaceId", "id", d.ID)
		}

	case descriptor.FamilyUIPlugin:
		ext := d.Extensions.UIPlugin
		if ext == nil || ext.BundleKey == "" {
			return fmt.Errorf("catalog: ui-plugin descriptor %q is missing extensions.uiPlugin.bundleKey", d.ID)
		}
	}

	return nil
}
