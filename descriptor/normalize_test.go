package descriptor

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestNormalizeOriginSynonyms(t *testing.T) {
	cases := map[string]Origin{
		"builtin":     OriginBuiltin,
		"built-in":    OriginBuiltin,
		"plugin-dir":  OriginPluginDir,
		"plugins-dir": OriginPluginDir,
		"ui-bundle":   OriginUIBundle,
		"bundle":      OriginUIBundle,
		"dev-project": OriginDevProject,
		"dev":         OriginDevProject,
	}
	for raw, want := range cases {
		if got := NormalizeOrigin(raw, nil); got != want {
			t.Errorf("NormalizeOrigin(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestNormalizeOriginUnknownFallsBack(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	got := NormalizeOrigin("unknown-value", logger)
	if got != OriginPluginDir {
		t.Errorf("NormalizeOrigin(unknown) = %q, want plugin-dir", got)
	}
	if !strings.Contains(buf.String(), "unknown-value") {
		t.Error("expected a warning mentioning the unknown origin")
	}
}

func TestNormalizeFamily(t *testing.T) {
	f, err := NormalizeFamily("scene")
	if err != nil {
		t.Fatalf("NormalizeFamily error: %v", err)
	}
	if f != FamilySceneView {
		t.Errorf("NormalizeFamily(scene) = %q, want scene-view", f)
	}

	if _, err := NormalizeFamily("bogus"); err == nil {
		t.Error("expected error for unknown bundle family")
	}
}

func TestBundleFamilyForLossy(t *testing.T) {
	name, ok := BundleFamilyFor(FamilySceneView)
	if !ok || name != "scene" {
		t.Errorf("BundleFamilyFor(scene-view) = %q, %v", name, ok)
	}

	// Internal-only families have no bundle vocabulary; no guessing.
	if _, ok := BundleFamilyFor(FamilyGizmoSurface); ok {
		t.Error("expected no mapping for gizmo-surface")
	}
	if _, ok := BundleFamilyFor(FamilyDevTool); ok {
		t.Error("expected no mapping for dev-tool")
	}
}

func TestFromBundleManifest(t *testing.T) {
	m := BundleManifest{
		ID:      "terrain-brush",
		Family:  "tool",
		Name:    "Terrain Brush",
		Version: "1.2.0",
	}
	d, err := FromBundleManifest(m, OriginUIBundle, nil)
	if err != nil {
		t.Fatalf("FromBundleManifest error: %v", err)
	}
	if d.Family != FamilyWorldTool {
		t.Errorf("Family = %q, want world-tool", d.Family)
	}
	if !d.CanDisable {
		t.Error("ui-bundle descriptors should default to disableable")
	}
	if d.ActivationState != StateActive {
		t.Errorf("ActivationState = %q, want active", d.ActivationState)
	}
}

func TestFromBundleManifestMissingID(t *testing.T) {
	m := BundleManifest{Family: "tool", Name: "No ID"}
	if _, err := FromBundleManifest(m, OriginUIBundle, nil); err == nil {
		t.Error("expected error for missing id")
	}
}

func TestFromBundleManifestBadVersion(t *testing.T) {
	m := BundleManifest{ID: "x", Family: "tool", Name: "X", Version: "not-semver"}
	_, err := FromBundleManifest(m, OriginUIBundle, nil)
	if err == nil {
		t.Fatal("expected error for invalid version")
	}
	if !strings.Contains(err.Error(), "x") {
		t.Errorf("error should name the offending id: %v", err)
	}
}

func TestFromBundleManifestCanDisableOverride(t *testing.T) {
	no := false
	m := BundleManifest{ID: "core-tool", Family: "tool", Name: "Core", CanDisable: &no}
	d, err := FromBundleManifest(m, OriginUIBundle, nil)
	if err != nil {
		t.Fatalf("FromBundleManifest error: %v", err)
	}
	if d.CanDisable {
		t.Error("explicit canDisable=false should override the origin default")
	}
}

func TestFromNodeType(t *testing.T) {
	d, err := FromNodeType(NodeTypeDef{TypeName: "noise", DisplayName: "Noise"})
	if err != nil {
		t.Fatalf("FromNodeType error: %v", err)
	}
	if d.ID != "node-type.noise" {
		t.Errorf("ID = %q", d.ID)
	}
	if d.CanDisable {
		t.Error("builtin node types should not be disableable")
	}
	if d.Extensions.NodeType == nil || d.Extensions.NodeType.TypeName != "noise" {
		t.Error("node-type extension not populated")
	}

	if _, err := FromNodeType(NodeTypeDef{DisplayName: "No Type"}); err == nil {
		t.Error("expected error for missing typeName")
	}
}

func TestFromHelper(t *testing.T) {
	d, err := FromHelper(HelperDef{HelperID: "grid", Name: "Grid Helper", Kind: "overlay"})
	if err != nil {
		t.Fatalf("FromHelper error: %v", err)
	}
	if d.Family != FamilyHelper {
		t.Errorf("Family = %q", d.Family)
	}

	if _, err := FromHelper(HelperDef{Name: "anonymous"}); err == nil {
		t.Error("expected error for missing helperId")
	}
}

func TestFromInteraction(t *testing.T) {
	d, err := FromInteraction(InteractionDef{InteractionID: "orbit", Name: "Orbit Camera", Trigger: "drag"})
	if err != nil {
		t.Fatalf("FromInteraction error: %v", err)
	}
	if d.Extensions.Interaction == nil || d.Extensions.Interaction.Trigger != "drag" {
		t.Error("interaction extension not populated")
	}

	if _, err := FromInteraction(InteractionDef{Name: "anonymous"}); err == nil {
		t.Error("expected error for missing interactionId")
	}
}

func TestParseSemver(t *testing.T) {
	v, err := ParseSemver("v1.2.3")
	if err != nil {
		t.Fatalf("ParseSemver error: %v", err)
	}
	if v.Major != 1 || v.Minor != 2 || v.Patch != 3 {
		t.Errorf("ParseSemver = %+v", v)
	}

	for _, bad := range []string{"", "1.2", "a.b.c", "1.2.x"} {
		if _, err := ParseSemver(bad); err == nil {
			t.Errorf("ParseSemver(%q) should fail", bad)
		}
	}
}

func TestSemverCompare(t *testing.T) {
	a, _ := ParseSemver("1.2.3")
	b, _ := ParseSemver("1.10.0")
	if a.Compare(b) != -1 {
		t.Error("1.2.3 should sort before 1.10.0")
	}
	if b.Compare(a) != 1 {
		t.Error("1.10.0 should sort after 1.2.3")
	}
	if a.Compare(a) != 0 {
		t.Error("equal versions should compare 0")
	}
}
