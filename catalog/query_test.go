package catalog

import (
	"testing"

	"github.com/GoCodeAlone/atelier/descriptor"
)

func TestFilter(t *testing.T) {
	c := New(testLogger())
	a := toolDescriptor("terrain")
	a.Tags = []string{"terrain", "paint"}
	_ = c.Register(a)

	b := toolDescriptor("water")
	b.Tags = []string{"water"}
	_ = c.Register(b)

	got, err := c.Filter(`family == "world-tool" && "terrain" in tags`)
	if err != nil {
		t.Fatalf("Filter error: %v", err)
	}
	if len(got) != 1 || got[0].ID != "terrain" {
		t.Errorf("Filter returned %d results", len(got))
	}
}

func TestFilterActiveFlag(t *testing.T) {
	c := New(testLogger())
	_ = c.Register(toolDescriptor("on"))
	_ = c.Register(toolDescriptor("off"))
	c.SetActivationState("off", descriptor.StateInactive)

	got, err := c.Filter(`active`)
	if err != nil {
		t.Fatalf("Filter error: %v", err)
	}
	if len(got) != 1 || got[0].ID != "on" {
		t.Errorf("expected only the active descriptor, got %d", len(got))
	}
}

func TestFilterInvalidExpression(t *testing.T) {
	c := New(testLogger())
	if _, err := c.Filter(`family ==`); err == nil {
		t.Error("expected error for malformed expression")
	}
}

func TestDependents(t *testing.T) {
	c := New(testLogger())

	provider := toolDescriptor("heightmap")
	provider.ProvidesFeatures = []string{"feature.heightmap"}
	_ = c.Register(provider)

	consumer := toolDescriptor("erosion")
	consumer.ConsumesFeatures = []string{"feature.heightmap"}
	_ = c.Register(consumer)

	unrelated := toolDescriptor("lighting")
	_ = c.Register(unrelated)

	deps := c.Dependents("heightmap")
	if len(deps) != 1 || deps[0].ID != "erosion" {
		t.Errorf("Dependents = %d entries", len(deps))
	}

	if deps := c.Dependents("lighting"); deps != nil {
		t.Error("descriptor providing nothing has no dependents")
	}
	if deps := c.Dependents("ghost"); deps != nil {
		t.Error("unknown id has no dependents")
	}
}
