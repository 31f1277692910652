package catalog

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/GoCodeAlone/atelier/descriptor"
)

// queryEnv is the expression environment for one descriptor. Field names
// mirror the descriptor's JSON shape so UI-authored filters read naturally,
// e.g. `family == "scene-view" && "terrain" in tags`.
func queryEnv(d descriptor.Descriptor) map[string]any {
	return map[string]any{
		"id":               d.ID,
		"family":           string(d.Family),
		"origin":           string(d.Origin),
		"name":             d.Name,
		"description":      d.Description,
		"version":          d.Version,
		"author":           d.Author,
		"category":         d.Category,
		"tags":             d.Tags,
		"active":           d.ActivationState == descriptor.StateActive,
		"canDisable":       d.CanDisable,
		"providesFeatures": d.ProvidesFeatures,
		"consumesFeatures": d.ConsumesFeatures,
		"consumesActions":  d.ConsumesActions,
		"consumesState":    d.ConsumesState,
	}
}

// CompileFilter compiles a filter expression for repeated use.
func CompileFilter(expression string) (*vm.Program, error) {
	prog, err := expr.Compile(expression, expr.AsBool(), expr.AllowUndefinedVariables())
	if err != nil {
		return nil, fmt.Errorf("catalog: invalid filter expression: %w", err)
	}
	return prog, nil
}

// Filter returns the descriptors matching a boolean filter expression.
// A descriptor for which evaluation errors is excluded rather than failing
// the whole query.
func (c *Catalog) Filter(expression string) ([]descriptor.Descriptor, error) {
	prog, err := CompileFilter(expression)
	if err != nil {
		return nil, err
	}

	var out []descriptor.Descriptor
	for _, d := range c.GetAll() {
		res, err := expr.Run(prog, queryEnv(d))
		if err != nil {
			c.logger.Warn("Filter expression failed for descriptor", "id", d.ID, "error", err)
			continue
		}
		if match, ok := res.(bool); ok && match {
			out = append(out, d)
		}
	}
	return out, nil
}

// Dependents returns the descriptors that consume any feature provided by
// the given descriptor. This drives the UI's "what breaks if I disable this"
// impact view; the dependency graph is soft and not validated.
func (c *Catalog) Dependents(id string) []descriptor.Descriptor {
	target, ok := c.Get(id)
	if !ok || len(target.ProvidesFeatures) == 0 {
		return nil
	}

	provided := make(map[string]bool, len(target.ProvidesFeatures))
	for _, f := range target.ProvidesFeatures {
		provided[f] = true
	}

	var out []descriptor.Descriptor
	for _, d := range c.GetAll() {
		if d.ID == id {
			continue
		}
		for _, f := range d.ConsumesFeatures {
			if provided[f] {
				out = append(out, d)
				break
			}
		}
	}
	return out
}
