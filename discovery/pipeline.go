// Package discovery enumerates plugin sources and drives lazy Registration
// records through the catalog.
package discovery

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/GoCodeAlone/atelier/descriptor"
)

// Source identifies where a Registration was discovered.
type Source string

const (
	// SourceTree covers source-tree modules and local dev projects.
	SourceTree Source = "source"
	// SourceBundle covers downloaded, persisted bundles.
	SourceBundle Source = "bundle"
)

// Registration is a lazy, not-yet-applied record describing how to add one
// descriptor to the catalog.
type Registration struct {
	ID     string
	Family descriptor.Family
	Origin descriptor.Origin
	Source Source
	Label  string
	// Register performs normalization and catalog registration when invoked.
	Register func(ctx context.Context) error
}

// Result summarizes one pipeline run.
type Result struct {
	RunID      string
	Registered int
	Failed     int
	Dropped    int
	Errors     map[string]error
}

// Pipeline applies Registration records to the catalog with per-id conflict
// resolution and partial-failure tolerance.
type Pipeline struct {
	preferred Source
	strict    bool
	logger    *slog.Logger
}

// NewPipeline creates a pipeline. preferred decides which source wins when
// the same id is discoverable from both ('source' in development, 'bundle'
// in production). In strict mode the first registration failure aborts the
// run; otherwise failures are collected per item.
func NewPipeline(preferred Source, strict bool, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{preferred: preferred, strict: strict, logger: logger}
}

// resolve picks exactly one Registration per id. A record in the preferred
// source wins outright; otherwise the other source serves as fallback. The
// loser is dropped without a warning — the dev/prod source split makes this
// resolved, expected behavior — but logged at debug level for traceability.
func (p *Pipeline) resolve(regs []Registration) ([]Registration, int) {
	byID := make(map[string]Registration)
	order := make([]string, 0, len(regs))
	dropped := 0

	for _, reg := range regs {
		existing, seen := byID[reg.ID]
		if !seen {
			byID[reg.ID] = reg
			order = append(order, reg.ID)
			continue
		}
		dropped++
		if existing.Source != p.preferred && reg.Source == p.preferred {
			p.logger.Debug("Preferred source replaces earlier registration",
				"id", reg.ID, "kept", reg.Source, "dropped", existing.Source)
			byID[reg.ID] = reg
		} else {
			p.logger.Debug("Dropping conflicting registration",
				"id", reg.ID, "kept", existing.Source, "dropped", reg.Source)
		}
	}

	out := make([]Registration, 0, len(order))
	for _, id := range order {
		out = append(out, byID[id])
	}
	return out, dropped
}

// Run resolves source conflicts and invokes each winning Registration. Each
// invocation is isolated: one plugin's failure is logged and does not abort
// the remaining registrations unless the pipeline is strict.
func (p *Pipeline) Run(ctx context.Context, regs []Registration) (Result, error) {
	winners, dropped := p.resolve(regs)

	res := Result{
		RunID:   uuid.NewString(),
		Dropped: dropped,
		Errors:  make(map[string]error),
	}

	for _, reg := range winners {
		err := p.invoke(ctx, reg)
		if err == nil {
			res.Registered++
			continue
		}
		res.Failed++
		res.Errors[reg.ID] = err
		p.logger.Error("Registration failed", "run", res.RunID, "id", reg.ID, "label", reg.Label, "error", err)
		if p.strict {
			return res, fmt.Errorf("discovery: registration of %q failed: %w", reg.ID, err)
		}
	}

	p.logger.Info("Discovery run complete", "run", res.RunID,
		"registered", res.Registered, "failed", res.Failed, "dropped", res.Dropped)
	return res, nil
}

// invoke runs one Registration inside a panic boundary.
func (p *Pipeline) invoke(ctx context.Context, reg Registration) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic during registration: %v", rec)
		}
	}()
	if reg.Register == nil {
		return fmt.Errorf("registration %q has no register function", reg.ID)
	}
	return reg.Register(ctx)
}
