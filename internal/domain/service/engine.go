package service

import (
	"context"

	"MacroPulse/internal/domain/models"
)

// Engine is a stateful computation unit producing a signal report from
// indicator history. The engine owns its historical buffers exclusively;
// Calculate appends to them and is never invoked concurrently for the
// same engine instance.
type Engine interface {
	// ID returns the stable engine identifier.
	ID() string

	// RequiredIndicators declares the indicator ids this engine consumes.
	// The registry builds its interest table from this set.
	RequiredIndicators() []string

	// ValidateData reports whether the sample set is sufficient for a
	// meaningful run. When false the orchestrator records a skipped
	// execution instead of a degraded report.
	ValidateData(samples models.SampleSet) bool

	// Calculate consumes the latest samples and produces a report.
	Calculate(ctx context.Context, samples models.SampleSet) (*models.EngineReport, error)
}

// DataInjectable is an optional capability for engines that consume the
// output of earlier-phase engines. Dispatch is via interface check, not
// property probing.
type DataInjectable interface {
	InjectData(sourceEngineID string, report *models.EngineReport)
}
