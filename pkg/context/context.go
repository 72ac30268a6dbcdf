package context

import (
	"ballotengine/pkg/config"
	"ballotengine/pkg/metrics"
)

// OperationContext holds request-scoped data for a single protocol operation.
// It is passed through the layers of the application, from the engine's
// entry point down to the issuance, voting, and tally flows.
type OperationContext struct {
	Config   *config.Config    // The configuration
	Recorder *metrics.Recorder // The metrics recorder for the current simulation run.
}

// NewContext creates a new OperationContext.
func NewContext(config *config.Config, rec *metrics.Recorder) *OperationContext {
	return &OperationContext{
		Config:   config,
		Recorder: rec,
	}
}
