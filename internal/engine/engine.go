package engine

import (
	"context"

	"scrub/internal/pipeline"
)

type Engine struct {
	runner *pipeline.Runner
}

// Run drains the pipeline until the source finishes or ctx is cancelled,
// then releases the source and sinks.
func (e *Engine) Run(ctx context.Context) error {
	runErr := e.runner.Run(ctx)
	if err := e.runner.Close(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}
